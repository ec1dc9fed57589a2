package config

import (
	"fmt"
	"time"
)

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// VIPRule is one precision-routing rule: a sender domain substring, an
// optional subject substring, and an optional zone to force when matched.
type VIPRule struct {
	Domain  string `mapstructure:"domain"`
	Subject string `mapstructure:"subject"`
	Zone    string `mapstructure:"zone"`
}

// SignalsConfig represents the configuration for signal detection
type SignalsConfig struct {
	VIPRules          []VIPRule
	VIPAddresses      []string
	VIPDomains        []string
	NewsletterDomains []string
}

// SeedsConfig represents the per-type shelf lives for seed planting
type SeedsConfig struct {
	DecisionNeeded    time.Duration
	Opportunity       time.Duration
	FollowUp          time.Duration
	RelationshipBuild time.Duration
}

// MirrorConfig represents the configuration for the self-review loop
type MirrorConfig struct {
	ReviewCycle int
	WindowSize  int
}

// PipelineConfig represents the configuration for the sync pipeline
type PipelineConfig struct {
	SyncInterval time.Duration
	BatchSize    int
}

// SourceConfig represents the configuration for the mail source
type SourceConfig struct {
	Type            string
	User            string
	Query           string
	CredentialsFile string
	ListenAddress   string
}

// StoreConfig represents the configuration for the persistence sink
type StoreConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetSignals returns the signal detection configuration
func (c *Config) GetSignals() (SignalsConfig, error) {
	var rules []VIPRule
	if err := c.v.UnmarshalKey("signals.vip_rules", &rules); err != nil {
		return SignalsConfig{}, fmt.Errorf("invalid signals.vip_rules: %w", err)
	}
	return SignalsConfig{
		VIPRules:          rules,
		VIPAddresses:      c.GetStringSlice("signals.vip_addresses"),
		VIPDomains:        c.GetStringSlice("signals.vip_domains"),
		NewsletterDomains: c.GetStringSlice("signals.newsletter_domains"),
	}, nil
}

// GetSeeds returns the seed shelf-life configuration
func (c *Config) GetSeeds() (SeedsConfig, error) {
	var cfg SeedsConfig
	var err error
	if cfg.DecisionNeeded, err = c.GetDuration("seeds.shelf_life.decision_needed"); err != nil {
		return cfg, fmt.Errorf("invalid decision_needed shelf life: %w", err)
	}
	if cfg.Opportunity, err = c.GetDuration("seeds.shelf_life.opportunity"); err != nil {
		return cfg, fmt.Errorf("invalid opportunity shelf life: %w", err)
	}
	if cfg.FollowUp, err = c.GetDuration("seeds.shelf_life.follow_up"); err != nil {
		return cfg, fmt.Errorf("invalid follow_up shelf life: %w", err)
	}
	if cfg.RelationshipBuild, err = c.GetDuration("seeds.shelf_life.relationship_build"); err != nil {
		return cfg, fmt.Errorf("invalid relationship_build shelf life: %w", err)
	}
	return cfg, nil
}

// GetMirror returns the self-review configuration
func (c *Config) GetMirror() MirrorConfig {
	return MirrorConfig{
		ReviewCycle: c.GetInt("mirror.review_cycle"),
		WindowSize:  c.GetInt("mirror.window_size"),
	}
}

// GetPipeline returns the pipeline configuration
func (c *Config) GetPipeline() (PipelineConfig, error) {
	interval, err := c.GetDuration("pipeline.sync_interval")
	if err != nil {
		return PipelineConfig{}, fmt.Errorf("invalid pipeline sync interval: %w", err)
	}
	return PipelineConfig{
		SyncInterval: interval,
		BatchSize:    c.GetInt("pipeline.batch_size"),
	}, nil
}

// GetSource returns the mail source configuration
func (c *Config) GetSource() SourceConfig {
	return SourceConfig{
		Type:            c.GetString("source.type"),
		User:            c.GetString("source.user"),
		Query:           c.GetString("source.query"),
		CredentialsFile: c.GetString("source.credentials_file"),
		ListenAddress:   c.GetString("source.listen_address"),
	}
}

// GetStore returns the persistence sink configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}

// Validate checks the configuration for errors that cannot be recovered from
// at runtime. Missing provider credentials are fatal at startup since no
// fallback is possible before any call is attempted.
func (c *Config) Validate() error {
	switch provider := c.GetString("llm.provider"); provider {
	case "openai":
		if c.GetString("openai.api_key") == "" {
			return fmt.Errorf("llm.provider is %q but openai.api_key is not set", provider)
		}
	case "gemini":
		if c.GetString("gemini.api_key") == "" {
			return fmt.Errorf("llm.provider is %q but gemini.api_key is not set", provider)
		}
	case "bedrock", "none":
		// Bedrock resolves credentials from the AWS environment.
	default:
		return fmt.Errorf("unsupported LLM provider: %s", provider)
	}
	return nil
}
