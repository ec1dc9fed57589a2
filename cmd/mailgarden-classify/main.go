package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/gardenos/mailgarden/internal/config"
	"github.com/gardenos/mailgarden/internal/core"
	"github.com/gardenos/mailgarden/internal/factory"
	"github.com/gardenos/mailgarden/internal/logging"
	"github.com/gardenos/mailgarden/internal/ratelimit"
	"github.com/gardenos/mailgarden/internal/utils"
	"go.uber.org/zap"
)

var (
	// LLM provider flags
	provider    = flag.String("provider", "none", "LLM provider (none, bedrock, gemini, openai)")
	maxTokens   = flag.Int("max-tokens", 1000, "Maximum tokens for LLM response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for LLM generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for LLM generation")
	maxBodySize = flag.Int("max-body-size", 4096, "Maximum email body size to send to LLM")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-3-haiku-20240307-v1:0", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4o-mini", "OpenAI model name")

	// Signal detection flags
	vipDomains        = flag.String("vip-domains", "", "Comma-separated list of VIP sender domains")
	newsletterDomains = flag.String("newsletter-domains", "", "Comma-separated list of known newsletter domains")
	minInterval       = flag.Duration("min-interval", 4*time.Second, "Minimum interval between LLM calls")

	// Input flags
	inputFile  = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	var cfg *config.Config
	var err error

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration from file if specified
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		// Create config from command line flags
		cfg = createConfigFromFlags()
	}

	// Initialize LLM client
	textProcessor := utils.NewTextProcessor(logger)
	llmFactory := factory.NewLLMFactory(cfg, logger, textProcessor)
	llmClient, err := llmFactory.CreateLLMClient()
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	// Build the signal detector from configuration
	signalsCfg, err := cfg.GetSignals()
	if err != nil {
		logger.Fatal("Failed to load signal configuration", zap.Error(err))
	}
	detector := core.NewSignalDetector(core.DetectorConfig{
		VIPAddresses:      signalsCfg.VIPAddresses,
		VIPDomains:        signalsCfg.VIPDomains,
		NewsletterDomains: signalsCfg.NewsletterDomains,
	}, logger)

	throttle := ratelimit.New(*minInterval)
	classifier := core.NewZoneClassifier(detector, llmClient, throttle, logger)

	// Read email from file or stdin
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	// Parse email
	msg, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	email, err := emailFromMessage(msg)
	if err != nil {
		logger.Fatal("Failed to extract email", zap.Error(err))
	}

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s <%s>\n", email.FromName, email.FromAddress)
	fmt.Printf("To: %s\n", strings.Join(email.To, ", "))
	fmt.Printf("Subject: %s\n", email.Subject)
	fmt.Printf("Body length: %d bytes\n", len(email.Body))
	fmt.Printf("\n")

	fmt.Printf("=== Analysis ===\n")
	fmt.Printf("Provider: %s\n", cfg.GetString("llm.provider"))

	startTime := time.Now()
	classification := classifier.Classify(context.Background(), email)
	duration := time.Since(startTime)

	// Print results
	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Zone: %s\n", classification.Zone)
	fmt.Printf("Score: %d\n", classification.Score)
	fmt.Printf("Confidence: %.2f\n", classification.Confidence)
	fmt.Printf("Method: %s\n", classification.Method)
	if len(classification.Signals) > 0 {
		fmt.Printf("Signals:\n")
		for _, sig := range classification.Signals {
			if sig.Keyword != "" {
				fmt.Printf("  - %s (%s)\n", sig.Type, sig.Keyword)
			} else {
				fmt.Printf("  - %s\n", sig.Type)
			}
		}
	}
	fmt.Printf("Reasoning: %s\n", classification.Reasoning)
	fmt.Printf("Processing time: %v\n", duration)

	// Close any resources that need closing
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}
}

// emailFromMessage converts an RFC 822 message into the pipeline's
// normalized form.
func emailFromMessage(msg *mail.Message) (*core.Email, error) {
	email := &core.Email{
		Subject:    msg.Header.Get("Subject"),
		InReplyTo:  msg.Header.Get("In-Reply-To"),
		ReceivedAt: time.Now(),
	}

	if addr, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		email.FromName = addr.Name
		email.FromAddress = addr.Address
	} else {
		email.FromAddress = msg.Header.Get("From")
	}

	if to := msg.Header.Get("To"); to != "" {
		if addrs, err := mail.ParseAddressList(to); err == nil {
			for _, addr := range addrs {
				email.To = append(email.To, addr.Address)
			}
		} else {
			email.To = strings.Split(to, ",")
		}
	}

	if date, err := msg.Header.Date(); err == nil {
		email.ReceivedAt = date
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read email body: %w", err)
	}
	email.Body = string(body)

	return email, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	// Set LLM provider
	v.Set("llm.provider", *provider)

	// Set provider-specific configuration
	switch *provider {
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	}

	// Set signal detection configuration
	v.Set("signals.vip_domains", splitList(*vipDomains))
	v.Set("signals.newsletter_domains", splitList(*newsletterDomains))

	return config.NewFromViper(v)
}

// splitList splits a comma-separated flag value into trimmed entries.
func splitList(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}
