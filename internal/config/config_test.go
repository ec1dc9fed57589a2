package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultConfig() *Config {
	return NewFromViper(NewEmptyViper())
}

func TestDefaults(t *testing.T) {
	cfg := newDefaultConfig()

	assert.Equal(t, "none", cfg.GetLLM().Provider)
	assert.Equal(t, "gmail", cfg.GetSource().Type)
	assert.Equal(t, "is:unread", cfg.GetSource().Query)
	assert.Equal(t, "memory", cfg.GetStore().Type)
	assert.Equal(t, 10, cfg.GetMirror().ReviewCycle)
	assert.Equal(t, 50, cfg.GetMirror().WindowSize)

	pipeline, err := cfg.GetPipeline()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, pipeline.SyncInterval)
	assert.Equal(t, 20, pipeline.BatchSize)

	interval, err := cfg.GetDuration("ratelimit.min_interval")
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, interval)
}

func TestGetSeedsShelfLives(t *testing.T) {
	cfg := newDefaultConfig()

	seeds, err := cfg.GetSeeds()
	require.NoError(t, err)
	assert.Equal(t, 4*time.Hour, seeds.DecisionNeeded)
	assert.Equal(t, 48*time.Hour, seeds.Opportunity)
	assert.Equal(t, 72*time.Hour, seeds.FollowUp)
	assert.Equal(t, 168*time.Hour, seeds.RelationshipBuild)
}

func TestGetSignalsUnmarshalsVIPRules(t *testing.T) {
	v := NewEmptyViper()
	v.Set("signals.vip_rules", []map[string]any{
		{"domain": "bigcorp.com", "subject": "contract", "zone": "red"},
		{"domain": "partner.io"},
	})
	v.Set("signals.vip_domains", []string{"keyaccount.com"})
	cfg := NewFromViper(v)

	signals, err := cfg.GetSignals()
	require.NoError(t, err)
	require.Len(t, signals.VIPRules, 2)
	assert.Equal(t, "bigcorp.com", signals.VIPRules[0].Domain)
	assert.Equal(t, "contract", signals.VIPRules[0].Subject)
	assert.Equal(t, "red", signals.VIPRules[0].Zone)
	assert.Empty(t, signals.VIPRules[1].Zone)
	assert.Equal(t, []string{"keyaccount.com"}, signals.VIPDomains)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		wantErr bool
	}{
		{
			name: "provider none needs nothing",
		},
		{
			name:    "openai without key",
			set:     map[string]any{"llm.provider": "openai"},
			wantErr: true,
		},
		{
			name: "openai with key",
			set:  map[string]any{"llm.provider": "openai", "openai.api_key": "sk-test"},
		},
		{
			name:    "gemini without key",
			set:     map[string]any{"llm.provider": "gemini"},
			wantErr: true,
		},
		{
			name: "bedrock uses ambient credentials",
			set:  map[string]any{"llm.provider": "bedrock"},
		},
		{
			name:    "unknown provider",
			set:     map[string]any{"llm.provider": "palm"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewEmptyViper()
			for key, value := range tt.set {
				v.Set(key, value)
			}
			err := NewFromViper(v).Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
