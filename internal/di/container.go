package di

import (
	"context"
	"fmt"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/gardenos/mailgarden/internal/bus"
	"github.com/gardenos/mailgarden/internal/config"
	"github.com/gardenos/mailgarden/internal/core"
	"github.com/gardenos/mailgarden/internal/factory"
	"github.com/gardenos/mailgarden/internal/logging"
	"github.com/gardenos/mailgarden/internal/ratelimit"
	"github.com/gardenos/mailgarden/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register event bus
	if err := container.Provide(bus.New); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSourceFactory); err != nil {
		return nil, err
	}

	// Register LLM client
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return nil, err
	}

	// Register store
	if err := container.Provide(func(f *factory.StoreFactory) (core.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}

	// Register mail source
	if err := container.Provide(func(f *factory.SourceFactory) (core.MailSource, error) {
		return f.CreateSource(context.Background())
	}); err != nil {
		return nil, err
	}

	// Register LLM call throttle
	if err := container.Provide(func(cfg *config.Config) (*ratelimit.Throttle, error) {
		minInterval, err := cfg.GetDuration("ratelimit.min_interval")
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit interval: %w", err)
		}
		return ratelimit.New(minInterval), nil
	}); err != nil {
		return nil, err
	}

	// Register signal detector
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*core.SignalDetector, error) {
		signalsCfg, err := cfg.GetSignals()
		if err != nil {
			return nil, err
		}
		detectorCfg, err := buildDetectorConfig(signalsCfg)
		if err != nil {
			return nil, err
		}
		if len(detectorCfg.PrecisionRules) > 0 {
			logger.Info("Loaded precision routing rules",
				zap.Int("count", len(detectorCfg.PrecisionRules)))
		}
		return core.NewSignalDetector(detectorCfg, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register zone classifier
	if err := container.Provide(core.NewZoneClassifier); err != nil {
		return nil, err
	}

	// Register seed manager
	if err := container.Provide(func(cfg *config.Config, detector *core.SignalDetector, logger *zap.Logger) (*core.SeedManager, error) {
		seedsCfg, err := cfg.GetSeeds()
		if err != nil {
			return nil, err
		}
		shelfLives := core.ShelfLives{
			core.SeedDecisionNeeded:    seedsCfg.DecisionNeeded,
			core.SeedOpportunity:       seedsCfg.Opportunity,
			core.SeedFollowUp:          seedsCfg.FollowUp,
			core.SeedRelationshipBuild: seedsCfg.RelationshipBuild,
		}
		return core.NewSeedManager(detector, shelfLives, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register thread tracker
	if err := container.Provide(core.NewThreadTracker); err != nil {
		return nil, err
	}

	// Register mirror
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *core.Mirror {
		mirrorCfg := cfg.GetMirror()
		return core.NewMirror(mirrorCfg.ReviewCycle, mirrorCfg.WindowSize, logger)
	}); err != nil {
		return nil, err
	}

	// Register pipeline
	if err := container.Provide(func(
		cfg *config.Config,
		source core.MailSource,
		classifier *core.ZoneClassifier,
		seeds *core.SeedManager,
		threads *core.ThreadTracker,
		mirror *core.Mirror,
		store core.Store,
		eventBus *bus.Bus,
		logger *zap.Logger,
	) (*core.Pipeline, error) {
		pipelineCfg, err := cfg.GetPipeline()
		if err != nil {
			return nil, err
		}
		return core.NewPipeline(source, classifier, seeds, threads, mirror, store, eventBus,
			pipelineCfg.BatchSize, logger), nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// buildDetectorConfig converts configuration rule entries into the core
// detector's form, validating any forced zones.
func buildDetectorConfig(signalsCfg config.SignalsConfig) (core.DetectorConfig, error) {
	rules := make([]core.PrecisionRule, 0, len(signalsCfg.VIPRules))
	for _, r := range signalsCfg.VIPRules {
		rule := core.PrecisionRule{
			Domain:  r.Domain,
			Subject: r.Subject,
		}
		if r.Zone != "" {
			zone, ok := core.ParseZone(r.Zone)
			if !ok {
				return core.DetectorConfig{}, fmt.Errorf("invalid zone %q in vip rule for domain %q", r.Zone, r.Domain)
			}
			rule.Zone = &zone
		}
		rules = append(rules, rule)
	}
	return core.DetectorConfig{
		PrecisionRules:    rules,
		VIPAddresses:      signalsCfg.VIPAddresses,
		VIPDomains:        signalsCfg.VIPDomains,
		NewsletterDomains: signalsCfg.NewsletterDomains,
	}, nil
}
