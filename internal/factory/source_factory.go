package factory

import (
	"context"
	"fmt"

	"github.com/gardenos/mailgarden/internal/adapters/gmail"
	"github.com/gardenos/mailgarden/internal/adapters/smtpsource"
	"github.com/gardenos/mailgarden/internal/config"
	"github.com/gardenos/mailgarden/internal/core"
	"go.uber.org/zap"
)

// SourceFactory creates mail sources based on configuration
type SourceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config, logger *zap.Logger) *SourceFactory {
	return &SourceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSource creates a mail source based on the configuration
func (f *SourceFactory) CreateSource(ctx context.Context) (core.MailSource, error) {
	sourceCfg := f.cfg.GetSource()

	switch sourceCfg.Type {
	case "gmail":
		return gmail.NewSource(ctx, sourceCfg.CredentialsFile, sourceCfg.User, sourceCfg.Query, f.logger)
	case "smtp":
		return smtpsource.NewSource(sourceCfg.ListenAddress, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceCfg.Type)
	}
}
