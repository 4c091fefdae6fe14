package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/d0npedro/mailinvoicegrabber/internal/adapters/extract"
	"github.com/d0npedro/mailinvoicegrabber/internal/config"
	"github.com/d0npedro/mailinvoicegrabber/internal/core"
	"github.com/d0npedro/mailinvoicegrabber/internal/factory"
	"github.com/d0npedro/mailinvoicegrabber/internal/logging"
)

// Options carry the command-line overrides into the container.
type Options struct {
	// ConfigFile bypasses the config search paths when set.
	ConfigFile string
	// Verbose switches to a debug-level console logger.
	Verbose bool
}

// BuildContainer creates and configures a dependency injection container
// holding the pieces shared by every account scan. Per-account objects (the
// mailbox connection and its store) are created in the scan loop.
func BuildContainer(ctx context.Context, opts Options) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		if opts.ConfigFile != "" {
			return config.NewWithFile(opts.ConfigFile)
		}
		return config.New()
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(cfg *config.Config) (*zap.Logger, error) {
		if opts.Verbose {
			return logging.InitConsoleLogger(true, cfg.GetString("logging.format") == "json")
		}
		return logging.InitLogger(cfg)
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}

	// Register classifier
	if err := container.Provide(func(f *factory.ClassifierFactory) (core.Classifier, error) {
		return f.CreateClassifier(ctx)
	}); err != nil {
		return nil, err
	}

	// Register classification cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.ClassificationCache, error) {
		return f.CreateCache()
	}); err != nil {
		return nil, err
	}

	// Register classification gateway
	if err := container.Provide(core.NewClassificationGateway); err != nil {
		return nil, err
	}

	// Register text extractor
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.Extractor {
		return extract.New(cfg, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
