package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/d0npedro/mailinvoicegrabber/internal/adapters/bedrock"
	"github.com/d0npedro/mailinvoicegrabber/internal/adapters/gemini"
	"github.com/d0npedro/mailinvoicegrabber/internal/adapters/openai"
	"github.com/d0npedro/mailinvoicegrabber/internal/config"
	"github.com/d0npedro/mailinvoicegrabber/internal/core"
)

// ClassifierFactory creates classifier adapters
type ClassifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger) *ClassifierFactory {
	return &ClassifierFactory{cfg: cfg, logger: logger}
}

// CreateClassifier creates a classifier based on the configured provider
func (f *ClassifierFactory) CreateClassifier(ctx context.Context) (core.Classifier, error) {
	provider := f.cfg.GetString("llm.provider")

	switch provider {
	case "openai":
		return openai.NewClassifier(
			f.cfg.GetString("openai.api_key"),
			f.cfg.GetString("openai.base_url"),
			f.cfg.GetString("openai.model_name"),
			f.cfg.GetInt("openai.max_tokens"),
			float32(f.cfg.GetFloat64("openai.temperature")),
			f.logger,
		), nil
	case "gemini":
		return gemini.NewClassifier(
			ctx,
			f.cfg.GetString("gemini.api_key"),
			f.cfg.GetString("gemini.model_name"),
			f.cfg.GetInt("gemini.max_tokens"),
			float32(f.cfg.GetFloat64("gemini.temperature")),
			f.logger,
		)
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(f.cfg.GetString("bedrock.region")))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		return bedrock.NewClassifier(
			bedrockruntime.NewFromConfig(awsCfg),
			f.cfg.GetString("bedrock.model_id"),
			f.cfg.GetInt("bedrock.max_tokens"),
			float32(f.cfg.GetFloat64("bedrock.temperature")),
			f.logger,
		), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
