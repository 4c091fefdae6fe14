package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"go.uber.org/zap"
)

// maxClassifyAttempts bounds how often one attachment hits the API.
const maxClassifyAttempts = 2

// ClassificationGateway wraps a provider Classifier with the retry policy and
// an optional content-hash cache. It never returns an error: an attachment
// that cannot be classified is reported as absent and the scan moves on.
type ClassificationGateway struct {
	classifier Classifier
	cache      ClassificationCache
	logger     *zap.Logger
}

// NewClassificationGateway creates a gateway. cache may be nil.
func NewClassificationGateway(classifier Classifier, cache ClassificationCache, logger *zap.Logger) *ClassificationGateway {
	return &ClassificationGateway{
		classifier: classifier,
		cache:      cache,
		logger:     logger,
	}
}

// ContentKey derives the cache key for attachment bytes.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Classify runs at most two attempts against the provider. Authentication and
// rate-limit failures abort immediately; malformed responses, connection
// errors and anything else consume the retry. The boolean is false when both
// attempts failed or a non-retryable condition was hit.
func (g *ClassificationGateway) Classify(ctx context.Context, text string, contentKey string) (*ClassificationResult, bool) {
	if g.cache != nil && contentKey != "" {
		if result, ok := g.cache.Get(ctx, contentKey); ok {
			g.logger.Debug("Classification served from cache", zap.String("key", contentKey))
			return result, true
		}
	}

	for attempt := 1; attempt <= maxClassifyAttempts; attempt++ {
		result, err := g.classifier.Classify(ctx, text)
		if err == nil {
			if g.cache != nil && contentKey != "" {
				if cacheErr := g.cache.Set(ctx, contentKey, result); cacheErr != nil {
					g.logger.Warn("Failed to cache classification", zap.Error(cacheErr))
				}
			}
			return result, true
		}

		switch {
		case errors.Is(err, ErrAuthFailed):
			g.logger.Error("Classification authentication failed, check the API key", zap.Error(err))
			return nil, false
		case errors.Is(err, ErrRateLimited):
			g.logger.Error("Classification rate limited, skipping attachment", zap.Error(err))
			return nil, false
		case errors.Is(err, ErrBadResponse):
			g.logger.Warn("Classification returned a malformed response",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxClassifyAttempts))
		case errors.Is(err, ErrConnection):
			g.logger.Warn("Classification connection error",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxClassifyAttempts),
				zap.Error(err))
		default:
			g.logger.Warn("Classification API error",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxClassifyAttempts),
				zap.Error(err))
		}
	}

	g.logger.Error("Classification failed after retries, skipping attachment",
		zap.Int("attempts", maxClassifyAttempts))
	return nil, false
}
