package openai

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/d0npedro/mailinvoicegrabber/internal/core"
)

// Classifier is an implementation of the Classifier interface using OpenAI
type Classifier struct {
	client       *openai.Client
	modelName    string
	maxTokens    int
	temperature  float32
	logger       *zap.Logger
	promptFormat string
}

// NewClassifier creates a new OpenAI classifier. baseURL overrides the API
// endpoint and is mainly useful for tests and proxies.
func NewClassifier(
	apiKey string,
	baseURL string,
	modelName string,
	maxTokens int,
	temperature float32,
	logger *zap.Logger,
) *Classifier {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	return &Classifier{
		client:      openai.NewClientWithConfig(clientConfig),
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
		promptFormat: `You are an invoice detection system. Decide whether the following document text is an invoice or receipt. Documents may be in German or English; words like "Rechnung", "Rechnungsnummer", "MwSt", "USt", "Gesamtbetrag", "invoice", "receipt" or "total due" are strong signals.
Respond with a JSON object containing:
- is_invoice: boolean (true if the document is an invoice or receipt)
- vendor: string (issuing company, "unknown" if unclear)
- invoice_number: string ("unknown" if not present)
- date: string in YYYY-MM-DD format ("unknown" if not present)
- total_amount: string, numeric amount only ("0" if not present)
- currency: string, ISO 4217 code such as EUR or USD ("EUR" if unclear)

Document text:
%s

Respond only with the JSON object and nothing else.`,
	}
}

// Classify performs a single classification request against OpenAI.
func (c *Classifier) Classify(ctx context.Context, text string) (*core.ClassificationResult, error) {
	prompt := fmt.Sprintf(c.promptFormat, text)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an invoice detection system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion from OpenAI", core.ErrBadResponse)
	}

	return core.ParseClassification([]byte(resp.Choices[0].Message.Content))
}

// mapError translates provider failures into the classification error
// taxonomy so the caller can decide whether a retry makes sense.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return fmt.Errorf("%w: %v", core.ErrAuthFailed, err)
		case 429:
			return fmt.Errorf("%w: %v", core.ErrRateLimited, err)
		}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", core.ErrConnection, err)
	}
	return fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
}
