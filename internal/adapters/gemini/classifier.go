package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/d0npedro/mailinvoicegrabber/internal/core"
)

// Classifier is an implementation of the Classifier interface using Google Gemini
type Classifier struct {
	client       *genai.Client
	model        *genai.GenerativeModel
	modelName    string
	logger       *zap.Logger
	promptFormat string
}

// NewClassifier creates a new Gemini classifier
func NewClassifier(
	ctx context.Context,
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	logger *zap.Logger,
) (*Classifier, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.SetTemperature(temperature)

	return &Classifier{
		client:    client,
		model:     model,
		modelName: modelName,
		logger:    logger,
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
	}, nil
}

// Classify performs a single classification request against Gemini.
func (c *Classifier) Classify(ctx context.Context, text string) (*core.ClassificationResult, error) {
	prompt := fmt.Sprintf(c.promptFormat, text)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: empty response from Gemini", core.ErrBadResponse)
	}

	var responseText string
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			responseText += string(textPart)
		}
	}
	if responseText == "" {
		return nil, fmt.Errorf("%w: no text in Gemini response", core.ErrBadResponse)
	}

	return core.ParseClassification([]byte(responseText))
}

// Close releases the underlying API client.
func (c *Classifier) Close() error {
	return c.client.Close()
}

func mapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
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
	return fmt.Errorf("failed to generate content with Gemini: %w", err)
}
