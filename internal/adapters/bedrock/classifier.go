package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/d0npedro/mailinvoicegrabber/internal/core"
)

// Classifier is an implementation of the Classifier interface using Amazon Bedrock
type Classifier struct {
	client       *bedrockruntime.Client
	modelID      string
	maxTokens    int
	temperature  float32
	logger       *zap.Logger
	promptFormat string
}

type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float32         `json:"temperature"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewClassifier creates a new Bedrock classifier
func NewClassifier(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	logger *zap.Logger,
) *Classifier {
	return &Classifier{
		client:      client,
		modelID:     modelID,
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

// Classify performs a single classification request against Bedrock.
func (c *Classifier) Classify(ctx context.Context, text string) (*core.ClassificationResult, error) {
	prompt := fmt.Sprintf(c.promptFormat, text)

	payload, err := json.Marshal(claudeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        c.maxTokens,
		Temperature:      c.temperature,
		Messages: []claudeMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Bedrock request: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, mapError(err)
	}

	var out claudeResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("%w: failed to parse Bedrock response: %v", core.ErrBadResponse, err)
	}

	var responseText string
	for _, part := range out.Content {
		if part.Type == "text" {
			responseText += part.Text
		}
	}
	if responseText == "" {
		return nil, fmt.Errorf("%w: no text in Bedrock response", core.ErrBadResponse)
	}

	return core.ParseClassification([]byte(responseText))
}

func mapError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			return fmt.Errorf("%w: %v", core.ErrAuthFailed, err)
		case "ThrottlingException", "TooManyRequestsException":
			return fmt.Errorf("%w: %v", core.ErrRateLimited, err)
		}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", core.ErrConnection, err)
	}
	return fmt.Errorf("failed to invoke Bedrock model: %w", err)
}
