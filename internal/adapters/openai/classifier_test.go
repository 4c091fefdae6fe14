package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/d0npedro/mailinvoicegrabber/internal/core"
)

func newTestClassifier(t *testing.T, handler http.HandlerFunc) *Classifier {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClassifier("test-key", server.URL+"/v1", "gpt-4o-mini", 350, 0, zap.NewNop())
}

func completionResponse(content string) []byte {
	resp := map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
	}
	raw, _ := json.Marshal(resp)
	return raw
}

func TestClassifySuccess(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionResponse(`{"is_invoice": true, "vendor": "Hetzner", "invoice_number": "R-7", "date": "2024-01-31", "total_amount": "42.00", "currency": "EUR"}`))
	})

	result, err := classifier.Classify(context.Background(), "Rechnung von Hetzner")
	require.NoError(t, err)
	assert.True(t, result.IsInvoice)
	assert.Equal(t, "Hetzner", result.Vendor)
	assert.Equal(t, "R-7", result.InvoiceNumber)
}

func TestClassifyUnauthorized(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`))
	})

	_, err := classifier.Classify(context.Background(), "text")
	assert.ErrorIs(t, err, core.ErrAuthFailed)
}

func TestClassifyRateLimited(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limit exceeded", "type": "rate_limit_error"}}`))
	})

	_, err := classifier.Classify(context.Background(), "text")
	assert.ErrorIs(t, err, core.ErrRateLimited)
}

func TestClassifyMalformedContent(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionResponse("I am not sure about this document."))
	})

	_, err := classifier.Classify(context.Background(), "text")
	assert.ErrorIs(t, err, core.ErrBadResponse)
}

func TestClassifyConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()
	classifier := NewClassifier("test-key", server.URL+"/v1", "gpt-4o-mini", 350, 0, zap.NewNop())

	_, err := classifier.Classify(context.Background(), "text")
	assert.ErrorIs(t, err, core.ErrConnection)
}
