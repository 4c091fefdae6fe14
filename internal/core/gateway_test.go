package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedClassifier struct {
	testingT  *testing.T
	responses []func() (*ClassificationResult, error)
	calls     int
}

func (c *scriptedClassifier) Classify(ctx context.Context, text string) (*ClassificationResult, error) {
	require.Less(c.testingT, c.calls, len(c.responses), "classifier called more often than scripted")
	resp := c.responses[c.calls]
	c.calls++
	return resp()
}

type fakeCache struct {
	entries map[string]*ClassificationResult
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*ClassificationResult)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (*ClassificationResult, bool) {
	result, ok := c.entries[key]
	return result, ok
}

func (c *fakeCache) Set(ctx context.Context, key string, result *ClassificationResult) error {
	c.entries[key] = result
	return nil
}

func (c *fakeCache) Close() error { return nil }

var invoiceResult = &ClassificationResult{
	IsInvoice: true, Vendor: "Hetzner", InvoiceNumber: "R-1",
	Date: "2024-01-31", TotalAmount: "42.00", Currency: "EUR",
}

func ok() (*ClassificationResult, error) { return invoiceResult, nil }
func fail(err error) func() (*ClassificationResult, error) {
	return func() (*ClassificationResult, error) { return nil, err }
}

func TestGatewayFirstAttemptSucceeds(t *testing.T) {
	classifier := &scriptedClassifier{testingT: t, responses: []func() (*ClassificationResult, error){ok}}
	gateway := NewClassificationGateway(classifier, nil, zap.NewNop())

	result, got := gateway.Classify(context.Background(), "text", "")
	require.True(t, got)
	assert.Equal(t, invoiceResult, result)
	assert.Equal(t, 1, classifier.calls)
}

func TestGatewayRetriesMalformedResponse(t *testing.T) {
	classifier := &scriptedClassifier{testingT: t, responses: []func() (*ClassificationResult, error){
		fail(ErrBadResponse), ok,
	}}
	gateway := NewClassificationGateway(classifier, nil, zap.NewNop())

	result, got := gateway.Classify(context.Background(), "text", "")
	require.True(t, got)
	assert.Equal(t, invoiceResult, result)
	assert.Equal(t, 2, classifier.calls)
}

func TestGatewayGivesUpAfterTwoFailures(t *testing.T) {
	classifier := &scriptedClassifier{testingT: t, responses: []func() (*ClassificationResult, error){
		fail(ErrBadResponse), fail(ErrConnection),
	}}
	gateway := NewClassificationGateway(classifier, nil, zap.NewNop())

	result, got := gateway.Classify(context.Background(), "text", "")
	assert.False(t, got)
	assert.Nil(t, result)
	assert.Equal(t, 2, classifier.calls)
}

func TestGatewayAuthFailureDoesNotRetry(t *testing.T) {
	classifier := &scriptedClassifier{testingT: t, responses: []func() (*ClassificationResult, error){
		fail(ErrAuthFailed),
	}}
	gateway := NewClassificationGateway(classifier, nil, zap.NewNop())

	_, got := gateway.Classify(context.Background(), "text", "")
	assert.False(t, got)
	assert.Equal(t, 1, classifier.calls)
}

func TestGatewayRateLimitDoesNotRetry(t *testing.T) {
	classifier := &scriptedClassifier{testingT: t, responses: []func() (*ClassificationResult, error){
		fail(ErrRateLimited),
	}}
	gateway := NewClassificationGateway(classifier, nil, zap.NewNop())

	_, got := gateway.Classify(context.Background(), "text", "")
	assert.False(t, got)
	assert.Equal(t, 1, classifier.calls)
}

func TestGatewayCacheHitSkipsClassifier(t *testing.T) {
	classifier := &scriptedClassifier{testingT: t}
	cache := newFakeCache()
	cache.entries["key1"] = invoiceResult
	gateway := NewClassificationGateway(classifier, cache, zap.NewNop())

	result, got := gateway.Classify(context.Background(), "text", "key1")
	require.True(t, got)
	assert.Equal(t, invoiceResult, result)
	assert.Equal(t, 0, classifier.calls)
}

func TestGatewaySuccessPopulatesCache(t *testing.T) {
	classifier := &scriptedClassifier{testingT: t, responses: []func() (*ClassificationResult, error){ok}}
	cache := newFakeCache()
	gateway := NewClassificationGateway(classifier, cache, zap.NewNop())

	_, got := gateway.Classify(context.Background(), "text", "key1")
	require.True(t, got)
	assert.Equal(t, invoiceResult, cache.entries["key1"])
}

func TestContentKeyIsStable(t *testing.T) {
	a := ContentKey([]byte("same bytes"))
	b := ContentKey([]byte("same bytes"))
	c := ContentKey([]byte("other bytes"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
