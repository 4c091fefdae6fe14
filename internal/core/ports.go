package core

import (
	"context"
)

// MailSource is a read-only view of one mailbox folder, identifier-addressed.
type MailSource interface {
	// SearchYear returns the identifiers of all messages whose internal date
	// falls within the given calendar year, in server order.
	SearchYear(ctx context.Context, year int) ([]string, error)

	// MessageSize fetches only the size of a message in bytes. Errors when
	// the server did not report one.
	MessageSize(ctx context.Context, uid string) (int64, error)

	// FetchMessage downloads the full raw RFC 822 message.
	FetchMessage(ctx context.Context, uid string) ([]byte, error)

	Close() error
}

// Classifier performs a single classification attempt against an LLM provider.
// Errors are mapped onto the sentinel taxonomy in errors.go; the retry policy
// lives in ClassificationGateway, not here.
type Classifier interface {
	Classify(ctx context.Context, text string) (*ClassificationResult, error)
}

// Extractor turns attachment bytes into plain text. The boolean is false when
// nothing could be extracted; a returned string is never empty.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, bool)
}

// InvoiceStore tracks processed message identifiers, persists accepted
// invoices, and owns the per-run counters.
type InvoiceStore interface {
	IsProcessed(uid string) bool
	MarkProcessed(uid string)

	SaveInvoice(filename string, data []byte, classification *ClassificationResult, emailSubject, emailDate string)

	IncrementProcessed()
	IncrementAttachments()
	IncrementErrors()

	InvoiceCount() int
	ErrorCount() int
}

// ClassificationCache memoizes classification results keyed by a content hash,
// so byte-identical attachments are classified once per TTL window.
type ClassificationCache interface {
	Get(ctx context.Context, key string) (*ClassificationResult, bool)
	Set(ctx context.Context, key string, result *ClassificationResult) error
	Close() error
}
