package core

import (
	"encoding/json"
	"strings"
)

// AttachmentCandidate is a qualifying MIME part pulled out of a message.
// It lives only for the duration of one message's processing.
type AttachmentCandidate struct {
	Filename string
	Content  []byte
}

// MessageMeta carries the header fields the store needs alongside an attachment.
type MessageMeta struct {
	UID     string
	Subject string
	Date    string
}

// ClassificationResult is the structured verdict returned by the LLM for one
// attachment. Fields are never empty: missing values fall back to their
// documented defaults.
type ClassificationResult struct {
	IsInvoice     bool   `json:"is_invoice"`
	Vendor        string `json:"vendor"`
	InvoiceNumber string `json:"invoice_number"`
	Date          string `json:"date"`
	TotalAmount   string `json:"total_amount"`
	Currency      string `json:"currency"`
}

// NotInvoice returns the default "not an invoice" result.
func NotInvoice() *ClassificationResult {
	return &ClassificationResult{
		IsInvoice:     false,
		Vendor:        "unknown",
		InvoiceNumber: "unknown",
		Date:          "unknown",
		TotalAmount:   "0",
		Currency:      "EUR",
	}
}

// ParseClassification parses an LLM response body into a ClassificationResult.
// Models occasionally wrap the JSON object in prose, so when a direct unmarshal
// fails the text between the first '{' and the last '}' is tried as well.
// Missing or blank fields are coerced to their defaults; a null never escapes.
// Returns ErrBadResponse when no JSON object can be recovered.
func ParseClassification(body []byte) (*ClassificationResult, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return nil, ErrBadResponse
	}

	var raw struct {
		IsInvoice     bool   `json:"is_invoice"`
		Vendor        string `json:"vendor"`
		InvoiceNumber string `json:"invoice_number"`
		Date          string `json:"date"`
		TotalAmount   string `json:"total_amount"`
		Currency      string `json:"currency"`
	}

	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return nil, ErrBadResponse
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
			return nil, ErrBadResponse
		}
	}

	return &ClassificationResult{
		IsInvoice:     raw.IsInvoice,
		Vendor:        coerce(raw.Vendor, "unknown"),
		InvoiceNumber: coerce(raw.InvoiceNumber, "unknown"),
		Date:          coerce(raw.Date, "unknown"),
		TotalAmount:   coerce(raw.TotalAmount, "0"),
		Currency:      strings.ToUpper(coerce(raw.Currency, "EUR")),
	}, nil
}

func coerce(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

// HasMetadata reports whether both invoice number and date were recognized,
// which decides the output filename scheme.
func (r *ClassificationResult) HasMetadata() bool {
	return r.InvoiceNumber != "" && r.InvoiceNumber != "unknown" &&
		r.Date != "" && r.Date != "unknown"
}

// InvoiceRecord is one row of the run summary. Appended once per accepted
// invoice and never mutated afterwards.
type InvoiceRecord struct {
	Vendor           string
	InvoiceNumber    string
	Date             string
	TotalAmount      string
	Currency         string
	OriginalFilename string
	EmailSubject     string
	EmailDate        string
	SavedPath        string
}
