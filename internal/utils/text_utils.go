package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// TextProcessor normalizes extracted document text before it is handed to the
// classifier.
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText truncates text to at most maxChars characters, never splitting
// a multi-byte sequence. maxChars <= 0 means no limit.
func (tp *TextProcessor) TruncateText(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	runes := []rune(text)
	truncated := string(runes[:maxChars])

	tp.logger.Debug("Document text truncated",
		zap.Int("original_chars", len(runes)),
		zap.Int("max_chars", maxChars))

	return truncated
}

// SanitizeUTF8 drops invalid UTF-8 sequences from the string.
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// ProcessText trims, sanitizes and truncates in one pass. An empty result
// stays empty so the caller can treat it as "nothing extracted".
func (tp *TextProcessor) ProcessText(text string, maxChars int) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	return tp.TruncateText(tp.SanitizeUTF8(trimmed), maxChars)
}
