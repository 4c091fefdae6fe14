// Package extract turns attachment bytes into plain text suitable for
// classification. PDF, image and word-processing formats each get their own
// backend; external tools are probed once at startup and skipped when absent.
package extract

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/d0npedro/mailinvoicegrabber/internal/config"
	"github.com/d0npedro/mailinvoicegrabber/internal/utils"
)

// Extractor dispatches on file extension and normalizes the result.
type Extractor struct {
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	maxTextLength int
	ocrLanguages  string

	havePdftotext bool
	haveTesseract bool
}

// New builds an extractor and probes the optional external tools. A missing
// tool downgrades the formats that need it, it is not an error.
func New(cfg *config.Config, logger *zap.Logger) *Extractor {
	e := &Extractor{
		logger:        logger,
		textProcessor: utils.NewTextProcessor(logger),
		maxTextLength: cfg.GetInt("extract.max_text_length"),
		ocrLanguages:  cfg.GetString("extract.ocr_languages"),
	}

	if _, err := exec.LookPath("pdftotext"); err == nil {
		e.havePdftotext = true
	} else {
		logger.Info("pdftotext not found, PDF extraction relies on the built-in parser only")
	}
	if _, err := exec.LookPath("tesseract"); err == nil {
		e.haveTesseract = true
	} else {
		logger.Info("tesseract not found, image attachments will be skipped")
	}

	return e
}

// Extract returns the attachment's text and whether anything usable was
// found. Unsupported extensions and empty results report absent.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, bool) {
	var text string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text = e.extractPDF(ctx, filename, data)
	case ".png", ".jpg", ".jpeg":
		text = e.extractImage(ctx, filename, data)
	case ".docx":
		text = e.extractDocx(filename, data)
	default:
		e.logger.Debug("No extractor for file type", zap.String("filename", filename))
		return "", false
	}

	text = e.textProcessor.ProcessText(text, e.maxTextLength)
	if text == "" {
		return "", false
	}
	return text, true
}
