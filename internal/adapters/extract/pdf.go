package extract

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// extractPDF tries the built-in parser first and falls back to pdftotext for
// documents the parser cannot handle.
func (e *Extractor) extractPDF(ctx context.Context, filename string, data []byte) string {
	text, err := parsePDF(data)
	if err != nil {
		e.logger.Debug("Built-in PDF parser failed",
			zap.String("filename", filename), zap.Error(err))
	}
	if strings.TrimSpace(text) != "" {
		return text
	}

	if !e.havePdftotext {
		return ""
	}
	out, err := e.runPdftotext(ctx, data)
	if err != nil {
		e.logger.Warn("pdftotext failed",
			zap.String("filename", filename), zap.Error(err))
		return ""
	}
	return out
}

// parsePDF walks every page and joins the plain text. The parser panics on
// some malformed documents, the recover turns that into an empty result so
// the fallback can run.
func parsePDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = nil
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (e *Extractor) runPdftotext(ctx context.Context, data []byte) (string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", "-", "-")
	cmd.Stdin = bytes.NewReader(data)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return out.String(), nil
}
