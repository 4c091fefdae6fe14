package extract

import (
	"bytes"
	"context"
	"os/exec"

	"go.uber.org/zap"
)

// extractImage runs OCR over the image bytes. Without tesseract installed
// images yield nothing.
func (e *Extractor) extractImage(ctx context.Context, filename string, data []byte) string {
	if !e.haveTesseract {
		return ""
	}

	cmd := exec.CommandContext(ctx, "tesseract", "stdin", "stdout", "-l", e.ocrLanguages)
	cmd.Stdin = bytes.NewReader(data)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		e.logger.Warn("OCR failed",
			zap.String("filename", filename), zap.Error(err))
		return ""
	}
	return out.String()
}
