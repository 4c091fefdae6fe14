// Package taxexport is a post-processing step that sorts saved invoices into
// a deductible and a non-deductible folder using keyword heuristics. No
// second model call is made.
package taxexport

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/d0npedro/mailinvoicegrabber/internal/core"
	"github.com/d0npedro/mailinvoicegrabber/internal/storage"
)

const (
	FolderDeductible    = "ABSETZBAR"
	FolderNotDeductible = "NICHT_ABSETZBAR"
)

var invoiceExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".docx": true,
}

// Summary holds the result counters of one export run.
type Summary struct {
	Total         int
	Deductible    int
	NotDeductible int
	Errors        int
}

// Exporter copies invoices from the invoice tree into the two tax folders.
type Exporter struct {
	invoicesRoot string
	outputRoot   string
	logger       *zap.Logger
}

// NewExporter returns an exporter over the given invoice tree.
func NewExporter(invoicesRoot, outputRoot string, logger *zap.Logger) *Exporter {
	return &Exporter{
		invoicesRoot: invoicesRoot,
		outputRoot:   outputRoot,
		logger:       logger,
	}
}

// Export walks the invoice tree and copies every invoice file into the
// deductible or non-deductible folder. Records from the current run improve
// the signal; files without a record fall back to a path heuristic. Failed
// copies are counted as errors and excluded from the totals.
func (e *Exporter) Export(records []core.InvoiceRecord) (Summary, error) {
	deductibleDir := filepath.Join(e.outputRoot, FolderDeductible)
	notDeductibleDir := filepath.Join(e.outputRoot, FolderNotDeductible)
	if err := os.MkdirAll(deductibleDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("creating export directory: %w", err)
	}
	if err := os.MkdirAll(notDeductibleDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("creating export directory: %w", err)
	}

	// Record-based signals are keyed by saved path and beat the path
	// heuristic when available.
	signals := make(map[string]string)
	for _, rec := range records {
		if rec.SavedPath != "" && rec.SavedPath != storage.DryRunPath {
			signals[rec.SavedPath] = signalFromRecord(rec)
		}
	}

	files, err := e.collectInvoiceFiles()
	if err != nil {
		e.logger.Warn("Invoice tree not readable, tax export skipped",
			zap.String("root", e.invoicesRoot), zap.Error(err))
		return Summary{}, nil
	}
	if len(files) == 0 {
		e.logger.Info("No invoice files found, tax export skipped",
			zap.String("root", e.invoicesRoot))
		return Summary{}, nil
	}

	var summary Summary
	for _, path := range files {
		signal, ok := signals[path]
		if !ok {
			signal = e.signalFromPath(path)
		}

		destDir := notDeductibleDir
		label := FolderNotDeductible
		if isDeductible(signal) {
			destDir = deductibleDir
			label = FolderDeductible
		}

		dest, err := safeCopy(path, destDir)
		if err != nil {
			e.logger.Error("Copy failed",
				zap.String("src", path), zap.String("dest_dir", destDir), zap.Error(err))
			summary.Errors++
			continue
		}

		summary.Total++
		if label == FolderDeductible {
			summary.Deductible++
		} else {
			summary.NotDeductible++
		}
		e.logger.Debug("Invoice exported",
			zap.String("classification", label),
			zap.String("src", filepath.Base(path)),
			zap.String("dest", dest))
	}

	return summary, nil
}

func (e *Exporter) collectInvoiceFiles() ([]string, error) {
	if _, err := os.Stat(e.invoicesRoot); err != nil {
		return nil, err
	}

	var files []string
	err := filepath.WalkDir(e.invoicesRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && invoiceExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// isDeductible reports whether the signal contains any deductible keyword.
func isDeductible(signal string) bool {
	lowered := strings.ToLower(signal)
	for _, kw := range deductibleKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func signalFromRecord(rec core.InvoiceRecord) string {
	var parts []string
	for _, s := range []string{rec.Vendor, rec.OriginalFilename, rec.EmailSubject, rec.InvoiceNumber} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// signalFromPath uses the directory names and the file stem relative to the
// invoice tree, enough for standalone runs without records.
func (e *Exporter) signalFromPath(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	rel, err := filepath.Rel(e.invoicesRoot, path)
	if err != nil {
		return stem
	}
	parts := strings.Split(filepath.Dir(rel), string(filepath.Separator))
	parts = append(parts, stem)
	return strings.Join(parts, " ")
}

// safeCopy copies src into destDir, appending a numeric suffix when the name
// is taken. Returns the final destination path.
func safeCopy(src, destDir string) (string, error) {
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	dest := filepath.Join(destDir, base)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			break
		}
		dest = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dest, nil
}
