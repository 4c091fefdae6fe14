package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

var summaryHeader = []string{
	"vendor",
	"invoice_number",
	"date",
	"total_amount",
	"currency",
	"original_filename",
	"email_subject",
	"email_date",
	"saved_path",
}

// WriteSummary writes the collected records as a CSV report. When nothing was
// collected no file is produced, an existing report from an earlier run is
// left alone.
func (s *Store) WriteSummary() error {
	if len(s.records) == 0 {
		s.logger.Info("No invoices collected, skipping summary report")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.summaryPath), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	f, err := os.Create(s.summaryPath)
	if err != nil {
		return fmt.Errorf("creating summary report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(summaryHeader); err != nil {
		return fmt.Errorf("writing summary header: %w", err)
	}
	for _, r := range s.records {
		row := []string{
			r.Vendor,
			r.InvoiceNumber,
			r.Date,
			r.TotalAmount,
			r.Currency,
			r.OriginalFilename,
			r.EmailSubject,
			r.EmailDate,
			r.SavedPath,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing summary row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing summary report: %w", err)
	}

	s.logger.Info("Summary report written",
		zap.String("path", s.summaryPath),
		zap.Int("invoices", len(s.records)))
	return nil
}
