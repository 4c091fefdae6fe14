package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/d0npedro/mailinvoicegrabber/internal/core"
	"github.com/d0npedro/mailinvoicegrabber/internal/utils"
)

// DryRunPath is the sentinel recorded instead of a real path in dry-run mode.
const DryRunPath = "(dry-run)"

// processedFileMu serializes read-modify-write cycles on the shared dedup
// file when multiple account stores run in the same process.
var processedFileMu sync.Mutex

// Options configures a Store for one (account, year) pair.
type Options struct {
	// BaseDir is the root of the invoice tree.
	BaseDir string
	// ReportDir is where the summary CSV lands. Defaults to ".".
	ReportDir string
	// ProcessedPath is the durable dedup file shared by all accounts.
	ProcessedPath string
	// Year being scanned; part of the namespace key and the directory layout.
	Year int
	// AccountLabel namespaces multi-account state. Empty keeps the
	// single-account legacy layout (no label directory, bare year key).
	AccountLabel string
	// DryRun disables all filesystem writes for invoices.
	DryRun bool
}

// Store owns the processed-identifier set, the saved-invoice tree, the run
// counters and the collected records. It is the only writer of durable state.
type Store struct {
	opts        Options
	yearKey     string
	summaryPath string
	logger      *zap.Logger

	processed map[string]bool
	records   []core.InvoiceRecord

	processedCount  int
	attachmentCount int
	invoiceCount    int
	errorCount      int
}

// NewStore loads the durable dedup state and returns a ready store. A missing
// or corrupt dedup file degrades to an empty set, never an error.
func NewStore(opts Options, logger *zap.Logger) *Store {
	if opts.ReportDir == "" {
		opts.ReportDir = "."
	}
	if opts.ProcessedPath == "" {
		opts.ProcessedPath = "processed.json"
	}

	yearKey := strconv.Itoa(opts.Year)
	summaryName := fmt.Sprintf("invoices_summary_%d.csv", opts.Year)
	if opts.AccountLabel != "" {
		yearKey = opts.AccountLabel + ":" + strconv.Itoa(opts.Year)
		summaryName = fmt.Sprintf("invoices_summary_%s_%d.csv", opts.AccountLabel, opts.Year)
	}

	s := &Store{
		opts:        opts,
		yearKey:     yearKey,
		summaryPath: filepath.Join(opts.ReportDir, summaryName),
		logger:      logger,
		processed:   make(map[string]bool),
	}

	all := s.loadProcessedFile()
	for _, uid := range all[s.yearKey] {
		s.processed[uid] = true
	}
	if len(s.processed) > 0 {
		logger.Debug("Loaded processed identifiers",
			zap.String("namespace", s.yearKey),
			zap.Int("count", len(s.processed)))
	}
	return s
}

func (s *Store) loadProcessedFile() map[string][]string {
	data, err := os.ReadFile(s.opts.ProcessedPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Could not read processed file, starting with empty state",
				zap.String("path", s.opts.ProcessedPath), zap.Error(err))
		}
		return map[string][]string{}
	}

	var all map[string][]string
	if err := json.Unmarshal(data, &all); err != nil {
		s.logger.Warn("Processed file is corrupt, starting with empty state",
			zap.String("path", s.opts.ProcessedPath), zap.Error(err))
		return map[string][]string{}
	}
	return all
}

// IsProcessed reports whether the identifier was handled in a previous run.
func (s *Store) IsProcessed(uid string) bool {
	return s.processed[uid]
}

// MarkProcessed durably records the identifier. Idempotent: marking an
// already-known identifier changes nothing on disk.
func (s *Store) MarkProcessed(uid string) {
	if s.processed[uid] {
		return
	}
	s.processed[uid] = true
	s.persistProcessed()
}

// persistProcessed merges this store's namespace into the shared file and
// rewrites it via a temp file. Other namespaces are re-read first so parallel
// account stores never clobber each other's marks.
func (s *Store) persistProcessed() {
	processedFileMu.Lock()
	defer processedFileMu.Unlock()

	all := s.loadProcessedFile()
	uids := make([]string, 0, len(s.processed))
	for uid := range s.processed {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	all[s.yearKey] = uids

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		s.logger.Error("Could not encode processed state", zap.Error(err))
		return
	}

	tmp := s.opts.ProcessedPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Error("Could not write processed file",
			zap.String("path", tmp), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, s.opts.ProcessedPath); err != nil {
		s.logger.Error("Could not replace processed file",
			zap.String("path", s.opts.ProcessedPath), zap.Error(err))
	}
}

// IncrementProcessed counts a fully handled message.
func (s *Store) IncrementProcessed() { s.processedCount++ }

// IncrementAttachments counts a scanned attachment candidate.
func (s *Store) IncrementAttachments() { s.attachmentCount++ }

// IncrementErrors counts an isolated item failure.
func (s *Store) IncrementErrors() { s.errorCount++ }

func (s *Store) ProcessedCount() int  { return s.processedCount }
func (s *Store) AttachmentCount() int { return s.attachmentCount }
func (s *Store) InvoiceCount() int    { return s.invoiceCount }
func (s *Store) ErrorCount() int      { return s.errorCount }

// Records returns a copy of all invoice records collected this run.
func (s *Store) Records() []core.InvoiceRecord {
	out := make([]core.InvoiceRecord, len(s.records))
	copy(out, s.records)
	return out
}

// SummaryPath is where WriteSummary puts the CSV.
func (s *Store) SummaryPath() string { return s.summaryPath }

// SaveInvoice persists an accepted invoice under
// <base>/[<label>/]<year>/<name><ext>. The resolved path must stay inside the
// year directory; a save that would escape is rejected and counted as an
// error. Existing files are never overwritten, a numeric suffix is appended
// instead. In dry-run mode nothing is written but the record is still kept.
func (s *Store) SaveInvoice(filename string, data []byte, classification *core.ClassificationResult, emailSubject, emailDate string) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".pdf"
	}

	outputDir := filepath.Join(s.opts.BaseDir, strconv.Itoa(s.opts.Year))
	if s.opts.AccountLabel != "" {
		outputDir = filepath.Join(s.opts.BaseDir, s.opts.AccountLabel, strconv.Itoa(s.opts.Year))
	}

	var name string
	if classification.HasMetadata() {
		name = strings.Join([]string{
			utils.SanitizeFilename(classification.InvoiceNumber),
			utils.SanitizeFilename(classification.Date),
			utils.SanitizeFilename(classification.TotalAmount),
			utils.SanitizeFilename(classification.Currency),
		}, "_")
	} else {
		stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		name = utils.SanitizeFilename(stem)
	}

	outPath := filepath.Join(outputDir, name+ext)
	if !pathContained(outputDir, outPath) {
		s.logger.Error("Save path escapes output directory, rejecting",
			zap.String("filename", filename),
			zap.String("path", outPath))
		s.errorCount++
		return
	}

	savedPath := DryRunPath
	if !s.opts.DryRun {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			s.logger.Error("Could not create output directory",
				zap.String("dir", outputDir), zap.Error(err))
			s.errorCount++
			return
		}

		outPath = nextFreePath(outputDir, name, ext)
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			s.logger.Error("Could not write invoice",
				zap.String("path", outPath), zap.Error(err))
			s.errorCount++
			return
		}
		s.logger.Info("Invoice saved", zap.String("path", outPath))
		savedPath = outPath
	}

	s.invoiceCount++
	s.records = append(s.records, core.InvoiceRecord{
		Vendor:           classification.Vendor,
		InvoiceNumber:    classification.InvoiceNumber,
		Date:             classification.Date,
		TotalAmount:      classification.TotalAmount,
		Currency:         classification.Currency,
		OriginalFilename: filename,
		EmailSubject:     emailSubject,
		EmailDate:        emailDate,
		SavedPath:        savedPath,
	})
}

// pathContained reports whether path resolves to a descendant of dir.
func pathContained(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// nextFreePath appends _1, _2, ... until the name is unused in dir. Any stat
// failure counts as unused so a broken directory cannot spin the loop; the
// write that follows surfaces the real error.
func nextFreePath(dir, name, ext string) string {
	path := filepath.Join(dir, name+ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); err != nil {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", name, counter, ext))
	}
}
