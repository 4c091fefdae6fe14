package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/d0npedro/mailinvoicegrabber/internal/core"
)

func testStore(t *testing.T, label string, dryRun bool) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store := NewStore(Options{
		BaseDir:       filepath.Join(dir, "invoices"),
		ReportDir:     dir,
		ProcessedPath: filepath.Join(dir, "processed.json"),
		Year:          2024,
		AccountLabel:  label,
		DryRun:        dryRun,
	}, zap.NewNop())
	return store, dir
}

func classified() *core.ClassificationResult {
	return &core.ClassificationResult{
		IsInvoice:     true,
		Vendor:        "JetBrains",
		InvoiceNumber: "RE-2024-001",
		Date:          "2024-03-15",
		TotalAmount:   "119.00",
		Currency:      "EUR",
	}
}

func TestSaveInvoiceWithMetadata(t *testing.T) {
	store, dir := testStore(t, "", false)

	store.SaveInvoice("original.pdf", []byte("pdf bytes"), classified(), "Ihre Rechnung", "2024-03-15")

	want := filepath.Join(dir, "invoices", "2024", "RE-2024-001_2024-03-15_119.00_EUR.pdf")
	content, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(content))

	require.Len(t, store.Records(), 1)
	rec := store.Records()[0]
	assert.Equal(t, "original.pdf", rec.OriginalFilename)
	assert.Equal(t, want, rec.SavedPath)
	assert.Equal(t, 1, store.InvoiceCount())
}

func TestSaveInvoiceWithoutMetadataUsesOriginalStem(t *testing.T) {
	store, dir := testStore(t, "", false)

	result := classified()
	result.InvoiceNumber = "unknown"

	store.SaveInvoice("Monats Abrechnung.pdf", []byte("x"), result, "s", "d")

	want := filepath.Join(dir, "invoices", "2024", "Monats_Abrechnung.pdf")
	_, err := os.Stat(want)
	assert.NoError(t, err)
}

func TestSaveInvoiceCollisionGetsSuffix(t *testing.T) {
	store, dir := testStore(t, "", false)

	store.SaveInvoice("a.pdf", []byte("first"), classified(), "s", "d")
	store.SaveInvoice("b.pdf", []byte("second"), classified(), "s", "d")

	base := filepath.Join(dir, "invoices", "2024")
	first, err := os.ReadFile(filepath.Join(base, "RE-2024-001_2024-03-15_119.00_EUR.pdf"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(base, "RE-2024-001_2024-03-15_119.00_EUR_1.pdf"))
	require.NoError(t, err)

	assert.Equal(t, "first", string(first))
	assert.Equal(t, "second", string(second))
}

func TestSaveInvoiceLabelledAccountGetsOwnDirectory(t *testing.T) {
	store, dir := testStore(t, "work", false)

	store.SaveInvoice("a.pdf", []byte("x"), classified(), "s", "d")

	want := filepath.Join(dir, "invoices", "work", "2024", "RE-2024-001_2024-03-15_119.00_EUR.pdf")
	_, err := os.Stat(want)
	assert.NoError(t, err)
}

func TestSaveInvoiceDryRunWritesNothing(t *testing.T) {
	store, dir := testStore(t, "", true)

	store.SaveInvoice("a.pdf", []byte("x"), classified(), "s", "d")

	_, err := os.Stat(filepath.Join(dir, "invoices"))
	assert.True(t, os.IsNotExist(err))

	require.Len(t, store.Records(), 1)
	assert.Equal(t, DryRunPath, store.Records()[0].SavedPath)
	assert.Equal(t, 1, store.InvoiceCount())
}

func TestSaveInvoiceMissingExtensionDefaultsToPdf(t *testing.T) {
	store, dir := testStore(t, "", false)

	store.SaveInvoice("attachment", []byte("x"), classified(), "s", "d")

	want := filepath.Join(dir, "invoices", "2024", "RE-2024-001_2024-03-15_119.00_EUR.pdf")
	_, err := os.Stat(want)
	assert.NoError(t, err)
}

func TestSaveInvoiceHostileMetadataStaysInsideTree(t *testing.T) {
	store, dir := testStore(t, "", false)

	result := classified()
	result.InvoiceNumber = "../../etc/passwd"
	result.TotalAmount = "1.00"

	store.SaveInvoice("a.pdf", []byte("x"), result, "s", "d")

	want := filepath.Join(dir, "invoices", "2024", "etc_passwd_2024-03-15_1.00_EUR.pdf")
	_, err := os.Stat(want)
	assert.NoError(t, err)
	assert.Equal(t, 0, store.ErrorCount())

	// The year directory holds exactly the one sanitized file and nothing
	// escaped to the surrounding tree.
	var files []string
	require.NoError(t, filepath.Walk(filepath.Join(dir, "invoices"), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	}))
	assert.Equal(t, []string{want}, files)
	_, err = os.Stat(filepath.Join(dir, "etc"))
	assert.True(t, os.IsNotExist(err))
}

func TestNextFreePathUnreadableCandidateDoesNotLoop(t *testing.T) {
	dir := t.TempDir()
	// A plain file where a directory is expected makes every stat under it
	// fail with something other than "not exist".
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	got := nextFreePath(blocker, "name", ".pdf")
	assert.Equal(t, filepath.Join(blocker, "name.pdf"), got)
}

func TestPathContained(t *testing.T) {
	dir := t.TempDir()

	assert.True(t, pathContained(dir, filepath.Join(dir, "a.pdf")))
	assert.True(t, pathContained(dir, filepath.Join(dir, "sub", "a.pdf")))
	assert.False(t, pathContained(dir, filepath.Join(dir, "..", "escape.pdf")))
	assert.False(t, pathContained(dir, "/etc/passwd"))
}

func TestMarkProcessedPersistsAndReloads(t *testing.T) {
	store, dir := testStore(t, "", false)

	store.MarkProcessed("101")
	store.MarkProcessed("42")

	reloaded := NewStore(Options{
		BaseDir:       filepath.Join(dir, "invoices"),
		ReportDir:     dir,
		ProcessedPath: filepath.Join(dir, "processed.json"),
		Year:          2024,
	}, zap.NewNop())

	assert.True(t, reloaded.IsProcessed("101"))
	assert.True(t, reloaded.IsProcessed("42"))
	assert.False(t, reloaded.IsProcessed("999"))
}

func TestMarkProcessedIsIdempotent(t *testing.T) {
	store, dir := testStore(t, "", false)

	store.MarkProcessed("101")
	before, err := os.ReadFile(filepath.Join(dir, "processed.json"))
	require.NoError(t, err)

	store.MarkProcessed("101")
	after, err := os.ReadFile(filepath.Join(dir, "processed.json"))
	require.NoError(t, err)

	assert.Equal(t, string(before), string(after))
}

func TestMarkProcessedNamespacesDoNotClobber(t *testing.T) {
	dir := t.TempDir()
	processedPath := filepath.Join(dir, "processed.json")

	mk := func(label string) *Store {
		return NewStore(Options{
			BaseDir:       filepath.Join(dir, "invoices"),
			ReportDir:     dir,
			ProcessedPath: processedPath,
			Year:          2024,
			AccountLabel:  label,
		}, zap.NewNop())
	}

	work := mk("work")
	private := mk("private")

	work.MarkProcessed("1")
	private.MarkProcessed("2")
	work.MarkProcessed("3")

	raw, err := os.ReadFile(processedPath)
	require.NoError(t, err)

	var all map[string][]string
	require.NoError(t, json.Unmarshal(raw, &all))
	assert.Equal(t, []string{"1", "3"}, all["work:2024"])
	assert.Equal(t, []string{"2"}, all["private:2024"])
}

func TestCorruptProcessedFileDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	processedPath := filepath.Join(dir, "processed.json")
	require.NoError(t, os.WriteFile(processedPath, []byte("{not json"), 0o644))

	store := NewStore(Options{
		BaseDir:       dir,
		ProcessedPath: processedPath,
		Year:          2024,
	}, zap.NewNop())

	assert.False(t, store.IsProcessed("1"))
	store.MarkProcessed("1")
	assert.True(t, store.IsProcessed("1"))
}

func TestWriteSummary(t *testing.T) {
	store, dir := testStore(t, "", false)
	store.SaveInvoice("a.pdf", []byte("x"), classified(), "Ihre Rechnung", "2024-03-15")

	require.NoError(t, store.WriteSummary())

	raw, err := os.ReadFile(filepath.Join(dir, "invoices_summary_2024.csv"))
	require.NoError(t, err)

	content := string(raw)
	assert.Contains(t, content, "vendor,invoice_number,date,total_amount,currency,original_filename,email_subject,email_date,saved_path")
	assert.Contains(t, content, "JetBrains,RE-2024-001,2024-03-15,119.00,EUR,a.pdf,Ihre Rechnung,2024-03-15")
}

func TestWriteSummarySkippedWhenEmpty(t *testing.T) {
	store, dir := testStore(t, "", false)

	require.NoError(t, store.WriteSummary())

	_, err := os.Stat(filepath.Join(dir, "invoices_summary_2024.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteSummaryLabelledFilename(t *testing.T) {
	store, dir := testStore(t, "work", false)
	store.SaveInvoice("a.pdf", []byte("x"), classified(), "s", "d")

	require.NoError(t, store.WriteSummary())

	_, err := os.Stat(filepath.Join(dir, "invoices_summary_work_2024.csv"))
	assert.NoError(t, err)
}
