package core

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"

	"github.com/d0npedro/mailinvoicegrabber/internal/utils"
)

const (
	// maxMessageBytes pre-screens messages by RFC822.SIZE before download.
	maxMessageBytes = 60 * 1024 * 1024

	// maxAttachmentBytes caps a single decoded attachment.
	maxAttachmentBytes = 20 * 1024 * 1024

	// progressInterval controls how often a progress line is logged.
	progressInterval = 50
)

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".docx": true,
}

// ScanService walks one mailbox folder for a calendar year and drives the
// extraction, classification and persistence pipeline per attachment.
// Messages are processed strictly one at a time.
type ScanService struct {
	source    MailSource
	extractor Extractor
	gateway   *ClassificationGateway
	store     InvoiceStore
	logger    *zap.Logger
}

// NewScanService creates a new scan service.
func NewScanService(
	source MailSource,
	extractor Extractor,
	gateway *ClassificationGateway,
	store InvoiceStore,
	logger *zap.Logger,
) *ScanService {
	return &ScanService{
		source:    source,
		extractor: extractor,
		gateway:   gateway,
		store:     store,
		logger:    logger,
	}
}

// ScanYear enumerates every message identifier in the year and processes the
// ones not seen before. Message-level failures are logged, counted and never
// abort the loop; only the initial range search can fail the whole scan.
// A cancelled context stops after the in-flight message, with its dedup mark
// already persisted.
func (s *ScanService) ScanYear(ctx context.Context, year int) error {
	uids, err := s.source.SearchYear(ctx, year)
	if err != nil {
		return fmt.Errorf("failed to search mailbox for %d: %w", year, err)
	}
	total := len(uids)
	s.logger.Info("Mailbox search complete",
		zap.Int("year", year),
		zap.Int("messages", total))

	for idx, uid := range uids {
		if ctx.Err() != nil {
			s.logger.Info("Scan interrupted, progress is saved",
				zap.Int("position", idx),
				zap.Int("total", total))
			return ctx.Err()
		}

		if s.store.IsProcessed(uid) {
			s.logger.Debug("Message already processed, skipping",
				zap.String("uid", uid))
			continue
		}

		if err := s.processMessage(ctx, uid); err != nil {
			s.logger.Error("Unhandled error processing message",
				zap.String("uid", uid),
				zap.Int("position", idx+1),
				zap.Int("total", total),
				zap.Error(err))
			s.store.IncrementErrors()
		}
		// Always mark, success or failure, so this UID is never fetched again.
		s.store.MarkProcessed(uid)

		if (idx+1)%progressInterval == 0 {
			s.logger.Info("Scan progress",
				zap.Int("position", idx+1),
				zap.Int("total", total),
				zap.Int("invoices", s.store.InvoiceCount()),
				zap.Int("errors", s.store.ErrorCount()))
		}
	}

	return nil
}

func (s *ScanService) processMessage(ctx context.Context, uid string) error {
	size, err := s.source.MessageSize(ctx, uid)
	if err != nil {
		s.logger.Warn("Size pre-check failed, fetching anyway",
			zap.String("uid", uid), zap.Error(err))
	} else if size > maxMessageBytes {
		s.logger.Warn("Message exceeds size ceiling, skipping",
			zap.String("uid", uid),
			zap.Int64("size_mb", size/1024/1024),
			zap.Int64("limit_mb", maxMessageBytes/1024/1024))
		return nil
	}

	raw, err := s.source.FetchMessage(ctx, uid)
	if err != nil {
		// Recoverable: skip this message, it still gets marked processed.
		s.logger.Warn("Fetch failed, skipping message",
			zap.String("uid", uid), zap.Error(err))
		return nil
	}

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to parse MIME structure: %w", err)
	}

	subject := envelope.GetHeader("Subject")
	if subject == "" {
		subject = "(no subject)"
	}
	meta := MessageMeta{
		UID:     uid,
		Subject: subject,
		Date:    envelope.GetHeader("Date"),
	}

	found := false
	for _, candidate := range s.collectAttachments(envelope) {
		found = true
		s.store.IncrementAttachments()
		s.logger.Info("Attachment found",
			zap.String("uid", uid),
			zap.String("filename", candidate.Filename),
			zap.Int("size_kb", len(candidate.Content)/1024),
			zap.String("subject", truncateForLog(subject, 60)))

		s.handleAttachment(ctx, candidate, meta)
	}

	if !found {
		s.logger.Debug("No qualifying attachments", zap.String("uid", uid))
	}

	s.store.IncrementProcessed()
	return nil
}

// collectAttachments applies the acceptance conditions to every leaf part:
// a decodable filename, an allowed extension, and a non-empty payload within
// the size cap. Everything else is skipped.
func (s *ScanService) collectAttachments(envelope *enmime.Envelope) []AttachmentCandidate {
	parts := make([]*enmime.Part, 0,
		len(envelope.Attachments)+len(envelope.Inlines)+len(envelope.OtherParts))
	parts = append(parts, envelope.Attachments...)
	parts = append(parts, envelope.Inlines...)
	parts = append(parts, envelope.OtherParts...)

	var candidates []AttachmentCandidate
	for _, part := range parts {
		filename := strings.TrimSpace(part.FileName)
		if filename == "" {
			continue
		}
		if !utils.AllowedExtension(filename, allowedExtensions) {
			s.logger.Debug("Extension not allowed", zap.String("filename", filename))
			continue
		}
		if len(part.Content) == 0 {
			s.logger.Debug("Empty payload", zap.String("filename", filename))
			continue
		}
		if len(part.Content) > maxAttachmentBytes {
			s.logger.Warn("Attachment exceeds size limit, skipping",
				zap.String("filename", filename),
				zap.Int("size_mb", len(part.Content)/1024/1024))
			continue
		}
		candidates = append(candidates, AttachmentCandidate{
			Filename: filename,
			Content:  part.Content,
		})
	}
	return candidates
}

// handleAttachment runs extract -> classify -> save for one candidate. Any
// panic inside the sub-pipeline (extraction backends parse hostile input) is
// contained here so sibling attachments still get their turn.
func (s *ScanService) handleAttachment(ctx context.Context, candidate AttachmentCandidate, meta MessageMeta) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Attachment pipeline panicked",
				zap.String("uid", meta.UID),
				zap.String("filename", candidate.Filename),
				zap.Any("panic", r))
			s.store.IncrementErrors()
		}
	}()

	text, ok := s.extractor.Extract(ctx, candidate.Filename, candidate.Content)
	if !ok {
		s.logger.Warn("No text extracted, cannot classify",
			zap.String("filename", candidate.Filename))
		return
	}

	result, ok := s.gateway.Classify(ctx, text, ContentKey(candidate.Content))
	if !ok {
		s.logger.Warn("Classification unavailable, skipping attachment",
			zap.String("filename", candidate.Filename))
		return
	}

	if !result.IsInvoice {
		s.logger.Debug("Not an invoice", zap.String("filename", candidate.Filename))
		return
	}

	s.logger.Info("Invoice confirmed",
		zap.String("vendor", result.Vendor),
		zap.String("invoice_number", result.InvoiceNumber),
		zap.String("date", result.Date),
		zap.String("amount", result.TotalAmount),
		zap.String("currency", result.Currency))

	s.store.SaveInvoice(candidate.Filename, candidate.Content, result, meta.Subject, meta.Date)
}

func truncateForLog(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
