package intake

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/payai/internal/chat"
	"github.com/sells-group/payai/internal/gateway"
	"github.com/sells-group/payai/internal/model"
)

const mimePDF = "application/pdf"

// proofMarkers in a caption mark the upload as a payment screenshot.
var proofMarkers = []string{"payment", "proof"}

func supportedDocument(mimeType, fileName string) bool {
	mimeType = strings.ToLower(mimeType)
	if strings.HasPrefix(mimeType, "image/") || mimeType == mimePDF {
		return true
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf", ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}

func artifactKind(caption string) model.ArtifactKind {
	c := strings.ToLower(caption)
	for _, m := range proofMarkers {
		if strings.Contains(c, m) {
			return model.ArtifactPaymentProof
		}
	}
	return model.ArtifactInvoice
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, s)
}

// fileDetails picks the local extension and MIME type for an attachment.
func fileDetails(ev chat.Event) (ext, mimeType string) {
	mimeType = strings.ToLower(ev.MimeType)
	ext = strings.ToLower(filepath.Ext(ev.FileName))

	switch {
	case mimeType == mimePDF || ext == ".pdf":
		return ".pdf", mimePDF
	case mimeType == "image/png" || ext == ".png":
		return ".png", "image/png"
	case mimeType == "image/webp" || ext == ".webp":
		return ".webp", "image/webp"
	default:
		return ".jpg", "image/jpeg"
	}
}

// handleUpload runs download, OCR and extraction for a new bill. Any
// previous pending expense is discarded first, so a failure at any step
// leaves the conversation idle.
func (b *Bot) handleUpload(ctx context.Context, s *session, ev chat.Event, owner string, log *zap.Logger) {
	if s.pending != nil {
		log.Info("discarding previous pending expense", zap.String("path", s.pending.LocalPath))
	}
	s.pending = nil
	s.summaryID = 0

	now := b.now().In(b.loc)
	ext, mimeType := fileDetails(ev)
	kind := artifactKind(ev.Caption)
	localPath := filepath.Join(b.tempDir, fmt.Sprintf("%d_%s_%s%s", now.UnixMilli(), safeName(owner), kind, ext))

	statusID := b.send(ctx, ev.ChatID, chat.OutgoingMessage{Text: processingText})
	status := func(text string) {
		b.send(ctx, ev.ChatID, chat.OutgoingMessage{Text: text, EditMessageID: statusID})
	}

	if _, err := b.deps.Files.Fetch(ctx, ev.FileID, localPath); err != nil {
		log.Error("download failed", zap.String("file_id", ev.FileID), zap.Error(err))
		status(downloadFailedText)
		return
	}

	text, err := b.deps.OCR.ExtractText(ctx, localPath)
	if err != nil {
		log.Error("ocr failed", zap.String("path", localPath), zap.Error(err))
		status(ocrFailedText)
		return
	}
	if strings.TrimSpace(text) == "" {
		log.Info("ocr returned no text", zap.String("path", localPath))
		status(emptyOCRText)
		return
	}

	extraction, err := b.deps.Extractor.ExtractFields(ctx, text)
	if err != nil {
		if errors.Is(err, gateway.ErrNoCredentialsConfigured) {
			log.Error("no llm credentials configured", zap.Error(err))
		} else {
			log.Error("field extraction failed", zap.Error(err))
		}
		status(extractionFailedText)
		return
	}

	s.pending = &model.PendingExpense{
		RawText:     text,
		Fields:      extraction.Fields,
		RawResponse: extraction.Raw,
		LocalPath:   localPath,
		MimeType:    mimeType,
		Owner:       owner,
		Kind:        kind,
		CreatedAt:   now,
	}

	s.summaryID = b.send(ctx, ev.ChatID, chat.OutgoingMessage{
		Text:          summaryText(s.pending),
		Markdown:      true,
		Actions:       chat.ConfirmActions(),
		EditMessageID: statusID,
	})
	log.Info("pending expense stored",
		zap.Float64("amount", extraction.Fields.Amount),
		zap.String("category", string(extraction.Fields.Category)),
		zap.String("kind", string(kind)),
	)
}
