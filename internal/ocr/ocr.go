// Package ocr extracts raw text from bill photos and PDF documents.
package ocr

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/payai/internal/config"
)

// Extractor extracts text from a local image or PDF file. An empty result
// with a nil error means nothing legible was found.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// NewExtractor builds the extractor chain for cfg: PDFs go through the
// embedded text layer first, everything else (and scanned PDFs the
// provider can read) through the configured OCR provider.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	var (
		images   Extractor
		scanPDFs bool
	)
	switch strings.ToLower(cfg.Provider) {
	case "tesseract", "":
		images = NewTesseract(cfg.TesseractPath, cfg.Language)
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		images = NewMistralOCR(cfg.MistralKey, cfg.MistralModel)
		scanPDFs = true
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}

	return &Router{
		Images:   images,
		PDFs:     NewPDFText(cfg.PdfToTextPath),
		ScanPDFs: scanPDFs,
	}, nil
}

// Router dispatches by file extension.
type Router struct {
	Images Extractor
	PDFs   Extractor
	// ScanPDFs sends PDFs without a text layer to Images.
	ScanPDFs bool
}

// ExtractText implements Extractor.
func (r *Router) ExtractText(ctx context.Context, path string) (string, error) {
	if !IsPDF(path) {
		return r.Images.ExtractText(ctx, path)
	}

	text, err := r.PDFs.ExtractText(ctx, path)
	if err != nil {
		zap.L().Debug("pdf text layer unavailable", zap.String("path", path), zap.Error(err))
	}
	if strings.TrimSpace(text) != "" || !r.ScanPDFs {
		return text, err
	}
	return r.Images.ExtractText(ctx, path)
}

// IsPDF reports whether path has a .pdf extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
