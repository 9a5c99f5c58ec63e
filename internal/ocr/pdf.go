package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// PDFText reads the embedded text layer of a PDF, falling back to the
// pdftotext CLI when the library cannot parse the file.
type PDFText struct {
	binPath string
}

// NewPDFText creates a PDFText extractor. If binPath is empty,
// "pdftotext" is used.
func NewPDFText(binPath string) *PDFText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PDFText{binPath: binPath}
}

// ExtractText implements Extractor.
func (p *PDFText) ExtractText(ctx context.Context, path string) (string, error) {
	text, libErr := readTextLayer(path)
	if libErr == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text), nil
	}

	text, cliErr := p.pdftotext(ctx, path)
	if cliErr != nil {
		if libErr != nil {
			return "", eris.Wrapf(cliErr, "ocr: pdf library also failed (%v)", libErr)
		}
		return "", cliErr
	}
	return strings.TrimSpace(text), nil
}

// readTextLayer uses ledongthuc/pdf. The library panics on some malformed
// files, so panics are turned into errors.
func readTextLayer(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ocr: pdf library crashed: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: open pdf %s", path)
	}
	defer f.Close() //nolint:errcheck

	if r.NumPage() == 0 {
		return "", eris.Errorf("ocr: pdf %s has no pages", path)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", eris.Wrap(err, "ocr: read pdf text")
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", eris.Wrap(err, "ocr: read pdf text")
	}
	return string(b), nil
}

func (p *PDFText) pdftotext(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", path, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", path, stderr.String())
	}
	return stdout.String(), nil
}
