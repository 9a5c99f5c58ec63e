package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// Tesseract runs the tesseract CLI on image files.
type Tesseract struct {
	binPath  string
	language string
}

// NewTesseract creates a Tesseract extractor. Empty arguments select
// "tesseract" and "eng".
func NewTesseract(binPath, language string) *Tesseract {
	if binPath == "" {
		binPath = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{binPath: binPath, language: language}
}

// ExtractText runs `tesseract <image> stdout -l <lang>` and returns stdout.
func (t *Tesseract) ExtractText(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, t.binPath, path, "stdout", "-l", t.language)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: tesseract failed for %s: %s", path, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
