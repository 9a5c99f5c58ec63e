package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/payai/internal/config"
)

type stubExtractor struct {
	text  string
	err   error
	calls int
}

func (s *stubExtractor) ExtractText(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.text, s.err
}

func writeFile(t *testing.T, name, content string, mode os.FileMode) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), mode))
	return p
}

func TestNewExtractor(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: ""})
	require.NoError(t, err)
	r := ext.(*Router)
	assert.IsType(t, &Tesseract{}, r.Images)
	assert.IsType(t, &PDFText{}, r.PDFs)
	assert.False(t, r.ScanPDFs)

	ext, err = NewExtractor(config.OCRConfig{Provider: "mistral", MistralKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &MistralOCR{}, ext.(*Router).Images)
	assert.True(t, ext.(*Router).ScanPDFs)

	_, err = NewExtractor(config.OCRConfig{Provider: "mistral"})
	assert.ErrorContains(t, err, "requires mistral_api_key")

	_, err = NewExtractor(config.OCRConfig{Provider: "unknown"})
	assert.ErrorContains(t, err, `unknown provider "unknown"`)
}

func TestRouter(t *testing.T) {
	ctx := context.Background()

	t.Run("image goes to image extractor", func(t *testing.T) {
		img, pdfs := &stubExtractor{text: "bill"}, &stubExtractor{}
		r := &Router{Images: img, PDFs: pdfs}
		text, err := r.ExtractText(ctx, "/tmp/a.JPG")
		require.NoError(t, err)
		assert.Equal(t, "bill", text)
		assert.Equal(t, 0, pdfs.calls)
	})

	t.Run("pdf with text layer", func(t *testing.T) {
		img, pdfs := &stubExtractor{}, &stubExtractor{text: "Invoice total 500"}
		r := &Router{Images: img, PDFs: pdfs, ScanPDFs: true}
		text, err := r.ExtractText(ctx, "/tmp/a.pdf")
		require.NoError(t, err)
		assert.Equal(t, "Invoice total 500", text)
		assert.Equal(t, 0, img.calls)
	})

	t.Run("scanned pdf falls back when provider can scan", func(t *testing.T) {
		img, pdfs := &stubExtractor{text: "scanned"}, &stubExtractor{err: errors.New("no text")}
		r := &Router{Images: img, PDFs: pdfs, ScanPDFs: true}
		text, err := r.ExtractText(ctx, "/tmp/a.pdf")
		require.NoError(t, err)
		assert.Equal(t, "scanned", text)
	})

	t.Run("scanned pdf without scanning provider", func(t *testing.T) {
		img, pdfs := &stubExtractor{text: "scanned"}, &stubExtractor{text: "  "}
		r := &Router{Images: img, PDFs: pdfs}
		text, err := r.ExtractText(ctx, "/tmp/a.pdf")
		require.NoError(t, err)
		assert.Equal(t, "  ", text)
		assert.Equal(t, 0, img.calls)
	})
}

func TestTesseract_Defaults(t *testing.T) {
	ts := NewTesseract("", "")
	assert.Equal(t, "tesseract", ts.binPath)
	assert.Equal(t, "eng", ts.language)
}

func TestTesseract_ExtractText(t *testing.T) {
	bin := writeFile(t, "tesseract", "#!/bin/sh\necho \"  Total: Rs 1,250.00 ($1 $2 $3 $4)  \"\n", 0o755)

	text, err := NewTesseract(bin, "eng").ExtractText(context.Background(), "/tmp/bill.jpg")
	require.NoError(t, err)
	assert.Equal(t, "Total: Rs 1,250.00 (/tmp/bill.jpg stdout -l eng)", text)
}

func TestTesseract_BinaryNotFound(t *testing.T) {
	_, err := NewTesseract("/nonexistent/tesseract", "").ExtractText(context.Background(), "/tmp/bill.jpg")
	assert.ErrorContains(t, err, "tesseract failed")
}

func TestPDFText_FallsBackToCLI(t *testing.T) {
	bin := writeFile(t, "pdftotext", "#!/bin/sh\necho 'Extracted text content'\n", 0o755)
	notAPDF := writeFile(t, "broken.pdf", "not really a pdf", 0o644)

	text, err := NewPDFText(bin).ExtractText(context.Background(), notAPDF)
	require.NoError(t, err)
	assert.Equal(t, "Extracted text content", text)
}

func TestPDFText_BothFail(t *testing.T) {
	notAPDF := writeFile(t, "broken.pdf", "garbage", 0o644)

	_, err := NewPDFText("/nonexistent/pdftotext").ExtractText(context.Background(), notAPDF)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
	assert.Contains(t, err.Error(), "pdf library also failed")
}

func newTestMistral(url string) *MistralOCR {
	return &MistralOCR{apiKey: "test-key", model: "test-model", endpoint: url, client: &http.Client{}}
}

func TestMistralOCR_Image(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "image_url", req.Document.Type)
		assert.Contains(t, req.Document.ImageURL, "data:image/jpeg;base64,")
		assert.Empty(t, req.Document.DocumentURL)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(mistralOCRResponse{Pages: []mistralOCRPage{
			{Index: 0, Markdown: "Acme Store"},
			{Index: 1, Markdown: "  "},
			{Index: 2, Markdown: "Total 99"},
		}})
	}))
	defer srv.Close()

	img := writeFile(t, "bill.jpg", "\xff\xd8\xff", 0o644)
	text, err := newTestMistral(srv.URL).ExtractText(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "Acme Store\n\nTotal 99", text)
}

func TestMistralOCR_PDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "document_url", req.Document.Type)
		assert.Contains(t, req.Document.DocumentURL, "data:application/pdf;base64,")
		_ = json.NewEncoder(w).Encode(mistralOCRResponse{})
	}))
	defer srv.Close()

	doc := writeFile(t, "bill.pdf", "%PDF-1.4", 0o644)
	text, err := newTestMistral(srv.URL).ExtractText(context.Background(), doc)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestMistralOCR_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer bad" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{invalid json`))
	}))
	defer srv.Close()

	img := writeFile(t, "bill.png", "png", 0o644)

	m := newTestMistral(srv.URL)
	_, err := m.ExtractText(context.Background(), img)
	assert.ErrorContains(t, err, "unmarshal mistral response")

	m.apiKey = "bad"
	_, err = m.ExtractText(context.Background(), img)
	assert.ErrorContains(t, err, "mistral API returned 401")

	_, err = m.ExtractText(context.Background(), "/nonexistent/bill.png")
	assert.ErrorContains(t, err, "ocr: read")
}

func TestMistralOCR_DefaultModel(t *testing.T) {
	assert.Equal(t, defaultMistralModel, NewMistralOCR("k", "").model)
	assert.Equal(t, "custom", NewMistralOCR("k", "custom").model)
}
