package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	urls []string
	body string
}

func (s *stubFetcher) Download(_ context.Context, url string) (io.ReadCloser, error) {
	s.urls = append(s.urls, url)
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func (s *stubFetcher) DownloadToFile(context.Context, string, string) (int64, error) {
	return 0, nil
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close() //nolint:errcheck
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestSources_Open(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "legacy.csv")
	require.NoError(t, os.WriteFile(local, []byte("owner,amount\n"), 0o600))

	ftpStub := &stubFetcher{body: "from ftp"}
	s := &Sources{HTTP: newTestFetcher(), FTP: ftpStub}
	ctx := context.Background()

	rc, err := s.Open(ctx, local)
	require.NoError(t, err)
	assert.Equal(t, "owner,amount\n", readAll(t, rc))

	rc, err = s.Open(ctx, "file://"+local)
	require.NoError(t, err)
	assert.Equal(t, "owner,amount\n", readAll(t, rc))

	rc, err = s.Open(ctx, "ftp://files.example.com/legacy.csv")
	require.NoError(t, err)
	assert.Equal(t, "from ftp", readAll(t, rc))
	assert.Equal(t, []string{"ftp://files.example.com/legacy.csv"}, ftpStub.urls)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("from http"))
	}))
	defer srv.Close()
	rc, err = s.Open(ctx, srv.URL+"/legacy.csv")
	require.NoError(t, err)
	assert.Equal(t, "from http", readAll(t, rc))
}

func TestSources_OpenErrors(t *testing.T) {
	s := NewSources()

	_, err := s.Open(context.Background(), "s3://bucket/legacy.csv")
	assert.ErrorContains(t, err, "unsupported source scheme")

	_, err = s.Open(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorContains(t, err, "fetcher: open")
}
