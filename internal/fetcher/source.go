package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"

	"github.com/rotisserie/eris"
)

// Sources opens import files by location: ftp:// URLs through FTP,
// http(s):// URLs through HTTP, anything else as a local path.
type Sources struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewSources builds Sources with default fetchers.
func NewSources() *Sources {
	return &Sources{
		HTTP: NewHTTPFetcher(HTTPOptions{}),
		FTP:  NewFTPFetcher(FTPOptions{}),
	}
}

// Open returns a reader for src. The caller closes it.
func (s *Sources) Open(ctx context.Context, src string) (io.ReadCloser, error) {
	u, err := url.Parse(src)
	if err == nil {
		switch u.Scheme {
		case "ftp":
			return s.FTP.Download(ctx, src)
		case "http", "https":
			return s.HTTP.Download(ctx, src)
		case "", "file":
		default:
			if len(u.Scheme) > 1 {
				return nil, eris.Errorf("fetcher: unsupported source scheme %q", u.Scheme)
			}
		}
	}

	path := src
	if err == nil && u.Scheme == "file" {
		path = u.Path
	}
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", path)
	}
	return f, nil
}
