package artifact

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Local implements Store on the local filesystem. Folder IDs are paths
// relative to the base directory.
type Local struct {
	base string
}

// NewLocal creates a Local store rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{base: dir}
}

func (l *Local) EnsureFolder(_ context.Context, name, parentID string) (string, error) {
	rel := filepath.Join(parentID, filepath.Base(filepath.Clean("/"+name)))
	if err := os.MkdirAll(filepath.Join(l.base, rel), 0o755); err != nil {
		return "", eris.Wrapf(err, "local: create folder %s", rel)
	}
	return rel, nil
}

func (l *Local) Upload(ctx context.Context, localPath, remoteName, _, folderID string) (*File, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return nil, eris.Wrapf(err, "local: open %s", localPath)
	}
	defer src.Close() //nolint:errcheck

	rel := filepath.Join(folderID, filepath.Base(remoteName))
	dest := filepath.Join(l.base, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, eris.Wrap(err, "local: create folder")
	}
	out, err := os.Create(dest)
	if err != nil {
		return nil, eris.Wrapf(err, "local: create %s", dest)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "local: copy to %s", dest)
	}
	if err := out.Close(); err != nil {
		return nil, eris.Wrapf(err, "local: close %s", dest)
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		abs = dest
	}
	return &File{ID: rel, ViewLink: "file://" + filepath.ToSlash(abs)}, ctx.Err()
}
