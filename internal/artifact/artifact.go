// Package artifact uploads bill images to remote storage and resolves the
// per-owner folder layout they are filed under.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/payai/internal/config"
	"github.com/sells-group/payai/internal/model"
)

// ErrUploadFailed wraps every failed folder resolution or upload.
var ErrUploadFailed = errors.New("upload failed")

// PaymentProofsFolder holds payment screenshots, one subfolder per owner.
const PaymentProofsFolder = "payment_proofs"

// File is an uploaded artifact.
type File struct {
	ID       string
	ViewLink string
}

// Store is a folder-structured remote file store.
type Store interface {
	// EnsureFolder returns the ID of the folder called name under parentID,
	// creating it when missing. An empty parentID means the store root.
	EnsureFolder(ctx context.Context, name, parentID string) (string, error)
	Upload(ctx context.Context, localPath, remoteName, mimeType, folderID string) (*File, error)
}

// NewStore builds the store named by cfg.Driver, wrapped with retries and a
// circuit breaker.
func NewStore(ctx context.Context, cfg config.ArtifactConfig, retry config.RetryConfig) (Store, error) {
	var inner Store
	switch cfg.Driver {
	case "", "local":
		dir := cfg.LocalDir
		if dir == "" {
			dir = "bills"
		}
		inner = NewLocal(dir)
	case "drive":
		creds, err := ParseServiceAccount(cfg.ServiceAccount)
		if err != nil {
			return nil, err
		}
		d, err := NewDrive(ctx, creds)
		if err != nil {
			return nil, err
		}
		inner = d
	default:
		return nil, eris.Errorf("artifact: unknown driver %q", cfg.Driver)
	}
	return NewResilient(inner, retry), nil
}

// Layout resolves destination folders. Folders are looked up on every call;
// nothing is cached.
type Layout struct {
	Store Store
	// RootID pins the root folder. When empty, RootName is ensured at the
	// store root.
	RootID   string
	RootName string
}

// Resolve returns the folder for an artifact:
// <root>/<owner>/<category> for invoices and
// <root>/payment_proofs/<owner> for payment proofs.
func (l Layout) Resolve(ctx context.Context, owner string, category model.Category, kind model.ArtifactKind) (string, error) {
	root := l.RootID
	if root == "" {
		name := l.RootName
		if name == "" {
			name = "Bills"
		}
		id, err := l.Store.EnsureFolder(ctx, name, "")
		if err != nil {
			return "", err
		}
		root = id
	}

	path := []string{owner, string(category)}
	if kind == model.ArtifactPaymentProof {
		path = []string{PaymentProofsFolder, owner}
	}

	parent := root
	for _, name := range path {
		id, err := l.Store.EnsureFolder(ctx, name, parent)
		if err != nil {
			return "", err
		}
		parent = id
	}
	return parent, nil
}

// FileName builds yyyyMMddHHmm_<owner>_<category>_<NN>.<ext>. seq is
// zero-padded to two digits.
func FileName(at time.Time, owner string, category model.Category, seq int, localPath string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(localPath)), ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s_%s_%s_%02d.%s", at.Format("200601021504"), owner, category, seq, ext)
}
