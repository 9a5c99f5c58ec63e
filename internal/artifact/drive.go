package artifact

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sells-group/payai/internal/resilience"
)

// FolderMimeType marks Drive folders.
const FolderMimeType = "application/vnd.google-apps.folder"

// Drive implements Store on Google Drive.
type Drive struct {
	files *drive.FilesService
	log   *zap.Logger
}

// NewDrive creates a Drive store authenticated with a service account key.
// Extra options are appended after the credentials.
func NewDrive(ctx context.Context, credentialsJSON []byte, opts ...option.ClientOption) (*Drive, error) {
	all := []option.ClientOption{
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(drive.DriveScope),
	}
	return newDrive(ctx, append(all, opts...)...)
}

func newDrive(ctx context.Context, opts ...option.ClientOption) (*Drive, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "drive: create service")
	}
	return &Drive{
		files: svc.Files,
		log:   zap.L().With(zap.String("component", "drive")),
	}, nil
}

func (d *Drive) EnsureFolder(ctx context.Context, name, parentID string) (string, error) {
	q := "mimeType='" + FolderMimeType + "' and name='" + escapeQuery(name) + "' and trashed=false"
	if parentID != "" {
		q += " and '" + escapeQuery(parentID) + "' in parents"
	}

	list, err := d.files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", eris.Wrapf(withStatus(err), "drive: list folder %q", name)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	meta := &drive.File{Name: name, MimeType: FolderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	created, err := d.files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", eris.Wrapf(withStatus(err), "drive: create folder %q", name)
	}
	d.log.Info("drive: created folder", zap.String("name", name), zap.String("id", created.Id))
	return created.Id, nil
}

func (d *Drive) Upload(ctx context.Context, localPath, remoteName, mimeType, folderID string) (*File, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, eris.Wrapf(err, "drive: open %s", localPath)
	}
	defer f.Close() //nolint:errcheck

	meta := &drive.File{Name: remoteName, Parents: []string{folderID}}
	created, err := d.files.Create(meta).
		Media(f, googleapi.ContentType(mimeType)).
		Fields("id, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, eris.Wrapf(withStatus(err), "drive: upload %s", remoteName)
	}
	return &File{ID: created.Id, ViewLink: created.WebViewLink}, nil
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// withStatus exposes the HTTP status of a Drive API error to the retry
// classifier.
func withStatus(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return resilience.NewStatusError(err, gerr.Code)
	}
	return err
}
