package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"campussync/internal/errs"
	"campussync/internal/ports"
)

// LocalStore keeps blobs under a directory and serves refs from a configured
// base URL. Used when the deployment hosts its own object directory.
type LocalStore struct {
	dir     string
	baseURL string
}

var _ ports.BlobStore = (*LocalStore)(nil)

func NewLocalStore(dir string, baseURL string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("blob directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrapf(err, "create blob directory %q", dir)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Upload(ctx context.Context, objectName string, content io.Reader, _ string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	objectName = strings.TrimLeft(filepath.ToSlash(objectName), "/")
	if objectName == "" || strings.Contains(objectName, "..") {
		return "", fmt.Errorf("invalid object name %q", objectName)
	}

	target := filepath.Join(s.dir, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", errs.Wrap(err, "create object directory")
	}

	file, err := os.Create(target)
	if err != nil {
		return "", errs.Wrap(err, "create object file")
	}
	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		_ = os.Remove(target)
		return "", errs.Wrap(err, "write object content")
	}
	if err := file.Close(); err != nil {
		return "", errs.Wrap(err, "close object file")
	}

	return objectName, nil
}

func (s *LocalStore) PublicURL(objectRef string) string {
	return s.baseURL + "/" + strings.TrimLeft(objectRef, "/")
}

// ObjectName builds the upload path for a photo the way report images are
// keyed: prefix/uid_unixms.ext.
func ObjectName(prefix string, uid string, ext string) string {
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s/%s_%d.%s", prefix, uid, time.Now().UnixMilli(), ext)
}

// ContentTypeForExtension maps common photo extensions; jpeg is the default
// for anything unknown.
func ContentTypeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
