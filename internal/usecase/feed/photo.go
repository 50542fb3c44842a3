package feed

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"campussync/internal/bootstrap/logging"
	domainfeed "campussync/internal/domain/feed"
	"campussync/internal/errs"
	"campussync/internal/infrastructure/blob"
	"campussync/internal/ports"
	livesync "campussync/internal/usecase/sync"
)

// AttachPhoto caches the photo locally and uploads it to the blob store,
// then records the public URL on the report. The local cache write is best
// effort: its failure never blocks the attach. A failed upload is surfaced
// as recoverable; the local copy, if any, still serves reads.
func (s *Service) AttachPhoto(ctx context.Context, reportID string, sourcePath string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}
	if s.store == nil {
		return "", errStoreRequired
	}

	principal, signedIn, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return "", errs.Wrap(err, "resolve current user")
	}
	if !signedIn {
		return "", domainfeed.ErrAuthenticationRequired
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "feed"),
		slog.String("report_id", reportID))

	if s.images != nil {
		if _, ok := s.images.Put(ctx, reportID, sourcePath); !ok {
			logging.Warn(logCtx, "local photo cache miss on attach, continuing with upload only")
		}
	}

	if s.blobs == nil {
		return "", errors.New("blob store is required")
	}

	file, err := os.Open(sourcePath)
	if err != nil {
		return "", errs.Wrap(err, "open photo source")
	}
	defer file.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(sourcePath), "."))
	objectName := blob.ObjectName("report_images", principal.ID, ext)

	objectRef, err := s.blobs.Upload(ctx, objectName, file, blob.ContentTypeForExtension(ext))
	if err != nil {
		return "", errs.Wrap(err, "upload photo")
	}
	photoURL := s.blobs.PublicURL(objectRef)

	if err := s.beginWrite(reportID); err != nil {
		return "", err
	}
	defer s.endWrite(reportID)

	fields := ports.Fields{
		"photoUrl":  photoURL,
		"updatedAt": nowUTCString(),
	}
	if err := s.store.Update(ctx, livesync.CollectionReports, reportID, fields); err != nil {
		return "", mapReportErr(err, "record photo url")
	}

	return photoURL, nil
}

// LocalPhoto returns the locally cached photo path for a report, if any.
func (s *Service) LocalPhoto(ctx context.Context, reportID string) (string, bool) {
	if s.images == nil {
		return "", false
	}
	return s.images.Get(ctx, reportID)
}
