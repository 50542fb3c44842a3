package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-resty/resty/v2"

	"campussync/internal/domain/feed"
	"campussync/internal/errs"
	"campussync/internal/ports"
)

// HTTPStore uploads blobs to a remote object endpoint with simple PUT
// semantics. Failures map to the recoverable store-unavailable condition so
// callers can fall back to the local cache copy.
type HTTPStore struct {
	client  *resty.Client
	baseURL string
}

var _ ports.BlobStore = (*HTTPStore)(nil)

func NewHTTPStore(baseURL string, authToken string) (*HTTPStore, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("blob endpoint is required")
	}

	client := resty.New().SetBaseURL(baseURL)
	if authToken != "" {
		client.SetAuthToken(authToken)
	}
	return &HTTPStore{client: client, baseURL: baseURL}, nil
}

func (s *HTTPStore) Upload(ctx context.Context, objectName string, content io.Reader, contentType string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	objectName = strings.TrimLeft(objectName, "/")
	if objectName == "" {
		return "", errors.New("object name is required")
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(content).
		Put("/objects/" + objectName)
	if err != nil {
		return "", fmt.Errorf("upload object: %w: %s", feed.ErrStoreUnavailable, err.Error())
	}
	if resp.IsError() {
		return "", fmt.Errorf("upload object: %w: status %d", feed.ErrStoreUnavailable, resp.StatusCode())
	}

	return objectName, nil
}

func (s *HTTPStore) PublicURL(objectRef string) string {
	return s.baseURL + "/objects/" + strings.TrimLeft(objectRef, "/")
}
