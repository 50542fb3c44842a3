package ports

import (
	"context"
	"io"
)

// BlobStore uploads photo content and resolves public URLs for object refs.
type BlobStore interface {
	// Upload stores content under objectName and returns the object ref.
	Upload(ctx context.Context, objectName string, content io.Reader, contentType string) (string, error)

	// PublicURL resolves an object ref to a fetchable URL.
	PublicURL(objectRef string) string
}
