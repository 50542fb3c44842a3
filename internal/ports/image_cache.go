package ports

import "context"

// ImageCache maps an entity id to a locally persisted copy of its photo,
// independent of the remote blob store. A miss is a valid result, not an
// error: implementations swallow I/O failures (logged) and degrade to
// absent so the caller's larger workflow never aborts on cache trouble.
type ImageCache interface {
	// Put copies the content at sourcePath into the cache for entityID and
	// returns the local path. ok=false on any failure.
	Put(ctx context.Context, entityID string, sourcePath string) (localPath string, ok bool)

	// Get returns the cached local path if the mapping exists and the file is
	// still on disk. A stale mapping is evicted and reported as absent.
	Get(ctx context.Context, entityID string) (localPath string, ok bool)

	// Remove deletes the file and the mapping, best effort.
	Remove(ctx context.Context, entityID string)
}
