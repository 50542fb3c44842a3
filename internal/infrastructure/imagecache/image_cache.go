package imagecache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"campussync/internal/bootstrap/logging"
	"campussync/internal/errs"
	"campussync/internal/ports"
)

const mappingKeyPrefix = "report_image:"

// Cache keeps a device-local copy of report photos under one directory and
// records entityID -> local path mappings in the durable KV. It shadows the
// remote blob store: faster, available offline, and every failure degrades
// to a miss instead of surfacing.
type Cache struct {
	dir     string
	kv      ports.Cache
	watcher *fsnotify.Watcher
	done    chan struct{}
}

var _ ports.ImageCache = (*Cache)(nil)

// New ensures the cache directory exists. The directory is process-owned;
// external deletions are healed lazily on Get, or eagerly when Watch runs.
func New(ctx context.Context, dir string, kv ports.Cache) (*Cache, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("image cache directory is required")
	}
	if kv == nil {
		return nil, errors.New("kv cache is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrapf(err, "create image cache directory %q", dir)
	}

	return &Cache{dir: dir, kv: kv, done: make(chan struct{})}, nil
}

func mappingKey(entityID string) string {
	return mappingKeyPrefix + entityID
}

// fileExtension extracts a usable extension from a source path or URI,
// defaulting to jpg when none can be determined.
func fileExtension(source string) string {
	clean := source
	if idx := strings.IndexAny(clean, "?#"); idx >= 0 {
		clean = clean[:idx]
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(clean), "."))
	if ext == "" {
		return "jpg"
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "jpg"
		}
	}
	return ext
}

func (c *Cache) Put(ctx context.Context, entityID string, sourcePath string) (string, bool) {
	if ctx == nil || strings.TrimSpace(entityID) == "" {
		return "", false
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "imagecache"), slog.String("entity_id", entityID))

	src, err := os.Open(sourcePath)
	if err != nil {
		logging.Warn(logCtx, "image cache put skipped, cannot open source", slog.Any("err", errs.Loggable(err)))
		return "", false
	}
	defer src.Close()

	localPath := filepath.Join(c.dir, entityID+"."+fileExtension(sourcePath))

	// A re-attach with a different extension leaves the old file behind;
	// drop it so the entity maps to exactly one cached file.
	if prior, found, _ := c.kv.Get(ctx, mappingKey(entityID)); found && prior != localPath {
		_ = os.Remove(prior)
	}

	dst, err := os.Create(localPath)
	if err != nil {
		logging.Warn(logCtx, "image cache put failed, cannot create file", slog.Any("err", errs.Loggable(err)))
		return "", false
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(localPath)
		logging.Warn(logCtx, "image cache put failed, copy error", slog.Any("err", errs.Loggable(err)))
		return "", false
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(localPath)
		logging.Warn(logCtx, "image cache put failed, close error", slog.Any("err", errs.Loggable(err)))
		return "", false
	}

	if err := c.kv.Set(ctx, mappingKey(entityID), localPath, 0); err != nil {
		_ = os.Remove(localPath)
		logging.Warn(logCtx, "image cache put failed, mapping write error", slog.Any("err", errs.Loggable(err)))
		return "", false
	}

	return localPath, true
}

func (c *Cache) Get(ctx context.Context, entityID string) (string, bool) {
	if ctx == nil || strings.TrimSpace(entityID) == "" {
		return "", false
	}

	localPath, found, err := c.kv.Get(ctx, mappingKey(entityID))
	if err != nil || !found {
		return "", false
	}

	if _, err := os.Stat(localPath); err != nil {
		// The file is gone; evict the stale mapping so it stays gone.
		_ = c.kv.Delete(ctx, mappingKey(entityID))
		return "", false
	}

	return localPath, true
}

func (c *Cache) Remove(ctx context.Context, entityID string) {
	if ctx == nil || strings.TrimSpace(entityID) == "" {
		return
	}

	localPath, found, err := c.kv.Get(ctx, mappingKey(entityID))
	if err == nil && found {
		if removeErr := os.Remove(localPath); removeErr != nil && !os.IsNotExist(removeErr) {
			logging.Warn(ctx, "image cache file removal failed",
				slog.String("entity_id", entityID),
				slog.Any("err", errs.Loggable(removeErr)))
		}
	}

	_ = c.kv.Delete(ctx, mappingKey(entityID))
}

// Watch evicts mappings eagerly when cached files disappear from disk, so
// readers after an external cleanup see a miss without waiting for the lazy
// Get-side healing. Blocks until ctx is done or Close is called.
func (c *Cache) Watch(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create fs watcher")
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		return errs.Wrapf(err, "watch image cache directory %q", c.dir)
	}
	c.watcher = watcher
	defer watcher.Close()

	logCtx := logging.WithAttrs(ctx, slog.String("component", "imagecache"), slog.String("dir", c.dir))
	logging.Info(logCtx, "image cache watcher started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			base := filepath.Base(event.Name)
			entityID := strings.TrimSuffix(base, filepath.Ext(base))
			if entityID == "" {
				continue
			}
			if err := c.kv.Delete(ctx, mappingKey(entityID)); err != nil {
				logging.Warn(logCtx, "stale mapping eviction failed",
					slog.String("entity_id", entityID),
					slog.Any("err", errs.Loggable(err)))
				continue
			}
			logging.Info(logCtx, "evicted mapping for externally removed file", slog.String("entity_id", entityID))
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "image cache watcher error", slog.Any("err", errs.Loggable(watchErr)))
		}
	}
}

// Close stops a running watcher. Safe to call once.
func (c *Cache) Close() {
	close(c.done)
}
