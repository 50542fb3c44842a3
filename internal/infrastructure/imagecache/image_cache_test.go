package imagecache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"campussync/internal/infrastructure/cache"
	"campussync/internal/infrastructure/persistence/sqlite/model"
)

func setupImageCache(t *testing.T) *Cache {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "kv.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.KVEntry{}); err != nil {
		t.Fatalf("auto migrate local_kv: %v", err)
	}

	imageCache, err := New(context.Background(), filepath.Join(t.TempDir(), "images"), cache.NewSQLiteCache(db))
	if err != nil {
		t.Fatalf("new image cache: %v", err)
	}
	return imageCache
}

func writeSourceImage(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write source image: %v", err)
	}
	return path
}

func TestPutThenGetRoundTrip(t *testing.T) {
	imageCache := setupImageCache(t)
	ctx := context.Background()

	content := []byte("not really a jpeg")
	source := writeSourceImage(t, "photo.jpg", content)

	localPath, ok := imageCache.Put(ctx, "r1", source)
	if !ok {
		t.Fatal("put failed")
	}

	got, ok := imageCache.Get(ctx, "r1")
	if !ok {
		t.Fatal("get missed after put")
	}
	if got != localPath {
		t.Fatalf("get path %q != put path %q", got, localPath)
	}

	cached, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("read cached file: %v", err)
	}
	if string(cached) != string(content) {
		t.Fatal("cached content differs from source")
	}
}

func TestPutMissingSourceIsMiss(t *testing.T) {
	imageCache := setupImageCache(t)

	if _, ok := imageCache.Put(context.Background(), "r1", "/does/not/exist.jpg"); ok {
		t.Fatal("put of missing source reported success")
	}
}

func TestGetAfterExternalDeleteEvictsMapping(t *testing.T) {
	imageCache := setupImageCache(t)
	ctx := context.Background()

	source := writeSourceImage(t, "photo.png", []byte("png bytes"))
	localPath, ok := imageCache.Put(ctx, "r1", source)
	if !ok {
		t.Fatal("put failed")
	}

	if err := os.Remove(localPath); err != nil {
		t.Fatalf("simulate external delete: %v", err)
	}

	if _, ok := imageCache.Get(ctx, "r1"); ok {
		t.Fatal("get returned a path for a deleted file")
	}

	// The mapping must not resurrect even if a file reappears at the old
	// path without going through Put.
	if err := os.WriteFile(localPath, []byte("stray"), 0o644); err != nil {
		t.Fatalf("recreate file: %v", err)
	}
	if _, ok := imageCache.Get(ctx, "r1"); ok {
		t.Fatal("evicted mapping resurrected")
	}
}

func TestPutReplacesDifferentExtension(t *testing.T) {
	imageCache := setupImageCache(t)
	ctx := context.Background()

	jpg := writeSourceImage(t, "photo.jpg", []byte("jpg"))
	jpgPath, ok := imageCache.Put(ctx, "r1", jpg)
	if !ok {
		t.Fatal("first put failed")
	}

	png := writeSourceImage(t, "photo.png", []byte("png"))
	pngPath, ok := imageCache.Put(ctx, "r1", png)
	if !ok {
		t.Fatal("second put failed")
	}
	if pngPath == jpgPath {
		t.Fatalf("extension change kept the same path %q", pngPath)
	}

	if _, err := os.Stat(jpgPath); !os.IsNotExist(err) {
		t.Fatalf("old cached file still present: %v", err)
	}
	if got, ok := imageCache.Get(ctx, "r1"); !ok || got != pngPath {
		t.Fatalf("mapping not switched: %q ok=%v", got, ok)
	}
}

func TestRemove(t *testing.T) {
	imageCache := setupImageCache(t)
	ctx := context.Background()

	source := writeSourceImage(t, "photo.jpg", []byte("jpg"))
	localPath, ok := imageCache.Put(ctx, "r1", source)
	if !ok {
		t.Fatal("put failed")
	}

	imageCache.Remove(ctx, "r1")

	if _, err := os.Stat(localPath); !os.IsNotExist(err) {
		t.Fatalf("cached file still present after remove: %v", err)
	}
	if _, ok := imageCache.Get(ctx, "r1"); ok {
		t.Fatal("mapping still present after remove")
	}

	// Removing again is a no-op.
	imageCache.Remove(ctx, "r1")
}

func TestFileExtension(t *testing.T) {
	cases := map[string]string{
		"photo.JPG":                        "jpg",
		"photo.png":                        "png",
		"photo":                            "jpg",
		"https://cdn.example.edu/p.webp?x": "webp",
		"weird.j!g":                        "jpg",
	}
	for source, want := range cases {
		if got := fileExtension(source); got != want {
			t.Fatalf("fileExtension(%q) = %q, want %q", source, got, want)
		}
	}
}
