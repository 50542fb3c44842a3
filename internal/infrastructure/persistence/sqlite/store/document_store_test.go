package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"campussync/internal/infrastructure/persistence/sqlite/model"
	"campussync/internal/ports"
)

func setupStore(t *testing.T) *DocumentStore {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "feed.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&model.Document{}, &model.SetMember{}, &model.KVEntry{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	store := New(db)
	t.Cleanup(store.Close)
	return store
}

func TestCreateAndGetOne(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, "reports", ports.Fields{
		"title":      "Flooded hallway",
		"status":     "open",
		"followedBy": []string{"u1", "u1", "u2"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	doc, found, err := store.GetOne(ctx, "reports", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("document not found after create")
	}
	if doc.Fields["title"] != "Flooded hallway" {
		t.Fatalf("unexpected title %v", doc.Fields["title"])
	}
	followers, _ := doc.Fields["followedBy"].([]string)
	if !reflect.DeepEqual(followers, []string{"u1", "u2"}) {
		t.Fatalf("set members not deduplicated: %v", followers)
	}
}

func TestGetOneMissing(t *testing.T) {
	store := setupStore(t)

	_, found, err := store.GetOne(context.Background(), "reports", "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("missing document reported as found")
	}
}

func TestUpdateMergesScalars(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, "reports", ports.Fields{
		"title":       "Broken light",
		"description": "west entrance",
		"status":      "open",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.Update(ctx, "reports", id, ports.Fields{"status": "in_review"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	doc, _, err := store.GetOne(ctx, "reports", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Fields["status"] != "in_review" {
		t.Fatalf("status not updated: %v", doc.Fields["status"])
	}
	if doc.Fields["description"] != "west entrance" {
		t.Fatalf("untouched field lost: %v", doc.Fields["description"])
	}
}

func TestUpdateMissingDocument(t *testing.T) {
	store := setupStore(t)

	err := store.Update(context.Background(), "reports", "nope", ports.Fields{"status": "open"})
	if !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ports.ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesDocumentAndMembers(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, "reports", ports.Fields{
		"title":      "t",
		"followedBy": []string{"u1"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.Delete(ctx, "reports", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := store.GetOne(ctx, "reports", id); found {
		t.Fatal("document still present after delete")
	}
	if err := store.Delete(ctx, "reports", id); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("second delete: expected ports.ErrNotFound, got %v", err)
	}
}

func TestListOrderedNewestFirstWithTiebreak(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	early := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339Nano)
	late := time.Now().UTC().Format(time.RFC3339Nano)

	if _, err := store.Create(ctx, "reports", ports.Fields{"title": "old", "createdAt": early}); err != nil {
		t.Fatalf("create old: %v", err)
	}
	if _, err := store.Create(ctx, "reports", ports.Fields{"title": "tie-a", "createdAt": late}); err != nil {
		t.Fatalf("create tie-a: %v", err)
	}
	if _, err := store.Create(ctx, "reports", ports.Fields{"title": "tie-b", "createdAt": late}); err != nil {
		t.Fatalf("create tie-b: %v", err)
	}

	docs, err := store.ListOrdered(ctx, "reports", "createdAt", ports.SortDesc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected three documents, got %d", len(docs))
	}
	if docs[2].Fields["title"] != "old" {
		t.Fatalf("oldest document not last: %v", docs[2].Fields["title"])
	}
	// Equal timestamps break ties by doc id, so the ordering is total and
	// stable across reads.
	if docs[0].ID < docs[1].ID {
		t.Fatalf("descending id tiebreak violated: %s before %s", docs[0].ID, docs[1].ID)
	}

	again, err := store.ListOrdered(ctx, "reports", "createdAt", ports.SortDesc)
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	for i := range docs {
		if docs[i].ID != again[i].ID {
			t.Fatalf("ordering not stable at index %d", i)
		}
	}
}

func TestAddToSetAndRemoveFromSet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, "reports", ports.Fields{"title": "t"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.AddToSet(ctx, "reports", id, "followedBy", "u1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	// Adding twice is idempotent.
	if err := store.AddToSet(ctx, "reports", id, "followedBy", "u1"); err != nil {
		t.Fatalf("second add: %v", err)
	}

	doc, _, err := store.GetOne(ctx, "reports", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	followers, _ := doc.Fields["followedBy"].([]string)
	if !reflect.DeepEqual(followers, []string{"u1"}) {
		t.Fatalf("unexpected members %v", followers)
	}

	if err := store.RemoveFromSet(ctx, "reports", id, "followedBy", "u1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	doc, _, err = store.GetOne(ctx, "reports", id)
	if err != nil {
		t.Fatalf("get after remove: %v", err)
	}
	if _, ok := doc.Fields["followedBy"]; ok {
		t.Fatalf("empty set still materialized: %v", doc.Fields["followedBy"])
	}

	if err := store.AddToSet(ctx, "reports", "nope", "followedBy", "u1"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("add to missing doc: expected ports.ErrNotFound, got %v", err)
	}
}

func TestSubscribeOrderedDeliversInitialAndUpdates(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "reports", ports.Fields{"title": "first"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	sub, err := store.SubscribeOrdered(ctx, "reports", "createdAt", ports.SortDesc)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	select {
	case docs := <-sub.C():
		if len(docs) != 1 {
			t.Fatalf("initial delivery has %d documents", len(docs))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no initial delivery")
	}

	if _, err := store.Create(ctx, "reports", ports.Fields{"title": "second"}); err != nil {
		t.Fatalf("create second: %v", err)
	}

	select {
	case docs := <-sub.C():
		if len(docs) != 2 {
			t.Fatalf("post-write delivery has %d documents", len(docs))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery after write")
	}
}

func TestSubscriptionLatestWins(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	sub, err := store.SubscribeOrdered(ctx, "reports", "createdAt", ports.SortDesc)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	// Nobody reads while three writes land; the subscriber must observe only
	// the newest state afterwards.
	for i := 0; i < 3; i++ {
		if _, err := store.Create(ctx, "reports", ports.Fields{"title": "t"}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	select {
	case docs := <-sub.C():
		if len(docs) != 3 {
			t.Fatalf("expected the latest snapshot with 3 documents, got %d", len(docs))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	sub, err := store.SubscribeOrdered(ctx, "reports", "createdAt", ports.SortDesc)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sub.Cancel()

	if _, err := store.Create(ctx, "reports", ports.Fields{"title": "t"}); err != nil {
		t.Fatalf("create after cancel: %v", err)
	}

	if _, open := <-sub.C(); open {
		// The initial snapshot may still be buffered; the channel must be
		// closed after draining it.
		if _, open := <-sub.C(); open {
			t.Fatal("channel still open after cancel")
		}
	}
}

// expiringCtx reports canceled after its first Err check, mimicking a writer
// whose request context dies between the entry guard and the commit.
type expiringCtx struct {
	context.Context
	checks atomic.Int32
}

func (c *expiringCtx) Err() error {
	if c.checks.Add(1) > 1 {
		return context.Canceled
	}
	return nil
}

func TestNotifySurvivesWriterContextCancellation(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	sub, err := store.SubscribeOrdered(ctx, "reports", "createdAt", ports.SortDesc)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	select {
	case docs := <-sub.C():
		if len(docs) != 0 {
			t.Fatalf("initial delivery has %d documents", len(docs))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no initial delivery")
	}

	writerCtx := &expiringCtx{Context: ctx}
	id, err := store.Create(writerCtx, "reports", ports.Fields{"title": "late client"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, found, err := store.GetOne(ctx, "reports", id); err != nil || !found {
		t.Fatalf("committed document not readable: found=%v err=%v", found, err)
	}

	select {
	case docs := <-sub.C():
		if len(docs) != 1 || docs[0].ID != id {
			t.Fatalf("unexpected post-commit delivery: %v", docs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("committed write never reached the subscriber")
	}
}
