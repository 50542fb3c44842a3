package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domainfeed "campussync/internal/domain/feed"
	"campussync/internal/infrastructure/cache"
	"campussync/internal/infrastructure/identity"
	"campussync/internal/infrastructure/persistence/sqlite/model"
	sqlitestore "campussync/internal/infrastructure/persistence/sqlite/store"
	"campussync/internal/server/ws"
	feedsvc "campussync/internal/usecase/feed"
	prefssvc "campussync/internal/usecase/prefs"
	livesync "campussync/internal/usecase/sync"
)

func setupServer(t *testing.T, principal domainfeed.Principal) (*Server, *identity.Static) {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "feed.sqlite")), &gorm.Config{})
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

	store := sqlitestore.New(db)
	t.Cleanup(store.Close)

	var id *identity.Static
	if principal.ID == "" {
		id = identity.NewStatic()
	} else {
		id = identity.NewStaticSignedIn(principal)
	}

	syncer := livesync.NewSynchronizer(store)
	if err := syncer.Start(context.Background()); err != nil {
		t.Fatalf("start synchronizer: %v", err)
	}
	t.Cleanup(syncer.Stop)

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := syncer.WaitReady(waitCtx); err != nil {
		t.Fatalf("wait ready: %v", err)
	}

	prefs := prefssvc.NewService(cache.NewSQLiteCache(db))
	notifier := livesync.NewNotifier(syncer, id, prefs)
	service := feedsvc.NewService(store, id, syncer, nil, nil)

	return New(":0", service, syncer, notifier, prefs, id, ws.NewHub()), id
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestHealthz(t *testing.T) {
	server, _ := setupServer(t, domainfeed.Principal{ID: "u1", Role: domainfeed.RoleUser, DisplayName: "Jordan"})
	router := server.Router()

	resp := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz status %d", resp.Code)
	}
}

func TestCreateAndListReports(t *testing.T) {
	server, _ := setupServer(t, domainfeed.Principal{ID: "u1", Role: domainfeed.RoleUser, DisplayName: "Jordan"})
	router := server.Router()

	resp := doJSON(t, router, http.MethodPost, "/api/v1/reports", map[string]any{
		"type":        "security",
		"title":       "Broken gate",
		"description": "East lot entrance does not close",
		"location":    map[string]any{"latitude": 40.1, "longitude": -75.3},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create status %d body %s", resp.Code, resp.Body.String())
	}

	var created domainfeed.Report
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created report: %v", err)
	}
	if created.ID == "" || created.CreatedByName != "Jordan" {
		t.Fatalf("unexpected report %+v", created)
	}

	// The list serves the synchronizer snapshot; give the write a moment to
	// propagate.
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp = doJSON(t, router, http.MethodGet, "/api/v1/reports", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("list status %d", resp.Code)
		}
		var listed struct {
			Reports []domainfeed.Report `json:"reports"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &listed); err != nil {
			t.Fatalf("decode list: %v", err)
		}
		if len(listed.Reports) == 1 && listed.Reports[0].ID == created.ID {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("created report never reached the list: %s", resp.Body.String())
		}
		time.Sleep(50 * time.Millisecond)
	}

	resp = doJSON(t, router, http.MethodGet, "/api/v1/reports/"+created.ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("get status %d", resp.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	server, id := setupServer(t, domainfeed.Principal{ID: "u1", Role: domainfeed.RoleUser, DisplayName: "Jordan"})
	router := server.Router()

	// Unknown report -> 404.
	resp := doJSON(t, router, http.MethodGet, "/api/v1/reports/nope", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("missing report status %d", resp.Code)
	}

	// Non-admin alert creation -> 403.
	resp = doJSON(t, router, http.MethodPost, "/api/v1/alerts", map[string]any{
		"title": "Fire Drill", "message": "Building C",
	})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("denied alert status %d", resp.Code)
	}

	// Invalid status value -> 422.
	resp = doJSON(t, router, http.MethodPatch, "/api/v1/reports/nope/status", map[string]any{
		"status": "escalated",
	})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid status code %d", resp.Code)
	}

	// Empty update -> 422.
	resp = doJSON(t, router, http.MethodPatch, "/api/v1/reports/nope", map[string]any{})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty update status %d", resp.Code)
	}

	// Signed out -> 401 on auth-gated reads and writes.
	id.SignOut()
	resp = doJSON(t, router, http.MethodGet, "/api/v1/reports/followed", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("signed-out followed status %d", resp.Code)
	}
	resp = doJSON(t, router, http.MethodPost, "/api/v1/reports", map[string]any{
		"type": "security", "title": "t", "description": "d",
	})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("signed-out create status %d", resp.Code)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	server, _ := setupServer(t, domainfeed.Principal{ID: "u1", Role: domainfeed.RoleUser, DisplayName: "Jordan"})
	router := server.Router()

	resp := doJSON(t, router, http.MethodGet, "/api/v1/preferences", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("get prefs status %d", resp.Code)
	}

	resp = doJSON(t, router, http.MethodPut, "/api/v1/preferences", map[string]any{
		"pushEnabled":     true,
		"emailEnabled":    false,
		"emergencyAlerts": true,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("put prefs status %d", resp.Code)
	}

	resp = doJSON(t, router, http.MethodGet, "/api/v1/preferences", nil)
	var prefs domainfeed.NotificationPreferences
	if err := json.Unmarshal(resp.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("decode prefs: %v", err)
	}
	if prefs.EmailEnabled {
		t.Fatal("saved preference not served")
	}
}
