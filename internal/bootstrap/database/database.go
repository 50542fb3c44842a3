package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"campussync/internal/bootstrap/config"
	"campussync/internal/bootstrap/logging"
	"campussync/internal/errs"
)

// Open connects the local state database. Only sqlite is supported; the file
// lives under the user's state directory and is created on first run.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.database"))

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver != "" && driver != "sqlite" && driver != "sqlite3" {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := ensureStateDir(cfg.DSN); err != nil {
		return nil, errs.Wrap(err, "ensure state directory")
	}

	db, err := gorm.Open(gormsqlite.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, errs.Wrap(err, "open sqlite db")
	}

	// The document store funnels all writes through one transaction at a
	// time; a single connection avoids SQLITE_BUSY under write load.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errs.Wrap(err, "access sql db")
	}
	sqlDB.SetMaxOpenConns(1)

	logging.Info(logCtx, "database opened", slog.String("dsn", cfg.DSN))
	return db, nil
}

// ensureStateDir creates the directory holding the sqlite file. Memory DSNs
// and bare filenames need nothing.
func ensureStateDir(dsn string) error {
	path := strings.TrimSpace(dsn)
	if path == "" || path == ":memory:" {
		return nil
	}
	path = strings.TrimPrefix(path, "file:")
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	if path == "" || path == ":memory:" {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create state directory %q", dir)
	}
	return nil
}
