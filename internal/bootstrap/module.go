package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"campussync/internal/bootstrap/config"
	"campussync/internal/bootstrap/database"
	"campussync/internal/bootstrap/logging"
	domainfeed "campussync/internal/domain/feed"
	"campussync/internal/errs"
	"campussync/internal/infrastructure/blob"
	"campussync/internal/infrastructure/bus"
	cacheinfra "campussync/internal/infrastructure/cache"
	"campussync/internal/infrastructure/identity"
	"campussync/internal/infrastructure/imagecache"
	sqlitestore "campussync/internal/infrastructure/persistence/sqlite/store"
	"campussync/internal/ports"
	"campussync/internal/server"
	"campussync/internal/server/ws"
	feedsvc "campussync/internal/usecase/feed"
	prefssvc "campussync/internal/usecase/prefs"
	livesync "campussync/internal/usecase/sync"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideDocumentStore),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideImageCache),
	fx.Provide(provideBlobStore),
	fx.Provide(provideIdentity),
	fx.Provide(provideSynchronizer),
	fx.Provide(ws.NewHub),
	fx.Provide(providePrefs),
	fx.Provide(provideNotifier),
	fx.Provide(feedsvc.NewService),
	fx.Provide(provideServer),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideDocumentStore(lc fx.Lifecycle, db *gorm.DB) ports.DocumentStore {
	store := sqlitestore.New(db)
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			store.Close()
			return nil
		},
	})
	return store
}

func provideImageCache(lc fx.Lifecycle, ctx context.Context, cfg config.Config, kv ports.Cache) (ports.ImageCache, error) {
	cache, err := imagecache.New(ctx, cfg.Storage.ImageDir, kv)
	if err != nil {
		return nil, errs.Wrap(err, "init image cache")
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := cache.Watch(ctx); err != nil {
					logging.Warn(ctx, "image cache watcher unavailable", slog.Any("err", errs.Loggable(err)))
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			cache.Close()
			return nil
		},
	})
	return cache, nil
}

func provideBlobStore(cfg config.Config) (ports.BlobStore, error) {
	switch strings.ToLower(cfg.Storage.Mode) {
	case "", "local":
		return blob.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.BaseURL)
	case "http":
		return blob.NewHTTPStore(cfg.Storage.RemoteURL, cfg.Storage.AuthToken)
	default:
		return nil, errors.New("unsupported storage mode " + cfg.Storage.Mode)
	}
}

func provideIdentity(cfg config.Config) (ports.Identity, error) {
	switch strings.ToLower(cfg.Identity.Mode) {
	case "token":
		return identity.NewFromToken(cfg.Identity.Token, cfg.Identity.Secret)
	case "", "static":
		if strings.TrimSpace(cfg.Identity.UserID) == "" {
			return identity.NewStatic(), nil
		}
		return identity.NewStaticSignedIn(domainfeed.Principal{
			ID:          cfg.Identity.UserID,
			Role:        domainfeed.Role(cfg.Identity.Role),
			DisplayName: cfg.Identity.Name,
			Email:       cfg.Identity.Email,
			Department:  cfg.Identity.Department,
		}), nil
	default:
		return nil, errors.New("unsupported identity mode " + cfg.Identity.Mode)
	}
}

func provideSynchronizer(lc fx.Lifecycle, ctx context.Context, store ports.DocumentStore) *livesync.Synchronizer {
	syncer := livesync.NewSynchronizer(store)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return syncer.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			syncer.Stop()
			return nil
		},
	})
	return syncer
}

func providePrefs(ctx context.Context, cfg config.Config, kv ports.Cache) *prefssvc.Service {
	service := prefssvc.NewService(kv)
	if cfg.Prefs.DefaultsFile != "" {
		defaults, err := prefssvc.DefaultsFromFile(cfg.Prefs.DefaultsFile)
		if err != nil {
			logging.Warn(ctx, "notification defaults file ignored",
				slog.String("path", cfg.Prefs.DefaultsFile),
				slog.Any("err", errs.Loggable(err)))
		} else {
			service.SetDefaults(defaults)
		}
	}
	return service
}

func provideNotifier(lc fx.Lifecycle, ctx context.Context, cfg config.Config, syncer *livesync.Synchronizer, id ports.Identity, prefs *prefssvc.Service, hub *ws.Hub) (*livesync.Notifier, error) {
	notifier := livesync.NewNotifier(syncer, id, prefs, hub)

	if cfg.NATS.Enabled {
		dialCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
		publisher, err := bus.Connect(dialCtx, cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			// An unreachable broker degrades the bridge, never startup.
			logging.Warn(ctx, "nats bridge unreachable, events stay local",
				slog.String("url", cfg.NATS.URL),
				slog.Any("err", errs.Loggable(err)))
			notifier.AddSink(bus.Noop{})
		} else {
			notifier.AddSink(publisher)
			lc.Append(fx.Hook{
				OnStop: func(_ context.Context) error {
					publisher.Close()
					return nil
				},
			})
		}
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := notifier.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					logging.Error(runCtx, "notifier stopped", slog.Any("err", errs.Loggable(err)))
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancelRun()
			return nil
		},
	})

	return notifier, nil
}

func provideServer(cfg config.Config, feed *feedsvc.Service, syncer *livesync.Synchronizer, notifier *livesync.Notifier, prefs *prefssvc.Service, id ports.Identity, hub *ws.Hub) *server.Server {
	return server.New(cfg.Server.Addr, feed, syncer, notifier, prefs, id, hub)
}
