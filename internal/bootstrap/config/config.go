package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"campussync/internal/bootstrap/logging"
	"campussync/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Identity IdentityConfig `mapstructure:"identity"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Prefs    PrefsConfig    `mapstructure:"prefs"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type StorageConfig struct {
	// Mode selects the blob backend: "local" writes under local_dir,
	// "http" uploads to remote_url.
	Mode      string `mapstructure:"mode"`
	LocalDir  string `mapstructure:"local_dir"`
	BaseURL   string `mapstructure:"base_url"`
	RemoteURL string `mapstructure:"remote_url"`
	AuthToken string `mapstructure:"auth_token"`
	// ImageDir holds the on-device copies of report photos.
	ImageDir string `mapstructure:"image_dir"`
}

type IdentityConfig struct {
	// Mode is "static" (principal from config) or "token" (JWT).
	Mode       string `mapstructure:"mode"`
	Token      string `mapstructure:"token"`
	Secret     string `mapstructure:"secret"`
	UserID     string `mapstructure:"user_id"`
	Role       string `mapstructure:"role"`
	Name       string `mapstructure:"name"`
	Email      string `mapstructure:"email"`
	Department string `mapstructure:"department"`
}

type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type PrefsConfig struct {
	DefaultsFile string `mapstructure:"defaults_file"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(logCtx, v)

	v.SetEnvPrefix("CS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}
	if cfg.Storage.Mode == "http" && cfg.Storage.RemoteURL == "" {
		return Config{}, errors.New("storage.remote_url is required in http mode")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("storage_mode", cfg.Storage.Mode),
		slog.String("identity_mode", cfg.Identity.Mode),
	)

	return cfg, nil
}

func setDefaults(ctx context.Context, v *viper.Viper) {
	if ctx == nil {
		return
	}

	v.SetDefault("app.name", "campussync")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".campussync/state/feed.sqlite")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.local_dir", ".campussync/objects")
	v.SetDefault("storage.base_url", "http://localhost:8080/objects")
	v.SetDefault("storage.image_dir", ".campussync/images")
	v.SetDefault("identity.mode", "static")
	v.SetDefault("identity.role", "user")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject_prefix", "campussync.events")
}

// ConnectTimeout bounds startup dials such as the NATS connection.
const ConnectTimeout = 10 * time.Second
