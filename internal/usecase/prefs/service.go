package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"campussync/internal/bootstrap/logging"
	"campussync/internal/domain/feed"
	"campussync/internal/errs"
	"campussync/internal/ports"
)

const keyPrefix = "notification_prefs:"

// Service persists per-user notification preferences in the durable KV, one
// serialized value per user. Absent or unreadable entries fall back to the
// configured defaults, so event filtering never fails closed by accident.
type Service struct {
	kv       ports.Cache
	defaults feed.NotificationPreferences
}

func NewService(kv ports.Cache) *Service {
	return &Service{kv: kv, defaults: feed.DefaultPreferences()}
}

// SetDefaults replaces the fallback used for users with no stored entry.
func (s *Service) SetDefaults(defaults feed.NotificationPreferences) {
	s.defaults = defaults
}

func key(userID string) string {
	return keyPrefix + userID
}

// For resolves a user's preferences, falling back to defaults on any miss or
// decode problem. Never fails; the notifier calls this on the delivery path.
func (s *Service) For(ctx context.Context, userID string) feed.NotificationPreferences {
	if ctx == nil || strings.TrimSpace(userID) == "" || s.kv == nil {
		return s.defaults
	}

	raw, found, err := s.kv.Get(ctx, key(userID))
	if err != nil {
		logging.Warn(ctx, "preferences lookup failed, using defaults",
			slog.String("user_id", userID),
			slog.Any("err", errs.Loggable(err)))
		return s.defaults
	}
	if !found {
		return s.defaults
	}

	var prefs feed.NotificationPreferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		logging.Warn(ctx, "preferences entry unreadable, using defaults",
			slog.String("user_id", userID),
			slog.Any("err", errs.Loggable(err)))
		return s.defaults
	}
	return prefs
}

// Save stores a user's preferences.
func (s *Service) Save(ctx context.Context, userID string, prefs feed.NotificationPreferences) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	if s.kv == nil {
		return errors.New("kv cache is required")
	}

	encoded, err := json.Marshal(prefs)
	if err != nil {
		return errs.Wrap(err, "encode preferences")
	}

	if err := s.kv.Set(ctx, key(userID), string(encoded), 0); err != nil {
		return errs.Wrap(err, "store preferences")
	}
	return nil
}

// defaultsFile is the TOML shape of a preferences defaults file:
//
//	push_enabled = true
//	email_enabled = false
//	emergency_alerts = true
//
//	[types]
//	lost_found = false
type defaultsFile struct {
	PushEnabled     *bool           `toml:"push_enabled"`
	EmailEnabled    *bool           `toml:"email_enabled"`
	EmergencyAlerts *bool           `toml:"emergency_alerts"`
	Types           map[string]bool `toml:"types"`
}

// DefaultsFromFile loads deployment-wide preference defaults from TOML.
// Unset keys keep the all-enabled defaults.
func DefaultsFromFile(path string) (feed.NotificationPreferences, error) {
	defaults := feed.DefaultPreferences()

	raw, err := os.ReadFile(path)
	if err != nil {
		return defaults, errs.Wrapf(err, "read preferences defaults %q", path)
	}

	var parsed defaultsFile
	if err := toml.Unmarshal(raw, &parsed); err != nil {
		return defaults, errs.Wrapf(err, "parse preferences defaults %q", path)
	}

	if parsed.PushEnabled != nil {
		defaults.PushEnabled = *parsed.PushEnabled
	}
	if parsed.EmailEnabled != nil {
		defaults.EmailEnabled = *parsed.EmailEnabled
	}
	if parsed.EmergencyAlerts != nil {
		defaults.EmergencyAlerts = *parsed.EmergencyAlerts
	}
	if len(parsed.Types) > 0 {
		defaults.TypePreferences = make(map[feed.ReportType]bool, len(parsed.Types))
		for name, enabled := range parsed.Types {
			reportType, err := feed.ParseReportType(name)
			if err != nil {
				return defaults, errs.Wrapf(err, "preferences defaults type %q", name)
			}
			defaults.TypePreferences[reportType] = enabled
		}
	}

	return defaults, nil
}
