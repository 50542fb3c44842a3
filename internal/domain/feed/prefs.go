package feed

// NotificationPreferences controls which derived events reach the user.
// An absent entry in TypePreferences means enabled.
type NotificationPreferences struct {
	PushEnabled     bool                `json:"pushEnabled"`
	EmailEnabled    bool                `json:"emailEnabled"`
	EmergencyAlerts bool                `json:"emergencyAlerts"`
	TypePreferences map[ReportType]bool `json:"typePreferences,omitempty"`
}

// DefaultPreferences enables everything.
func DefaultPreferences() NotificationPreferences {
	return NotificationPreferences{
		PushEnabled:     true,
		EmailEnabled:    true,
		EmergencyAlerts: true,
	}
}

// Allows reports whether an event should be delivered under these
// preferences.
func (p NotificationPreferences) Allows(ev Event) bool {
	if ev.Kind == EventEmergencyRaised {
		return p.EmergencyAlerts
	}

	if !p.PushEnabled {
		return false
	}
	if ev.ReportType == "" {
		return true
	}
	if enabled, ok := p.TypePreferences[ev.ReportType]; ok {
		return enabled
	}
	return true
}

// FilterEvents drops events the preferences disable.
func FilterEvents(prefs NotificationPreferences, events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if prefs.Allows(ev) {
			out = append(out, ev)
		}
	}
	return out
}
