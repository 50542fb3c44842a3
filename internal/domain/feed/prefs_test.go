package feed

import "testing"

func TestDefaultPreferencesAllowEverything(t *testing.T) {
	prefs := DefaultPreferences()

	events := []Event{
		{Kind: EventEmergencyRaised, EntityID: "a1"},
		{Kind: EventStatusChanged, EntityID: "r1", ReportType: TypeHealth},
		{Kind: EventReportRemoved, EntityID: "r2", ReportType: TypeLostFound},
	}
	for _, ev := range events {
		if !prefs.Allows(ev) {
			t.Fatalf("defaults blocked %+v", ev)
		}
	}
}

func TestEmergencyGateIgnoresPushSetting(t *testing.T) {
	prefs := NotificationPreferences{PushEnabled: false, EmergencyAlerts: true}
	if !prefs.Allows(Event{Kind: EventEmergencyRaised}) {
		t.Fatal("emergency blocked despite emergency_alerts enabled")
	}

	prefs.EmergencyAlerts = false
	if prefs.Allows(Event{Kind: EventEmergencyRaised}) {
		t.Fatal("emergency delivered despite emergency_alerts disabled")
	}
}

func TestPushDisabledBlocksReportEvents(t *testing.T) {
	prefs := NotificationPreferences{PushEnabled: false, EmergencyAlerts: true}
	if prefs.Allows(Event{Kind: EventStatusChanged, ReportType: TypeSecurity}) {
		t.Fatal("status change delivered with push disabled")
	}
}

func TestTypePreferenceAbsentMeansEnabled(t *testing.T) {
	prefs := NotificationPreferences{
		PushEnabled:     true,
		TypePreferences: map[ReportType]bool{TypeLostFound: false},
	}

	if prefs.Allows(Event{Kind: EventStatusChanged, ReportType: TypeLostFound}) {
		t.Fatal("disabled type delivered")
	}
	if !prefs.Allows(Event{Kind: EventStatusChanged, ReportType: TypeHealth}) {
		t.Fatal("absent type blocked")
	}
}

func TestFilterEventsKeepsOrder(t *testing.T) {
	prefs := NotificationPreferences{
		PushEnabled:     true,
		EmergencyAlerts: false,
		TypePreferences: map[ReportType]bool{TypeTechnical: false},
	}

	in := []Event{
		{Kind: EventEmergencyRaised, EntityID: "a1"},
		{Kind: EventStatusChanged, EntityID: "r1", ReportType: TypeHealth},
		{Kind: EventStatusChanged, EntityID: "r2", ReportType: TypeTechnical},
		{Kind: EventReportRemoved, EntityID: "r3", ReportType: TypeHealth},
	}

	out := FilterEvents(prefs, in)
	if len(out) != 2 {
		t.Fatalf("expected two events, got %+v", out)
	}
	if out[0].EntityID != "r1" || out[1].EntityID != "r3" {
		t.Fatalf("order not preserved: %+v", out)
	}
}
