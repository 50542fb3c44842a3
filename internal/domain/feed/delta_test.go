package feed

import (
	"reflect"
	"testing"
)

func report(id string, status ReportStatus, followers ...string) Report {
	return Report{
		ID:         id,
		Type:       TypeSecurity,
		Title:      "title-" + id,
		Status:     status,
		FollowedBy: followers,
	}
}

func alert(id string) EmergencyAlert {
	return EmergencyAlert{
		ID:      id,
		Title:   "alert-" + id,
		Message: "message-" + id,
	}
}

func TestDiffAlertsNewAlertRaisesOnce(t *testing.T) {
	prev := []EmergencyAlert{alert("a1")}
	curr := []EmergencyAlert{alert("a1"), alert("a2")}

	events := DiffAlerts(prev, curr)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Kind != EventEmergencyRaised {
		t.Fatalf("unexpected kind %q", events[0].Kind)
	}
	if events[0].EntityID != "a2" {
		t.Fatalf("unexpected entity %q", events[0].EntityID)
	}
	if events[0].Title != "alert-a2" || events[0].Message != "message-a2" {
		t.Fatalf("event payload not carried: %+v", events[0])
	}
}

func TestDiffAlertsIsPure(t *testing.T) {
	prev := []EmergencyAlert{alert("a1")}
	curr := []EmergencyAlert{alert("a1"), alert("a2")}

	first := DiffAlerts(prev, curr)
	second := DiffAlerts(prev, curr)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same pair produced different events: %+v vs %+v", first, second)
	}
}

func TestDiffAlertsUnchangedSnapshotEmitsNothing(t *testing.T) {
	snap := []EmergencyAlert{alert("a1"), alert("a2")}
	if events := DiffAlerts(snap, snap); len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
}

func TestDiffReportsStatusChangeForFollowedReport(t *testing.T) {
	prev := []Report{report("r1", StatusOpen, "u1"), report("r2", StatusOpen, "u2")}
	curr := []Report{report("r1", StatusInReview, "u1"), report("r2", StatusInReview, "u2")}

	events := DiffReports(prev, curr, "u1")
	if len(events) != 1 {
		t.Fatalf("expected one event, got %+v", events)
	}
	if events[0].Kind != EventStatusChanged {
		t.Fatalf("unexpected kind %q", events[0].Kind)
	}
	if events[0].EntityID != "r1" || events[0].Status != StatusInReview {
		t.Fatalf("unexpected event %+v", events[0])
	}
}

func TestDiffReportsEndpointsOnly(t *testing.T) {
	// The intermediate in_review transition was never observed, so only the
	// open -> resolved endpoints are compared.
	prev := []Report{report("r1", StatusOpen, "u1")}
	curr := []Report{report("r1", StatusResolved, "u1")}

	events := DiffReports(prev, curr, "u1")
	if len(events) != 1 {
		t.Fatalf("expected one event, got %+v", events)
	}
	if events[0].Status != StatusResolved {
		t.Fatalf("expected resolved endpoint, got %q", events[0].Status)
	}
}

func TestDiffReportsRemovedFollowedReport(t *testing.T) {
	prev := []Report{report("r1", StatusOpen, "u1"), report("r2", StatusOpen, "u1")}
	curr := []Report{report("r2", StatusOpen, "u1")}

	events := DiffReports(prev, curr, "u1")
	if len(events) != 1 {
		t.Fatalf("expected one event, got %+v", events)
	}
	if events[0].Kind != EventReportRemoved || events[0].EntityID != "r1" {
		t.Fatalf("unexpected event %+v", events[0])
	}
}

func TestDiffReportsRemovedUnfollowedReportSilent(t *testing.T) {
	prev := []Report{report("r1", StatusOpen, "u2")}
	curr := []Report{}

	if events := DiffReports(prev, curr, "u1"); len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
}

func TestDiffReportsUnfollowedBetweenSnapshots(t *testing.T) {
	prev := []Report{report("r1", StatusOpen, "u1")}
	curr := []Report{report("r1", StatusResolved)}

	if events := DiffReports(prev, curr, "u1"); len(events) != 0 {
		t.Fatalf("unfollowed report still produced events: %+v", events)
	}
}

func TestDiffReportsRefollowAlertsAgain(t *testing.T) {
	followed := []Report{report("r1", StatusOpen, "u1")}
	unfollowed := []Report{report("r1", StatusOpen)}

	engine := NewEngine("u1")
	engine.ObserveReports(followed)
	if events := engine.ObserveReports(unfollowed); len(events) != 0 {
		t.Fatalf("unfollow emitted: %+v", events)
	}
	if events := engine.ObserveReports(followed); len(events) != 0 {
		t.Fatalf("re-follow without status change emitted: %+v", events)
	}

	changed := []Report{report("r1", StatusResolved, "u1")}
	events := engine.ObserveReports(changed)
	if len(events) != 1 || events[0].Kind != EventStatusChanged {
		t.Fatalf("expected status change after re-follow, got %+v", events)
	}
}

func TestDiffReportsMalformedStatusSkipped(t *testing.T) {
	prev := []Report{report("r1", "", "u1"), report("r2", StatusOpen, "u1")}
	curr := []Report{report("r1", StatusOpen, "u1"), report("r2", "bogus", "u1")}

	if events := DiffReports(prev, curr, "u1"); len(events) != 0 {
		t.Fatalf("malformed statuses produced events: %+v", events)
	}
}

func TestDiffReportsAnonymousUser(t *testing.T) {
	prev := []Report{report("r1", StatusOpen, "u1")}
	curr := []Report{report("r1", StatusResolved, "u1")}

	if events := DiffReports(prev, curr, ""); len(events) != 0 {
		t.Fatalf("anonymous diff produced events: %+v", events)
	}
}

func TestEngineFirstSnapshotIsBaseline(t *testing.T) {
	engine := NewEngine("u1")

	if events := engine.ObserveReports([]Report{report("r1", StatusOpen, "u1")}); len(events) != 0 {
		t.Fatalf("first report snapshot emitted: %+v", events)
	}
	if events := engine.ObserveAlerts([]EmergencyAlert{alert("a1")}); len(events) != 0 {
		t.Fatalf("first alert snapshot emitted: %+v", events)
	}

	events := engine.ObserveAlerts([]EmergencyAlert{alert("a1"), alert("a2")})
	if len(events) != 1 || events[0].EntityID != "a2" {
		t.Fatalf("expected a2 raised, got %+v", events)
	}
}

func TestEngineSetUserResetsBaselines(t *testing.T) {
	engine := NewEngine("u1")
	engine.ObserveReports([]Report{report("r1", StatusOpen, "u1", "u2")})
	engine.ObserveAlerts([]EmergencyAlert{alert("a1")})

	engine.SetUser("u2")

	// Snapshots after the switch re-establish baselines, so nothing fires
	// even though both collections changed.
	if events := engine.ObserveReports([]Report{report("r1", StatusResolved, "u1", "u2")}); len(events) != 0 {
		t.Fatalf("post-switch report snapshot emitted: %+v", events)
	}
	if events := engine.ObserveAlerts([]EmergencyAlert{alert("a1"), alert("a2")}); len(events) != 0 {
		t.Fatalf("post-switch alert snapshot emitted: %+v", events)
	}

	events := engine.ObserveReports([]Report{report("r1", StatusOpen, "u1", "u2")})
	if len(events) != 1 || events[0].Kind != EventStatusChanged {
		t.Fatalf("expected status change for new user, got %+v", events)
	}
}

func TestDiffReportsIsPure(t *testing.T) {
	prev := []Report{
		report("r1", StatusOpen, "u1"),
		report("r2", StatusOpen, "u1"),
	}
	curr := []Report{
		report("r1", StatusInReview, "u1"),
	}

	first := DiffReports(prev, curr, "u1")
	second := DiffReports(prev, curr, "u1")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same pair produced different events: %+v vs %+v", first, second)
	}
}
