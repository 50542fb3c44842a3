package sync

import (
	"reflect"
	"testing"
	"time"

	"campussync/internal/ports"
)

func TestNormalizeTimestamp(t *testing.T) {
	want := "2026-03-01T10:30:00Z"

	cases := []any{
		"2026-03-01T10:30:00Z",
		"2026-03-01 10:30:00",
		time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		float64(1772361000),    // unix seconds
		float64(1772361000000), // unix milliseconds
		int64(1772361000),
	}
	for _, raw := range cases {
		got := normalizeTimestamp(raw)
		parsed, err := time.Parse(time.RFC3339Nano, got)
		if err != nil {
			t.Fatalf("normalizeTimestamp(%v) = %q, not RFC3339: %v", raw, got, err)
		}
		if parsed.UTC().Format(time.RFC3339) != want {
			t.Fatalf("normalizeTimestamp(%v) = %q, want instant %s", raw, got, want)
		}
	}

	if got := normalizeTimestamp(nil); got != "" {
		t.Fatalf("nil timestamp produced %q", got)
	}
	if got := normalizeTimestamp("not a time"); got != "not a time" {
		t.Fatalf("unparseable string not passed through: %q", got)
	}
}

func TestDecodeReportCoercesMissingFields(t *testing.T) {
	report := decodeReport(ports.Document{ID: "r1", Fields: ports.Fields{
		"title":  "Spill",
		"status": "open",
	}})

	if report.ID != "r1" || report.Title != "Spill" {
		t.Fatalf("fields not mapped: %+v", report)
	}
	if report.FollowedBy == nil || len(report.FollowedBy) != 0 {
		t.Fatalf("absent follower set must decode to empty non-nil, got %#v", report.FollowedBy)
	}
}

func TestDecodeReportLocationAndFollowers(t *testing.T) {
	report := decodeReport(ports.Document{ID: "r1", Fields: ports.Fields{
		"title": "Spill",
		"location": map[string]any{
			"latitude":  float64(40.1),
			"longitude": float64(-75.3),
			"address":   "Science Hall",
		},
		"followedBy": []any{"u1", "u2", "u1"},
	}})

	if report.Location.Latitude != 40.1 || report.Location.Address != "Science Hall" {
		t.Fatalf("location not decoded: %+v", report.Location)
	}
	if !reflect.DeepEqual(report.FollowedBy, []string{"u1", "u2"}) {
		t.Fatalf("followers not normalized: %v", report.FollowedBy)
	}
}

func TestDecodeReportsSortsNewestFirst(t *testing.T) {
	docs := []ports.Document{
		{ID: "old", Fields: ports.Fields{"createdAt": "2026-03-01T08:00:00Z"}},
		{ID: "new", Fields: ports.Fields{"createdAt": "2026-03-01T09:00:00Z"}},
	}

	reports := decodeReports(docs)
	if reports[0].ID != "new" || reports[1].ID != "old" {
		t.Fatalf("not newest first: %s, %s", reports[0].ID, reports[1].ID)
	}
}
