package sync

import (
	"time"

	"campussync/internal/domain/feed"
	"campussync/internal/ports"
)

// Ingestion normalization: whatever shape the store hands over, downstream
// always sees RFC 3339 text timestamps and a non-nil follower set, so
// membership checks and snapshot diffs stay total.

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

func normalizeTimestamp(raw any) string {
	switch v := raw.(type) {
	case string:
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed.UTC().Format(time.RFC3339Nano)
			}
		}
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case float64:
		// JSON numbers; treat large magnitudes as unix milliseconds.
		if v > 1e12 {
			return time.UnixMilli(int64(v)).UTC().Format(time.RFC3339Nano)
		}
		return time.Unix(int64(v), 0).UTC().Format(time.RFC3339Nano)
	case int64:
		if v > 1e12 {
			return time.UnixMilli(v).UTC().Format(time.RFC3339Nano)
		}
		return time.Unix(v, 0).UTC().Format(time.RFC3339Nano)
	default:
		return ""
	}
}

func stringField(fields ports.Fields, key string) string {
	if raw, ok := fields[key]; ok {
		if text, ok := raw.(string); ok {
			return text
		}
	}
	return ""
}

func floatField(m map[string]any, key string) float64 {
	if raw, ok := m[key]; ok {
		if f, ok := raw.(float64); ok {
			return f
		}
	}
	return 0
}

func stringSetField(fields ports.Fields, key string) []string {
	switch raw := fields[key].(type) {
	case []string:
		return feed.NormalizeFollowers(raw)
	case []any:
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			if text, ok := item.(string); ok {
				out = append(out, text)
			}
		}
		return feed.NormalizeFollowers(out)
	default:
		// Absent is coerced to an empty set, never nil.
		return []string{}
	}
}

func locationField(fields ports.Fields, key string) feed.Location {
	raw, ok := fields[key].(map[string]any)
	if !ok {
		return feed.Location{}
	}
	loc := feed.Location{
		Latitude:  floatField(raw, "latitude"),
		Longitude: floatField(raw, "longitude"),
	}
	if address, ok := raw["address"].(string); ok {
		loc.Address = address
	}
	return loc
}

func decodeReport(doc ports.Document) feed.Report {
	return feed.Report{
		ID:            doc.ID,
		Type:          feed.ReportType(stringField(doc.Fields, "type")),
		Title:         stringField(doc.Fields, "title"),
		Description:   stringField(doc.Fields, "description"),
		Location:      locationField(doc.Fields, "location"),
		Status:        feed.ReportStatus(stringField(doc.Fields, "status")),
		CreatedBy:     stringField(doc.Fields, "createdBy"),
		CreatedByName: stringField(doc.Fields, "createdByName"),
		CreatedAt:     normalizeTimestamp(doc.Fields["createdAt"]),
		UpdatedAt:     normalizeTimestamp(doc.Fields["updatedAt"]),
		PhotoURL:      stringField(doc.Fields, "photoUrl"),
		FollowedBy:    stringSetField(doc.Fields, "followedBy"),
	}
}

func decodeAlert(doc ports.Document) feed.EmergencyAlert {
	return feed.EmergencyAlert{
		ID:        doc.ID,
		Title:     stringField(doc.Fields, "title"),
		Message:   stringField(doc.Fields, "message"),
		CreatedAt: normalizeTimestamp(doc.Fields["createdAt"]),
		CreatedBy: stringField(doc.Fields, "createdBy"),
	}
}

func decodeReports(docs []ports.Document) []feed.Report {
	reports := make([]feed.Report, 0, len(docs))
	for _, doc := range docs {
		reports = append(reports, decodeReport(doc))
	}
	feed.SortReports(reports)
	return reports
}

func decodeAlerts(docs []ports.Document) []feed.EmergencyAlert {
	alerts := make([]feed.EmergencyAlert, 0, len(docs))
	for _, doc := range docs {
		alerts = append(alerts, decodeAlert(doc))
	}
	feed.SortAlerts(alerts)
	return alerts
}
