package feed

import (
	"errors"
	"strings"
)

// ParseReportType validates a raw report type value.
func ParseReportType(raw string) (ReportType, error) {
	candidate := ReportType(strings.TrimSpace(strings.ToLower(raw)))
	for _, t := range ReportTypes() {
		if candidate == t {
			return t, nil
		}
	}
	return "", ErrInvalidReportType
}

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (ReportStatus, error) {
	switch ReportStatus(strings.TrimSpace(strings.ToLower(raw))) {
	case StatusOpen:
		return StatusOpen, nil
	case StatusInReview:
		return StatusInReview, nil
	case StatusResolved:
		return StatusResolved, nil
	default:
		return "", ErrInvalidStatus
	}
}

func validStatus(s ReportStatus) bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// NewReportInput is the caller-supplied part of a report; identity,
// timestamps, status and followers are stamped by the mutation path.
type NewReportInput struct {
	Type        ReportType
	Title       string
	Description string
	Location    Location
	PhotoURL    string
}

// ValidateNewReport checks caller-supplied report fields.
func ValidateNewReport(input NewReportInput) error {
	if _, err := ParseReportType(string(input.Type)); err != nil {
		return err
	}
	if strings.TrimSpace(input.Title) == "" {
		return errors.New("title is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		return errors.New("description is required")
	}
	if input.Location.Latitude < -90 || input.Location.Latitude > 90 {
		return errors.New("latitude out of range")
	}
	if input.Location.Longitude < -180 || input.Location.Longitude > 180 {
		return errors.New("longitude out of range")
	}
	return nil
}

// NormalizeFollowers deduplicates and drops empty ids, preserving first-seen
// order. A nil input yields an empty, non-nil set so membership checks stay
// total downstream.
func NormalizeFollowers(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
