package feed

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseReportType(t *testing.T) {
	if _, err := ParseReportType("security"); err != nil {
		t.Fatalf("valid type rejected: %v", err)
	}
	if parsed, err := ParseReportType("  Lost_Found "); err != nil || parsed != TypeLostFound {
		t.Fatalf("normalization failed: %q %v", parsed, err)
	}
	if _, err := ParseReportType("vandalism"); !errors.Is(err, ErrInvalidReportType) {
		t.Fatalf("expected ErrInvalidReportType, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if parsed, err := ParseStatus("IN_REVIEW"); err != nil || parsed != StatusInReview {
		t.Fatalf("normalization failed: %q %v", parsed, err)
	}
	if _, err := ParseStatus("closed"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestValidateNewReport(t *testing.T) {
	valid := NewReportInput{
		Type:        TypeHealth,
		Title:       "Broken railing",
		Description: "North stairwell, third floor",
		Location:    Location{Latitude: 40.0, Longitude: -75.2},
	}
	if err := ValidateNewReport(valid); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	cases := []struct {
		name  string
		input NewReportInput
	}{
		{"bad type", NewReportInput{Type: "noise", Title: "t", Description: "d"}},
		{"empty title", NewReportInput{Type: TypeHealth, Title: "  ", Description: "d"}},
		{"empty description", NewReportInput{Type: TypeHealth, Title: "t", Description: ""}},
		{"latitude out of range", NewReportInput{Type: TypeHealth, Title: "t", Description: "d", Location: Location{Latitude: 91}}},
		{"longitude out of range", NewReportInput{Type: TypeHealth, Title: "t", Description: "d", Location: Location{Longitude: -181}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateNewReport(tc.input); err == nil {
				t.Fatalf("invalid input accepted: %+v", tc.input)
			}
		})
	}
}

func TestNormalizeFollowers(t *testing.T) {
	got := NormalizeFollowers([]string{"u1", " u2 ", "", "u1", "u3"})
	want := []string{"u1", "u2", "u3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}

	empty := NormalizeFollowers(nil)
	if empty == nil || len(empty) != 0 {
		t.Fatalf("nil input must yield empty non-nil set, got %#v", empty)
	}
}
