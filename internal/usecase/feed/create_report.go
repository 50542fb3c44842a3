package feed

import (
	"context"
	"errors"
	"strings"

	domainfeed "campussync/internal/domain/feed"
	"campussync/internal/errs"
	"campussync/internal/ports"
	livesync "campussync/internal/usecase/sync"
)

// CreateReport validates caller fields, stamps identity and lifecycle fields,
// and writes the report. The creator is always the first follower.
//
// createdByName is denormalized here on purpose: the name shown on the
// report is the display name at submission time, and it stays frozen even if
// the user renames later.
func (s *Service) CreateReport(ctx context.Context, input domainfeed.NewReportInput) (domainfeed.Report, error) {
	if ctx == nil {
		return domainfeed.Report{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return domainfeed.Report{}, errs.Wrap(err, "check context")
	}
	if s.store == nil {
		return domainfeed.Report{}, errStoreRequired
	}

	principal, signedIn, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return domainfeed.Report{}, errs.Wrap(err, "resolve current user")
	}
	if !signedIn {
		return domainfeed.Report{}, domainfeed.ErrAuthenticationRequired
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if err := domainfeed.ValidateNewReport(input); err != nil {
		return domainfeed.Report{}, err
	}

	now := nowUTCString()
	fields := ports.Fields{
		"type":          string(input.Type),
		"title":         input.Title,
		"description":   input.Description,
		"location":      locationFields(input.Location),
		"status":        string(domainfeed.StatusOpen),
		"createdBy":     principal.ID,
		"createdByName": principal.DisplayName,
		"createdAt":     now,
		"updatedAt":     now,
		"followedBy":    []string{principal.ID},
	}
	if input.PhotoURL != "" {
		fields["photoUrl"] = input.PhotoURL
	}

	id, err := s.store.Create(ctx, livesync.CollectionReports, fields)
	if err != nil {
		return domainfeed.Report{}, errs.Wrap(err, "create report")
	}

	return domainfeed.Report{
		ID:            id,
		Type:          input.Type,
		Title:         input.Title,
		Description:   input.Description,
		Location:      input.Location,
		Status:        domainfeed.StatusOpen,
		CreatedBy:     principal.ID,
		CreatedByName: principal.DisplayName,
		CreatedAt:     now,
		UpdatedAt:     now,
		PhotoURL:      input.PhotoURL,
		FollowedBy:    []string{principal.ID},
	}, nil
}

func locationFields(loc domainfeed.Location) map[string]any {
	fields := map[string]any{
		"latitude":  loc.Latitude,
		"longitude": loc.Longitude,
	}
	if loc.Address != "" {
		fields["address"] = loc.Address
	}
	return fields
}
