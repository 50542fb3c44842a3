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

// UpdateStatus moves a report to a new triage status and bumps updatedAt.
// Role enforcement for status changes lives in the store's access rules;
// this layer only guards the write shape.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domainfeed.ReportStatus) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.store == nil {
		return errStoreRequired
	}

	parsed, err := domainfeed.ParseStatus(string(status))
	if err != nil {
		return err
	}

	if err := s.beginWrite(id); err != nil {
		return err
	}
	defer s.endWrite(id)

	fields := ports.Fields{
		"status":    string(parsed),
		"updatedAt": nowUTCString(),
	}
	if err := s.store.Update(ctx, livesync.CollectionReports, id, fields); err != nil {
		return mapReportErr(err, "update report status")
	}
	return nil
}

// UpdateFieldsInput carries the editable report fields; nil means unchanged.
type UpdateFieldsInput struct {
	Title       *string
	Description *string
	Location    *domainfeed.Location
	PhotoURL    *string
	Type        *domainfeed.ReportType
}

// UpdateFields merges a partial edit. An update carrying nothing is refused;
// any accepted mutation bumps updatedAt.
func (s *Service) UpdateFields(ctx context.Context, id string, input UpdateFieldsInput) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.store == nil {
		return errStoreRequired
	}

	fields := ports.Fields{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return errors.New("title cannot be blank")
		}
		fields["title"] = title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return errors.New("description cannot be blank")
		}
		fields["description"] = description
	}
	if input.Location != nil {
		fields["location"] = locationFields(*input.Location)
	}
	if input.PhotoURL != nil {
		fields["photoUrl"] = *input.PhotoURL
	}
	if input.Type != nil {
		parsed, err := domainfeed.ParseReportType(string(*input.Type))
		if err != nil {
			return err
		}
		fields["type"] = string(parsed)
	}

	if len(fields) == 0 {
		return domainfeed.ErrEmptyUpdate
	}
	fields["updatedAt"] = nowUTCString()

	if err := s.beginWrite(id); err != nil {
		return err
	}
	defer s.endWrite(id)

	if err := s.store.Update(ctx, livesync.CollectionReports, id, fields); err != nil {
		return mapReportErr(err, "update report fields")
	}
	return nil
}

// DeleteReport removes a report. A delete racing another delete surfaces the
// not-found as a recoverable error rather than a crash; the local image copy
// goes with the report either way.
func (s *Service) DeleteReport(ctx context.Context, id string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.store == nil {
		return errStoreRequired
	}

	if err := s.beginWrite(id); err != nil {
		return err
	}
	defer s.endWrite(id)

	if s.images != nil {
		s.images.Remove(ctx, id)
	}

	if err := s.store.Delete(ctx, livesync.CollectionReports, id); err != nil {
		return mapReportErr(err, "delete report")
	}
	return nil
}

func mapReportErr(err error, msg string) error {
	if errors.Is(err, ports.ErrNotFound) {
		return errs.Wrap(domainfeed.ErrReportNotFound, msg)
	}
	return errs.Wrap(err, msg)
}
