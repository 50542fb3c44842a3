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

// CreateEmergencyAlert broadcasts an alert. Admin-only: a non-admin caller
// is refused before any write is attempted.
func (s *Service) CreateEmergencyAlert(ctx context.Context, title string, message string) (domainfeed.EmergencyAlert, error) {
	if ctx == nil {
		return domainfeed.EmergencyAlert{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return domainfeed.EmergencyAlert{}, errs.Wrap(err, "check context")
	}
	if s.store == nil {
		return domainfeed.EmergencyAlert{}, errStoreRequired
	}

	principal, signedIn, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return domainfeed.EmergencyAlert{}, errs.Wrap(err, "resolve current user")
	}
	if !signedIn {
		return domainfeed.EmergencyAlert{}, domainfeed.ErrAuthenticationRequired
	}
	if !principal.IsAdmin() {
		return domainfeed.EmergencyAlert{}, domainfeed.ErrAuthorizationDenied
	}

	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if title == "" {
		return domainfeed.EmergencyAlert{}, errors.New("alert title is required")
	}
	if message == "" {
		return domainfeed.EmergencyAlert{}, errors.New("alert message is required")
	}

	now := nowUTCString()
	id, err := s.store.Create(ctx, livesync.CollectionAlerts, ports.Fields{
		"title":     title,
		"message":   message,
		"createdAt": now,
		"createdBy": principal.ID,
	})
	if err != nil {
		return domainfeed.EmergencyAlert{}, errs.Wrap(err, "create emergency alert")
	}

	return domainfeed.EmergencyAlert{
		ID:        id,
		Title:     title,
		Message:   message,
		CreatedAt: now,
		CreatedBy: principal.ID,
	}, nil
}

// DeleteEmergencyAlert removes an alert from the feed. Admin-only; outside
// the append-only core contract, this mirrors the admin cleanup affordance.
func (s *Service) DeleteEmergencyAlert(ctx context.Context, id string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.store == nil {
		return errStoreRequired
	}

	principal, signedIn, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return errs.Wrap(err, "resolve current user")
	}
	if !signedIn {
		return domainfeed.ErrAuthenticationRequired
	}
	if !principal.IsAdmin() {
		return domainfeed.ErrAuthorizationDenied
	}

	if err := s.beginWrite(id); err != nil {
		return err
	}
	defer s.endWrite(id)

	if err := s.store.Delete(ctx, livesync.CollectionAlerts, id); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return errs.Wrap(domainfeed.ErrAlertNotFound, "delete emergency alert")
		}
		return errs.Wrap(err, "delete emergency alert")
	}
	return nil
}
