package feed

import (
	"context"
	"errors"

	domainfeed "campussync/internal/domain/feed"
	"campussync/internal/errs"
	livesync "campussync/internal/usecase/sync"
)

// ToggleFollow flips the current user's membership in a report's follower
// set. Membership is changed through the store's atomic set primitives, so
// two devices toggling concurrently can interleave without losing other
// followers; only the caller's own membership is touched.
func (s *Service) ToggleFollow(ctx context.Context, id string) (following bool, err error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return false, errs.Wrap(err, "check context")
	}
	if s.store == nil {
		return false, errStoreRequired
	}

	principal, signedIn, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return false, errs.Wrap(err, "resolve current user")
	}
	if !signedIn {
		return false, domainfeed.ErrAuthenticationRequired
	}

	if err := s.beginWrite(id); err != nil {
		return false, err
	}
	defer s.endWrite(id)

	doc, found, err := s.store.GetOne(ctx, livesync.CollectionReports, id)
	if err != nil {
		return false, errs.Wrap(err, "read report")
	}
	if !found {
		return false, domainfeed.ErrReportNotFound
	}

	currently := false
	if members, ok := doc.Fields["followedBy"].([]string); ok {
		for _, member := range members {
			if member == principal.ID {
				currently = true
				break
			}
		}
	}

	if currently {
		if err := s.store.RemoveFromSet(ctx, livesync.CollectionReports, id, "followedBy", principal.ID); err != nil {
			return false, mapReportErr(err, "unfollow report")
		}
		return false, nil
	}

	if err := s.store.AddToSet(ctx, livesync.CollectionReports, id, "followedBy", principal.ID); err != nil {
		return false, mapReportErr(err, "follow report")
	}
	return true, nil
}
