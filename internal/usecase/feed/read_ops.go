package feed

import (
	domainfeed "campussync/internal/domain/feed"
)

// Reads serve from the synchronizer's latest snapshot: a cache that reflects
// the latest delivered emission, not necessarily the latest write.

// Reports returns the latest report snapshot.
func (s *Service) Reports() []domainfeed.Report {
	if s.syncer == nil {
		return nil
	}
	return s.syncer.Reports()
}

// Alerts returns the latest alert snapshot.
func (s *Service) Alerts() []domainfeed.EmergencyAlert {
	if s.syncer == nil {
		return nil
	}
	return s.syncer.Alerts()
}

// Loading reports whether first snapshots are still pending.
func (s *Service) Loading() bool {
	return s.syncer == nil || s.syncer.Loading()
}

// GetByID finds a report in the latest snapshot.
func (s *Service) GetByID(id string) (domainfeed.Report, bool) {
	for _, report := range s.Reports() {
		if report.ID == id {
			return report, true
		}
	}
	return domainfeed.Report{}, false
}

// GetFollowed returns the reports the user follows, snapshot order.
func (s *Service) GetFollowed(userID string) []domainfeed.Report {
	if userID == "" {
		return nil
	}

	var followed []domainfeed.Report
	for _, report := range s.Reports() {
		if report.IsFollowedBy(userID) {
			followed = append(followed, report)
		}
	}
	return followed
}
