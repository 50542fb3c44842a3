package feed

import "sort"

// Snapshots are complete, ordered, point-in-time views of one collection.
// Each published snapshot wholly replaces the previous one; consumers diff
// two complete sequences and never see partial patches.
//
// Ordering is createdAt descending with the store-assigned id as tiebreak,
// which gives a stable total order for diffing.

// SortReports orders reports newest-first, ties broken by id.
func SortReports(reports []Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].CreatedAt != reports[j].CreatedAt {
			return reports[i].CreatedAt > reports[j].CreatedAt
		}
		return reports[i].ID > reports[j].ID
	})
}

// SortAlerts orders alerts newest-first, ties broken by id.
func SortAlerts(alerts []EmergencyAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].CreatedAt != alerts[j].CreatedAt {
			return alerts[i].CreatedAt > alerts[j].CreatedAt
		}
		return alerts[i].ID > alerts[j].ID
	})
}

// CloneReports copies a report snapshot, deep enough that follower sets of
// the copy can be normalized without touching the published slice.
func CloneReports(reports []Report) []Report {
	out := make([]Report, len(reports))
	copy(out, reports)
	for i := range out {
		followers := make([]string, len(out[i].FollowedBy))
		copy(followers, out[i].FollowedBy)
		out[i].FollowedBy = followers
	}
	return out
}

// CloneAlerts copies an alert snapshot.
func CloneAlerts(alerts []EmergencyAlert) []EmergencyAlert {
	out := make([]EmergencyAlert, len(alerts))
	copy(out, alerts)
	return out
}
