package feed

// EventKind tags a locally derived notification event.
type EventKind string

const (
	// EventEmergencyRaised fires once per alert that appears in the current
	// snapshot without being present in the previous one.
	EventEmergencyRaised EventKind = "emergency_raised"

	// EventStatusChanged fires once per followed report whose status differs
	// between the two observed snapshots. Only the two observed endpoints are
	// reported; intermediate transitions between emissions are not
	// reconstructed.
	EventStatusChanged EventKind = "status_changed"

	// EventReportRemoved fires once per followed report that is present in the
	// previous snapshot and gone from the current one.
	EventReportRemoved EventKind = "report_removed"
)

// Event is a locally meaningful notification derived purely from a snapshot
// pair. No server push is involved.
type Event struct {
	Kind       EventKind    `json:"kind"`
	EntityID   string       `json:"entityId"`
	Title      string       `json:"title"`
	Message    string       `json:"message,omitempty"`
	ReportType ReportType   `json:"reportType,omitempty"`
	Status     ReportStatus `json:"status,omitempty"`
}

// DiffAlerts compares two complete alert snapshots and returns one
// EventEmergencyRaised per alert new in curr. Alerts present in both
// snapshots never produce events. Pure: no hidden state, safe to call twice
// with the same pair.
func DiffAlerts(prev, curr []EmergencyAlert) []Event {
	known := make(map[string]struct{}, len(prev))
	for _, a := range prev {
		known[a.ID] = struct{}{}
	}

	var events []Event
	for _, a := range curr {
		if a.ID == "" {
			continue
		}
		if _, ok := known[a.ID]; ok {
			continue
		}
		events = append(events, Event{
			Kind:     EventEmergencyRaised,
			EntityID: a.ID,
			Title:    a.Title,
			Message:  a.Message,
		})
	}
	return events
}

// DiffReports compares two complete report snapshots on behalf of userID and
// returns status-change events for reports the user follows in both
// snapshots, plus removal events for followed reports that disappeared.
//
// Malformed entities (missing status, or no follower set) are treated as
// "no change" rather than producing spurious events. Pure for a fixed
// (prev, curr, userID) triple.
func DiffReports(prev, curr []Report, userID string) []Event {
	if userID == "" {
		return nil
	}

	currByID := make(map[string]Report, len(curr))
	for _, r := range curr {
		if r.ID != "" {
			currByID[r.ID] = r
		}
	}

	var events []Event
	for _, before := range prev {
		if before.ID == "" || !before.IsFollowedBy(userID) {
			continue
		}

		after, ok := currByID[before.ID]
		if !ok {
			events = append(events, Event{
				Kind:       EventReportRemoved,
				EntityID:   before.ID,
				Title:      before.Title,
				ReportType: before.Type,
			})
			continue
		}

		if !after.IsFollowedBy(userID) {
			// Unfollowed between snapshots; no suppression state is kept, so a
			// later re-follow alerts normally again.
			continue
		}
		if !validStatus(before.Status) || !validStatus(after.Status) {
			continue
		}
		if before.Status == after.Status {
			continue
		}

		events = append(events, Event{
			Kind:       EventStatusChanged,
			EntityID:   after.ID,
			Title:      after.Title,
			ReportType: after.Type,
			Status:     after.Status,
		})
	}
	return events
}

// Engine owns the "previous snapshot" baseline for one session. The first
// snapshot observed per collection establishes the baseline and emits
// nothing, which prevents alert storms on cold start for pre-existing data.
// Not safe for concurrent use; callers serialize snapshot processing.
type Engine struct {
	userID string

	prevReports []Report
	prevAlerts  []EmergencyAlert

	haveReports bool
	haveAlerts  bool
}

// NewEngine creates a delta engine diffing on behalf of userID.
func NewEngine(userID string) *Engine {
	return &Engine{userID: userID}
}

// SetUser switches the observing user and resets both baselines, so the next
// snapshots observed after a sign-in change emit nothing.
func (e *Engine) SetUser(userID string) {
	e.userID = userID
	e.prevReports = nil
	e.prevAlerts = nil
	e.haveReports = false
	e.haveAlerts = false
}

// ObserveReports diffs curr against the baseline, then makes curr the new
// baseline.
func (e *Engine) ObserveReports(curr []Report) []Event {
	if !e.haveReports {
		e.prevReports = curr
		e.haveReports = true
		return nil
	}

	events := DiffReports(e.prevReports, curr, e.userID)
	e.prevReports = curr
	return events
}

// ObserveAlerts diffs curr against the baseline, then makes curr the new
// baseline.
func (e *Engine) ObserveAlerts(curr []EmergencyAlert) []Event {
	if !e.haveAlerts {
		e.prevAlerts = curr
		e.haveAlerts = true
		return nil
	}

	events := DiffAlerts(e.prevAlerts, curr)
	e.prevAlerts = curr
	return events
}
