package feed

import "errors"

var (
	// ErrAuthenticationRequired is returned on mutations with no signed-in user.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrAuthorizationDenied is returned when a non-admin attempts an
	// admin-only mutation. The write is not attempted.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrStoreUnavailable marks a recoverable store failure. Callers may retry
	// or surface it as a transient condition.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrReportNotFound is returned for operations on a since-deleted report.
	ErrReportNotFound = errors.New("report not found")

	// ErrAlertNotFound is returned for operations on a since-deleted alert.
	ErrAlertNotFound = errors.New("emergency alert not found")

	// ErrEmptyUpdate is returned when an update carries no fields.
	ErrEmptyUpdate = errors.New("empty update refused")

	// ErrWriteInFlight is returned when a write for the same entity is already
	// in progress.
	ErrWriteInFlight = errors.New("write already in flight for entity")

	ErrInvalidReportType = errors.New("invalid report type")
	ErrInvalidStatus     = errors.New("invalid report status")
)
