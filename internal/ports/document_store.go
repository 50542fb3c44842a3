package ports

import "context"

// Fields is the flat field map of a document. Values of type []string are
// set-valued and support atomic membership operations.
type Fields map[string]any

// Document is one stored entity plus its store-assigned id.
type Document struct {
	ID     string
	Fields Fields
}

// SortDirection orders ListOrdered/SubscribeOrdered results.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Subscription is a live, cancellable ordered view of one collection.
// Every delivery on C is a complete replacement document array, never a
// patch. The first delivery carries the initial data (an empty array is a
// valid first delivery). C is closed after Cancel or when the store shuts
// down. Failing to Cancel leaks the listener.
type Subscription interface {
	C() <-chan []Document
	Cancel()
}

// DocumentStore is the collection-oriented remote store consumed by the
// synchronizer and the mutation path. Implementations map infrastructure
// failures to feed.ErrStoreUnavailable and missing documents to a
// (Document{}, false, nil) result.
type DocumentStore interface {
	// Create stores fields under a fresh store-assigned id.
	Create(ctx context.Context, collection string, fields Fields) (string, error)

	// Update merges partial fields into an existing document.
	Update(ctx context.Context, collection string, id string, fields Fields) error

	// Delete removes a document. Deleting an absent id is an error the caller
	// treats as recoverable.
	Delete(ctx context.Context, collection string, id string) error

	// GetOne fetches a single document.
	GetOne(ctx context.Context, collection string, id string) (Document, bool, error)

	// ListOrdered returns the whole collection ordered by a field, with the
	// document id as a stable tiebreak.
	ListOrdered(ctx context.Context, collection string, orderBy string, dir SortDirection) ([]Document, error)

	// SubscribeOrdered opens a live subscription delivering the ordered
	// collection after every committed change.
	SubscribeOrdered(ctx context.Context, collection string, orderBy string, dir SortDirection) (Subscription, error)

	// AddToSet atomically adds value to a set-valued field. Idempotent.
	AddToSet(ctx context.Context, collection string, id string, field string, value string) error

	// RemoveFromSet atomically removes value from a set-valued field.
	// Idempotent.
	RemoveFromSet(ctx context.Context, collection string, id string, field string, value string) error
}
