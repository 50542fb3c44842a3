package ports

import "errors"

// ErrNotFound marks operations on a document that does not exist. Callers
// translate it to the entity-specific domain error.
var ErrNotFound = errors.New("document not found")
