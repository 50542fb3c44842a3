package ports

import (
	"context"

	"campussync/internal/domain/feed"
)

// Identity supplies the current authenticated principal and a change stream.
// The credential flow itself lives outside this system.
type Identity interface {
	// CurrentUser returns the signed-in principal, or found=false when nobody
	// is signed in.
	CurrentUser(ctx context.Context) (feed.Principal, bool, error)

	// OnAuthStateChange registers a callback fired on sign-in/sign-out. The
	// returned cancel releases the registration.
	OnAuthStateChange(fn func(p feed.Principal, signedIn bool)) (cancel func())
}
