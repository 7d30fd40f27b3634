package ports

import "context"

// AuthContext resolves the account performing the current operation.
type AuthContext interface {
	// CurrentUserID returns the user ID, or false when nobody is signed in.
	CurrentUserID(ctx context.Context) (string, bool)
}

// StaticAuth is an AuthContext that always reports the same user.
// An empty UserID means no authenticated user.
type StaticAuth struct {
	UserID string
}

// CurrentUserID implements AuthContext.
func (a StaticAuth) CurrentUserID(_ context.Context) (string, bool) {
	return a.UserID, a.UserID != ""
}
