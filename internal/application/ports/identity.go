package ports

import (
	"context"

	"filevault/internal/domain/user"
)

// Identity is the external identity collaborator: it owns credentials,
// user records and token issuing. This service never stores either.
type Identity interface {
	SignUp(ctx context.Context, email, password, displayName string) (*user.Identity, error)
	// Authenticate returns the identity and a signed ID token usable as
	// a bearer token against the backend.
	Authenticate(ctx context.Context, email, password string) (*user.Identity, string, error)
	SignOut(ctx context.Context, token string) error
	SendVerificationEmail(ctx context.Context, uid string) error
	ResetPassword(ctx context.Context, email string) error
}
