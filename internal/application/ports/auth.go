package ports

import (
	"context"

	"filevault/internal/domain/user"
)

// Auth is the client-side authentication state over the identity
// collaborator: current principal plus the bearer token for backend calls.
type Auth interface {
	Login(ctx context.Context, email, password string) (*user.Identity, error)
	SignUp(ctx context.Context, email, password, displayName string) (*user.Identity, error)
	Logout(ctx context.Context) error
	ResendVerification(ctx context.Context) error
	// ResetPassword needs no active session; it is offered from the
	// login surface.
	ResetPassword(ctx context.Context, email string) error
	Current() *user.Identity
	Token() string
}
