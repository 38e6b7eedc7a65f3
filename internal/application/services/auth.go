package services

import (
	"context"
	"errors"
	"sync"

	"filevault/internal/application/ports"
	"filevault/internal/domain/user"
)

var (
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrAlreadyLoggedIn = errors.New("already logged in")
)

// AuthSession holds the client's current principal and bearer token on
// top of the identity collaborator. All durable auth state lives with
// the provider; this is view-layer state only.
type AuthSession struct {
	identity ports.Identity

	mu      sync.Mutex
	current *user.Identity
	token   string
}

func NewAuthSession(identity ports.Identity) ports.Auth {
	return &AuthSession{identity: identity}
}

func (as *AuthSession) Login(ctx context.Context, email, password string) (*user.Identity, error) {
	as.mu.Lock()
	if as.current != nil {
		as.mu.Unlock()
		return nil, ErrAlreadyLoggedIn
	}
	as.mu.Unlock()

	id, token, err := as.identity.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	as.mu.Lock()
	as.current = id
	as.token = token
	as.mu.Unlock()

	return id, nil
}

func (as *AuthSession) SignUp(ctx context.Context, email, password, displayName string) (*user.Identity, error) {
	return as.identity.SignUp(ctx, email, password, displayName)
}

func (as *AuthSession) Logout(ctx context.Context) error {
	as.mu.Lock()
	token := as.token
	as.current = nil
	as.token = ""
	as.mu.Unlock()

	if token == "" {
		return nil
	}
	return as.identity.SignOut(ctx, token)
}

func (as *AuthSession) ResetPassword(ctx context.Context, email string) error {
	return as.identity.ResetPassword(ctx, email)
}

func (as *AuthSession) ResendVerification(ctx context.Context) error {
	as.mu.Lock()
	current := as.current
	as.mu.Unlock()

	if current == nil {
		return ErrNotLoggedIn
	}
	return as.identity.SendVerificationEmail(ctx, current.UID)
}

func (as *AuthSession) Current() *user.Identity {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.current == nil {
		return nil
	}
	id := *as.current
	return &id
}

func (as *AuthSession) Token() string {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.token
}
