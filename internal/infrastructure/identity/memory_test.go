// memory_test.go
package identity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	jwtSvc "filevault/internal/infrastructure/jwt"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()

	p, err := NewProvider(zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestSignUp(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantErr  string
	}{
		{name: "success", email: "jo@example.com", password: "correct-horse"},
		{name: "invalid email", email: "not-an-email", password: "correct-horse", wantErr: "invalid email format"},
		{name: "password too short", email: "jo@example.com", password: "short", wantErr: "password length must be 8-72 characters"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p := newProvider(t)

			id, err := p.SignUp(context.Background(), tt.email, tt.password, "Jo")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, id.UID)
			assert.Equal(t, "jo@example.com", id.Email)
			assert.Equal(t, "Jo", id.DisplayName)
			assert.False(t, id.EmailVerified)
		})
	}
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	_, err := p.SignUp(ctx, "jo@example.com", "correct-horse", "Jo")
	require.NoError(t, err)

	// same address normalized differently still collides
	_, err = p.SignUp(ctx, "  JO@Example.COM ", "correct-horse", "Jo")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestAuthenticate(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	signed, err := p.SignUp(ctx, "jo@example.com", "correct-horse", "Jo")
	require.NoError(t, err)

	t.Run("success issues verifiable token", func(t *testing.T) {
		id, token, err := p.Authenticate(ctx, "jo@example.com", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, signed.UID, id.UID)
		require.NotEmpty(t, token)

		pub, err := p.PublicKeyPEM()
		require.NoError(t, err)
		verifier, err := jwtSvc.New(pub)
		require.NoError(t, err)

		claims, err := verifier.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, signed.UID, claims.UID)
		assert.Equal(t, "jo@example.com", claims.Email)
		assert.Equal(t, "Jo", claims.Name)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := p.Authenticate(ctx, "jo@example.com", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := p.Authenticate(ctx, "nobody@example.com", "correct-horse")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestSendVerificationEmail(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	id, err := p.SignUp(ctx, "jo@example.com", "correct-horse", "Jo")
	require.NoError(t, err)

	require.NoError(t, p.SendVerificationEmail(ctx, id.UID))

	assert.ErrorIs(t, p.SendVerificationEmail(ctx, "no-such-uid"), ErrUserNotFound)

	require.NoError(t, p.MarkVerified(id.UID))
	assert.ErrorIs(t, p.SendVerificationEmail(ctx, id.UID), ErrAlreadyVerified)
}

func TestExportPublicKey(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	_, err := p.SignUp(ctx, "jo@example.com", "correct-horse", "Jo")
	require.NoError(t, err)
	_, token, err := p.Authenticate(ctx, "jo@example.com", "correct-horse")
	require.NoError(t, err)

	// a verifier configured from the exported file accepts this
	// provider's tokens
	path := filepath.Join(t.TempDir(), "identity.pem")
	require.NoError(t, p.ExportPublicKey(path))

	verifier, err := jwtSvc.NewFromFile(path)
	require.NoError(t, err)
	require.True(t, verifier.Configured())

	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", claims.Email)
}

func TestResetPassword(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	_, err := p.SignUp(ctx, "jo@example.com", "correct-horse", "Jo")
	require.NoError(t, err)

	assert.NoError(t, p.ResetPassword(ctx, "JO@example.com"))
	assert.ErrorIs(t, p.ResetPassword(ctx, "nobody@example.com"), ErrUserNotFound)
}
