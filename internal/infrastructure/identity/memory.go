package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/mail"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"filevault/internal/domain/user"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt safe
	tokenTTL       = time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyVerified    = errors.New("email already verified")
)

type account struct {
	identity     user.Identity
	passwordHash []byte
}

// Provider is an in-process identity collaborator: the development and
// test stand-in for the managed service the deployment talks to. It
// hashes credentials with bcrypt and signs RS256 ID tokens whose public
// key the backend verifier can be pointed at.
type Provider struct {
	logger *zap.Logger
	key    *rsa.PrivateKey

	mu       sync.Mutex
	byEmail  map[string]*account
	byUID    map[string]*account
	mailsOut int
}

func NewProvider(logger *zap.Logger) (*Provider, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	return &Provider{
		logger:  logger,
		key:     key,
		byEmail: make(map[string]*account),
		byUID:   make(map[string]*account),
	}, nil
}

// PublicKeyPEM exposes the signing key's public half so a verifier can
// be configured against this provider.
func (p *Provider) PublicKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(&p.key.PublicKey)
	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// ExportPublicKey writes the public half to path, where the backend's
// verifier (AUTH_PUBLIC_KEY_FILE) picks it up. The key is generated per
// process, so the export has to happen on every start.
func (p *Provider) ExportPublicKey(path string) error {
	pemBytes, err := p.PublicKeyPEM()
	if err != nil {
		return err
	}
	return os.WriteFile(path, pemBytes, 0o600)
}

func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*user.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, errors.New("invalid email format")
	}
	if l := utf8.RuneCountInString(password); l < minPasswordLen || l > maxPasswordLen {
		return nil, errors.New("password length must be 8-72 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byEmail[email]; exists {
		return nil, ErrUserExists
	}

	acc := &account{
		identity: user.Identity{
			UID:         uuid.New().String(),
			Email:       email,
			DisplayName: strings.TrimSpace(displayName),
			CreatedAt:   time.Now().UTC(),
		},
		passwordHash: hash,
	}
	p.byEmail[email] = acc
	p.byUID[acc.identity.UID] = acc

	p.sendMailLocked(acc)

	id := acc.identity
	return &id, nil
}

func (p *Provider) Authenticate(ctx context.Context, email, password string) (*user.Identity, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	p.mu.Lock()
	acc, ok := p.byEmail[email]
	p.mu.Unlock()
	if !ok {
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := p.issueToken(acc.identity)
	if err != nil {
		return nil, "", err
	}

	id := acc.identity
	return &id, token, nil
}

func (p *Provider) SignOut(ctx context.Context, token string) error {
	// tokens are short-lived and stateless; nothing to revoke here
	return nil
}

func (p *Provider) SendVerificationEmail(ctx context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.byUID[uid]
	if !ok {
		return ErrUserNotFound
	}
	if acc.identity.EmailVerified {
		return ErrAlreadyVerified
	}

	p.sendMailLocked(acc)
	return nil
}

func (p *Provider) ResetPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.byEmail[email]
	if !ok {
		return ErrUserNotFound
	}

	p.logger.Info("password reset email sent",
		zap.String("email", acc.identity.Email),
	)
	return nil
}

// MarkVerified is a test/dev hook standing in for the user clicking the
// verification link.
func (p *Provider) MarkVerified(uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.byUID[uid]
	if !ok {
		return ErrUserNotFound
	}
	acc.identity.EmailVerified = true
	return nil
}

func (p *Provider) issueToken(id user.Identity) (string, error) {
	claims := struct {
		UID   string `json:"uid"`
		Email string `json:"email"`
		Name  string `json:"name,omitempty"`
		jwt.RegisteredClaims
	}{
		UID:   id.UID,
		Email: id.Email,
		Name:  id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.key)
}

func (p *Provider) sendMailLocked(acc *account) {
	p.mailsOut++
	p.logger.Info("verification email sent",
		zap.String("email", acc.identity.Email),
		zap.Int("outbox_total", p.mailsOut),
	)
}
