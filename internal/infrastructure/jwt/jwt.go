package jwt

import (
	"crypto/rsa"
	"errors"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNotConfigured means no provider public key is loaded; callers
	// translate this to 503, not 403.
	ErrNotConfigured = errors.New("identity provider not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// Service verifies ID tokens issued by the identity provider against its
// RS256 public key. It never issues tokens itself.
type Service struct {
	publicKey *rsa.PublicKey
}

type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// New builds a verifier from a PEM-encoded RSA public key. An empty key
// yields an unconfigured verifier: the server still runs, protected
// routes answer 503.
func New(publicKeyPEM []byte) (*Service, error) {
	if len(publicKeyPEM) == 0 {
		return &Service{}, nil
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	return &Service{publicKey: key}, nil
}

// NewFromFile reads the provider public key from path. An empty path
// yields an unconfigured verifier.
func NewFromFile(path string) (*Service, error) {
	if path == "" {
		return &Service{}, nil
	}

	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return New(pem)
}

func (s *Service) Configured() bool { return s.publicKey != nil }

func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	if s.publicKey == nil {
		return nil, ErrNotConfigured
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil || !token.Valid {
		// expired and malformed are deliberately not distinguished
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
