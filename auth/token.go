// Package auth carries the credential harness used by the dev stub
// server and the e2e scenarios. The core treats bearer tokens as
// opaque; nothing here leaks into the messaging packages.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"market-chat/contract"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Signer issues and validates HS256 tokens with a shared secret.
// In a production environment the secret comes from an environment
// variable or a secret manager.
type Signer struct {
	secret []byte
	issuer string
}

func NewSigner(secret []byte) Signer {
	return Signer{secret: secret, issuer: "market-chat"}
}

// GenerateToken creates a signed JWT for a specific user.
func (s Signer) GenerateToken(userID string, roles []string, tokenDuration time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and validates the signature and expiration of a JWT string.
func (s Signer) ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

// StaticTokenSource hands out a fixed token, handy for tests and for
// clients that receive their credential out of band.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) { return string(s), nil }

// SelfIssuedTokenSource mints short-lived tokens locally, renewing
// shortly before expiry. The dev stub server shares the secret, so a
// client pointed at it never needs a login round-trip.
type SelfIssuedTokenSource struct {
	mu       sync.Mutex
	signer   Signer
	userID   string
	duration time.Duration
	current  string
	renewAt  time.Time
}

func NewSelfIssuedTokenSource(signer Signer, userID string, duration time.Duration) *SelfIssuedTokenSource {
	return &SelfIssuedTokenSource{signer: signer, userID: userID, duration: duration}
}

var _ contract.TokenSource = (*SelfIssuedTokenSource)(nil)

func (s *SelfIssuedTokenSource) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != "" && time.Now().Before(s.renewAt) {
		return s.current, nil
	}
	token, err := s.signer.GenerateToken(s.userID, []string{"user"}, s.duration)
	if err != nil {
		return "", err
	}
	s.current = token
	s.renewAt = time.Now().Add(s.duration / 2)
	return token, nil
}
