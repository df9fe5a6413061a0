// Package auth verifies bearer tokens issued by the account service.
// Verification is stateless, so any instance can verify any token.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/artpar/lexgate/domain/plan"
	"github.com/artpar/lexgate/ports"
)

// Claims carries the identity and subscription tier.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Plan   string `json:"plan"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 tokens.
// Thread-safe and suitable for concurrent use.
type TokenService struct {
	secret     []byte
	issuer     string
	expiration time.Duration
	now        func() time.Time
}

// Option configures a TokenService.
type Option func(*TokenService)

// WithClock sets the time source used for issuing and validating tokens.
func WithClock(c ports.Clock) Option {
	return func(s *TokenService) { s.now = c.Now }
}

// NewTokenService creates a token service. An empty secret generates a random
// one, which makes previously issued tokens unverifiable.
func NewTokenService(secret, issuer string, expiration time.Duration, opts ...Option) *TokenService {
	var secretBytes []byte
	if secret == "" {
		secretBytes = make([]byte, 32)
		rand.Read(secretBytes)
	} else {
		secretBytes = []byte(secret)
	}
	if issuer == "" {
		issuer = "lexgate"
	}
	if expiration == 0 {
		expiration = 24 * time.Hour
	}

	s := &TokenService{
		secret:     secretBytes,
		issuer:     issuer,
		expiration: expiration,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateToken issues a token for the identity.
func (s *TokenService) GenerateToken(id ports.Identity) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.expiration)

	claims := Claims{
		UserID: id.ID,
		Email:  id.Email,
		Name:   id.Name,
		Plan:   string(id.Plan),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses and checks signature, issuer and expiry.
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Verify implements ports.TokenVerifier.
func (s *TokenService) Verify(ctx context.Context, token string) (ports.Identity, error) {
	if token == "" {
		return ports.Identity{}, ports.ErrInvalidToken
	}
	claims, err := s.ValidateToken(token)
	if err != nil {
		return ports.Identity{}, fmt.Errorf("%w: %v", ports.ErrInvalidToken, err)
	}
	return ports.Identity{
		ID:    claims.UserID,
		Email: claims.Email,
		Name:  claims.Name,
		Plan:  plan.ParseTier(claims.Plan),
	}, nil
}

// GenerateSecret generates a random secret suitable for JWT signing.
func GenerateSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Ensure interface compliance.
var _ ports.TokenVerifier = (*TokenService)(nil)
