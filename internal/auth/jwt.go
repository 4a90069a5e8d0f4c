// Package auth resolves bearer tokens into identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_market/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Provider is the identity provider contract.
type Provider interface {
	Identify(tokenString string) (domain.Identity, error)
}

type Claims struct {
	Name    string      `json:"name,omitempty"`
	Contact string      `json:"contact,omitempty"`
	Role    domain.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type JWTProvider struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTProvider(secret string, ttl time.Duration) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), ttl: ttl}
}

// Issue signs an HS256 access token for identity.
func (p *JWTProvider) Issue(identity domain.Identity) (string, error) {
	if identity.IsAnonymous() {
		return "", fmt.Errorf("cannot issue a token without a user id")
	}
	role := identity.Role
	if role == "" {
		role = domain.RoleBuyer
	}
	now := time.Now()
	claims := Claims{
		Name:    identity.DisplayName,
		Contact: identity.Contact,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

func (p *JWTProvider) Identify(tokenString string) (domain.Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = domain.RoleBuyer
	}
	return domain.Identity{
		UserID:      claims.Subject,
		DisplayName: claims.Name,
		Contact:     claims.Contact,
		Role:        role,
	}, nil
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// FromContext returns the request identity, anonymous when none was set.
func FromContext(ctx context.Context) domain.Identity {
	identity, _ := ctx.Value(identityKey{}).(domain.Identity)
	return identity
}
