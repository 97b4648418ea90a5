// Package auth implements the identity provider used to gate room joins.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/confroom/internal/domain"
)

const issuer = "confroom"

type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// JWTProvider issues and verifies HS256 tokens.
type JWTProvider struct {
	secret []byte
	now    func() time.Time
}

func NewJWTProvider(secret string) (*JWTProvider, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &JWTProvider{secret: []byte(secret), now: time.Now}, nil
}

func (p *JWTProvider) Issue(user *domain.User, ttl time.Duration) (string, error) {
	if user == nil {
		return "", errors.New("user is required")
	}
	now := p.now()
	claims := &Claims{
		UserID: user.ID.String(),
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

func (p *JWTProvider) Verify(_ context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("missing token: %w", domain.ErrUnauthorized)
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrUnauthorized)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid claims: %w", domain.ErrUnauthorized)
	}

	return &domain.Identity{UserID: claims.UserID, DisplayName: claims.Name}, nil
}

// GuestProvider admits callers without a token as guests and verifies
// everything else through next.
type GuestProvider struct {
	next interface {
		Verify(ctx context.Context, token string) (*domain.Identity, error)
	}
}

func NewGuestProvider(next *JWTProvider) *GuestProvider {
	return &GuestProvider{next: next}
}

func (p *GuestProvider) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		id := uuid.NewString()
		return &domain.Identity{
			UserID:      "guest-" + id,
			DisplayName: "Guest-" + id[:6],
			IsGuest:     true,
		}, nil
	}
	return p.next.Verify(ctx, token)
}

// BearerToken extracts the credential from the Authorization header, the
// x-auth-token header or the token query parameter, in that order. Browsers
// cannot set headers on websocket upgrades, hence the query fallback.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	if h := r.Header.Get("x-auth-token"); h != "" {
		return h
	}
	return r.URL.Query().Get("token")
}
