package auth

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/immxrtalbeast/confroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTProvider_RoundTrip(t *testing.T) {
	p, err := NewJWTProvider("secret")
	require.NoError(t, err)

	user := domain.NewUser("alice", "Alice", "")
	token, err := p.Issue(user, time.Hour)
	require.NoError(t, err)

	id, err := p.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), id.UserID)
	assert.Equal(t, "Alice", id.DisplayName)
	assert.False(t, id.IsGuest)
}

func TestJWTProvider_Rejects(t *testing.T) {
	p, err := NewJWTProvider("secret")
	require.NoError(t, err)
	other, err := NewJWTProvider("other-secret")
	require.NoError(t, err)

	user := domain.NewUser("alice", "Alice", "")

	foreign, err := other.Issue(user, time.Hour)
	require.NoError(t, err)

	expired, err := p.Issue(user, -time.Minute)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID: user.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"alg none", none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Verify(context.Background(), tt.token)
			require.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestNewJWTProvider_EmptySecret(t *testing.T) {
	_, err := NewJWTProvider("")
	require.Error(t, err)
}

func TestGuestProvider(t *testing.T) {
	p, err := NewJWTProvider("secret")
	require.NoError(t, err)
	g := NewGuestProvider(p)

	id, err := g.Verify(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, id.IsGuest)
	assert.NotEmpty(t, id.UserID)
	assert.True(t, strings.HasPrefix(id.DisplayName, "Guest-"))

	// each guest gets its own name so two guests can share a room
	other, err := g.Verify(context.Background(), "")
	require.NoError(t, err)
	assert.NotEqual(t, id.DisplayName, other.DisplayName)

	_, err = g.Verify(context.Background(), "bad")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=q", nil)
	assert.Equal(t, "q", BearerToken(r))

	r.Header.Set("x-auth-token", "h")
	assert.Equal(t, "h", BearerToken(r))

	r.Header.Set("Authorization", "Bearer b")
	assert.Equal(t, "b", BearerToken(r))
}
