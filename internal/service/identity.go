package service

//go:generate mockgen -source=identity.go -destination=mocks/mock_identity.go -package=mocks

import (
	"context"
	"time"

	"github.com/immxrtalbeast/confroom/internal/domain"
)

// IdentityProvider verifies a bearer credential. Implementations return an
// error wrapping domain.ErrUnauthorized when the credential is rejected.
type IdentityProvider interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
}

// TokenIssuer mints bearer credentials for registered users.
type TokenIssuer interface {
	Issue(user *domain.User, ttl time.Duration) (string, error)
}
