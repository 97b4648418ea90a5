package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/confroom/internal/auth"
	"github.com/immxrtalbeast/confroom/internal/repository"
	"github.com/immxrtalbeast/confroom/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newUserService(t *testing.T) (*UserService, *auth.JWTProvider) {
	t.Helper()
	provider, err := auth.NewJWTProvider("test-secret")
	require.NoError(t, err)
	svc := NewUserService(repository.NewInMemoryUserRepository(), provider, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, provider
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, provider := newUserService(t)

	user, token, err := svc.Register(ctx, "alice", "s3cret-pass", "Alice")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	id, err := provider.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), id.UserID)
	assert.Equal(t, "Alice", id.DisplayName)

	_, _, err = svc.Register(ctx, "alice", "x", "")
	require.ErrorIs(t, err, repository.ErrUsernameExists)

	token, err = svc.Login(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "s3cret-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_RegisterValidation(t *testing.T) {
	svc, _ := newUserService(t)

	_, _, err := svc.Register(context.Background(), "  ", "pw", "")
	require.ErrorIs(t, err, ErrInvalidUser)
	_, _, err = svc.Register(context.Background(), "bob", "", "")
	require.ErrorIs(t, err, ErrInvalidUser)
}

func TestUserService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService(t)

	user, _, err := svc.Register(ctx, "carol", "pw", "")
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Name)

	phone := "+100"
	updated, err := svc.UpdateProfile(ctx, user.ID, "Carol", &phone)
	require.NoError(t, err)
	assert.Equal(t, "Carol", updated.Name)
	assert.Equal(t, "+100", updated.Phone)

	// blank name keeps the current one, a missing phone keeps the number
	updated, err = svc.UpdateProfile(ctx, user.ID, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Carol", updated.Name)
	assert.Equal(t, "+100", updated.Phone)

	// an explicit empty phone clears it
	empty := ""
	updated, err = svc.UpdateProfile(ctx, user.ID, "", &empty)
	require.NoError(t, err)
	assert.Empty(t, updated.Phone)

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Carol", got.Name)
}

func TestUserService_SetAvatar(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService(t)

	user, _, err := svc.Register(ctx, "erin", "pw", "Erin")
	require.NoError(t, err)

	updated, err := svc.SetAvatar(ctx, user.ID, "/uploads/erin.png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/erin.png", updated.AvatarURL)

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/erin.png", got.AvatarURL)
	assert.Equal(t, "Erin", got.Name)

	_, err = svc.SetAvatar(ctx, uuid.New(), "/uploads/x.png")
	require.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserService_RegisterIssuerFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	issuer := mocks.NewMockTokenIssuer(ctrl)
	issuer.EXPECT().Issue(gomock.Any(), time.Hour).Return("", errors.New("signing failed"))

	svc := NewUserService(repository.NewInMemoryUserRepository(), issuer, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, _, err := svc.Register(context.Background(), "dave", "pw", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing failed")
}
