package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/confroom/internal/domain"
	"github.com/immxrtalbeast/confroom/internal/repository"
	"github.com/immxrtalbeast/confroom/lib/logger/sl"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUser        = errors.New("username and password are required")
)

type UserService struct {
	users    repository.UserRepository
	tokens   TokenIssuer
	tokenTTL time.Duration
	log      *slog.Logger
}

func NewUserService(users repository.UserRepository, tokens TokenIssuer, tokenTTL time.Duration, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{users: users, tokens: tokens, tokenTTL: tokenTTL, log: log}
}

func (s *UserService) Register(ctx context.Context, username, password, name string) (*domain.User, string, error) {
	const op = "service.user.register"
	log := s.log.With(slog.String("op", op), slog.String("username", username))

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, "", ErrInvalidUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	user := domain.NewUser(username, strings.TrimSpace(name), string(hash))
	if err := s.users.Create(ctx, user); err != nil {
		log.Info("failed to create user", sl.Err(err))
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.tokens.Issue(user, s.tokenTTL)
	if err != nil {
		log.Error("failed to issue token", sl.Err(err))
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("user_id", user.ID.String()))
	return user, token, nil
}

func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	const op = "service.user.login"
	log := s.log.With(slog.String("op", op), slog.String("username", username))

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Info("password mismatch")
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user, s.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile changes the display name when name is not blank and the
// phone number only when phone is set.
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, name string, phone *string) (*domain.User, error) {
	const op = "service.user.updateProfile"

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		user.Name = name
	}
	if phone != nil {
		user.Phone = strings.TrimSpace(*phone)
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("profile updated", slog.String("op", op), slog.String("user_id", id.String()))
	return user, nil
}

func (s *UserService) SetAvatar(ctx context.Context, id uuid.UUID, avatarURL string) (*domain.User, error) {
	const op = "service.user.setAvatar"

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.AvatarURL = avatarURL
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("avatar updated",
		slog.String("op", op),
		slog.String("user_id", id.String()),
		slog.String("avatar_url", avatarURL),
	)
	return user, nil
}
