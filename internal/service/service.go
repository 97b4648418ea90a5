package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/confroom/internal/domain"
)

type RoomInteractor interface {
	Connect(ctx context.Context, session Session, identity domain.Identity) error
	Join(ctx context.Context, connectionID, roomID, displayName string) error
	Signal(ctx context.Context, connectionID string, direction domain.SignalDirection, targetID string, payload *domain.NegotiationPayload) error
	Leave(ctx context.Context, connectionID string) error
	Disconnect(ctx context.Context, connectionID string) error
	ListParticipants(ctx context.Context, roomID string) ([]domain.ParticipantInfo, error)
	ListRooms(ctx context.Context) ([]domain.RoomSummary, error)
}

type UserInteractor interface {
	Register(ctx context.Context, username, password, name string) (*domain.User, string, error)
	Login(ctx context.Context, username, password string) (string, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name string, phone *string) (*domain.User, error)
	SetAvatar(ctx context.Context, id uuid.UUID, avatarURL string) (*domain.User, error)
}

// Session is the transport end of one participant connection.
// Send must not block; it reports false when the event was dropped.
type Session interface {
	ID() string
	Send(event domain.Event) bool
	Close()
}
