package converter

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/immxrtalbeast/confroom/internal/domain"
)

var validate = validator.New()

type JoinRequest struct {
	RoomID      string `validate:"required,max=64"`
	DisplayName string `validate:"omitempty,max=64"`
}

type SignalRequest struct {
	Direction domain.SignalDirection
	TargetID  string `validate:"required,max=64"`
	Kind      string `validate:"required,oneof=offer answer candidate"`
	Payload   *domain.NegotiationPayload
}

var (
	ErrMissingPayload   = errors.New("signal payload is required")
	ErrSurroundingSpace = errors.New("room id and display name must not start or end with whitespace")
)

func padded(v string) bool {
	return strings.TrimSpace(v) != v
}

// ToJoinRequest validates a join frame. Room IDs and display names are
// compared exactly, so values with surrounding whitespace are rejected
// rather than trimmed.
func ToJoinRequest(msg *domain.ClientMessage) (JoinRequest, error) {
	if padded(msg.RoomID) || padded(msg.DisplayName) {
		return JoinRequest{}, ErrSurroundingSpace
	}

	req := JoinRequest{
		RoomID:      msg.RoomID,
		DisplayName: msg.DisplayName,
	}
	if err := validate.Struct(req); err != nil {
		return JoinRequest{}, err
	}
	return req, nil
}

func ToSignalRequest(msg *domain.ClientMessage) (SignalRequest, error) {
	if msg.Payload == nil {
		return SignalRequest{}, ErrMissingPayload
	}

	direction := domain.DirectionForward
	if msg.Type == domain.EventReturnSignal {
		direction = domain.DirectionReturn
	}

	req := SignalRequest{
		Direction: direction,
		TargetID:  msg.TargetID,
		Kind:      string(msg.Payload.Kind),
		Payload:   msg.Payload,
	}
	if err := validate.Struct(req); err != nil {
		return SignalRequest{}, err
	}
	return req, nil
}

type RoomsResponse struct {
	Rooms []domain.RoomSummary `json:"rooms"`
}

type ParticipantsResponse struct {
	RoomID       string                   `json:"room_id"`
	Participants []domain.ParticipantInfo `json:"participants"`
}
