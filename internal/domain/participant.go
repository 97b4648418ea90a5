package domain

import "time"

// Participant is a live member of a room, bound to exactly one session transport.
type Participant struct {
	ConnectionID string
	UserID       string
	DisplayName  string
	RoomID       string
	JoinedAt     time.Time
}

func NewParticipant(roomID, connectionID, displayName string) *Participant {
	return &Participant{
		ConnectionID: connectionID,
		DisplayName:  displayName,
		RoomID:       roomID,
		JoinedAt:     time.Now().UTC(),
	}
}

// ConnState tracks a session through the membership protocol.
type ConnState string

const (
	ConnStateDisconnected ConnState = "disconnected"
	ConnStateJoining      ConnState = "joining"
	ConnStateJoined       ConnState = "joined"
	ConnStateLeft         ConnState = "left"
)
