package domain

import (
	"time"
)

// Room is an ephemeral group of participants. Members are kept in join order.
type Room struct {
	ID        string
	Members   []*Participant
	CreatedAt time.Time
}

func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		Members:   make([]*Participant, 0, 4),
		CreatedAt: time.Now().UTC(),
	}
}

// HasName reports whether a current member already uses displayName.
// The comparison is case-sensitive.
func (r *Room) HasName(displayName string) bool {
	for _, m := range r.Members {
		if m.DisplayName == displayName {
			return true
		}
	}
	return false
}

func (r *Room) IsEmpty() bool {
	return r == nil || len(r.Members) == 0
}

// RoomSummary is a read-only view of a room handed out of the coordinator.
type RoomSummary struct {
	ID           string    `json:"id"`
	Participants int       `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}
