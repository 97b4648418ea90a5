// Package registry keeps the process-wide room membership table.
//
// A Registry is not safe for concurrent use. It is owned by the room service
// event loop, which is the only goroutine allowed to call it.
package registry

import (
	"sort"

	"github.com/immxrtalbeast/confroom/internal/domain"
	"github.com/samber/lo"
)

type Registry struct {
	rooms map[string]*domain.Room
	// connectionID -> roomID
	index map[string]string
}

func New() *Registry {
	return &Registry{
		rooms: make(map[string]*domain.Room),
		index: make(map[string]string),
	}
}

// RegisterParticipant appends a participant to the room, creating the room on
// first use. It fails with domain.ErrNameConflict if displayName is taken.
func (r *Registry) RegisterParticipant(roomID, connectionID, displayName string) (*domain.Participant, error) {
	room, ok := r.rooms[roomID]
	if ok && room.HasName(displayName) {
		return nil, domain.ErrNameConflict
	}
	if !ok {
		room = domain.NewRoom(roomID)
		r.rooms[roomID] = room
	}

	p := domain.NewParticipant(roomID, connectionID, displayName)
	room.Members = append(room.Members, p)
	r.index[connectionID] = roomID
	return p, nil
}

// RemoveParticipant drops the participant bound to connectionID and deletes
// its room once empty. Unknown connections are a no-op.
func (r *Registry) RemoveParticipant(connectionID string) (*domain.Participant, bool) {
	roomID, ok := r.index[connectionID]
	if !ok {
		return nil, false
	}
	delete(r.index, connectionID)

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}

	removed, ok := lo.Find(room.Members, func(p *domain.Participant) bool {
		return p.ConnectionID == connectionID
	})
	if !ok {
		return nil, false
	}

	room.Members = lo.Reject(room.Members, func(p *domain.Participant, _ int) bool {
		return p.ConnectionID == connectionID
	})
	if room.IsEmpty() {
		delete(r.rooms, roomID)
	}
	return removed, true
}

// ListOthers returns the room members in join order, without excludingID.
func (r *Registry) ListOthers(roomID, excludingID string) []*domain.Participant {
	room, ok := r.rooms[roomID]
	if !ok {
		return []*domain.Participant{}
	}
	return lo.Filter(room.Members, func(p *domain.Participant, _ int) bool {
		return p.ConnectionID != excludingID
	})
}

// Members returns a copy of the room member list in join order.
func (r *Registry) Members(roomID string) ([]*domain.Participant, bool) {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	return append([]*domain.Participant(nil), room.Members...), true
}

func (r *Registry) Lookup(connectionID string) (*domain.Participant, bool) {
	roomID, ok := r.index[connectionID]
	if !ok {
		return nil, false
	}
	return lo.Find(r.rooms[roomID].Members, func(p *domain.Participant) bool {
		return p.ConnectionID == connectionID
	})
}

func (r *Registry) HasRoom(roomID string) bool {
	_, ok := r.rooms[roomID]
	return ok
}

// Rooms lists active rooms sorted by ID.
func (r *Registry) Rooms() []domain.RoomSummary {
	out := lo.MapToSlice(r.rooms, func(id string, room *domain.Room) domain.RoomSummary {
		return domain.RoomSummary{
			ID:           id,
			Participants: len(room.Members),
			CreatedAt:    room.CreatedAt,
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Len() int {
	return len(r.rooms)
}
