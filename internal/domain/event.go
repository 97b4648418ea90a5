package domain

import "encoding/json"

type EventType string

// Client to server.
const (
	EventJoin          EventType = "join"
	EventForwardSignal EventType = "forward-signal"
	EventReturnSignal  EventType = "return-signal"
	EventLeave         EventType = "leave"
)

// Server to client.
const (
	EventOccupantSnapshot  EventType = "occupant-snapshot"
	EventNameConflict      EventType = "name-conflict"
	EventParticipantJoined EventType = "participant-joined"
	EventParticipantLeft   EventType = "participant-left"
	EventSignalDelivered   EventType = "signal-delivered"
	EventError             EventType = "error"
)

type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

func (k SignalKind) Valid() bool {
	switch k {
	case SignalOffer, SignalAnswer, SignalCandidate:
		return true
	}
	return false
}

// SignalDirection distinguishes initiator->responder traffic from the replies.
type SignalDirection string

const (
	DirectionForward SignalDirection = "forward"
	DirectionReturn  SignalDirection = "return"
)

// NegotiationPayload is relayed verbatim; Body is never inspected by the server.
type NegotiationPayload struct {
	Kind SignalKind      `json:"kind"`
	Body json.RawMessage `json:"body,omitempty"`
}

type ParticipantInfo struct {
	ConnectionID string `json:"connection_id"`
	DisplayName  string `json:"display_name"`
}

func (p *Participant) Info() ParticipantInfo {
	return ParticipantInfo{ConnectionID: p.ConnectionID, DisplayName: p.DisplayName}
}

// Event is a server to client frame.
type Event struct {
	Type         EventType           `json:"type"`
	RoomID       string              `json:"room_id,omitempty"`
	SelfID       string              `json:"self_id,omitempty"`
	ConnectionID string              `json:"connection_id,omitempty"`
	DisplayName  string              `json:"display_name,omitempty"`
	Participants []ParticipantInfo   `json:"participants,omitempty"`
	Direction    SignalDirection     `json:"direction,omitempty"`
	OriginID     string              `json:"origin_id,omitempty"`
	Payload      *NegotiationPayload `json:"payload,omitempty"`
	Message      string              `json:"message,omitempty"`
}

// ClientMessage is a client to server frame.
type ClientMessage struct {
	Type        EventType           `json:"type"`
	RoomID      string              `json:"room_id,omitempty"`
	DisplayName string              `json:"display_name,omitempty"`
	TargetID    string              `json:"target_id,omitempty"`
	Payload     *NegotiationPayload `json:"payload,omitempty"`
}

// MarshalJSON always writes the participant list of an occupant snapshot,
// even when the room was empty.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	if e.Type != EventOccupantSnapshot {
		return json.Marshal(plain(e))
	}

	participants := e.Participants
	if participants == nil {
		participants = []ParticipantInfo{}
	}
	return json.Marshal(struct {
		plain
		Participants []ParticipantInfo `json:"participants"`
	}{plain: plain(e), Participants: participants})
}

func NewSnapshotEvent(roomID, selfID string, others []*Participant) Event {
	infos := make([]ParticipantInfo, 0, len(others))
	for _, p := range others {
		infos = append(infos, p.Info())
	}
	return Event{
		Type:         EventOccupantSnapshot,
		RoomID:       roomID,
		SelfID:       selfID,
		Participants: infos,
	}
}

func NewErrorEvent(err error) Event {
	return Event{Type: EventError, Message: err.Error()}
}
