// Package client implements the participant side of the signaling protocol.
//
// Occupants initiate: when a participant-joined event arrives, the
// orchestrator opens a connection toward the newcomer and sends the first
// offer. A newcomer never initiates; it answers the offers it receives. This
// gives every pair exactly one initiator.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/immxrtalbeast/confroom/internal/domain"
	"github.com/immxrtalbeast/confroom/lib/logger/sl"
)

// PeerConn is a direct connection to one remote participant. Descriptions
// and candidates are opaque JSON documents exchanged through the relay.
type PeerConn interface {
	CreateOffer(ctx context.Context) (json.RawMessage, error)
	AcceptOffer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error)
	AcceptAnswer(answer json.RawMessage) error
	AddCandidate(candidate json.RawMessage) error
	Close() error
}

type PeerFactory interface {
	NewPeer(remoteID, displayName string, initiator bool) (PeerConn, error)
}

type Signaler interface {
	Send(msg domain.ClientMessage) error
}

type Remote struct {
	ConnectionID string
	DisplayName  string
	Initiator    bool
	Conn         PeerConn
}

// Orchestrator tracks direct connections for one participant.
// HandleEvent must be called from a single goroutine; Peers may be called
// concurrently with it.
type Orchestrator struct {
	log      *slog.Logger
	factory  PeerFactory
	signaler Signaler

	mu        sync.Mutex
	selfID    string
	selfName  string
	roomID    string
	peers     map[string]*Remote
	names     map[string]string
	occupants []domain.ParticipantInfo
}

func NewOrchestrator(factory PeerFactory, signaler Signaler, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		log:      log,
		factory:  factory,
		signaler: signaler,
		peers:    make(map[string]*Remote),
		names:    make(map[string]string),
	}
}

func (o *Orchestrator) Join(roomID, displayName string) error {
	o.mu.Lock()
	o.roomID = roomID
	o.selfName = displayName
	o.mu.Unlock()

	return o.signaler.Send(domain.ClientMessage{
		Type:        domain.EventJoin,
		RoomID:      roomID,
		DisplayName: displayName,
	})
}

// HandleEvent applies one server event. It returns domain.ErrNameConflict
// when the join was rejected so the caller can retry with another name.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev domain.Event) error {
	switch ev.Type {
	case domain.EventOccupantSnapshot:
		o.mu.Lock()
		o.selfID = ev.SelfID
		o.roomID = ev.RoomID
		o.occupants = append([]domain.ParticipantInfo(nil), ev.Participants...)
		o.mu.Unlock()
		o.log.Info("joined room",
			slog.String("room_id", ev.RoomID),
			slog.Int("occupants", len(ev.Participants)),
		)
		return nil

	case domain.EventNameConflict:
		return fmt.Errorf("join %q as %q: %w", ev.RoomID, ev.DisplayName, domain.ErrNameConflict)

	case domain.EventParticipantJoined:
		return o.initiate(ctx, ev.ConnectionID, ev.DisplayName)

	case domain.EventSignalDelivered:
		if ev.Payload == nil {
			return nil
		}
		switch ev.Payload.Kind {
		case domain.SignalOffer:
			return o.respond(ctx, ev.OriginID, ev.DisplayName, ev.Payload.Body)
		case domain.SignalAnswer:
			return o.applyAnswer(ev.OriginID, ev.Payload.Body)
		case domain.SignalCandidate:
			return o.applyCandidate(ev.OriginID, ev.Payload.Body)
		}
		return nil

	case domain.EventParticipantLeft:
		o.drop(ev.ConnectionID)
		return nil

	case domain.EventError:
		o.log.Warn("server error", slog.String("message", ev.Message))
		return nil
	}
	return nil
}

func (o *Orchestrator) initiate(ctx context.Context, remoteID, displayName string) error {
	remote, ok := o.reserve(remoteID, displayName, true)
	if !ok {
		return nil
	}

	conn, err := o.factory.NewPeer(remoteID, displayName, true)
	if err != nil {
		o.release(remoteID)
		return fmt.Errorf("create peer %s: %w", remoteID, err)
	}
	o.attach(remote, conn)

	offer, err := conn.CreateOffer(ctx)
	if err != nil {
		o.drop(remoteID)
		return fmt.Errorf("create offer for %s: %w", remoteID, err)
	}

	return o.signaler.Send(domain.ClientMessage{
		Type:     domain.EventForwardSignal,
		TargetID: remoteID,
		Payload:  &domain.NegotiationPayload{Kind: domain.SignalOffer, Body: offer},
	})
}

func (o *Orchestrator) respond(ctx context.Context, remoteID, displayName string, offer json.RawMessage) error {
	remote, ok := o.reserve(remoteID, displayName, false)
	if !ok {
		return nil
	}

	conn, err := o.factory.NewPeer(remoteID, displayName, false)
	if err != nil {
		o.release(remoteID)
		return fmt.Errorf("create peer %s: %w", remoteID, err)
	}
	o.attach(remote, conn)

	answer, err := conn.AcceptOffer(ctx, offer)
	if err != nil {
		o.drop(remoteID)
		return fmt.Errorf("accept offer from %s: %w", remoteID, err)
	}

	return o.signaler.Send(domain.ClientMessage{
		Type:     domain.EventReturnSignal,
		TargetID: remoteID,
		Payload:  &domain.NegotiationPayload{Kind: domain.SignalAnswer, Body: answer},
	})
}

func (o *Orchestrator) applyAnswer(remoteID string, answer json.RawMessage) error {
	remote, ok := o.lookup(remoteID)
	if !ok || !remote.Initiator {
		o.log.Debug("discarding answer", slog.String("remote_id", remoteID))
		return nil
	}
	return remote.Conn.AcceptAnswer(answer)
}

func (o *Orchestrator) applyCandidate(remoteID string, candidate json.RawMessage) error {
	remote, ok := o.lookup(remoteID)
	if !ok {
		return nil
	}
	return remote.Conn.AddCandidate(candidate)
}

// reserve records a placeholder for remoteID unless the pair is already
// known, either by connection ID or by display name.
func (o *Orchestrator) reserve(remoteID, displayName string, initiator bool) (*Remote, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, byID := o.peers[remoteID]
	_, byName := o.names[displayName]
	if remoteID == "" || remoteID == o.selfID || displayName == o.selfName || byID || byName {
		o.log.Debug("discarding duplicate peer",
			slog.String("remote_id", remoteID),
			slog.String("display_name", displayName),
		)
		return nil, false
	}

	remote := &Remote{ConnectionID: remoteID, DisplayName: displayName, Initiator: initiator}
	o.peers[remoteID] = remote
	o.names[displayName] = remoteID
	return remote, true
}

func (o *Orchestrator) attach(remote *Remote, conn PeerConn) {
	o.mu.Lock()
	remote.Conn = conn
	o.mu.Unlock()
}

func (o *Orchestrator) release(remoteID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if remote, ok := o.peers[remoteID]; ok {
		delete(o.names, remote.DisplayName)
		delete(o.peers, remoteID)
	}
}

func (o *Orchestrator) lookup(remoteID string) (*Remote, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	remote, ok := o.peers[remoteID]
	if !ok || remote.Conn == nil {
		return nil, false
	}
	return remote, true
}

func (o *Orchestrator) drop(remoteID string) {
	o.mu.Lock()
	remote, ok := o.peers[remoteID]
	if ok {
		delete(o.names, remote.DisplayName)
		delete(o.peers, remoteID)
	}
	o.mu.Unlock()

	if !ok || remote.Conn == nil {
		return
	}
	if err := remote.Conn.Close(); err != nil {
		o.log.Debug("close peer", slog.String("remote_id", remoteID), sl.Err(err))
	}
	o.log.Info("peer removed", slog.String("remote_id", remoteID))
}

// Peers returns the current remote connections sorted by connection ID.
func (o *Orchestrator) Peers() []Remote {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Remote, 0, len(o.peers))
	for _, r := range o.peers {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out
}

// Occupants returns the snapshot received on join.
func (o *Orchestrator) Occupants() []domain.ParticipantInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.ParticipantInfo(nil), o.occupants...)
}

func (o *Orchestrator) SelfID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selfID
}

// Close tears down every direct connection.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	ids := make([]string, 0, len(o.peers))
	for id := range o.peers {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	var errs []error
	for _, id := range ids {
		remote, ok := o.lookup(id)
		o.release(id)
		if ok {
			errs = append(errs, remote.Conn.Close())
		}
	}
	return errors.Join(errs...)
}
