package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/immxrtalbeast/confroom/internal/domain"
	"github.com/immxrtalbeast/confroom/internal/registry"
	"github.com/immxrtalbeast/confroom/lib/logger/sl"
)

type connection struct {
	session  Session
	identity domain.Identity
	state    domain.ConnState
}

// RoomService coordinates room membership and relays negotiation payloads.
//
// All state is owned by the goroutine running Run. Public methods submit a
// command to that goroutine and wait for it to finish, so every inbound
// event is applied atomically with respect to all others.
type RoomService struct {
	log      *slog.Logger
	registry *registry.Registry
	conns    map[string]*connection
	commands chan func()
	stopped  chan struct{}
}

func NewRoomService(log *slog.Logger) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	return &RoomService{
		log:      log,
		registry: registry.New(),
		conns:    make(map[string]*connection),
		commands: make(chan func()),
		stopped:  make(chan struct{}),
	}
}

// Run processes commands until ctx is cancelled. On exit every session is
// closed and further calls fail with domain.ErrServiceStopped.
func (s *RoomService) Run(ctx context.Context) {
	const op = "service.room.run"
	log := s.log.With(slog.String("op", op))
	log.Info("room service started")

	defer close(s.stopped)
	for {
		select {
		case <-ctx.Done():
			for id, conn := range s.conns {
				conn.session.Close()
				delete(s.conns, id)
			}
			log.Info("room service stopped")
			return
		case cmd := <-s.commands:
			cmd()
		}
	}
}

func (s *RoomService) exec(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}

	select {
	case s.commands <- cmd:
	case <-s.stopped:
		return domain.ErrServiceStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	<-finished
	return nil
}

// Connect associates a live session with the coordinator. The connection
// starts outside any room.
func (s *RoomService) Connect(ctx context.Context, session Session, identity domain.Identity) error {
	return s.exec(ctx, func() {
		s.conns[session.ID()] = &connection{
			session:  session,
			identity: identity,
			state:    domain.ConnStateDisconnected,
		}
		s.log.Debug("session connected",
			slog.String("connection_id", session.ID()),
			slog.String("user_id", identity.UserID),
		)
	})
}

func (s *RoomService) Join(ctx context.Context, connectionID, roomID, displayName string) error {
	var err error
	if execErr := s.exec(ctx, func() { err = s.join(connectionID, roomID, displayName) }); execErr != nil {
		return execErr
	}
	return err
}

func (s *RoomService) join(connectionID, roomID, displayName string) error {
	const op = "service.room.join"
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("connection_id", connectionID),
	)

	conn, ok := s.conns[connectionID]
	if !ok || conn.state == domain.ConnStateLeft {
		return fmt.Errorf("%s: %w", op, domain.ErrConnectionClosed)
	}
	if conn.state == domain.ConnStateJoined {
		s.deliver(conn, domain.NewErrorEvent(domain.ErrAlreadyJoined))
		return fmt.Errorf("%s: %w", op, domain.ErrAlreadyJoined)
	}
	if displayName == "" {
		displayName = conn.identity.DisplayName
	}
	if displayName == "" {
		s.deliver(conn, domain.NewErrorEvent(domain.ErrEmptyDisplayName))
		return fmt.Errorf("%s: %w", op, domain.ErrEmptyDisplayName)
	}

	conn.state = domain.ConnStateJoining
	participant, err := s.registry.RegisterParticipant(roomID, connectionID, displayName)
	if err != nil {
		conn.state = domain.ConnStateDisconnected
		if errors.Is(err, domain.ErrNameConflict) {
			log.Info("join rejected", slog.String("display_name", displayName))
			s.deliver(conn, domain.Event{
				Type:        domain.EventNameConflict,
				RoomID:      roomID,
				DisplayName: displayName,
			})
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	participant.UserID = conn.identity.UserID
	conn.state = domain.ConnStateJoined

	others := s.registry.ListOthers(roomID, connectionID)
	s.deliver(conn, domain.NewSnapshotEvent(roomID, connectionID, others))

	s.broadcast(roomID, domain.Event{
		Type:         domain.EventParticipantJoined,
		RoomID:       roomID,
		ConnectionID: connectionID,
		DisplayName:  displayName,
	}, connectionID)

	log.Info("participant joined",
		slog.String("display_name", displayName),
		slog.Int("occupants", len(others)+1),
	)
	return nil
}

// Signal relays payload to targetID, tagged with the sender identity.
// Targets that are gone or outside the sender's room are dropped silently.
func (s *RoomService) Signal(ctx context.Context, connectionID string, direction domain.SignalDirection, targetID string, payload *domain.NegotiationPayload) error {
	var err error
	if execErr := s.exec(ctx, func() { err = s.relay(connectionID, direction, targetID, payload) }); execErr != nil {
		return execErr
	}
	return err
}

func (s *RoomService) relay(connectionID string, direction domain.SignalDirection, targetID string, payload *domain.NegotiationPayload) error {
	const op = "service.room.relay"

	conn, ok := s.conns[connectionID]
	if !ok {
		return fmt.Errorf("%s: %w", op, domain.ErrConnectionClosed)
	}
	sender, ok := s.registry.Lookup(connectionID)
	if !ok || conn.state != domain.ConnStateJoined {
		s.deliver(conn, domain.NewErrorEvent(domain.ErrNotJoined))
		return fmt.Errorf("%s: %w", op, domain.ErrNotJoined)
	}
	if payload == nil || !payload.Kind.Valid() {
		err := errors.New("invalid signal payload")
		s.deliver(conn, domain.NewErrorEvent(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	target, ok := s.registry.Lookup(targetID)
	if !ok || target.RoomID != sender.RoomID {
		s.log.Debug("dropping signal",
			slog.String("op", op),
			slog.String("connection_id", connectionID),
			slog.String("target_id", targetID),
			sl.Err(domain.ErrUnknownTarget),
		)
		return nil
	}
	targetConn, ok := s.conns[targetID]
	if !ok {
		return nil
	}

	s.deliver(targetConn, domain.Event{
		Type:        domain.EventSignalDelivered,
		RoomID:      sender.RoomID,
		Direction:   direction,
		OriginID:    sender.ConnectionID,
		DisplayName: sender.DisplayName,
		Payload:     payload,
	})
	return nil
}

// Leave removes the connection from its room and closes the transport.
// The connection cannot join again.
func (s *RoomService) Leave(ctx context.Context, connectionID string) error {
	var err error
	if execErr := s.exec(ctx, func() {
		conn, ok := s.conns[connectionID]
		if !ok {
			err = domain.ErrConnectionClosed
			return
		}
		if conn.state != domain.ConnStateJoined {
			s.deliver(conn, domain.NewErrorEvent(domain.ErrNotJoined))
			err = domain.ErrNotJoined
			return
		}
		s.depart(connectionID)
		conn.state = domain.ConnStateLeft
		conn.session.Close()
	}); execErr != nil {
		return execErr
	}
	if err != nil {
		return fmt.Errorf("service.room.leave: %w", err)
	}
	return nil
}

// Disconnect runs the leave protocol for a closed transport. Unknown
// connections are ignored.
func (s *RoomService) Disconnect(ctx context.Context, connectionID string) error {
	return s.exec(ctx, func() {
		s.depart(connectionID)
		delete(s.conns, connectionID)
		s.log.Debug("session disconnected", slog.String("connection_id", connectionID))
	})
}

func (s *RoomService) depart(connectionID string) {
	removed, ok := s.registry.RemoveParticipant(connectionID)
	if !ok {
		return
	}

	s.broadcast(removed.RoomID, domain.Event{
		Type:         domain.EventParticipantLeft,
		RoomID:       removed.RoomID,
		ConnectionID: connectionID,
	}, connectionID)

	log := s.log.With(
		slog.String("op", "service.room.depart"),
		slog.String("room_id", removed.RoomID),
		slog.String("connection_id", connectionID),
	)
	if !s.registry.HasRoom(removed.RoomID) {
		log.Info("room closed")
		return
	}
	log.Info("participant left", slog.String("display_name", removed.DisplayName))
}

func (s *RoomService) ListParticipants(ctx context.Context, roomID string) ([]domain.ParticipantInfo, error) {
	var (
		infos []domain.ParticipantInfo
		found bool
	)
	if err := s.exec(ctx, func() {
		members, ok := s.registry.Members(roomID)
		found = ok
		for _, p := range members {
			infos = append(infos, p.Info())
		}
	}); err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrRoomNotFound
	}
	return infos, nil
}

func (s *RoomService) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	var rooms []domain.RoomSummary
	if err := s.exec(ctx, func() { rooms = s.registry.Rooms() }); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *RoomService) broadcast(roomID string, event domain.Event, exclude string) {
	for _, p := range s.registry.ListOthers(roomID, exclude) {
		conn, ok := s.conns[p.ConnectionID]
		if !ok {
			continue
		}
		s.deliver(conn, event)
	}
}

func (s *RoomService) deliver(conn *connection, event domain.Event) {
	if !conn.session.Send(event) {
		s.log.Debug("dropping event",
			slog.String("connection_id", conn.session.ID()),
			slog.String("type", string(event.Type)),
		)
	}
}
