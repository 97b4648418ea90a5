package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/immxrtalbeast/confroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	mu        sync.Mutex
	remoteID  string
	initiator bool

	answers    []json.RawMessage
	candidates []json.RawMessage
	closed     bool
	offerErr   error
}

func (p *fakePeer) CreateOffer(context.Context) (json.RawMessage, error) {
	if p.offerErr != nil {
		return nil, p.offerErr
	}
	return json.RawMessage(`{"type":"offer","sdp":"o-` + p.remoteID + `"}`), nil
}

func (p *fakePeer) AcceptOffer(_ context.Context, offer json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{"type":"answer","sdp":"a-` + p.remoteID + `"}`), nil
}

func (p *fakePeer) AcceptAnswer(answer json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answers = append(p.answers, answer)
	return nil
}

func (p *fakePeer) AddCandidate(candidate json.RawMessage) error {
	p.candidates = append(p.candidates, candidate)
	return nil
}

func (p *fakePeer) answerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.answers)
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeFactory struct {
	mu       sync.Mutex
	peers    map[string]*fakePeer
	offerErr error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{peers: make(map[string]*fakePeer)}
}

func (f *fakeFactory) NewPeer(remoteID, _ string, initiator bool) (PeerConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakePeer{remoteID: remoteID, initiator: initiator, offerErr: f.offerErr}
	f.peers[remoteID] = p
	return p, nil
}

func (f *fakeFactory) peer(remoteID string) *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peers[remoteID]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

type fakeSignaler struct {
	sent []domain.ClientMessage
}

func (s *fakeSignaler) Send(msg domain.ClientMessage) error {
	s.sent = append(s.sent, msg)
	return nil
}

func newTestOrchestrator(t *testing.T, self, name string) (*Orchestrator, *fakeFactory, *fakeSignaler) {
	t.Helper()
	factory := newFakeFactory()
	signaler := &fakeSignaler{}
	o := NewOrchestrator(factory, signaler, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, o.Join("r1", name))
	require.NoError(t, o.HandleEvent(context.Background(), domain.Event{
		Type:   domain.EventOccupantSnapshot,
		RoomID: "r1",
		SelfID: self,
	}))
	signaler.sent = nil
	return o, factory, signaler
}

func offerFrom(origin, name string) domain.Event {
	return domain.Event{
		Type:        domain.EventSignalDelivered,
		Direction:   domain.DirectionForward,
		OriginID:    origin,
		DisplayName: name,
		Payload: &domain.NegotiationPayload{
			Kind: domain.SignalOffer,
			Body: json.RawMessage(`{"type":"offer","sdp":"x"}`),
		},
	}
}

func TestOrchestrator_JoinSendsJoinMessage(t *testing.T) {
	signaler := &fakeSignaler{}
	o := NewOrchestrator(newFakeFactory(), signaler, nil)

	require.NoError(t, o.Join("r1", "alice"))
	require.Len(t, signaler.sent, 1)
	assert.Equal(t, domain.EventJoin, signaler.sent[0].Type)
	assert.Equal(t, "r1", signaler.sent[0].RoomID)
	assert.Equal(t, "alice", signaler.sent[0].DisplayName)
}

func TestOrchestrator_SnapshotDoesNotInitiate(t *testing.T) {
	factory := newFakeFactory()
	signaler := &fakeSignaler{}
	o := NewOrchestrator(factory, signaler, nil)
	require.NoError(t, o.Join("r1", "bob"))

	err := o.HandleEvent(context.Background(), domain.Event{
		Type:   domain.EventOccupantSnapshot,
		RoomID: "r1",
		SelfID: "c2",
		Participants: []domain.ParticipantInfo{
			{ConnectionID: "c1", DisplayName: "alice"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "c2", o.SelfID())
	assert.Equal(t, []domain.ParticipantInfo{{ConnectionID: "c1", DisplayName: "alice"}}, o.Occupants())
	assert.Zero(t, factory.count())
	assert.Len(t, signaler.sent, 1)
}

func TestOrchestrator_OccupantInitiates(t *testing.T) {
	o, factory, signaler := newTestOrchestrator(t, "c1", "alice")

	err := o.HandleEvent(context.Background(), domain.Event{
		Type:         domain.EventParticipantJoined,
		RoomID:       "r1",
		ConnectionID: "c2",
		DisplayName:  "bob",
	})
	require.NoError(t, err)

	require.Len(t, signaler.sent, 1)
	msg := signaler.sent[0]
	assert.Equal(t, domain.EventForwardSignal, msg.Type)
	assert.Equal(t, "c2", msg.TargetID)
	require.NotNil(t, msg.Payload)
	assert.Equal(t, domain.SignalOffer, msg.Payload.Kind)

	peers := o.Peers()
	require.Len(t, peers, 1)
	assert.True(t, peers[0].Initiator)
	assert.True(t, factory.peers["c2"].initiator)
}

func TestOrchestrator_NewcomerResponds(t *testing.T) {
	o, factory, signaler := newTestOrchestrator(t, "c2", "bob")

	require.NoError(t, o.HandleEvent(context.Background(), offerFrom("c1", "alice")))

	require.Len(t, signaler.sent, 1)
	msg := signaler.sent[0]
	assert.Equal(t, domain.EventReturnSignal, msg.Type)
	assert.Equal(t, "c1", msg.TargetID)
	assert.Equal(t, domain.SignalAnswer, msg.Payload.Kind)
	assert.False(t, factory.peers["c1"].initiator)
}

func TestOrchestrator_DuplicatesDiscarded(t *testing.T) {
	ctx := context.Background()

	t.Run("same connection", func(t *testing.T) {
		o, factory, signaler := newTestOrchestrator(t, "c1", "alice")
		joined := domain.Event{Type: domain.EventParticipantJoined, ConnectionID: "c2", DisplayName: "bob"}

		require.NoError(t, o.HandleEvent(ctx, joined))
		require.NoError(t, o.HandleEvent(ctx, joined))
		require.NoError(t, o.HandleEvent(ctx, offerFrom("c2", "bob")))

		assert.Equal(t, 1, factory.count())
		assert.Len(t, signaler.sent, 1)
	})

	t.Run("same display name", func(t *testing.T) {
		o, factory, _ := newTestOrchestrator(t, "c1", "alice")

		require.NoError(t, o.HandleEvent(ctx, domain.Event{Type: domain.EventParticipantJoined, ConnectionID: "c2", DisplayName: "bob"}))
		require.NoError(t, o.HandleEvent(ctx, domain.Event{Type: domain.EventParticipantJoined, ConnectionID: "c3", DisplayName: "bob"}))

		assert.Equal(t, 1, factory.count())
		assert.Len(t, o.Peers(), 1)
	})

	t.Run("self", func(t *testing.T) {
		o, factory, signaler := newTestOrchestrator(t, "c1", "alice")

		require.NoError(t, o.HandleEvent(ctx, domain.Event{Type: domain.EventParticipantJoined, ConnectionID: "c1", DisplayName: "alice"}))
		require.NoError(t, o.HandleEvent(ctx, offerFrom("c9", "alice")))

		assert.Zero(t, factory.count())
		assert.Empty(t, signaler.sent)
	})
}

func TestOrchestrator_AnswerAndCandidates(t *testing.T) {
	ctx := context.Background()
	o, factory, _ := newTestOrchestrator(t, "c1", "alice")
	require.NoError(t, o.HandleEvent(ctx, domain.Event{Type: domain.EventParticipantJoined, ConnectionID: "c2", DisplayName: "bob"}))

	answer := json.RawMessage(`{"type":"answer","sdp":"y"}`)
	require.NoError(t, o.HandleEvent(ctx, domain.Event{
		Type:      domain.EventSignalDelivered,
		Direction: domain.DirectionReturn,
		OriginID:  "c2",
		Payload:   &domain.NegotiationPayload{Kind: domain.SignalAnswer, Body: answer},
	}))
	candidate := json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}`)
	require.NoError(t, o.HandleEvent(ctx, domain.Event{
		Type:     domain.EventSignalDelivered,
		OriginID: "c2",
		Payload:  &domain.NegotiationPayload{Kind: domain.SignalCandidate, Body: candidate},
	}))

	peer := factory.peer("c2")
	assert.Equal(t, []json.RawMessage{answer}, peer.answers)
	assert.Equal(t, []json.RawMessage{candidate}, peer.candidates)
}

func TestOrchestrator_StrayAnswerIgnored(t *testing.T) {
	ctx := context.Background()
	o, factory, _ := newTestOrchestrator(t, "c2", "bob")

	// unknown origin
	require.NoError(t, o.HandleEvent(ctx, domain.Event{
		Type:     domain.EventSignalDelivered,
		OriginID: "c7",
		Payload:  &domain.NegotiationPayload{Kind: domain.SignalAnswer, Body: json.RawMessage(`{}`)},
	}))

	// answer toward a pair where we are the responder
	require.NoError(t, o.HandleEvent(ctx, offerFrom("c1", "alice")))
	require.NoError(t, o.HandleEvent(ctx, domain.Event{
		Type:     domain.EventSignalDelivered,
		OriginID: "c1",
		Payload:  &domain.NegotiationPayload{Kind: domain.SignalAnswer, Body: json.RawMessage(`{}`)},
	}))

	assert.Zero(t, factory.peer("c1").answerCount())
	assert.Equal(t, 1, factory.count())
}

func TestOrchestrator_ParticipantLeftTearsDown(t *testing.T) {
	ctx := context.Background()
	o, factory, _ := newTestOrchestrator(t, "c1", "alice")
	require.NoError(t, o.HandleEvent(ctx, domain.Event{Type: domain.EventParticipantJoined, ConnectionID: "c2", DisplayName: "bob"}))

	require.NoError(t, o.HandleEvent(ctx, domain.Event{Type: domain.EventParticipantLeft, ConnectionID: "c2"}))

	assert.True(t, factory.peers["c2"].closed)
	assert.Empty(t, o.Peers())

	// the name is free again for a rejoin under a new connection
	require.NoError(t, o.HandleEvent(ctx, domain.Event{Type: domain.EventParticipantJoined, ConnectionID: "c3", DisplayName: "bob"}))
	assert.Len(t, o.Peers(), 1)
}

func TestOrchestrator_NameConflict(t *testing.T) {
	o := NewOrchestrator(newFakeFactory(), &fakeSignaler{}, nil)

	err := o.HandleEvent(context.Background(), domain.Event{
		Type:        domain.EventNameConflict,
		RoomID:      "r1",
		DisplayName: "alice",
	})
	require.ErrorIs(t, err, domain.ErrNameConflict)
}

func TestOrchestrator_OfferFailureReleasesPeer(t *testing.T) {
	ctx := context.Background()
	o, factory, signaler := newTestOrchestrator(t, "c1", "alice")
	factory.offerErr = errors.New("no codecs")

	err := o.HandleEvent(ctx, domain.Event{Type: domain.EventParticipantJoined, ConnectionID: "c2", DisplayName: "bob"})
	require.Error(t, err)

	assert.Empty(t, o.Peers())
	assert.True(t, factory.peers["c2"].closed)
	assert.Empty(t, signaler.sent)
}

func TestOrchestrator_Close(t *testing.T) {
	ctx := context.Background()
	o, factory, _ := newTestOrchestrator(t, "c1", "alice")
	require.NoError(t, o.HandleEvent(ctx, domain.Event{Type: domain.EventParticipantJoined, ConnectionID: "c2", DisplayName: "bob"}))
	require.NoError(t, o.HandleEvent(ctx, domain.Event{Type: domain.EventParticipantJoined, ConnectionID: "c3", DisplayName: "carol"}))

	require.NoError(t, o.Close())

	assert.Empty(t, o.Peers())
	assert.True(t, factory.peers["c2"].closed)
	assert.True(t, factory.peers["c3"].closed)
}
