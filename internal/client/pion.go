package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v3"
)

const dataChannelLabel = "confroom"

// PionFactory builds peer connections with pion. Media capture is left to
// the embedding application; every connection carries one data channel.
type PionFactory struct {
	config webrtc.Configuration
	log    *slog.Logger

	// OnMessage, when set, receives every data channel message.
	OnMessage func(remoteID string, data []byte)
	// OnOpen, when set, is called once the data channel toward remoteID opens.
	OnOpen func(remoteID string, send func([]byte) error)
}

func NewPionFactory(iceServers []string, log *slog.Logger) *PionFactory {
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return &PionFactory{config: cfg, log: log}
}

func (f *PionFactory) NewPeer(remoteID, displayName string, initiator bool) (PeerConn, error) {
	pc, err := webrtc.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	p := &pionPeer{pc: pc, remoteID: remoteID, factory: f}
	log := f.log.With(slog.String("remote_id", remoteID), slog.String("display_name", displayName))

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug("peer connection state", slog.String("state", state.String()))
	})

	if initiator {
		dc, err := pc.CreateDataChannel(dataChannelLabel, nil)
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("create data channel: %w", err)
		}
		p.attach(dc)
	} else {
		pc.OnDataChannel(p.attach)
	}

	return p, nil
}

type pionPeer struct {
	pc       *webrtc.PeerConnection
	remoteID string
	factory  *PionFactory
}

func (p *pionPeer) attach(dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		if p.factory.OnOpen != nil {
			p.factory.OnOpen(p.remoteID, dc.Send)
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if p.factory.OnMessage != nil {
			p.factory.OnMessage(p.remoteID, msg.Data)
		}
	})
}

// CreateOffer returns the offer after ICE gathering completes, so the
// description already carries every local candidate.
func (p *pionPeer) CreateOffer(ctx context.Context) (json.RawMessage, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	return p.setLocal(ctx, offer)
}

func (p *pionPeer) AcceptOffer(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &offer); err != nil {
		return nil, fmt.Errorf("decode offer: %w", err)
	}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	return p.setLocal(ctx, answer)
}

func (p *pionPeer) setLocal(ctx context.Context, desc webrtc.SessionDescription) (json.RawMessage, error) {
	gathered := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(desc); err != nil {
		return nil, err
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return json.Marshal(p.pc.LocalDescription())
}

func (p *pionPeer) AcceptAnswer(raw json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &answer); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	return p.pc.SetRemoteDescription(answer)
}

func (p *pionPeer) AddCandidate(raw json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	return p.pc.AddICECandidate(candidate)
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}
