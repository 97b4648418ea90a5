package http

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/confroom/internal/config"
	"github.com/immxrtalbeast/confroom/internal/domain"
)

// wsSession is the transport of one participant. Send and Close are safe
// for concurrent use; writePump is the only websocket writer.
type wsSession struct {
	id   string
	conn *websocket.Conn
	cfg  config.SignalingConfig
	log  *slog.Logger

	send      chan domain.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, cfg config.SignalingConfig, log *slog.Logger) *wsSession {
	id := uuid.NewString()
	return &wsSession{
		id:   id,
		conn: conn,
		cfg:  cfg,
		log:  log.With(slog.String("connection_id", id)),
		send: make(chan domain.Event, cfg.SendBuffer),
		done: make(chan struct{}),
	}
}

func (s *wsSession) ID() string {
	return s.id
}

func (s *wsSession) Send(event domain.Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- event:
		return true
	default:
		return false
	}
}

func (s *wsSession) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *wsSession) writePump() {
	ticker := time.NewTicker(s.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case event := <-s.send:
			if err := s.write(event); err != nil {
				s.log.Debug("write failed", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			s.flush()
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *wsSession) flush() {
	for {
		select {
		case event := <-s.send:
			if err := s.write(event); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *wsSession) write(event domain.Event) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
	return s.conn.WriteJSON(event)
}

func (s *wsSession) prepareRead() {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})
}
