package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/confroom/internal/domain"
	"github.com/immxrtalbeast/confroom/lib/logger/sl"
)

const writeWait = 10 * time.Second

// Conn is the signaling websocket of one participant.
type Conn struct {
	ws  *websocket.Conn
	log *slog.Logger

	writeMu sync.Mutex
}

// Dial connects to the signaling endpoint, e.g. ws://host:8080/api/rooms/ws.
// An empty token connects as a guest when the server allows it.
func Dial(ctx context.Context, endpoint, token string, log *slog.Logger) (*Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Conn{ws: ws, log: log}, nil
}

func (c *Conn) Send(msg domain.ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

// Run feeds server events into o until the connection closes, ctx is
// cancelled, or the join is rejected with domain.ErrNameConflict.
func (c *Conn) Run(ctx context.Context, o *Orchestrator) error {
	stop := context.AfterFunc(ctx, func() { _ = c.ws.Close() })
	defer stop()

	for {
		var ev domain.Event
		if err := c.ws.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		if err := o.HandleEvent(ctx, ev); err != nil {
			if errors.Is(err, domain.ErrNameConflict) {
				return err
			}
			c.log.Warn("event failed", slog.String("type", string(ev.Type)), sl.Err(err))
		}
	}
}

// Leave announces an explicit leave; the server closes the transport after.
func (c *Conn) Leave() error {
	return c.Send(domain.ClientMessage{Type: domain.EventLeave})
}

func (c *Conn) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}
