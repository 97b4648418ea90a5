package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/confroom/internal/api/http/converter"
	"github.com/immxrtalbeast/confroom/internal/auth"
	"github.com/immxrtalbeast/confroom/internal/config"
	"github.com/immxrtalbeast/confroom/internal/domain"
	"github.com/immxrtalbeast/confroom/internal/service"
	"github.com/immxrtalbeast/confroom/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

var errUnsupportedEvent = errors.New("unsupported event type")

type RoomController struct {
	rooms      service.RoomInteractor
	identities service.IdentityProvider
	signaling  config.SignalingConfig
	iceServers []webrtc.ICEServer
	upgrader   websocket.Upgrader
	log        *slog.Logger
}

func NewRoomController(
	rooms service.RoomInteractor,
	identities service.IdentityProvider,
	cfg *config.Config,
	log *slog.Logger,
) *RoomController {
	origins := make(map[string]struct{}, len(cfg.HTTP.AllowedOrigins))
	for _, o := range cfg.HTTP.AllowedOrigins {
		origins[o] = struct{}{}
	}

	return &RoomController{
		rooms:      rooms,
		identities: identities,
		signaling:  cfg.Signaling,
		iceServers: []webrtc.ICEServer{{URLs: cfg.WebRTC.STUNServers}},
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

func (c *RoomController) ListRooms(ctx *gin.Context) {
	rooms, err := c.rooms.ListRooms(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, converter.RoomsResponse{Rooms: rooms})
}

func (c *RoomController) ListParticipants(ctx *gin.Context) {
	roomID := ctx.Param("roomID")

	participants, err := c.rooms.ListParticipants(ctx.Request.Context(), roomID)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, domain.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, converter.ParticipantsResponse{RoomID: roomID, Participants: participants})
}

func (c *RoomController) ICEConfig(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"ice_servers": c.iceServers})
}

// Connect verifies the caller, upgrades to a websocket and serves the
// signaling protocol until the transport closes.
func (c *RoomController) Connect(ctx *gin.Context) {
	const op = "api.http.room.connect"

	identity, err := c.identities.Verify(ctx.Request.Context(), auth.BearerToken(ctx.Request))
	if err != nil {
		c.log.Info("rejected connection", slog.String("op", op), sl.Err(err))
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthorized.Error()})
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Info("failed to upgrade connection", slog.String("op", op), sl.Err(err))
		return
	}

	session := newSession(conn, c.signaling, c.log)
	log := session.log.With(slog.String("op", op), slog.String("user_id", identity.UserID))

	if err := c.rooms.Connect(ctx.Request.Context(), session, *identity); err != nil {
		log.Error("failed to register session", sl.Err(err))
		conn.Close()
		return
	}
	go session.writePump()
	log.Info("session opened")

	c.serve(ctx.Request.Context(), session, log)

	if err := c.rooms.Disconnect(context.Background(), session.ID()); err != nil {
		log.Debug("disconnect", sl.Err(err))
	}
	session.Close()
	log.Info("session closed")
}

func (c *RoomController) serve(ctx context.Context, session *wsSession, log *slog.Logger) {
	session.prepareRead()

	for {
		_, data, err := session.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Info("unexpected close", sl.Err(err))
			}
			return
		}

		var msg domain.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			session.Send(domain.NewErrorEvent(errors.New("malformed message")))
			continue
		}

		if err := c.dispatch(ctx, session, &msg); err != nil {
			log.Debug("event rejected", slog.String("type", string(msg.Type)), sl.Err(err))
		}
	}
}

func (c *RoomController) dispatch(ctx context.Context, session *wsSession, msg *domain.ClientMessage) error {
	switch msg.Type {
	case domain.EventJoin:
		req, err := converter.ToJoinRequest(msg)
		if err != nil {
			session.Send(domain.NewErrorEvent(err))
			return err
		}
		return c.rooms.Join(ctx, session.ID(), req.RoomID, req.DisplayName)

	case domain.EventForwardSignal, domain.EventReturnSignal:
		req, err := converter.ToSignalRequest(msg)
		if err != nil {
			session.Send(domain.NewErrorEvent(err))
			return err
		}
		return c.rooms.Signal(ctx, session.ID(), req.Direction, req.TargetID, req.Payload)

	case domain.EventLeave:
		return c.rooms.Leave(ctx, session.ID())

	default:
		session.Send(domain.NewErrorEvent(errUnsupportedEvent))
		return errUnsupportedEvent
	}
}
