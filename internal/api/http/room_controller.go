package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/meshcall/internal/api/http/converter"
	"github.com/immxrtalbeast/meshcall/internal/domain"
	"github.com/immxrtalbeast/meshcall/internal/repository"
	"github.com/immxrtalbeast/meshcall/internal/service"
	"github.com/immxrtalbeast/meshcall/lib/logger/sl"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

type RoomController struct {
	rooms    service.RoomInteractor
	relay    service.SignalRelayer
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewRoomController(rooms service.RoomInteractor, relay service.SignalRelayer, allowedOrigins []string, log *slog.Logger) *RoomController {
	if log == nil {
		log = slog.Default()
	}
	return &RoomController{
		rooms: rooms,
		relay: relay,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (c *RoomController) ListRooms(ctx *gin.Context) {
	rooms, err := c.rooms.ListRooms(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"rooms": converter.SummariesToApi(rooms)})
}

func (c *RoomController) GetRoom(ctx *gin.Context) {
	room, err := c.rooms.GetRoom(ctx.Request.Context(), ctx.Param("roomID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(room)})
}

// Connect upgrades the request to the event channel and serves it until the
// connection ends.
func (c *RoomController) Connect(ctx *gin.Context) {
	const op = "api.room.connect"

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Warn("failed to upgrade connection", slog.String("op", op), sl.Err(err))
		return
	}

	participant := domain.NewParticipant(ctx.Request.RemoteAddr)
	log := c.log.With(
		slog.String("op", op),
		slog.String("participant_id", participant.ID),
	)

	c.rooms.Connect(participant)
	log.Info("event channel opened", slog.String("remote_addr", participant.RemoteAddr))

	go c.writePump(conn, participant, log)
	c.readPump(conn, participant, log)

	log.Info("event channel closed")
}

func (c *RoomController) readPump(conn *websocket.Conn, participant *domain.Participant, log *slog.Logger) {
	defer func() {
		c.rooms.Disconnect(context.Background(), participant.ID)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("unexpected close", sl.Err(err))
			}
			return
		}

		var ev domain.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.sendError(participant, "malformed event")
			continue
		}

		c.dispatch(context.Background(), participant, ev, log)
	}
}

func (c *RoomController) writePump(conn *websocket.Conn, participant *domain.Participant, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	events := participant.Events()
	for {
		select {
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("failed to write event", slog.String("type", ev.Type), sl.Err(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *RoomController) dispatch(ctx context.Context, participant *domain.Participant, ev domain.Event, log *slog.Logger) {
	switch ev.Type {
	case domain.EventJoinRoom:
		roomID, err := decodeRoomID(ev)
		if err != nil {
			c.sendError(participant, "invalid join-room payload")
			return
		}
		if _, err := c.rooms.Join(ctx, participant.ID, roomID); err != nil {
			switch {
			case errors.Is(err, service.ErrRoomFull):
			case errors.Is(err, service.ErrInvalidRoomID):
				c.sendError(participant, err.Error())
			default:
				log.Error("join failed", slog.String("room_id", roomID), sl.Err(err))
				c.sendError(participant, "join failed")
			}
		}

	case domain.EventLeaveRoom:
		c.rooms.Leave(ctx, participant.ID)

	case domain.EventSendMessage:
		text, err := decodeText(ev)
		if err != nil {
			c.sendError(participant, "invalid send-message payload")
			return
		}
		if _, err := c.rooms.PostMessage(ctx, participant.ID, text); err != nil {
			switch {
			case errors.Is(err, service.ErrNotInRoom):
			case errors.Is(err, service.ErrInvalidMessage):
				c.sendError(participant, err.Error())
			default:
				log.Error("post message failed", sl.Err(err))
			}
		}

	default:
		kind, ok := domain.ParseSignalKind(ev.Type)
		if !ok {
			c.sendError(participant, "unsupported event type: "+ev.Type)
			return
		}
		var req domain.SignalRequest
		if err := ev.DecodePayload(&req); err != nil || req.Target == "" {
			c.sendError(participant, "invalid "+ev.Type+" payload")
			return
		}
		c.relay.Relay(participant.ID, req.Target, kind, req.Payload)
	}
}

func (c *RoomController) sendError(participant *domain.Participant, message string) {
	ev, err := domain.NewEvent(domain.EventError, domain.ErrorPayload{Error: message})
	if err != nil {
		return
	}
	participant.EnqueueEvent(ev)
}

// decodeRoomID accepts either {"roomId": "..."} or a bare JSON string.
func decodeRoomID(ev domain.Event) (string, error) {
	var id string
	if err := ev.DecodePayload(&id); err == nil {
		return id, nil
	}
	var p domain.JoinRoomPayload
	if err := ev.DecodePayload(&p); err != nil {
		return "", err
	}
	return p.RoomID, nil
}

// decodeText accepts either {"text": "..."} or a bare JSON string.
func decodeText(ev domain.Event) (string, error) {
	var text string
	if err := ev.DecodePayload(&text); err == nil {
		return text, nil
	}
	var p domain.SendMessagePayload
	if err := ev.DecodePayload(&p); err != nil {
		return "", err
	}
	return p.Text, nil
}
