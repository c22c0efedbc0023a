package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/meshcall/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	outgoingBuffer = 64
	incomingBuffer = 64
)

// Outbox sends events to the server.
type Outbox interface {
	Send(ev domain.Event) error
}

// Channel is a bidirectional event channel to the server.
type Channel interface {
	Outbox
	Incoming() <-chan domain.Event
	Close()
}

// SignalingClient manages the WebSocket connection to the server.
type SignalingClient struct {
	serverURL string
	log       *slog.Logger

	conn     *websocket.Conn
	incoming chan domain.Event
	outgoing chan domain.Event
	done     chan struct{}

	closeOnce sync.Once
}

func NewSignalingClient(serverURL string, log *slog.Logger) *SignalingClient {
	if log == nil {
		log = slog.Default()
	}
	return &SignalingClient{
		serverURL: serverURL,
		log:       log,
		incoming:  make(chan domain.Event, incomingBuffer),
		outgoing:  make(chan domain.Event, outgoingBuffer),
		done:      make(chan struct{}),
	}
}

// Connect dials the server and starts the pumps.
func (c *SignalingClient) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()

	return nil
}

func (c *SignalingClient) readPump() {
	defer func() {
		c.Close()
		c.conn.Close()
		close(c.incoming)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var ev domain.Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			select {
			case <-c.done:
			default:
				c.log.Debug("signaling read stopped", slog.String("error", err.Error()))
			}
			return
		}

		select {
		case c.incoming <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *SignalingClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues ev for the write pump. It fails with ErrSignalingClosed once
// either pump has stopped.
func (c *SignalingClient) Send(ev domain.Event) error {
	select {
	case <-c.done:
		return ErrSignalingClosed
	default:
	}

	select {
	case c.outgoing <- ev:
		return nil
	case <-c.done:
		return ErrSignalingClosed
	}
}

// Incoming is closed when the connection ends.
func (c *SignalingClient) Incoming() <-chan domain.Event {
	return c.incoming
}

func (c *SignalingClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// sendSignal wraps payload into a relay request addressed to target.
func sendSignal(out Outbox, kind domain.SignalKind, target string, payload any) error {
	ev, err := domain.NewEvent(string(kind), struct {
		Target  string `json:"target"`
		Payload any    `json:"payload"`
	}{Target: target, Payload: payload})
	if err != nil {
		return err
	}
	return out.Send(ev)
}
