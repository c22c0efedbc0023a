package client

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/immxrtalbeast/meshcall/internal/domain"
	"github.com/immxrtalbeast/meshcall/lib/logger/sl"
)

// Observer is notified about room activity.
type Observer interface {
	Joined(role domain.Role, p domain.JoinedPayload)
	MembersChanged(eventType string, p domain.MembershipPayload)
	MessageReceived(m domain.MessagePayload)
	Notice(text string)
	RoomFull()
}

// Conference is one client session in a room.
type Conference struct {
	channel    Channel
	manager    *PeerConnectionManager
	negotiator *ConnectionNegotiator
	provider   MediaProvider
	observer   Observer
	log        *slog.Logger

	mediaMu   sync.Mutex
	media     LocalMedia
	mediaStop sync.Once

	leaveOnce sync.Once
}

// NewConference wires a session. A nil provider joins without local media.
func NewConference(
	channel Channel,
	factory TransportFactory,
	display Display,
	provider MediaProvider,
	observer Observer,
	cfg ManagerConfig,
	log *slog.Logger,
) *Conference {
	if log == nil {
		log = slog.Default()
	}
	manager := NewPeerConnectionManager(factory, channel, display, cfg, log)
	return &Conference{
		channel:    channel,
		manager:    manager,
		negotiator: NewConnectionNegotiator(manager, channel, log),
		provider:   provider,
		observer:   observer,
		log:        log,
	}
}

func (c *Conference) Manager() *PeerConnectionManager { return c.manager }

func (c *Conference) Negotiator() *ConnectionNegotiator { return c.negotiator }

// Join acquires local media and asks to join roomID. Media failures are
// reported as a notice and the join continues without local tracks.
func (c *Conference) Join(ctx context.Context, roomID string) error {
	const op = "client.conference.join"
	log := c.log.With(slog.String("op", op), slog.String("room_id", roomID))

	if c.provider != nil {
		media, err := c.provider.Acquire(ctx)
		if err != nil {
			log.Warn("joining without local media", sl.Err(err))
			c.observer.Notice(fmt.Sprintf("%v: joining without camera and microphone", ErrMediaAccessDenied))
		} else {
			c.mediaMu.Lock()
			c.media = media
			c.mediaMu.Unlock()
			c.manager.SetLocalMedia(media)
		}
	}

	ev, err := domain.NewEvent(domain.EventJoinRoom, domain.JoinRoomPayload{RoomID: roomID})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.channel.Send(ev); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Run handles server events one at a time until the channel closes, ctx is
// done, or the room turns out to be full.
func (c *Conference) Run(ctx context.Context) error {
	incoming := c.channel.Incoming()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-incoming:
			if !ok {
				return nil
			}
			if err := c.handle(ev); err != nil {
				return err
			}
		}
	}
}

func (c *Conference) SendMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	ev, err := domain.NewEvent(domain.EventSendMessage, domain.SendMessagePayload{Text: text})
	if err != nil {
		return err
	}
	return c.channel.Send(ev)
}

// Leave stops local media, closes every link and disconnects.
func (c *Conference) Leave() {
	c.leaveOnce.Do(func() {
		c.stopMedia()
		c.manager.CloseAll()
		c.negotiator.Reset()
		c.channel.Close()
		c.log.Info("left the room")
	})
}

func (c *Conference) handle(ev domain.Event) error {
	log := c.log.With(slog.String("type", ev.Type))

	switch ev.Type {
	case domain.EventJoinedAsVideo, domain.EventJoinedAsChat:
		var p domain.JoinedPayload
		if err := ev.DecodePayload(&p); err != nil {
			log.Warn("malformed event", sl.Err(err))
			return nil
		}
		role := domain.RoleVideo
		if ev.Type == domain.EventJoinedAsChat {
			role = domain.RoleChat
			c.stopMedia()
			c.manager.SetLocalMedia(nil)
		}
		c.observer.Joined(role, p)
		c.negotiator.HandleJoined(role, p)

	case domain.EventUserJoinedVideo, domain.EventUserJoinedChat:
		var p domain.MembershipPayload
		if err := ev.DecodePayload(&p); err != nil {
			log.Warn("malformed event", sl.Err(err))
			return nil
		}
		role := domain.RoleVideo
		if ev.Type == domain.EventUserJoinedChat {
			role = domain.RoleChat
		}
		c.observer.MembersChanged(ev.Type, p)
		c.negotiator.HandleMemberJoined(role, p)

	case domain.EventUserLeftVideo, domain.EventUserLeftChat:
		var p domain.MembershipPayload
		if err := ev.DecodePayload(&p); err != nil {
			log.Warn("malformed event", sl.Err(err))
			return nil
		}
		c.negotiator.HandleMemberLeft(p)
		c.observer.MembersChanged(ev.Type, p)

	case domain.EventNewMessage:
		var m domain.MessagePayload
		if err := ev.DecodePayload(&m); err != nil {
			log.Warn("malformed event", sl.Err(err))
			return nil
		}
		c.observer.MessageReceived(m)

	case domain.EventRoomFull:
		c.stopMedia()
		c.observer.RoomFull()
		return ErrRoomFull

	case domain.EventError:
		var p domain.ErrorPayload
		if err := ev.DecodePayload(&p); err == nil {
			c.observer.Notice(p.Error)
		}

	default:
		kind, ok := domain.ParseSignalKind(ev.Type)
		if !ok {
			log.Debug("unhandled event")
			return nil
		}
		var d domain.SignalDelivery
		if err := ev.DecodePayload(&d); err != nil {
			log.Warn("malformed event", sl.Err(err))
			return nil
		}
		switch kind {
		case domain.SignalOffer:
			c.negotiator.HandleOffer(d)
		case domain.SignalAnswer:
			c.negotiator.HandleAnswer(d)
		case domain.SignalCandidate:
			c.negotiator.HandleCandidate(d)
		}
	}
	return nil
}

// stopMedia releases local media at most once per session.
func (c *Conference) stopMedia() {
	c.mediaMu.Lock()
	media := c.media
	c.mediaMu.Unlock()

	if media == nil {
		return
	}
	c.mediaStop.Do(media.Stop)
}
