package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/immxrtalbeast/meshcall/internal/config"
	"github.com/immxrtalbeast/meshcall/internal/domain"
	"github.com/immxrtalbeast/meshcall/internal/identity"
	"github.com/immxrtalbeast/meshcall/internal/presence"
	"github.com/immxrtalbeast/meshcall/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type presenceRecorder struct {
	mu      sync.Mutex
	changes []presence.Change
}

func (p *presenceRecorder) Publish(c presence.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
}

func (p *presenceRecorder) kinds() []presence.ChangeKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]presence.ChangeKind, 0, len(p.changes))
	for _, c := range p.changes {
		out = append(out, c.Kind)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T, pool []string) (*RoomRegistry, *presenceRecorder) {
	t.Helper()
	rec := &presenceRecorder{}
	reg := NewRoomRegistry(
		repository.NewInMemoryRoomRepository(),
		identity.NewAllocator(pool),
		rec,
		config.RoomConfig{VideoSlots: 4, MaxMessageLength: 4000},
		discardLogger(),
	)
	return reg, rec
}

func connect(reg *RoomRegistry, n int) []*domain.Participant {
	out := make([]*domain.Participant, 0, n)
	for i := 0; i < n; i++ {
		p := domain.NewParticipant(fmt.Sprintf("10.0.0.%d:5000", i))
		reg.Connect(p)
		out = append(out, p)
	}
	return out
}

func drain(p *domain.Participant) []domain.Event {
	var out []domain.Event
	for {
		select {
		case ev, ok := <-p.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func types(evs []domain.Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

func ids(users []domain.UserEntry) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func TestJoinAssignsVideoThenChat(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, config.DefaultIdentities)
	ps := connect(reg, 6)

	for i, p := range ps {
		res, err := reg.Join(ctx, p.ID, "room")
		require.NoError(t, err)
		if i < 4 {
			assert.Equal(t, domain.RoleVideo, res.Role, "participant %d", i)
		} else {
			assert.Equal(t, domain.RoleChat, res.Role, "participant %d", i)
		}
	}

	a := drain(ps[0])
	assert.Equal(t, []string{
		domain.EventJoinedAsVideo,
		domain.EventUserJoinedVideo,
		domain.EventUserJoinedVideo,
		domain.EventUserJoinedVideo,
		domain.EventUserJoinedChat,
		domain.EventUserJoinedChat,
	}, types(a))

	e := drain(ps[4])
	require.Equal(t, []string{domain.EventJoinedAsChat, domain.EventUserJoinedChat}, types(e))

	var joined domain.JoinedPayload
	require.NoError(t, e[0].DecodePayload(&joined))
	assert.Equal(t, ps[4].ID, joined.ID)
	assert.Equal(t, []string{ps[0].ID, ps[1].ID, ps[2].ID, ps[3].ID}, ids(joined.VideoUsers))
	assert.Equal(t, []string{ps[4].ID}, ids(joined.ChatUsers))

	var announced domain.MembershipPayload
	require.NoError(t, e[1].DecodePayload(&announced))
	assert.Equal(t, ps[5].ID, announced.ID)
	assert.Equal(t, []string{ps[4].ID, ps[5].ID}, ids(announced.ChatUsers))

	snap, err := reg.GetRoom(ctx, "room")
	require.NoError(t, err)
	seen := make(map[string]struct{})
	for _, u := range append(snap.VideoUsers, snap.ChatUsers...) {
		_, dup := seen[u.Name]
		assert.False(t, dup, "identity %q used twice", u.Name)
		seen[u.Name] = struct{}{}
	}
	assert.Len(t, seen, 6)
}

func TestMessageFanOutAndReplay(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, config.DefaultIdentities)
	ps := connect(reg, 3)

	resA, err := reg.Join(ctx, ps[0].ID, "room")
	require.NoError(t, err)
	_, err = reg.Join(ctx, ps[1].ID, "room")
	require.NoError(t, err)
	drain(ps[0])
	drain(ps[1])

	msg, err := reg.PostMessage(ctx, ps[0].ID, "  hi  ")
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, resA.Identity, msg.Identity)

	for _, p := range ps[:2] {
		evs := drain(p)
		require.Len(t, evs, 1)
		assert.Equal(t, domain.EventNewMessage, evs[0].Type)

		var got domain.MessagePayload
		require.NoError(t, evs[0].DecodePayload(&got))
		assert.Equal(t, "hi", got.Text)
		assert.Equal(t, resA.Identity, got.Identity)
	}

	_, err = reg.PostMessage(ctx, ps[1].ID, "second")
	require.NoError(t, err)

	_, err = reg.Join(ctx, ps[2].ID, "room")
	require.NoError(t, err)
	evs := drain(ps[2])
	require.NotEmpty(t, evs)

	var joined domain.JoinedPayload
	require.NoError(t, evs[0].DecodePayload(&joined))
	require.Len(t, joined.Messages, 2)
	assert.Equal(t, "hi", joined.Messages[0].Text)
	assert.Equal(t, "second", joined.Messages[1].Text)
	assert.False(t, joined.Messages[1].Timestamp.Before(joined.Messages[0].Timestamp))
}

func TestLeaveFreesVideoSlot(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, config.DefaultIdentities)
	ps := connect(reg, 7)

	for _, p := range ps[:6] {
		_, err := reg.Join(ctx, p.ID, "room")
		require.NoError(t, err)
	}
	for _, p := range ps {
		drain(p)
	}

	reg.Disconnect(ctx, ps[0].ID)
	assert.True(t, ps[0].Closed())

	for _, p := range ps[1:6] {
		evs := drain(p)
		require.Equal(t, []string{domain.EventUserLeftVideo}, types(evs))
		var left domain.MembershipPayload
		require.NoError(t, evs[0].DecodePayload(&left))
		assert.Equal(t, ps[0].ID, left.ID)
		assert.Len(t, left.VideoUsers, 3)
	}

	res, err := reg.Join(ctx, ps[6].ID, "room")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleVideo, res.Role)

	// chat-only members are not promoted into the freed slot
	snap, err := reg.GetRoom(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, []string{ps[1].ID, ps[2].ID, ps[3].ID, ps[6].ID}, ids(snap.VideoUsers))
	assert.ElementsMatch(t, []string{ps[4].ID, ps[5].ID}, ids(snap.ChatUsers))

	_, ok := reg.Participant(ps[0].ID)
	assert.False(t, ok)
}

func TestChatMemberLeaveAnnouncesChat(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, config.DefaultIdentities)
	ps := connect(reg, 5)
	for _, p := range ps {
		_, err := reg.Join(ctx, p.ID, "room")
		require.NoError(t, err)
	}
	for _, p := range ps {
		drain(p)
	}

	reg.Leave(ctx, ps[4].ID)

	evs := drain(ps[0])
	require.Equal(t, []string{domain.EventUserLeftChat}, types(evs))
	assert.Empty(t, drain(ps[4]))
	assert.False(t, ps[4].Closed())
}

func TestRoomFullLeavesMembershipUnchanged(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, config.DefaultIdentities)
	ps := connect(reg, len(config.DefaultIdentities)+1)

	for _, p := range ps[:len(config.DefaultIdentities)] {
		_, err := reg.Join(ctx, p.ID, "room")
		require.NoError(t, err)
	}
	before, err := reg.GetRoom(ctx, "room")
	require.NoError(t, err)
	for _, p := range ps {
		drain(p)
	}

	late := ps[len(ps)-1]
	_, err = reg.Join(ctx, late.ID, "room")
	require.ErrorIs(t, err, ErrRoomFull)

	assert.Equal(t, []string{domain.EventRoomFull}, types(drain(late)))
	for _, p := range ps[:len(ps)-1] {
		assert.Empty(t, drain(p))
	}

	after, err := reg.GetRoom(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, before.VideoUsers, after.VideoUsers)
	assert.Equal(t, before.ChatUsers, after.ChatUsers)
	assert.Len(t, after.VideoUsers, 4)
	assert.Len(t, after.ChatUsers, 16)
}

func TestRoomIsDeletedWhenEmpty(t *testing.T) {
	ctx := context.Background()
	reg, rec := newTestRegistry(t, config.DefaultIdentities)
	ps := connect(reg, 1)

	_, err := reg.Join(ctx, ps[0].ID, "room")
	require.NoError(t, err)
	reg.Disconnect(ctx, ps[0].ID)

	_, err = reg.GetRoom(ctx, "room")
	require.ErrorIs(t, err, repository.ErrRoomNotFound)

	rooms, err := reg.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	assert.Equal(t, []presence.ChangeKind{
		presence.MemberJoined,
		presence.MemberLeft,
		presence.RoomClosed,
	}, rec.kinds())
}

func TestJoinOtherRoomLeavesCurrent(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, config.DefaultIdentities)
	ps := connect(reg, 2)

	_, err := reg.Join(ctx, ps[0].ID, "one")
	require.NoError(t, err)
	_, err = reg.Join(ctx, ps[1].ID, "one")
	require.NoError(t, err)
	drain(ps[1])

	_, err = reg.Join(ctx, ps[0].ID, "two")
	require.NoError(t, err)

	assert.Equal(t, []string{domain.EventUserLeftVideo}, types(drain(ps[1])))

	one, err := reg.GetRoom(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, []string{ps[1].ID}, ids(one.VideoUsers))

	rooms, err := reg.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "one", rooms[0].ID)
	assert.Equal(t, "two", rooms[1].ID)
}

func TestJoinRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, config.DefaultIdentities)
	ps := connect(reg, 1)

	_, err := reg.Join(ctx, ps[0].ID, "   ")
	require.ErrorIs(t, err, ErrInvalidRoomID)

	_, err = reg.Join(ctx, "ghost", "room")
	require.ErrorIs(t, err, ErrParticipantNotFound)

	rooms, err := reg.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestPostMessageValidation(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, config.DefaultIdentities)
	ps := connect(reg, 1)

	_, err := reg.PostMessage(ctx, ps[0].ID, "hello")
	require.ErrorIs(t, err, ErrNotInRoom)

	_, err = reg.Join(ctx, ps[0].ID, "room")
	require.NoError(t, err)

	_, err = reg.PostMessage(ctx, ps[0].ID, " \n\t ")
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = reg.PostMessage(ctx, ps[0].ID, strings.Repeat("я", 4001))
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = reg.PostMessage(ctx, ps[0].ID, strings.Repeat("я", 4000))
	require.NoError(t, err)
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, config.DefaultIdentities)
	ps := connect(reg, 30)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		full int
	)
	for _, p := range ps {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := reg.Join(ctx, id, "room"); err != nil {
				mu.Lock()
				full++
				mu.Unlock()
			}
		}(p.ID)
	}
	wg.Wait()

	snap, err := reg.GetRoom(ctx, "room")
	require.NoError(t, err)
	assert.Len(t, snap.VideoUsers, 4)
	assert.Len(t, snap.ChatUsers, 16)
	assert.Equal(t, 10, full)
}
