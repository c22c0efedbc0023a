package domain

import (
	"sort"
	"time"
)

// Role is the slot type a participant holds inside a room.
type Role string

const (
	RoleVideo Role = "video"
	RoleChat  Role = "chat"
)

// Member is a participant's entry in one of the room's member sets.
type Member struct {
	ID       string
	Identity string
	JoinedAt time.Time
}

// Room groups video members, chat-only members and the chat history.
// A participant id is present in at most one of the two member sets.
// Room is not safe for concurrent use; its owner serializes access.
type Room struct {
	ID        string
	CreatedAt time.Time

	video    []Member
	chat     map[string]Member
	messages []ChatMessage
}

func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		chat:      make(map[string]Member),
	}
}

// RoleOf reports which member set holds the participant.
func (r *Room) RoleOf(participantID string) (Role, bool) {
	for _, m := range r.video {
		if m.ID == participantID {
			return RoleVideo, true
		}
	}
	if _, ok := r.chat[participantID]; ok {
		return RoleChat, true
	}
	return "", false
}

// Member returns the entry of the participant in either set.
func (r *Room) Member(participantID string) (Member, bool) {
	for _, m := range r.video {
		if m.ID == participantID {
			return m, true
		}
	}
	m, ok := r.chat[participantID]
	return m, ok
}

func (r *Room) VideoCount() int { return len(r.video) }

func (r *Room) ChatCount() int { return len(r.chat) }

func (r *Room) IsEmpty() bool {
	return len(r.video) == 0 && len(r.chat) == 0
}

// UsedIdentities returns the identities held by members of both sets.
func (r *Room) UsedIdentities() map[string]struct{} {
	used := make(map[string]struct{}, len(r.video)+len(r.chat))
	for _, m := range r.video {
		used[m.Identity] = struct{}{}
	}
	for _, m := range r.chat {
		used[m.Identity] = struct{}{}
	}
	return used
}

// Add inserts the member into the set matching role.
// It returns false when the participant already belongs to the room.
func (r *Room) Add(role Role, m Member) bool {
	if _, ok := r.RoleOf(m.ID); ok {
		return false
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	switch role {
	case RoleVideo:
		r.video = append(r.video, m)
	case RoleChat:
		r.chat[m.ID] = m
	default:
		return false
	}
	return true
}

// Remove deletes the participant from whichever set holds it.
func (r *Room) Remove(participantID string) (Member, Role, bool) {
	for i, m := range r.video {
		if m.ID == participantID {
			r.video = append(r.video[:i], r.video[i+1:]...)
			return m, RoleVideo, true
		}
	}
	if m, ok := r.chat[participantID]; ok {
		delete(r.chat, participantID)
		return m, RoleChat, true
	}
	return Member{}, "", false
}

// AppendMessage stamps msg so that timestamps never go backwards within the
// room and appends it to the history.
func (r *Room) AppendMessage(msg ChatMessage) ChatMessage {
	if n := len(r.messages); n > 0 {
		if last := r.messages[n-1].CreatedAt; msg.CreatedAt.Before(last) {
			msg.CreatedAt = last
		}
	}
	r.messages = append(r.messages, msg)
	return msg
}

func (r *Room) MessageCount() int { return len(r.messages) }

// VideoUsers lists video members in join order.
func (r *Room) VideoUsers() []UserEntry {
	users := make([]UserEntry, 0, len(r.video))
	for _, m := range r.video {
		users = append(users, UserEntry{ID: m.ID, Name: m.Identity})
	}
	return users
}

// ChatUsers lists chat-only members in join order.
func (r *Room) ChatUsers() []UserEntry {
	members := make([]Member, 0, len(r.chat))
	for _, m := range r.chat {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].ID < members[j].ID
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})

	users := make([]UserEntry, 0, len(members))
	for _, m := range members {
		users = append(users, UserEntry{ID: m.ID, Name: m.Identity})
	}
	return users
}

// Messages returns a copy of the chat history.
func (r *Room) Messages() []ChatMessage {
	out := make([]ChatMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

// RoomSnapshot is a detached copy of a room's state.
type RoomSnapshot struct {
	ID         string
	VideoUsers []UserEntry
	ChatUsers  []UserEntry
	Messages   []ChatMessage
	CreatedAt  time.Time
}

func (r *Room) Snapshot() RoomSnapshot {
	return RoomSnapshot{
		ID:         r.ID,
		VideoUsers: r.VideoUsers(),
		ChatUsers:  r.ChatUsers(),
		Messages:   r.Messages(),
		CreatedAt:  r.CreatedAt,
	}
}
