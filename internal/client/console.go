package client

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/immxrtalbeast/meshcall/internal/domain"
)

// Console prints room activity to a terminal. It is both the Observer and
// the Display of the CLI: a tile exists for every video member it has been
// told about.
type Console struct {
	out io.Writer

	mu       sync.Mutex
	localID  string
	tiles    map[string]string
	attached map[string]string

	info   *color.Color
	notice *color.Color
	name   *color.Color
	media  *color.Color
}

func NewConsole(out io.Writer) *Console {
	return &Console{
		out:      out,
		tiles:    make(map[string]string),
		attached: make(map[string]string),
		info:     color.New(color.FgCyan),
		notice:   color.New(color.FgYellow),
		name:     color.New(color.FgGreen, color.Bold),
		media:    color.New(color.FgMagenta),
	}
}

func (c *Console) Joined(role domain.Role, p domain.JoinedPayload) {
	c.mu.Lock()
	c.localID = p.ID
	c.syncTilesLocked(p.VideoUsers)
	c.mu.Unlock()

	c.info.Fprintf(c.out, "joined as %s (%s)\n", c.name.Sprint(p.Identity), role)
	c.printMembers(p.VideoUsers, p.ChatUsers)
	for _, m := range p.Messages {
		c.MessageReceived(m)
	}
}

func (c *Console) MembersChanged(eventType string, p domain.MembershipPayload) {
	c.mu.Lock()
	c.syncTilesLocked(p.VideoUsers)
	c.mu.Unlock()

	switch eventType {
	case domain.EventUserJoinedVideo:
		c.info.Fprintf(c.out, "%s joined with video\n", c.name.Sprint(p.Identity))
	case domain.EventUserJoinedChat:
		c.info.Fprintf(c.out, "%s joined the chat\n", c.name.Sprint(p.Identity))
	case domain.EventUserLeftVideo, domain.EventUserLeftChat:
		c.info.Fprintf(c.out, "%s left\n", c.name.Sprint(p.Identity))
	}
	c.printMembers(p.VideoUsers, p.ChatUsers)
}

func (c *Console) MessageReceived(m domain.MessagePayload) {
	fmt.Fprintf(c.out, "[%s] %s: %s\n",
		m.Timestamp.Local().Format(time.TimeOnly), c.name.Sprint(m.Identity), m.Text)
}

func (c *Console) Notice(text string) {
	c.notice.Fprintf(c.out, "! %s\n", text)
}

func (c *Console) RoomFull() {
	c.notice.Fprintln(c.out, "! room is full, try another room")
}

func (c *Console) Attach(remoteID string, stream RemoteStream) bool {
	c.mu.Lock()
	name, ok := c.tiles[remoteID]
	if ok {
		c.attached[remoteID] = stream.ID
	}
	c.mu.Unlock()

	if ok {
		c.media.Fprintf(c.out, "receiving media from %s (%d tracks)\n", name, len(stream.Tracks))
	}
	return ok
}

func (c *Console) Remove(remoteID string) {
	c.mu.Lock()
	delete(c.attached, remoteID)
	c.mu.Unlock()
}

// Attached reports the stream shown in the tile of remoteID.
func (c *Console) Attached(remoteID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.attached[remoteID]
	return id, ok
}

func (c *Console) syncTilesLocked(video []domain.UserEntry) {
	tiles := make(map[string]string, len(video))
	for _, u := range video {
		if u.ID == c.localID {
			continue
		}
		tiles[u.ID] = u.Name
	}
	c.tiles = tiles
}

func (c *Console) printMembers(video, chat []domain.UserEntry) {
	fmt.Fprintf(c.out, "  video: %s\n  chat:  %s\n", names(video), names(chat))
}

func names(users []domain.UserEntry) string {
	if len(users) == 0 {
		return "-"
	}
	out := ""
	for i, u := range users {
		if i > 0 {
			out += ", "
		}
		out += u.Name
	}
	return out
}
