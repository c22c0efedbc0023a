// Package presence mirrors room occupancy to an external store for
// observers outside the process. The mirror is write-only.
package presence

import "github.com/immxrtalbeast/meshcall/internal/domain"

type ChangeKind int

const (
	MemberJoined ChangeKind = iota
	MemberLeft
	RoomClosed
)

func (k ChangeKind) String() string {
	switch k {
	case MemberJoined:
		return "joined"
	case MemberLeft:
		return "left"
	case RoomClosed:
		return "closed"
	}
	return "unknown"
}

// Change is one occupancy update.
type Change struct {
	Kind          ChangeKind
	RoomID        string
	ParticipantID string
	Identity      string
	Role          domain.Role
}

// Publisher receives occupancy changes in the order they happen.
// Publish must not block.
type Publisher interface {
	Publish(c Change)
}

type Nop struct{}

func (Nop) Publish(Change) {}
