// Package identity hands out friendly per-room labels from a fixed pool.
package identity

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

var ErrRoomFull = errors.New("room is full: no identities left")

type Allocator struct {
	pool []string
}

// NewAllocator builds an allocator over labels. Blank and duplicate labels
// are dropped; the order of first occurrence is kept.
func NewAllocator(labels []string) *Allocator {
	seen := make(map[string]struct{}, len(labels))
	pool := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		pool = append(pool, l)
	}
	return &Allocator{pool: pool}
}

// Size is the number of distinct labels in the pool.
func (a *Allocator) Size() int { return len(a.pool) }

// Allocate picks a label not present in used, uniformly at random.
func (a *Allocator) Allocate(used map[string]struct{}) (string, error) {
	free := make([]string, 0, len(a.pool))
	for _, l := range a.pool {
		if _, taken := used[l]; !taken {
			free = append(free, l)
		}
	}
	if len(free) == 0 {
		return "", ErrRoomFull
	}

	i, err := randomIndex(len(free))
	if err != nil {
		return "", err
	}
	return free[i], nil
}

// randomIndex returns a cryptographically secure random index below max.
func randomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
