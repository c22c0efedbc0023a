package repository

import (
	"context"
	"errors"

	"github.com/immxrtalbeast/meshcall/internal/domain"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

// RoomRepository stores the live rooms of the process.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	Get(ctx context.Context, id string) (*domain.Room, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.Room, error)
}
