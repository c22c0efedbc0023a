package repository

import (
	"context"
	"testing"

	"github.com/immxrtalbeast/meshcall/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoomRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRoomRepository()

	require.NoError(t, repo.Create(ctx, domain.NewRoom("b")))
	require.NoError(t, repo.Create(ctx, domain.NewRoom("a")))
	require.ErrorIs(t, repo.Create(ctx, domain.NewRoom("a")), ErrRoomExists)

	room, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", room.ID)

	rooms, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "a", rooms[0].ID)
	assert.Equal(t, "b", rooms[1].ID)

	require.NoError(t, repo.Delete(ctx, "a"))
	_, err = repo.Get(ctx, "a")
	require.ErrorIs(t, err, ErrRoomNotFound)
	require.ErrorIs(t, repo.Delete(ctx, "a"), ErrRoomNotFound)
}

func TestInMemoryRoomRepositoryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := NewInMemoryRoomRepository()
	require.ErrorIs(t, repo.Create(ctx, domain.NewRoom("a")), context.Canceled)
	_, err := repo.List(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
