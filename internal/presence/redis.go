package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/immxrtalbeast/meshcall/internal/config"
	"github.com/immxrtalbeast/meshcall/internal/domain"
	"github.com/immxrtalbeast/meshcall/lib/logger/sl"
	"github.com/redis/go-redis/v9"
)

const (
	defaultQueueSize = 256
	opTimeout        = 2 * time.Second
)

// Connect opens a Redis client and checks it with a ping.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Store is the subset of Redis commands the mirror needs.
type Store interface {
	HSet(ctx context.Context, key, field, value string) error
	HDel(ctx context.Context, key, field string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore adapts a go-redis client to Store.
func NewRedisStore(client *redis.Client) Store {
	return redisStore{client: client}
}

func (s redisStore) HSet(ctx context.Context, key, field, value string) error {
	return s.client.HSet(ctx, key, field, value).Err()
}

func (s redisStore) HDel(ctx context.Context, key, field string) error {
	return s.client.HDel(ctx, key, field).Err()
}

func (s redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s redisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// MembersKey is the hash holding a room's members, keyed by participant id.
func MembersKey(roomID string) string {
	return "room:" + roomID + ":members"
}

type memberValue struct {
	Identity string      `json:"identity"`
	Role     domain.Role `json:"role"`
}

// RedisMirror applies changes to a Store from a single worker so that the
// store sees them in publish order.
type RedisMirror struct {
	store Store
	ttl   time.Duration
	log   *slog.Logger
	queue chan Change
}

func NewRedisMirror(store Store, ttl time.Duration, log *slog.Logger) *RedisMirror {
	if log == nil {
		log = slog.Default()
	}
	return &RedisMirror{
		store: store,
		ttl:   ttl,
		log:   log,
		queue: make(chan Change, defaultQueueSize),
	}
}

// Publish queues c. When the queue is full the change is dropped and logged.
func (m *RedisMirror) Publish(c Change) {
	select {
	case m.queue <- c:
	default:
		m.log.Warn("presence queue full, dropping change",
			slog.String("room_id", c.RoomID),
			slog.String("kind", c.Kind.String()),
		)
	}
}

// Run applies queued changes until ctx is done.
func (m *RedisMirror) Run(ctx context.Context) {
	const op = "presence.redis.run"
	log := m.log.With(slog.String("op", op))

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-m.queue:
			if err := m.apply(ctx, c); err != nil {
				log.Error("failed to mirror presence change",
					slog.String("room_id", c.RoomID),
					slog.String("kind", c.Kind.String()),
					sl.Err(err),
				)
			}
		}
	}
}

func (m *RedisMirror) apply(ctx context.Context, c Change) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := MembersKey(c.RoomID)
	switch c.Kind {
	case MemberJoined:
		value, err := json.Marshal(memberValue{Identity: c.Identity, Role: c.Role})
		if err != nil {
			return err
		}
		if err := m.store.HSet(ctx, key, c.ParticipantID, string(value)); err != nil {
			return err
		}
		return m.store.Expire(ctx, key, m.ttl)
	case MemberLeft:
		return m.store.HDel(ctx, key, c.ParticipantID)
	case RoomClosed:
		return m.store.Del(ctx, key)
	}
	return fmt.Errorf("unknown change kind %d", c.Kind)
}
