// internal/state/session.go
package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ticket-mirror/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionStore persists the minimal wallet snapshot between runs so a
// reconnecting identity sees balances immediately, before the first live
// refresh lands. Snapshots are display hints, never authoritative.
type SessionStore interface {
	Save(ctx context.Context, snap domain.Snapshot) error
	Load(ctx context.Context, address string) (*domain.Snapshot, error)
	Delete(ctx context.Context, address string) error
}

// ============================================================================
// Redis store
// ============================================================================

type redisSessionStore struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	logger    *zap.Logger
}

func NewRedisSessionStore(client *redis.Client, namespace string, ttl time.Duration, logger *zap.Logger) SessionStore {
	return &redisSessionStore{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger,
	}
}

func (s *redisSessionStore) key(address string) string {
	return s.namespace + ":session:" + address
}

func (s *redisSessionStore) Save(ctx context.Context, snap domain.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(snap.Address), payload, s.ttl).Err(); err != nil {
		s.logger.Warn("Failed to save session snapshot",
			zap.String("address", snap.Address),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *redisSessionStore) Load(ctx context.Context, address string) (*domain.Snapshot, error) {
	payload, err := s.client.Get(ctx, s.key(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		// A corrupt snapshot is worthless; treat it as absent.
		s.logger.Warn("Discarding corrupt session snapshot",
			zap.String("address", address),
			zap.Error(err))
		return nil, nil
	}
	return &snap, nil
}

func (s *redisSessionStore) Delete(ctx context.Context, address string) error {
	return s.client.Del(ctx, s.key(address)).Err()
}

// ============================================================================
// In-memory store
// ============================================================================

// memorySessionStore backs tests and redis-less deployments.
type memorySessionStore struct {
	mu    sync.RWMutex
	snaps map[string]domain.Snapshot
}

func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{snaps: make(map[string]domain.Snapshot)}
}

func (s *memorySessionStore) Save(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.Address] = snap
	return nil
}

func (s *memorySessionStore) Load(_ context.Context, address string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[address]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (s *memorySessionStore) Delete(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, address)
	return nil
}
