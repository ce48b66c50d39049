package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"go.pilab.hu/portal/domain"
)

// MemoryStore holds sessions in process memory with automatic expiry.
// Sessions are lost on restart and store operations never fail.
type MemoryStore struct {
	cache *ttlcache.Cache[string, *domain.Session]
	ttl   time.Duration
}

// NewMemoryStore creates a transient store whose sessions expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *domain.Session](ttl),
		ttlcache.WithDisableTouchOnHit[string, *domain.Session](),
	)
	go cache.Start()

	return &MemoryStore{cache: cache, ttl: ttl}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context) (*domain.Session, error) {
	now := time.Now().UTC()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.cache.Set(sess.ID, sess, s.ttl)
	return sess, nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, id string) (*domain.Session, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, domain.ErrSessionNotFound
	}
	return item.Value(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, sess *domain.Session) error {
	s.cache.Set(sess.ID, sess, time.Until(sess.ExpiresAt))
	return nil
}

// Destroy implements Store.
func (s *MemoryStore) Destroy(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

// Stop halts the background expiry sweep.
func (s *MemoryStore) Stop() {
	s.cache.Stop()
}

var _ Store = (*MemoryStore)(nil)
