package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps values in process memory. Two collections opened over the same
// MemoryStore behave like two views of one browser profile.
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[string][]byte
	quota    int
	origin   string
	closed   bool
	notifier *notifier
	locks    keyLocks
}

// NewMemoryStore creates an empty store. quota <= 0 disables the per-value limit.
func NewMemoryStore(quota int) *MemoryStore {
	return &MemoryStore{
		values:   make(map[string][]byte),
		quota:    quota,
		origin:   uuid.NewString(),
		notifier: newNotifier(),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if s.quota > 0 && len(value) > s.quota {
		return fmt.Errorf("%w: %q is %d bytes, limit %d", ErrQuotaExceeded, key, len(value), s.quota)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.values[key] = append([]byte(nil), value...)
	s.mu.Unlock()

	s.notifier.notify(Change{Key: key, Origin: s.origin})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	_, existed := s.values[key]
	delete(s.values, key)
	s.mu.Unlock()

	if existed {
		s.notifier.notify(Change{Key: key, Origin: s.origin})
	}
	return nil
}

func (s *MemoryStore) Lock(ctx context.Context, key string) (func(), error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return s.locks.acquire(ctx, key)
}

func (s *MemoryStore) Subscribe(fn func(Change)) func() {
	return s.notifier.subscribe(fn)
}

func (s *MemoryStore) Origin() string { return s.origin }

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.notifier.close()
	return nil
}
