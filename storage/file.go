package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// FileStore keeps one <key>.json file per key under dir.
// Writes go to a temp file in the same directory and are renamed into place.
type FileStore struct {
	dir      string
	quota    int
	origin   string
	mu       sync.RWMutex
	closed   bool
	notifier *notifier
	locks    keyLocks
}

func NewFileStore(dir string, quota int) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("STORE_DIR is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", dir, err)
	}
	return &FileStore{
		dir:      dir,
		quota:    quota,
		origin:   uuid.NewString(),
		notifier: newNotifier(),
	}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
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
	err := s.writeAtomic(key, value)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.notifier.notify(Change{Key: key, Origin: s.origin})
	return nil
}

func (s *FileStore) writeAtomic(key string, value []byte) error {
	tmp, err := os.CreateTemp(s.dir, "."+key+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		cleanup()
		return err
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	err := os.Remove(s.path(key))
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	s.notifier.notify(Change{Key: key, Origin: s.origin})
	return nil
}

// Lock is process-local. Separate processes sharing a directory are last-write-wins.
func (s *FileStore) Lock(ctx context.Context, key string) (func(), error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return s.locks.acquire(ctx, key)
}

func (s *FileStore) Subscribe(fn func(Change)) func() {
	return s.notifier.subscribe(fn)
}

func (s *FileStore) Origin() string { return s.origin }

func (s *FileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.notifier.close()
	return nil
}
