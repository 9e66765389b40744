package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/akpande2/bom-buddy-factory-sub000/config"
	"github.com/sirupsen/logrus"
)

var (
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrInvalidKey    = errors.New("invalid storage key")
	ErrClosed        = errors.New("storage is closed")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Change tells subscribers that the value under Key was written or deleted by Origin.
type Change struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

// KV is the key/value system of record. Every collection is one JSON value under one key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Lock serializes read-modify-write cycles on key.
	Lock(ctx context.Context, key string) (unlock func(), err error)
	// Subscribe registers fn for every change, delivered in write order on a dispatcher goroutine.
	Subscribe(fn func(Change)) (cancel func())
	// Origin identifies this instance in the changes it produces.
	Origin() string
	Close() error
}

func validateKey(key string) error {
	if !keyPattern.MatchString(key) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Open selects the backend from settings.StoreDriver and wraps it with tracing.
func Open(ctx context.Context, settings *config.Settings, logger *logrus.Logger) (KV, error) {
	var (
		kv  KV
		err error
	)
	switch settings.StoreDriver {
	case config.StoreDriverMemory:
		kv = NewMemoryStore(settings.StoreQuotaBytes)
	case config.StoreDriverFile, "":
		kv, err = NewFileStore(settings.StoreDir, settings.StoreQuotaBytes)
	case config.StoreDriverRedis:
		rdb, locker, cerr := config.ConnectRedisWithRetry(ctx, logger, settings.RedisAddress, settings.RedisConnectAttempts)
		if cerr != nil {
			return nil, cerr
		}
		kv = NewRedisStore(rdb, locker, logger)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", settings.StoreDriver)
	}
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"driver": settings.StoreDriver, "origin": kv.Origin()}).Info("store opened")
	return Traced(kv, settings.StoreDriver), nil
}
