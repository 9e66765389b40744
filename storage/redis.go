package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/config"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	redisKeyPrefix     = "mrp:"
	redisChangeChannel = "kv:changes"
	redisLockTTL       = 10 * time.Second
)

// RedisStore shares the values between processes. Changes are published on kv:changes,
// so every instance (this one included) learns about a write through its subscription.
type RedisStore struct {
	rdb      *redis.Client
	locker   *redislock.Client
	logger   *logrus.Logger
	origin   string
	notifier *notifier

	subOnce sync.Once
	pubsub  *redis.PubSub
	mu      sync.Mutex
	closed  bool
}

func NewRedisStore(rdb *redis.Client, locker *redislock.Client, logger *logrus.Logger) *RedisStore {
	if locker == nil {
		locker = redislock.New(rdb)
	}
	return &RedisStore{
		rdb:      rdb,
		locker:   locker,
		logger:   logger,
		origin:   uuid.NewString(),
		notifier: newNotifier(),
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	data, err := s.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return err
	}
	s.publish(ctx, key)
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	n, err := s.rdb.Del(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		s.publish(ctx, key)
	}
	return nil
}

// publish failures are logged, not returned: the value itself was written.
func (s *RedisStore) publish(ctx context.Context, key string) {
	payload, err := json.Marshal(Change{Key: key, Origin: s.origin})
	if err != nil {
		config.LogError(s.logger, "storage", "RedisStore.publish", key, nil, err)
		return
	}
	if err := s.rdb.Publish(ctx, redisChangeChannel, payload).Err(); err != nil {
		config.LogError(s.logger, "storage", "RedisStore.publish", key, nil, err)
	}
}

func (s *RedisStore) Lock(ctx context.Context, key string) (func(), error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	lock, err := s.locker.Obtain(ctx, redisKeyPrefix+"lock:"+key, redisLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 100),
	})
	if err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				config.LogError(s.logger, "storage", "RedisStore.Lock", key, nil, err)
			}
		})
	}, nil
}

func (s *RedisStore) Subscribe(fn func(Change)) func() {
	s.subOnce.Do(s.listen)
	return s.notifier.subscribe(fn)
}

func (s *RedisStore) listen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pubsub = s.rdb.Subscribe(context.Background(), redisChangeChannel)
	ch := s.pubsub.Channel()
	go func() {
		for msg := range ch {
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				config.LogError(s.logger, "storage", "RedisStore.listen", msg.Payload, nil, err)
				continue
			}
			s.notifier.notify(c)
		}
	}()
}

func (s *RedisStore) Origin() string { return s.origin }

func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.notifier.close()
	if s.pubsub != nil {
		_ = s.pubsub.Close()
	}
	return s.rdb.Close()
}
