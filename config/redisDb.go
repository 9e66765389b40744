package config

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ConnectRedisWithRetry connects to redis and returns the client plus a lock client built on it.
// It retries with exponential backoff (capped at 30s) up to attempts times.
func ConnectRedisWithRetry(ctx context.Context, logger *logrus.Logger, addr string, attempts int) (*redis.Client, *redislock.Client, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: "",
			DB:       0, // use default DB
			PoolSize: 10,
		})
		err := rdb.Ping(ctx).Err()
		if err == nil {
			logger.WithFields(logrus.Fields{"attempt": attempt, "addr": addr}).Info("connected to redis")
			return rdb, redislock.New(rdb), nil
		}
		_ = rdb.Close()
		lastErr = err

		if attempt == attempts {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{"attempt": attempt, "addr": addr, "retry_in": sleep.String()}).
			Warn("failed to connect redis: " + err.Error())
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, nil, fmt.Errorf("connect redis %s: %w", addr, lastErr)
}
