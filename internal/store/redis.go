package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	apperrors "vidgrab/internal/errors"
)

const redisKeyPrefix = "vidgrab:"

// Redis shares state between processes. CompareAndSwap uses WATCH/MULTI.
type Redis struct {
	client *redis.Client
}

// OpenRedis connects from a redis:// URL or a bare host:port and pings.
func OpenRedis(ctx context.Context, redisURL string) (*Redis, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, apperrors.NewConfigError("parse redis url", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.NewStorageError("ping redis", err)
	}
	return NewRedis(client), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("get %s", key), err)
	}
	return v, nil
}

func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("set %s", key), err)
	}
	return nil
}

func (s *Redis) CompareAndSwap(ctx context.Context, key string, old, new []byte) (bool, error) {
	k := redisKeyPrefix + key
	if old == nil {
		ok, err := s.client.SetNX(ctx, k, new, 0).Result()
		if err != nil {
			return false, apperrors.NewStorageError(fmt.Sprintf("cas %s", key), err)
		}
		return ok, nil
	}

	swapped := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if !bytes.Equal(cur, old) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, new, 0)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, k)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewStorageError(fmt.Sprintf("cas %s", key), err)
	}
	return swapped, nil
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("delete %s", key), err)
	}
	return nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}
