package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "roomdesign:job:"
	redisMaxAttempts = 8
	defaultRedisTTL  = 72 * time.Hour
)

// RedisStore keeps one JSON document per job with a sliding TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore wraps a connected client.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func redisKey(jobID string) string {
	return redisKeyPrefix + jobID
}

// Insert writes the record only if no document exists for the job id.
func (s *RedisStore) Insert(ctx context.Context, rec Record) error {
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("storage: encode job: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, redisKey(rec.JobID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("storage: redis insert job: %w", err)
	}
	if !ok {
		return fmt.Errorf("storage: job %s already exists", rec.JobID)
	}
	return nil
}

// Update applies u under WATCH so concurrent writers never lose fields.
func (s *RedisStore) Update(ctx context.Context, jobID string, u Update) error {
	key := redisKey(jobID)

	for i := 0; i < redisMaxAttempts; i++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			val, err := tx.Get(ctx, key).Result()
			if err == redis.Nil {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			var rec Record
			if err := json.Unmarshal([]byte(val), &rec); err != nil {
				return fmt.Errorf("storage: decode job: %w", err)
			}
			u.Apply(&rec, s.now())

			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("storage: encode job: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, s.ttl)
				return nil
			})
			return err
		}, key)

		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("storage: redis update job: %w", err)
	}
	return fmt.Errorf("storage: redis update job %s: retry exceeded", jobID)
}

// Get loads a job document.
func (s *RedisStore) Get(ctx context.Context, jobID string) (Record, error) {
	val, err := s.rdb.Get(ctx, redisKey(jobID)).Result()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("storage: redis get job: %w", err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return Record{}, fmt.Errorf("storage: decode job: %w", err)
	}
	return rec, nil
}

// Close releases the client connection pool.
func (s *RedisStore) Close() {
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
}
