package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("idempotency key not found")
	ErrHashMismatch = errors.New("idempotency key body mismatch")
	ErrInProgress   = errors.New("idempotency key in progress")
)

const redisKeyPrefix = "idempotency"

type Record struct {
	Key         string
	RequestHash string
	Status      int
	Body        []byte
	ContentType string
	ServedBy    string
}

// Backend is the durable key store. Get and Finalize return
// models.ErrNotFound for unknown keys; Reserve reports false when the key is
// already held.
type Backend interface {
	Get(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error)
	Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (*models.IdempotencyRecord, error)
	Release(ctx context.Context, key string) error
}

// Store fronts a durable backend with an optional Redis cache of finalized
// responses.
type Store struct {
	redis   redis.Cmdable
	backend Backend
	ttl     time.Duration
	source  string
}

func NewStore(redis redis.Cmdable, backend Backend, ttl time.Duration) *Store {
	return &Store{redis: redis, backend: backend, ttl: ttl, source: "postgres"}
}

// WithSource sets the label reported in ServedBy for backend hits.
func (s *Store) WithSource(source string) *Store {
	s.source = source
	return s
}

type cacheEnvelope struct {
	Key         string `json:"key"`
	Hash        string `json:"hash"`
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
}

func (s *Store) Lookup(ctx context.Context, key, requestHash string) (*Record, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, redisKey(key)).Result()
		if err == nil {
			var env cacheEnvelope
			if json.Unmarshal([]byte(val), &env) == nil {
				if env.Hash != requestHash {
					return nil, ErrHashMismatch
				}
				return &Record{
					Key:         env.Key,
					RequestHash: env.Hash,
					Status:      env.Status,
					Body:        env.Body,
					ContentType: env.ContentType,
					ServedBy:    "redis",
				}, nil
			}
		} else if err != redis.Nil {
			zap.L().Warn("redis idempotency lookup failed", zap.Error(err))
		}
	}

	row, err := s.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}

	rec := fromModel(row)

	if rec.RequestHash != requestHash {
		return nil, ErrHashMismatch
	}
	if row.InProgress {
		return nil, ErrInProgress
	}
	rec.ServedBy = s.source
	s.cache(ctx, rec)
	return &rec, nil
}

func fromModel(row *models.IdempotencyRecord) Record {
	return Record{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		Status:      row.Status,
		Body:        row.Body,
		ContentType: row.ContentType,
	}
}

func (s *Store) Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error) {
	ok, err := s.backend.Reserve(ctx, key, requestHash, method, path)
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return ok, nil
}

// Release drops an unfinished reservation so a failed request can be retried
// under the same key.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.backend.Release(ctx, key); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *Store) Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (*Record, error) {
	row, err := s.backend.Finalize(ctx, key, requestHash, status, body, contentType)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finalize idempotency key: %w", err)
	}

	rec := fromModel(row)
	rec.ServedBy = s.source
	s.cache(ctx, rec)
	return &rec, nil
}

func (s *Store) WaitForCompletion(ctx context.Context, key, requestHash string) (*Record, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		rec, err := s.Lookup(ctx, key, requestHash)
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, ErrInProgress) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
				continue
			}
		}
		return nil, err
	}
}

func (s *Store) cache(ctx context.Context, rec Record) {
	if s.redis == nil {
		return
	}
	env := cacheEnvelope{
		Key:         rec.Key,
		Hash:        rec.RequestHash,
		Status:      rec.Status,
		Body:        rec.Body,
		ContentType: rec.ContentType,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		zap.L().Warn("marshal idempotency cache", zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, redisKey(rec.Key), payload, s.ttl).Err(); err != nil {
		zap.L().Warn("redis idempotency cache set failed", zap.Error(err))
	}
}

func redisKey(key string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, key)
}
