package memory

import (
	"context"
	"sync"

	"github.com/ayo6706/booking-ledger/internal/models"
)

// Idempotency is an in-memory idempotency key backend.
type Idempotency struct {
	mu   sync.Mutex
	keys map[string]models.IdempotencyRecord
}

func NewIdempotency() *Idempotency {
	return &Idempotency{keys: make(map[string]models.IdempotencyRecord)}
}

func (s *Idempotency) Get(_ context.Context, key string) (*models.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[key]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &rec, nil
}

func (s *Idempotency) Reserve(_ context.Context, key, requestHash, method, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = models.IdempotencyRecord{Key: key, RequestHash: requestHash, Method: method, Path: path, InProgress: true}
	return true, nil
}

func (s *Idempotency) Finalize(_ context.Context, key, requestHash string, status int, body []byte, contentType string) (*models.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[key]
	if !ok || rec.RequestHash != requestHash {
		return nil, models.ErrNotFound
	}
	rec.InProgress = false
	rec.Status = status
	rec.Body = append([]byte(nil), body...)
	rec.ContentType = contentType
	s.keys[key] = rec
	return &rec, nil
}

func (s *Idempotency) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.keys[key]; ok && rec.InProgress {
		delete(s.keys, key)
	}
	return nil
}
