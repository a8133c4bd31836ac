package gateway

import (
	"context"
	"fmt"
	"sync"
)

// MockVerifier serves references from memory. It backs local development
// and tests.
type MockVerifier struct {
	mu     sync.RWMutex
	emails map[string]string
	// Err, when set, is returned from every lookup to simulate an outage.
	Err error
}

func NewMockVerifier() *MockVerifier {
	return &MockVerifier{emails: make(map[string]string)}
}

// Register records the email that paid for reference.
func (m *MockVerifier) Register(reference, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails[reference] = email
}

func (m *MockVerifier) VerifyReference(ctx context.Context, reference string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("verify canceled: %w", ctx.Err())
	default:
	}
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	email, ok := m.emails[reference]
	if !ok {
		return "", ErrReferenceNotFound
	}
	return email, nil
}
