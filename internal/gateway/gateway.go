package gateway

import (
	"context"
	"errors"
)

// ErrReferenceNotFound is returned when the provider has no transaction for
// the reference.
var ErrReferenceNotFound = errors.New("payment reference not found")

// Verifier looks up a completed payment by reference and returns the email
// of the customer who paid.
type Verifier interface {
	VerifyReference(ctx context.Context, reference string) (string, error)
}
