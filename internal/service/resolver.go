package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/booking-ledger/internal/booking"
	"github.com/ayo6706/booking-ledger/internal/gateway"
	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultVerifyTimeout = 5 * time.Second

// Resolution identifies the booking a reference resolved to.
type Resolution struct {
	BookingID uuid.UUID
	Category  string
	// Email is the buyer email used for the match, either supplied or
	// recovered from the payment provider.
	Email string
	// Reference is the stored reference value that matched.
	Reference string
}

// ResolverService finds one booking across the category stores from a
// payment reference and buyer email.
type ResolverService struct {
	bookings      *booking.Registry
	verifier      gateway.Verifier
	verifyTimeout time.Duration
}

func NewResolverService(bookings *booking.Registry, verifier gateway.Verifier) *ResolverService {
	return &ResolverService{bookings: bookings, verifier: verifier, verifyTimeout: defaultVerifyTimeout}
}

// WithVerifyTimeout bounds the payment provider lookup.
func (s *ResolverService) WithVerifyTimeout(d time.Duration) *ResolverService {
	if d > 0 {
		s.verifyTimeout = d
	}
	return s
}

// Resolve returns the first plausible match in category priority order.
// Store counts run concurrently; the winner is still chosen by priority.
func (s *ResolverService) Resolve(ctx context.Context, reference, email string) (*Resolution, error) {
	const op = "resolve booking"
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, validationError(op, "reference is required")
	}

	email = booking.NormalizeEmail(email)
	if email == "" {
		recovered, err := s.recoverEmail(ctx, reference)
		if err != nil {
			return nil, err
		}
		email = recovered
	}
	if email == "" {
		return nil, validationError(op, "email could not be determined for reference")
	}

	match := booking.NewMatch(reference, email)
	stores := s.bookings.Ordered()
	counts := make([]int64, len(stores))

	g, gctx := errgroup.WithContext(ctx)
	for i, st := range stores {
		i, st := i, st
		g.Go(func() error {
			n, err := st.Count(gctx, match)
			if err != nil {
				return fmt.Errorf("count %s bookings: %w", st.Category().Name, err)
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, st := range stores {
		if counts[i] == 0 {
			continue
		}
		if counts[i] > 1 {
			zap.L().Warn("reference matched multiple bookings; using first",
				zap.String("category", st.Category().Name),
				zap.Int64("matches", counts[i]),
			)
		}
		b, err := st.FindOne(ctx, match)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("find %s booking: %w", st.Category().Name, err)
		}
		return &Resolution{
			BookingID: b.ID,
			Category:  st.Category().Name,
			Email:     email,
			Reference: match.MatchedReference(st.Category(), b),
		}, nil
	}
	return nil, notFoundError(op, "no booking matches reference", nil)
}

func (s *ResolverService) recoverEmail(ctx context.Context, reference string) (string, error) {
	if s.verifier == nil {
		return "", nil
	}
	vctx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	email, err := s.verifier.VerifyReference(vctx, reference)
	if err != nil {
		if errors.Is(err, gateway.ErrReferenceNotFound) {
			return "", nil
		}
		return "", &Error{Kind: KindTransient, Op: "verify payment reference", Err: err}
	}
	return booking.NormalizeEmail(email), nil
}
