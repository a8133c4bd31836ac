package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ayo6706/booking-ledger/internal/booking"
	"github.com/ayo6706/booking-ledger/internal/domain"
	"github.com/ayo6706/booking-ledger/internal/mailer"
	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/ayo6706/booking-ledger/internal/observability"
	"github.com/ayo6706/booking-ledger/internal/token"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMailTimeout = 5 * time.Second

// CancellationConfig controls link building and exposure.
type CancellationConfig struct {
	PublicBaseURL string
	// ExposeLink returns the magic link in the response. Never set in
	// production.
	ExposeLink  bool
	MailTimeout time.Duration
}

type TokenResult struct {
	BookingID uuid.UUID
	Category  string
	Link      string
}

type ConfirmResult struct {
	BookingID        uuid.UUID
	Category         string
	AlreadyCancelled bool
	Reversal         *ReversalReport
}

// CancellationService runs the guest cancellation workflow: a reference is
// resolved to a booking, a signed link is mailed to the buyer, and
// confirming the link cancels the booking and reverses its accruals.
type CancellationService struct {
	resolver  *ResolverService
	bookings  *booking.Registry
	tokens    *token.Issuer
	mail      mailer.Mailer
	reversals *ReversalService
	audit     *AuditService
	cfg       CancellationConfig
	now       func() time.Time
}

func NewCancellationService(resolver *ResolverService, bookings *booking.Registry, tokens *token.Issuer, mail mailer.Mailer, reversals *ReversalService, audit *AuditService, cfg CancellationConfig) *CancellationService {
	if mail == nil {
		mail = mailer.LogMailer{}
	}
	if cfg.MailTimeout <= 0 {
		cfg.MailTimeout = defaultMailTimeout
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &CancellationService{
		resolver:  resolver,
		bookings:  bookings,
		tokens:    tokens,
		mail:      mail,
		reversals: reversals,
		audit:     audit,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RequestToken resolves the booking and mails a cancellation link to the
// buyer. Mail failures are logged and do not fail the request.
func (s *CancellationService) RequestToken(ctx context.Context, email, reference string) (*TokenResult, error) {
	res, err := s.resolver.Resolve(ctx, reference, email)
	if err != nil {
		observability.IncrementCancellation("request", KindOf(err).String())
		return nil, err
	}
	recordTransition(ctx, s.audit, res.BookingID, "", CancelStateRequested, "cancel_requested",
		map[string]string{"category": res.Category})

	raw, err := s.tokens.Issue(res.BookingID, res.Category, res.Email, booking.Fingerprint(res.Reference))
	if err != nil {
		observability.IncrementCancellation("request", "error")
		return nil, fmt.Errorf("issue cancel token: %w", err)
	}
	link := s.cfg.PublicBaseURL + "/cancel?token=" + url.QueryEscape(raw)

	mctx, cancel := context.WithTimeout(ctx, s.cfg.MailTimeout)
	defer cancel()
	if err := s.mail.Send(mctx, mailer.CancelLinkMessage(res.Email, res.Category, link)); err != nil {
		observability.IncrementCancellation("request", "mail_failed")
		zap.L().Warn("cancel link email failed",
			zap.Error(err),
			zap.String("booking_id", res.BookingID.String()),
			zap.String("category", res.Category),
		)
	}
	recordTransition(ctx, s.audit, res.BookingID, CancelStateRequested, CancelStateTokenIssued, "cancel_token_issued",
		map[string]string{"category": res.Category})
	observability.IncrementCancellation("request", "ok")

	out := &TokenResult{BookingID: res.BookingID, Category: res.Category}
	if s.cfg.ExposeLink {
		out.Link = link
	}
	return out, nil
}

// Confirm verifies raw against the live booking and cancels it. Repeated
// confirmations return the same result without further side effects.
func (s *CancellationService) Confirm(ctx context.Context, raw string) (*ConfirmResult, error) {
	const op = "confirm cancellation"
	result, err := s.confirm(ctx, op, raw)
	if err != nil {
		observability.IncrementCancellation("confirm", KindOf(err).String())
		return nil, err
	}
	if result.AlreadyCancelled {
		observability.IncrementCancellation("confirm", "replay")
	} else {
		observability.IncrementCancellation("confirm", "ok")
	}
	return result, nil
}

func (s *CancellationService) confirm(ctx context.Context, op, raw string) (*ConfirmResult, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		if errors.Is(err, token.ErrMalformed) {
			return nil, &Error{Kind: KindValidation, Op: op, Msg: "token is missing or malformed", Err: err}
		}
		return nil, &Error{Kind: KindUnauthorized, Op: op, Msg: "token is invalid or expired", Err: err}
	}
	bookingID, err := uuid.Parse(claims.BookingID)
	if err != nil {
		return nil, &Error{Kind: KindUnauthorized, Op: op, Msg: "token is invalid or expired", Err: err}
	}
	store, err := s.bookings.Store(claims.Category)
	if err != nil {
		return nil, &Error{Kind: KindUnauthorized, Op: op, Msg: "token names an unknown category", Err: err}
	}
	cat := store.Category()

	b, err := store.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, notFoundError(op, "booking no longer exists", err)
		}
		return nil, fmt.Errorf("reload booking %s: %w", bookingID, err)
	}
	if !cat.HasEmail(b, claims.Email) || !cat.HasReferenceFingerprint(b, claims.RefFingerprint) {
		zap.L().Warn("cancel token does not match live booking",
			zap.String("booking_id", bookingID.String()),
			zap.String("category", cat.Name),
		)
		return nil, &Error{Kind: KindForbidden, Op: op, Msg: "booking no longer matches this link"}
	}

	result := &ConfirmResult{BookingID: bookingID, Category: cat.Name}
	if b.Status == domain.BookingStatusCancelled {
		result.AlreadyCancelled = true
		return result, nil
	}

	won, err := store.MarkCancelled(ctx, bookingID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}
	if !won {
		result.AlreadyCancelled = true
		return result, nil
	}

	recordTransition(ctx, s.audit, bookingID, CancelStateTokenIssued, CancelStateConfirmed, "cancel_confirmed",
		map[string]string{"category": cat.Name})

	report, err := s.reversals.Reverse(ctx, bookingID, cat.Name)
	if err != nil {
		zap.L().Error("reversal after cancellation failed; booking needs reconciliation",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
			zap.String("category", cat.Name),
		)
	}
	result.Reversal = report
	return result, nil
}
