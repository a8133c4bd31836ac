package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	PurposeGuestCancel = "guest_cancel"
	DefaultTTL         = 2 * time.Hour
)

var (
	// ErrMalformed means the token is empty or not a JWT at all.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalid covers bad signatures, expiry and foreign purposes.
	ErrInvalid = errors.New("invalid or expired token")
)

// CancelClaims is the payload of a guest cancellation link.
type CancelClaims struct {
	Purpose   string `json:"purpose"`
	BookingID string `json:"bookingId"`
	Category  string `json:"category"`
	Email     string `json:"email"`
	// RefFingerprint is the SHA-256 of the matched stored reference.
	RefFingerprint string `json:"ref_fp"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies magic-link tokens with an HMAC secret.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue signs claims for one booking.
func (i *Issuer) Issue(bookingID uuid.UUID, category, email, refFingerprint string) (string, error) {
	now := i.now()
	claims := CancelClaims{
		Purpose:        PurposeGuestCancel,
		BookingID:      bookingID.String(),
		Category:       category,
		Email:          email,
		RefFingerprint: refFingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   bookingID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign cancel token: %w", err)
	}
	return signed, nil
}

// Verify parses raw and checks signature, expiry and purpose.
func (i *Issuer) Verify(raw string) (*CancelClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Count(raw, ".") != 2 {
		return nil, ErrMalformed
	}

	claims := &CancelClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, ErrMalformed
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.Purpose != PurposeGuestCancel {
		return nil, fmt.Errorf("%w: unexpected purpose %q", ErrInvalid, claims.Purpose)
	}
	if _, err := uuid.Parse(claims.BookingID); err != nil || claims.Category == "" {
		return nil, fmt.Errorf("%w: incomplete claims", ErrInvalid)
	}
	return claims, nil
}
