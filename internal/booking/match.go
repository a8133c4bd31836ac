package booking

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/ayo6706/booking-ledger/internal/models"
)

// minDigits is the shortest digits-only reference that is matched on its
// digits alone. Shorter runs would match unrelated bookings.
const minDigits = 6

// Match is the predicate used to find a booking from a guest-supplied
// payment reference and, when known, the buyer email.
type Match struct {
	Reference string
	Digits    string
	Email     string
}

// NewMatch normalizes the raw inputs into a match predicate.
func NewMatch(reference, email string) Match {
	reference = strings.TrimSpace(reference)
	m := Match{
		Reference: reference,
		Email:     NormalizeEmail(email),
	}
	if d := DigitsOnly(reference); len(d) >= minDigits {
		m.Digits = d
	}
	return m
}

// ReferenceMatches reports whether a stored reference value matches: exact,
// case-insensitive substring, or equal once both are reduced to digits.
func (m Match) ReferenceMatches(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" || m.Reference == "" {
		return false
	}
	if value == m.Reference {
		return true
	}
	if strings.Contains(strings.ToLower(value), strings.ToLower(m.Reference)) {
		return true
	}
	return m.Digits != "" && DigitsOnly(value) == m.Digits
}

// EmailMatches reports whether a stored email equals the match email,
// ignoring case. An empty match email matches everything.
func (m Match) EmailMatches(value string) bool {
	if m.Email == "" {
		return true
	}
	return NormalizeEmail(value) == m.Email
}

// Matches applies the predicate across every alias field of c.
func (m Match) Matches(c Category, b *models.Booking) bool {
	refOK := false
	for _, alias := range c.ReferenceAliases {
		if m.ReferenceMatches(b.References[alias]) {
			refOK = true
			break
		}
	}
	if !refOK {
		return false
	}
	if m.Email == "" {
		return true
	}
	for _, alias := range c.EmailAliases {
		if v := b.Emails[alias]; v != "" && m.EmailMatches(v) {
			return true
		}
	}
	return false
}

// MatchedReference returns the stored reference value that satisfied the
// predicate, so callers can bind to what the store holds rather than to
// what the guest typed.
func (m Match) MatchedReference(c Category, b *models.Booking) string {
	for _, alias := range c.ReferenceAliases {
		if v := b.References[alias]; m.ReferenceMatches(v) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DigitsOnly strips every non-digit rune.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Fingerprint is the stable digest of a reference carried in cancellation
// tokens in place of the reference itself.
func Fingerprint(reference string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(reference))))
	return hex.EncodeToString(sum[:])
}

// HasReferenceFingerprint reports whether any reference alias on b hashes to fp.
func (c Category) HasReferenceFingerprint(b *models.Booking, fp string) bool {
	for _, alias := range c.ReferenceAliases {
		v := strings.TrimSpace(b.References[alias])
		if v != "" && Fingerprint(v) == fp {
			return true
		}
	}
	return false
}

// HasEmail reports whether any email alias on b equals email.
func (c Category) HasEmail(b *models.Booking, email string) bool {
	email = NormalizeEmail(email)
	if email == "" {
		return false
	}
	for _, alias := range c.EmailAliases {
		if NormalizeEmail(b.Emails[alias]) == email {
			return true
		}
	}
	return false
}
