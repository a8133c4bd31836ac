package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayo6706/booking-ledger/internal/api/problem"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

// Roles a bearer token may carry. Service tokens belong to the booking
// platform's backends that report completed bookings; they act for no
// ledger account.
const (
	RoleAdmin   = "admin"
	RoleService = "service"
	RoleUser    = "user"
)

const (
	principalContextKey contextKey = "principal"
	traceContextKey     contextKey = "trace_id"
)

var (
	jwtSecret   []byte
	jwtIssuer   string
	jwtAudience string
)

var errBadClaims = errors.New("invalid token claims")

// ledgerClaims is the token body. user_id predates the registered subject
// claim and is still what account holders' tokens carry; service tokens
// may set only sub.
type ledgerClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// principal validates the subject and role and reduces the claims to the
// caller they describe.
func (c *ledgerClaims) principal() (Principal, error) {
	subject := c.UserID
	if subject == "" {
		subject = c.Subject
	}
	if subject == "" || (c.Subject != "" && c.Subject != subject) {
		return Principal{}, errBadClaims
	}
	role := c.Role
	if role == "" {
		role = RoleUser
	}
	switch role {
	case RoleAdmin, RoleService, RoleUser:
	default:
		return Principal{}, errBadClaims
	}
	p := Principal{Subject: subject, Role: role}
	if role != RoleService {
		id, err := uuid.Parse(subject)
		if err != nil {
			return Principal{}, errBadClaims
		}
		p.AccountID = id
	}
	return p, nil
}

// Principal is the authenticated caller. AccountID is the ledger account
// the caller acts as and is zero for service callers.
type Principal struct {
	Subject   string
	Role      string
	AccountID uuid.UUID
}

func (p Principal) IsAdmin() bool   { return p.Role == RoleAdmin }
func (p Principal) IsService() bool { return p.Role == RoleService }

// CanRead reports whether p may see the balance and entries of accountID.
func (p Principal) CanRead(accountID uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	return !p.IsService() && p.AccountID != uuid.Nil && p.AccountID == accountID
}

// HasRole reports whether p holds any of roles.
func (p Principal) HasRole(roles ...string) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

func SetJWTSecret(secret string) {
	if secret == "" {
		return
	}
	jwtSecret = []byte(secret)
}

func SetJWTValidation(issuer, audience string) {
	jwtIssuer = strings.TrimSpace(issuer)
	jwtAudience = strings.TrimSpace(audience)
}

func parseToken(raw string) (Principal, error) {
	claims := &ledgerClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if jwtIssuer != "" {
		opts = append(opts, jwt.WithIssuer(jwtIssuer))
	}
	if jwtAudience != "" {
		opts = append(opts, jwt.WithAudience(jwtAudience))
	}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return jwtSecret, nil
	}, opts...)
	if err != nil {
		return Principal{}, err
	}
	if !token.Valid {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}
	return claims.principal()
}

// AuthMiddleware validates the bearer token and puts the caller's Principal
// in the request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/authorization-header-required"), http.StatusText(http.StatusUnauthorized), "Authorization header required")
			return
		}
		raw := strings.TrimPrefix(authHeader, "Bearer ")
		if raw == authHeader {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-format"), http.StatusText(http.StatusUnauthorized), "Invalid token format")
			return
		}
		if len(jwtSecret) == 0 {
			problem.Write(w, r, http.StatusInternalServerError, problem.Type("auth/misconfigured"), http.StatusText(http.StatusInternalServerError), "auth is not configured")
			return
		}

		p, err := parseToken(raw)
		switch {
		case errors.Is(err, errBadClaims):
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-claims"), http.StatusText(http.StatusUnauthorized), "Invalid token claims")
			return
		case err != nil:
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token"), http.StatusText(http.StatusUnauthorized), "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// RequireRole ensures the authenticated caller has one of the allowed roles.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || !p.HasRole(allowed...) {
				problem.Write(w, r, http.StatusForbidden, problem.Type("auth/insufficient-permissions"), http.StatusText(http.StatusForbidden), "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}

// SubjectFromContext returns the authenticated caller's subject, or "".
func SubjectFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.Subject
}
