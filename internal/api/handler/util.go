package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/ayo6706/booking-ledger/internal/api/middleware"
	"github.com/ayo6706/booking-ledger/internal/api/problem"
	"github.com/ayo6706/booking-ledger/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies; every payload here is a handful of fields.
const maxBodyBytes = 64 << 10

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// decodeJSON reads the body into dst and runs struct validation on it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		detail, params := validationDetail(err)
		problem.WriteInvalid(w, r, detail, params)
		return false
	}
	return true
}

func validationDetail(err error) (string, []problem.InvalidParam) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request", nil
	}
	parts := make([]string, 0, len(verrs))
	params := make([]problem.InvalidParam, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
		params = append(params, problem.InvalidParam{Name: fe.Field(), Reason: fe.Tag()})
	}
	return strings.Join(parts, "; "), params
}

// respondServiceError maps a classified service error to a problem response.
// Unclassified errors are logged and reported as 500 without detail.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var se *service.Error
	msg := "request failed"
	if errors.As(err, &se) && se.Msg != "" {
		msg = se.Msg
	}
	switch service.KindOf(err) {
	case service.KindValidation:
		RespondError(w, r, http.StatusBadRequest, "request/invalid", msg)
	case service.KindNotFound:
		RespondError(w, r, http.StatusNotFound, "resource/not-found", msg)
	case service.KindUnauthorized:
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-token", msg)
	case service.KindForbidden:
		RespondError(w, r, http.StatusForbidden, "auth/mismatch", msg)
	case service.KindTransient:
		zap.L().Warn(op+" upstream failure", zap.Error(err))
		RespondError(w, r, http.StatusBadGateway, "upstream/unavailable", msg)
	default:
		if status, pType, dbMsg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, dbMsg)
			return
		}
		zap.L().Error(op+" failed", zap.Error(err), zap.String("trace_id", middleware.TraceIDFromContext(r.Context())))
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
	}
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
