package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/alecgard/studyhub/internal/apperr"
	"github.com/go-playground/validator/v10"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// errorEnvelope is the standard error response shape.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v interface{}) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}

// writeServiceError maps a domain error to its HTTP status. Errors without a
// known kind are logged and reported as "failed to <action>".
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	msg, ok := apperr.Message(err)
	if !ok {
		msg = err.Error()
	}

	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", msg)
	case errors.Is(err, apperr.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", msg)
	case errors.Is(err, apperr.ErrInvalidState):
		writeError(w, http.StatusBadRequest, "invalid_state", msg)
	case errors.Is(err, apperr.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", msg)
	case errors.Is(err, apperr.ErrAuthFailed):
		writeError(w, http.StatusUnauthorized, "unauthorized", msg)
	case errors.Is(err, apperr.ErrUpstream):
		writeError(w, http.StatusBadGateway, "upstream_error", msg)
	default:
		slog.Error("request failed",
			"action", action,
			"error", err,
			"request_id", RequestIDFromContext(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to "+action)
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads the body into v and runs its validate tags. On
// failure it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := readJSON(r, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return false
	}
	return validRequest(w, v)
}

// validRequest runs v's validate tags, writing a 422 on failure.
func validRequest(w http.ResponseWriter, v interface{}) bool {
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	unit := " characters"
	if k := fe.Kind(); k == reflect.Slice || k == reflect.Map {
		unit = " items"
	}
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + unit
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + unit
	default:
		return fe.Field() + " is invalid"
	}
}
