/*
errors.go - Request validation and error responses

PURPOSE:
  Turns bad input and domain failures into the JSON error envelope.

STATUS MAPPING:
  - 400 validation:  malformed body, validator tag failure, record rules
  - 404 not_found:   unknown unit, record or session
  - 409 conflict:    natural key (id_ue, fecha_recepcion) already taken
  - 429 throttled:   see ratelimit.go
  - 500 store:       any other store failure (logged)

VALIDATION DETAILS:
  Validation failures list every offending field, using the JSON name the
  client sent:
    {"error": "...", "code": "validation",
     "details": [{"field": "numero_it", "reason": "required when estado is Emitido"}]}

SEE ALSO:
  - record/errors.go: Domain error taxonomy
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/ceplan/itpei/record"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeValidation = "validation"
	CodeNotFound   = "not_found"
	CodeConflict   = "conflict"
	CodeThrottled  = "throttled"
	CodeStore      = "store"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and runs the tag checks on it.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &record.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return checkStruct(dst)
}

func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(record.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, &record.ValidationError{Field: fe.Field(), Reason: reason(fe)})
	}
	return out
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a date in YYYY-MM-DD form"
	case "min":
		if fe.Kind() == reflect.Map {
			return "must not be empty"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}

// =============================================================================
// RESPONSES
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail maps a domain error onto a response. Unexpected failures are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	var (
		verrs record.ValidationErrors
		verr  *record.ValidationError
	)
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: CodeValidation, Details: fieldErrors(verrs)})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: CodeValidation, Details: fieldErrors(record.ValidationErrors{verr})})
	case record.IsConflict(err):
		writeError(w, http.StatusConflict, CodeConflict, message, err)
	case record.IsNotFound(err), errors.Is(err, ErrSessionNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, message, err)
	default:
		h.log().Error(message,
			"err", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, CodeStore, message, err)
	}
}

func fieldErrors(verrs record.ValidationErrors) []FieldErrorDTO {
	out := make([]FieldErrorDTO, len(verrs))
	for i, v := range verrs {
		out[i] = FieldErrorDTO{Field: v.Field, Reason: v.Reason}
	}
	return out
}
