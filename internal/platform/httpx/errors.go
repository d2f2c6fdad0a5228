// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation failed")
	ErrBadRequest = errors.New("malformed request")
)

// FieldErrors is a validation failure keyed by request field.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+": "+v)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

// Unwrap lets errors.Is match ErrValidation.
func (f FieldErrors) Unwrap() error { return ErrValidation }

// StatusFor maps an error to its HTTP status and problem title.
func StatusFor(err error) (int, string) {
	if kind, ok := shared.KindOf(err); ok {
		switch kind {
		case shared.KindValidation:
			return http.StatusBadRequest, "Validation Failed"
		case shared.KindNotFound:
			return http.StatusNotFound, "Not Found"
		case shared.KindConflict:
			return http.StatusConflict, "Conflict"
		case shared.KindInvalidState:
			return http.StatusUnprocessableEntity, "Invalid State"
		case shared.KindInsufficientBalance:
			return http.StatusUnprocessableEntity, "Insufficient Balance"
		}
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "Validation Failed"
	}
	return http.StatusInternalServerError, "Internal Error"
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Internal errors never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = ""
	}
	var fields FieldErrors
	if errors.As(err, &fields) {
		writeProblem(w, ProblemDetail{Title: title, Status: status, Detail: ErrValidation.Error(), Errors: fields})
		return
	}
	Problem(w, status, title, detail)
}

var validate = validator.New()

// Validate runs struct tag validation and converts failures into FieldErrors.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	fields := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
