// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	ledger "github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusOf maps an error to the HTTP status used for its problem response.
func StatusOf(err error) int {
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.As(err, &fieldErrs), errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	}
	switch ledger.KindOf(err) {
	case ledger.KindValidation:
		return http.StatusUnprocessableEntity
	case ledger.KindState, ledger.KindConflict:
		return http.StatusConflict
	case ledger.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Internal errors never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		Problem(w, status, "Internal Error", "")
		return
	}
	detail := err.Error()
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		detail = describeFields(fieldErrs)
	}
	write(w, "application/problem+json", status, ProblemDetail{
		Type:   problemType(err),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

func problemType(err error) string {
	kind := ledger.KindOf(err)
	if kind == ledger.KindInternal {
		return ""
	}
	return "urn:odyssey-gl:problem:" + string(kind)
}

func describeFields(errs validator.ValidationErrors) string {
	out := ""
	for i, fe := range errs {
		if i > 0 {
			out += "; "
		}
		out += fe.Field() + " failed " + fe.Tag()
	}
	return out
}
