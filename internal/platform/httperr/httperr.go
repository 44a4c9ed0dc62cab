// Package httperr defines the error taxonomy shared by the scheduling and
// pharmacy services and maps it onto HTTP responses.
package httperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Kind identifies the class of a service error.
type Kind string

const (
	KindBadRequest        Kind = "bad_request"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindUnprocessable     Kind = "unprocessable_entity"
	KindInvalidTransition Kind = "invalid_transition"
)

// Error is a service-level error carrying its taxonomy kind. Kinds map to
// stable HTTP statuses; InvalidTransition shares 409 with Conflict but keeps
// a distinct code so clients can tell a retryable slot/stock race from an
// illegal state change.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Status returns the HTTP status for the error's kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidTransition:
		return http.StatusConflict
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func BadRequest(msg string) *Error        { return &Error{Kind: KindBadRequest, Message: msg} }
func Unauthorized(msg string) *Error      { return &Error{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) *Error         { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error          { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error          { return &Error{Kind: KindConflict, Message: msg} }
func Unprocessable(msg string) *Error     { return &Error{Kind: KindUnprocessable, Message: msg} }
func InvalidTransition(msg string) *Error { return &Error{Kind: KindInvalidTransition, Message: msg} }

// IsKind reports whether err is a taxonomy error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

type response struct {
	Error string `json:"error"`
	Code  Kind   `json:"code,omitempty"`
}

// Handler returns an echo HTTPErrorHandler that renders taxonomy errors with
// their mapped status and logs everything else as a 500.
func Handler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var svcErr *Error
		if errors.As(err, &svcErr) {
			_ = c.JSON(svcErr.Status(), response{Error: svcErr.Message, Code: svcErr.Kind})
			return
		}

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			msg, ok := httpErr.Message.(string)
			if !ok {
				msg = http.StatusText(httpErr.Code)
			}
			_ = c.JSON(httpErr.Code, response{Error: msg})
			return
		}

		logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
		_ = c.JSON(http.StatusInternalServerError, response{Error: "internal server error"})
	}
}
