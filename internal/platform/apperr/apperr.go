// Package apperr defines the error kinds shared by the domain services and
// their translation into HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Kind is a machine-checkable error category.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindForbidden          Kind = "forbidden"
	KindInvalidState       Kind = "invalid_state"
	KindValidation         Kind = "validation"
	KindDoctorUnavailable  Kind = "doctor_unavailable"
	KindSchedulingConflict Kind = "scheduling_conflict"
	KindUnauthenticated    Kind = "unauthenticated"
	KindConflict           Kind = "conflict"
	KindInternal           Kind = "internal"
)

// Error carries a Kind alongside a human readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound)
// works for every not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrInvalidState       = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrDoctorUnavailable  = &Error{Kind: KindDoctorUnavailable, Message: "doctor is not available"}
	ErrSchedulingConflict = &Error{Kind: KindSchedulingConflict, Message: "doctor has a conflicting appointment at this time"}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "already exists"}
)

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error { return newf(KindNotFound, format, args...) }
func Forbidden(format string, args ...interface{}) error { return newf(KindForbidden, format, args...) }
func InvalidState(format string, args ...interface{}) error {
	return newf(KindInvalidState, format, args...)
}
func Validation(format string, args ...interface{}) error {
	return newf(KindValidation, format, args...)
}
func Unauthenticated(format string, args ...interface{}) error {
	return newf(KindUnauthenticated, format, args...)
}
func Conflict(format string, args ...interface{}) error { return newf(KindConflict, format, args...) }
func DoctorUnavailable(format string, args ...interface{}) error {
	return newf(KindDoctorUnavailable, format, args...)
}
func SchedulingConflict(format string, args ...interface{}) error {
	return newf(KindSchedulingConflict, format, args...)
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the status code the API returns for it.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidState, KindSchedulingConflict, KindConflict:
		return http.StatusConflict
	case KindValidation, KindDoctorUnavailable:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Response is the JSON body written for every failed request.
type Response struct {
	Error string `json:"error"`
	Kind  Kind   `json:"kind"`
}

// EchoErrorHandler renders domain errors and echo.HTTPErrors in one shape.
// Internal errors are logged and hidden from the client.
func EchoErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := Response{Error: "internal server error", Kind: KindInternal}

		var he *echo.HTTPError
		var ae *Error
		switch {
		case errors.As(err, &ae):
			status = HTTPStatus(ae)
			body = Response{Error: ae.Error(), Kind: ae.Kind}
			if status == http.StatusInternalServerError {
				body.Error = "internal server error"
			}
		case errors.As(err, &he):
			status = he.Code
			body = Response{Error: fmt.Sprintf("%v", he.Message), Kind: kindForStatus(he.Code)}
		}

		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func kindForStatus(code int) Kind {
	switch code {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusUnauthorized:
		return KindUnauthenticated
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return KindValidation
	case http.StatusConflict:
		return KindConflict
	default:
		return KindInternal
	}
}
