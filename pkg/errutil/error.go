package errutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// BaseError is a domain error that knows how it should be shown to a caller.
// Message is safe to display; Err is the wrapped cause and is never rendered.
type BaseError struct {
	Code    CoreStatus `json:"code"`
	Message string     `json:"message"`
	Details []Detail   `json:"details,omitempty"`
	Err     error      `json:"-"`
}

// Response is the JSON envelope of an API error.
type Response struct {
	Error BaseError `json:"error"`
}

func (e BaseError) Status() CoreStatus {
	return e.Code
}

func (e BaseError) JSON() Response {
	return Response{Error: e}
}

func (e BaseError) Unwrap() error {
	return e.Err
}

func (e BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func newError(code CoreStatus, msg string, err error, details ...Detail) error {
	return BaseError{Code: code, Message: msg, Err: err, Details: details}
}

func NotFound(msg string, err error) error {
	return newError(StatusNotFound, msg, err)
}

func Conflict(msg string, err error) error {
	return newError(StatusConflict, msg, err)
}

func BadRequest(msg string, err error) error {
	return newError(StatusBadRequest, msg, err)
}

func Unauthorized(msg string, err error) error {
	return newError(StatusUnauthorized, msg, err)
}

func BadGateway(msg string, err error) error {
	return newError(StatusBadGateway, msg, err)
}

func Unavailable(msg string, err error) error {
	return newError(StatusServiceUnavailable, msg, err)
}

// Invalid turns a validator error into a ValidationFailed error with one
// detail per failing field. Other errors become a plain BadRequest.
func Invalid(msg string, err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return BadRequest(msg, err)
	}
	details := make([]Detail, 0, len(ve))
	for _, fe := range ve {
		details = append(details, Detail{Field: strings.ToLower(fe.Field()), Message: describe(fe)})
	}
	return newError(StatusValidationFailed, msg, err, details...)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

// HasStatus reports whether err carries the given CoreStatus anywhere in its chain.
func HasStatus(err error, code CoreStatus) bool {
	var be BaseError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}
