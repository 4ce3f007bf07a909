package jsonapi

import (
	"fmt"
	"net/http"
	"strconv"
)

// Meta keys the response writer understands.
const (
	MetaRetryAfter = "retry_after_seconds"
	MetaRetryable  = "retryable"
)

// codes maps each status this API answers with to its error code.
// Titles come from net/http.
var codes = map[int]string{
	http.StatusBadRequest:          "bad_request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not_found",
	http.StatusMethodNotAllowed:    "method_not_allowed",
	http.StatusConflict:            "conflict",
	http.StatusUnprocessableEntity: "validation_error",
	http.StatusTooManyRequests:     "rate_limit_exceeded",
	http.StatusInternalServerError: "internal_error",
	http.StatusServiceUnavailable:  "service_unavailable",
}

// ErrorBuilder assembles an Error.
type ErrorBuilder struct {
	err Error
}

// NewError starts an error with an explicit status, code and title.
func NewError(status int, code, title string) *ErrorBuilder {
	return &ErrorBuilder{err: Error{Status: strconv.Itoa(status), Code: code, Title: title}}
}

// Status starts an error whose code and title follow from status.
func Status(status int) *ErrorBuilder {
	code, ok := codes[status]
	if !ok {
		code = "error"
	}
	return NewError(status, code, http.StatusText(status))
}

func (b *ErrorBuilder) Detail(detail string) *ErrorBuilder {
	b.err.Detail = detail
	return b
}

func (b *ErrorBuilder) Detailf(format string, args ...any) *ErrorBuilder {
	b.err.Detail = fmt.Sprintf(format, args...)
	return b
}

// DetailOr sets detail, or fallback when detail is empty.
func (b *ErrorBuilder) DetailOr(detail, fallback string) *ErrorBuilder {
	if detail == "" {
		detail = fallback
	}
	return b.Detail(detail)
}

func (b *ErrorBuilder) ID(id string) *ErrorBuilder {
	b.err.ID = id
	return b
}

// Pointer names the document member at fault, e.g. "/data/attributes/filename".
func (b *ErrorBuilder) Pointer(pointer string) *ErrorBuilder {
	b.source().Pointer = pointer
	return b
}

// Parameter names the query parameter at fault.
func (b *ErrorBuilder) Parameter(param string) *ErrorBuilder {
	b.source().Parameter = param
	return b
}

// Header names the request header at fault.
func (b *ErrorBuilder) Header(header string) *ErrorBuilder {
	b.source().Header = header
	return b
}

func (b *ErrorBuilder) source() *ErrorSource {
	if b.err.Source == nil {
		b.err.Source = &ErrorSource{}
	}
	return b.err.Source
}

func (b *ErrorBuilder) Meta(key string, value any) *ErrorBuilder {
	if b.err.Meta == nil {
		b.err.Meta = make(Meta)
	}
	b.err.Meta[key] = value
	return b
}

func (b *ErrorBuilder) Build() Error {
	return b.err
}

// StatusCode returns the HTTP status as an int, or 0 when unset.
func (e Error) StatusCode() int {
	code, _ := strconv.Atoi(e.Status)
	return code
}

// RetryAfter returns the retry hint carried in meta, if any.
func (e Error) RetryAfter() (int, bool) {
	secs, ok := e.Meta[MetaRetryAfter].(int)
	return secs, ok && secs > 0
}

func ErrBadRequest(detail string) Error {
	return Status(http.StatusBadRequest).Detail(detail).Build()
}

func ErrUnauthorized(detail string) Error {
	return Status(http.StatusUnauthorized).DetailOr(detail, "Admin token required").Build()
}

func ErrForbidden(detail string) Error {
	return Status(http.StatusForbidden).DetailOr(detail, "Access denied").Build()
}

func ErrNotFound(detail string) Error {
	return Status(http.StatusNotFound).DetailOr(detail, "Resource not found").Build()
}

// ErrNotFoundWithID reports a missing resource of a given type.
func ErrNotFoundWithID(resourceType, id string) Error {
	return Status(http.StatusNotFound).Detailf("No %s with id %q", resourceType, id).Build()
}

func ErrMethodNotAllowed(method string) Error {
	return Status(http.StatusMethodNotAllowed).Detailf("%s is not supported here", method).Build()
}

func ErrConflict(detail string) Error {
	return Status(http.StatusConflict).Detail(detail).Build()
}

// ErrValidation points at the offending attribute of the request resource.
func ErrValidation(field, message string) Error {
	return Status(http.StatusUnprocessableEntity).
		Detail(message).
		Pointer("/data/attributes/" + field).
		Build()
}

func ErrInvalidParameter(param, reason string) Error {
	return NewError(http.StatusBadRequest, "invalid_parameter", "Invalid Parameter").
		Detailf("%s: %s", param, reason).
		Parameter(param).
		Build()
}

// ErrRateLimited is returned when a plan's hourly ceiling is reached.
// WriteError turns the hint into a Retry-After header.
func ErrRateLimited(retryAfterSecs int) Error {
	return Status(http.StatusTooManyRequests).
		Detail("Hourly operation ceiling for this plan reached").
		Meta(MetaRetryAfter, retryAfterSecs).
		Build()
}

func ErrInternal(detail string) Error {
	return Status(http.StatusInternalServerError).DetailOr(detail, "An internal error occurred").Build()
}

// ErrServiceUnavailable marks a transient failure the client should retry.
func ErrServiceUnavailable(detail string) Error {
	return Status(http.StatusServiceUnavailable).
		DetailOr(detail, "Service temporarily unavailable").
		Meta(MetaRetryable, true).
		Meta(MetaRetryAfter, 1).
		Build()
}
