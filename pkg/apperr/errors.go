package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error codes.
const (
	CodeInternal           = "internal_error"
	CodeConfiguration      = "configuration_error"
	CodeValidation         = "validation_error"
	CodeAuthentication     = "authentication_error"
	CodeAuthorization      = "authorization_error"
	CodeNotFound           = "not_found"
	CodeRateLimit          = "rate_limit_exceeded"
	CodeTimeout            = "timeout_error"
	CodeNetwork            = "network_error"
	CodeServiceUnavailable = "service_unavailable"
)

// Sentinels for errors.Is matching. Only the code is compared.
var (
	ErrInternal           = &Error{Code: CodeInternal}
	ErrConfiguration      = &Error{Code: CodeConfiguration}
	ErrValidation         = &Error{Code: CodeValidation}
	ErrAuthentication     = &Error{Code: CodeAuthentication}
	ErrAuthorization      = &Error{Code: CodeAuthorization}
	ErrNotFound           = &Error{Code: CodeNotFound}
	ErrRateLimit          = &Error{Code: CodeRateLimit}
	ErrTimeout            = &Error{Code: CodeTimeout}
	ErrNetwork            = &Error{Code: CodeNetwork}
	ErrServiceUnavailable = &Error{Code: CodeServiceUnavailable}
)

var kinds = map[string]string{
	CodeInternal:           "BaseError",
	CodeConfiguration:      "ConfigurationError",
	CodeValidation:         "ValidationError",
	CodeAuthentication:     "AuthenticationError",
	CodeAuthorization:      "AuthorizationError",
	CodeNotFound:           "NotFoundError",
	CodeRateLimit:          "RateLimitError",
	CodeTimeout:            "TimeoutError",
	CodeNetwork:            "NetworkError",
	CodeServiceUnavailable: "ServiceUnavailableError",
}

var statuses = map[string]int{
	CodeInternal:           http.StatusInternalServerError,
	CodeConfiguration:      http.StatusInternalServerError,
	CodeValidation:         http.StatusBadRequest,
	CodeAuthentication:     http.StatusUnauthorized,
	CodeAuthorization:      http.StatusForbidden,
	CodeNotFound:           http.StatusNotFound,
	CodeRateLimit:          http.StatusTooManyRequests,
	CodeTimeout:            http.StatusGatewayTimeout,
	CodeNetwork:            http.StatusBadGateway,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
}

// Error is an application error with a stable code.
type Error struct {
	Code    string
	Message string
	Details map[string]any
	cause   error
}

// Option configures an Error at construction.
type Option func(*Error)

// WithCause records the underlying error.
func WithCause(err error) Option {
	return func(e *Error) {
		e.cause = err
	}
}

// WithDetails merges details into the error.
func WithDetails(details map[string]any) Option {
	return func(e *Error) {
		for k, v := range details {
			e.Details[k] = v
		}
	}
}

// WithDetail sets a single detail.
func WithDetail(key string, value any) Option {
	return func(e *Error) {
		e.Details[key] = value
	}
}

// New creates an error. Empty message and code fall back to the generic ones.
func New(message, code string, opts ...Option) *Error {
	if message == "" {
		message = "An error occurred"
	}
	if code == "" {
		code = CodeInternal
	}
	e := &Error{Code: code, Message: message, Details: map[string]any{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Kind is the taxonomy name of the error, e.g. "ValidationError".
func (e *Error) Kind() string {
	if k, ok := kinds[e.Code]; ok {
		return k
	}
	return kinds[CodeInternal]
}

// ToMap converts the error to its wire representation.
func (e *Error) ToMap() map[string]any {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	return map[string]any{
		"error": map[string]any{
			"code":    e.Code,
			"message": e.Message,
			"details": details,
			"type":    e.Kind(),
		},
	}
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}

// Configuration reports invalid or missing configuration.
func Configuration(message string, opts ...Option) *Error {
	return New(orDefault(message, "Configuration error"), CodeConfiguration, opts...)
}

// Validation reports invalid input data.
func Validation(message string, opts ...Option) *Error {
	return New(orDefault(message, "Validation error"), CodeValidation, opts...)
}

// Authentication reports failed authentication.
func Authentication(message string, opts ...Option) *Error {
	return New(orDefault(message, "Authentication failed"), CodeAuthentication, opts...)
}

// Authorization reports a caller that is not allowed to act.
func Authorization(message string, opts ...Option) *Error {
	return New(orDefault(message, "Not authorized"), CodeAuthorization, opts...)
}

// NotFound reports a missing resource, e.g. NotFound("entry") -> "entry not found".
func NotFound(resource string, opts ...Option) *Error {
	return New(fmt.Sprintf("%s not found", orDefault(resource, "resource")), CodeNotFound, opts...)
}

// RateLimit reports an exceeded limit. Zero retryAfter or limit are omitted from details.
func RateLimit(message string, retryAfter time.Duration, limit int, opts ...Option) *Error {
	e := New(orDefault(message, "Rate limit exceeded"), CodeRateLimit, opts...)
	if retryAfter > 0 {
		e.Details["retry_after"] = retryAfter.Seconds()
	}
	if limit > 0 {
		e.Details["limit"] = limit
	}
	return e
}

// Timeout reports an operation that ran out of time.
func Timeout(message string, opts ...Option) *Error {
	return New(orDefault(message, "Operation timed out"), CodeTimeout, opts...)
}

// Network reports a transport level failure.
func Network(message string, opts ...Option) *Error {
	return New(orDefault(message, "Network error occurred"), CodeNetwork, opts...)
}

// ServiceUnavailable reports a dependency that cannot be reached.
func ServiceUnavailable(service string, opts ...Option) *Error {
	return New(fmt.Sprintf("%s is currently unavailable", orDefault(service, "service")), CodeServiceUnavailable, opts...)
}

// From wraps an existing error. The message defaults to err's text and the code to
// err's code when it already is an *Error. Details of err are carried over.
func From(err error, message, code string, details map[string]any) *Error {
	merged := map[string]any{}
	var src *Error
	if errors.As(err, &src) {
		for k, v := range src.Details {
			merged[k] = v
		}
		if code == "" {
			code = src.Code
		}
	}
	for k, v := range details {
		merged[k] = v
	}
	if message == "" && err != nil {
		message = err.Error()
	}
	return New(message, code, WithDetails(merged), WithCause(err))
}

// HTTPStatus maps an error to an HTTP status code. Non-taxonomy errors map to 500.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		if s, ok := statuses[e.Code]; ok {
			return s
		}
	}
	return http.StatusInternalServerError
}
