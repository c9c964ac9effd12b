package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_Defaults(t *testing.T) {
	tests := []struct {
		err     *Error
		code    string
		message string
		kind    string
	}{
		{New("", ""), CodeInternal, "An error occurred", "BaseError"},
		{Configuration(""), CodeConfiguration, "Configuration error", "ConfigurationError"},
		{Validation(""), CodeValidation, "Validation error", "ValidationError"},
		{Authentication(""), CodeAuthentication, "Authentication failed", "AuthenticationError"},
		{Authorization(""), CodeAuthorization, "Not authorized", "AuthorizationError"},
		{NotFound("entry"), CodeNotFound, "entry not found", "NotFoundError"},
		{NotFound(""), CodeNotFound, "resource not found", "NotFoundError"},
		{Timeout(""), CodeTimeout, "Operation timed out", "TimeoutError"},
		{Network(""), CodeNetwork, "Network error occurred", "NetworkError"},
		{ServiceUnavailable("redis"), CodeServiceUnavailable, "redis is currently unavailable", "ServiceUnavailableError"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.message, tt.err.Error())
			assert.Equal(t, tt.kind, tt.err.Kind())
		})
	}
}

func TestRateLimit_Details(t *testing.T) {
	err := RateLimit("", 1500*time.Millisecond, 60)
	assert.Equal(t, "Rate limit exceeded", err.Message)
	assert.Equal(t, 1.5, err.Details["retry_after"])
	assert.Equal(t, 60, err.Details["limit"])

	bare := RateLimit("slow down", 0, 0)
	assert.NotContains(t, bare.Details, "retry_after")
	assert.NotContains(t, bare.Details, "limit")
}

func TestIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("loading: %w", NotFound("entry"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
}

func TestToMap(t *testing.T) {
	err := Validation("bad field", WithDetail("field", "name"))
	m := err.ToMap()
	inner := m["error"].(map[string]any)
	assert.Equal(t, CodeValidation, inner["code"])
	assert.Equal(t, "bad field", inner["message"])
	assert.Equal(t, "ValidationError", inner["type"])
	assert.Equal(t, map[string]any{"field": "name"}, inner["details"])

	b, jerr := json.Marshal(m)
	require.NoError(t, jerr)
	assert.Contains(t, string(b), `"code":"validation_error"`)
}

func TestFrom(t *testing.T) {
	base := Validation("bad", WithDetail("a", 1))
	wrapped := From(base, "", "", map[string]any{"b": 2})

	assert.Equal(t, CodeValidation, wrapped.Code)
	assert.Equal(t, "bad", wrapped.Message)
	assert.Equal(t, 1, wrapped.Details["a"])
	assert.Equal(t, 2, wrapped.Details["b"])
	assert.ErrorIs(t, wrapped, base)

	plain := From(errors.New("disk full"), "write failed", "", nil)
	assert.Equal(t, CodeInternal, plain.Code)
	assert.Equal(t, "write failed", plain.Message)
}

func TestHandle(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, Handle(nil, "", nil))
	})

	t.Run("passthrough", func(t *testing.T) {
		orig := NotFound("entry")
		assert.Same(t, orig, Handle(fmt.Errorf("wrap: %w", orig), "", nil))
	})

	t.Run("timeout", func(t *testing.T) {
		got := Handle(context.DeadlineExceeded, "", map[string]any{"op": "fetch"})
		assert.Equal(t, CodeTimeout, got.Code)
		assert.Equal(t, "fetch", got.Details["op"])
	})

	t.Run("network", func(t *testing.T) {
		_, err := os.Open("/definitely/not/here")
		got := Handle(err, "", nil)
		assert.Equal(t, CodeNetwork, got.Code)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := strconv.Atoi("abc")
		got := Handle(err, "", nil)
		assert.Equal(t, CodeValidation, got.Code)

		var v map[string]any
		jerr := json.Unmarshal([]byte("{"), &v)
		assert.Equal(t, CodeValidation, Handle(jerr, "", nil).Code)
	})

	t.Run("fallback", func(t *testing.T) {
		got := Handle(errors.New("weird"), "", map[string]any{"k": "v"})
		assert.Equal(t, CodeInternal, got.Code)
		assert.Equal(t, "weird", got.Message)
		assert.Equal(t, "*errors.errorString", got.Details["error_type"])
		assert.Equal(t, "v", got.Details["k"])
	})
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validation("")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("x: %w", NotFound("y"))))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(RateLimit("", 0, 0)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}
