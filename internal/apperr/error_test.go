package apperr

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus_KnownKinds(t *testing.T) {
	assert.Equal(t, 404, HTTPStatus(KindNotFound))
	assert.Equal(t, 429, HTTPStatus(KindTooManyRequests))
	assert.Equal(t, 500, HTTPStatus(KindInternal))
}

func TestHTTPStatus_UnknownKindDefaultsInternal(t *testing.T) {
	assert.Equal(t, 500, HTTPStatus(Kind("bogus")))
}

func TestError_ErrorString(t *testing.T) {
	base := errors.New("boom")
	wrapped := Wrap("Cache.Get", KindCacheBackendDown, "CACHE_BACKEND_DOWN", "redis unreachable", base)
	assert.Contains(t, wrapped.Error(), "Cache.Get")
	assert.Contains(t, wrapped.Error(), "redis unreachable")
	assert.Contains(t, wrapped.Error(), "boom")

	plain := New("Router.Match", KindNotFound, "ROUTE_NOT_FOUND", "no route matched")
	assert.Equal(t, "Router.Match: no route matched", plain.Error())
}

func TestError_Unwrap(t *testing.T) {
	base := errors.New("boom")
	wrapped := Wrap("op", KindInternal, "X", "y", base)
	assert.True(t, errors.Is(wrapped, base))
}

func TestError_WithRetryAfter(t *testing.T) {
	err := New("RateLimit.Allow", KindTooManyRequests, "RATE_LIMITED", "too many requests").WithRetryAfter(30)
	assert.Equal(t, 30, err.RetryAfterSeconds)
}

func TestToProblem_HidesDetailFor5xx(t *testing.T) {
	err := New("Cache.Get", KindCacheBackendDown, "CACHE_BACKEND_DOWN", "redis connection refused at 10.0.0.5:6379")
	p := ToProblem(err, "req-1", "trace-1")

	assert.Equal(t, 500, p.Status)
	assert.Equal(t, "An internal error occurred", p.Detail)
	assert.Equal(t, "CACHE_BACKEND_DOWN", p.Code)
	assert.Equal(t, "req-1", p.RequestID)
}

func TestToProblem_KeepsDetailFor4xx(t *testing.T) {
	err := New("Validator.Check", KindBadRequest, "INVALID_PAYLOAD", "field 'email' is required")
	p := ToProblem(err, "", "")

	assert.Equal(t, 400, p.Status)
	assert.Equal(t, "field 'email' is required", p.Detail)
}

func TestWriteError_WritesRetryAfterHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	err := New("RateLimit.Allow", KindTooManyRequests, "RATE_LIMITED", "slow down").WithRetryAfter(12)

	WriteError(rec, err, "req-2", "")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "12", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestWriteError_FallsBackForUnknownErrorType(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("unexpected"), "", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
