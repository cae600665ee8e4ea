package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		err          *AppError
		wantCategory ErrorCategory
		wantStatus   int
		wantCode     string
	}{
		{
			name:         "validation",
			err:          NewValidationError("bad signal bundle", "signals"),
			wantCategory: CategoryValidation,
			wantStatus:   http.StatusBadRequest,
			wantCode:     "VALIDATION_ERROR",
		},
		{
			name:         "storage",
			err:          NewStorageError("evidence write failed", errors.New("disk full")),
			wantCategory: CategoryStorage,
			wantStatus:   http.StatusInternalServerError,
			wantCode:     "STORAGE_ERROR",
		},
		{
			name:         "auth",
			err:          NewAuthError("missing bearer token"),
			wantCategory: CategoryAuth,
			wantStatus:   http.StatusUnauthorized,
			wantCode:     "AUTH_ERROR",
		},
		{
			name:         "rate limit",
			err:          NewRateLimitError("60s"),
			wantCategory: CategoryRateLimit,
			wantStatus:   http.StatusTooManyRequests,
			wantCode:     "RATE_LIMIT_EXCEEDED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.wantCategory, tt.err.Category)
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus)
			assert.Contains(t, tt.err.Error(), tt.wantCode)
		})
	}
}

func TestStorageErrorUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("evidence write failed", cause)

	assert.Equal(t, cause, err.Unwrap())
}

func TestToAppError(t *testing.T) {
	appErr := NewStorageError("write failed", nil)
	assert.Same(t, appErr, ToAppError(appErr), "AppError passes through")

	converted := ToAppError(errors.New("connection refused to host"))
	assert.Equal(t, CategoryNetwork, converted.Category)

	converted = ToAppError(errors.New("deadline exceeded"))
	assert.Equal(t, CategoryTimeout, converted.Category)

	converted = ToAppError(errors.New("something odd"))
	assert.Equal(t, CategoryInternal, converted.Category)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(NewStorageError("write failed", nil)))
	assert.True(t, IsRetryableError(NewNetworkError("redis unreachable", nil)))
	assert.False(t, IsRetryableError(NewValidationError("bad input")))
	assert.False(t, IsRetryableError(NewAuthError("no token")))
}

func TestGetRetryDelayGrows(t *testing.T) {
	err := NewNetworkError("redis unreachable", nil)

	first := GetRetryDelay(err, 1)
	second := GetRetryDelay(err, 3)
	assert.Greater(t, second, first)
}
