package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{InvalidArgument("bad rating"), http.StatusBadRequest},
		{Unauthorized("no token"), http.StatusUnauthorized},
		{Forbidden("not yours"), http.StatusForbidden},
		{NotFound("user not found"), http.StatusNotFound},
		{Conflict("email taken", nil), http.StatusConflict},
		{RateLimitExceeded("slow down"), http.StatusTooManyRequests},
		{Upstream("generator failed", fmt.Errorf("boom")), http.StatusInternalServerError},
		{ConfigMissing("Recommendations"), http.StatusInternalServerError},
		{Timeout("too slow", nil), http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestConfigMissingMessage(t *testing.T) {
	err := ConfigMissing("Game recommendations")
	assert.Equal(t, "Game recommendations is currently unavailable", err.Message)
}

func TestFrom(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, From(nil))
	})

	t.Run("wrapped coded error", func(t *testing.T) {
		err := fmt.Errorf("rate: %w", InvalidArgument("rating must be a half-star step"))
		got := From(err)
		assert.Equal(t, ErrCodeInvalidArgument, got.Code)
		assert.True(t, IsCode(err, ErrCodeInvalidArgument))
	})

	t.Run("deadline", func(t *testing.T) {
		got := From(fmt.Errorf("store: %w", context.DeadlineExceeded))
		assert.Equal(t, ErrCodeTimeout, got.Code)
	})

	t.Run("unknown", func(t *testing.T) {
		cause := fmt.Errorf("disk on fire")
		got := From(cause)
		assert.Equal(t, ErrCodeInternal, got.Code)
		assert.ErrorIs(t, got, cause)
		assert.NotContains(t, got.Message, "disk")
	})
}

func TestWithContext(t *testing.T) {
	err := NotFound("game not found").WithContext("game_id", "42")
	assert.Equal(t, "42", err.Context["game_id"])
	assert.Equal(t, ErrCodeNotFound, GetCodeFromError(err, ErrCodeInternal))
	assert.Equal(t, ErrCodeInternal, GetCodeFromError(fmt.Errorf("plain"), ErrCodeInternal))
}
