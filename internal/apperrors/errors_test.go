package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"direct", NewForbidden("nope"), Forbidden},
		{"wrapped", fmt.Errorf("outer: %w", New(QuotaExceeded, "slow down")), QuotaExceeded},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), Timeout},
		{"unknown", errors.New("boom"), ServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(BadRequest))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(Unauthorized))
	assert.Equal(t, http.StatusForbidden, StatusFor(Forbidden))
	assert.Equal(t, http.StatusTooManyRequests, StatusFor(RateLimitExceeded))
	assert.Equal(t, http.StatusTooManyRequests, StatusFor(QuotaExceeded))
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(Timeout))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(ServerError))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(ServerError, "could not save", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "SERVER_ERROR")
	assert.Contains(t, err.Error(), "db down")
}
