package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{http.StatusUnauthorized, ErrorTypeAuth},
		{http.StatusForbidden, ErrorTypeAuth},
		{http.StatusNotFound, ErrorTypeNotFound},
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusBadGateway, ErrorTypeServerError},
		{http.StatusTeapot, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus(tt.status, "boom")
			if assert.NotNil(t, err) {
				assert.Equal(t, tt.want, err.Type)
				assert.Equal(t, tt.status, err.Code)
			}
		})
	}

	assert.Nil(t, FromStatus(http.StatusOK, ""))
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("listing album: %w", New(ErrorTypeAuth, 401, "token revoked"))

	assert.True(t, IsType(err, ErrorTypeAuth))
	assert.False(t, IsType(err, ErrorTypeNetwork))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeAuth))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeParsing))
	assert.False(t, IsRetryable(ErrorTypeUnknown))
}
