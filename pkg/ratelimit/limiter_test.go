package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photosync/pkg/config"
)

func TestNewBurst(t *testing.T) {
	l := New(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(), "token %d", i+1)
	}
	assert.False(t, l.Allow())
}

func TestNewUnlimited(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 1000; i++ {
		require.True(t, l.Allow())
	}
}

func TestFromConfig(t *testing.T) {
	l := FromConfig(config.RateLimitConfig{RequestsPerSecond: 5, BurstSize: 2})
	assert.Equal(t, 2, l.Burst())
	assert.InDelta(t, 5.0, float64(l.Limit()), 0.001)
}

func TestTransportWaits(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(New(1000, 1), nil)}
	for i := 0; i < 3; i++ {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestTransportCancelledWhileWaiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	l := New(0.001, 1)
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	client := &http.Client{Transport: NewTransport(l, nil)}
	_, err = client.Do(req)
	assert.Error(t, err)
}
