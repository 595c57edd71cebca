package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 2, 50*time.Millisecond)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "limits are per client")

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("10.0.0.1"), "a new window starts fresh")
}

func TestOriginOf(t *testing.T) {
	assert.Equal(t, "https://shop.test", originOf("https://Shop.test/cart?x=1"))
	assert.Equal(t, "http://localhost:5173", originOf("http://localhost:5173"))
	assert.Equal(t, "", originOf("not a url"))
}

func TestRecoverMiddleware(t *testing.T) {
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	tests := []struct {
		name        string
		development bool
		wantDetails bool
	}{
		{name: "development", development: true, wantDetails: true},
		{name: "production", development: false, wantDetails: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RecoverMiddleware(tt.development)(boom).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantDetails, len(env.Errors) > 0)
		})
	}
}

func TestLoggingMiddlewareKeepsFirstStatus(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
