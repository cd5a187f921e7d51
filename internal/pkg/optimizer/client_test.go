package optimizer

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

func TestOptimizePostsJobToEngine(t *testing.T) {
	var got optimizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/optimize", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: &http.Client{Timeout: 5 * time.Second}}
	err := c.Optimize(context.Background(), "opt-uuid", 7)
	require.NoError(t, err)
	assert.Equal(t, "opt-uuid", got.OptimizationUUID)
	assert.Equal(t, uint(7), got.UserID)
}

func TestOptimizeReturnsErrorOnEngineFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: &http.Client{Timeout: 5 * time.Second}}
	err := c.Optimize(context.Background(), "opt-uuid", 7)
	assert.ErrorContains(t, err, "status=503")
}

func TestOptimizeRequiresConfiguredBaseURL(t *testing.T) {
	c := &Client{BaseURL: "", HTTPClient: http.DefaultClient}
	err := c.Optimize(context.Background(), "opt-uuid", 7)
	assert.Error(t, err)
}
