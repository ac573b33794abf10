// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-digest/internal/observability"
	"github.com/pdiddy/research-digest/pkg/types"
)

func TestClientGetSetsUserAgentAndHeaders(t *testing.T) {
	var gotUA, gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, "hello")
	}))
	defer ts.Close()

	c := NewClient(types.HTTPConfig{UserAgent: "digest-test/1.0"}, WithHTTPClient(ts.Client()))
	body, err := c.Get(context.Background(), ts.URL, http.Header{"Authorization": {"Bearer abc"}})
	require.NoError(t, err)

	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "digest-test/1.0", gotUA)
	assert.Equal(t, "Bearer abc", gotAuth)
}

func TestClientDefaults(t *testing.T) {
	c := NewClient(types.HTTPConfig{})
	assert.Equal(t, defaultUserAgent, c.UserAgent())
	assert.Equal(t, defaultTimeout, c.http.Timeout)
	assert.Nil(t, c.limiter("example.org"))
}

func TestClientStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewClient(types.HTTPConfig{}, WithHTTPClient(ts.Client()))
	_, err := c.Get(context.Background(), ts.URL, nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, http.MethodGet, se.Method)
}

func TestClientRateLimiterPerHost(t *testing.T) {
	c := NewClient(types.HTTPConfig{RateLimit: 2, RateBurst: 3})
	a := c.limiter("a.example")
	require.NotNil(t, a)
	assert.Same(t, a, c.limiter("a.example"))
	assert.NotSame(t, a, c.limiter("b.example"))
	assert.Equal(t, 3, a.Burst())
}

func TestClientRateLimitWaitHonorsContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewClient(types.HTTPConfig{RateLimit: 0.001, RateBurst: 1}, WithHTTPClient(ts.Client()))
	_, err := c.Get(context.Background(), ts.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, ts.URL, nil)
	assert.Error(t, err)
}

func TestClientRecordsMetrics(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	c := NewClient(types.HTTPConfig{}, WithHTTPClient(ts.Client()), WithMetrics(m))

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	_, err = c.Do(context.Background(), req)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(req.URL.Host, "404")))
}
