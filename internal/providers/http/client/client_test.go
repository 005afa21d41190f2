package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/shared/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryMax = 0
	cfg.Timeout = 2 * time.Second
	return cfg
}

func newClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestGetReturnsBodyAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AgentOS-Artwork/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	c := newClient(t, testConfig())
	resp, err := c.Get(context.Background(), srv.URL+"/icon.png", map[string]string{"Cache-Control": "no-cache"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.ContentType)
	assert.Equal(t, []byte("png-bytes"), resp.Body)
	assert.True(t, strings.HasSuffix(resp.URL, "/icon.png"))
}

func TestGetReportsErrorStatusVerbatim(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"not found", http.StatusNotFound},
		{"gone", http.StatusGone},
		{"service unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			resp, err := newClient(t, testConfig()).Get(context.Background(), srv.URL, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.RetryMax = 3
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 5 * time.Millisecond

	resp, err := newClient(t, cfg).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxBodyBytes = 16
	c := newClient(t, cfg)

	resp, err := c.Get(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint32(0), c.BreakerCounts().TotalFailures)
}

func TestAllowList(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedHosts = []string{"*.example.com", "static.cdn.net", "127.0.0.1"}
	c := newClient(t, cfg)

	tests := []struct {
		host    string
		allowed bool
	}{
		{"img.example.com", true},
		{"IMG.EXAMPLE.COM", true},
		{"example.com", false},
		{"static.cdn.net", true},
		{"evil.cdn.net", false},
		{"127.0.0.1", true},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.allowed, c.Allowed(tt.host))
		})
	}

	_, err := c.Get(context.Background(), "https://evil.cdn.net/a.png", nil)
	assert.ErrorIs(t, err, ErrHostNotAllowed)

	open := newClient(t, testConfig())
	assert.True(t, open.Allowed("anything.test"))
}

func TestRedirectToDisallowedHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://blocked.test/icon.png", http.StatusFound)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.AllowedHosts = []string{"127.0.0.1"}

	_, err := newClient(t, cfg).Get(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, ErrHostNotAllowed)
}

func TestInvalidRequests(t *testing.T) {
	c := newClient(t, testConfig())

	_, err := c.Get(context.Background(), "ftp://example.com/a.png", nil)
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = c.Get(context.Background(), "http:///nohost", nil)
	assert.Error(t, err)

	_, err = New(Config{AllowedHosts: []string{"[bad"}})
	assert.Error(t, err)
}

func TestTraceHeadersPropagate(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(tracing.TraceHeader)
	}))
	defer srv.Close()

	tracer := tracing.New("test", nil)
	defer tracer.Close()
	span, ctx := tracer.StartSpan(context.Background(), "fetch")

	_, err := newClient(t, testConfig()).Get(ctx, srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, span.TraceID.String(), got)
	_, err = id.ParsePrefixed(got, id.TracePrefix)
	assert.NoError(t, err)
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var transitions []resilience.State
	c, err := New(testConfig(), WithBreakerObserver(func(name string, from, to resilience.State) {
		transitions = append(transitions, to)
	}))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		resp, err := c.Get(context.Background(), srv.URL, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	}
	assert.Equal(t, resilience.StateOpen, c.BreakerState())
	assert.Equal(t, []resilience.State{resilience.StateOpen}, transitions)

	_, err = c.Get(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(10), calls.Load())
}

func TestCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newClient(t, testConfig())
	_, err := c.Get(ctx, srv.URL, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint32(0), c.BreakerCounts().TotalFailures)
}
