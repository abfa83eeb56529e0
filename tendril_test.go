package tendril_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/pkg/dispatch"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(_ context.Context, inv *dispatch.Invocation) domain.Result {
	return domain.Success(map[string]any{"name": inv.Request.GetString("name")})
}

func TestNew_RequiresHandler(t *testing.T) {
	_, err := tendril.New(nil)
	assert.Error(t, err)
}

func TestFunction_Routes(t *testing.T) {
	fn, err := tendril.New(echo)
	require.NoError(t, err)

	srv := httptest.NewServer(fn.Handler())
	defer srv.Close()

	t.Run("Invoke", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(`{"name":"ada"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, map[string]any{"data": map[string]any{"name": "ada"}}, out)
	})

	t.Run("Ready", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/_/ready")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "ready", out["status"])
		assert.Contains(t, out, "num_connections")
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), `tendril_invocations_total{outcome="success"} 1`)
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestFunction_WithoutMetrics(t *testing.T) {
	fn, err := tendril.New(echo, tendril.WithoutMetrics())
	require.NoError(t, err)

	srv := httptest.NewServer(fn.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFunction_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := tendril.New(echo, tendril.WithRegistry(reg))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "tendril_open_connections")
}

func TestFunction_ServeListener(t *testing.T) {
	fn, err := tendril.New(echo, tendril.WithTimeouts(time.Second, time.Second))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fn.ServeListener(ctx, ln) }()

	url := "http://" + ln.Addr().String()

	client := &http.Client{Transport: &http.Transport{}}
	resp, err := client.Get(url + "/_/ready")
	require.NoError(t, err)
	var ready map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	resp.Body.Close()
	assert.EqualValues(t, 1, ready["num_connections"], "the checker's own keep-alive connection is open")

	client.CloseIdleConnections()
	assert.Eventually(t, func() bool { return fn.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = client.Get(url + "/_/ready")
	assert.Error(t, err, "listener is closed after shutdown")
}

func TestFunction_ServeBadAddr(t *testing.T) {
	fn, err := tendril.New(echo, tendril.WithAddr("256.0.0.1:bad"), tendril.WithoutMetrics())
	require.NoError(t, err)

	err = fn.Serve(context.Background())
	assert.Error(t, err)
}
