package cli

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/inquiry/internal/config"
	"github.com/aretw0/inquiry/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStack_ServesAPIAndMetrics(t *testing.T) {
	cfg := config.Default()
	cfg.Server.MetricsAddr = ""

	services, err := NewServices(cfg, logging.NewNop())
	require.NoError(t, err)
	defer services.Close()

	stack := NewStack(cfg, services, logging.NewNop())
	ts := httptest.NewServer(stack.Server.Handler())
	defer ts.Close()
	defer stack.Close(context.Background())

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/inquiries/pulse/graph", strings.NewReader(branchingDoc))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/inquiries/pulse/sessions", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "inquiry_sessions_completed_total")
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = freeAddr(t)
	cfg.Server.MetricsAddr = freeAddr(t)
	cfg.Server.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg, logging.NewNop()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Server.MetricsAddr + "/metrics")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := config.Default()
	cfg.Server.Addr = ln.Addr().String()
	cfg.Server.MetricsAddr = ""

	err = Serve(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "listen")
}
