package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgemedia/mediajobs/internal/config"
	"github.com/forgemedia/mediajobs/internal/logging"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.ScratchRoot = t.TempDir()
	cfg.Cache.Root = t.TempDir()
	cfg.Server.Port = 0 // let the OS pick a free port
	return cfg
}

func TestNewWiresEveryCollaboratorWithoutError(t *testing.T) {
	cfg := newTestConfig(t)
	log := logging.New(logging.DefaultConfig())

	srv, err := New(cfg, log)
	require.NoError(t, err)
	require.NotNil(t, srv)
	assert.NotNil(t, srv.registry)
	assert.NotNil(t, srv.samplerS)
	assert.NotNil(t, srv.admission)
	assert.NotNil(t, srv.runnerR)
	assert.NotNil(t, srv.cacheC)
	assert.NotNil(t, srv.janitorJ)
	assert.NotNil(t, srv.pool)
	assert.NotNil(t, srv.httpServer)
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 18765 // fixed, unlikely-used test port
	log := logging.New(logging.DefaultConfig())

	srv, err := New(cfg, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	resp, err := http.Get("http://127.0.0.1:18765/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}
