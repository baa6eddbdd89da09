package redis

import (
	"context"
	"testing"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, names ...string) (*Manager, map[string]*miniredis.Miniredis) {
	t.Helper()

	servers := make(map[string]*miniredis.Miniredis)
	configs := make(map[string]Config)
	for _, name := range names {
		mr := miniredis.RunT(t)
		servers[name] = mr
		configs[name] = Config{Addr: mr.Addr()}
	}

	m, err := NewManager(configs, logger.NewTestCtxLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, servers
}

func TestNewManager_NilLogger(t *testing.T) {
	m, err := NewManager(map[string]Config{}, nil)
	assert.Nil(t, m)
	assert.ErrorContains(t, err, "logger cannot be nil")
}

func TestNewManager_InvalidConfig(t *testing.T) {
	_, err := NewManager(map[string]Config{"main": {Mode: "bogus", Addr: "x:1"}}, logger.NewTestCtxLogger())
	assert.ErrorContains(t, err, "invalid config for main")
}

func TestNewManager_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewManager(map[string]Config{"main": {Addr: addr, MaxRetries: -1}}, logger.NewTestCtxLogger())
	assert.ErrorContains(t, err, "ping redis main")
}

func TestManager_Clients(t *testing.T) {
	m, servers := newTestManager(t, "main", "events")
	ctx := context.Background()

	assert.Equal(t, []string{"events", "main"}, m.Names())
	assert.Nil(t, m.Client("absent"))

	require.NoError(t, m.Client("main").Set(ctx, "k", "v", 0).Err())
	got, err := servers["main"].Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.False(t, servers["events"].Exists("k"))

	cfg, ok := m.Config("main")
	require.True(t, ok)
	assert.Equal(t, ModeStandalone, cfg.Mode)
}

func TestManager_PingAndHealth(t *testing.T) {
	m, servers := newTestManager(t, "main")

	assert.NoError(t, m.Ping(context.Background()))
	assert.NoError(t, m.HealthCheck())

	checker := NewHealthChecker(m)
	assert.Equal(t, "redis", checker.Name())
	assert.NoError(t, checker.Check(context.Background()))

	servers["main"].SetError("LOADING")
	assert.ErrorContains(t, checker.Check(context.Background()), "ping main")
}

func TestHealthChecker_NilManager(t *testing.T) {
	assert.Error(t, NewHealthChecker(nil).Check(context.Background()))
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, "main")

	require.NoError(t, m.Shutdown())
	require.NoError(t, m.Close())
	assert.Error(t, m.Client("main").Ping(context.Background()).Err(), "client closed")
}

func TestManager_NilIsInert(t *testing.T) {
	var m *Manager
	assert.NoError(t, m.Ping(context.Background()))
	assert.NoError(t, m.HealthCheck())
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Shutdown())
}
