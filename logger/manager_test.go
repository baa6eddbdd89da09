package logger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fileOnlyConfig(dir string) ManagerConfig {
	return ManagerConfig{
		BaseLogDir:            dir,
		Level:                 "info",
		Encoding:              "json",
		EnableFile:            true,
		EnableLevelInFilename: true,
		MaxSize:               10,
	}
}

func TestManager_GetLoggerCaches(t *testing.T) {
	m := NewManager(fileOnlyConfig(t.TempDir()))
	defer m.CloseAll()

	a := m.GetLogger("limiter")
	b := m.GetLogger("limiter")
	c := m.GetLogger("redis")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestManager_GetLoggerConcurrent(t *testing.T) {
	m := NewManager(fileOnlyConfig(t.TempDir()))
	defer m.CloseAll()

	var wg sync.WaitGroup
	results := make([]*CtxZapLogger, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.GetLogger("limiter")
		}(i)
	}
	wg.Wait()

	for _, l := range results {
		assert.Same(t, results[0], l)
	}
}

func TestManager_WritesSplitFiles(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(fileOnlyConfig(dir))

	l := m.GetLogger("limiter")
	l.InfoCtx(context.Background(), "limiter created", zap.String("policy", "global"))
	l.ErrorCtx(context.Background(), "script failed")
	l.DebugCtx(context.Background(), "below level")
	require.NoError(t, m.Shutdown())

	info, err := os.ReadFile(filepath.Join(dir, "limiter", "limiter-info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "limiter created")
	assert.Contains(t, string(info), `"module":"limiter"`)
	assert.NotContains(t, string(info), "script failed")
	assert.NotContains(t, string(info), "below level")

	errs, err := os.ReadFile(filepath.Join(dir, "limiter", "limiter-error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errs), "script failed")
}

func TestManager_CloseAllResets(t *testing.T) {
	m := NewManager(fileOnlyConfig(t.TempDir()))
	first := m.GetLogger("limiter")
	m.CloseAll()

	assert.NotSame(t, first, m.GetLogger("limiter"))
	m.CloseAll()
}

func TestManager_ConfigDefaults(t *testing.T) {
	m := NewManager(ManagerConfig{})
	assert.Equal(t, "info", m.Config().Level)
	assert.Equal(t, "logs", m.Config().BaseLogDir)
}
