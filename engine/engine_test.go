package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/gfxbridge/engine/config"
	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/soft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = core.ConfigureLogger(core.LoggerOptions{Level: "error", Output: io.Discard})
}

func quietConfig() *config.Config {
	cfg := config.Default()
	cfg.Log.Level = "error"
	return cfg
}

func TestLifecycleOnSoftBackend(t *testing.T) {
	var order []string
	g := &Game{
		ApplicationConfig: &ApplicationConfig{Name: "lifecycle"},
		FnInitialize: func(e *Engine) error {
			order = append(order, "init")
			assert.Equal(t, EngineStageInitialized, e.Stage())
			return nil
		},
		FnRun: func(ctx context.Context, e *Engine) error {
			order = append(order, "run")
			assert.Equal(t, EngineStageRunning, e.Stage())
			return e.Program().Launch("noop", func() error { return nil })
		},
		FnShutdown: func() error {
			order = append(order, "shutdown")
			return nil
		},
	}
	e, err := New(g, quietConfig(), "")
	require.NoError(t, err)
	assert.Equal(t, EngineStageUninitialized, e.Stage())

	require.NoError(t, e.Initialize())
	dev, ok := e.Device().(*soft.Device)
	require.True(t, ok)
	assert.Equal(t, "lifecycle", dev.Label())

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 1, e.Program().Launched())

	require.NoError(t, e.Shutdown())
	require.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageShutdown, e.Stage())
	assert.Equal(t, []string{"init", "run", "shutdown"}, order)
	assert.Nil(t, e.Device())
}

func TestRunBeforeInitialize(t *testing.T) {
	e, err := New(&Game{}, quietConfig(), "")
	require.NoError(t, err)
	assert.ErrorIs(t, e.Run(context.Background()), ErrNotInitialized)
}

func TestRunRefusesAfterFailedGameInitialize(t *testing.T) {
	boom := errors.New("no input")
	ran := false
	g := &Game{
		FnInitialize: func(e *Engine) error { return boom },
		FnRun: func(ctx context.Context, e *Engine) error {
			ran = true
			return nil
		},
	}
	e, err := New(g, quietConfig(), "")
	require.NoError(t, err)
	assert.ErrorIs(t, e.Initialize(), boom)

	assert.ErrorIs(t, e.Run(context.Background()), ErrNotInitialized)
	assert.False(t, ran)
	assert.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageShutdown, e.Stage())
}

func TestRunReportsKernelErrors(t *testing.T) {
	boom := errors.New("boom")
	g := &Game{
		FnRun: func(ctx context.Context, e *Engine) error {
			return e.Program().Launch("fails", func() error { return boom })
		},
	}
	e, err := New(g, quietConfig(), "")
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	defer e.Shutdown()

	assert.ErrorIs(t, e.Run(context.Background()), boom)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := quietConfig()
	cfg.Device.Backend = "metal"
	_, err := New(&Game{}, cfg, "")
	assert.ErrorIs(t, err, config.ErrUnknownBackend)
}

func TestWatcherAppliesLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"error\"\n"), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	e, err := New(&Game{}, cfg, path)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	defer e.Shutdown()
	require.NotNil(t, e.watcher)

	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o644))
	assert.Eventually(t, func() bool {
		return core.GetLogLevel() == log.DebugLevel
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, core.SetLogLevel("error"))
}
