// Package engine wires configuration, the graphics device and the compute
// runtime together and drives an application through its lifecycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spaghettifunk/gfxbridge/engine/config"
	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/program"
	"github.com/spaghettifunk/gfxbridge/engine/renderer"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/soft"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	EngineStageShutdown
)

var ErrNotInitialized = errors.New("engine not initialized")

type Engine struct {
	mu           sync.Mutex
	currentStage Stage
	gameInstance *Game
	cfg          *config.Config
	configPath   string

	device  renderer.GraphicsDevice
	program *program.Program
	watcher *config.Watcher
	clock   *core.Clock
	// set when the game's initializer fails; Run refuses to start
	gameErr error

	watchDone chan struct{}
	watchWG   sync.WaitGroup
}

// New applies the logging config right away so that everything after it,
// device creation included, logs the configured way. configPath may be empty,
// in which case no watcher is started.
func New(g *Game, cfg *config.Config, configPath string) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := core.ConfigureLogger(core.LoggerOptions{
		Level:        cfg.Log.Level,
		Prefix:       cfg.Log.Prefix,
		ReportCaller: cfg.Log.ReportCaller,
	}); err != nil {
		return nil, err
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		cfg:          cfg,
		configPath:   configPath,
		clock:        core.NewClock(),
		watchDone:    make(chan struct{}),
	}, nil
}

func newDevice(cfg *config.Config, appName string) (renderer.GraphicsDevice, error) {
	switch cfg.Device.Backend {
	case config.BackendSoft:
		return soft.NewDevice(soft.Options{
			MaxMemory: cfg.Soft.MaxMemory,
			Label:     appName,
		}), nil
	case config.BackendVulkan:
		dev, err := vulkan.NewDevice(vulkan.Options{
			AppName:    appName,
			Validation: cfg.Device.Validation,
			Loader:     cfg.Device.Loader,
		})
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
	return nil, fmt.Errorf("%q: %w", cfg.Device.Backend, config.ErrUnknownBackend)
}

func (e *Engine) Initialize() error {
	e.mu.Lock()
	if e.currentStage != EngineStageUninitialized {
		e.mu.Unlock()
		return nil
	}
	e.currentStage = EngineStageInitializing
	err := e.initialize()
	if err != nil {
		e.currentStage = EngineStageUninitialized
	} else {
		e.currentStage = EngineStageInitialized
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}

	if e.gameInstance != nil && e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			e.mu.Lock()
			e.gameErr = err
			e.mu.Unlock()
			return err
		}
	}
	return nil
}

func (e *Engine) initialize() error {
	appName := e.cfg.Device.AppName
	if e.gameInstance != nil && e.gameInstance.ApplicationConfig != nil && e.gameInstance.ApplicationConfig.Name != "" {
		appName = e.gameInstance.ApplicationConfig.Name
	}

	device, err := newDevice(e.cfg, appName)
	if err != nil {
		return fmt.Errorf("device (%s): %w", e.cfg.Device.Backend, err)
	}
	e.device = device
	core.LogInfo("%s device ready", e.cfg.Device.Backend)

	prog, err := program.New(device, program.Options{
		ComputeWorkers: e.cfg.Runtime.ComputeWorkers,
		JobQueueSize:   e.cfg.Runtime.JobQueueSize,
	})
	if err != nil {
		_ = device.Destroy()
		e.device = nil
		return err
	}
	e.program = prog

	if e.configPath != "" {
		if _, err := os.Stat(e.configPath); err == nil {
			w, err := config.NewWatcher(e.configPath)
			if err != nil {
				core.LogWarn("config watcher disabled: %s", err)
			} else {
				e.watcher = w
				e.watchWG.Add(1)
				go e.watch()
			}
		}
	}

	return nil
}

// watch applies log settings from reloaded configs. Device and runtime
// settings only take effect on the next start.
func (e *Engine) watch() {
	defer e.watchWG.Done()
	for {
		select {
		case <-e.watchDone:
			return
		case cfg, ok := <-e.watcher.Updates():
			if !ok {
				return
			}
			if err := core.ConfigureLogger(core.LoggerOptions{
				Level:        cfg.Log.Level,
				Prefix:       cfg.Log.Prefix,
				ReportCaller: cfg.Log.ReportCaller,
			}); err != nil {
				core.LogWarn("config reload: %s", err)
				continue
			}
			core.LogInfo("config reloaded, log level %s", cfg.Log.Level)
		case err, ok := <-e.watcher.Errors():
			if !ok {
				return
			}
			core.LogWarn("config reload failed: %s", err)
		}
	}
}

func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.currentStage != EngineStageInitialized {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	if e.gameErr != nil {
		err := e.gameErr
		e.mu.Unlock()
		return fmt.Errorf("%w: game: %v", ErrNotInitialized, err)
	}
	e.currentStage = EngineStageRunning
	e.mu.Unlock()

	e.clock.Start()
	var err error
	if e.gameInstance != nil && e.gameInstance.FnRun != nil {
		err = e.gameInstance.FnRun(ctx, e)
	}
	if serr := e.program.Synchronize(); serr != nil && err == nil {
		err = serr
	}
	e.clock.Update()
	core.LogInfo("run finished in %.3fs", e.clock.Elapsed())

	e.mu.Lock()
	if e.currentStage == EngineStageRunning {
		e.currentStage = EngineStageInitialized
	}
	e.mu.Unlock()
	return err
}

// Shutdown tears everything down in the reverse order of Initialize. It is
// safe to call more than once.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentStage == EngineStageShutdown || e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var errs []error
	if e.gameInstance != nil && e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if e.watcher != nil {
		close(e.watchDone)
		errs = append(errs, e.watcher.Close())
		e.watchWG.Wait()
		e.watcher = nil
	}
	if e.program != nil {
		errs = append(errs, e.program.Destroy())
		e.program = nil
	}
	if e.device != nil {
		errs = append(errs, e.device.WaitIdle(), e.device.Destroy())
		e.device = nil
	}
	e.currentStage = EngineStageShutdown
	core.LogInfo("engine shut down")
	return errors.Join(errs...)
}

func (e *Engine) Stage() Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentStage
}

func (e *Engine) Config() *config.Config {
	return e.cfg
}

func (e *Engine) Device() renderer.GraphicsDevice {
	return e.device
}

func (e *Engine) Program() *program.Program {
	return e.program
}
