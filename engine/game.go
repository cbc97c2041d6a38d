package engine

import "context"

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnRun             Run
	FnShutdown        Shutdown
}

type Initialize func(e *Engine) error
type Run func(ctx context.Context, e *Engine) error
type Shutdown func() error
