/*
Demo entry point: builds the engine from gfxbridge.toml, runs the testbed
transfer scenario and writes the readback as a TIFF.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spaghettifunk/gfxbridge/engine"
	"github.com/spaghettifunk/gfxbridge/engine/config"
	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/testbed"
)

var (
	configPath = flag.String("config", config.DefaultFile, "Configuration file")
	output     = flag.String("out", "readback.tiff", "Readback destination, empty to skip")
	width      = flag.Int("width", 256, "Texture width")
	height     = flag.Int("height", 256, "Texture height")
	depth      = flag.Int("depth", 1, "Texture depth, above 1 selects a 3-D texture")
	source     = flag.String("source", testbed.SourceNdarray, "Texture source: ndarray, field or image")
	input      = flag.String("in", "", "Image file for the image source (png, jpeg, bmp, tiff)")
)

func init() {
	// the glfw loader must stay on the main thread
	runtime.LockOSThread()
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) && path == config.DefaultFile {
		return config.Default(), nil
	}
	return cfg, err
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		core.LogFatal("%s", err)
	}

	tb := testbed.NewTestGame(&engine.ApplicationConfig{
		Name:   cfg.Device.AppName,
		Width:  *width,
		Height: *height,
		Depth:  *depth,
		Source: *source,
		Input:  *input,
		Output: *output,
	})

	e, err := engine.New(tb.Game, cfg, *configPath)
	if err != nil {
		core.LogFatal("%s", err)
	}

	// signal channel to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	code := 0
	if err := e.Initialize(); err != nil {
		core.LogError("%s", err)
		code = 1
	} else if err := e.Run(ctx); err != nil {
		core.LogError("%s", err)
		code = 1
	}
	if err := e.Shutdown(); err != nil {
		core.LogError("%s", err)
		code = 1
	}
	os.Exit(code)
}
