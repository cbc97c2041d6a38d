// Package testbed is a demo application: it fills a device array or a dense
// field with a test pattern (or a decoded image), transfers it into a
// texture, reads the texture back and dumps the first slice as a TIFF.
package testbed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/spaghettifunk/gfxbridge/engine"
	"github.com/spaghettifunk/gfxbridge/engine/assets"
	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/program"
	"github.com/spaghettifunk/gfxbridge/engine/texture"
	"golang.org/x/image/tiff"
)

const (
	SourceNdarray = "ndarray"
	SourceField   = "field"
	SourceImage   = "image"

	channels = 4
)

var (
	ErrUnknownSource    = errors.New("unknown texture source")
	ErrReadbackMismatch = errors.New("readback does not match the uploaded pattern")
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	tex      *texture.Texture
	ndarray  *program.Ndarray
	field    *program.SNode
	pattern  []byte
	readback []byte
}

func NewTestGame(cfg *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: cfg,
			State:             &gameState{},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnRun = tg.Run
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (tg *TestGame) state() *gameState {
	return tg.State.(*gameState)
}

func (tg *TestGame) Initialize(e *engine.Engine) error {
	cfg := tg.ApplicationConfig
	st := tg.state()
	switch cfg.Source {
	case SourceNdarray, SourceField:
	case SourceImage:
		img, err := (&assets.ImageLoader{}).Load(cfg.Input)
		if err != nil {
			return err
		}
		cfg.Width, cfg.Height, cfg.Depth = img.Width, img.Height, 1
		st.pattern = img.Pixels
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Source)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Depth <= 0 {
		return fmt.Errorf("invalid extent %dx%dx%d", cfg.Width, cfg.Height, cfg.Depth)
	}
	if _, err := texture.CheckFormat(program.U8, channels); err != nil {
		return err
	}
	if st.pattern == nil {
		st.pattern = Pattern(cfg.Width, cfg.Height, cfg.Depth)
	}
	st.tex = texture.New(e.Program(), program.U8, channels, cfg.Width, cfg.Height, cfg.Depth)
	core.LogInfo("testbed: %s from %s", st.tex, cfg.Source)
	return nil
}

// Pattern returns an RGBA8 test image, x fastest then y then z.
func Pattern(width, height, depth int) []byte {
	data := make([]byte, 0, width*height*depth*channels)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				data = append(data,
					byte(x*255/max(width-1, 1)),
					byte(y*255/max(height-1, 1)),
					byte((x^y)+z*32),
					255,
				)
			}
		}
	}
	return data
}

func (tg *TestGame) extent() []int {
	cfg := tg.ApplicationConfig
	if cfg.Depth > 1 {
		return []int{cfg.Width, cfg.Height, cfg.Depth}
	}
	return []int{cfg.Width, cfg.Height}
}

func (tg *TestGame) Run(ctx context.Context, e *engine.Engine) error {
	st := tg.state()
	prog := e.Program()

	switch tg.ApplicationConfig.Source {
	case SourceNdarray, SourceImage:
		arr, err := prog.CreateNdarray(program.U8, tg.extent(), channels)
		if err != nil {
			return err
		}
		st.ndarray = arr
		if err := prog.Launch("fill_ndarray", func() error { return arr.Write(st.pattern) }); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		st.tex.FromNdarray(arr)
	case SourceField:
		root := program.NewRoot()
		place := root.Dense(tg.extent()...).PlaceVector("rgba", program.U8, channels)
		if _, err := prog.MaterializeTree(root); err != nil {
			return err
		}
		st.field = place
		if err := prog.Launch("fill_field", func() error { return prog.WriteField(place, st.pattern) }); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		st.tex.FromSNode(place)
	}

	pixels, err := st.tex.ReadPixels()
	if err != nil {
		return err
	}
	st.readback = pixels
	if !bytes.Equal(pixels, st.pattern) {
		return ErrReadbackMismatch
	}
	count, avg := texture.TransferStats()
	core.LogInfo("testbed: %d transfer(s), %.3f ms average", count, avg)

	if out := tg.ApplicationConfig.Output; out != "" {
		if err := tg.writeTIFF(out); err != nil {
			return err
		}
		core.LogInfo("testbed: wrote %s", out)
	}
	return nil
}

// Readback returns the pixels read back by the last run.
func (tg *TestGame) Readback() []byte {
	return tg.state().readback
}

func (tg *TestGame) writeTIFF(path string) error {
	cfg := tg.ApplicationConfig
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	copy(img.Pix, tg.state().readback[:cfg.Width*cfg.Height*channels])

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (tg *TestGame) Shutdown() error {
	st := tg.state()
	if st.tex != nil {
		st.tex.Destroy()
	}
	if st.ndarray != nil {
		st.ndarray.Destroy()
	}
	return nil
}
