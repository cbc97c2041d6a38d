package config

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/gfxbridge/engine/core"
)

// Watcher re-reads a config file whenever it is written and delivers the
// result on Updates. Files that fail to parse are reported on Errors and the
// previous config stays in effect.
type Watcher struct {
	path     string
	fsnotify *fsnotify.Watcher

	updates chan *Config
	errors  chan error
	done    chan struct{}

	mu       sync.Mutex
	isClosed bool
	wg       sync.WaitGroup
}

func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// editors replace files on save, so watch the directory instead of the file
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		fsnotify: fsWatch,
		updates:  make(chan *Config, 1),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.start()
	return w, nil
}

func (w *Watcher) Updates() <-chan *Config {
	return w.updates
}

func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) start() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path || !e.Op.Has(fsnotify.Write) && !e.Op.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				core.LogWarn("config reload failed: %s", err)
				w.send(nil, err)
				continue
			}
			core.LogDebug("config %s reloaded", w.path)
			w.send(cfg, nil)

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())
			w.send(nil, err)

		case <-w.done:
			return
		}
	}
}

// send never blocks the watch loop; a stale pending update is replaced by the newer one.
func (w *Watcher) send(cfg *Config, err error) {
	if err != nil {
		select {
		case w.errors <- err:
		default:
		}
		return
	}
	for {
		select {
		case w.updates <- cfg:
			return
		default:
		}
		select {
		case <-w.updates:
		default:
		}
	}
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.isClosed {
		w.mu.Unlock()
		return errors.New("config watcher already closed")
	}
	w.isClosed = true
	w.mu.Unlock()

	close(w.done)
	err := w.fsnotify.Close()
	w.wg.Wait()
	close(w.updates)
	close(w.errors)
	return err
}
