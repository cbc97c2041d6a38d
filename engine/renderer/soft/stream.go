package soft

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/renderer"
)

type submission struct {
	list   *CommandList
	waits  []*Semaphore
	signal *Semaphore
}

// Stream executes submissions in FIFO order on a dedicated goroutine.
type Stream struct {
	dev   *Device
	name  string
	queue chan *submission
	done  chan struct{}

	mu     sync.Mutex
	last   *Semaphore
	closed bool
}

var _ renderer.Stream = (*Stream)(nil)

func newStream(d *Device, name string, depth int) *Stream {
	s := &Stream{
		dev:   d,
		name:  name,
		queue: make(chan *submission, depth),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Stream) run() {
	defer close(s.done)
	for sub := range s.queue {
		var err error
		for _, w := range sub.waits {
			if werr := w.Wait(); werr != nil && err == nil {
				err = fmt.Errorf("%s stream: waited submission failed: %w", s.name, werr)
			}
		}
		if err == nil {
			err = sub.list.execute(s.dev)
		}
		if err != nil {
			core.LogError("%s stream: %s", s.name, err)
		}
		sub.signal.signal(err)
	}
}

func (s *Stream) Name() string {
	return s.name
}

func (s *Stream) NewCommandList() (renderer.CommandList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, renderer.ErrDeviceDestroyed
	}
	return &CommandList{stream: s}, nil
}

func (s *Stream) Submit(cmdlist renderer.CommandList, waits []renderer.Semaphore) (renderer.Semaphore, error) {
	return s.submit(cmdlist, waits, false)
}

func (s *Stream) SubmitSynced(cmdlist renderer.CommandList, waits []renderer.Semaphore) error {
	sema, err := s.submit(cmdlist, waits, true)
	if err != nil {
		return err
	}
	return sema.Wait()
}

func (s *Stream) submit(cmdlist renderer.CommandList, waits []renderer.Semaphore, synced bool) (*Semaphore, error) {
	cl, ok := cmdlist.(*CommandList)
	if !ok || cl.stream != s {
		return nil, renderer.ErrForeignCommandList
	}
	if cl.submitted {
		return nil, renderer.ErrCommandListSubmitted
	}

	sub := &submission{list: cl, signal: newSemaphore()}
	for _, w := range waits {
		if w == nil {
			continue
		}
		sw, ok := w.(*Semaphore)
		if !ok {
			return nil, fmt.Errorf("%s stream: semaphore %T from another backend", s.name, w)
		}
		sub.waits = append(sub.waits, sw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, renderer.ErrDeviceDestroyed
	}
	cl.submitted = true
	s.dev.record(Submission{Stream: s.name, Waits: len(sub.waits), Synced: synced, Ops: cl.Ops()})
	s.last = sub.signal
	s.queue <- sub
	return sub.signal, nil
}

func (s *Stream) CommandSync() error {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		return nil
	}
	return last.Wait()
}

func (s *Stream) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}
