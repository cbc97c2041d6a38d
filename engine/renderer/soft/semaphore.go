package soft

import "github.com/spaghettifunk/gfxbridge/engine/renderer"

// Semaphore is closed by the stream goroutine once its submission finished.
type Semaphore struct {
	done chan struct{}
	err  error
}

var _ renderer.Semaphore = (*Semaphore)(nil)

func newSemaphore() *Semaphore {
	return &Semaphore{done: make(chan struct{})}
}

func (s *Semaphore) signal(err error) {
	s.err = err
	close(s.done)
}

// Wait blocks until the submission completed and returns its error, if any.
func (s *Semaphore) Wait() error {
	<-s.done
	return s.err
}

func (s *Semaphore) IsSignaled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
