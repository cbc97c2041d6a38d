package program

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/gfxbridge/engine/core"
)

var (
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
	ErrJobSystemShutdown   = errors.New("job system is shut down")
)

/** @brief A unit of host work queued on the job system. */
type Job struct {
	Name string
	/** @brief Required. */
	Run func() error
	/** @brief Invoked with the result of Run. Optional. */
	OnComplete func(err error)
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan Job
	wg         sync.WaitGroup
	// pending counts submitted jobs that have not finished yet
	pending sync.WaitGroup

	mu       sync.RWMutex
	shutdown bool
}

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan Job, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				err := job.Run()
				if err != nil {
					core.LogError("job %s: %s", job.Name, err)
				}
				if job.OnComplete != nil {
					job.OnComplete(err)
				}
				js.pending.Done()
			}
		}()
	}
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 */
func (js *JobSystem) Submit(job Job) error {
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.shutdown {
		return ErrJobSystemShutdown
	}
	js.pending.Add(1)
	js.jobQueue <- job
	return nil
}

/**
 * @brief Blocks until every job submitted so far has finished.
 */
func (js *JobSystem) Wait() {
	js.pending.Wait()
}

/**
 * @brief Shuts the job system down after draining queued jobs.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.shutdown {
		js.mu.Unlock()
		return ErrJobSystemShutdown
	}
	js.shutdown = true
	close(js.jobQueue)
	js.mu.Unlock()
	js.wg.Wait()
	return nil
}
