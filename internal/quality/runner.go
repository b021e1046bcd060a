package quality

import (
	"context"
	"log"
	"sync"
)

// Runner evaluates queued translations in the background. Queueing a batch
// returns immediately; queued items are eventually evaluated and become
// retrievable through the cache.
type Runner struct {
	jobs chan job
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

type job struct {
	translationID string
	cfg           Config
}

func NewRunner(queueSize int) *Runner {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Runner{
		jobs: make(chan job, queueSize),
		stop: make(chan struct{}),
	}
}

// Start launches the worker goroutine. evaluate is called once per queued
// translation; errors are logged, not retried.
func (r *Runner) Start(engine *Engine) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.stop:
				return
			case j := <-r.jobs:
				if _, err := engine.Evaluate(context.Background(), j.translationID, j.cfg); err != nil {
					log.Printf("quality: background evaluation of %s failed: %v", j.translationID, err)
				}
			}
		}
	}()
}

// Enqueue schedules one translation for evaluation. Returns false when the
// queue is full or the runner is stopped; the caller counts it as not queued.
func (r *Runner) Enqueue(translationID string, cfg Config) bool {
	select {
	case <-r.stop:
		return false
	case r.jobs <- job{translationID: translationID, cfg: cfg}:
		return true
	default:
		return false
	}
}

// Stop halts the worker after the in-flight evaluation finishes. Items left
// in the queue are dropped; they will be re-queued by the next batch request.
func (r *Runner) Stop() {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
}
