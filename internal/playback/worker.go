package playback

import (
	"context"
	"errors"
	"log/slog"
)

// ErrWorkerStopped is returned by Submit once the worker has exited.
var ErrWorkerStopped = errors.New("playback worker stopped")

type request struct {
	job  Job
	done chan Summary
}

// Worker owns the engine and plays one job at a time. Jobs submitted while
// another is playing wait until the worker is free.
type Worker struct {
	engine  *Engine
	log     *slog.Logger
	jobs    chan request
	stopped chan struct{}
}

// NewWorker returns a worker for engine. Call Run to start it.
func NewWorker(engine *Engine, log *slog.Logger) *Worker {
	return &Worker{
		engine:  engine,
		log:     log,
		jobs:    make(chan request),
		stopped: make(chan struct{}),
	}
}

// Run consumes jobs until ctx is cancelled. A session in progress is not
// interrupted by the cancellation; Run returns once it has finished.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stopped)
	w.log.Info("playback worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("playback worker stopped")
			return ctx.Err()
		case req := <-w.jobs:
			req.done <- w.engine.Run(context.WithoutCancel(ctx), req.job)
		}
	}
}

// Submit queues job and waits for its summary. If ctx ends first the caller
// stops waiting, but a job that already started keeps playing.
func (w *Worker) Submit(ctx context.Context, job Job) (Summary, error) {
	req := request{job: job, done: make(chan Summary, 1)}
	select {
	case w.jobs <- req:
	case <-w.stopped:
		return Summary{}, ErrWorkerStopped
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
	select {
	case sum := <-req.done:
		return sum, nil
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
}

// State returns the engine's current state.
func (w *Worker) State() State { return w.engine.State() }
