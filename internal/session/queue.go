package session

import (
	"context"

	"watchalong/internal/logging"
)

// =============================================================================
// ACTION QUEUE
// =============================================================================
//
// Every page interaction runs on a single worker in submission order, so a
// search arriving while a play is navigating waits for the play to finish
// instead of racing it on the same page.

const actionQueueSize = 64

type action struct {
	name   string
	ctx    context.Context
	fn     func(context.Context) error
	result chan error // buffered(1); nil for fire-and-forget actions
}

type actionQueue struct {
	jobs   chan *action
	stopCh chan struct{}
	doneCh chan struct{}
}

func newActionQueue() *actionQueue {
	q := &actionQueue{
		jobs:   make(chan *action, actionQueueSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *actionQueue) run() {
	defer close(q.doneCh)
	for {
		select {
		case <-q.stopCh:
			q.drain()
			return
		case a := <-q.jobs:
			q.exec(a)
		}
	}
}

func (q *actionQueue) exec(a *action) {
	if err := a.ctx.Err(); err != nil {
		logging.SessionDebug("action %s dropped before start: %v", a.name, err)
		if a.result != nil {
			a.result <- err
		}
		return
	}

	logging.SessionDebug("action %s started", a.name)
	err := a.fn(a.ctx)
	if err != nil {
		logging.SessionDebug("action %s failed: %v", a.name, err)
	}
	if a.result != nil {
		a.result <- err
	}
}

// drain fails every action still waiting after stop.
func (q *actionQueue) drain() {
	for {
		select {
		case a := <-q.jobs:
			if a.result != nil {
				a.result <- ErrClosed
			}
		default:
			return
		}
	}
}

// do runs fn on the worker and waits for it. Once fn has started it runs to
// completion; ctx is handed to fn, which decides how to honour it.
func (q *actionQueue) do(ctx context.Context, name string, fn func(context.Context) error) error {
	a := &action{name: name, ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case <-q.stopCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case q.jobs <- a:
	}

	select {
	case err := <-a.result:
		return err
	case <-q.doneCh:
		// The worker may have finished a right before exiting.
		select {
		case err := <-a.result:
			return err
		default:
			return ErrClosed
		}
	}
}

// submit enqueues fn without waiting. It reports false when the queue is
// full or stopped.
func (q *actionQueue) submit(ctx context.Context, name string, fn func(context.Context) error) bool {
	select {
	case <-q.stopCh:
		return false
	default:
	}
	select {
	case q.jobs <- &action{name: name, ctx: ctx, fn: fn}:
		return true
	default:
		logging.Get(logging.CategorySession).Warn("action queue full, dropping %s", name)
		return false
	}
}

func (q *actionQueue) stop() {
	select {
	case <-q.stopCh:
	default:
		close(q.stopCh)
	}
	<-q.doneCh
}
