// Package engine runs dispatches for hosts that accept more than one event at
// a time. Each event is dispatched independently by one worker.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/aadesh/autotagger/internal/config"
	"github.com/aadesh/autotagger/internal/dispatch"
	"github.com/aadesh/autotagger/internal/event"
	"github.com/aadesh/autotagger/internal/metrics"
)

// Engine feeds events to a Dispatcher through a bounded worker pool.
type Engine struct {
	dispatcher *dispatch.Dispatcher
	eventPool  *workerPool[*eventWork]
	conf       config.EngineConf
}

type eventWork struct {
	ev      *event.Event
	resultC chan *dispatch.Result
}

// New creates an Engine using conf and starts its worker pool.
func New(ctx context.Context, d *dispatch.Dispatcher, conf config.EngineConf) *Engine {
	e := &Engine{dispatcher: d, conf: conf}
	e.eventPool = newWorkerPool(
		ctx,
		conf.Workers,
		conf.QueueDepth,
		func(ctx context.Context, w *eventWork) {
			res := e.dispatch(ctx, w.ev)
			if w.resultC != nil {
				w.resultC <- res
			}
		},
	)
	return e
}

// Dispatcher returns the dispatcher the engine feeds.
func (e *Engine) Dispatcher() *dispatch.Dispatcher {
	return e.dispatcher
}

// ProcessSync dispatches ev through the pool and waits for its result.
// Returns an error if the queue is full or the deadline passes first.
func (e *Engine) ProcessSync(ctx context.Context, ev *event.Event) (*dispatch.Result, error) {
	resultC := make(chan *dispatch.Result, 1)
	w := &eventWork{ev: ev, resultC: resultC}

	timeout := e.timeout()
	if !e.eventPool.Submit(w) {
		metrics.EventsDropped.Inc()
		return nil, fmt.Errorf("event queue full (capacity %d)", e.conf.QueueDepth)
	}
	metrics.EventsEnqueued.Inc()

	select {
	case res := <-resultC:
		return res, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("dispatch timeout after %v", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProcessAsync enqueues ev for background dispatch. Returns false if the queue is full.
func (e *Engine) ProcessAsync(ev *event.Event) bool {
	w := &eventWork{ev: ev}
	if !e.eventPool.Submit(w) {
		metrics.EventsDropped.Inc()
		return false
	}
	metrics.EventsEnqueued.Inc()
	return true
}

// QueueUtilization returns queue used / capacity (0 to 1).
func (e *Engine) QueueUtilization() float64 {
	if e.eventPool.QueueCap() == 0 {
		return 0
	}
	return float64(e.eventPool.QueueLen()) / float64(e.eventPool.QueueCap())
}

// dispatch bounds one dispatch by the configured deadline, standing in for
// the deadline a function runtime would impose.
func (e *Engine) dispatch(ctx context.Context, ev *event.Event) *dispatch.Result {
	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()
	return e.dispatcher.Dispatch(ctx, ev)
}

func (e *Engine) timeout() time.Duration {
	return time.Duration(e.conf.DispatchTimeoutMs) * time.Millisecond
}

// Shutdown drains the pool gracefully.
func (e *Engine) Shutdown() {
	e.eventPool.Drain()
}
