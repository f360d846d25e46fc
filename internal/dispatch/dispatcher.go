// Package dispatch turns one audit event into tagging calls and an aggregated
// result.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/aadesh/autotagger/internal/event"
	"github.com/aadesh/autotagger/internal/identity"
	"github.com/aadesh/autotagger/internal/metrics"
	"github.com/aadesh/autotagger/internal/resource"
	"github.com/aadesh/autotagger/internal/routing"
	"github.com/aadesh/autotagger/internal/tags"
	"github.com/aadesh/autotagger/internal/tagger"
)

// Dispatcher processes one event per call, to completion, in a single pass.
// It never retries; redelivery belongs to the transport. Dispatch may be
// called concurrently for different events.
type Dispatcher struct {
	table    *routing.Table
	registry *tagger.Registry
	policy   atomic.Pointer[Policy]
	log      *zap.Logger
}

// New creates a Dispatcher. Every family the table can route to must have a
// registered applicator.
func New(table *routing.Table, reg *tagger.Registry, p *Policy, log *zap.Logger) (*Dispatcher, error) {
	for _, f := range table.Families() {
		if _, err := reg.Get(f); err != nil {
			return nil, fmt.Errorf("dispatch: %w", err)
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{table: table, registry: reg, log: log}
	d.policy.Store(p)
	return d, nil
}

// SwapPolicy atomically replaces the policy (used on hot-reload).
func (d *Dispatcher) SwapPolicy(p *Policy) {
	d.policy.Store(p)
}

// Policy returns the policy currently in force.
func (d *Dispatcher) Policy() *Policy {
	return d.policy.Load()
}

// Dispatch tags the resources created by ev. It always returns a Result;
// failures are reported in it, never raised.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *event.Event) (res *Result) {
	start := time.Now()
	res = &Result{}
	log := d.log

	defer func() {
		if r := recover(); r != nil {
			log.Error("unexpected fault during dispatch",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			res.Status = StatusError
			res.Error = fmt.Sprintf("unexpected fault: %v", r)
			res.TaggedResources = nil
			res.AppliedTags = nil
			res.fault = true
		}
		res.DurationMs = time.Since(start).Milliseconds()
		metrics.DispatchDuration.Observe(float64(res.DurationMs))
		metrics.EventsDispatched.WithLabelValues(string(res.Status), res.Reason).Inc()
		log.Info("dispatch finished",
			zap.String("status", string(res.Status)),
			zap.String("reason", res.Reason),
			zap.Int("resources", len(res.TaggedResources)),
			zap.Int("failed", len(res.Failed())),
			zap.Int64("duration_ms", res.DurationMs),
		)
	}()

	if ev == nil {
		res.Status = StatusError
		res.Error = "no event to dispatch"
		return res
	}
	res.EventID, res.EventName, res.EventSource = ev.ID, ev.Name, ev.Source
	log = log.With(
		zap.String("event_id", ev.ID),
		zap.String("event_name", ev.Name),
		zap.String("event_source", ev.Source),
	)

	p := d.policy.Load()
	if svc := ev.Service(); p.Excluded(svc) {
		log.Debug("skipping excluded service", zap.String("service", svc))
		return skip(res, ReasonExcludedService)
	}

	set := p.Compose(identity.Extract(ev).Tags())

	entry, ok := d.table.Route(ev.Source, ev.Name)
	if !ok {
		return skip(res, ReasonNoMatch)
	}

	refs, err := entry.Run(ev)
	if err != nil {
		log.Error("event extraction failed", zap.Error(err))
		res.Status = StatusError
		res.Error = err.Error()
		return res
	}
	if len(refs) == 0 {
		log.Warn("no resources found in event")
		return skip(res, ReasonNoResources)
	}

	res.Status = StatusSuccess
	res.AppliedTags = set
	res.TaggedResources = make([]ResourceOutcome, 0, len(refs))
	for _, ref := range refs {
		res.TaggedResources = append(res.TaggedResources, d.apply(ctx, log, ref, set))
	}
	return res
}

// apply makes one tagging attempt. Its failure is recorded, not propagated,
// so sibling resources are still attempted.
func (d *Dispatcher) apply(ctx context.Context, log *zap.Logger, ref resource.Ref, set tags.Set) ResourceOutcome {
	out := ResourceOutcome{
		Resource:   ref.String(),
		Family:     ref.Family,
		Identifier: ref.ID,
		Region:     ref.Region,
	}
	a, err := d.registry.Get(ref.Family)
	if err == nil {
		var r *tagger.Result
		if r, err = a.Apply(ctx, ref, set); err == nil {
			out.Outcome = OutcomeTagged
			out.Target = r.Target
			metrics.ResourcesTagged.WithLabelValues(string(ref.Family), OutcomeTagged).Inc()
			return out
		}
	}
	out.Outcome = OutcomeError
	out.ErrorKind = tagger.OpOf(err)
	out.Error = err.Error()
	metrics.ResourcesTagged.WithLabelValues(string(ref.Family), string(out.ErrorKind)+"_error").Inc()
	log.Warn("tagging failed",
		zap.String("resource", ref.String()),
		zap.String("region", ref.Region),
		zap.String("step", string(out.ErrorKind)),
		zap.Error(err),
	)
	return out
}

func skip(res *Result, reason string) *Result {
	res.Status = StatusSkipped
	res.Reason = reason
	return res
}
