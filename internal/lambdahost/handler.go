// Package lambdahost adapts the dispatcher to the function runtime: one
// event-bus delivery per invocation.
package lambdahost

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/aadesh/autotagger/internal/dispatch"
	"github.com/aadesh/autotagger/internal/event"
)

// ErrUnexpectedFault is returned to the runtime when a dispatch panicked, so
// the runtime's retry policy decides whether to redeliver.
var ErrUnexpectedFault = errors.New("unexpected fault during dispatch")

// Handler is the function entry point.
type Handler struct {
	d              *dispatch.Dispatcher
	fallbackRegion string
	log            *zap.Logger
}

// New creates a Handler. fallbackRegion applies to deliveries that carry no region.
func New(d *dispatch.Dispatcher, fallbackRegion string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{d: d, fallbackRegion: fallbackRegion, log: log}
}

// Handle dispatches one delivery and returns the status-code-plus-body envelope.
// A delivery that cannot be decoded is answered with an error envelope rather
// than an error, since redelivering it would fail the same way.
func (h *Handler) Handle(ctx context.Context, cwe events.CloudWatchEvent) (dispatch.Response, error) {
	ev, err := event.FromCloudWatchEvent(cwe, h.fallbackRegion)
	if err != nil {
		h.log.Error("undecodable delivery",
			zap.String("delivery_id", cwe.ID),
			zap.String("detail_type", cwe.DetailType),
			zap.Error(err),
		)
		res := &dispatch.Result{Status: dispatch.StatusError, Error: err.Error()}
		return res.Response(), nil
	}
	ev.EnsureID()

	res := h.d.Dispatch(ctx, ev)
	if res.Unexpected() {
		return res.Response(), fmt.Errorf("%w: %s", ErrUnexpectedFault, res.Error)
	}
	return res.Response(), nil
}
