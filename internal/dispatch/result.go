package dispatch

import (
	"encoding/json"
	"net/http"

	"github.com/aadesh/autotagger/internal/resource"
	"github.com/aadesh/autotagger/internal/tags"
	"github.com/aadesh/autotagger/internal/tagger"
)

// Status is the terminal state of one dispatch.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Skip reasons.
const (
	ReasonExcludedService = "excluded-service"
	ReasonNoMatch         = "no-match"
	ReasonNoResources     = "no-resources"
)

// Per-resource outcomes.
const (
	OutcomeTagged = "tagged"
	OutcomeError  = "error"
)

// ResourceOutcome records one tagging attempt.
type ResourceOutcome struct {
	Resource   string          `json:"resource"`
	Family     resource.Family `json:"family"`
	Identifier string          `json:"identifier"`
	Region     string          `json:"region"`
	Target     string          `json:"target,omitempty"`
	Outcome    string          `json:"outcome"`
	ErrorKind  tagger.Op       `json:"errorKind,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Result is the outcome of dispatching one event.
//
// Status is StatusError only when no tagging attempt could be made. A mix of
// per-resource successes and failures is StatusSuccess; the failures are
// visible in TaggedResources.
type Result struct {
	EventID         string            `json:"eventId,omitempty"`
	EventName       string            `json:"eventName"`
	EventSource     string            `json:"eventSource"`
	Status          Status            `json:"status"`
	Reason          string            `json:"reason,omitempty"`
	TaggedResources []ResourceOutcome `json:"taggedResources"`
	AppliedTags     tags.Set          `json:"appliedTags"`
	Error           string            `json:"error,omitempty"`
	DurationMs      int64             `json:"durationMs"`

	// fault marks a recovered panic rather than a diagnosed failure.
	fault bool
}

// Unexpected reports whether the dispatch ended in an unexpected fault, which
// the host should surface so the transport may redeliver.
func (r *Result) Unexpected() bool { return r.fault }

// Failed returns the outcomes that did not tag their resource.
func (r *Result) Failed() []ResourceOutcome {
	var out []ResourceOutcome
	for _, o := range r.TaggedResources {
		if o.Outcome != OutcomeTagged {
			out = append(out, o)
		}
	}
	return out
}

// Response is the status-code-plus-body envelope returned to the invoker.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type successBody struct {
	Status          Status            `json:"status"`
	Reason          string            `json:"reason,omitempty"`
	TaggedResources []ResourceOutcome `json:"taggedResources"`
	AppliedTags     tags.Set          `json:"appliedTags"`
	EventName       string            `json:"eventName"`
	EventSource     string            `json:"eventSource"`
}

type errorBody struct {
	Status      Status `json:"status"`
	Error       string `json:"error"`
	EventName   string `json:"eventName"`
	EventSource string `json:"eventSource"`
}

// Body returns the payload for r: the tagging detail on success or skip, the
// error detail on failure.
func (r *Result) Body() any {
	if r.Status == StatusError {
		return errorBody{Status: r.Status, Error: r.Error, EventName: r.EventName, EventSource: r.EventSource}
	}
	tr := r.TaggedResources
	if tr == nil {
		tr = []ResourceOutcome{}
	}
	at := r.AppliedTags
	if at == nil {
		at = tags.Set{}
	}
	return successBody{
		Status:          r.Status,
		Reason:          r.Reason,
		TaggedResources: tr,
		AppliedTags:     at,
		EventName:       r.EventName,
		EventSource:     r.EventSource,
	}
}

// HTTPStatus maps r onto the envelope status code.
func (r *Result) HTTPStatus() int {
	if r.Status == StatusError {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

// Response serializes r into the invoker envelope.
func (r *Result) Response() Response {
	body, err := json.Marshal(r.Body())
	if err != nil {
		body, _ = json.Marshal(errorBody{Status: StatusError, Error: err.Error(), EventName: r.EventName, EventSource: r.EventSource})
		return Response{StatusCode: http.StatusInternalServerError, Body: string(body)}
	}
	return Response{StatusCode: r.HTTPStatus(), Body: string(body)}
}
