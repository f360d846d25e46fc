package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

// DefaultRegion is used when neither the event nor the host supplies one.
const DefaultRegion = "us-east-1"

// Event is the canonical input model: one audit record describing one API call.
// The sub-objects whose shape depends on the originating call are kept raw and
// decoded by the extractor that understands them.
type Event struct {
	ID                string          `json:"eventID,omitempty"`
	Source            string          `json:"eventSource"`
	Name              string          `json:"eventName"`
	Region            string          `json:"awsRegion"`
	Time              string          `json:"eventTime,omitempty"`
	UserIdentity      json.RawMessage `json:"userIdentity,omitempty"`
	RequestParameters json.RawMessage `json:"requestParameters,omitempty"`
	ResponseElements  json.RawMessage `json:"responseElements,omitempty"`
	ReceivedAt        time.Time       `json:"-"`
}

// Service returns the service token of the event source: the text before the
// first '.' ("ec2" for "ec2.amazonaws.com").
func (e *Event) Service() string {
	svc, _, _ := strings.Cut(e.Source, ".")
	return svc
}

// EnsureID assigns a random ID to an event that arrived without one, so its
// log lines can be correlated.
func (e *Event) EnsureID() {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
}

// envelope is the event-bus wrapper around an audit record.
type envelope struct {
	Region string          `json:"region"`
	Detail json.RawMessage `json:"detail"`
}

// Normalize decodes either an event-bus envelope ({"detail": {...}}) or a bare
// audit record into an Event. fallbackRegion fills in a missing awsRegion.
func Normalize(data []byte, fallbackRegion string) (*Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, errors.New("event: payload is not a JSON object")
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("event: decode envelope: %w", err)
	}
	record := data
	if isObject(env.Detail) {
		record = env.Detail
		if env.Region != "" {
			fallbackRegion = env.Region
		}
	}
	var ev Event
	if err := json.Unmarshal(record, &ev); err != nil {
		return nil, fmt.Errorf("event: decode record: %w", err)
	}
	ev.fill(fallbackRegion)
	return &ev, nil
}

// FromCloudWatchEvent converts the Lambda runtime's event-bus payload.
func FromCloudWatchEvent(cwe events.CloudWatchEvent, fallbackRegion string) (*Event, error) {
	if !isObject(cwe.Detail) {
		return nil, fmt.Errorf("event: %s event %s has no detail object", cwe.Source, cwe.ID)
	}
	var ev Event
	if err := json.Unmarshal(cwe.Detail, &ev); err != nil {
		return nil, fmt.Errorf("event: decode detail: %w", err)
	}
	if ev.ID == "" {
		ev.ID = cwe.ID
	}
	if cwe.Region != "" {
		fallbackRegion = cwe.Region
	}
	ev.fill(fallbackRegion)
	return &ev, nil
}

func (e *Event) fill(fallbackRegion string) {
	if e.Region == "" {
		e.Region = fallbackRegion
	}
	if e.Region == "" {
		e.Region = DefaultRegion
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
