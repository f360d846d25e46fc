// Package routing maps an audit event to the resources it created.
package routing

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aadesh/autotagger/internal/event"
	"github.com/aadesh/autotagger/internal/resource"
)

// ExtractFunc pulls resource references out of an event's request and
// response bodies. An absent body yields no refs and no error; a body that
// is present but shaped wrongly is an error.
type ExtractFunc func(ev *event.Event) ([]resource.Ref, error)

// Entry binds one (service, event name) pair to the family it creates.
type Entry struct {
	Service   string
	EventName string
	Family    resource.Family
	Extract   ExtractFunc
}

type key struct {
	service, name string
}

// Table is the static routing registry. It is built once and read-only after,
// so lookups need no locking.
type Table struct {
	entries map[key]Entry
}

// NewTable builds a Table, rejecting incomplete or duplicate entries.
func NewTable(entries ...Entry) (*Table, error) {
	t := &Table{entries: make(map[key]Entry, len(entries))}
	for _, e := range entries {
		if e.Service == "" || e.EventName == "" || e.Family == "" || e.Extract == nil {
			return nil, fmt.Errorf("routing: incomplete entry %s/%s", e.Service, e.EventName)
		}
		k := key{e.Service, e.EventName}
		if _, dup := t.entries[k]; dup {
			return nil, fmt.Errorf("routing: duplicate entry %s/%s", e.Service, e.EventName)
		}
		t.entries[k] = e
	}
	return t, nil
}

// Route returns the entry for the event's service token and name. A miss is
// the normal "nothing to tag" outcome.
func (t *Table) Route(source, name string) (Entry, bool) {
	svc, _, _ := strings.Cut(source, ".")
	e, ok := t.entries[key{svc, name}]
	return e, ok
}

// Families returns the distinct families the table can produce, sorted.
func (t *Table) Families() []resource.Family {
	var out []resource.Family
	for _, e := range t.entries {
		if !slices.Contains(out, e.Family) {
			out = append(out, e.Family)
		}
	}
	slices.Sort(out)
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// ExtractError reports an event whose body could not be read.
type ExtractError struct {
	Source string
	Name   string
	Err    error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s/%s: %v", e.Source, e.Name, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Run runs the entry's extractor, wrapping failures in ExtractError.
func (e Entry) Run(ev *event.Event) ([]resource.Ref, error) {
	refs, err := e.Extract(ev)
	if err != nil {
		return nil, &ExtractError{Source: ev.Source, Name: ev.Name, Err: err}
	}
	return refs, nil
}
