// Package tagger applies tag sets to resources, one applicator per API shape.
//
// Every applicator is safe to run more than once for the same resource and
// tag set: the event transport redelivers, so a second application must leave
// the resource in the same state as the first.
package tagger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aadesh/autotagger/internal/resource"
	"github.com/aadesh/autotagger/internal/tags"
)

// Applicator tags resources of the families it declares.
type Applicator interface {
	// Families returns the resource families this applicator serves.
	Families() []resource.Family
	// Apply writes set onto ref and returns the identifier that was tagged.
	Apply(ctx context.Context, ref resource.Ref, set tags.Set) (*Result, error)
}

// ClientFunc returns the API client for a region.
type ClientFunc[C any] func(ctx context.Context, region string) (C, error)

// Result holds the outcome of one successful application.
type Result struct {
	Ref resource.Ref
	// Target is the canonical identifier the tags were written to. It differs
	// from Ref.ID when a short name had to be resolved first.
	Target string
}

// Op names the step of an application that failed.
type Op string

const (
	OpResolve Op = "resolve"
	OpApply   Op = "apply"
)

// Error is a per-resource failure.
type Error struct {
	Op  Op
	Ref resource.Ref
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// OpOf returns the failed step recorded in err, defaulting to OpApply.
func OpOf(err error) Op {
	var te *Error
	if errors.As(err, &te) {
		return te.Op
	}
	return OpApply
}

func resolveErr(ref resource.Ref, err error) error {
	return &Error{Op: OpResolve, Ref: ref, Err: err}
}

func applyErr(ref resource.Ref, err error) error {
	return &Error{Op: OpApply, Ref: ref, Err: err}
}

// Registry maps resource families to their applicators.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu          sync.RWMutex
	applicators map[resource.Family]Applicator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{applicators: make(map[resource.Family]Applicator)}
}

// Register adds an applicator under each of its families. Panics on a
// duplicate family to surface misconfiguration early.
func (r *Registry) Register(a Applicator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range a.Families() {
		if _, exists := r.applicators[f]; exists {
			panic(fmt.Sprintf("tagger registry: duplicate family %q", f))
		}
		r.applicators[f] = a
	}
}

// Get returns the applicator for family.
func (r *Registry) Get(family resource.Family) (Applicator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.applicators[family]
	if !ok {
		return nil, fmt.Errorf("no applicator registered for family %q", family)
	}
	return a, nil
}

// Families returns all registered families, sorted.
func (r *Registry) Families() []resource.Family {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]resource.Family, 0, len(r.applicators))
	for f := range r.applicators {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}
