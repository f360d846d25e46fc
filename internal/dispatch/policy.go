package dispatch

import (
	"slices"
	"strings"

	"github.com/aadesh/autotagger/internal/config"
	"github.com/aadesh/autotagger/internal/tags"
)

// Policy is the hot-swappable part of the dispatcher's behavior.
type Policy struct {
	excluded  map[string]struct{}
	Defaults  tags.Set
	Overrides tags.Set
}

// NewPolicy builds a Policy. Service names are matched case-insensitively.
func NewPolicy(excluded []string, defaults, overrides tags.Set) *Policy {
	p := &Policy{
		excluded:  make(map[string]struct{}, len(excluded)),
		Defaults:  defaults.Clone(),
		Overrides: overrides.Clone(),
	}
	for _, s := range excluded {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			p.excluded[s] = struct{}{}
		}
	}
	return p
}

// Excluded reports whether events from service must never be tagged.
func (p *Policy) Excluded(service string) bool {
	_, ok := p.excluded[strings.ToLower(service)]
	return ok
}

// ExcludedServices returns the excluded service names, sorted.
func (p *Policy) ExcludedServices() []string {
	var keys []string
	for k := range p.excluded {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Compose overlays defaults < identity < overrides.
func (p *Policy) Compose(identity tags.Set) tags.Set {
	return tags.Overlay(p.Defaults, identity, p.Overrides)
}

// PolicyFromConfig builds the policy described by cfg.
func PolicyFromConfig(cfg *config.Config) *Policy {
	return NewPolicy(cfg.ExcludedServices, cfg.DefaultTags, cfg.OverrideTags)
}
