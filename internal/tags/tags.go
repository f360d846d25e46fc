// Package tags models the key/value tag collection applied to resources.
package tags

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Set maps tag key to tag value. Keys are case-sensitive.
type Set map[string]string

// Overlay merges layers left to right; a later layer wins on key collision.
// The result is always a fresh map.
func Overlay(layers ...Set) Set {
	out := make(Set)
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}

// Clone returns a copy of s.
func (s Set) Clone() Set {
	return Overlay(s)
}

// Keys returns the tag keys in sorted order.
func (s Set) Keys() []string {
	var keys []string
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Equal reports whether s and o hold the same pairs.
func (s Set) Equal(o Set) bool {
	return maps.Equal(s, o)
}

func (s Set) String() string {
	parts := make([]string, 0, len(s))
	for _, k := range s.Keys() {
		parts = append(parts, k+"="+s[k])
	}
	return strings.Join(parts, ",")
}

// Parse reads "k=v,k2=v2". Whitespace around keys and values is trimmed and
// empty items are skipped; an item without '=' or with an empty key is an error.
func Parse(s string) (Set, error) {
	out := make(Set)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		k, v, ok := strings.Cut(item, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("tags: malformed pair %q (want key=value)", item)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
