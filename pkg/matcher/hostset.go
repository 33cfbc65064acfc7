// argus/pkg/matcher/hostset.go

package matcher

import (
	"sort"

	"kwalsh/argus/pkg/ruleset"
)

// HostSet is a set of host names.
type HostSet map[ruleset.HostName]struct{}

func NewHostSet(names ...ruleset.HostName) HostSet {
	set := make(HostSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func (s HostSet) Add(name ruleset.HostName) {
	s[name] = struct{}{}
}

func (s HostSet) Has(name ruleset.HostName) bool {
	_, ok := s[name]
	return ok
}

func (s HostSet) Update(other HostSet) {
	for name := range other {
		s[name] = struct{}{}
	}
}

// Intersect returns a new set with the hosts present in both sets.
func (s HostSet) Intersect(other HostSet) HostSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	result := make(HostSet)
	for name := range small {
		if large.Has(name) {
			result[name] = struct{}{}
		}
	}
	return result
}

// IntersectNames returns a new set with the hosts of s that appear in the
// given name list.
func (s HostSet) IntersectNames(names []string) HostSet {
	result := make(HostSet)
	for _, name := range names {
		if s.Has(name) {
			result[name] = struct{}{}
		}
	}
	return result
}

// Intersects reports whether the two sets share at least one host.
func (s HostSet) Intersects(other HostSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for name := range small {
		if large.Has(name) {
			return true
		}
	}
	return false
}

func (s HostSet) Copy() HostSet {
	result := make(HostSet, len(s))
	for name := range s {
		result[name] = struct{}{}
	}
	return result
}

// Names returns the sorted host names, mainly for logging and tests.
func (s HostSet) Names() []ruleset.HostName {
	names := make([]ruleset.HostName, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
