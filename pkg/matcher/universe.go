// argus/pkg/matcher/universe.go

package matcher

import (
	"kwalsh/argus/pkg/ruleset"
)

// HostUniverse is the immutable host configuration snapshot the matching
// engine works on: which hosts exist, their tags, their folder paths and
// their cluster relationships. It is supplied fully loaded by external
// configuration code; the engine never performs I/O on it.
type HostUniverse struct {
	// HostTags maps each host to its tag group assignments.
	HostTags map[ruleset.HostName]map[ruleset.TaggroupID]ruleset.TagID `json:"host_tags"`
	// HostPaths maps each host to its configured folder path. Hosts
	// without an entry live in the root folder "/".
	HostPaths map[ruleset.HostName]string `json:"host_paths"`
	// AllConfiguredHosts is the complete set of known host names.
	AllConfiguredHosts []ruleset.HostName `json:"all_configured_hosts"`
	// ClustersOf maps a node to the clusters it belongs to, NodesOf a
	// cluster to its nodes. A cluster's required hosts include its nodes.
	ClustersOf map[ruleset.HostName][]ruleset.HostName `json:"clusters_of,omitempty"`
	NodesOf    map[ruleset.HostName][]ruleset.HostName `json:"nodes_of,omitempty"`
}

// tagPair is one (tag group, tag) assignment of a host.
type tagPair struct {
	Group ruleset.TaggroupID
	Tag   ruleset.TagID
}

type tagPairSet map[tagPair]struct{}

func (s tagPairSet) has(pair tagPair) bool {
	_, ok := s[pair]
	return ok
}

// isSubsetOf reports whether every pair of s is present in other.
func (s tagPairSet) isSubsetOf(other tagPairSet) bool {
	for pair := range s {
		if !other.has(pair) {
			return false
		}
	}
	return true
}

// intersects reports whether the two sets share at least one pair.
func (s tagPairSet) intersects(other tagPairSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for pair := range small {
		if large.has(pair) {
			return true
		}
	}
	return false
}

func tagPairsOf(tags map[ruleset.TaggroupID]ruleset.TagID) tagPairSet {
	pairs := make(tagPairSet, len(tags))
	for group, tag := range tags {
		pairs[tagPair{Group: group, Tag: tag}] = struct{}{}
	}
	return pairs
}
