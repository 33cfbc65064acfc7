// argus/pkg/matcher/optimizer.go

package matcher

import (
	"regexp"
	"sort"
	"strings"

	"kwalsh/argus/pkg/labels"
	"kwalsh/argus/pkg/logging"
	"kwalsh/argus/pkg/ruleset"
)

// PreprocessedServiceRule is one rule of a service ruleset converted for
// fast repeated matching: the value, the precomputed set of matching
// hosts, the service label condition with its cache identity, and the
// compiled service description pattern.
type PreprocessedServiceRule struct {
	Value                interface{}
	Hosts                HostSet
	ServiceLabels        ruleset.LabelConditions
	ServiceLabelsCacheID string
	DescriptionCacheID   string
	Pattern              PreprocessedPattern
}

type rulesetCacheKey struct {
	rulesetID        string
	withForeignHosts bool
}

type conditionCacheKey struct {
	condition        string
	withForeignHosts bool
}

type folderCacheKey struct {
	withForeignHosts bool
	folder           string
}

// similarityThreshold decides between the two tag matching strategies in
// matchHostsByTags. It is a performance tuning knob, not a correctness
// boundary: both strategies produce identical results.
const similarityThreshold = 3.0

// RulesetOptimizer performs precalculations on the configured rulesets to
// improve processing performance. All caches grow unbounded for the
// lifetime of one configuration snapshot; a new configuration load must
// construct a fresh matcher/optimizer pair.
type RulesetOptimizer struct {
	matcher      *RulesetMatcher
	labelManager *labels.Manager

	hostTags   map[ruleset.HostName]tagPairSet
	hostPaths  map[ruleset.HostName]string
	clustersOf map[ruleset.HostName][]ruleset.HostName
	nodesOf    map[ruleset.HostName][]ruleset.HostName

	allConfiguredHosts HostSet

	// All hosts currently relevant for this cache. Most of the time this
	// equals the configured hosts; in a multi-process environment each
	// process only handles a subset.
	allProcessedHosts HostSet

	// How much the processed hosts share the same tag configuration:
	// len(processed hosts) / len(distinct tag combinations). Used to
	// pick the best rule evaluation strategy for the current host set.
	processedHostsSimilarity float64

	hostRulesetCache      map[rulesetCacheKey]map[ruleset.HostName][]interface{}
	serviceRulesetCache   map[rulesetCacheKey][]PreprocessedServiceRule
	allMatchingHostsCache map[conditionCacheKey]HostSet

	// Folder path -> processed (or configured) hosts within it,
	// including subfolders.
	folderHostLookup map[folderCacheKey]HostSet

	// Hosts grouped by their full tag signature, and each host's
	// signature, so tag-identical hosts are only tested once.
	hostsGroupedByTags map[string]HostSet
	hostGroupedRef     map[ruleset.HostName]string

	regexCache map[string]*regexp.Regexp
}

func newRulesetOptimizer(m *RulesetMatcher, universe HostUniverse, labelManager *labels.Manager) *RulesetOptimizer {
	o := &RulesetOptimizer{
		matcher:      m,
		labelManager: labelManager,

		hostTags:   make(map[ruleset.HostName]tagPairSet, len(universe.AllConfiguredHosts)),
		hostPaths:  universe.HostPaths,
		clustersOf: universe.ClustersOf,
		nodesOf:    universe.NodesOf,

		allConfiguredHosts:       NewHostSet(universe.AllConfiguredHosts...),
		processedHostsSimilarity: 1.0,

		hostRulesetCache:      make(map[rulesetCacheKey]map[ruleset.HostName][]interface{}),
		serviceRulesetCache:   make(map[rulesetCacheKey][]PreprocessedServiceRule),
		allMatchingHostsCache: make(map[conditionCacheKey]HostSet),
		folderHostLookup:      make(map[folderCacheKey]HostSet),
		hostsGroupedByTags:    make(map[string]HostSet),
		hostGroupedRef:        make(map[ruleset.HostName]string),
		regexCache:            make(map[string]*regexp.Regexp),
	}

	for hostname := range o.allConfiguredHosts {
		o.hostTags[hostname] = tagPairsOf(universe.HostTags[hostname])
	}
	o.allProcessedHosts = o.allConfiguredHosts.Copy()
	o.initializeHostLookup()

	return o
}

// ClearRulesetCaches drops the per-ruleset precomputations only.
func (o *RulesetOptimizer) ClearRulesetCaches() {
	o.hostRulesetCache = make(map[rulesetCacheKey]map[ruleset.HostName][]interface{})
	o.serviceRulesetCache = make(map[rulesetCacheKey][]PreprocessedServiceRule)
}

// ClearCaches drops the host ruleset and matching host caches. Note that
// the service ruleset cache is deliberately not touched here; use
// ClearRulesetCaches for that.
func (o *RulesetOptimizer) ClearCaches() {
	o.hostRulesetCache = make(map[rulesetCacheKey]map[ruleset.HostName][]interface{})
	o.allMatchingHostsCache = make(map[conditionCacheKey]HostSet)
}

// AllProcessedHosts returns the set of all processed hosts.
func (o *RulesetOptimizer) AllProcessedHosts() HostSet {
	return o.allProcessedHosts
}

// SetAllProcessedHosts narrows the evaluation scope to the given hosts
// plus their cluster/node relatives. The folder lookup is invalidated
// because the scope of relevant hosts has changed; the per-ruleset caches
// are NOT implicitly invalidated, they are keyed separately.
func (o *RulesetOptimizer) SetAllProcessedHosts(hosts []ruleset.HostName) {
	o.allProcessedHosts = NewHostSet(hosts...)

	nodesAndClusters := NewHostSet()
	for hostname := range o.allProcessedHosts {
		nodesAndClusters.Update(NewHostSet(o.nodesOf[hostname]...))
		nodesAndClusters.Update(NewHostSet(o.clustersOf[hostname]...))
	}

	// Only add references to configured hosts
	o.allProcessedHosts.Update(nodesAndClusters.Intersect(o.allConfiguredHosts))

	o.folderHostLookup = make(map[folderCacheKey]HostSet)

	o.adjustProcessedHostsSimilarity()
}

func (o *RulesetOptimizer) adjustProcessedHostsSimilarity() {
	usedGroups := make(map[string]struct{})
	for hostname := range o.allProcessedHosts {
		usedGroups[o.hostGroupedRef[hostname]] = struct{}{}
	}

	if len(usedGroups) == 0 {
		o.processedHostsSimilarity = 1.0
		return
	}
	o.processedHostsSimilarity = float64(len(o.allProcessedHosts)) / float64(len(usedGroups))
}

// GetHostRuleset returns the hostname -> rule values map for the given
// ruleset, building and caching it on first use per ruleset identity.
func (o *RulesetOptimizer) GetHostRuleset(rs *ruleset.Ruleset, withForeignHosts bool) (map[ruleset.HostName][]interface{}, error) {
	cacheID := rulesetCacheKey{rulesetID: rs.ID, withForeignHosts: withForeignHosts}

	if cached, ok := o.hostRulesetCache[cacheID]; ok {
		return cached, nil
	}

	hostRuleset, err := o.convertHostRuleset(rs, withForeignHosts)
	if err != nil {
		return nil, err
	}
	o.hostRulesetCache[cacheID] = hostRuleset
	return hostRuleset, nil
}

// convertHostRuleset precomputes the host lookup map: instead of walking
// a rule list per query we compute a direct hostname based map of the
// matching rule values, preserving rule order.
func (o *RulesetOptimizer) convertHostRuleset(rs *ruleset.Ruleset, withForeignHosts bool) (map[ruleset.HostName][]interface{}, error) {
	hostValues := make(map[ruleset.HostName][]interface{})
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		if rule.IsDisabled() {
			continue
		}

		matching, err := o.AllMatchingHosts(&rule.Condition, withForeignHosts)
		if err != nil {
			return nil, err
		}
		for hostname := range matching {
			hostValues[hostname] = append(hostValues[hostname], rule.Value)
		}
	}
	return hostValues, nil
}

// GetServiceRuleset returns the preprocessed tuple list for the given
// service ruleset, building and caching it on first use.
func (o *RulesetOptimizer) GetServiceRuleset(rs *ruleset.Ruleset, withForeignHosts bool) ([]PreprocessedServiceRule, error) {
	cacheID := rulesetCacheKey{rulesetID: rs.ID, withForeignHosts: withForeignHosts}

	if cached, ok := o.serviceRulesetCache[cacheID]; ok {
		return cached, nil
	}

	converted, err := o.convertServiceRuleset(rs, withForeignHosts)
	if err != nil {
		return nil, err
	}
	o.serviceRulesetCache[cacheID] = converted
	return converted, nil
}

func (o *RulesetOptimizer) convertServiceRuleset(rs *ruleset.Ruleset, withForeignHosts bool) ([]PreprocessedServiceRule, error) {
	newRules := make([]PreprocessedServiceRule, 0, len(rs.Rules))
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		if rule.IsDisabled() {
			continue
		}

		// Directly compute the set of all matching hosts here, this
		// avoids recomputation later
		hosts, err := o.AllMatchingHosts(&rule.Condition, withForeignHosts)
		if err != nil {
			return nil, err
		}

		pattern, err := convertPatternList(rule.Condition.ServiceDescription)
		if err != nil {
			return nil, err
		}

		newRules = append(newRules, PreprocessedServiceRule{
			Value:                rule.Value,
			Hosts:                hosts,
			ServiceLabels:        rule.Condition.ServiceLabels,
			ServiceLabelsCacheID: rule.Condition.ServiceLabels.CacheID(),
			DescriptionCacheID:   rule.Condition.ServiceDescription.CacheID(),
			Pattern:              pattern,
		})
	}
	return newRules, nil
}

// AllMatchingHosts returns the set of hosts that match the given tag,
// label, host name and folder conditions.
func (o *RulesetOptimizer) AllMatchingHosts(condition *ruleset.Condition, withForeignHosts bool) (HostSet, error) {
	hostlist := condition.HostName
	tagConditions := condition.HostTags
	labelConditions := condition.HostLabels
	rulePath := condition.Folder()

	cacheID := conditionCacheKey{
		condition:        conditionCacheID(condition),
		withForeignHosts: withForeignHosts,
	}

	if cached, ok := o.allMatchingHostsCache[cacheID]; ok {
		return cached, nil
	}

	var validHosts HostSet
	if withForeignHosts {
		validHosts = o.allConfiguredHosts
	} else {
		validHosts = o.allProcessedHosts
	}

	// Thin out the valid hosts further. If the rule is located in a
	// folder we only need the intersection of the folder's hosts and the
	// previously determined valid hosts.
	validHosts = o.GetHostsWithinFolder(rulePath, withForeignHosts).Intersect(validHosts)

	if len(tagConditions) > 0 && hostlist == nil && len(labelConditions) == 0 {
		if matchedByTags, ok := o.matchHostsByTags(validHosts, tagConditions); ok {
			o.allMatchingHostsCache[cacheID] = matchedByTags
			return matchedByTags, nil
		}
	}

	matching := NewHostSet()
	onlySpecificHosts := hostlist.OnlyLiterals()

	switch {
	case hostlist != nil && len(hostlist.Entries) == 0 && !hostlist.Negate:
		// Empty host list -> nothing matches

	case len(tagConditions) == 0 && len(labelConditions) == 0 && hostlist == nil:
		// No conditions at all -> all valid hosts match
		matching = validHosts

	case len(tagConditions) == 0 && len(labelConditions) == 0 && onlySpecificHosts:
		// Only specific hosts -> we already have the matches
		matching = validHosts.IntersectNames(hostlist.LiteralNames())

	default:
		// With exact host restrictions we can thin out the hosts to check
		hostsToCheck := validHosts
		if onlySpecificHosts {
			hostsToCheck = validHosts.IntersectNames(hostlist.LiteralNames())
		}

		for hostname := range hostsToCheck {
			// When no tag matching is requested, do not filter by tags,
			// accept all hosts and filter only by the host list
			if len(tagConditions) > 0 && !o.matchesTagPairs(o.hostTags[hostname], tagConditions) {
				continue
			}

			if len(labelConditions) > 0 {
				hostLabels, err := o.LabelsOfHost(hostname)
				if err != nil {
					return nil, err
				}
				if !MatchesLabels(hostLabels, labelConditions) {
					continue
				}
			}

			matches, err := o.MatchesHostName(hostlist, hostname)
			if err != nil {
				return nil, err
			}
			if !matches {
				continue
			}

			matching.Add(hostname)
		}
	}

	o.allMatchingHostsCache[cacheID] = matching
	return matching, nil
}

// MatchesHostName evaluates a host name condition list for one hostname.
// The empty hostname is the generic agent host placeholder: it matches
// negated condition lists and nothing else.
func (o *RulesetOptimizer) MatchesHostName(hostEntries *ruleset.HostOrServiceConditions, hostname ruleset.HostName) (bool, error) {
	if hostEntries == nil {
		return true, nil
	}

	if hostname == "" { // generic agent host
		return hostEntries.Negate, nil
	}

	for _, entry := range hostEntries.Entries {
		if !entry.IsRegex && hostname == entry.Literal {
			return !hostEntries.Negate, nil
		}

		if entry.IsRegex {
			re, err := o.compiledRegex(entry.Regex)
			if err != nil {
				return false, err
			}
			if re.MatchString(hostname) {
				return !hostEntries.Negate, nil
			}
		}
	}

	return hostEntries.Negate, nil
}

// MatchesHostTags reports whether a host's tag assignments satisfy all
// required tag group conditions.
func (o *RulesetOptimizer) MatchesHostTags(hostTags map[ruleset.TaggroupID]ruleset.TagID, required ruleset.TagConditions) bool {
	return o.matchesTagPairs(tagPairsOf(hostTags), required)
}

func (o *RulesetOptimizer) matchesTagPairs(hostTags tagPairSet, required ruleset.TagConditions) bool {
	for taggroupID, tagCondition := range required {
		if !matchesTagCondition(taggroupID, tagCondition, hostTags) {
			return false
		}
	}
	return true
}

// matchesTagCondition evaluates a single tag group condition against the
// host's tag pair set. Hosts carrying a "no tag" choice for a group have
// the empty tag id recorded for that group, which is what TagAbsent
// matches against.
func matchesTagCondition(taggroupID ruleset.TaggroupID, condition ruleset.TagCondition, hostTags tagPairSet) bool {
	switch c := condition.(type) {
	case ruleset.TagIs:
		return hostTags.has(tagPair{Group: taggroupID, Tag: c.Tag})
	case ruleset.TagAbsent:
		return hostTags.has(tagPair{Group: taggroupID, Tag: ""})
	case ruleset.TagIsNot:
		return !hostTags.has(tagPair{Group: taggroupID, Tag: c.Tag})
	case ruleset.TagOneOf:
		for _, tag := range c.Tags {
			if hostTags.has(tagPair{Group: taggroupID, Tag: tag}) {
				return true
			}
		}
		return false
	case ruleset.TagNoneOf:
		for _, tag := range c.Tags {
			if hostTags.has(tagPair{Group: taggroupID, Tag: tag}) {
				return false
			}
		}
		return true
	}
	// The variant set is closed; reaching this means a new condition
	// type was added without updating the matcher.
	panic("unhandled tag condition variant")
}

// matchHostsByTags is the tag similarity based host set computation. It
// only handles literal and $ne conditions; $or/$nor make it report false
// so AllMatchingHosts proceeds with the general path.
func (o *RulesetOptimizer) matchHostsByTags(validHosts HostSet, tagConditions ruleset.TagConditions) (HostSet, bool) {
	positiveMatchTags := make(tagPairSet)
	negativeMatchTags := make(tagPairSet)
	for taggroupID, tagCondition := range tagConditions {
		switch c := tagCondition.(type) {
		case ruleset.TagIs:
			positiveMatchTags[tagPair{Group: taggroupID, Tag: c.Tag}] = struct{}{}
		case ruleset.TagAbsent:
			positiveMatchTags[tagPair{Group: taggroupID, Tag: ""}] = struct{}{}
		case ruleset.TagIsNot:
			negativeMatchTags[tagPair{Group: taggroupID, Tag: c.Tag}] = struct{}{}
		default:
			// $or / $nor can not be optimized this way
			return nil, false
		}
	}

	matching := NewHostSet()

	if o.processedHostsSimilarity < similarityThreshold {
		// Hosts are mostly tag-distinct: test each host directly
		for hostname := range validHosts {
			hostTags := o.hostTags[hostname]
			if positiveMatchTags.isSubsetOf(hostTags) && !negativeMatchTags.intersects(hostTags) {
				matching.Add(hostname)
			}
		}
		return matching, true
	}

	// Many hosts share identical tag sets: test one representative per
	// distinct tag group and add the entire group on a match
	checkedHosts := NewHostSet()
	for hostname := range validHosts {
		if checkedHosts.Has(hostname) {
			continue
		}

		hostsWithSameTags := o.hostsGroupedByTags[o.hostGroupedRef[hostname]].Intersect(validHosts)
		checkedHosts.Update(hostsWithSameTags)

		hostTags := o.hostTags[hostname]
		if positiveMatchTags.isSubsetOf(hostTags) && !negativeMatchTags.intersects(hostTags) {
			matching.Update(hostsWithSameTags)
		}
	}
	return matching, true
}

// GetHostsWithinFolder returns the processed (or, with foreign hosts, the
// configured) hosts whose folder path starts with the given path.
func (o *RulesetOptimizer) GetHostsWithinFolder(folderPath string, withForeignHosts bool) HostSet {
	cacheID := folderCacheKey{withForeignHosts: withForeignHosts, folder: folderPath}
	if cached, ok := o.folderHostLookup[cacheID]; ok {
		return cached
	}

	relevantHosts := o.allProcessedHosts
	if withForeignHosts {
		relevantHosts = o.allConfiguredHosts
	}

	hostsInFolder := NewHostSet()
	for hostname := range relevantHosts {
		hostPath, ok := o.hostPaths[hostname]
		if !ok {
			hostPath = "/"
		}
		if strings.HasPrefix(hostPath, folderPath) {
			hostsInFolder.Add(hostname)
		}
	}

	o.folderHostLookup[cacheID] = hostsInFolder
	return hostsInFolder
}

func (o *RulesetOptimizer) initializeHostLookup() {
	for hostname := range o.allConfiguredHosts {
		groupRef := tagSignature(o.hostTags[hostname])
		group, ok := o.hostsGroupedByTags[groupRef]
		if !ok {
			group = NewHostSet()
			o.hostsGroupedByTags[groupRef] = group
		}
		group.Add(hostname)
		o.hostGroupedRef[hostname] = groupRef
	}
}

// tagSignature is the full sorted tag set of a host, used to group
// tag-identical hosts.
func tagSignature(tags tagPairSet) string {
	parts := make([]string, 0, len(tags))
	for pair := range tags {
		parts = append(parts, pair.Group+"="+pair.Tag)
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

func (o *RulesetOptimizer) compiledRegex(pattern string) (*regexp.Regexp, error) {
	if re, ok := o.regexCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, logging.NewError(logging.ErrorTypeConfig, "invalid regex in condition", err,
			map[string]interface{}{"pattern": pattern})
	}
	o.regexCache[pattern] = re
	return re, nil
}

// MatchesLabels evaluates label conditions against an object's labels.
// Absent keys fail a literal requirement but pass a negated one: absence
// is not equal to the negated value.
func MatchesLabels(objectLabels ruleset.Labels, required ruleset.LabelConditions) bool {
	for key, spec := range required {
		value, ok := objectLabels[key]
		if spec.Negate {
			if ok && value == spec.Value {
				return false
			}
			continue
		}
		if !ok || value != spec.Value {
			return false
		}
	}
	return true
}

// CacheStats is a snapshot of the optimizer's cache sizes, exposed by the
// dashboard.
type CacheStats struct {
	ProcessedHosts        int     `json:"processed_hosts"`
	ConfiguredHosts       int     `json:"configured_hosts"`
	Similarity            float64 `json:"similarity"`
	HostRulesetEntries    int     `json:"host_ruleset_entries"`
	ServiceRulesetEntries int     `json:"service_ruleset_entries"`
	MatchingHostsEntries  int     `json:"matching_hosts_entries"`
	FolderLookupEntries   int     `json:"folder_lookup_entries"`
	ServiceMatchEntries   int     `json:"service_match_entries"`
}

func (o *RulesetOptimizer) stats() CacheStats {
	return CacheStats{
		ProcessedHosts:        len(o.allProcessedHosts),
		ConfiguredHosts:       len(o.allConfiguredHosts),
		Similarity:            o.processedHostsSimilarity,
		HostRulesetEntries:    len(o.hostRulesetCache),
		ServiceRulesetEntries: len(o.serviceRulesetCache),
		MatchingHostsEntries:  len(o.allMatchingHostsCache),
		FolderLookupEntries:   len(o.folderHostLookup),
	}
}
