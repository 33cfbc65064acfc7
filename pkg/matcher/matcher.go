// argus/pkg/matcher/matcher.go

// Package matcher implements ruleset matching for hosts and services:
// given a declarative rule list and a host universe snapshot it answers
// which rule values apply to a host or host/service pair. Precomputation
// and caching make the queries cheap enough to run on every check
// evaluation across tens of thousands of hosts and services.
package matcher

import (
	"strings"

	"kwalsh/argus/pkg/labels"
	"kwalsh/argus/pkg/logging"
	"kwalsh/argus/pkg/ruleset"
)

// RulesetMatcher performs matching on host and service rulesets.
//
// There is some duplicate logic for host and service rulesets. This has
// been kept for performance reasons: service ruleset matching happens
// very often in large setups. Be careful when working here.
type RulesetMatcher struct {
	optimizer *RulesetOptimizer

	serviceMatchCache map[serviceMatchCacheKey]bool
}

type serviceMatchCacheKey struct {
	service              serviceCacheID
	descriptionCacheID   string
	labelsConditionCache string
}

// NewRulesetMatcher builds a matcher for one configuration snapshot.
// Construct a fresh matcher for every new configuration load; the caches
// are never evicted within one lifecycle.
func NewRulesetMatcher(universe HostUniverse, labelManager *labels.Manager) *RulesetMatcher {
	if labelManager == nil {
		labelManager = labels.NewManager()
	}
	m := &RulesetMatcher{
		serviceMatchCache: make(map[serviceMatchCacheKey]bool),
	}
	m.optimizer = newRulesetOptimizer(m, universe, labelManager)
	return m
}

// Optimizer exposes the precomputation engine, e.g. for scope control via
// SetAllProcessedHosts and for explicit cache clearing.
func (m *RulesetMatcher) Optimizer() *RulesetOptimizer {
	return m.optimizer
}

// IsMatchingHostRuleset computes the outcome of a binary host ruleset.
// Only the first matching rule of the host counts; no match means "do not
// apply".
func (m *RulesetMatcher) IsMatchingHostRuleset(matchObject MatchObject, rs *ruleset.Ruleset) (bool, error) {
	values, err := m.GetHostRulesetValues(matchObject, rs)
	if err != nil {
		return false, err
	}
	for _, value := range values {
		return binaryValue(value, rs)
	}
	return false, nil // no match, do not apply
}

// GetHostRulesetMergedDict merges all matched dict values of a host
// ruleset. The first rule to set a key defines its final value.
func (m *RulesetMatcher) GetHostRulesetMergedDict(matchObject MatchObject, rs *ruleset.Ruleset) (map[string]interface{}, error) {
	values, err := m.GetHostRulesetValues(matchObject, rs)
	if err != nil {
		return nil, err
	}
	return boilDownParameters(values, rs)
}

// GetHostRulesetValues returns the values of the rules matching the host,
// in rule order.
func (m *RulesetMatcher) GetHostRulesetValues(matchObject MatchObject, rs *ruleset.Ruleset) ([]interface{}, error) {
	if matchObject.HostName == "" {
		return nil, logging.NewError(logging.ErrorTypeMatch,
			"host ruleset queries require a host name", nil, nil)
	}

	// When the requested host is part of the local site's configuration
	// only the site's hosts are used for processing the rules
	withForeignHosts := !m.optimizer.AllProcessedHosts().Has(matchObject.HostName)

	optimized, err := m.optimizer.GetHostRuleset(rs, withForeignHosts)
	if err != nil {
		return nil, err
	}
	return optimized[matchObject.HostName], nil
}

// IsMatchingServiceRuleset computes the outcome of a binary service
// ruleset. Only the first matching rule counts.
func (m *RulesetMatcher) IsMatchingServiceRuleset(matchObject MatchObject, rs *ruleset.Ruleset) (bool, error) {
	values, err := m.GetServiceRulesetValues(matchObject, rs)
	if err != nil {
		return false, err
	}
	for _, value := range values {
		return binaryValue(value, rs)
	}
	return false, nil // no match, do not apply
}

// GetServiceRulesetMergedDict merges all matched dict values of a service
// ruleset. The first rule to set a key defines its final value.
func (m *RulesetMatcher) GetServiceRulesetMergedDict(matchObject MatchObject, rs *ruleset.Ruleset) (map[string]interface{}, error) {
	values, err := m.GetServiceRulesetValues(matchObject, rs)
	if err != nil {
		return nil, err
	}
	return boilDownParameters(values, rs)
}

// GetServiceRulesetValues returns the values of the rules matching the
// host/service pair, in rule order. Match decisions per service and
// condition are memoized across rulesets.
func (m *RulesetMatcher) GetServiceRulesetValues(matchObject MatchObject, rs *ruleset.Ruleset) ([]interface{}, error) {
	if matchObject.ServiceDescription == "" {
		return nil, logging.NewError(logging.ErrorTypeMatch,
			"service ruleset queries require a service description", nil, nil)
	}

	withForeignHosts := !m.optimizer.AllProcessedHosts().Has(matchObject.HostName)

	optimized, err := m.optimizer.GetServiceRuleset(rs, withForeignHosts)
	if err != nil {
		return nil, err
	}

	var values []interface{}
	for i := range optimized {
		rule := &optimized[i]
		if !rule.Hosts.Has(matchObject.HostName) {
			continue
		}

		cacheID := serviceMatchCacheKey{
			service:              matchObject.serviceCacheID,
			descriptionCacheID:   rule.DescriptionCacheID,
			labelsConditionCache: rule.ServiceLabelsCacheID,
		}

		match, ok := m.serviceMatchCache[cacheID]
		if !ok {
			match = m.matchesServiceConditions(rule, matchObject)
			m.serviceMatchCache[cacheID] = match
		}

		if match {
			values = append(values, rule.Value)
		}
	}
	return values, nil
}

func (m *RulesetMatcher) matchesServiceConditions(rule *PreprocessedServiceRule, matchObject MatchObject) bool {
	if !rule.Pattern.Matches(matchObject.ServiceDescription) {
		return false
	}
	if len(rule.ServiceLabels) > 0 && !MatchesLabels(matchObject.ServiceLabels, rule.ServiceLabels) {
		return false
	}
	return true
}

// GetValuesForGenericAgent computes the rule values applicable to a
// "generic" host: a fictitious host with no name and no tags. It matches
// all rules that do not require specific hosts or tags, including rules
// that only exclude specific hosts or tags.
func (m *RulesetMatcher) GetValuesForGenericAgent(rs *ruleset.Ruleset, pathForRuleMatching string) ([]interface{}, error) {
	var entries []interface{}
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		if rule.IsDisabled() {
			continue
		}

		cond := &rule.Condition
		if cond.HostFolder != "" && !strings.HasPrefix(pathForRuleMatching, cond.HostFolder) {
			continue
		}

		if len(cond.HostTags) > 0 && !m.optimizer.matchesTagPairs(tagPairSet{}, cond.HostTags) {
			continue
		}

		if len(cond.HostLabels) > 0 && !MatchesLabels(ruleset.Labels{}, cond.HostLabels) {
			continue
		}

		matches, err := m.optimizer.MatchesHostName(cond.HostName, "")
		if err != nil {
			return nil, err
		}
		if !matches {
			continue
		}

		entries = append(entries, rule.Value)
	}
	return entries, nil
}

// LabelsOfHost and friends expose the effective label computation of the
// optimizer on the public matcher.
func (m *RulesetMatcher) LabelsOfHost(hostname ruleset.HostName) (ruleset.Labels, error) {
	return m.optimizer.LabelsOfHost(hostname)
}

func (m *RulesetMatcher) LabelSourcesOfHost(hostname ruleset.HostName) (LabelSources, error) {
	return m.optimizer.LabelSourcesOfHost(hostname)
}

func (m *RulesetMatcher) LabelsOfService(hostname ruleset.HostName, serviceDesc ruleset.ServiceName) (ruleset.Labels, error) {
	return m.optimizer.LabelsOfService(hostname, serviceDesc)
}

func (m *RulesetMatcher) LabelSourcesOfService(hostname ruleset.HostName, serviceDesc ruleset.ServiceName) (LabelSources, error) {
	return m.optimizer.LabelSourcesOfService(hostname, serviceDesc)
}

// Stats returns a snapshot of the cache sizes for observability.
func (m *RulesetMatcher) Stats() CacheStats {
	stats := m.optimizer.stats()
	stats.ServiceMatchEntries = len(m.serviceMatchCache)
	return stats
}

// binaryValue checks that a binary ruleset really carries boolean values.
// A non-boolean value is a configuration error, not a match miss.
func binaryValue(value interface{}, rs *ruleset.Ruleset) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, logging.NewError(logging.ErrorTypeConfig,
			"binary ruleset carries a non-boolean value", nil,
			map[string]interface{}{"ruleset": rs.ID, "value": value})
	}
	return b, nil
}

// boilDownParameters folds matched dict values in rule order such that
// the first rule setting a key wins.
func boilDownParameters(values []interface{}, rs *ruleset.Ruleset) (map[string]interface{}, error) {
	merged := map[string]interface{}{}
	for _, value := range values {
		dict, ok := value.(map[string]interface{})
		if !ok {
			return nil, logging.NewError(logging.ErrorTypeConfig,
				"merged-dict ruleset carries a non-dict value", nil,
				map[string]interface{}{"ruleset": rs.ID, "value": value})
		}
		for key, entry := range dict {
			if _, exists := merged[key]; !exists {
				merged[key] = entry
			}
		}
	}
	return merged, nil
}
