// argus/pkg/matcher/labels_of.go

package matcher

import (
	"kwalsh/argus/pkg/labels"
	"kwalsh/argus/pkg/ruleset"
)

// LabelSources maps an effective label key to the source it came from.
type LabelSources map[string]string

// LabelsOfHost returns the effective set of host labels from all
// available sources:
//
//  1. Discovered labels
//  2. Ruleset "Host labels"
//  3. Explicit labels (via host/folder config)
//  4. Builtin labels
//
// Last one wins.
func (o *RulesetOptimizer) LabelsOfHost(hostname ruleset.HostName) (ruleset.Labels, error) {
	result := ruleset.Labels{}

	discovered, err := o.discoveredLabelsOfHost(hostname)
	if err != nil {
		return nil, err
	}
	updateLabels(result, discovered)

	rulesetLabels, err := o.rulesetLabelsOfHost(hostname)
	if err != nil {
		return nil, err
	}
	updateLabels(result, rulesetLabels)

	updateLabels(result, o.labelManager.ExplicitHostLabels[hostname])

	builtin, err := o.builtinLabelsOfHost()
	if err != nil {
		return nil, err
	}
	updateLabels(result, builtin)

	return result, nil
}

// LabelSourcesOfHost returns the effective host label keys with their
// source identifier instead of the value. Order and merging logic follows
// LabelsOfHost.
func (o *RulesetOptimizer) LabelSourcesOfHost(hostname ruleset.HostName) (LabelSources, error) {
	sources := LabelSources{}

	discovered, err := o.discoveredLabelsOfHost(hostname)
	if err != nil {
		return nil, err
	}
	for key := range discovered {
		sources[key] = "discovered"
	}

	builtin, err := o.builtinLabelsOfHost()
	if err != nil {
		return nil, err
	}
	for key := range builtin {
		sources[key] = "discovered"
	}

	rulesetLabels, err := o.rulesetLabelsOfHost(hostname)
	if err != nil {
		return nil, err
	}
	for key := range rulesetLabels {
		sources[key] = "ruleset"
	}

	for key := range o.labelManager.ExplicitHostLabels[hostname] {
		sources[key] = "explicit"
	}

	return sources, nil
}

// LabelsOfService returns the effective set of service labels:
//
//  1. Discovered labels
//  2. Ruleset "Service labels"
//
// Last one wins.
func (o *RulesetOptimizer) LabelsOfService(hostname ruleset.HostName, serviceDesc ruleset.ServiceName) (ruleset.Labels, error) {
	result := ruleset.Labels{}

	discovered, err := o.discoveredLabelsOfService(hostname, serviceDesc)
	if err != nil {
		return nil, err
	}
	updateLabels(result, discovered)

	rulesetLabels, err := o.rulesetLabelsOfService(hostname, serviceDesc)
	if err != nil {
		return nil, err
	}
	updateLabels(result, rulesetLabels)

	return result, nil
}

// LabelSourcesOfService returns the effective service label keys with
// their source identifier instead of the value.
func (o *RulesetOptimizer) LabelSourcesOfService(hostname ruleset.HostName, serviceDesc ruleset.ServiceName) (LabelSources, error) {
	sources := LabelSources{}

	discovered, err := o.discoveredLabelsOfService(hostname, serviceDesc)
	if err != nil {
		return nil, err
	}
	for key := range discovered {
		sources[key] = "discovered"
	}

	rulesetLabels, err := o.rulesetLabelsOfService(hostname, serviceDesc)
	if err != nil {
		return nil, err
	}
	for key := range rulesetLabels {
		sources[key] = "ruleset"
	}

	return sources, nil
}

// rulesetLabelsOfHost evaluates the host label ruleset against this same
// matcher. The recursion is bounded: host label rules must not carry
// label conditions themselves.
func (o *RulesetOptimizer) rulesetLabelsOfHost(hostname ruleset.HostName) (ruleset.Labels, error) {
	matchObject := NewHostMatchObject(hostname)
	merged, err := o.matcher.GetHostRulesetMergedDict(matchObject, o.labelManager.HostLabelRules)
	if err != nil {
		return nil, err
	}
	return stringValues(merged), nil
}

func (o *RulesetOptimizer) rulesetLabelsOfService(hostname ruleset.HostName, serviceDesc ruleset.ServiceName) (ruleset.Labels, error) {
	matchObject := NewServiceMatchObject(hostname, serviceDesc, nil)
	merged, err := o.matcher.GetServiceRulesetMergedDict(matchObject, o.labelManager.ServiceLabelRules)
	if err != nil {
		return nil, err
	}
	return stringValues(merged), nil
}

func (o *RulesetOptimizer) discoveredLabelsOfHost(hostname ruleset.HostName) (ruleset.Labels, error) {
	stored, err := o.labelManager.DiscoveredHostLabels.Load(hostname)
	if err != nil {
		return nil, err
	}
	return labels.Values(stored), nil
}

func (o *RulesetOptimizer) discoveredLabelsOfService(hostname ruleset.HostName, serviceDesc ruleset.ServiceName) (ruleset.Labels, error) {
	stored, err := o.labelManager.DiscoveredServiceLabels.Load(hostname, serviceDesc)
	if err != nil {
		return nil, err
	}
	return labels.Values(stored), nil
}

func (o *RulesetOptimizer) builtinLabelsOfHost() (ruleset.Labels, error) {
	stored, err := o.labelManager.BuiltinHostLabels.Load()
	if err != nil {
		return nil, err
	}
	return labels.Values(stored), nil
}

func updateLabels(dst, src ruleset.Labels) {
	for key, value := range src {
		dst[key] = value
	}
}

// stringValues keeps the string entries of a merged rule value dict.
// Label rulesets carry string to string mappings only.
func stringValues(merged map[string]interface{}) ruleset.Labels {
	result := make(ruleset.Labels, len(merged))
	for key, value := range merged {
		if s, ok := value.(string); ok {
			result[key] = s
		}
	}
	return result
}
