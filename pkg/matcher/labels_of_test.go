// argus/pkg/matcher/labels_of_test.go

package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kwalsh/argus/pkg/labels"
	"kwalsh/argus/pkg/ruleset"
)

func testLabelManager() *labels.Manager {
	manager := labels.NewManager()
	manager.DiscoveredHostLabels = labels.StaticHostStore{
		"h1": {
			"os":     {Value: "linux", PluginName: "lnx_discovery"},
			"shadow": {Value: "from-discovery"},
		},
	}
	manager.DiscoveredServiceLabels = labels.StaticServiceStore{
		"h1": {
			"CPU load": {"cores": {Value: "8", PluginName: "cpu"}},
		},
	}
	manager.BuiltinHostLabels = labels.StaticStore{
		"site": {Value: "central"},
	}
	manager.ExplicitHostLabels = map[ruleset.HostName]ruleset.Labels{
		"h1": {"owner": "team-a", "shadow": "from-explicit"},
	}
	manager.HostLabelRules = ruleset.NewRuleset("host_labels:v1", []ruleset.Rule{
		{Value: map[string]interface{}{"env": "prod"}, Condition: ruleset.Condition{
			HostTags: ruleset.TagConditions{"crit": ruleset.TagIs{Tag: "prod"}},
		}},
	})
	manager.ServiceLabelRules = ruleset.NewRuleset("service_labels:v1", []ruleset.Rule{
		{Value: map[string]interface{}{"tier": "compute"}, Condition: ruleset.Condition{
			ServiceDescription: &ruleset.HostOrServiceConditions{
				Entries: []ruleset.ConditionEntry{{Regex: "^CPU", IsRegex: true}},
			},
		}},
	})
	return manager
}

func TestLabelsOfHost(t *testing.T) {
	m := NewRulesetMatcher(testUniverse(), testLabelManager())

	hostLabels, err := m.LabelsOfHost("h1")
	require.NoError(t, err)
	assert.Equal(t, ruleset.Labels{
		"os":     "linux",
		"env":    "prod",          // from the host label ruleset (crit=prod)
		"owner":  "team-a",        // explicit
		"shadow": "from-explicit", // explicit overrides discovered
		"site":   "central",       // builtin
	}, hostLabels)

	// h2 is crit=dev, the ruleset label does not apply
	hostLabels, err = m.LabelsOfHost("h2")
	require.NoError(t, err)
	assert.Equal(t, ruleset.Labels{"site": "central"}, hostLabels)
}

func TestLabelSourcesOfHost(t *testing.T) {
	m := NewRulesetMatcher(testUniverse(), testLabelManager())

	sources, err := m.LabelSourcesOfHost("h1")
	require.NoError(t, err)
	assert.Equal(t, LabelSources{
		"os":     "discovered",
		"site":   "discovered", // builtin labels report as discovered
		"env":    "ruleset",
		"owner":  "explicit",
		"shadow": "explicit",
	}, sources)
}

func TestLabelsOfService(t *testing.T) {
	m := NewRulesetMatcher(testUniverse(), testLabelManager())

	serviceLabels, err := m.LabelsOfService("h1", "CPU load")
	require.NoError(t, err)
	assert.Equal(t, ruleset.Labels{"cores": "8", "tier": "compute"}, serviceLabels)

	serviceLabels, err = m.LabelsOfService("h1", "Memory")
	require.NoError(t, err)
	assert.Empty(t, serviceLabels)
}

func TestLabelSourcesOfService(t *testing.T) {
	m := NewRulesetMatcher(testUniverse(), testLabelManager())

	sources, err := m.LabelSourcesOfService("h1", "CPU load")
	require.NoError(t, err)
	assert.Equal(t, LabelSources{"cores": "discovered", "tier": "ruleset"}, sources)
}

// Host label conditions are evaluated against the effective labels, which
// themselves include ruleset labels.
func TestHostLabelConditionsSeeRulesetLabels(t *testing.T) {
	m := NewRulesetMatcher(testUniverse(), testLabelManager())

	rs := ruleset.NewRuleset("rs:v1", []ruleset.Rule{
		{Value: "X", Condition: ruleset.Condition{
			HostLabels: ruleset.LabelConditions{"env": {Value: "prod"}},
		}},
	})

	values, err := m.GetHostRulesetValues(NewHostMatchObject("h1"), rs)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"X"}, values)

	values, err = m.GetHostRulesetValues(NewHostMatchObject("h2"), rs)
	require.NoError(t, err)
	assert.Empty(t, values)
}
