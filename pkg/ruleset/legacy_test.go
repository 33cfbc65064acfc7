// argus/pkg/ruleset/legacy_test.go

package ruleset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kwalsh/argus/pkg/logging"
)

func testTransformer() *LegacyTransformer {
	return NewLegacyTransformer(map[TagID]TaggroupID{
		"prod": "crit",
		"dev":  "crit",
		"lan":  "net",
	})
}

func TestTransformHostRule(t *testing.T) {
	// (value, tag_list, host_list)
	rule, err := testTransformer().Transform([]interface{}{
		"some-value",
		[]interface{}{"prod", "!lan"},
		[]interface{}{"alpha", "~web.*"},
	}, false, false)
	require.NoError(t, err)

	assert.Equal(t, "some-value", rule.Value)
	assert.Equal(t, TagConditions{
		"crit": TagIs{Tag: "prod"},
		"net":  TagIsNot{Tag: "lan"},
	}, rule.Condition.HostTags)
	require.NotNil(t, rule.Condition.HostName)
	assert.Equal(t, []ConditionEntry{
		{Literal: "alpha"},
		{Regex: "web.*", IsRegex: true},
	}, rule.Condition.HostName.Entries)
}

func TestTransformBinaryRule(t *testing.T) {
	rule, err := testTransformer().Transform([]interface{}{
		"@negate",
		[]interface{}{"alpha"},
	}, false, true)
	require.NoError(t, err)
	assert.Equal(t, false, rule.Value)

	rule, err = testTransformer().Transform([]interface{}{
		[]interface{}{"alpha"},
	}, false, true)
	require.NoError(t, err)
	assert.Equal(t, true, rule.Value)
}

func TestTransformServiceRule(t *testing.T) {
	rule, err := testTransformer().Transform([]interface{}{
		"value",
		[]interface{}{"@all"},
		[]interface{}{"CPU", "Memory"},
	}, true, false)
	require.NoError(t, err)

	assert.Nil(t, rule.Condition.HostName) // ALL_HOSTS
	require.NotNil(t, rule.Condition.ServiceDescription)
	assert.Equal(t, []ConditionEntry{
		{Regex: "CPU", IsRegex: true},
		{Regex: "Memory", IsRegex: true},
	}, rule.Condition.ServiceDescription.Entries)
}

func TestTransformNegatedHostList(t *testing.T) {
	rule, err := testTransformer().Transform([]interface{}{
		"value",
		[]interface{}{"!alpha", "!beta", "@all"},
	}, false, false)
	require.NoError(t, err)
	require.NotNil(t, rule.Condition.HostName)
	assert.True(t, rule.Condition.HostName.Negate)
	assert.Equal(t, []string{"alpha", "beta"}, rule.Condition.HostName.LiteralNames())
}

func TestTransformFolderTag(t *testing.T) {
	rule, err := testTransformer().Transform([]interface{}{
		"value",
		[]interface{}{"/dc1/+", "prod"},
		[]interface{}{"@all"},
	}, false, false)
	require.NoError(t, err)
	assert.Equal(t, "/dc1/", rule.Condition.HostFolder)
	assert.Equal(t, TagConditions{"crit": TagIs{Tag: "prod"}}, rule.Condition.HostTags)
}

func TestTransformOptionsAndUnknownTag(t *testing.T) {
	rule, err := testTransformer().Transform([]interface{}{
		"value",
		[]interface{}{"snmp"},
		[]interface{}{"@all"},
		map[string]interface{}{"disabled": true, "comment": "legacy"},
	}, false, false)
	require.NoError(t, err)
	assert.True(t, rule.IsDisabled())
	assert.Equal(t, "legacy", rule.Options.Comment)
	// Tags without a known group are treated as aux tags
	assert.Equal(t, TagConditions{"snmp": TagIs{Tag: "snmp"}}, rule.Condition.HostTags)
}

func TestTransformRejectsLegacySentinels(t *testing.T) {
	for _, sentinel := range []string{"@cluster", "@physical"} {
		_, err := testTransformer().Transform([]interface{}{
			"value",
			[]interface{}{sentinel},
		}, false, false)
		require.Error(t, err)

		var argusErr *logging.ArgusError
		require.True(t, errors.As(err, &argusErr))
		assert.Equal(t, logging.ErrorTypeLegacy, argusErr.Type)
	}
}

func TestTransformRejectsMixedNegation(t *testing.T) {
	_, err := testTransformer().Transform([]interface{}{
		"value",
		[]interface{}{"@all"},
		[]interface{}{"!CPU", "Memory"},
	}, true, false)
	assert.Error(t, err)
}

func TestGetTagToGroupMap(t *testing.T) {
	prodID := TagID("prod")
	devID := TagID("dev")
	config := TagConfig{
		AuxTags: []AuxTag{{ID: "snmp"}},
		TagGroups: []TagGroup{
			{ID: "crit", Tags: []GroupedTag{{ID: &prodID}, {ID: &devID}, {ID: nil}}},
		},
	}

	tagToGroup := GetTagToGroupMap(config)
	assert.Equal(t, map[TagID]TaggroupID{
		"snmp": "snmp",
		"prod": "crit",
		"dev":  "crit",
	}, tagToGroup)
}
