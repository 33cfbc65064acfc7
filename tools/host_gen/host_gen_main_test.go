// argus/tools/host_gen/host_gen_main_test.go

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kwalsh/argus/pkg/ruleset"
)

func TestParseFlags(t *testing.T) {
	// Test case 1: Default values
	numHosts, numRules, universeFile, rulesetFile := parseFlags([]string{})
	assert.Equal(t, 1000, numHosts)
	assert.Equal(t, 100, numRules)
	assert.Equal(t, "generated_universe.json", universeFile)
	assert.Equal(t, "generated_ruleset.json", rulesetFile)

	// Test case 2: Custom values
	numHosts, numRules, universeFile, rulesetFile = parseFlags(
		[]string{"-hosts", "50", "-rules", "10", "-universe", "u.json", "-ruleset", "r.json"})
	assert.Equal(t, 50, numHosts)
	assert.Equal(t, 10, numRules)
	assert.Equal(t, "u.json", universeFile)
	assert.Equal(t, "r.json", rulesetFile)
}

func TestGenerateUniverse(t *testing.T) {
	universe := generateUniverse(25)

	assert.Len(t, universe.AllConfiguredHosts, 25)
	for _, hostname := range universe.AllConfiguredHosts {
		hostTags, ok := universe.HostTags[hostname]
		require.True(t, ok)
		assert.Len(t, hostTags, len(tagGroups))

		path, ok := universe.HostPaths[hostname]
		require.True(t, ok)
		assert.Contains(t, folders, path)
	}
}

func TestGenerateRuleset(t *testing.T) {
	universe := generateUniverse(10)
	rs := generateRuleset("test:v1", 20, &universe)

	assert.Equal(t, "test:v1", rs.ID)
	assert.Len(t, rs.Rules, 20)
	for i, rule := range rs.Rules {
		assert.Equal(t, fmt.Sprintf("rule-%d", i+1), rule.ID)
		assert.NotNil(t, rule.Value)
	}
}

// Generated rulesets must survive a trip through the parser.
func TestGeneratedRulesetParses(t *testing.T) {
	universe := generateUniverse(10)
	rs := generateRuleset("test:v1", 50, &universe)

	path := filepath.Join(t.TempDir(), "ruleset.json")
	require.NoError(t, writeJSONFile(rs, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	parsed, err := ruleset.Parse(data)
	require.NoError(t, err)
	assert.Len(t, parsed.Rules, 50)
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeJSONFile(map[string]string{"a": "b"}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"a": "b"`)
}
