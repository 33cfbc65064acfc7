// argus/pkg/matcher/dashboard_test.go

package matcher

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kwalsh/argus/pkg/labels"
	"kwalsh/argus/pkg/ruleset"
)

func testDashboard(t *testing.T) *Dashboard {
	t.Helper()
	m := NewRulesetMatcher(testUniverse(), labels.NewManager())
	d := NewDashboard(m, 8090, time.Second)
	d.RegisterRuleset(ruleset.NewRuleset("rs:v1", []ruleset.Rule{
		hostTagRule("A", "crit", "prod"),
		{Value: "B", Condition: ruleset.Condition{}},
	}))
	return d
}

func TestNewDashboard(t *testing.T) {
	m := NewRulesetMatcher(testUniverse(), labels.NewManager())
	dashboard := NewDashboard(m, 8090, time.Second)

	assert.NotNil(t, dashboard)
	assert.Equal(t, m, dashboard.matcher)
	assert.Equal(t, 8090, dashboard.port)
	assert.Equal(t, time.Second, dashboard.updateInterval)
	assert.NotNil(t, dashboard.clients)
}

func TestHandleStats(t *testing.T) {
	dashboard := testDashboard(t)

	req, err := http.NewRequest("GET", "/stats", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(dashboard.handleStats).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var stats CacheStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.ConfiguredHosts)
}

func TestHandleMatchHost(t *testing.T) {
	dashboard := testDashboard(t)

	req, err := http.NewRequest("GET", "/match?ruleset=rs:v1&host=h1", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(dashboard.handleMatch).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var result struct {
		Ruleset string        `json:"ruleset"`
		Host    string        `json:"host"`
		Values  []interface{} `json:"values"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, "rs:v1", result.Ruleset)
	assert.Equal(t, []interface{}{"A", "B"}, result.Values)
}

func TestHandleMatchService(t *testing.T) {
	dashboard := testDashboard(t)
	dashboard.RegisterRuleset(ruleset.NewRuleset("services:v1", []ruleset.Rule{
		{Value: "X", Condition: ruleset.Condition{
			ServiceDescription: &ruleset.HostOrServiceConditions{
				Entries: []ruleset.ConditionEntry{{Regex: "^CPU", IsRegex: true}},
			},
		}},
	}))

	req, err := http.NewRequest("GET", "/match?ruleset=services:v1&host=h1&service=CPU+load", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(dashboard.handleMatch).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var result struct {
		Values []interface{} `json:"values"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, []interface{}{"X"}, result.Values)
}

func TestHandleMatchUnknownRuleset(t *testing.T) {
	dashboard := testDashboard(t)

	req, err := http.NewRequest("GET", "/match?ruleset=nope&host=h1", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(dashboard.handleMatch).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleMatchMissingHost(t *testing.T) {
	dashboard := testDashboard(t)

	req, err := http.NewRequest("GET", "/match?ruleset=rs:v1", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(dashboard.handleMatch).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSetMatcher(t *testing.T) {
	dashboard := testDashboard(t)

	replacement := NewRulesetMatcher(HostUniverse{}, labels.NewManager())
	dashboard.SetMatcher(replacement)

	req, err := http.NewRequest("GET", "/stats", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(dashboard.handleStats).ServeHTTP(rr, req)

	var stats CacheStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.ConfiguredHosts)
}
