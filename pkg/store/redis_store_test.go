// argus/pkg/store/redis_store_test.go

package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kwalsh/argus/pkg/matcher"
	"kwalsh/argus/pkg/ruleset"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	store := NewRedisStore(s.Addr(), "", 0)
	return s, store
}

func testStoredRuleset() *ruleset.Ruleset {
	return ruleset.NewRuleset("cpu_thresholds:v1", []ruleset.Rule{
		{Value: map[string]interface{}{"warn": float64(80)}, Condition: ruleset.Condition{
			HostTags: ruleset.TagConditions{"crit": ruleset.TagIs{Tag: "prod"}},
		}},
		{Value: map[string]interface{}{"warn": float64(90)}, Condition: ruleset.Condition{}},
	})
}

func TestSaveAndLoadRuleset(t *testing.T) {
	s, store := setupMiniredis(t)
	defer s.Close()

	original := testStoredRuleset()
	require.NoError(t, store.SaveRuleset(original))

	loaded, err := store.LoadRuleset("cpu_thresholds:v1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, original.ID, loaded.ID)
	require.Len(t, loaded.Rules, 2)
	assert.Equal(t, original.Rules[0].Value, loaded.Rules[0].Value)
	assert.Equal(t, original.Rules[0].Condition.HostTags, loaded.Rules[0].Condition.HostTags)
}

func TestLoadRulesetMissing(t *testing.T) {
	s, store := setupMiniredis(t)
	defer s.Close()

	loaded, err := store.LoadRuleset("unknown:v1")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestListRulesets(t *testing.T) {
	s, store := setupMiniredis(t)
	defer s.Close()

	require.NoError(t, store.SaveRuleset(ruleset.NewRuleset("a:v1", nil)))
	require.NoError(t, store.SaveRuleset(ruleset.NewRuleset("b:v1", nil)))

	// Keys outside our prefix are not rulesets
	s.Set("other:key", "x")

	ids, err := store.ListRulesets()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a:v1", "b:v1"}, ids)
}

func TestDeleteRuleset(t *testing.T) {
	s, store := setupMiniredis(t)
	defer s.Close()

	require.NoError(t, store.SaveRuleset(ruleset.NewRuleset("a:v1", nil)))
	require.NoError(t, store.DeleteRuleset("a:v1"))

	loaded, err := store.LoadRuleset("a:v1")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSaveAndLoadUniverse(t *testing.T) {
	s, store := setupMiniredis(t)
	defer s.Close()

	universe := &matcher.HostUniverse{
		HostTags: map[ruleset.HostName]map[ruleset.TaggroupID]ruleset.TagID{
			"h1": {"crit": "prod"},
		},
		HostPaths:          map[ruleset.HostName]string{"h1": "/dc1/"},
		AllConfiguredHosts: []ruleset.HostName{"h1"},
	}
	require.NoError(t, store.SaveUniverse(universe))

	loaded, err := store.LoadUniverse()
	require.NoError(t, err)
	assert.Equal(t, universe, loaded)
}

func TestLoadUniverseEmpty(t *testing.T) {
	s, store := setupMiniredis(t)
	defer s.Close()

	loaded, err := store.LoadUniverse()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Empty(t, loaded.AllConfiguredHosts)
}

func TestPublishAndReceiveReload(t *testing.T) {
	s, store := setupMiniredis(t)
	defer s.Close()

	reloads := store.ReceiveReloads()
	require.NotNil(t, reloads)

	require.NoError(t, store.PublishReload("ruleset changed"))

	select {
	case msg := <-reloads:
		assert.Equal(t, reloadChannel, msg.Channel)
		assert.Equal(t, "ruleset changed", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for reload notification")
	}
}

func TestSubscribe(t *testing.T) {
	s, store := setupMiniredis(t)
	defer s.Close()

	pubsub := store.Subscribe("argus:events")
	require.NotNil(t, pubsub)
	defer pubsub.Close()
}
