// argus/cmd/argusd/main_test.go

package main

import (
	"context"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kwalsh/argus/pkg/labels"
	"kwalsh/argus/pkg/matcher"
	"kwalsh/argus/pkg/ruleset"
	"kwalsh/argus/pkg/store"
)

// MockStoreFactory connects to a miniredis instance like the real one.
type MockStoreFactory struct{}

func (f *MockStoreFactory) NewStore(addr, password string, db int) store.Store {
	return store.NewRedisStore(addr, password, db)
}

func TestParseConfig(t *testing.T) {
	// Reset the flag set before each test run
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	configFile, err := os.CreateTemp("", "argus_config.json")
	require.NoError(t, err)
	defer os.Remove(configFile.Name())

	configContent := `{
		"logging.level": "debug",
		"logging.output": "file",
		"redis.address": "localhost:6379",
		"redis.password": "password",
		"redis.database": 1,
		"dashboard.port": 9090,
		"dashboard.update_interval": 15,
		"matcher.processed_hosts": ["h1", "h2"]
	}`
	_, err = configFile.WriteString(configContent)
	require.NoError(t, err)
	configFile.Close()

	args := []string{"argusd", "--config", configFile.Name()}
	config, err := parseConfig(args)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "file", config.LogDestination)
	assert.Equal(t, "localhost:6379", config.RedisAddress)
	assert.Equal(t, "password", config.RedisPassword)
	assert.Equal(t, 1, config.RedisDB)
	assert.Equal(t, 9090, config.DashboardPort)
	assert.Equal(t, 15, config.DashboardInterval)
	assert.Equal(t, []string{"h1", "h2"}, config.ProcessedHosts)
}

func TestSetupDependencies(t *testing.T) {
	// Reset the flag set before each test run
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	seedStore := store.NewRedisStore(mr.Addr(), "", 0)
	require.NoError(t, seedStore.SaveUniverse(&matcher.HostUniverse{
		HostTags: map[ruleset.HostName]map[ruleset.TaggroupID]ruleset.TagID{
			"h1": {"crit": "prod"},
		},
		AllConfiguredHosts: []ruleset.HostName{"h1"},
	}))
	require.NoError(t, seedStore.SaveRuleset(ruleset.NewRuleset("rs:v1", []ruleset.Rule{
		{Value: "A", Condition: ruleset.Condition{}},
	})))

	config := &Config{
		RedisAddress:      mr.Addr(),
		RedisPassword:     "",
		RedisDB:           0,
		DashboardPort:     8090,
		DashboardInterval: 5,
	}

	deps, err := setupDependencies(config, &MockStoreFactory{})
	require.NoError(t, err)

	assert.NotNil(t, deps.Store)
	assert.NotNil(t, deps.Matcher)
	assert.NotNil(t, deps.Dashboard)
	assert.Equal(t, 1, deps.Matcher.Stats().ConfiguredHosts)
}

func TestRunMainLoop(t *testing.T) {
	// Reset the flag set before each test run
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	config := &Config{
		RedisAddress: mr.Addr(),
	}

	s := store.NewRedisStore(mr.Addr(), "", 0)
	m := matcher.NewRulesetMatcher(matcher.HostUniverse{}, labels.NewManager())
	deps := &ArgusDependencies{
		Store:     s,
		Matcher:   m,
		Dashboard: matcher.NewDashboard(m, 0, time.Second),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		time.Sleep(500 * time.Millisecond)
		mr.Publish("argus:reload", "test reload")
		cancel()
	}()

	err = runMainLoop(ctx, deps, config)
	assert.NoError(t, err)
}

func TestProcessReload(t *testing.T) {
	// Reset the flag set before each test run
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s := store.NewRedisStore(mr.Addr(), "", 0)
	m := matcher.NewRulesetMatcher(matcher.HostUniverse{}, labels.NewManager())
	deps := &ArgusDependencies{
		Store:     s,
		Matcher:   m,
		Dashboard: matcher.NewDashboard(m, 0, time.Second),
	}
	config := &Config{RedisAddress: mr.Addr()}

	// Store a universe after startup, then reload
	require.NoError(t, s.SaveUniverse(&matcher.HostUniverse{
		HostTags: map[ruleset.HostName]map[ruleset.TaggroupID]ruleset.TagID{
			"h1": {"crit": "prod"},
		},
		AllConfiguredHosts: []ruleset.HostName{"h1"},
	}))

	msg := &redis.Message{Channel: "argus:reload", Payload: "universe changed"}
	require.NoError(t, processReload(deps, config, msg))

	assert.Equal(t, 1, deps.Matcher.Stats().ConfiguredHosts)
}
