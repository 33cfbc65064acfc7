// argus/cmd/argusd/main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"kwalsh/argus/pkg/labels"
	"kwalsh/argus/pkg/logging"
	"kwalsh/argus/pkg/matcher"
	"kwalsh/argus/pkg/store"
)

// Config represents the application configuration
type Config struct {
	LogLevel          string
	LogDestination    string
	RedisAddress      string
	RedisPassword     string
	RedisDB           int
	DashboardPort     int
	DashboardInterval int
	ProcessedHosts    []string
}

// ArgusDependencies represents the external dependencies of the application
type ArgusDependencies struct {
	Store     store.Store
	Matcher   *matcher.RulesetMatcher
	Dashboard *matcher.Dashboard
}

// StoreFactory is an interface for creating a store
type StoreFactory interface {
	NewStore(addr, password string, db int) store.Store
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, os.Args, &RealStoreFactory{}); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
}

func run(ctx context.Context, args []string, storeFactory StoreFactory) error {
	config, err := parseConfig(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := logging.ConfigureLogger(config.LogLevel, config.LogDestination); err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}

	deps, err := setupDependencies(config, storeFactory)
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}

	go func() {
		if err := deps.Dashboard.Start(); err != nil {
			log.Error().Err(err).Msg("Dashboard stopped")
		}
	}()

	return runMainLoop(ctx, deps, config)
}

func parseConfig(args []string) (*Config, error) {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.CommandLine.Parse(args[1:])

	viper.SetConfigType("json")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.output", "console")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.database", 0)
	viper.SetDefault("dashboard.port", 8090)
	viper.SetDefault("dashboard.update_interval", 5)

	if *configFile == "" {
		viper.SetConfigName("argus_config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.argus")
		viper.AddConfigPath("/etc/argus")
	} else {
		viper.SetConfigFile(*configFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || *configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Info().Msg("No configuration file found, using defaults")
	}

	return &Config{
		LogLevel:          viper.GetString("logging.level"),
		LogDestination:    viper.GetString("logging.output"),
		RedisAddress:      viper.GetString("redis.address"),
		RedisPassword:     viper.GetString("redis.password"),
		RedisDB:           viper.GetInt("redis.database"),
		DashboardPort:     viper.GetInt("dashboard.port"),
		DashboardInterval: viper.GetInt("dashboard.update_interval"),
		ProcessedHosts:    viper.GetStringSlice("matcher.processed_hosts"),
	}, nil
}

func setupDependencies(config *Config, storeFactory StoreFactory) (*ArgusDependencies, error) {
	s := storeFactory.NewStore(config.RedisAddress, config.RedisPassword, config.RedisDB)

	m, err := buildMatcher(s, config)
	if err != nil {
		return nil, fmt.Errorf("failed to build matcher: %w", err)
	}

	dashboard := matcher.NewDashboard(m, config.DashboardPort,
		time.Duration(config.DashboardInterval)*time.Second)
	if err := registerRulesets(s, dashboard); err != nil {
		return nil, err
	}

	return &ArgusDependencies{
		Store:     s,
		Matcher:   m,
		Dashboard: dashboard,
	}, nil
}

// buildMatcher assembles a matcher from the stored host universe. A
// reload builds a whole new matcher instead of invalidating caches
// piecemeal.
func buildMatcher(s store.Store, config *Config) (*matcher.RulesetMatcher, error) {
	universe, err := s.LoadUniverse()
	if err != nil {
		return nil, err
	}

	m := matcher.NewRulesetMatcher(*universe, labels.NewManager())
	if len(config.ProcessedHosts) > 0 {
		m.Optimizer().SetAllProcessedHosts(config.ProcessedHosts)
	}

	log.Info().
		Int("configured_hosts", len(universe.AllConfiguredHosts)).
		Msg("Matcher initialized from stored universe")
	return m, nil
}

func registerRulesets(s store.Store, dashboard *matcher.Dashboard) error {
	ids, err := s.ListRulesets()
	if err != nil {
		return fmt.Errorf("failed to list rulesets: %w", err)
	}
	for _, id := range ids {
		rs, err := s.LoadRuleset(id)
		if err != nil {
			return fmt.Errorf("failed to load ruleset %s: %w", id, err)
		}
		if rs != nil {
			dashboard.RegisterRuleset(rs)
		}
	}
	log.Info().Int("rulesets", len(ids)).Msg("Registered stored rulesets")
	return nil
}

func runMainLoop(ctx context.Context, deps *ArgusDependencies, config *Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reloads := deps.Store.ReceiveReloads()
	if reloads == nil {
		return fmt.Errorf("failed to subscribe to reload notifications")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("Argus matcher daemon started")

	for {
		select {
		case msg := <-reloads:
			if err := processReload(deps, config, msg); err != nil {
				log.Error().Err(err).Msg("Failed to process reload")
			}
		case <-sigChan:
			log.Info().Msg("Shutting down Argus matcher daemon")
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func processReload(deps *ArgusDependencies, config *Config, msg *redis.Message) error {
	logging.Logger.Info().Str("reason", msg.Payload).Msg("Reloading configuration")

	m, err := buildMatcher(deps.Store, config)
	if err != nil {
		return err
	}
	deps.Matcher = m
	deps.Dashboard.SetMatcher(m)

	return registerRulesets(deps.Store, deps.Dashboard)
}

// RealStoreFactory implements StoreFactory
type RealStoreFactory struct{}

func (f *RealStoreFactory) NewStore(addr, password string, db int) store.Store {
	return store.NewRedisStore(addr, password, db)
}
