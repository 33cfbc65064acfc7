// argus/pkg/store/redis_store.go

package store

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"kwalsh/argus/pkg/logging"
	"kwalsh/argus/pkg/matcher"
	"kwalsh/argus/pkg/ruleset"
)

var ctx = context.Background()

const (
	rulesetKeyPrefix = "argus:ruleset:"
	universeKey      = "argus:universe"
	reloadChannel    = "argus:reload"
)

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new instance of RedisStore with the given address, password, and database number.
// It establishes a connection to the Redis server and returns a pointer to the RedisStore.
func NewRedisStore(addr, password string, db int) *RedisStore {
	logging.Logger.Info().Str("addr", addr).Int("db", db).Msg("Connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	_, err := client.Ping(ctx).Result()
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	logging.Logger.Info().Msg("Successfully connected to Redis")

	return &RedisStore{client: client}
}

// SaveRuleset stores a ruleset under its identity. The payload is the
// JSON wire form, so rulesets written by external tooling are readable
// too.
func (s *RedisStore) SaveRuleset(rs *ruleset.Ruleset) error {
	data, err := json.Marshal(rs)
	if err != nil {
		logging.Logger.Error().Err(err).Str("ruleset", rs.ID).Msg("Failed to marshal ruleset")
		return err
	}
	return s.client.Set(ctx, rulesetKeyPrefix+rs.ID, data, 0).Err()
}

// LoadRuleset fetches one ruleset by identity. An unknown identity
// returns nil without error.
func (s *RedisStore) LoadRuleset(id string) (*ruleset.Ruleset, error) {
	data, err := s.client.Get(ctx, rulesetKeyPrefix+id).Result()
	if err == redis.Nil {
		logging.Logger.Debug().Str("ruleset", id).Msg("Ruleset not found in Redis")
		return nil, nil
	} else if err != nil {
		logging.Logger.Error().Err(err).Str("ruleset", id).Msg("Failed to get ruleset from Redis")
		return nil, err
	}

	rs, err := ruleset.Parse([]byte(data))
	if err != nil {
		logging.Logger.Error().Err(err).Str("ruleset", id).Msg("Failed to parse stored ruleset")
		return nil, err
	}
	rs.ID = id
	return rs, nil
}

// ListRulesets returns the identities of all stored rulesets.
func (s *RedisStore) ListRulesets() ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, rulesetKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(rulesetKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to scan rulesets in Redis")
		return nil, err
	}
	return ids, nil
}

func (s *RedisStore) DeleteRuleset(id string) error {
	return s.client.Del(ctx, rulesetKeyPrefix+id).Err()
}

// SaveUniverse stores the host universe (tags, paths, cluster relations).
func (s *RedisStore) SaveUniverse(universe *matcher.HostUniverse) error {
	data, err := json.Marshal(universe)
	if err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to marshal host universe")
		return err
	}
	return s.client.Set(ctx, universeKey, data, 0).Err()
}

// LoadUniverse fetches the host universe. When none was stored yet an
// empty universe is returned.
func (s *RedisStore) LoadUniverse() (*matcher.HostUniverse, error) {
	data, err := s.client.Get(ctx, universeKey).Result()
	if err == redis.Nil {
		logging.Logger.Debug().Msg("No host universe in Redis yet")
		return &matcher.HostUniverse{}, nil
	} else if err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to get host universe from Redis")
		return nil, err
	}

	var universe matcher.HostUniverse
	if err := json.Unmarshal([]byte(data), &universe); err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to unmarshal host universe")
		return nil, err
	}
	return &universe, nil
}

// PublishReload notifies all subscribed matcher daemons that the stored
// configuration changed and should be re-read.
func (s *RedisStore) PublishReload(reason string) error {
	err := s.client.Publish(ctx, reloadChannel, reason).Err()
	if err != nil {
		logging.Logger.Error().Err(err).Str("reason", reason).Msg("Failed to publish reload notification")
		return err
	}
	logging.Logger.Debug().Str("reason", reason).Msg("Published reload notification")
	return nil
}

func (s *RedisStore) Subscribe(channels ...string) *redis.PubSub {
	logging.Logger.Info().Strs("channels", channels).Msg("Subscribing to Redis channels")

	pubsub := s.client.Subscribe(ctx, channels...)

	// Verify the subscription was successful
	_, err := pubsub.Receive(ctx)
	if err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to subscribe to Redis channels")
		return nil
	}

	logging.Logger.Info().Strs("channels", channels).Msg("Successfully subscribed to Redis channels")
	return pubsub
}

// ReceiveReloads subscribes to the reload channel and returns the
// message stream.
func (s *RedisStore) ReceiveReloads() <-chan *redis.Message {
	pubsub := s.client.Subscribe(ctx, reloadChannel)

	// Verify the subscription was successful
	_, err := pubsub.Receive(ctx)
	if err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to subscribe to reload channel")
		return nil
	}

	logging.Logger.Info().Msg("Listening for reload notifications")
	return pubsub.Channel()
}
