// argus/pkg/store/store.go

package store

import (
	"github.com/redis/go-redis/v9"

	"kwalsh/argus/pkg/matcher"
	"kwalsh/argus/pkg/ruleset"
)

type Store interface {
	SaveRuleset(rs *ruleset.Ruleset) error
	LoadRuleset(id string) (*ruleset.Ruleset, error)
	ListRulesets() ([]string, error)
	DeleteRuleset(id string) error
	SaveUniverse(universe *matcher.HostUniverse) error
	LoadUniverse() (*matcher.HostUniverse, error)
	PublishReload(reason string) error
	Subscribe(channels ...string) *redis.PubSub
	ReceiveReloads() <-chan *redis.Message
}
