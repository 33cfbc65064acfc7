// argus/pkg/matcher/matchobject.go

package matcher

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"kwalsh/argus/pkg/ruleset"
)

// MatchObject is the query input of the matcher: a host name, and for
// service rulesets additionally a service description and the service's
// labels. Construct it with NewHostMatchObject / NewServiceMatchObject so
// that the service cache id is always consistent with the fields.
type MatchObject struct {
	HostName           ruleset.HostName
	ServiceDescription ruleset.ServiceName
	ServiceLabels      ruleset.Labels

	serviceCacheID serviceCacheID
}

// serviceCacheID identifies the service-specific part of a match object
// for match decision memoization.
type serviceCacheID struct {
	description ruleset.ServiceName
	labelsHash  uint64
}

func NewHostMatchObject(host ruleset.HostName) MatchObject {
	return NewServiceMatchObject(host, "", nil)
}

func NewServiceMatchObject(host ruleset.HostName, service ruleset.ServiceName, serviceLabels ruleset.Labels) MatchObject {
	return MatchObject{
		HostName:           host,
		ServiceDescription: service,
		ServiceLabels:      serviceLabels,
		serviceCacheID: serviceCacheID{
			description: service,
			labelsHash:  hashLabels(serviceLabels),
		},
	}
}

// hashLabels computes an order-independent digest of a label mapping.
func hashLabels(labels ruleset.Labels) uint64 {
	if len(labels) == 0 {
		return 0
	}
	items := make([]string, 0, len(labels))
	for key, value := range labels {
		items = append(items, key+"\x00"+value)
	}
	sort.Strings(items)

	digest := xxhash.New()
	for _, item := range items {
		_, _ = digest.WriteString(item)
		_, _ = digest.WriteString("\x01")
	}
	return digest.Sum64()
}

func (mo MatchObject) Copy() MatchObject {
	serviceLabels := make(ruleset.Labels, len(mo.ServiceLabels))
	for key, value := range mo.ServiceLabels {
		serviceLabels[key] = value
	}
	return NewServiceMatchObject(mo.HostName, mo.ServiceDescription, serviceLabels)
}

func (mo MatchObject) Equal(other MatchObject) bool {
	if mo.HostName != other.HostName || mo.ServiceDescription != other.ServiceDescription {
		return false
	}
	if len(mo.ServiceLabels) != len(other.ServiceLabels) {
		return false
	}
	for key, value := range mo.ServiceLabels {
		if other.ServiceLabels[key] != value {
			return false
		}
	}
	return true
}

func (mo MatchObject) String() string {
	return fmt.Sprintf("MatchObject(host_name=%q, service_description=%q, service_labels=%v)",
		mo.HostName, mo.ServiceDescription, mo.ServiceLabels)
}
