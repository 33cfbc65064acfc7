// argus/pkg/ruleset/legacy.go

package ruleset

import (
	"fmt"
	"strings"

	"kwalsh/argus/pkg/logging"
)

// Sentinels of the deprecated tuple rule format.
const (
	allHostsSentinel      = "@all"
	negateSentinel        = "@negate"
	clusterHostsSentinel  = "@cluster"
	physicalHostsSentinel = "@physical"
)

// TagConfig is the tag configuration a site exposes: standalone auxiliary
// tags plus groups of mutually exclusive tags.
type TagConfig struct {
	AuxTags   []AuxTag   `json:"aux_tags,omitempty"`
	TagGroups []TagGroup `json:"tag_groups,omitempty"`
}

type AuxTag struct {
	ID TagID `json:"id"`
}

type TagGroup struct {
	ID   TaggroupID   `json:"id"`
	Tags []GroupedTag `json:"tags"`
}

// GroupedTag is one choice within a tag group. A nil ID is a "no tag set"
// choice and is not relevant for reverse lookups.
type GroupedTag struct {
	ID *TagID `json:"id"`
}

// GetTagToGroupMap builds the tag id to tag group id map used by the
// legacy transformer. The old tuple rules only carry a flat list of tags
// and know nothing about the groups they came from.
func GetTagToGroupMap(config TagConfig) map[TagID]TaggroupID {
	tagToGroup := make(map[TagID]TaggroupID)

	for _, auxTag := range config.AuxTags {
		tagToGroup[auxTag.ID] = TaggroupID(auxTag.ID)
	}

	for _, group := range config.TagGroups {
		for _, groupedTag := range group.Tags {
			if groupedTag.ID != nil {
				tagToGroup[*groupedTag.ID] = group.ID
			}
		}
	}
	return tagToGroup
}

// LegacyTransformer converts rules from the deprecated tuple encoding to
// the condition based representation. It is exercised at load time only;
// the matching path never sees tuple rules.
type LegacyTransformer struct {
	tagGroups map[TagID]TaggroupID
}

func NewLegacyTransformer(tagToGroupMap map[TagID]TaggroupID) *LegacyTransformer {
	return &LegacyTransformer{tagGroups: tagToGroupMap}
}

// Transform converts a single tuple rule into its dict-form equivalent.
// The tuple layout is, front to back: optional value (non-binary rulesets)
// or optional @negate marker (binary rulesets), tag list and/or host list,
// optional service item list, optional options dict.
func (t *LegacyTransformer) Transform(tupleRule []interface{}, isService, isBinary bool) (Rule, error) {
	if len(tupleRule) == 0 {
		return Rule{}, logging.NewError(logging.ErrorTypeLegacy, "empty tuple rule", nil, nil)
	}

	rule := Rule{}
	rest := append([]interface{}{}, tupleRule...)

	// Optional rule options at the end of the tuple
	if options, ok := rest[len(rest)-1].(map[string]interface{}); ok {
		rule.Options = &RuleOptions{}
		if disabled, ok := options["disabled"].(bool); ok {
			rule.Options.Disabled = disabled
		}
		if comment, ok := options["comment"].(string); ok {
			rule.Options.Comment = comment
		}
		rest = rest[:len(rest)-1]
	}

	// Value from the front; binary rulesets encode it as an optional
	// negate marker instead.
	if !isBinary {
		if len(rest) == 0 {
			return Rule{}, logging.NewError(logging.ErrorTypeLegacy, "tuple rule has no value", nil, nil)
		}
		rule.Value = rest[0]
		rest = rest[1:]
	} else {
		rule.Value = true
		if len(rest) > 0 && rest[0] == negateSentinel {
			rule.Value = false
			rest = rest[1:]
		}
	}

	// Service item list from the back
	if isService {
		if len(rest) == 0 {
			return Rule{}, logging.NewError(logging.ErrorTypeLegacy, "tuple rule has no item list", nil, nil)
		}
		itemList, err := toStringList(rest[len(rest)-1])
		if err != nil {
			return Rule{}, err
		}
		rest = rest[:len(rest)-1]

		serviceCondition, err := transformItemList(itemList)
		if err != nil {
			return Rule{}, err
		}
		rule.Condition.ServiceDescription = serviceCondition
	}

	// Rest is a host list, or a tag list followed by a host list
	var tagList, hostList []string
	switch len(rest) {
	case 1:
		list, err := toStringList(rest[0])
		if err != nil {
			return Rule{}, err
		}
		hostList = list
	case 2:
		tags, err := toStringList(rest[0])
		if err != nil {
			return Rule{}, err
		}
		hosts, err := toStringList(rest[1])
		if err != nil {
			return Rule{}, err
		}
		tagList, hostList = tags, hosts
	default:
		return Rule{}, logging.NewError(logging.ErrorTypeLegacy,
			fmt.Sprintf("unexpected tuple rule layout with %d host condition elements", len(rest)), nil, nil)
	}

	if err := t.transformHostTags(&rule.Condition, tagList); err != nil {
		return Rule{}, err
	}
	hostCondition, err := transformHostList(hostList)
	if err != nil {
		return Rule{}, err
	}
	rule.Condition.HostName = hostCondition

	return rule, nil
}

func transformItemList(itemList []string) (*HostOrServiceConditions, error) {
	if len(itemList) == 1 && itemList[0] == "" {
		return nil, nil // ALL_SERVICES, no condition
	}
	if len(itemList) == 0 {
		return &HostOrServiceConditions{}, nil
	}

	// Assume a conforming rule where either all or none of the item
	// expressions are negated.
	negate := strings.HasPrefix(itemList[0], "!")

	// Negated lists carry a trailing match-all entry
	if negate && itemList[len(itemList)-1] == "" {
		itemList = itemList[:len(itemList)-1]
	}

	entries := make([]ConditionEntry, 0, len(itemList))
	for _, item := range itemList {
		if negate {
			if !strings.HasPrefix(item, "!") {
				return nil, logging.NewError(logging.ErrorTypeLegacy,
					"mixed negated and non-negated item conditions are not supported", nil,
					map[string]interface{}{"item": item})
			}
			item = item[1:]
		} else if strings.HasPrefix(item, "!") {
			return nil, logging.NewError(logging.ErrorTypeLegacy,
				"mixed negated and non-negated item conditions are not supported", nil,
				map[string]interface{}{"item": item})
		}
		entries = append(entries, ConditionEntry{Regex: item, IsRegex: true})
	}

	return &HostOrServiceConditions{Negate: negate, Entries: entries}, nil
}

func transformHostList(hostList []string) (*HostOrServiceConditions, error) {
	if len(hostList) == 1 && hostList[0] == allHostsSentinel {
		return nil, nil // ALL_HOSTS, no condition
	}
	if len(hostList) == 0 {
		return &HostOrServiceConditions{}, nil
	}

	negate := strings.HasPrefix(hostList[0], "!")

	// Negated lists carry a trailing ALL_HOSTS entry
	if negate && hostList[len(hostList)-1] == allHostsSentinel {
		hostList = hostList[:len(hostList)-1]
	}

	entries := make([]ConditionEntry, 0, len(hostList))
	for _, host := range hostList {
		host = strings.TrimPrefix(host, "!")

		if strings.HasPrefix(host, "~") {
			entries = append(entries, ConditionEntry{Regex: host[1:], IsRegex: true})
			continue
		}

		if host == clusterHostsSentinel {
			return nil, logging.NewError(logging.ErrorTypeLegacy,
				"found a ruleset using CLUSTER_HOSTS as host condition; this is not "+
					"supported anymore and can not be transformed automatically, please "+
					"replace the rules in question", nil, nil)
		}
		if host == physicalHostsSentinel {
			return nil, logging.NewError(logging.ErrorTypeLegacy,
				"found a ruleset using PHYSICAL_HOSTS as host condition; this is not "+
					"supported anymore and can not be transformed automatically, please "+
					"replace the rules in question", nil, nil)
		}

		entries = append(entries, ConditionEntry{Literal: host})
	}

	if negate {
		return &HostOrServiceConditions{Negate: true, Entries: entries}, nil
	}
	return &HostOrServiceConditions{Entries: entries}, nil
}

func (t *LegacyTransformer) transformHostTags(condition *Condition, hostTags []string) error {
	if len(hostTags) == 0 {
		return nil
	}

	tagConditions := TagConditions{}
	for _, tagID := range hostTags {
		// Folders are either absent (main folder) or encoded as
		// "/abc/+" which matches the folder and all subfolders.
		if strings.HasPrefix(tagID, "/") {
			condition.HostFolder = strings.TrimRight(tagID, "+")
			continue
		}

		negate := false
		if strings.HasPrefix(tagID, "!") {
			tagID = tagID[1:]
			negate = true
		}

		// Assume an aux tag when the tag has no known group
		taggroupID, ok := t.tagGroups[tagID]
		if !ok {
			taggroupID = TaggroupID(tagID)
		}

		if negate {
			tagConditions[taggroupID] = TagIsNot{Tag: tagID}
		} else {
			tagConditions[taggroupID] = TagIs{Tag: tagID}
		}
	}

	if len(tagConditions) > 0 {
		condition.HostTags = tagConditions
	}
	return nil
}

func toStringList(value interface{}) ([]string, error) {
	rawList, ok := value.([]interface{})
	if !ok {
		return nil, logging.NewError(logging.ErrorTypeLegacy,
			fmt.Sprintf("expected a list in tuple rule, got %T", value), nil, nil)
	}
	list := make([]string, 0, len(rawList))
	for _, raw := range rawList {
		s, ok := raw.(string)
		if !ok {
			return nil, logging.NewError(logging.ErrorTypeLegacy,
				fmt.Sprintf("expected a string in tuple rule list, got %T", raw), nil, nil)
		}
		list = append(list, s)
	}
	return list, nil
}
