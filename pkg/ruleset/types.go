// argus/pkg/ruleset/types.go

// Package ruleset holds the declarative rule condition model: rules,
// rulesets, tag/label/host-name conditions and their negation forms, the
// JSON codec for the $ne/$or/$nor/$regex wire shapes, and the transformer
// for the deprecated tuple rule format.
package ruleset

import (
	"sort"
	"strconv"
	"strings"
)

type (
	HostName    = string
	ServiceName = string
	TagID       = string
	TaggroupID  = string
)

// Labels maps a label key to its value.
type Labels map[string]string

// TagCondition is the requirement a rule places on a single tag group.
// It is a closed variant set: TagIs, TagAbsent, TagIsNot, TagOneOf,
// TagNoneOf. Anything else found in a configuration is a fatal error.
type TagCondition interface {
	// CacheID returns a stable identity used to key condition caches.
	// Two semantically equal conditions produce equal ids.
	CacheID() string
	tagCondition()
}

// TagIs requires the host to carry exactly this tag in the group.
type TagIs struct {
	Tag TagID
}

// TagAbsent requires the tag group to have no tag set on the host.
type TagAbsent struct{}

// TagIsNot requires the host to not carry this tag ($ne).
type TagIsNot struct {
	Tag TagID
}

// TagOneOf requires the host to carry one of these tags ($or).
type TagOneOf struct {
	Tags []TagID
}

// TagNoneOf requires the host to carry none of these tags ($nor).
type TagNoneOf struct {
	Tags []TagID
}

func (TagIs) tagCondition()     {}
func (TagAbsent) tagCondition() {}
func (TagIsNot) tagCondition()  {}
func (TagOneOf) tagCondition()  {}
func (TagNoneOf) tagCondition() {}

// cacheComponent length-prefixes a cache id component so that a value
// containing a join delimiter (or a whole encoded sub-id) can never read
// as two components. This is what keeps the ids injective: tag ids,
// label keys and label values are arbitrary user strings.
func cacheComponent(s string) string {
	return strconv.Itoa(len(s)) + ":" + s
}

func cacheComponents(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = cacheComponent(v)
	}
	return strings.Join(parts, "|")
}

// Each variant gets its own leading marker so that e.g. TagIsNot{"x"}
// and TagIs{"!x"} stay distinguishable. TagAbsent uses a control
// character, which no marker-prefixed id can start with.
func (c TagIs) CacheID() string { return "=" + c.Tag }

func (c TagAbsent) CacheID() string { return "\x00" }

func (c TagIsNot) CacheID() string { return "!" + c.Tag }

func (c TagOneOf) CacheID() string {
	return "$or(" + cacheComponents(c.Tags) + ")"
}

func (c TagNoneOf) CacheID() string {
	return "$nor(" + cacheComponents(c.Tags) + ")"
}

// TagConditions maps a tag group id to the condition on that group. All
// entries must hold for a host to match (AND across tag groups).
type TagConditions map[TaggroupID]TagCondition

// CacheID returns a stable identity for the whole tag condition map.
// Entries are sorted by tag group so that the id does not depend on map
// iteration order.
func (tc TagConditions) CacheID() string {
	if len(tc) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tc))
	for taggroupID, cond := range tc {
		parts = append(parts, cacheComponent(taggroupID)+cacheComponent(cond.CacheID()))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// LabelCondition requires a label to equal (or, negated, to not equal) a
// literal value. The wire form of a negated condition is {"$ne": value}.
type LabelCondition struct {
	Value  string
	Negate bool
}

func (c LabelCondition) CacheID() string {
	if c.Negate {
		return "!" + c.Value
	}
	return "=" + c.Value
}

// LabelConditions maps a label key to its required value spec.
type LabelConditions map[string]LabelCondition

func (lc LabelConditions) CacheID() string {
	if len(lc) == 0 {
		return ""
	}
	parts := make([]string, 0, len(lc))
	for key, cond := range lc {
		parts = append(parts, cacheComponent(key)+cacheComponent(cond.CacheID()))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// ConditionEntry is one element of a host name or service description
// condition list: either a literal name or a {"$regex": pattern} entry.
type ConditionEntry struct {
	Literal string
	Regex   string
	IsRegex bool
}

// HostOrServiceConditions is a host name or service description condition
// list together with its negation flag. The negation applies uniformly to
// the whole list (wire form {"$nor": [...]}). A nil pointer means the
// condition is absent and matches everything; a non-nil value with no
// entries is an explicitly empty allow-list and matches nothing.
type HostOrServiceConditions struct {
	Negate  bool
	Entries []ConditionEntry
}

// CacheID returns a stable identity for the condition list. Entries are
// sorted, regex entries are marked with "~" and negation with a leading
// "!". An absent condition is "", a present one is always parenthesized,
// so matching everything and an explicitly empty allow-list never share
// a cache key.
func (c *HostOrServiceConditions) CacheID() string {
	if c == nil {
		return ""
	}
	parts := make([]string, 0, len(c.Entries))
	for _, entry := range c.Entries {
		if entry.IsRegex {
			parts = append(parts, "~"+cacheComponent(entry.Regex))
			continue
		}
		parts = append(parts, "="+cacheComponent(entry.Literal))
	}
	sort.Strings(parts)
	if c.Negate {
		return "!(" + strings.Join(parts, "|") + ")"
	}
	return "(" + strings.Join(parts, "|") + ")"
}

// OnlyLiterals reports whether the condition consists solely of literal,
// non-negated names. Such conditions can be matched by set intersection
// without touching the regex engine.
func (c *HostOrServiceConditions) OnlyLiterals() bool {
	if c == nil || c.Negate {
		return false
	}
	for _, entry := range c.Entries {
		if entry.IsRegex {
			return false
		}
	}
	return true
}

// LiteralNames returns the literal entries of the condition list.
func (c *HostOrServiceConditions) LiteralNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Entries))
	for _, entry := range c.Entries {
		if !entry.IsRegex {
			names = append(names, entry.Literal)
		}
	}
	return names
}

// Condition describes where a rule applies. All present fields must hold
// for the rule to match a host or host/service pair.
type Condition struct {
	HostName           *HostOrServiceConditions `json:"host_name,omitempty"`
	HostTags           TagConditions            `json:"host_tags,omitempty"`
	HostLabels         LabelConditions          `json:"host_labels,omitempty"`
	HostFolder         string                   `json:"host_folder,omitempty"`
	ServiceDescription *HostOrServiceConditions `json:"service_description,omitempty"`
	ServiceLabels      LabelConditions          `json:"service_labels,omitempty"`
}

// Folder returns the folder path prefix of the condition, defaulting to
// the root folder which matches every host.
func (c *Condition) Folder() string {
	if c.HostFolder == "" {
		return "/"
	}
	return c.HostFolder
}

// RuleOptions carries per-rule flags. Disabled rules are always skipped.
type RuleOptions struct {
	Disabled bool   `json:"disabled,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// Rule is one entry of a ruleset. The value payload is opaque to the
// matching engine; within one ruleset all values share the same type.
type Rule struct {
	ID        string       `json:"id,omitempty"`
	Value     interface{}  `json:"value"`
	Condition Condition    `json:"condition"`
	Options   *RuleOptions `json:"options,omitempty"`
}

func (r *Rule) IsDisabled() bool {
	return r.Options != nil && r.Options.Disabled
}

// Ruleset is an ordered list of rules sharing a value type, evaluated top
// down. The ID is a caller-assigned stable identity used to key the
// precomputation caches; it must change whenever the rule list is mutated
// within one configuration load.
type Ruleset struct {
	ID    string `json:"id"`
	Rules []Rule `json:"rules"`
}

func NewRuleset(id string, rules []Rule) *Ruleset {
	return &Ruleset{ID: id, Rules: rules}
}
