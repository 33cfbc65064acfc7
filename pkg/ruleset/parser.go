// argus/pkg/ruleset/parser.go

package ruleset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"kwalsh/argus/pkg/logging"
)

// ParseOptions controls how a ruleset is parsed. The service/binary flags
// are only needed to decode rules still in the deprecated tuple format,
// whose layout depends on the ruleset kind.
type ParseOptions struct {
	IsService     bool
	IsBinary      bool
	TagToGroupMap map[TagID]TaggroupID
}

// Parse parses the provided JSON data and returns a pointer to a Ruleset
// and an error.
func Parse(jsonData []byte) (*Ruleset, error) {
	return ParseWithOptions(jsonData, ParseOptions{})
}

// ParseWithOptions parses a ruleset, rejecting rules in the deprecated
// tuple format with an error that carries the equivalent dict-form rule.
func ParseWithOptions(jsonData []byte, opts ParseOptions) (*Ruleset, error) {
	logging.Logger.Debug().Int("bytes", len(jsonData)).Msg("Starting to parse ruleset JSON data")

	var raw struct {
		ID    string            `json:"id"`
		Rules []json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(jsonData, &raw); err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to unmarshal ruleset JSON data")
		return nil, fmt.Errorf("invalid JSON format: %v", err)
	}
	if raw.ID == "" {
		return nil, errors.New("missing ruleset id")
	}

	transformer := NewLegacyTransformer(opts.TagToGroupMap)

	ruleset := &Ruleset{ID: raw.ID, Rules: make([]Rule, 0, len(raw.Rules))}
	for i, rawRule := range raw.Rules {
		if isTupleRule(rawRule) {
			return nil, tupleRuleError(rawRule, transformer, opts)
		}

		var rule Rule
		if err := json.Unmarshal(rawRule, &rule); err != nil {
			logging.Logger.Error().Err(err).Int("rule", i).Msg("Invalid rule")
			return nil, fmt.Errorf("invalid rule at index %d: %w", i, err)
		}
		if err := validateRule(&rule); err != nil {
			logging.Logger.Error().Err(err).Int("rule", i).Msg("Invalid rule")
			return nil, fmt.Errorf("invalid rule at index %d: %w", i, err)
		}
		ruleset.Rules = append(ruleset.Rules, rule)
	}

	logging.Logger.Debug().Str("ruleset", ruleset.ID).Int("rules", len(ruleset.Rules)).Msg("Parsed ruleset")
	return ruleset, nil
}

func isTupleRule(rawRule json.RawMessage) bool {
	trimmed := bytes.TrimSpace(rawRule)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// tupleRuleError builds the fatal error for a rule still in the old tuple
// format. The error names the offending rule and, when the tuple can be
// converted, the equivalent dict-form rule to migrate to.
func tupleRuleError(rawRule json.RawMessage, transformer *LegacyTransformer, opts ParseOptions) error {
	var tuple []interface{}
	if err := json.Unmarshal(rawRule, &tuple); err != nil {
		return logging.NewError(logging.ErrorTypeLegacy,
			"found old style tuple rule that could not be decoded", err,
			map[string]interface{}{"rule": string(rawRule)})
	}

	converted, err := transformer.Transform(tuple, opts.IsService, opts.IsBinary)
	if err != nil {
		return err
	}
	newForm, err := json.Marshal(converted)
	if err != nil {
		newForm = []byte("<unencodable>")
	}

	return logging.NewError(logging.ErrorTypeLegacy,
		"found old style tuple rule; dict rules are expected now, please convert to the new format",
		nil, map[string]interface{}{
			"rule":     string(rawRule),
			"new_form": string(newForm),
		})
}

// validateRule validates a rule and returns an error if any validation fails.
func validateRule(rule *Rule) error {
	if rule.Value == nil {
		return errors.New("rule value is required")
	}

	cond := &rule.Condition
	if cond.HostFolder != "" && cond.HostFolder[0] != '/' {
		return fmt.Errorf("host folder %q must be an absolute path", cond.HostFolder)
	}
	for taggroupID, tagCondition := range cond.HostTags {
		if tagCondition == nil {
			return fmt.Errorf("missing tag condition for tag group %q", taggroupID)
		}
	}
	return nil
}
