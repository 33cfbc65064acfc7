// argus/pkg/ruleset/json.go

package ruleset

import (
	"bytes"
	"encoding/json"
	"fmt"

	"kwalsh/argus/pkg/logging"
)

// The condition model keeps its historic wire format: tag and label
// conditions are encoded as bare values with {"$ne": ...}, {"$or": [...]}
// and {"$nor": [...]} operator objects, host name and service description
// lists as plain lists, {"$regex": ...} entries and {"$nor": [...]}
// negation wrappers. The decoders below map those shapes onto the closed
// variant types; any unrecognized operator is a fatal configuration error.

func (tc *TagConditions) UnmarshalJSON(data []byte) error {
	var raw map[TaggroupID]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	conditions := make(TagConditions, len(raw))
	for taggroupID, rawCond := range raw {
		cond, err := decodeTagCondition(rawCond)
		if err != nil {
			return logging.NewError(logging.ErrorTypeConfig,
				fmt.Sprintf("invalid tag condition for tag group %q", taggroupID),
				err, map[string]interface{}{"condition": string(rawCond)})
		}
		conditions[taggroupID] = cond
	}
	*tc = conditions
	return nil
}

func decodeTagCondition(data []byte) (TagCondition, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return TagAbsent{}, nil
	}

	var literal TagID
	if err := json.Unmarshal(data, &literal); err == nil {
		return TagIs{Tag: literal}, nil
	}

	var operators map[string]json.RawMessage
	if err := json.Unmarshal(data, &operators); err != nil {
		return nil, fmt.Errorf("tag condition is neither a tag id nor an operator object")
	}
	if len(operators) != 1 {
		return nil, fmt.Errorf("tag condition operator object must have exactly one key")
	}

	for op, rawValue := range operators {
		switch op {
		case "$ne":
			var tag TagID
			if err := json.Unmarshal(rawValue, &tag); err != nil {
				return nil, fmt.Errorf("$ne expects a tag id: %w", err)
			}
			return TagIsNot{Tag: tag}, nil
		case "$or":
			var tags []TagID
			if err := json.Unmarshal(rawValue, &tags); err != nil {
				return nil, fmt.Errorf("$or expects a list of tag ids: %w", err)
			}
			return TagOneOf{Tags: tags}, nil
		case "$nor":
			var tags []TagID
			if err := json.Unmarshal(rawValue, &tags); err != nil {
				return nil, fmt.Errorf("$nor expects a list of tag ids: %w", err)
			}
			return TagNoneOf{Tags: tags}, nil
		default:
			return nil, fmt.Errorf("unknown tag condition operator %q", op)
		}
	}
	return nil, fmt.Errorf("empty tag condition")
}

func (tc TagConditions) MarshalJSON() ([]byte, error) {
	raw := make(map[TaggroupID]interface{}, len(tc))
	for taggroupID, cond := range tc {
		switch c := cond.(type) {
		case TagIs:
			raw[taggroupID] = c.Tag
		case TagAbsent:
			raw[taggroupID] = nil
		case TagIsNot:
			raw[taggroupID] = map[string]TagID{"$ne": c.Tag}
		case TagOneOf:
			raw[taggroupID] = map[string][]TagID{"$or": c.Tags}
		case TagNoneOf:
			raw[taggroupID] = map[string][]TagID{"$nor": c.Tags}
		}
	}
	return json.Marshal(raw)
}

func (lc *LabelCondition) UnmarshalJSON(data []byte) error {
	var literal string
	if err := json.Unmarshal(data, &literal); err == nil {
		*lc = LabelCondition{Value: literal}
		return nil
	}

	var operators map[string]string
	if err := json.Unmarshal(data, &operators); err != nil {
		return logging.NewError(logging.ErrorTypeConfig,
			"label condition is neither a value nor an operator object", err,
			map[string]interface{}{"condition": string(data)})
	}
	negated, ok := operators["$ne"]
	if !ok || len(operators) != 1 {
		return logging.NewError(logging.ErrorTypeConfig,
			"label condition object must contain exactly the $ne operator", nil,
			map[string]interface{}{"condition": string(data)})
	}
	*lc = LabelCondition{Value: negated, Negate: true}
	return nil
}

func (lc LabelCondition) MarshalJSON() ([]byte, error) {
	if lc.Negate {
		return json.Marshal(map[string]string{"$ne": lc.Value})
	}
	return json.Marshal(lc.Value)
}

func (c *HostOrServiceConditions) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		entries, err := decodeConditionEntries(trimmed)
		if err != nil {
			return err
		}
		*c = HostOrServiceConditions{Negate: false, Entries: entries}
		return nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return logging.NewError(logging.ErrorTypeConfig,
			"condition list is neither a list nor a $nor wrapper", err,
			map[string]interface{}{"condition": string(data)})
	}
	rawList, ok := wrapper["$nor"]
	if !ok || len(wrapper) != 1 {
		return logging.NewError(logging.ErrorTypeConfig,
			"negated condition list must contain exactly the $nor operator", nil,
			map[string]interface{}{"condition": string(data)})
	}
	entries, err := decodeConditionEntries(rawList)
	if err != nil {
		return err
	}
	*c = HostOrServiceConditions{Negate: true, Entries: entries}
	return nil
}

func decodeConditionEntries(data []byte) ([]ConditionEntry, error) {
	var rawEntries []json.RawMessage
	if err := json.Unmarshal(data, &rawEntries); err != nil {
		return nil, logging.NewError(logging.ErrorTypeConfig,
			"condition entries must be a list", err, nil)
	}

	entries := make([]ConditionEntry, 0, len(rawEntries))
	for _, rawEntry := range rawEntries {
		var literal string
		if err := json.Unmarshal(rawEntry, &literal); err == nil {
			entries = append(entries, ConditionEntry{Literal: literal})
			continue
		}

		var regexEntry map[string]string
		if err := json.Unmarshal(rawEntry, &regexEntry); err != nil {
			return nil, logging.NewError(logging.ErrorTypeConfig,
				"condition entry is neither a name nor a $regex object", err,
				map[string]interface{}{"entry": string(rawEntry)})
		}
		pattern, ok := regexEntry["$regex"]
		if !ok || len(regexEntry) != 1 {
			return nil, logging.NewError(logging.ErrorTypeConfig,
				"condition entry object must contain exactly the $regex operator", nil,
				map[string]interface{}{"entry": string(rawEntry)})
		}
		entries = append(entries, ConditionEntry{Regex: pattern, IsRegex: true})
	}
	return entries, nil
}

func (c HostOrServiceConditions) MarshalJSON() ([]byte, error) {
	entries := make([]interface{}, 0, len(c.Entries))
	for _, entry := range c.Entries {
		if entry.IsRegex {
			entries = append(entries, map[string]string{"$regex": entry.Regex})
			continue
		}
		entries = append(entries, entry.Literal)
	}
	if c.Negate {
		return json.Marshal(map[string]interface{}{"$nor": entries})
	}
	return json.Marshal(entries)
}
