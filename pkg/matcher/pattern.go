// argus/pkg/matcher/pattern.go

package matcher

import (
	"regexp"
	"strings"

	"kwalsh/argus/pkg/logging"
	"kwalsh/argus/pkg/ruleset"
)

// PreprocessedPattern is a whole service description condition list
// compiled down to a single regular expression plus the shared negation
// flag of the list.
type PreprocessedPattern struct {
	Negate  bool
	Pattern *regexp.Regexp
}

var matchEverything = regexp.MustCompile("")

// convertPatternList compiles a service description condition list to a
// single anchored alternation. Reducing the number of individual regex
// matches improves performance dramatically on large rulesets. The
// negation flag of the list applies to the combined pattern as a whole.
func convertPatternList(conditions *ruleset.HostOrServiceConditions) (PreprocessedPattern, error) {
	if conditions == nil || len(conditions.Entries) == 0 {
		return PreprocessedPattern{Negate: conditions != nil && conditions.Negate, Pattern: matchEverything}, nil
	}

	parts := make([]string, 0, len(conditions.Entries))
	for _, entry := range conditions.Entries {
		if entry.IsRegex {
			parts = append(parts, "(?:"+entry.Regex+")")
			continue
		}
		// Literal entries only count as a complete match
		parts = append(parts, "(?:"+regexp.QuoteMeta(entry.Literal)+"$)")
	}

	combined, err := regexp.Compile("^(?:" + strings.Join(parts, "|") + ")")
	if err != nil {
		return PreprocessedPattern{}, logging.NewError(logging.ErrorTypeConfig,
			"failed to compile service description patterns", err,
			map[string]interface{}{"patterns": parts})
	}

	return PreprocessedPattern{Negate: conditions.Negate, Pattern: combined}, nil
}

// Matches applies the compiled pattern to a service description, honoring
// the negation flag.
func (p PreprocessedPattern) Matches(description ruleset.ServiceName) bool {
	if p.Pattern.MatchString(description) {
		return !p.Negate
	}
	return p.Negate
}

// conditionCacheID builds the stable identity of a rule's host conditions
// used to key the all-matching-hosts cache. It is total over the
// condition space: the negation flag, regex entries, every tag and label
// operator form and the folder path are all distinguishable.
func conditionCacheID(condition *ruleset.Condition) string {
	var sb strings.Builder
	sb.WriteString(condition.HostName.CacheID())
	sb.WriteString("\x1e")
	sb.WriteString(condition.HostTags.CacheID())
	sb.WriteString("\x1e")
	sb.WriteString(condition.HostLabels.CacheID())
	sb.WriteString("\x1e")
	sb.WriteString(condition.Folder())
	return sb.String()
}
