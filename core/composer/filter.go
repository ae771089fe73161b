package composer

import (
	"sort"
	"strings"

	"github.com/adalundhe/agentpm/core/profile"
)

// ContextItem is one ambient context entry that survived filtering.
type ContextItem struct {
	Key   string
	Value string
}

// FilterContext applies an agent's context preferences to the request's
// ambient context. An item matching any exclude tag is always dropped.
// When the include list is non-empty and at least one surviving item
// matches it, non-matching items are dropped too; when nothing matches,
// every surviving item passes through, since include tags are topical
// hints and a task is better served by unranked context than by none.
// Results are sorted by key so rendering is deterministic.
//
// An item matches a tag when, after lowercasing, the tag is a substring
// of the key, the key is a substring of the tag, or the tag is a
// substring of the value.
func FilterContext(prefs profile.ContextPreferences, context map[string]string) []ContextItem {
	if len(context) == 0 {
		return nil
	}

	kept := make([]ContextItem, 0, len(context))
	for key, value := range context {
		if matchesAny(prefs.Exclude, key, value) {
			continue
		}
		kept = append(kept, ContextItem{Key: key, Value: value})
	}

	if len(prefs.Include) > 0 {
		matched := kept[:0:0]
		for _, item := range kept {
			if matchesAny(prefs.Include, item.Key, item.Value) {
				matched = append(matched, item)
			}
		}
		if len(matched) > 0 {
			kept = matched
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Key < kept[j].Key })
	return kept
}

func matchesAny(tags []string, key, value string) bool {
	key = strings.ToLower(key)
	value = strings.ToLower(value)
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if strings.Contains(key, tag) || strings.Contains(tag, key) || strings.Contains(value, tag) {
			return true
		}
	}
	return false
}
