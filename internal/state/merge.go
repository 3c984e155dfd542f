package state

import (
	"maps"
	"slices"

	"github.com/dotcommander/simuwork/internal/models"
)

// Merge returns a new tree with patch deep-merged over base. Nested maps
// recurse; every other value, lists included, replaces what base held.
// Neither argument is modified, and subtrees of base that patch does not
// touch are shared with the result.
func Merge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	maps.Copy(out, base)

	for key, value := range patch {
		sub, ok := value.(map[string]any)
		if !ok {
			out[key] = cloneValue(value)
			continue
		}
		if current, ok := out[key].(map[string]any); ok {
			out[key] = Merge(current, sub)
			continue
		}
		out[key] = Clone(sub)
	}
	return out
}

// Clone returns a deep copy of tree.
func Clone(tree map[string]any) map[string]any {
	if tree == nil {
		return nil
	}
	out := make(map[string]any, len(tree))
	for key, value := range tree {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return Clone(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(v)
	case []models.Message:
		return slices.Clone(v)
	case []models.Objective:
		return slices.Clone(v)
	case []models.UserAction:
		return slices.Clone(v)
	}
	return value
}
