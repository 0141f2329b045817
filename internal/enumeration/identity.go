// Package enumeration persists enumeration items so detection re-runs
// resolve the same item identities.
package enumeration

import (
	"encoding/json"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
)

// canonical renders v as JSON. Map keys are sorted by encoding/json, so
// equal param maps always render identically.
func canonical(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return model.ToString(v)
	}
	return string(data)
}

// idKey is the identity of an item under the configured id keys: the
// subset of its params named by idKeys.
func idKey(item *model.EnumerationItem, idKeys []string) string {
	subset := make(map[string]any, len(idKeys))
	for _, key := range idKeys {
		subset[key] = item.Params[key]
	}
	return canonical(subset)
}

func sameAlert(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// matches reports whether stored has the identity of candidate. With id
// keys only the id-key subset is compared, else the name and every param.
func matches(stored, candidate *model.EnumerationItem, idKeys []string) bool {
	if !sameAlert(stored.AlertID, candidate.AlertID) {
		return false
	}
	if len(idKeys) > 0 {
		return idKey(stored, idKeys) == idKey(candidate, idKeys)
	}
	return stored.Name == candidate.Name && canonical(stored.Params) == canonical(candidate.Params)
}

// needsUpdate reports whether a match found through id keys carries stale
// name or params. The enumerator is the source of truth.
func needsUpdate(stored, candidate *model.EnumerationItem) bool {
	return stored.Name != candidate.Name ||
		stored.Description != candidate.Description ||
		canonical(stored.Params) != canonical(candidate.Params)
}
