// Package replay canonically hashes game states and replays recorded
// bundles step by step, comparing produced events and state hashes
// against recorded expectations (spec §4.11).
package replay

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/rpgengine/arbiter/backend/internal/engine"
)

// CanonicalJSON renders v as JSON with object keys sorted and no
// insignificant whitespace, so two semantically equal values with
// different field-insertion order produce byte-identical output.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return canonicalEncode(generic)
}

func canonicalEncode(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			out = append(out, kb...)
			out = append(out, ':')
			vb, err := canonicalEncode(val[k])
			if err != nil {
				return nil, err
			}
			out = append(out, vb...)
		}
		out = append(out, '}')
		return out, nil
	case []interface{}:
		out := []byte{'['}
		for i, item := range val {
			if i > 0 {
				out = append(out, ',')
			}
			ib, err := canonicalEncode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, ib...)
		}
		out = append(out, ']')
		return out, nil
	default:
		return json.Marshal(val)
	}
}

// StateHash returns the 16-hex-character FNV-1a 64-bit hash of s's
// canonical JSON form. Stable across runs, insertion order, and Go
// versions as long as json.Marshal's scalar encoding does not change.
func StateHash(s engine.GameState) (string, error) {
	canon, err := CanonicalJSON(s)
	if err != nil {
		return "", fmt.Errorf("canonicalize state: %w", err)
	}
	h := fnv.New64a()
	if _, err := h.Write(canon); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
