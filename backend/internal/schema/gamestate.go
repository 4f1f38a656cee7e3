package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rpgengine/arbiter/backend/internal/engine"
)

// ParseGameState decodes raw into a GameState, rejecting any property not
// named in the GameState schema at any nesting level (spec §6.2:
// "additionalProperties: false at every object level").
func ParseGameState(raw []byte) (engine.GameState, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var s engine.GameState
	if err := dec.Decode(&s); err != nil {
		return engine.GameState{}, fmt.Errorf("state schema invalid: %w", err)
	}
	if dec.More() {
		return engine.GameState{}, fmt.Errorf("state schema invalid: trailing data after state")
	}
	if err := structValidator.Validate(s); err != nil {
		return engine.GameState{}, fmt.Errorf("state schema invalid: %w", err)
	}

	return s, nil
}

// VersionStatus classifies the result of comparing a loaded state's
// schemaVersion against the engine's own.
type VersionStatus string

const (
	VersionMatch         VersionStatus = "match"
	VersionMinorMismatch VersionStatus = "minor_mismatch"
	VersionMajorMismatch VersionStatus = "major_mismatch"
)

// CompareSchemaVersion implements spec §6.2's rule: "The engine refuses
// a state with a differing MAJOR and warns on differing MINOR." have and
// want are both "MAJOR.MINOR.PATCH" strings.
func CompareSchemaVersion(have, want string) (VersionStatus, error) {
	haveParts, err := splitVersion(have)
	if err != nil {
		return "", fmt.Errorf("state schema version: %w", err)
	}
	wantParts, err := splitVersion(want)
	if err != nil {
		return "", fmt.Errorf("engine schema version: %w", err)
	}

	if haveParts[0] != wantParts[0] {
		return VersionMajorMismatch, nil
	}
	if haveParts[1] != wantParts[1] {
		return VersionMinorMismatch, nil
	}
	return VersionMatch, nil
}

func splitVersion(v string) ([3]int, error) {
	var out [3]int
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return out, fmt.Errorf("%q is not MAJOR.MINOR.PATCH", v)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return out, fmt.Errorf("%q is not MAJOR.MINOR.PATCH", v)
		}
		out[i] = n
	}
	return out, nil
}
