// Package schema implements structural validation of GameState and of
// the model-produced response envelope (spec §4.3, §6.2): decoding with
// strict additionalProperties closure, and the cross-field coexistence
// and entity-reference rules the decoder alone cannot express.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rpgengine/arbiter/backend/internal/engine"
	"github.com/rpgengine/arbiter/backend/pkg/validation"
)

// structValidator is the package-level go-playground validator instance
// backing the struct-tag checks on both Envelope and engine.GameState
// (required fields, oneof enums, per-element dive). Built the same way
// pkg/validation.New() builds its own instance, but kept package-local
// since schema's tag set (envelope/state DTOs) is distinct from
// pkg/validation's request-DTO callers.
var structValidator = validation.New()

// AdjudicationEntry is one rule-id/justification pair the model emits to
// explain a turn's outcome.
type AdjudicationEntry struct {
	RuleID        string `json:"rule_id" validate:"required"`
	Justification string `json:"justification" validate:"required"`
}

// Update is a narrative map/state change the model asserts alongside its
// narration. Updates never mutate GameState directly; only
// tactical_events and ability_uses are mutation channels (spec §4.9 step
// 5). EntityID, when present, is checked against the current state by
// ValidateEnvelope.
type Update struct {
	EntityID string          `json:"entity_id,omitempty"`
	Path     string          `json:"path" validate:"required"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// Envelope is the model's structured response (spec §6.1).
type Envelope struct {
	Narration      string                 `json:"narration" validate:"required"`
	Adjudication   []AdjudicationEntry    `json:"adjudication" validate:"dive"`
	MapUpdates     []Update               `json:"map_updates" validate:"dive"`
	StateUpdates   []Update               `json:"state_updates" validate:"dive"`
	Questions      []string               `json:"questions"`
	TacticalEvents []engine.TacticalEvent `json:"tactical_events,omitempty"`
	AbilityUses    []engine.AbilityUse    `json:"ability_uses,omitempty"`
}

// ParseEnvelope decodes raw into an Envelope, rejecting any property not
// named in the envelope schema at any nesting level (strict-mode
// structural envelope, spec §6.1: "no extra properties").
func ParseEnvelope(raw []byte) (Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var e Envelope
	if err := dec.Decode(&e); err != nil {
		return Envelope{}, fmt.Errorf("envelope schema invalid: %w", err)
	}
	if dec.More() {
		return Envelope{}, fmt.Errorf("envelope schema invalid: trailing data after envelope")
	}
	if err := structValidator.Validate(e); err != nil {
		return Envelope{}, fmt.Errorf("envelope schema invalid: %w", err)
	}

	return e, nil
}

// ValidateEnvelope checks the two coexistence rules the decoder cannot
// express on its own: tactical_events/ability_uses mutual exclusivity,
// and that every entity_id in map_updates and state_updates resolves
// against s.
// It does not re-run the per-event/per-use validators in
// internal/engine — those run separately once the caller has picked a
// mutation channel.
func ValidateEnvelope(s engine.GameState, e Envelope) []engine.Violation {
	var v []engine.Violation

	if len(e.TacticalEvents) > 0 && len(e.AbilityUses) > 0 {
		v = append(v, engine.Violation{
			Code:        "RESPONSE_TACTICAL_ABILITY_EXCLUSIVE",
			Description: "envelope carries both tactical_events and ability_uses",
		})
	}

	for _, u := range e.MapUpdates {
		v = append(v, checkUpdateReference(s, "map_updates", u)...)
	}
	for _, u := range e.StateUpdates {
		v = append(v, checkUpdateReference(s, "state_updates", u)...)
	}

	return v
}

func checkUpdateReference(s engine.GameState, field string, u Update) []engine.Violation {
	if u.EntityID == "" {
		return nil
	}
	if _, _, ok := s.FindEntity(u.EntityID); !ok {
		return []engine.Violation{{
			Code:        "RESPONSE_UNKNOWN_ENTITY_REFERENCE",
			Description: fmt.Sprintf("%s entry references unknown entity %q", field, u.EntityID),
		}}
	}
	return nil
}
