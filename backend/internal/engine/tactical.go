package engine

// TacticalEventType is the closed set of model-asserted mechanical
// outcomes accepted on the tactical-event channel (spec §4.8).
type TacticalEventType string

const (
	TacticalMove          TacticalEventType = "MOVE"
	TacticalAttack        TacticalEventType = "ATTACK"
	TacticalDamage        TacticalEventType = "DAMAGE"
	TacticalStatusApply   TacticalEventType = "STATUS_APPLY"
	TacticalStatusRemove  TacticalEventType = "STATUS_REMOVE"
	TacticalTurnStart     TacticalEventType = "TURN_START"
	TacticalTurnEnd       TacticalEventType = "TURN_END"
	TacticalRoundEnd      TacticalEventType = "ROUND_END"
)

// TacticalEvent is a flat tagged-variant event the model asserts
// directly, as an alternative to routing every outcome through
// applyAction. Unused fields per variant are the same deliberate
// tradeoff as Action/EngineEvent/Effect.
type TacticalEvent struct {
	EventID  string            `json:"eventId"`
	Type     TacticalEventType `json:"type"`
	ActorID  string            `json:"actorId"`

	// MOVE
	PositionBefore *Position `json:"positionBefore,omitempty"`
	PositionAfter  *Position `json:"positionAfter,omitempty"`

	// ATTACK / DAMAGE
	TargetID string `json:"targetId,omitempty"`
	Value    int    `json:"value,omitempty"`

	// STATUS_APPLY / STATUS_REMOVE
	Status   string `json:"status,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

// ValidateTacticalEvents runs the ordered per-event validator described
// in spec §4.8. Returns violations in event order; an empty slice means
// the whole batch is legal.
func ValidateTacticalEvents(s GameState, events []TacticalEvent) []Violation {
	var v []Violation
	seen := make(map[string]bool)

	for _, e := range events {
		if e.EventID == "" || seen[e.EventID] {
			v = append(v, violation("TACTICAL_DUPLICATE_EVENT_ID", "event id %q is empty or duplicated", e.EventID))
			continue
		}
		seen[e.EventID] = true

		if _, _, ok := s.FindEntity(e.ActorID); !ok {
			v = append(v, violation("TACTICAL_UNKNOWN_ACTOR", "event %q references unknown actor %q", e.EventID, e.ActorID))
			continue
		}

		switch e.Type {
		case TacticalMove:
			if e.PositionBefore == nil || e.PositionAfter == nil {
				v = append(v, violation("TACTICAL_MOVE_MISSING_POSITIONS", "event %q requires position_before and position_after", e.EventID))
			}

		case TacticalAttack:
			if e.TargetID == "" {
				v = append(v, violation("TACTICAL_ATTACK_MISSING_TARGET", "event %q requires target_id", e.EventID))
			} else if _, _, ok := s.FindEntity(e.TargetID); !ok {
				v = append(v, violation("TACTICAL_UNKNOWN_TARGET", "event %q references unknown target %q", e.EventID, e.TargetID))
			}

		case TacticalDamage:
			if e.TargetID == "" {
				v = append(v, violation("TACTICAL_DAMAGE_MISSING_TARGET", "event %q requires target_id", e.EventID))
			} else if _, _, ok := s.FindEntity(e.TargetID); !ok {
				v = append(v, violation("TACTICAL_UNKNOWN_TARGET", "event %q references unknown target %q", e.EventID, e.TargetID))
			}
			if e.Value < 0 {
				v = append(v, violation("TACTICAL_DAMAGE_NEGATIVE_VALUE", "event %q has negative damage value", e.EventID))
			}

		case TacticalStatusApply:
			if e.Status == "" {
				v = append(v, violation("TACTICAL_STATUS_MISSING", "event %q requires status", e.EventID))
			}
			if e.Duration < 1 {
				v = append(v, violation("TACTICAL_STATUS_DURATION", "event %q requires duration >= 1", e.EventID))
			}

		case TacticalStatusRemove:
			if e.Status == "" {
				v = append(v, violation("TACTICAL_STATUS_MISSING", "event %q requires status", e.EventID))
			}

		case TacticalTurnStart, TacticalTurnEnd, TacticalRoundEnd:
			if e.PositionBefore != nil || e.PositionAfter != nil || e.Value != 0 {
				v = append(v, violation("TACTICAL_TURN_EVENT_HAS_MECHANICAL_FIELDS", "event %q must not carry movement/damage fields", e.EventID))
			}

		default:
			v = append(v, violation("TACTICAL_UNKNOWN_TYPE", "event %q has unrecognized type %q", e.EventID, e.Type))
		}
	}

	return v
}

// ApplyTacticalEvents deep-clones the input state and applies a
// validated batch of tactical events in order. Callers MUST call
// ValidateTacticalEvents first and discard the result on any violation.
// Position collisions and HP-below-zero are hard errors that reject the
// entire batch (spec §4.8), reported via the returned bool.
func ApplyTacticalEvents(s GameState, events []TacticalEvent) (GameState, []EngineEvent, bool) {
	out := s.Clone()
	var emitted []EngineEvent
	seq := 0

	for _, e := range events {
		switch e.Type {
		case TacticalMove:
			ent, bucket, ok := out.FindEntity(e.ActorID)
			if !ok {
				return s, nil, false
			}
			if occID, occ := occupiedBy(out, *e.PositionAfter); occ && occID != e.ActorID {
				return s, nil, false
			}
			from := ent.Position
			ent.Position = *e.PositionAfter
			out = out.WithEntity(bucket, e.ActorID, ent)
			emitted = append(emitted, EngineEvent{
				ID: nextEventID(&seq), Type: EventMoveApplied, EntityID: e.ActorID,
				From: &from, FinalPosition: e.PositionAfter,
			})

		case TacticalAttack, TacticalDamage:
			ent, bucket, ok := out.FindEntity(e.TargetID)
			if !ok {
				return s, nil, false
			}
			before := ent.Stats.HPCurrent
			after := before - e.Value
			if after < 0 {
				return s, nil, false
			}
			ent.Stats.HPCurrent = after
			out = out.WithEntity(bucket, e.TargetID, ent)
			emitted = append(emitted, EngineEvent{
				ID: nextEventID(&seq), Type: EventAttackResolved,
				AttackerID: e.ActorID, TargetID: e.TargetID, Damage: e.Value,
				TargetHPBefore: before, TargetHPAfter: after, Hit: true,
			})
			if after == 0 {
				ent2, _, _ := out.FindEntity(e.TargetID)
				ent2 = ApplyCondition(ent2, "dead", nil)
				out = out.WithEntity(bucket, e.TargetID, ent2)
				emitted = append(emitted, EngineEvent{ID: nextEventID(&seq), Type: EventConditionApplied, EntityID: e.TargetID, Status: "dead"})
			}

		case TacticalStatusApply:
			ent, bucket, ok := out.FindEntity(e.ActorID)
			if !ok {
				return s, nil, false
			}
			dur := e.Duration
			ent = ApplyCondition(ent, e.Status, &dur)
			out = out.WithEntity(bucket, e.ActorID, ent)
			emitted = append(emitted, EngineEvent{ID: nextEventID(&seq), Type: EventConditionApplied, EntityID: e.ActorID, Status: e.Status, Duration: e.Duration})

		case TacticalStatusRemove:
			ent, bucket, ok := out.FindEntity(e.ActorID)
			if !ok {
				return s, nil, false
			}
			ent = RemoveCondition(ent, e.Status)
			out = out.WithEntity(bucket, e.ActorID, ent)
			emitted = append(emitted, EngineEvent{ID: nextEventID(&seq), Type: EventConditionExpired, EntityID: e.ActorID, Status: e.Status})

		case TacticalTurnStart:
			var startEvents []EngineEvent
			out, startEvents = processStartOfTurn(out, e.ActorID, &seq)
			emitted = append(emitted, startEvents...)

		case TacticalTurnEnd:
			var endEvents []EngineEvent
			out, endEvents = processEndOfTurn(out, e.ActorID, &seq)
			emitted = append(emitted, endEvents...)
			emitted = append(emitted, EngineEvent{ID: nextEventID(&seq), Type: EventTurnEnded, EntityID: e.ActorID, Round: out.Combat.Round})

		case TacticalRoundEnd:
			out.Combat.Round++
			emitted = append(emitted, EngineEvent{ID: nextEventID(&seq), Type: EventTurnEnded, Round: out.Combat.Round})
		}
	}

	return out, emitted, true
}
