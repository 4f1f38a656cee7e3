package engine

import "fmt"

// AbilityActionType is an ability's action-economy cost category.
type AbilityActionType string

const (
	ActionTypeAction   AbilityActionType = "ACTION"
	ActionTypeBonus    AbilityActionType = "BONUS"
	ActionTypeReaction AbilityActionType = "REACTION"
)

// Targeting enumerates how an ability's targets are supplied.
type Targeting string

const (
	TargetSelf        Targeting = "SELF"
	TargetSingleEnemy Targeting = "SINGLE_ENEMY"
	TargetSingleAlly  Targeting = "SINGLE_ALLY"
	TargetMulti       Targeting = "MULTI"
	TargetArea        Targeting = "AREA"
	TargetPosition    Targeting = "POSITION"
)

// AbilityRange describes how far an ability reaches.
type AbilityRange struct {
	Type     string `json:"type"`
	Distance int    `json:"distance"`
}

// AbilityCost is what using the ability consumes.
type AbilityCost struct {
	AP       int `json:"ap,omitempty"`
	Mana     int `json:"mana,omitempty"`
	Cooldown int `json:"cooldown,omitempty"`
}

// EffectKind is the closed set of ability effect tags.
type EffectKind string

const (
	EffectDamage       EffectKind = "DAMAGE"
	EffectHeal         EffectKind = "HEAL"
	EffectApplyStatus  EffectKind = "APPLY_STATUS"
	EffectRemoveStatus EffectKind = "REMOVE_STATUS"
	EffectForcedMove   EffectKind = "FORCED_MOVE"
)

// ForcedMoveDirection is FORCED_MOVE's push/pull discriminator.
type ForcedMoveDirection string

const (
	ForcedMovePush ForcedMoveDirection = "push"
	ForcedMovePull ForcedMoveDirection = "pull"
)

// Effect is a tagged-variant ability effect. Flat struct over an
// interface hierarchy for the same reason EngineEvent is: simple JSON
// round-tripping for a small closed set of variants (spec §9).
type Effect struct {
	Kind EffectKind `json:"kind"`

	// DAMAGE / HEAL
	Value int `json:"value,omitempty"`

	// APPLY_STATUS
	Status   string `json:"status,omitempty"`
	Duration int    `json:"duration,omitempty"`

	// REMOVE_STATUS reuses Status above.

	// FORCED_MOVE
	Distance  int                 `json:"distance,omitempty"`
	Direction ForcedMoveDirection `json:"direction,omitempty"`
}

// AbilityDefinition is one static catalogue entry.
type AbilityDefinition struct {
	AbilityID  string            `json:"abilityId"`
	Name       string            `json:"name"`
	ActionType AbilityActionType `json:"actionType"`
	Range      AbilityRange      `json:"range"`
	Targeting  Targeting         `json:"targeting"`
	Cost       AbilityCost       `json:"cost"`
	Effects    []Effect          `json:"effects"`
}

func findAbility(catalogue []AbilityDefinition, id string) (AbilityDefinition, bool) {
	for _, a := range catalogue {
		if a.AbilityID == id {
			return a, true
		}
	}
	return AbilityDefinition{}, false
}

// AbilityUse is one envelope-asserted ability invocation.
type AbilityUse struct {
	UseID           string   `json:"useId"`
	ActorID         string   `json:"actorId"`
	AbilityID       string   `json:"abilityId"`
	TargetIDs       []string `json:"targetIds,omitempty"`
	TargetPositions []Position `json:"targetPositions,omitempty"`
}

// AbilityUseResult is the outcome of resolving one use.
type AbilityUseResult struct {
	State  GameState
	Events []EngineEvent
}

// chebyshev computes Chebyshev (king-move) distance between two cells.
func chebyshev(a, b Position) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

func expectedTargetCount(t Targeting) (min, max int) {
	switch t {
	case TargetSelf:
		return 0, 0
	case TargetSingleEnemy, TargetSingleAlly:
		return 1, 1
	case TargetMulti:
		return 1, -1 // -1 = unbounded
	case TargetArea, TargetPosition:
		return 0, 0
	default:
		return 0, 0
	}
}

// ValidateAbilityUses runs the ordered per-use validator over every use
// in an envelope, tracking cumulative resource consumption across
// preceding uses in the same batch (spec §4.5). Returns violations in
// use order; an empty slice means every use is legal.
func ValidateAbilityUses(s GameState, uses []AbilityUse) []Violation {
	var v []Violation
	seenUseIDs := make(map[string]bool)
	spent := make(map[string]map[string]int) // actorID -> resource -> cumulative spend
	cooldownConsumed := make(map[string]map[string]bool) // actorID -> abilityID -> consumed this batch

	for _, use := range uses {
		if use.UseID == "" || seenUseIDs[use.UseID] {
			v = append(v, violation("ABILITY_DUPLICATE_USE_ID", "ability use id %q is empty or duplicated", use.UseID))
			continue
		}
		seenUseIDs[use.UseID] = true

		actor, _, ok := s.FindEntity(use.ActorID)
		if !ok {
			v = append(v, violation("ABILITY_UNKNOWN_ACTOR", "use %q references unknown actor %q", use.UseID, use.ActorID))
			continue
		}

		def, ok := findAbility(s.AbilitiesCatalogue, use.AbilityID)
		if !ok {
			v = append(v, violation("ABILITY_UNKNOWN", "use %q references unknown ability %q", use.UseID, use.AbilityID))
			continue
		}

		hasAbility := false
		for _, id := range actor.AbilityIDs {
			if id == use.AbilityID {
				hasAbility = true
				break
			}
		}
		if !hasAbility {
			v = append(v, violation("ABILITY_NOT_OWNED", "actor %q does not have ability %q", actor.ID, use.AbilityID))
			continue
		}

		min, max := expectedTargetCount(def.Targeting)
		n := len(use.TargetIDs)
		if n < min || (max >= 0 && n > max) {
			v = append(v, violation("ABILITY_TARGET_CARDINALITY", "use %q targeting %q expects between %d and %d targets, got %d", use.UseID, def.Targeting, min, max, n))
		}

		for _, targetID := range use.TargetIDs {
			target, _, ok := s.FindEntity(targetID)
			if !ok {
				v = append(v, violation("ABILITY_UNKNOWN_TARGET", "use %q references unknown target %q", use.UseID, targetID))
				continue
			}
			if def.Targeting != TargetSelf {
				if def.Range.Distance > 0 && chebyshev(actor.Position, target.Position) > def.Range.Distance {
					v = append(v, violation("ABILITY_OUT_OF_RANGE", "use %q target %q is out of range", use.UseID, targetID))
				}
			}
		}

		if (def.Targeting == TargetArea || def.Targeting == TargetPosition) && len(use.TargetPositions) == 0 {
			v = append(v, violation("ABILITY_MISSING_TARGET_POSITIONS", "use %q targeting %q requires target_positions", use.UseID, def.Targeting))
		}

		if spent[actor.ID] == nil {
			spent[actor.ID] = make(map[string]int)
		}
		if def.Cost.AP > 0 {
			spent[actor.ID]["ap"] += def.Cost.AP
			if spent[actor.ID]["ap"] > actor.Resources["ap"] {
				v = append(v, violation("ABILITY_INSUFFICIENT_RESOURCE", "use %q: actor %q has insufficient ap", use.UseID, actor.ID))
			}
		}
		if def.Cost.Mana > 0 {
			spent[actor.ID]["mana"] += def.Cost.Mana
			if spent[actor.ID]["mana"] > actor.Resources["mana"] {
				v = append(v, violation("ABILITY_INSUFFICIENT_RESOURCE", "use %q: actor %q has insufficient mana", use.UseID, actor.ID))
			}
		}

		if cd, ok := actor.AbilityCooldowns[use.AbilityID]; ok && cd > 0 {
			v = append(v, violation("ABILITY_ON_COOLDOWN", "use %q: ability %q is on cooldown (%d remaining)", use.UseID, use.AbilityID, cd))
		}
		if cooldownConsumed[actor.ID] == nil {
			cooldownConsumed[actor.ID] = make(map[string]bool)
		}
		if cooldownConsumed[actor.ID][use.AbilityID] {
			v = append(v, violation("ABILITY_ALREADY_USED_THIS_BATCH", "use %q: ability %q already used earlier in this envelope", use.UseID, use.AbilityID))
		}
		cooldownConsumed[actor.ID][use.AbilityID] = true
	}

	return v
}

// ResolveAbilityUses applies a validated batch of ability uses in
// order, deep-cloning the input state, deducting costs, applying each
// effect in declaration order, and emitting one event per target per
// effect. Callers MUST call ValidateAbilityUses first and discard
// results if any violation is present (spec §4.5 failure semantics).
func ResolveAbilityUses(s GameState, uses []AbilityUse) (GameState, []EngineEvent) {
	out := s.Clone()
	var events []EngineEvent

	for _, use := range uses {
		actor, bucket, ok := out.FindEntity(use.ActorID)
		if !ok {
			continue
		}
		def, ok := findAbility(out.AbilitiesCatalogue, use.AbilityID)
		if !ok {
			continue
		}

		if actor.Resources == nil {
			actor.Resources = make(map[string]int)
		}
		actor.Resources["ap"] -= def.Cost.AP
		actor.Resources["mana"] -= def.Cost.Mana
		if def.Cost.Cooldown > 0 {
			if actor.AbilityCooldowns == nil {
				actor.AbilityCooldowns = make(map[string]int)
			}
			actor.AbilityCooldowns[use.AbilityID] = def.Cost.Cooldown
		}
		out = out.WithEntity(bucket, actor.ID, actor)

		seq := 0
		for _, effect := range def.Effects {
			out, events = applyAbilityEffect(out, use, effect, events, &seq)
		}
	}

	return out, events
}

func applyAbilityEffect(s GameState, use AbilityUse, effect Effect, events []EngineEvent, seq *int) (GameState, []EngineEvent) {
	targets := use.TargetIDs
	if effect.Kind == EffectForcedMove && len(targets) == 0 {
		targets = []string{use.ActorID}
	}
	if len(targets) == 0 && (effect.Kind == EffectDamage || effect.Kind == EffectHeal || effect.Kind == EffectApplyStatus || effect.Kind == EffectRemoveStatus) {
		targets = []string{use.ActorID}
	}

	for _, targetID := range targets {
		target, bucket, ok := s.FindEntity(targetID)
		if !ok {
			continue
		}

		switch effect.Kind {
		case EffectDamage:
			before := target.Stats.HPCurrent
			after := before - effect.Value
			if after < 0 {
				after = 0
			}
			target.Stats.HPCurrent = after
			s = s.WithEntity(bucket, targetID, target)
			events = append(events, EngineEvent{
				ID: abilityEventID(use.UseID, seq), Type: EventAbilityResolved,
				AbilityID: use.AbilityID, UseID: use.UseID,
				TargetID: targetID, TargetHPBefore: before, TargetHPAfter: after, Damage: effect.Value,
			})

		case EffectHeal:
			before := target.Stats.HPCurrent
			hpCap := target.Stats.HPMax
			if hpCap <= 0 {
				// known limitation: no hpMax means heal clamps to
				// current HP, i.e. is a no-op, per spec §4.5.
				hpCap = before
			}
			after := before + effect.Value
			if after > hpCap {
				after = hpCap
			}
			target.Stats.HPCurrent = after
			s = s.WithEntity(bucket, targetID, target)
			if after == before {
				events = append(events, EngineEvent{
					ID: abilityEventID(use.UseID, seq), Type: EventHealNoop,
					AbilityID: use.AbilityID, UseID: use.UseID, TargetID: targetID,
					TargetHPBefore: before, TargetHPAfter: after,
				})
			} else {
				events = append(events, EngineEvent{
					ID: abilityEventID(use.UseID, seq), Type: EventAbilityResolved,
					AbilityID: use.AbilityID, UseID: use.UseID, TargetID: targetID,
					TargetHPBefore: before, TargetHPAfter: after, Damage: -(after - before),
				})
			}

		case EffectApplyStatus:
			dur := effect.Duration
			target = ApplyCondition(target, effect.Status, &dur)
			s = s.WithEntity(bucket, targetID, target)
			events = append(events, EngineEvent{
				ID: abilityEventID(use.UseID, seq), Type: EventConditionApplied,
				AbilityID: use.AbilityID, UseID: use.UseID, EntityID: targetID,
				Status: effect.Status, Duration: effect.Duration,
			})

		case EffectRemoveStatus:
			target = RemoveCondition(target, effect.Status)
			s = s.WithEntity(bucket, targetID, target)
			events = append(events, EngineEvent{
				ID: abilityEventID(use.UseID, seq), Type: EventConditionExpired,
				AbilityID: use.AbilityID, UseID: use.UseID, EntityID: targetID,
				Status: effect.Status,
			})

		case EffectForcedMove:
			actor, _, _ := s.FindEntity(use.ActorID)
			newPos, clamped := forcedMovePosition(s, actor.Position, target.Position, effect.Distance, effect.Direction)
			from := target.Position
			target.Position = newPos
			s = s.WithEntity(bucket, targetID, target)
			ev := EngineEvent{
				ID: abilityEventID(use.UseID, seq), Type: EventMoveApplied,
				AbilityID: use.AbilityID, UseID: use.UseID, EntityID: targetID,
				From: &from, FinalPosition: &newPos,
			}
			if clamped {
				ev.Meta = map[string]interface{}{
					"KNOWN_LIMITATION": "forced move distance exceeded map bounds and was clamped at the boundary",
				}
			}
			events = append(events, ev)
		}
	}

	return s, events
}

// forcedMovePosition computes the unit vector from actor to target and
// steps the target distance cells away (push) or toward (pull) the
// actor, clamping coordinates at zero (spec §4.5). It reports whether
// clamping occurred so the caller can flag the event with
// Meta["KNOWN_LIMITATION"]. Out-of-bounds on the upper side is a known
// limitation left to the invariant gate.
func forcedMovePosition(s GameState, actor, target Position, distance int, dir ForcedMoveDirection) (Position, bool) {
	dx := target.X - actor.X
	dy := target.Y - actor.Y
	if dx == 0 && dy == 0 {
		return target, false
	}

	stepX, stepY := unitStep(dx), unitStep(dy)
	if dir == ForcedMovePull {
		stepX, stepY = -stepX, -stepY
	}

	x := target.X + stepX*distance
	y := target.Y + stepY*distance
	clamped := false
	if x < 0 {
		x = 0
		clamped = true
	}
	if y < 0 {
		y = 0
		clamped = true
	}
	return Position{X: x, Y: y}, clamped
}

func unitStep(n int) int {
	if n > 0 {
		return 1
	}
	if n < 0 {
		return -1
	}
	return 0
}

// abilityEventID formats the deterministic <useId>-evt-<seq> id the
// spec requires for ability-resolver events, distinct from the plain
// engine-event sequence counter used elsewhere.
func abilityEventID(useID string, seq *int) string {
	*seq++
	return fmt.Sprintf("%s-evt-%d", useID, *seq)
}
