package engine

import "sort"

// ActionType is the closed set of whitelisted action tags (spec §4.7).
// Any other tag is rejected as UNKNOWN_ACTION.
type ActionType string

const (
	ActionMove           ActionType = "MOVE"
	ActionAttack         ActionType = "ATTACK"
	ActionUseAbility     ActionType = "USE_ABILITY"
	ActionDefend         ActionType = "DEFEND"
	ActionEndTurn        ActionType = "END_TURN"
	ActionRollInitiative ActionType = "ROLL_INITIATIVE"
	ActionSetSeed        ActionType = "SET_SEED"
)

// Action is a tagged-variant player/system intent. Flat struct, same
// rationale as EngineEvent and Effect: one discriminated shape over an
// interface hierarchy.
type Action struct {
	Type ActionType `json:"type"`

	// MOVE
	EntityID string     `json:"entityId,omitempty"`
	Path     []Position `json:"path,omitempty"`

	// ATTACK
	AttackerID string `json:"attackerId,omitempty"`
	TargetID   string `json:"targetId,omitempty"`

	// USE_ABILITY
	AbilityID       string     `json:"abilityId,omitempty"`
	TargetPositions []Position `json:"targetPositions,omitempty"`

	// SET_SEED
	Seed string `json:"seed,omitempty"`
}

// ActionError is one {code, message} failure reported on a rejected
// action.
type ActionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ActionResult is applyAction's return contract: on Success=false,
// State is the unchanged input and Errors is non-empty (spec §4.7).
type ActionResult struct {
	Success bool
	State   GameState
	Events  []EngineEvent
	Errors  []ActionError
}

func rejected(s GameState, code, message string) ActionResult {
	return ActionResult{
		Success: false,
		State:   s,
		Errors:  []ActionError{{Code: code, Message: message}},
	}
}

// ApplyAction is the engine's single mutation entry point for the
// action-intent path. Pure: on failure the input state is returned
// unchanged. On success, the result is asserted against Check before
// being returned — an invariant failure here is a programmer error
// (spec §4.7: "panic/assert").
func ApplyAction(s GameState, action Action) ActionResult {
	var result ActionResult

	switch action.Type {
	case ActionMove:
		result = applyMove(s, action)
	case ActionAttack:
		result = applyAttack(s, action)
	case ActionUseAbility:
		result = applyUseAbilityAction(s, action)
	case ActionDefend:
		result = applyDefend(s, action)
	case ActionEndTurn:
		result = applyEndTurn(s, action)
	case ActionRollInitiative:
		result = applyRollInitiative(s, action)
	case ActionSetSeed:
		result = applySetSeed(s, action)
	default:
		result = rejected(s, "UNKNOWN_ACTION", "action type is not recognized")
	}

	if result.Success {
		if violations := Check(result.State); len(violations) > 0 {
			panic("engine: post-action state violates invariants: " + violations[0].Description)
		}
	}
	return result
}

func isActiveEntity(s GameState, entityID string) bool {
	return s.Combat.Mode == ModeCombat && s.Combat.ActiveEntityID != nil && *s.Combat.ActiveEntityID == entityID
}

func applyMove(s GameState, action Action) ActionResult {
	if s.Combat.Mode == ModeCombat && !isActiveEntity(s, action.EntityID) {
		return rejected(s, "NOT_YOUR_TURN", "entity is not the active combatant")
	}
	if len(action.Path) == 0 {
		return rejected(s, "MOVE_EMPTY_PATH", "path must be non-empty")
	}

	ent, bucket, ok := s.FindEntity(action.EntityID)
	if !ok {
		return rejected(s, "MOVE_UNKNOWN_ENTITY", "entity does not exist")
	}

	prev := ent.Position
	for _, step := range action.Path {
		if chebyshev(prev, step) != 1 || (step.X != prev.X && step.Y != prev.Y) {
			return rejected(s, "MOVE_NOT_ADJACENT", "path step is not cardinally adjacent to the previous step")
		}
		if !s.Map.InBounds(step.X, step.Y) {
			return rejected(s, "MOVE_OUT_OF_BOUNDS", "path leaves the map")
		}
		if t, ok := s.Map.TerrainAt(step.X, step.Y); ok && t.BlocksMovement {
			return rejected(s, "MOVE_TILE_BLOCKED", "path crosses movement-blocking terrain")
		}
		if occID, occ := occupiedBy(s, step); occ && occID != action.EntityID {
			return rejected(s, "MOVE_TILE_OCCUPIED", "path step is occupied by another entity")
		}
		prev = step
	}

	if len(action.Path) > ent.Stats.MovementSpeed {
		return rejected(s, "MOVE_EXCEEDS_BUDGET", "path length exceeds movement speed")
	}

	from := ent.Position
	final := action.Path[len(action.Path)-1]
	ent.Position = final
	out := s.WithEntity(bucket, action.EntityID, ent)

	seq := 0
	event := EngineEvent{
		ID: nextEventID(&seq), Type: EventMoveApplied,
		EntityID: action.EntityID, From: &from,
		Path: append([]Position(nil), action.Path...), FinalPosition: &final,
	}
	return ActionResult{Success: true, State: out, Events: []EngineEvent{event}}
}

func applyAttack(s GameState, action Action) ActionResult {
	if s.Combat.Mode == ModeCombat && !isActiveEntity(s, action.AttackerID) {
		return rejected(s, "NOT_YOUR_TURN", "entity is not the active combatant")
	}

	attacker, _, ok := s.FindEntity(action.AttackerID)
	if !ok || !attacker.IsAlive() {
		return rejected(s, "ATTACK_INVALID_ATTACKER", "attacker does not exist or is not alive")
	}
	target, targetBucket, ok := s.FindEntity(action.TargetID)
	if !ok || !target.IsAlive() {
		return rejected(s, "ATTACK_INVALID_TARGET", "target does not exist or is not alive")
	}
	if chebyshev(attacker.Position, target.Position) != 1 {
		return rejected(s, "OUT_OF_RANGE", "attacker is not adjacent to target")
	}

	attackBonus := 0
	if attacker.Stats.AttackBonus != nil {
		attackBonus = *attacker.Stats.AttackBonus
	}
	modifier := attackBonus + attacker.AttackMod()

	req := D20(modifier)
	if attacker.HasCondition("poisoned") {
		req = D20Disadvantage(modifier)
	}

	rng, draw, err := Draw(s.Rng, req)
	if err != nil {
		return rejected(s, "RNG_NOT_SEEDED", err.Error())
	}

	// The kept natural d20 value is Total minus the modifier rather than
	// RawDraws[0]: under advantage/disadvantage, RawDraws holds both dice
	// in roll order, and the one actually kept (max or min) may be the
	// second draw.
	rawRoll := draw.Total - modifier
	effectiveAC := target.Stats.AC + target.ACMod()
	critical := rawRoll == 20
	autoMiss := rawRoll == 1
	hit := !autoMiss && (critical || draw.Total >= effectiveAC)

	out := s
	out.Rng = rng

	seq := 0
	damage := 0
	hpBefore := target.Stats.HPCurrent
	hpAfter := hpBefore
	var events []EngineEvent

	if hit {
		damageDie := 6
		if attacker.Stats.DamageDie != nil {
			damageDie = *attacker.Stats.DamageDie
		}
		diceCount := 1
		if critical {
			diceCount = 2
		}
		var dmgResult DrawResult
		out.Rng, dmgResult, err = Draw(out.Rng, Dice(diceCount, damageDie, modifier))
		if err != nil {
			return rejected(s, "RNG_NOT_SEEDED", err.Error())
		}
		damage = dmgResult.Total
		hpAfter = hpBefore - damage
		if hpAfter < 0 {
			hpAfter = 0
		}
		target.Stats.HPCurrent = hpAfter
		out = out.WithEntity(targetBucket, target.ID, target)
	}

	events = append(events, EngineEvent{
		ID: nextEventID(&seq), Type: EventAttackResolved,
		AttackerID: action.AttackerID, TargetID: action.TargetID,
		RawRoll: rawRoll, AttackModifier: modifier, AttackRoll: draw.Total,
		EffectiveAC: effectiveAC, Hit: hit, Critical: critical, Damage: damage,
		TargetHPBefore: hpBefore, TargetHPAfter: hpAfter,
	})

	if hit && hpAfter == 0 && !target.HasCondition("dead") {
		target = ApplyCondition(target, "dead", nil)
		out = out.WithEntity(targetBucket, target.ID, target)
		events = append(events, EngineEvent{
			ID: nextEventID(&seq), Type: EventConditionApplied,
			EntityID: action.TargetID, Status: "dead",
		})
	}

	return ActionResult{Success: true, State: out, Events: events}
}

func applyUseAbilityAction(s GameState, action Action) ActionResult {
	if s.Combat.Mode == ModeCombat && !isActiveEntity(s, action.EntityID) {
		return rejected(s, "NOT_YOUR_TURN", "entity is not the active combatant")
	}

	var targetIDs []string
	if action.TargetID != "" {
		targetIDs = []string{action.TargetID}
	}
	use := AbilityUse{
		UseID: "use-" + action.EntityID + "-" + action.AbilityID,
		ActorID: action.EntityID, AbilityID: action.AbilityID,
		TargetIDs: targetIDs, TargetPositions: action.TargetPositions,
	}

	if violations := ValidateAbilityUses(s, []AbilityUse{use}); len(violations) > 0 {
		return rejected(s, violations[0].Code, violations[0].Description)
	}

	out, events := ResolveAbilityUses(s, []AbilityUse{use})
	return ActionResult{Success: true, State: out, Events: events}
}

func applyDefend(s GameState, action Action) ActionResult {
	if s.Combat.Mode == ModeCombat && !isActiveEntity(s, action.EntityID) {
		return rejected(s, "NOT_YOUR_TURN", "entity is not the active combatant")
	}
	if _, _, ok := s.FindEntity(action.EntityID); !ok {
		return rejected(s, "DEFEND_UNKNOWN_ENTITY", "entity does not exist")
	}
	// DEFEND has no mechanical effect modeled yet beyond consuming the
	// turn; it still ends the acting entity's turn like any other action.
	return applyEndTurn(s, Action{Type: ActionEndTurn, EntityID: action.EntityID})
}

func applyEndTurn(s GameState, action Action) ActionResult {
	if s.Combat.Mode != ModeCombat {
		return rejected(s, "COMBAT_NOT_ACTIVE", "cannot end turn outside of combat")
	}
	if !isActiveEntity(s, action.EntityID) {
		return rejected(s, "NOT_YOUR_TURN", "entity is not the active combatant")
	}

	seq := 0
	var events []EngineEvent

	out, endEvents := processEndOfTurn(s, action.EntityID, &seq)
	events = append(events, endEvents...)

	if ent, bucket, ok := out.FindEntity(action.EntityID); ok {
		ent = ent.clone()
		for k, v := range ent.AbilityCooldowns {
			if v > 0 {
				ent.AbilityCooldowns[k] = v - 1
			}
		}
		out = out.WithEntity(bucket, action.EntityID, ent)
	}

	order := out.Combat.InitiativeOrder
	currentIdx := indexOf(order, action.EntityID)

	nextIdx, wrapped, anyAlive := nextLivingIndex(out, order, currentIdx)
	if !anyAlive {
		out.Combat = Combat{Mode: ModeExploration}
		events = append(events, EngineEvent{ID: nextEventID(&seq), Type: EventCombatEnd, Result: "no_living_entities"})
		return ActionResult{Success: true, State: out, Events: events}
	}

	if aliveFactions := livingFactions(out); aliveFactions < 2 {
		out.Combat = Combat{Mode: ModeExploration}
		events = append(events, EngineEvent{ID: nextEventID(&seq), Type: EventCombatEnd, Result: "one_faction_remaining"})
		return ActionResult{Success: true, State: out, Events: events}
	}

	nextID := order[nextIdx]
	out.Combat.ActiveEntityID = &nextID
	if wrapped {
		out.Combat.Round++
	}

	events = append(events, EngineEvent{
		ID: nextEventID(&seq), Type: EventTurnEnded,
		EntityID: action.EntityID, NextEntityID: nextID, Round: out.Combat.Round,
	})

	startEvents := []EngineEvent{}
	out, startEvents = processStartOfTurn(out, nextID, &seq)
	events = append(events, startEvents...)

	return ActionResult{Success: true, State: out, Events: events}
}

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

func nextLivingIndex(s GameState, order []string, from int) (idx int, wrapped bool, anyAlive bool) {
	n := len(order)
	if n == 0 {
		return 0, false, false
	}
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		if i <= from {
			wrapped = true
		}
		if ent, ok := s.Entities.Find(order[i]); ok && ent.IsAlive() {
			return i, wrapped, true
		}
	}
	return 0, false, false
}

// livingFactions counts how many of {players, npcs} still have a living
// member; combat ends once fewer than two remain (spec §4.7).
func livingFactions(s GameState) int {
	count := 0
	for _, bucket := range [][]Entity{s.Entities.Players, s.Entities.NPCs} {
		for _, e := range bucket {
			if e.IsAlive() {
				count++
				break
			}
		}
	}
	return count
}

func applyRollInitiative(s GameState, action Action) ActionResult {
	living := make([]Entity, 0)
	for _, e := range s.Entities.All() {
		if e.IsAlive() {
			living = append(living, e)
		}
	}
	if len(living) == 0 {
		return rejected(s, "ROLL_INITIATIVE_NO_ENTITIES", "no living entities to roll initiative for")
	}

	rng := s.Rng
	rolls := make(map[string]int, len(living))
	for _, e := range living {
		mod := 0
		if e.Stats.AttackBonus != nil {
			mod = *e.Stats.AttackBonus
		}
		var draw DrawResult
		var err error
		rng, draw, err = Draw(rng, D20(mod))
		if err != nil {
			return rejected(s, "RNG_NOT_SEEDED", err.Error())
		}
		rolls[e.ID] = draw.Total
	}

	sort.Slice(living, func(i, j int) bool {
		a, b := living[i], living[j]
		if rolls[a.ID] != rolls[b.ID] {
			return rolls[a.ID] > rolls[b.ID]
		}
		aBonus, bBonus := 0, 0
		if a.Stats.AttackBonus != nil {
			aBonus = *a.Stats.AttackBonus
		}
		if b.Stats.AttackBonus != nil {
			bBonus = *b.Stats.AttackBonus
		}
		if aBonus != bBonus {
			return aBonus > bBonus
		}
		return a.ID < b.ID
	})

	order := make([]string, len(living))
	for i, e := range living {
		order[i] = e.ID
	}

	out := s
	out.Rng = rng
	out.Combat = Combat{Mode: ModeCombat, Round: 1, ActiveEntityID: &order[0], InitiativeOrder: order}

	seq := 0
	events := []EngineEvent{{
		ID: nextEventID(&seq), Type: EventInitiativeSet,
		Order: order, Rolls: rolls, Round: 1,
	}}

	startEvents := []EngineEvent{}
	out, startEvents = processStartOfTurn(out, order[0], &seq)
	events = append(events, startEvents...)

	return ActionResult{Success: true, State: out, Events: events}
}

func applySetSeed(s GameState, action Action) ActionResult {
	if action.Seed == "" {
		return rejected(s, "SET_SEED_EMPTY", "seed must be non-empty")
	}
	out := s
	seed := action.Seed
	out.Rng = Rng{Mode: RngSeeded, Seed: &seed, Counter: 0, LastRolls: nil}
	return ActionResult{Success: true, State: out, Events: nil}
}
