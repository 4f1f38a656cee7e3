package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyActionUnknownType(t *testing.T) {
	s := baseState()
	result := ApplyAction(s, Action{Type: "NOT_A_REAL_ACTION"})
	assert.False(t, result.Success)
	assert.Equal(t, "UNKNOWN_ACTION", result.Errors[0].Code)
	assert.Equal(t, s, result.State, "a rejected action must return the input state unchanged")
}

func TestApplyMoveExactSpeedSucceeds(t *testing.T) {
	s := baseState() // pc-a speed 4, at (2,2)
	path := []Position{{X: 2, Y: 3}, {X: 2, Y: 4}, {X: 2, Y: 5}, {X: 2, Y: 6}}
	result := ApplyAction(s, Action{Type: ActionMove, EntityID: "pc-a", Path: path})

	require.True(t, result.Success)
	require.Len(t, result.Errors, 0)
	ent, _, _ := result.State.FindEntity("pc-a")
	assert.Equal(t, Position{X: 2, Y: 6}, ent.Position)
	require.Len(t, result.Events, 1)
	assert.Equal(t, EventMoveApplied, result.Events[0].Type)
}

func TestApplyMoveExceedsSpeedBudgetFails(t *testing.T) {
	s := baseState()
	path := []Position{{X: 2, Y: 3}, {X: 2, Y: 4}, {X: 2, Y: 5}, {X: 2, Y: 6}, {X: 2, Y: 7}}
	result := ApplyAction(s, Action{Type: ActionMove, EntityID: "pc-a", Path: path})

	require.False(t, result.Success)
	assert.Equal(t, "MOVE_EXCEEDS_BUDGET", result.Errors[0].Code)
	assert.Equal(t, s, result.State)
}

func TestApplyMoveRejectsOccupiedTile(t *testing.T) {
	s := baseState()
	ent, bucket, _ := s.FindEntity("pc-a")
	ent.Position = Position{X: 2, Y: 3}
	s = s.WithEntity(bucket, "pc-a", ent)
	ent2, bucket2, _ := s.FindEntity("npc-1")
	ent2.Position = Position{X: 2, Y: 5}
	s = s.WithEntity(bucket2, "npc-1", ent2)

	result := ApplyAction(s, Action{Type: ActionMove, EntityID: "pc-a", Path: []Position{{X: 2, Y: 4}, {X: 2, Y: 5}}})

	require.False(t, result.Success)
	assert.Equal(t, "MOVE_TILE_OCCUPIED", result.Errors[0].Code)
	assert.Equal(t, s, result.State)
}

func TestApplyMoveRejectsOutOfBounds(t *testing.T) {
	s := baseState()
	result := ApplyAction(s, Action{Type: ActionMove, EntityID: "pc-a", Path: []Position{{X: 2, Y: 1}, {X: 2, Y: 0}, {X: 2, Y: -1}}})
	assert.False(t, result.Success)
	assert.Equal(t, "MOVE_OUT_OF_BOUNDS", result.Errors[0].Code)
}

func TestApplyMoveRejectsBlockedTerrain(t *testing.T) {
	s := baseState()
	s.Map.Terrain = []TerrainCell{{X: 3, Y: 2, Type: "wall", BlocksMovement: true}}
	result := ApplyAction(s, Action{Type: ActionMove, EntityID: "pc-a", Path: []Position{{X: 3, Y: 2}}})
	assert.False(t, result.Success)
	assert.Equal(t, "MOVE_TILE_BLOCKED", result.Errors[0].Code)
}

func TestApplyMoveRejectsNonAdjacentStep(t *testing.T) {
	s := baseState()
	result := ApplyAction(s, Action{Type: ActionMove, EntityID: "pc-a", Path: []Position{{X: 4, Y: 2}}})
	assert.False(t, result.Success)
	assert.Equal(t, "MOVE_NOT_ADJACENT", result.Errors[0].Code)
}

func TestApplyMoveRejectsWhenNotActiveCombatant(t *testing.T) {
	s := combatState("npc-1", "npc-1", "pc-a")
	result := ApplyAction(s, Action{Type: ActionMove, EntityID: "pc-a", Path: []Position{{X: 3, Y: 2}}})
	assert.False(t, result.Success)
	assert.Equal(t, "NOT_YOUR_TURN", result.Errors[0].Code)
}

func TestApplyAttackRequiresAdjacency(t *testing.T) {
	s := baseState()
	ent, bucket, _ := s.FindEntity("npc-1")
	ent.Position = Position{X: 9, Y: 9}
	s = s.WithEntity(bucket, "npc-1", ent)

	result := ApplyAction(s, Action{Type: ActionAttack, AttackerID: "pc-a", TargetID: "npc-1"})
	assert.False(t, result.Success)
	assert.Equal(t, "OUT_OF_RANGE", result.Errors[0].Code)
}

func TestApplyAttackRejectsDeadAttackerOrTarget(t *testing.T) {
	s := baseState()
	ent, bucket, _ := s.FindEntity("npc-1")
	ent.Stats.HPCurrent = 0
	s = s.WithEntity(bucket, "npc-1", ent)

	result := ApplyAction(s, Action{Type: ActionAttack, AttackerID: "pc-a", TargetID: "npc-1"})
	assert.False(t, result.Success)
	assert.Equal(t, "ATTACK_INVALID_TARGET", result.Errors[0].Code)
}

func TestApplyAttackDeterministicOutcome(t *testing.T) {
	s := baseState()
	s.Rng.Seed = seedPtr("attack-determinism")

	result := ApplyAction(s, Action{Type: ActionAttack, AttackerID: "pc-a", TargetID: "npc-1"})
	require.True(t, result.Success)
	require.NotEmpty(t, result.Events)
	ev := result.Events[0]
	assert.Equal(t, EventAttackResolved, ev.Type)
	assert.Equal(t, ev.AttackRoll, ev.RawRoll+ev.AttackModifier)
	if ev.Hit {
		wantAfter := 8 - ev.Damage
		if wantAfter < 0 {
			wantAfter = 0
		}
		assert.Equal(t, wantAfter, ev.TargetHPAfter)
		assert.GreaterOrEqual(t, ev.Damage, 0)
		wantEvents := 1
		if wantAfter == 0 {
			// A killing hit also applies the dead condition.
			wantEvents = 2
		}
		assert.Len(t, result.Events, wantEvents)
	} else {
		assert.Len(t, result.Events, 1)
		assert.Equal(t, 8, ev.TargetHPAfter)
		assert.Equal(t, 0, ev.Damage)
	}

	// Replaying from the same starting state with the same seed must
	// reproduce an identical outcome (spec §5 determinism contract).
	replay := ApplyAction(s, Action{Type: ActionAttack, AttackerID: "pc-a", TargetID: "npc-1"})
	assert.Equal(t, result.Events, replay.Events)
}

func TestApplyAttackKillApplyDeadCondition(t *testing.T) {
	base := baseState()
	ent, bucket, _ := base.FindEntity("npc-1")
	ent.Stats.HPCurrent = 1
	ent.Stats.HPMax = 1
	ent.Stats.AC = -100 // low enough that any non-natural-1 roll hits
	base = base.WithEntity(bucket, "npc-1", ent)

	// Natural 1 is always an auto-miss regardless of AC, so search a
	// handful of seeds for one that lands a hit rather than asserting on
	// a single seed that might happen to roll it.
	var result ActionResult
	found := false
	for i := 0; i < 30; i++ {
		s := base
		seed := seedPtr(fmt.Sprintf("kill-seed-%d", i))
		s.Rng.Seed = seed
		result = ApplyAction(s, Action{Type: ActionAttack, AttackerID: "pc-a", TargetID: "npc-1"})
		if result.Events[0].Hit {
			found = true
			break
		}
	}
	require.True(t, found, "expected at least one of 30 seeds to roll a hit")

	atk := result.Events[0]
	assert.Equal(t, EventAttackResolved, atk.Type)
	assert.Equal(t, 0, atk.TargetHPAfter)

	require.Len(t, result.Events, 2)
	assert.Equal(t, EventConditionApplied, result.Events[1].Type)
	assert.Equal(t, "dead", result.Events[1].Status)

	updated, _, _ := result.State.FindEntity("npc-1")
	assert.True(t, updated.HasCondition("dead"))
}

func TestApplyAttackUnderPoisonUsesDisadvantage(t *testing.T) {
	s := baseState()
	ent, bucket, _ := s.FindEntity("pc-a")
	ent = ApplyCondition(ent, "poisoned", intPtr(3))
	s = s.WithEntity(bucket, "pc-a", ent)

	// Just confirm the action still resolves cleanly under the
	// disadvantage code path; the RNG kind is exercised directly in
	// rng_test.go.
	result := ApplyAction(s, Action{Type: ActionAttack, AttackerID: "pc-a", TargetID: "npc-1"})
	require.True(t, result.Success)
}

func TestApplyEndTurnRejectsOutsideCombat(t *testing.T) {
	s := baseState()
	result := ApplyAction(s, Action{Type: ActionEndTurn, EntityID: "pc-a"})
	assert.False(t, result.Success)
	assert.Equal(t, "COMBAT_NOT_ACTIVE", result.Errors[0].Code)
}

func TestApplyEndTurnRejectsWrongEntity(t *testing.T) {
	s := combatState("pc-a", "pc-a", "npc-1")
	result := ApplyAction(s, Action{Type: ActionEndTurn, EntityID: "npc-1"})
	assert.False(t, result.Success)
	assert.Equal(t, "NOT_YOUR_TURN", result.Errors[0].Code)
}

func TestApplyEndTurnAdvancesAndWrapsRound(t *testing.T) {
	s := combatState("pc-a", "pc-a", "npc-1")

	r1 := ApplyAction(s, Action{Type: ActionEndTurn, EntityID: "pc-a"})
	require.True(t, r1.Success)
	assert.Equal(t, "npc-1", *r1.State.Combat.ActiveEntityID)
	assert.Equal(t, 1, r1.State.Combat.Round, "advancing within the order must not bump the round")

	r2 := ApplyAction(r1.State, Action{Type: ActionEndTurn, EntityID: "npc-1"})
	require.True(t, r2.Success)
	assert.Equal(t, "pc-a", *r2.State.Combat.ActiveEntityID)
	assert.Equal(t, 2, r2.State.Combat.Round, "wrapping back to the first combatant must increment the round")
}

func TestApplyEndTurnTicksCooldownsAndDurations(t *testing.T) {
	s := combatState("pc-a", "pc-a", "npc-1")
	ent, bucket, _ := s.FindEntity("pc-a")
	ent.AbilityCooldowns = map[string]int{"fireball": 2}
	ent = ApplyCondition(ent, "restrained", intPtr(2))
	s = s.WithEntity(bucket, "pc-a", ent)

	result := ApplyAction(s, Action{Type: ActionEndTurn, EntityID: "pc-a"})
	require.True(t, result.Success)
	updated, _, _ := result.State.FindEntity("pc-a")
	assert.Equal(t, 1, updated.AbilityCooldowns["fireball"])
	assert.Equal(t, 1, updated.ConditionDurations["restrained"])
}

func TestApplyEndTurnDetectsCombatEnd(t *testing.T) {
	s := combatState("pc-a", "pc-a", "npc-1")
	ent, bucket, _ := s.FindEntity("npc-1")
	ent.Stats.HPCurrent = 0
	s = s.WithEntity(bucket, "npc-1", ent)

	result := ApplyAction(s, Action{Type: ActionEndTurn, EntityID: "pc-a"})
	require.True(t, result.Success)
	assert.Equal(t, ModeExploration, result.State.Combat.Mode)

	var sawCombatEnd bool
	for _, e := range result.Events {
		if e.Type == EventCombatEnd {
			sawCombatEnd = true
		}
	}
	assert.True(t, sawCombatEnd)
}

func TestApplyRollInitiativeSetsOrderAndStartsCombat(t *testing.T) {
	s := baseState()
	s.Rng.Seed = seedPtr("e2e-1")

	result := ApplyAction(s, Action{Type: ActionRollInitiative})
	require.True(t, result.Success)
	assert.Equal(t, ModeCombat, result.State.Combat.Mode)
	assert.Equal(t, 1, result.State.Combat.Round)
	require.NotNil(t, result.State.Combat.ActiveEntityID)
	assert.Equal(t, result.State.Combat.InitiativeOrder[0], *result.State.Combat.ActiveEntityID)
	assert.ElementsMatch(t, []string{"pc-a", "npc-1"}, result.State.Combat.InitiativeOrder)

	require.GreaterOrEqual(t, len(result.Events), 1)
	assert.Equal(t, EventInitiativeSet, result.Events[0].Type)
}

func TestApplyRollInitiativeTieBreaksOnAttackBonusThenID(t *testing.T) {
	s := baseState()
	// Force a tie by fixing both entities' d20 rolls would require mocking
	// the RNG; instead exercise the deterministic tie-break function
	// directly through two same-roll entities via a zero-variance seed
	// is brittle, so assert the documented ordering contract on equal
	// rolls using the sort comparator semantics: higher attackBonus wins,
	// then lower id lexically.
	a := newEntity("zzz", KindNPC, 0, 0, 5)
	a.Stats.AttackBonus = intPtr(2)
	b := newEntity("aaa", KindNPC, 1, 0, 5)
	b.Stats.AttackBonus = intPtr(2)
	s.Entities.NPCs = []Entity{a, b}

	rolls := map[string]int{"zzz": 10, "aaa": 10}
	living := []Entity{a, b}
	// Reimplement the exact comparator used by applyRollInitiative's
	// sort.Slice to confirm the tie-break rule spec §9 fixes.
	less := func(i, j int) bool {
		x, y := living[i], living[j]
		if rolls[x.ID] != rolls[y.ID] {
			return rolls[x.ID] > rolls[y.ID]
		}
		xBonus, yBonus := 0, 0
		if x.Stats.AttackBonus != nil {
			xBonus = *x.Stats.AttackBonus
		}
		if y.Stats.AttackBonus != nil {
			yBonus = *y.Stats.AttackBonus
		}
		if xBonus != yBonus {
			return xBonus > yBonus
		}
		return x.ID < y.ID
	}
	assert.False(t, less(0, 1) && less(1, 0), "comparator must not be contradictory on a true tie")
	assert.True(t, less(1, 0), "on equal roll and bonus, lower id sorts first")
}

func TestApplyRollInitiativeRejectsWithNoLivingEntities(t *testing.T) {
	s := baseState()
	s.Entities.Players[0].Stats.HPCurrent = 0
	s.Entities.NPCs[0].Stats.HPCurrent = 0

	result := ApplyAction(s, Action{Type: ActionRollInitiative})
	assert.False(t, result.Success)
	assert.Equal(t, "ROLL_INITIATIVE_NO_ENTITIES", result.Errors[0].Code)
}

func TestApplySetSeed(t *testing.T) {
	s := baseState()
	result := ApplyAction(s, Action{Type: ActionSetSeed, Seed: "new-seed"})
	require.True(t, result.Success)
	assert.Equal(t, "new-seed", *result.State.Rng.Seed)
	assert.Equal(t, 0, result.State.Rng.Counter)
	assert.Empty(t, result.State.Rng.LastRolls)
}

func TestApplySetSeedRejectsEmpty(t *testing.T) {
	s := baseState()
	result := ApplyAction(s, Action{Type: ActionSetSeed, Seed: ""})
	assert.False(t, result.Success)
	assert.Equal(t, "SET_SEED_EMPTY", result.Errors[0].Code)
}

func TestApplyDefendEndsTurn(t *testing.T) {
	s := combatState("pc-a", "pc-a", "npc-1")
	result := ApplyAction(s, Action{Type: ActionDefend, EntityID: "pc-a"})
	require.True(t, result.Success)
	assert.Equal(t, "npc-1", *result.State.Combat.ActiveEntityID)
}

func TestRejectedActionAppliedTwiceIsIdempotent(t *testing.T) {
	s := baseState()
	first := ApplyAction(s, Action{Type: ActionMove, EntityID: "pc-a", Path: []Position{{X: 50, Y: 50}}})
	second := ApplyAction(first.State, Action{Type: ActionMove, EntityID: "pc-a", Path: []Position{{X: 50, Y: 50}}})
	assert.Equal(t, first, second)
}

func TestApplyUseAbilityActionDelegatesToResolver(t *testing.T) {
	s := withAbilities(baseState(), fireball())
	s.Entities.NPCs[0].Position = Position{X: 3, Y: 2}

	result := ApplyAction(s, Action{Type: ActionUseAbility, EntityID: "pc-a", AbilityID: "fireball", TargetID: "npc-1"})
	require.True(t, result.Success)
	require.Len(t, result.Events, 1)
	assert.Equal(t, EventAbilityResolved, result.Events[0].Type)
}

func TestApplyUseAbilityActionOutOfRangeRejectsWithNoMutation(t *testing.T) {
	s := withAbilities(baseState(), fireball())
	s.Entities.Players[0].Position = Position{X: 2, Y: 2}
	s.Entities.NPCs[0].Position = Position{X: 9, Y: 2}

	result := ApplyAction(s, Action{Type: ActionUseAbility, EntityID: "pc-a", AbilityID: "fireball", TargetID: "npc-1"})
	assert.False(t, result.Success)
	assert.Equal(t, "ABILITY_OUT_OF_RANGE", result.Errors[0].Code)
	assert.Equal(t, s, result.State)
}
