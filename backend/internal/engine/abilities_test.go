package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fireball() AbilityDefinition {
	return AbilityDefinition{
		AbilityID:  "fireball",
		Name:       "Fireball",
		ActionType: ActionTypeAction,
		Range:      AbilityRange{Type: "ranged", Distance: 6},
		Targeting:  TargetSingleEnemy,
		Cost:       AbilityCost{Mana: 4, Cooldown: 2},
		Effects:    []Effect{{Kind: EffectDamage, Value: 10}},
	}
}

func healTouch() AbilityDefinition {
	return AbilityDefinition{
		AbilityID:  "heal-touch",
		Name:       "Heal Touch",
		ActionType: ActionTypeAction,
		Range:      AbilityRange{Type: "melee", Distance: 1},
		Targeting:  TargetSingleAlly,
		Cost:       AbilityCost{Mana: 2},
		Effects:    []Effect{{Kind: EffectHeal, Value: 8}},
	}
}

func shove() AbilityDefinition {
	return AbilityDefinition{
		AbilityID:  "shove",
		Name:       "Shove",
		ActionType: ActionTypeAction,
		Range:      AbilityRange{Type: "melee", Distance: 1},
		Targeting:  TargetSingleEnemy,
		Cost:       AbilityCost{AP: 1},
		Effects:    []Effect{{Kind: EffectForcedMove, Distance: 2, Direction: ForcedMovePush}},
	}
}

func withAbilities(s GameState, defs ...AbilityDefinition) GameState {
	s.AbilitiesCatalogue = append(s.AbilitiesCatalogue, defs...)
	s.Entities.Players[0].AbilityIDs = append(s.Entities.Players[0].AbilityIDs, "fireball", "heal-touch", "shove")
	s.Entities.Players[0].Resources = map[string]int{"mana": 5, "ap": 3}
	return s
}

func TestValidateAbilityUseOutOfRange(t *testing.T) {
	s := withAbilities(baseState(), fireball())
	s.Entities.Players[0].Position = Position{X: 2, Y: 2}
	s.Entities.NPCs[0].Position = Position{X: 9, Y: 2}

	v := ValidateAbilityUses(s, []AbilityUse{
		{UseID: "u1", ActorID: "pc-a", AbilityID: "fireball", TargetIDs: []string{"npc-1"}},
	})
	require.Len(t, v, 1)
	assert.Equal(t, "ABILITY_OUT_OF_RANGE", v[0].Code)
}

func TestValidateAbilityUseInRangeSucceeds(t *testing.T) {
	s := withAbilities(baseState(), fireball())
	s.Entities.Players[0].Position = Position{X: 2, Y: 2}
	s.Entities.NPCs[0].Position = Position{X: 8, Y: 2} // chebyshev distance 6 == range

	v := ValidateAbilityUses(s, []AbilityUse{
		{UseID: "u1", ActorID: "pc-a", AbilityID: "fireball", TargetIDs: []string{"npc-1"}},
	})
	assert.Empty(t, v)
}

func TestValidateAbilityUseDuplicateUseID(t *testing.T) {
	s := withAbilities(baseState(), fireball())
	uses := []AbilityUse{
		{UseID: "dup", ActorID: "pc-a", AbilityID: "fireball", TargetIDs: []string{"npc-1"}},
		{UseID: "dup", ActorID: "pc-a", AbilityID: "fireball", TargetIDs: []string{"npc-1"}},
	}
	v := ValidateAbilityUses(s, uses)
	assert.Contains(t, codes(v), "ABILITY_DUPLICATE_USE_ID")
}

func TestValidateAbilityUseUnknownActorOrAbility(t *testing.T) {
	s := withAbilities(baseState(), fireball())

	v := ValidateAbilityUses(s, []AbilityUse{{UseID: "u1", ActorID: "ghost", AbilityID: "fireball"}})
	assert.Contains(t, codes(v), "ABILITY_UNKNOWN_ACTOR")

	v2 := ValidateAbilityUses(s, []AbilityUse{{UseID: "u1", ActorID: "pc-a", AbilityID: "ghost-spell"}})
	assert.Contains(t, codes(v2), "ABILITY_UNKNOWN")
}

func TestValidateAbilityUseNotOwned(t *testing.T) {
	s := baseState()
	s.AbilitiesCatalogue = []AbilityDefinition{fireball()}
	v := ValidateAbilityUses(s, []AbilityUse{{UseID: "u1", ActorID: "pc-a", AbilityID: "fireball", TargetIDs: []string{"npc-1"}}})
	assert.Contains(t, codes(v), "ABILITY_NOT_OWNED")
}

func TestValidateAbilityUseTargetCardinality(t *testing.T) {
	s := withAbilities(baseState(), fireball())
	v := ValidateAbilityUses(s, []AbilityUse{{UseID: "u1", ActorID: "pc-a", AbilityID: "fireball"}})
	assert.Contains(t, codes(v), "ABILITY_TARGET_CARDINALITY")
}

func TestValidateAbilityUseCumulativeCostAcrossBatch(t *testing.T) {
	s := withAbilities(baseState(), fireball())
	s.Entities.Players[0].Resources["mana"] = 5
	s.Entities.NPCs[0].Position = Position{X: 3, Y: 2}

	uses := []AbilityUse{
		{UseID: "u1", ActorID: "pc-a", AbilityID: "fireball", TargetIDs: []string{"npc-1"}},
		{UseID: "u2", ActorID: "pc-a", AbilityID: "fireball", TargetIDs: []string{"npc-1"}},
	}
	v := ValidateAbilityUses(s, uses)
	assert.Contains(t, codes(v), "ABILITY_INSUFFICIENT_RESOURCE")
	assert.Contains(t, codes(v), "ABILITY_ALREADY_USED_THIS_BATCH")
}

func TestValidateAbilityUseOnCooldown(t *testing.T) {
	s := withAbilities(baseState(), fireball())
	s.Entities.Players[0].AbilityCooldowns = map[string]int{"fireball": 1}
	s.Entities.NPCs[0].Position = Position{X: 3, Y: 2}

	v := ValidateAbilityUses(s, []AbilityUse{{UseID: "u1", ActorID: "pc-a", AbilityID: "fireball", TargetIDs: []string{"npc-1"}}})
	assert.Contains(t, codes(v), "ABILITY_ON_COOLDOWN")
}

func TestResolveAbilityUsesDamageAndCost(t *testing.T) {
	s := withAbilities(baseState(), fireball())
	s.Entities.NPCs[0].Position = Position{X: 3, Y: 2}
	s.Entities.NPCs[0].Stats.HPCurrent = 8

	out, events := ResolveAbilityUses(s, []AbilityUse{
		{UseID: "u1", ActorID: "pc-a", AbilityID: "fireball", TargetIDs: []string{"npc-1"}},
	})

	require.Len(t, events, 1)
	assert.Equal(t, "u1-evt-1", events[0].ID)
	assert.Equal(t, EventAbilityResolved, events[0].Type)

	actor, _, _ := out.FindEntity("pc-a")
	assert.Equal(t, 1, actor.Resources["mana"])
	assert.Equal(t, 2, actor.AbilityCooldowns["fireball"])

	target, _, _ := out.FindEntity("npc-1")
	assert.Equal(t, 0, target.Stats.HPCurrent, "10 damage on 8 hp must clamp at zero")
}

func TestResolveAbilityUsesHealClampsAtMax(t *testing.T) {
	s := withAbilities(baseState(), healTouch())
	s.Entities.NPCs[0].Stats.HPMax = 10
	s.Entities.NPCs[0].Stats.HPCurrent = 8
	s.Entities.NPCs[0].Position = Position{X: 3, Y: 2}

	out, events := ResolveAbilityUses(s, []AbilityUse{
		{UseID: "u1", ActorID: "pc-a", AbilityID: "heal-touch", TargetIDs: []string{"npc-1"}},
	})
	target, _, _ := out.FindEntity("npc-1")
	assert.Equal(t, 10, target.Stats.HPCurrent)
	require.Len(t, events, 1)
	assert.Equal(t, EventAbilityResolved, events[0].Type)
}

func TestResolveAbilityUsesHealAtFullHPIsNoop(t *testing.T) {
	s := withAbilities(baseState(), healTouch())
	s.Entities.NPCs[0].Stats.HPMax = 8
	s.Entities.NPCs[0].Stats.HPCurrent = 8
	s.Entities.NPCs[0].Position = Position{X: 3, Y: 2}

	out, events := ResolveAbilityUses(s, []AbilityUse{
		{UseID: "u1", ActorID: "pc-a", AbilityID: "heal-touch", TargetIDs: []string{"npc-1"}},
	})
	target, _, _ := out.FindEntity("npc-1")
	assert.Equal(t, 8, target.Stats.HPCurrent)
	require.Len(t, events, 1)
	assert.Equal(t, EventHealNoop, events[0].Type)
}

func TestResolveAbilityUsesHealWithoutHPMaxIsNoop(t *testing.T) {
	s := withAbilities(baseState(), healTouch())
	s.Entities.NPCs[0].Stats.HPMax = 0
	s.Entities.NPCs[0].Stats.HPCurrent = 0
	s.Entities.NPCs[0].Position = Position{X: 3, Y: 2}

	out, events := ResolveAbilityUses(s, []AbilityUse{
		{UseID: "u1", ActorID: "pc-a", AbilityID: "heal-touch", TargetIDs: []string{"npc-1"}},
	})
	target, _, _ := out.FindEntity("npc-1")
	assert.Equal(t, 0, target.Stats.HPCurrent, "no hpMax is a known-limitation no-op, not a crash")
	assert.Equal(t, EventHealNoop, events[0].Type)
}

func TestResolveAbilityUsesForcedMovePush(t *testing.T) {
	s := withAbilities(baseState(), shove())
	s.Entities.Players[0].Position = Position{X: 5, Y: 5}
	s.Entities.NPCs[0].Position = Position{X: 6, Y: 5}

	out, events := ResolveAbilityUses(s, []AbilityUse{
		{UseID: "u1", ActorID: "pc-a", AbilityID: "shove", TargetIDs: []string{"npc-1"}},
	})
	target, _, _ := out.FindEntity("npc-1")
	assert.Equal(t, Position{X: 8, Y: 5}, target.Position)
	require.Len(t, events, 1)
	assert.Equal(t, EventMoveApplied, events[0].Type)
}

func TestResolveAbilityUsesForcedMoveClampsAtZero(t *testing.T) {
	s := withAbilities(baseState(), shove())
	// push the target further from the actor than the map's zero edge allows
	bigShove := shove()
	bigShove.Effects = []Effect{{Kind: EffectForcedMove, Distance: 5, Direction: ForcedMovePush}}
	s.AbilitiesCatalogue = []AbilityDefinition{bigShove}

	s.Entities.Players[0].Position = Position{X: 5, Y: 5}
	s.Entities.NPCs[0].Position = Position{X: 1, Y: 5}

	out, events := ResolveAbilityUses(s, []AbilityUse{
		{UseID: "u1", ActorID: "pc-a", AbilityID: "shove", TargetIDs: []string{"npc-1"}},
	})
	target, _, _ := out.FindEntity("npc-1")
	assert.Equal(t, 0, target.Position.X, "forced move must clamp coordinates at zero")
	require.Len(t, events, 1)
	assert.Equal(t, "forced move distance exceeded map bounds and was clamped at the boundary", events[0].Meta["KNOWN_LIMITATION"])
}

func TestResolveAbilityUsesForcedMoveWithinBoundsHasNoLimitationMeta(t *testing.T) {
	s := withAbilities(baseState(), shove())
	s.Entities.Players[0].Position = Position{X: 5, Y: 5}
	s.Entities.NPCs[0].Position = Position{X: 6, Y: 5}

	_, events := ResolveAbilityUses(s, []AbilityUse{
		{UseID: "u1", ActorID: "pc-a", AbilityID: "shove", TargetIDs: []string{"npc-1"}},
	})
	require.Len(t, events, 1)
	assert.Nil(t, events[0].Meta)
}

func TestChebyshevDistance(t *testing.T) {
	assert.Equal(t, 0, chebyshev(Position{X: 0, Y: 0}, Position{X: 0, Y: 0}))
	assert.Equal(t, 3, chebyshev(Position{X: 0, Y: 0}, Position{X: 3, Y: 2}), "diagonal distance counts as the larger axis delta")
	assert.Equal(t, 4, chebyshev(Position{X: 1, Y: 1}, Position{X: 1, Y: 5}))
}
