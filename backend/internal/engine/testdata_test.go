package engine

// Shared fixture builders for engine tests. Kept in one file since most
// tests in this package need the same minimal valid GameState shape.

func seedPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

// newMap returns a w x h square grid with no terrain, no fog.
func newMap(w, h int) Map {
	return Map{Grid: Grid{Type: GridSquare, Width: w, Height: h, CellSize: 5}}
}

// newEntity builds a minimal living entity in the given bucket position.
func newEntity(id string, kind EntityKind, x, y, hp int) Entity {
	return Entity{
		ID:       id,
		Kind:     kind,
		Name:     id,
		Size:     SizeMedium,
		Position: Position{X: x, Y: y},
		Stats:    Stats{HPCurrent: hp, HPMax: hp, AC: 12, MovementSpeed: 4},
	}
}

// baseState returns a small, fully-valid exploration-mode GameState with
// one player and one NPC, suitable as a starting point for most tests.
func baseState() GameState {
	pc := newEntity("pc-a", KindPlayer, 2, 2, 20)
	pc.Stats.AttackBonus = intPtr(5)
	pc.Stats.DamageDie = intPtr(6)
	pc.Stats.AC = 14

	npc := newEntity("npc-1", KindNPC, 3, 2, 8)
	npc.Stats.AC = 12

	return GameState{
		SchemaVersion: "1.0.0",
		Map:           newMap(10, 10),
		Entities:      Entities{Players: []Entity{pc}, NPCs: []Entity{npc}},
		Combat:        Combat{Mode: ModeExploration},
		Rng:           Rng{Mode: RngSeeded, Seed: seedPtr("test-seed")},
	}
}

// combatState returns baseState with initiative already rolled by hand
// (not via ROLL_INITIATIVE) so action tests can target a known active
// entity without depending on RNG outcomes.
func combatState(activeID string, order ...string) GameState {
	s := baseState()
	s.Combat = Combat{Mode: ModeCombat, Round: 1, ActiveEntityID: &activeID, InitiativeOrder: order}
	return s
}
