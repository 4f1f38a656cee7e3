// Package engine implements the deterministic tabletop-RPG rules core:
// GameState, the RNG service, invariant checker, condition engine,
// ability catalogue/resolver, pathfinder, action engine, and tactical
// event channel. Every exported entry point is a pure function over an
// input GameState; the only state carried between calls lives in the
// value the caller threads through.
package engine

// EntityKind identifies which bucket an Entity belongs to.
type EntityKind string

const (
	KindPlayer EntityKind = "player"
	KindNPC    EntityKind = "npc"
	KindObject EntityKind = "object"
)

// Size categories for an Entity.
type Size string

const (
	SizeSmall  Size = "S"
	SizeMedium Size = "M"
	SizeLarge  Size = "L"
)

// Position is a grid cell.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Stats holds an Entity's combat-relevant numbers.
type Stats struct {
	HPCurrent     int  `json:"hpCurrent"`
	HPMax         int  `json:"hpMax"`
	AC            int  `json:"ac"`
	MovementSpeed int  `json:"movementSpeed"`
	AttackBonus   *int `json:"attackBonus,omitempty"`
	DamageDie     *int `json:"damageDie,omitempty"`
}

// InventoryItem is a single stack in an Entity's inventory.
type InventoryItem struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Qty  int      `json:"qty"`
	Tags []string `json:"tags,omitempty"`
}

// Entity represents a player character, NPC, or placed object.
type Entity struct {
	ID                 string            `json:"id" validate:"required"`
	Kind               EntityKind        `json:"kind" validate:"required,oneof=player npc object"`
	Name               string            `json:"name"`
	Size               Size              `json:"size"`
	Position           Position          `json:"position"`
	Stats              Stats             `json:"stats"`
	Conditions         []string          `json:"conditions"`
	ConditionDurations map[string]int    `json:"conditionDurations,omitempty"`
	AbilityCooldowns   map[string]int    `json:"abilityCooldowns,omitempty"`
	Resources          map[string]int    `json:"resources,omitempty"`
	Inventory          []InventoryItem   `json:"inventory,omitempty"`
	AbilityIDs         []string          `json:"abilityIds,omitempty"`
	Controller         string            `json:"controller,omitempty"`
}

// Entities buckets all Entity values by kind.
type Entities struct {
	Players []Entity `json:"players" validate:"dive"`
	NPCs    []Entity `json:"npcs" validate:"dive"`
	Objects []Entity `json:"objects" validate:"dive"`
}

// All returns every entity across all buckets, in bucket order
// (players, npcs, objects), preserving within-bucket order.
func (e Entities) All() []Entity {
	out := make([]Entity, 0, len(e.Players)+len(e.NPCs)+len(e.Objects))
	out = append(out, e.Players...)
	out = append(out, e.NPCs...)
	out = append(out, e.Objects...)
	return out
}

// Find returns the entity with the given id and a bool reporting whether
// it was found.
func (e Entities) Find(id string) (Entity, bool) {
	for _, ent := range e.All() {
		if ent.ID == id {
			return ent, true
		}
	}
	return Entity{}, false
}

// GridType is the shape of Map.Grid cells.
type GridType string

const (
	GridSquare GridType = "square"
	GridHex    GridType = "hex"
)

// Grid describes the map's cell topology and dimensions.
type Grid struct {
	Type     GridType `json:"type" validate:"required,oneof=square hex"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	CellSize int      `json:"cellSize,omitempty"`
}

// TerrainCell is one terrain entry keyed by (X, Y).
type TerrainCell struct {
	X              int    `json:"x"`
	Y              int    `json:"y"`
	Type           string `json:"type"`
	BlocksMovement bool   `json:"blocksMovement"`
	BlocksVision   bool   `json:"blocksVision"`
}

// Map is the grid battlemap.
type Map struct {
	Grid            Grid          `json:"grid"`
	Terrain         []TerrainCell `json:"terrain"`
	FogOfWarEnabled bool          `json:"fogOfWarEnabled"`
}

// InBounds reports whether (x, y) lies within the map's grid.
func (m Map) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Grid.Width && y < m.Grid.Height
}

// TerrainAt returns the terrain cell at (x, y), if any is defined.
func (m Map) TerrainAt(x, y int) (TerrainCell, bool) {
	for _, t := range m.Terrain {
		if t.X == x && t.Y == y {
			return t, true
		}
	}
	return TerrainCell{}, false
}

// CombatMode is the Combat component's mode.
type CombatMode string

const (
	ModeExploration CombatMode = "exploration"
	ModeCombat      CombatMode = "combat"
)

// Combat holds initiative/turn-order state.
type Combat struct {
	Mode            CombatMode `json:"mode" validate:"required,oneof=exploration combat"`
	Round           int        `json:"round"`
	ActiveEntityID  *string    `json:"activeEntityId"`
	InitiativeOrder []string   `json:"initiativeOrder"`
}

// RngMode selects whether the RNG requires a seed.
type RngMode string

const (
	RngSeeded   RngMode = "seeded"
	RngUnseeded RngMode = "unseeded"
)

// RollRecord is an audit entry for one draw.
type RollRecord struct {
	Kind          string `json:"kind"`
	Request       string `json:"request"`
	ResultTotal   int    `json:"resultTotal"`
	RawDraws      []int  `json:"rawDraws"`
	CounterBefore int    `json:"counterBefore"`
	CounterAfter  int    `json:"counterAfter"`
}

// Rng is the seeded, counter-indexed RNG component of GameState.
type Rng struct {
	Mode      RngMode      `json:"mode" validate:"required,oneof=seeded unseeded"`
	Seed      *string      `json:"seed"`
	Counter   int          `json:"counter"`
	LastRolls []RollRecord `json:"lastRolls"`
}

// Log holds the ordered, append-only event stream.
type Log struct {
	Events []EngineEvent `json:"events"`
}

// UISelection is the optional UI-state sub-document.
type UISelection struct {
	SelectedEntityID *string   `json:"selectedEntityId,omitempty"`
	HoverCell        *Position `json:"hoverCell,omitempty"`
}

// GameState is the root value the engine transforms.
type GameState struct {
	SchemaVersion      string                 `json:"schemaVersion" validate:"required"`
	Meta               map[string]interface{} `json:"meta,omitempty"`
	Map                Map                    `json:"map"`
	Entities           Entities               `json:"entities"`
	Combat             Combat                 `json:"combat"`
	Rng                Rng                    `json:"rng"`
	Log                Log                    `json:"log"`
	UI                 UISelection            `json:"ui,omitempty"`
	AbilitiesCatalogue []AbilityDefinition    `json:"abilitiesCatalogue,omitempty"`
}

// Clone returns a deep copy of the state so resolvers can mutate freely
// without affecting the caller's value. GameState is a tree of value
// types and slices/maps; Clone walks it explicitly rather than relying
// on a generic deep-copy library, since the shape is small and fixed.
func (s GameState) Clone() GameState {
	out := s
	out.Meta = cloneStringAnyMap(s.Meta)
	out.Map = s.Map.clone()
	out.Entities = s.Entities.clone()
	out.Combat = s.Combat.clone()
	out.Rng = s.Rng.clone()
	out.Log = s.Log.clone()
	out.UI = s.UI.clone()
	out.AbilitiesCatalogue = append([]AbilityDefinition(nil), s.AbilitiesCatalogue...)
	return out
}

func (m Map) clone() Map {
	out := m
	out.Terrain = append([]TerrainCell(nil), m.Terrain...)
	return out
}

func (e Entities) clone() Entities {
	return Entities{
		Players: cloneEntitySlice(e.Players),
		NPCs:    cloneEntitySlice(e.NPCs),
		Objects: cloneEntitySlice(e.Objects),
	}
}

func cloneEntitySlice(in []Entity) []Entity {
	out := make([]Entity, len(in))
	for i, e := range in {
		out[i] = e.clone()
	}
	return out
}

func (e Entity) clone() Entity {
	out := e
	out.Conditions = append([]string(nil), e.Conditions...)
	out.ConditionDurations = cloneStringIntMap(e.ConditionDurations)
	out.AbilityCooldowns = cloneStringIntMap(e.AbilityCooldowns)
	out.Resources = cloneStringIntMap(e.Resources)
	out.Inventory = append([]InventoryItem(nil), e.Inventory...)
	out.AbilityIDs = append([]string(nil), e.AbilityIDs...)
	if e.Stats.AttackBonus != nil {
		v := *e.Stats.AttackBonus
		out.Stats.AttackBonus = &v
	}
	if e.Stats.DamageDie != nil {
		v := *e.Stats.DamageDie
		out.Stats.DamageDie = &v
	}
	return out
}

func (c Combat) clone() Combat {
	out := c
	out.InitiativeOrder = append([]string(nil), c.InitiativeOrder...)
	if c.ActiveEntityID != nil {
		v := *c.ActiveEntityID
		out.ActiveEntityID = &v
	}
	return out
}

func (r Rng) clone() Rng {
	out := r
	out.LastRolls = append([]RollRecord(nil), r.LastRolls...)
	if r.Seed != nil {
		v := *r.Seed
		out.Seed = &v
	}
	for i := range out.LastRolls {
		out.LastRolls[i].RawDraws = append([]int(nil), r.LastRolls[i].RawDraws...)
	}
	return out
}

func (l Log) clone() Log {
	return Log{Events: append([]EngineEvent(nil), l.Events...)}
}

func (u UISelection) clone() UISelection {
	out := u
	if u.SelectedEntityID != nil {
		v := *u.SelectedEntityID
		out.SelectedEntityID = &v
	}
	if u.HoverCell != nil {
		v := *u.HoverCell
		out.HoverCell = &v
	}
	return out
}

func cloneStringIntMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStringAnyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// FindEntity locates an entity by id across all buckets and reports
// which bucket it lives in ("players", "npcs", "objects").
func (s GameState) FindEntity(id string) (Entity, string, bool) {
	for _, e := range s.Entities.Players {
		if e.ID == id {
			return e, "players", true
		}
	}
	for _, e := range s.Entities.NPCs {
		if e.ID == id {
			return e, "npcs", true
		}
	}
	for _, e := range s.Entities.Objects {
		if e.ID == id {
			return e, "objects", true
		}
	}
	return Entity{}, "", false
}

// WithEntity returns a copy of the state with the entity at (bucket, id)
// replaced by updated. The bucket must be one returned by FindEntity.
func (s GameState) WithEntity(bucket, id string, updated Entity) GameState {
	out := s
	switch bucket {
	case "players":
		out.Entities.Players = replaceEntity(s.Entities.Players, id, updated)
	case "npcs":
		out.Entities.NPCs = replaceEntity(s.Entities.NPCs, id, updated)
	case "objects":
		out.Entities.Objects = replaceEntity(s.Entities.Objects, id, updated)
	}
	return out
}

func replaceEntity(list []Entity, id string, updated Entity) []Entity {
	out := append([]Entity(nil), list...)
	for i, e := range out {
		if e.ID == id {
			out[i] = updated
			break
		}
	}
	return out
}

// IsAlive reports whether an entity has HP remaining.
func (e Entity) IsAlive() bool {
	return e.Stats.HPCurrent > 0
}

// HasCondition reports whether the entity carries the named status.
func (e Entity) HasCondition(status string) bool {
	for _, c := range e.Conditions {
		if c == status {
			return true
		}
	}
	return false
}
