package engine

// ConditionDefinition is a static status-effect entry: flags, roll
// modifiers, an optional damage-over-time die, and a default duration
// applied when a caller doesn't specify one.
type ConditionDefinition struct {
	Status              string
	SkipTurn            bool
	Permanent           bool
	AttackDisadvantage  bool
	ACMod               int
	AttackMod           int
	DamagePerTurnSides  int // 0 = no DoT
	DefaultDuration     int // 0 = no auto-expiry
}

// conditionCatalogue is the fixed, ordered list of known conditions.
// Order matters: processStartOfTurn ticks DoT statuses in this
// enumeration order to keep the resulting event stream deterministic
// (spec §4.4's tie-breaking rule).
var conditionCatalogue = []ConditionDefinition{
	{Status: "dead", Permanent: true, SkipTurn: true},
	{Status: "unconscious", Permanent: false, SkipTurn: true, DefaultDuration: 0},
	{Status: "stunned", SkipTurn: true, DefaultDuration: 1},
	{Status: "paralyzed", SkipTurn: true, DefaultDuration: 1},
	{Status: "petrified", SkipTurn: true, Permanent: false, DefaultDuration: 0},
	{Status: "restrained", AttackDisadvantage: true, ACMod: 2, DefaultDuration: 1},
	{Status: "grappled", DefaultDuration: 0},
	{Status: "prone", AttackDisadvantage: true, DefaultDuration: 0},
	{Status: "blinded", AttackDisadvantage: true, DefaultDuration: 1},
	{Status: "frightened", AttackDisadvantage: true, DefaultDuration: 1},
	{Status: "poisoned", AttackDisadvantage: true, DamagePerTurnSides: 4, DefaultDuration: 3},
	{Status: "charmed", DefaultDuration: 0},
	{Status: "deafened", DefaultDuration: 0},
	{Status: "invisible", ACMod: -2, DefaultDuration: 0},
	{Status: "exhaustion1", AttackMod: -1, DefaultDuration: 0},
	{Status: "exhaustion2", AttackMod: -2, DefaultDuration: 0},
	{Status: "exhaustion3", AttackDisadvantage: true, AttackMod: -2, DefaultDuration: 0},
	{Status: "exhaustion4", ACMod: -2, AttackMod: -2, AttackDisadvantage: true, DefaultDuration: 0},
	{Status: "exhaustion5", SkipTurn: true, DefaultDuration: 0},
	{Status: "exhaustion6", Permanent: true, SkipTurn: true, DefaultDuration: 0},
}

func lookupCondition(status string) (ConditionDefinition, bool) {
	for _, c := range conditionCatalogue {
		if c.Status == status {
			return c, true
		}
	}
	return ConditionDefinition{}, false
}

// ACMod returns the net AC modifier across all of the entity's
// conditions known to the catalogue. Unknown statuses contribute zero.
func (e Entity) ACMod() int {
	total := 0
	for _, c := range e.Conditions {
		if def, ok := lookupCondition(c); ok {
			total += def.ACMod
		}
	}
	return total
}

// AttackMod returns the net attack-roll modifier across conditions.
func (e Entity) AttackMod() int {
	total := 0
	for _, c := range e.Conditions {
		if def, ok := lookupCondition(c); ok {
			total += def.AttackMod
		}
	}
	return total
}

// HasAttackDisadvantage reports whether any active condition imposes
// disadvantage on the entity's own attack rolls.
func (e Entity) HasAttackDisadvantage() bool {
	for _, c := range e.Conditions {
		if def, ok := lookupCondition(c); ok && def.AttackDisadvantage {
			return true
		}
	}
	return false
}

// SkipsTurn reports whether any active condition forces the entity to
// skip its turn entirely.
func (e Entity) SkipsTurn() bool {
	for _, c := range e.Conditions {
		if def, ok := lookupCondition(c); ok && def.SkipTurn {
			return true
		}
	}
	return false
}

// ApplyCondition applies status to entity, pulling the default duration
// from the catalogue when duration is nil. Idempotent: re-applying an
// already-present status just updates its duration rather than adding a
// duplicate entry (spec §4.4: "idempotent; updates duration in place").
func ApplyCondition(e Entity, status string, duration *int) Entity {
	out := e.clone()

	dur := 0
	if def, ok := lookupCondition(status); ok {
		dur = def.DefaultDuration
	}
	if duration != nil {
		dur = *duration
	}

	if out.ConditionDurations == nil {
		out.ConditionDurations = make(map[string]int)
	}
	out.ConditionDurations[status] = dur

	if !out.HasCondition(status) {
		out.Conditions = append(out.Conditions, status)
	}
	return out
}

// RemoveCondition removes status from entity. No-op if absent.
func RemoveCondition(e Entity, status string) Entity {
	if !e.HasCondition(status) {
		return e
	}
	out := e.clone()
	filtered := make([]string, 0, len(out.Conditions))
	for _, c := range out.Conditions {
		if c != status {
			filtered = append(filtered, c)
		}
	}
	out.Conditions = filtered
	delete(out.ConditionDurations, status)
	return out
}

// processStartOfTurn ticks damage-over-time conditions for entityId:
// for each active DoT status (in catalogue order), draws damage, clamps
// HP at zero, auto-applies "dead" on death (which also halts further
// processing for this entity), and emits CONDITION_DAMAGE events. The
// updated state, updated Rng, and emitted events are returned together
// since drawing damage advances the RNG counter.
func processStartOfTurn(s GameState, entityID string, seq *int) (GameState, []EngineEvent) {
	ent, bucket, ok := s.FindEntity(entityID)
	if !ok {
		return s, nil
	}

	var events []EngineEvent
	rng := s.Rng

	for _, def := range conditionCatalogue {
		if def.DamagePerTurnSides == 0 {
			continue
		}
		if !ent.HasCondition(def.Status) {
			continue
		}
		if !ent.IsAlive() {
			break
		}

		var result DrawResult
		var err error
		rng, result, err = Draw(rng, Dice(1, def.DamagePerTurnSides, 0))
		if err != nil {
			continue
		}

		before := ent.Stats.HPCurrent
		after := before - result.Total
		if after < 0 {
			after = 0
		}
		ent.Stats.HPCurrent = after

		events = append(events, EngineEvent{
			ID:        nextEventID(seq),
			Type:      EventConditionDamage,
			EntityID:  entityID,
			Status:    def.Status,
			Damage:    result.Total,
			TargetHPBefore: before,
			TargetHPAfter:  after,
		})

		if after == 0 && !ent.HasCondition("dead") {
			ent = ApplyCondition(ent, "dead", nil)
			events = append(events, EngineEvent{
				ID:       nextEventID(seq),
				Type:     EventConditionApplied,
				EntityID: entityID,
				Status:   "dead",
			})
		}
	}

	out := s
	out.Rng = rng
	out = out.WithEntity(bucket, entityID, ent)
	return out, events
}

// processEndOfTurn decrements every non-zero condition duration on
// entityId; durations reaching zero are removed and emit
// CONDITION_EXPIRED. Processed in catalogue order for determinism.
func processEndOfTurn(s GameState, entityID string, seq *int) (GameState, []EngineEvent) {
	ent, bucket, ok := s.FindEntity(entityID)
	if !ok {
		return s, nil
	}
	ent = ent.clone()

	var events []EngineEvent
	for _, def := range conditionCatalogue {
		if !ent.HasCondition(def.Status) {
			continue
		}
		dur, tracked := ent.ConditionDurations[def.Status]
		if !tracked || dur <= 0 {
			continue
		}
		dur--
		if dur <= 0 {
			ent = RemoveCondition(ent, def.Status)
			events = append(events, EngineEvent{
				ID:       nextEventID(seq),
				Type:     EventConditionExpired,
				EntityID: entityID,
				Status:   def.Status,
			})
			continue
		}
		if ent.ConditionDurations == nil {
			ent.ConditionDurations = make(map[string]int)
		}
		ent.ConditionDurations[def.Status] = dur
	}

	out := s.WithEntity(bucket, entityID, ent)
	return out, events
}
