package engine

import "fmt"

// nextEventID returns the next deterministic engine-event id and
// advances seq. Engine-emitted events (as opposed to ability-resolver
// events, which follow the spec's fixed <useId>-evt-<seq> format) only
// need to be unique and stably ordered within one call, so a simple
// sequence counter suffices.
func nextEventID(seq *int) string {
	*seq++
	return fmt.Sprintf("evt-%d", *seq)
}

// EngineEventType enumerates the closed set of events the engine emits.
// New variants are a compile-time change: add the constant, add the
// payload fields on EngineEvent, and handle it everywhere events are
// consumed (replay comparison, bundle writer).
type EngineEventType string

const (
	EventMoveApplied       EngineEventType = "MOVE_APPLIED"
	EventAttackResolved    EngineEventType = "ATTACK_RESOLVED"
	EventConditionApplied  EngineEventType = "CONDITION_APPLIED"
	EventConditionDamage   EngineEventType = "CONDITION_DAMAGE"
	EventConditionExpired  EngineEventType = "CONDITION_EXPIRED"
	EventTurnEnded         EngineEventType = "TURN_ENDED"
	EventInitiativeSet     EngineEventType = "INITIATIVE_SET"
	EventCombatEnd         EngineEventType = "COMBAT_END"
	EventActionRejected    EngineEventType = "ACTION_REJECTED"
	EventAbilityResolved   EngineEventType = "ABILITY_RESOLVED"
	EventHealNoop          EngineEventType = "HEAL_NOOP"
)

// EngineEvent is a single ordered, typed record of an observable outcome
// of a state transition. It is a flat struct rather than an interface
// hierarchy: a closed sum type expressed as one struct with a Type
// discriminator and optional payload fields keeps JSON round-tripping
// and replay comparison simple, at the cost of some unused fields per
// variant — the same tradeoff spec §9 calls for ("tagged variants over
// inheritance").
type EngineEvent struct {
	ID        string          `json:"id"`
	Type      EngineEventType `json:"type"`
	Timestamp int64           `json:"timestamp"`

	// MOVE_APPLIED
	EntityID      string     `json:"entityId,omitempty"`
	From          *Position  `json:"from,omitempty"`
	Path          []Position `json:"path,omitempty"`
	FinalPosition *Position  `json:"finalPosition,omitempty"`

	// ATTACK_RESOLVED
	AttackerID    string `json:"attackerId,omitempty"`
	TargetID      string `json:"targetId,omitempty"`
	RawRoll       int    `json:"rawRoll,omitempty"`
	AttackModifier int   `json:"attackModifier,omitempty"`
	AttackRoll    int    `json:"attackRoll,omitempty"`
	EffectiveAC   int    `json:"effectiveAc,omitempty"`
	Hit           bool   `json:"hit,omitempty"`
	Critical      bool   `json:"critical,omitempty"`
	Damage        int    `json:"damage,omitempty"`
	TargetHPBefore int   `json:"targetHpBefore,omitempty"`
	TargetHPAfter  int   `json:"targetHpAfter,omitempty"`

	// CONDITION_*
	Status   string `json:"status,omitempty"`
	Duration int    `json:"duration,omitempty"`

	// TURN_ENDED / INITIATIVE_SET / COMBAT_END
	NextEntityID string         `json:"nextEntityId,omitempty"`
	Round        int            `json:"round,omitempty"`
	Order        []string       `json:"order,omitempty"`
	Rolls        map[string]int `json:"rolls,omitempty"`
	Result       string         `json:"result,omitempty"`

	// ACTION_REJECTED
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	// ABILITY_RESOLVED
	AbilityID string `json:"abilityId,omitempty"`
	UseID     string `json:"useId,omitempty"`

	// Metadata for known-limitation flags (e.g. FORCED_MOVE bounds), kept
	// as a free-form map so a single variant can carry ad hoc detail
	// without growing the struct for every edge case.
	Meta map[string]interface{} `json:"meta,omitempty"`
}
