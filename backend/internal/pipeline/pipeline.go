package pipeline

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rpgengine/arbiter/backend/internal/engine"
	"github.com/rpgengine/arbiter/backend/internal/schema"
	"github.com/rpgengine/arbiter/backend/pkg/logger"
)

// Gate names used in Result.FailureGate, matching the steps of spec §4.9.
const (
	GateInitialState  = "initial_state"
	GateEnvelope      = "envelope_schema"
	GateRulesLegality = "rules_legality"
	GateApply         = "apply"
	GateInvariants    = "invariants"
	GateBundleWrite   = "bundle_write"
)

// RulesReport is the rules-legality gate's output (spec §4.9 step 4):
// allowed/forbidden ability uses or tactical events, with any violation
// failing the turn (violations carry no severity level).
type RulesReport struct {
	OK         bool              `json:"ok"`
	Channel    string            `json:"channel"` // "ability_uses", "tactical_events", or "none"
	Violations []engine.Violation `json:"violations,omitempty"`
}

// BuildRulesReport runs the appropriate per-use/per-event validator
// against whichever mutation channel the envelope populated.
func BuildRulesReport(s engine.GameState, e schema.Envelope) RulesReport {
	switch {
	case len(e.AbilityUses) > 0:
		v := engine.ValidateAbilityUses(s, e.AbilityUses)
		return RulesReport{OK: len(v) == 0, Channel: "ability_uses", Violations: v}
	case len(e.TacticalEvents) > 0:
		v := engine.ValidateTacticalEvents(s, e.TacticalEvents)
		return RulesReport{OK: len(v) == 0, Channel: "tactical_events", Violations: v}
	default:
		return RulesReport{OK: true, Channel: "none"}
	}
}

// Result is what RunTurn returns: either a fully written bundle, or a
// failing gate with no state committed (spec §4.9: "Any gate failure
// short-circuits the pipeline... no post-state written").
type Result struct {
	OK          bool
	BundlePath  string
	BundleName  string
	FailureGate string
	Violations  []engine.Violation
	Events      []engine.EngineEvent
	Error       string
}

// Pipeline wires an Adapter and a bundle directory writer around the
// engine core to implement the turn pipeline (spec §4.9).
type Pipeline struct {
	Adapter   Adapter
	BundleDir string
	Log       *logger.Logger
}

// New constructs a Pipeline. bundleDir is the directory bundles are
// written under (spec §6.4); adapter may be nil, in which case
// MockAdapter is used.
func New(adapter Adapter, bundleDir string, log *logger.Logger) *Pipeline {
	if adapter == nil {
		adapter = &MockAdapter{}
	}
	return &Pipeline{Adapter: adapter, BundleDir: bundleDir, Log: log}
}

// RunTurn executes one full turn per spec §4.9. statePath points at the
// engine-authoritative GameState on disk; intent is the player's
// declared turn intent; seed, if non-nil, seeds the state's RNG before
// the adapter is called (SET_SEED, spec §4.7); fixturePath, if non-empty,
// is read instead of calling the adapter.
func (p *Pipeline) RunTurn(ctx context.Context, statePath string, intent Intent, seed *int, fixturePath string) Result {
	initialState, ok, res := p.loadInitialState(statePath)
	if !ok {
		return res
	}

	workingState := initialState
	if seed != nil {
		setSeedResult := engine.ApplyAction(workingState, engine.Action{Type: engine.ActionSetSeed, Seed: strconv.Itoa(*seed)})
		if !setSeedResult.Success {
			return Result{FailureGate: GateInitialState, Error: "failed to apply seed"}
		}
		workingState = setSeedResult.State
	}

	envelope, ok, res := p.obtainEnvelope(ctx, workingState, intent, seed, fixturePath)
	if !ok {
		return res
	}

	if v := schema.ValidateEnvelope(workingState, envelope); len(v) > 0 {
		p.logGate(GateEnvelope, false, len(v))
		return Result{FailureGate: GateEnvelope, Violations: v}
	}
	p.logGate(GateEnvelope, true, 0)

	report := BuildRulesReport(workingState, envelope)
	if !report.OK {
		p.logGate(GateRulesLegality, false, len(report.Violations))
		return Result{FailureGate: GateRulesLegality, Violations: report.Violations}
	}
	p.logGate(GateRulesLegality, true, 0)

	postState, events, ok := applyChannel(workingState, envelope)
	if !ok {
		p.logGate(GateApply, false, 0)
		return Result{FailureGate: GateApply, Error: "tactical event batch rejected"}
	}

	if v := engine.Check(postState); len(v) > 0 {
		p.logGate(GateInvariants, false, len(v))
		return Result{FailureGate: GateInvariants, Violations: v}
	}
	p.logGate(GateInvariants, true, 0)

	bundle := Bundle{
		InitialState: initialState,
		Intent:       intent,
		Envelope:     envelope,
		PostState:    postState,
		RulesReport:  report,
		Events:       events,
	}

	path, name, err := WriteBundle(p.BundleDir, bundle)
	if err != nil {
		p.logGate(GateBundleWrite, false, 0)
		return Result{FailureGate: GateBundleWrite, Error: err.Error()}
	}

	return Result{OK: true, BundlePath: path, BundleName: name, Events: events}
}

func (p *Pipeline) loadInitialState(statePath string) (engine.GameState, bool, Result) {
	raw, err := os.ReadFile(statePath)
	if err != nil {
		return engine.GameState{}, false, Result{FailureGate: GateInitialState, Error: fmt.Sprintf("read state: %v", err)}
	}

	state, err := schema.ParseGameState(raw)
	if err != nil {
		return engine.GameState{}, false, Result{FailureGate: GateInitialState, Error: err.Error()}
	}

	if v := engine.Check(state); len(v) > 0 {
		return engine.GameState{}, false, Result{FailureGate: GateInitialState, Violations: v}
	}

	return state, true, Result{}
}

func (p *Pipeline) obtainEnvelope(ctx context.Context, state engine.GameState, intent Intent, seed *int, fixturePath string) (schema.Envelope, bool, Result) {
	if fixturePath != "" {
		raw, err := os.ReadFile(fixturePath)
		if err != nil {
			return schema.Envelope{}, false, Result{FailureGate: GateEnvelope, Error: fmt.Sprintf("read fixture: %v", err)}
		}
		e, err := schema.ParseEnvelope(raw)
		if err != nil {
			return schema.Envelope{}, false, Result{FailureGate: GateEnvelope, Error: err.Error()}
		}
		return e, true, Result{}
	}

	e, err := p.Adapter.GenerateEnvelope(ctx, state, intent, seed)
	if err != nil {
		return schema.Envelope{}, false, Result{FailureGate: GateEnvelope, Error: err.Error()}
	}
	return e, true, Result{}
}

// applyChannel applies whichever of ability_uses/tactical_events the
// envelope populated, or passes the state through unchanged when the
// turn carries only narration.
func applyChannel(s engine.GameState, e schema.Envelope) (engine.GameState, []engine.EngineEvent, bool) {
	switch {
	case len(e.AbilityUses) > 0:
		next, events := engine.ResolveAbilityUses(s, e.AbilityUses)
		return next, events, true
	case len(e.TacticalEvents) > 0:
		return engine.ApplyTacticalEvents(s, e.TacticalEvents)
	default:
		return s, nil, true
	}
}

func (p *Pipeline) logGate(gate string, pass bool, violationCount int) {
	if p.Log == nil {
		return
	}
	event := p.Log.Info()
	if !pass {
		event = p.Log.Warn()
	}
	event.Str("gate", gate).Bool("pass", pass).Int("violations", violationCount).Msg("gate decision")
}
