package replay

import (
	"fmt"

	"github.com/rpgengine/arbiter/backend/internal/engine"
)

// Step is one recorded action in a bundle, with optional expectations
// checked strictly against what replaying the action actually produces.
type Step struct {
	Action            engine.Action          `json:"action"`
	ExpectedEvents    []engine.EngineEventType `json:"expectedEvents,omitempty"`
	ExpectedStateHash string                 `json:"expectedStateHash,omitempty"`
	ExpectRejection   bool                   `json:"expectRejection,omitempty"`
}

// FinalExpectation is the bundle-level assertion checked after the last step.
type FinalExpectation struct {
	ExpectedStateHash string `json:"expectedStateHash,omitempty"`
}

// ReplayBundle is a recorded sequence of actions with expected events and
// hashes, used to verify an engine implementation is deterministic
// (spec §4.11).
type ReplayBundle struct {
	Meta         map[string]interface{} `json:"meta,omitempty"`
	InitialState engine.GameState       `json:"initialState"`
	Steps        []Step                 `json:"steps"`
	Final        *FinalExpectation      `json:"final,omitempty"`
}

// Result is the runner's verdict: ok=false on the first mismatch, with
// failingStep identifying which 1-indexed step failed (0 if the
// mismatch was on the initial state; the last step's number if only the
// final-hash assertion failed).
type Result struct {
	OK             bool                `json:"ok"`
	FailingStep    int                 `json:"failingStep,omitempty"`
	Errors         []string            `json:"errors,omitempty"`
	FinalStateHash string              `json:"finalStateHash"`
	EventLog       []engine.EngineEvent `json:"eventLog"`
}

// Run replays bundle step by step: it validates initialState's invariants,
// then for each step applies the action, compares produced events against
// ExpectedEvents by length and type, compares the post-step state hash
// against ExpectedStateHash, and asserts post-step invariants. A step
// marked ExpectRejection permits (and requires) a rejection outcome
// instead. On any mismatch Run stops and returns the failure; it always
// returns the actually-computed final state hash and the full event log
// accumulated up to the failure point.
func Run(bundle ReplayBundle) Result {
	var eventLog []engine.EngineEvent

	if v := engine.Check(bundle.InitialState); len(v) > 0 {
		hash, _ := StateHash(bundle.InitialState)
		return Result{
			OK:             false,
			FailingStep:    0,
			Errors:         []string{fmt.Sprintf("initialState fails invariants: %v", v)},
			FinalStateHash: hash,
			EventLog:       eventLog,
		}
	}

	state := bundle.InitialState

	for i, step := range bundle.Steps {
		stepNum := i + 1
		result := engine.ApplyAction(state, step.Action)

		if step.ExpectRejection {
			if result.Success {
				hash, _ := StateHash(result.State)
				return Result{
					OK:             false,
					FailingStep:    stepNum,
					Errors:         []string{"expected ACTION_REJECTED but action succeeded"},
					FinalStateHash: hash,
					EventLog:       eventLog,
				}
			}
			continue
		}

		if !result.Success {
			hash, _ := StateHash(state)
			return Result{
				OK:             false,
				FailingStep:    stepNum,
				Errors:         []string{fmt.Sprintf("action rejected: %v", result.Errors)},
				FinalStateHash: hash,
				EventLog:       eventLog,
			}
		}

		if errs := compareEvents(step.ExpectedEvents, result.Events); len(errs) > 0 {
			hash, _ := StateHash(result.State)
			return Result{
				OK:             false,
				FailingStep:    stepNum,
				Errors:         errs,
				FinalStateHash: hash,
				EventLog:       append(eventLog, result.Events...),
			}
		}

		eventLog = append(eventLog, result.Events...)
		state = result.State

		if step.ExpectedStateHash != "" {
			hash, err := StateHash(state)
			if err != nil {
				return Result{OK: false, FailingStep: stepNum, Errors: []string{err.Error()}, EventLog: eventLog}
			}
			if hash != step.ExpectedStateHash {
				return Result{
					OK:             false,
					FailingStep:    stepNum,
					Errors:         []string{fmt.Sprintf("state hash mismatch: got %s want %s", hash, step.ExpectedStateHash)},
					FinalStateHash: hash,
					EventLog:       eventLog,
				}
			}
		}

		if v := engine.Check(state); len(v) > 0 {
			hash, _ := StateHash(state)
			return Result{
				OK:             false,
				FailingStep:    stepNum,
				Errors:         []string{fmt.Sprintf("post-step invariant failure: %v", v)},
				FinalStateHash: hash,
				EventLog:       eventLog,
			}
		}
	}

	finalHash, err := StateHash(state)
	if err != nil {
		return Result{OK: false, Errors: []string{err.Error()}, EventLog: eventLog}
	}

	if bundle.Final != nil && bundle.Final.ExpectedStateHash != "" && finalHash != bundle.Final.ExpectedStateHash {
		return Result{
			OK:             false,
			FailingStep:    len(bundle.Steps),
			Errors:         []string{fmt.Sprintf("final state hash mismatch: got %s want %s", finalHash, bundle.Final.ExpectedStateHash)},
			FinalStateHash: finalHash,
			EventLog:       eventLog,
		}
	}

	return Result{OK: true, FinalStateHash: finalHash, EventLog: eventLog}
}

func compareEvents(expected []engine.EngineEventType, actual []engine.EngineEvent) []string {
	if expected == nil {
		return nil
	}
	if len(expected) != len(actual) {
		return []string{fmt.Sprintf("event count mismatch: got %d want %d", len(actual), len(expected))}
	}
	var errs []string
	for i, want := range expected {
		if actual[i].Type != want {
			errs = append(errs, fmt.Sprintf("event[%d] type mismatch: got %s want %s", i, actual[i].Type, want))
		}
	}
	return errs
}
