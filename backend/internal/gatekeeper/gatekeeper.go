// Package gatekeeper runs the five sequential gates spec §4.10 defines
// over a completed pipeline output: envelope schema, rules-legality,
// state schema-version, state schema, and invariants. Unlike the turn
// pipeline (internal/pipeline), which short-circuits mid-turn as soon as
// one gate fails, the gatekeeper is built to re-verify an already-written
// bundle end to end — every gate after the first failure still runs, but
// reports SKIP rather than being silently omitted, so a caller auditing a
// bundle sees the full picture of what would have happened.
package gatekeeper

import (
	"github.com/rpgengine/arbiter/backend/internal/engine"
	"github.com/rpgengine/arbiter/backend/internal/pipeline"
	"github.com/rpgengine/arbiter/backend/internal/schema"
)

// GateStatus is one gate's outcome.
type GateStatus string

const (
	StatusPass GateStatus = "PASS"
	StatusFail GateStatus = "FAIL"
	StatusSkip GateStatus = "SKIP"
	StatusWarn GateStatus = "WARN"
)

// GateResult is one gate's PASS/FAIL/SKIP/WARN decision plus detail.
type GateResult struct {
	Name       string             `json:"name"`
	Status     GateStatus         `json:"status"`
	Violations []engine.Violation `json:"violations,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// Report is the gatekeeper's full result across all five gates.
type Report struct {
	OK    bool         `json:"ok"`
	Gates []GateResult `json:"gates"`
}

// Input bundles everything the five gates need to run independently of
// how the caller obtained it (a fresh pipeline run, or a bundle loaded
// back off disk for audit/replay).
type Input struct {
	EnvelopeRaw         []byte
	StateRaw            []byte
	State               engine.GameState
	EngineSchemaVersion string
	RulesReport         pipeline.RulesReport
}

// Run executes the five gates in order. A FAIL on any gate marks the
// overall report not-OK and every later gate SKIP; a WARN (minor schema
// version drift) does not fail the report (spec §4.10: "Warnings do not
// fail").
func Run(in Input) Report {
	gates := make([]GateResult, 0, 5)
	fatal := false

	gates = append(gates, runEnvelopeGate(in))
	fatal = fatal || gates[len(gates)-1].Status == StatusFail

	gates = append(gates, runRulesLegalityGate(in, fatal))
	fatal = fatal || gates[len(gates)-1].Status == StatusFail

	gates = append(gates, runSchemaVersionGate(in, fatal))
	fatal = fatal || gates[len(gates)-1].Status == StatusFail

	gates = append(gates, runStateSchemaGate(in, fatal))
	fatal = fatal || gates[len(gates)-1].Status == StatusFail

	gates = append(gates, runInvariantsGate(in, fatal))
	fatal = fatal || gates[len(gates)-1].Status == StatusFail

	return Report{OK: !fatal, Gates: gates}
}

func runEnvelopeGate(in Input) GateResult {
	env, err := schema.ParseEnvelope(in.EnvelopeRaw)
	if err != nil {
		return GateResult{Name: "envelope_schema", Status: StatusFail, Message: err.Error()}
	}
	if v := schema.ValidateEnvelope(in.State, env); len(v) > 0 {
		return GateResult{Name: "envelope_schema", Status: StatusFail, Violations: v}
	}
	return GateResult{Name: "envelope_schema", Status: StatusPass}
}

func runRulesLegalityGate(in Input, skip bool) GateResult {
	if skip {
		return GateResult{Name: "rules_legality", Status: StatusSkip}
	}
	if !in.RulesReport.OK {
		return GateResult{Name: "rules_legality", Status: StatusFail, Violations: in.RulesReport.Violations}
	}
	return GateResult{Name: "rules_legality", Status: StatusPass}
}

func runSchemaVersionGate(in Input, skip bool) GateResult {
	if skip {
		return GateResult{Name: "state_schema_version", Status: StatusSkip}
	}
	status, err := schema.CompareSchemaVersion(in.State.SchemaVersion, in.EngineSchemaVersion)
	if err != nil {
		return GateResult{Name: "state_schema_version", Status: StatusFail, Message: err.Error()}
	}
	switch status {
	case schema.VersionMajorMismatch:
		return GateResult{Name: "state_schema_version", Status: StatusFail, Message: "schemaVersion major component does not match the engine"}
	case schema.VersionMinorMismatch:
		return GateResult{Name: "state_schema_version", Status: StatusWarn, Message: "schemaVersion minor component differs from the engine"}
	default:
		return GateResult{Name: "state_schema_version", Status: StatusPass}
	}
}

func runStateSchemaGate(in Input, skip bool) GateResult {
	if skip {
		return GateResult{Name: "state_schema", Status: StatusSkip}
	}
	if _, err := schema.ParseGameState(in.StateRaw); err != nil {
		return GateResult{Name: "state_schema", Status: StatusFail, Message: err.Error()}
	}
	return GateResult{Name: "state_schema", Status: StatusPass}
}

func runInvariantsGate(in Input, skip bool) GateResult {
	if skip {
		return GateResult{Name: "invariants", Status: StatusSkip}
	}
	if v := engine.Check(in.State); len(v) > 0 {
		return GateResult{Name: "invariants", Status: StatusFail, Violations: v}
	}
	return GateResult{Name: "invariants", Status: StatusPass}
}
