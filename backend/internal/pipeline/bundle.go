package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rpgengine/arbiter/backend/internal/engine"
)

// Bundle is one turn's complete, on-disk record (spec §6.4).
type Bundle struct {
	InitialState engine.GameState      `json:"-"`
	Intent       Intent                `json:"-"`
	Envelope     interface{}           `json:"-"`
	PostState    engine.GameState      `json:"-"`
	RulesReport  RulesReport           `json:"-"`
	Events       []engine.EngineEvent  `json:"-"`
}

// BundleMeta is meta.json's content.
type BundleMeta struct {
	BundleID      string `json:"bundleId"`
	CreatedAt     string `json:"createdAt"`
	SchemaVersion string `json:"schemaVersion"`
	RequestID     string `json:"requestId,omitempty"`
}

// WriteBundle writes bundle's files into a fresh directory under dir,
// then atomically updates the three *.latest.json pointers (spec §5:
// "writing bundles into a temp path and renaming atomically; latest.json
// pointers are replaced last"). Returns the written bundle's path and
// name.
func WriteBundle(dir string, b Bundle) (string, string, error) {
	name := fmt.Sprintf("bundle-%s", uuid.NewString())
	finalPath := filepath.Join(dir, name)
	tempPath := finalPath + ".tmp"

	if err := os.MkdirAll(tempPath, 0o755); err != nil {
		return "", "", fmt.Errorf("create bundle temp dir: %w", err)
	}

	meta := BundleMeta{
		BundleID:      name,
		CreatedAt:     stableTimestamp(),
		SchemaVersion: b.PostState.SchemaVersion,
	}

	files := map[string]interface{}{
		"meta.json":          meta,
		"intent.json":        b.Intent,
		"envelope.json":       b.Envelope,
		"initial_state.json": b.InitialState,
		"post_state.json":    b.PostState,
		"rules_report.json":  b.RulesReport,
		"events.json":        b.Events,
	}

	for filename, content := range files {
		if err := writeJSONFile(filepath.Join(tempPath, filename), content); err != nil {
			_ = os.RemoveAll(tempPath)
			return "", "", fmt.Errorf("write %s: %w", filename, err)
		}
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.RemoveAll(tempPath)
		return "", "", fmt.Errorf("rename bundle into place: %w", err)
	}

	if err := updateLatestPointers(dir, finalPath, b); err != nil {
		return finalPath, name, fmt.Errorf("update latest pointers: %w", err)
	}

	return finalPath, name, nil
}

// updateLatestPointers writes game_state.latest.json, ai_response.latest.json
// and rules_report.latest.json last, each via the same temp-then-rename
// discipline, so a crash mid-write never leaves a half-written pointer.
func updateLatestPointers(dir, bundlePath string, b Bundle) error {
	pointers := map[string]interface{}{
		"game_state.latest.json":   b.PostState,
		"ai_response.latest.json":  b.Envelope,
		"rules_report.latest.json": b.RulesReport,
	}
	for filename, content := range pointers {
		finalPath := filepath.Join(dir, filename)
		tempPath := finalPath + ".tmp"
		if err := writeJSONFile(tempPath, content); err != nil {
			return err
		}
		if err := os.Rename(tempPath, finalPath); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// stableTimestamp is a thin seam over time.Now so bundle metadata has a
// real wall-clock time without engine code ever calling it: only the
// pipeline's I/O boundary touches the clock, keeping the core (spec's
// "determinism contract") free of non-deterministic calls.
func stableTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
