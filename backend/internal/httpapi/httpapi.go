// Package httpapi exposes the engine and turn pipeline over HTTP: the
// five endpoints spec §6.3 names, with localhost-only CORS preflight.
package httpapi

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/rpgengine/arbiter/backend/internal/auth"
	"github.com/rpgengine/arbiter/backend/internal/engine"
	"github.com/rpgengine/arbiter/backend/internal/gatekeeper"
	"github.com/rpgengine/arbiter/backend/internal/pipeline"
	"github.com/rpgengine/arbiter/backend/internal/replay"
	"github.com/rpgengine/arbiter/backend/internal/schema"
	"github.com/rpgengine/arbiter/backend/pkg/errors"
	"github.com/rpgengine/arbiter/backend/pkg/logger"
)

// Server wires the pipeline and a state directory into an http.Handler.
type Server struct {
	Pipeline     *pipeline.Pipeline
	AuthMW       *auth.Middleware
	StatePath    string // canonical GameState file, single-writer (spec §4.11)
	EngineSchema string
	Log          *logger.Logger
}

// NewRouter builds the five-endpoint surface behind localhost-only CORS.
func (s *Server) NewRouter() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/action", s.handlePostAction).Methods("POST")
	api.HandleFunc("/turn", s.handlePostTurn).Methods("POST")
	api.HandleFunc("/latest", s.handleGetLatest).Methods("GET")
	api.HandleFunc("/replay", s.AuthMW.RequireDM()(s.handlePostReplay)).Methods("POST")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173", "http://127.0.0.1:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	})

	return c.Handler(r)
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_, _ = w.Write(err.ToJSON())
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Server) loadState() (engine.GameState, *errors.AppError) {
	raw, err := os.ReadFile(s.StatePath)
	if err != nil {
		return engine.GameState{}, errors.NewNotFoundError("game state").WithInternal(err)
	}
	state, err := schema.ParseGameState(raw)
	if err != nil {
		return engine.GameState{}, errors.NewValidationError("state failed schema validation").WithInternal(err)
	}
	return state, nil
}

// GET /state returns the current canonical GameState.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, appErr := s.loadState()
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"requestId": requestID(r), "state": state})
}

// POST /action applies one declared action via the engine path directly,
// bypassing the pipeline/adapter (no envelope, no bundle write).
func (s *Server) handlePostAction(w http.ResponseWriter, r *http.Request) {
	var action engine.Action
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&action); err != nil {
		respondError(w, errors.NewBadRequestError("invalid action body").WithInternal(err))
		return
	}

	state, appErr := s.loadState()
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	result := engine.ApplyAction(state, action)
	if !result.Success {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"requestId": requestID(r),
			"success":   false,
			"errors":    result.Errors,
		})
		return
	}

	if err := writeState(s.StatePath, result.State); err != nil {
		respondError(w, errors.NewInternalError("failed to persist state", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"requestId": requestID(r),
		"success":   true,
		"events":    result.Events,
		"state":     result.State,
	})
}

// POST /turn runs the full adapter/fixture-driven turn pipeline.
func (s *Server) handlePostTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Intent      pipeline.Intent `json:"intent"`
		StatePath   string          `json:"statePath,omitempty"`
		Seed        *int            `json:"seed,omitempty"`
		UseFixture  string          `json:"useFixture,omitempty"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, errors.NewBadRequestError("invalid turn request").WithInternal(err))
		return
	}

	statePath := req.StatePath
	if statePath == "" {
		statePath = s.StatePath
	}

	result := s.Pipeline.RunTurn(r.Context(), statePath, req.Intent, req.Seed, req.UseFixture)
	if !result.OK {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"requestId":   requestID(r),
			"ok":          false,
			"failureGate": result.FailureGate,
			"violations":  result.Violations,
			"error":       result.Error,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"requestId":  requestID(r),
		"ok":         true,
		"bundlePath": result.BundlePath,
		"bundleName": result.BundleName,
		"events":     result.Events,
	})
}

// GET /latest returns the most recently written bundle's pointer files.
func (s *Server) handleGetLatest(w http.ResponseWriter, r *http.Request) {
	statePath := s.Pipeline.BundleDir + "/game_state.latest.json"
	reportPath := s.Pipeline.BundleDir + "/rules_report.latest.json"

	stateRaw, err := os.ReadFile(statePath)
	if err != nil {
		respondError(w, errors.NewNotFoundError("latest bundle").WithInternal(err))
		return
	}
	var state engine.GameState
	if err := json.Unmarshal(stateRaw, &state); err != nil {
		respondError(w, errors.NewInternalError("corrupt latest pointer", err))
		return
	}

	reportRaw, _ := os.ReadFile(reportPath)
	var report pipeline.RulesReport
	_ = json.Unmarshal(reportRaw, &report)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"requestId":   requestID(r),
		"state":       state,
		"rulesReport": report,
	})
}

// POST /replay {bundlePath} audits a recorded bundle through all five
// gatekeeper gates and reports the outcome. DM-only: auditing a session's
// history is a table-management action, not a player action.
func (s *Server) handlePostReplay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BundlePath string `json:"bundlePath"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, errors.NewBadRequestError("invalid replay request").WithInternal(err))
		return
	}

	envelopeRaw, err := os.ReadFile(req.BundlePath + "/envelope.json")
	if err != nil {
		respondError(w, errors.NewNotFoundError("bundle envelope").WithInternal(err))
		return
	}
	stateRaw, err := os.ReadFile(req.BundlePath + "/post_state.json")
	if err != nil {
		respondError(w, errors.NewNotFoundError("bundle post state").WithInternal(err))
		return
	}
	reportRaw, err := os.ReadFile(req.BundlePath + "/rules_report.json")
	if err != nil {
		respondError(w, errors.NewNotFoundError("bundle rules report").WithInternal(err))
		return
	}

	var report pipeline.RulesReport
	if err := json.Unmarshal(reportRaw, &report); err != nil {
		respondError(w, errors.NewInternalError("corrupt rules report", err))
		return
	}
	state, err := schema.ParseGameState(stateRaw)
	if err != nil {
		respondError(w, errors.NewValidationError("post state failed schema validation").WithInternal(err))
		return
	}

	gateReport := gatekeeper.Run(gatekeeper.Input{
		EnvelopeRaw:         envelopeRaw,
		StateRaw:            stateRaw,
		State:               state,
		EngineSchemaVersion: s.EngineSchema,
		RulesReport:         report,
	})

	hash, err := replay.StateHash(state)
	if err != nil {
		respondError(w, errors.NewInternalError("failed to hash replayed state", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"requestId": requestID(r),
		"gates":     gateReport,
		"stateHash": hash,
	})
}

func writeState(path string, s engine.GameState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
