// Package pipeline orchestrates one turn (spec §4.9): loading state,
// obtaining a model envelope (or fixture), running the envelope gate,
// applying the chosen mutation channel, running the invariant gate, and
// writing the resulting bundle.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rpgengine/arbiter/backend/internal/engine"
	"github.com/rpgengine/arbiter/backend/internal/schema"
	appErrors "github.com/rpgengine/arbiter/backend/pkg/errors"
)

// Intent is the player's declared turn intent, the pipeline's input
// alongside the current GameState (spec §4.9 step 1-2).
type Intent struct {
	ActorID  string                 `json:"actorId"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Adapter is the untrusted collaborator that turns (state, intent, seed)
// into an envelope (spec §4.9 step 2: "the adapter is treated as
// untrusted"). The pipeline never skips the envelope schema gate just
// because a response came from a configured adapter rather than a
// fixture.
type Adapter interface {
	GenerateEnvelope(ctx context.Context, state engine.GameState, intent Intent, seed *int) (schema.Envelope, error)
}

// AdapterConfig selects and configures an Adapter.
type AdapterConfig struct {
	Provider string // "openai", "anthropic", "openrouter", or "" for the mock
	APIKey   string
	Model    string
}

// NewAdapter builds the Adapter named by cfg.Provider. An empty or
// unrecognized provider yields MockAdapter, the deterministic fixture
// double used when no real adapter is configured (spec's Out-of-scope
// list treats "the LLM adapter and prompt assembler" as an external
// collaborator; this module owns only enough of it to drive the
// pipeline end to end).
func NewAdapter(cfg AdapterConfig) Adapter {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIAdapter(cfg.APIKey, cfg.Model)
	case "anthropic":
		return NewAnthropicAdapter(cfg.APIKey, cfg.Model)
	case "openrouter":
		return NewOpenRouterAdapter(cfg.APIKey, cfg.Model)
	default:
		return &MockAdapter{}
	}
}

func systemPrompt() string {
	return "You are the turn adjudicator for a deterministic tabletop-RPG engine. " +
		"Respond with a single JSON object matching the envelope schema: narration, " +
		"adjudication, map_updates, state_updates, questions, and at most one of " +
		"tactical_events or ability_uses. Do not include any property not in that list."
}

func userPrompt(state engine.GameState, intent Intent, seed *int) string {
	stateJSON, _ := json.Marshal(state)
	payload := map[string]interface{}{
		"state":  json.RawMessage(stateJSON),
		"intent": intent,
	}
	if seed != nil {
		payload["seed"] = *seed
	}
	body, _ := json.Marshal(payload)
	return string(body)
}

// OpenAIAdapter calls OpenAI's chat completions API and parses the
// response content as an envelope.
type OpenAIAdapter struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewOpenAIAdapter(apiKey, model string) *OpenAIAdapter {
	return &OpenAIAdapter{apiKey: apiKey, model: model, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (a *OpenAIAdapter) GenerateEnvelope(ctx context.Context, state engine.GameState, intent Intent, seed *int) (schema.Envelope, error) {
	requestBody := map[string]interface{}{
		"model": a.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt()},
			{"role": "user", "content": userPrompt(state, intent, seed)},
		},
		"temperature":     0.2,
		"max_tokens":      2000,
		"response_format": map[string]string{"type": "json_object"},
	}

	content, err := postJSON(ctx, a.httpClient, "https://api.openai.com/v1/chat/completions", requestBody, map[string]string{
		"Authorization": "Bearer " + a.apiKey,
	}, decodeOpenAIChoices)
	if err != nil {
		return schema.Envelope{}, appErrors.WrapAdapterError(err, "openai.GenerateEnvelope")
	}

	return schema.ParseEnvelope([]byte(content))
}

// AnthropicAdapter calls Anthropic's messages API.
type AnthropicAdapter struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewAnthropicAdapter(apiKey, model string) *AnthropicAdapter {
	return &AnthropicAdapter{apiKey: apiKey, model: model, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (a *AnthropicAdapter) GenerateEnvelope(ctx context.Context, state engine.GameState, intent Intent, seed *int) (schema.Envelope, error) {
	requestBody := map[string]interface{}{
		"model":      a.model,
		"max_tokens": 2000,
		"messages": []map[string]string{
			{"role": "user", "content": userPrompt(state, intent, seed)},
		},
		"system":      systemPrompt(),
		"temperature": 0.2,
	}

	content, err := postJSON(ctx, a.httpClient, "https://api.anthropic.com/v1/messages", requestBody, map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": "2023-06-01",
	}, decodeAnthropicContent)
	if err != nil {
		return schema.Envelope{}, appErrors.WrapAdapterError(err, "anthropic.GenerateEnvelope")
	}

	return schema.ParseEnvelope([]byte(content))
}

// OpenRouterAdapter calls OpenRouter's OpenAI-compatible chat endpoint.
type OpenRouterAdapter struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewOpenRouterAdapter(apiKey, model string) *OpenRouterAdapter {
	return &OpenRouterAdapter{apiKey: apiKey, model: model, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (a *OpenRouterAdapter) GenerateEnvelope(ctx context.Context, state engine.GameState, intent Intent, seed *int) (schema.Envelope, error) {
	requestBody := map[string]interface{}{
		"model": a.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt()},
			{"role": "user", "content": userPrompt(state, intent, seed)},
		},
		"temperature": 0.2,
		"max_tokens":  2000,
	}

	content, err := postJSON(ctx, a.httpClient, "https://openrouter.ai/api/v1/chat/completions", requestBody, map[string]string{
		"Authorization": "Bearer " + a.apiKey,
		"HTTP-Referer":  "https://github.com/rpgengine/arbiter",
		"X-Title":       "arbiter turn pipeline",
	}, decodeOpenAIChoices)
	if err != nil {
		return schema.Envelope{}, appErrors.WrapAdapterError(err, "openrouter.GenerateEnvelope")
	}

	return schema.ParseEnvelope([]byte(content))
}

func postJSON(ctx context.Context, client *http.Client, url string, body map[string]interface{}, headers map[string]string, decode func(io.Reader) (string, error)) (string, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("adapter API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return decode(resp.Body)
}

func decodeOpenAIChoices(r io.Reader) (string, error) {
	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(r).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return response.Choices[0].Message.Content, nil
}

func decodeAnthropicContent(r io.Reader) (string, error) {
	var response struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(r).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Content) == 0 {
		return "", fmt.Errorf("no content blocks in response")
	}
	return response.Content[0].Text, nil
}

// MockAdapter returns a fixed or configured envelope without making any
// network call. It is the pipeline's default Adapter and the
// deterministic test double every pipeline test is built against.
type MockAdapter struct {
	Envelope *schema.Envelope
	Err      error
}

func (m *MockAdapter) GenerateEnvelope(ctx context.Context, state engine.GameState, intent Intent, seed *int) (schema.Envelope, error) {
	if m.Err != nil {
		return schema.Envelope{}, m.Err
	}
	if m.Envelope != nil {
		return *m.Envelope, nil
	}
	return schema.Envelope{
		Narration:    fmt.Sprintf("%s acts.", intent.ActorID),
		Adjudication: []schema.AdjudicationEntry{{RuleID: "NOOP", Justification: "mock adapter default"}},
	}, nil
}
