// Package model defines the minimal LLM generation contract the analysis
// core consumes, plus a deterministic MockModel for tests and examples.
// Provider adapters live in the openai and anthropic subpackages.
package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/threatmesh/threatmesh/core"
)

// Request captures one generation call.
type Request struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int64   `json:"max_tokens"`
}

// Response is the result of one generation call.
type Response struct {
	Content string          `json:"content"`
	Model   string          `json:"model"`
	Usage   core.TokenUsage `json:"usage"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Model is the generation client interface. Implementations may fail with a
// provider error; callers treat the dependency as opaque and retry-free.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Responses are matched by prompt substring in registration order.
type MockModel struct {
	info      Info
	responses []mockResponse
	fallback  string
	err       error
}

type mockResponse struct {
	match   string
	content string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock"}}
}

// AddResponse registers a canned completion returned when the prompt
// contains match.
func (m *MockModel) AddResponse(match, content string) {
	m.responses = append(m.responses, mockResponse{match: match, content: content})
}

// SetFallback sets the completion returned when no registered match applies.
func (m *MockModel) SetFallback(content string) { m.fallback = content }

// Fail makes every Generate call return err.
func (m *MockModel) Fail(err error) { m.err = err }

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	content := m.fallback
	for _, r := range m.responses {
		if r.match == "" || containsFold(req.Prompt, r.match) {
			content = r.content
			break
		}
	}
	if content == "" {
		content = fmt.Sprintf(`{"items": ["mock response to: %s"]}`, firstLine(req.Prompt))
	}
	return &Response{
		Content: content,
		Model:   m.info.Name,
		Usage: core.TokenUsage{
			PromptTokens:     len(req.Prompt) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      (len(req.Prompt) + len(content)) / 4,
		},
	}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
