package core

import (
	"sync"
	"time"
)

// AnalysisRequest carries the inputs needed to start one analysis.
type AnalysisRequest struct {
	SystemDescription string        `json:"system_description"`
	EnabledPlugins    []FrameworkID `json:"enabled_plugins"`
}

// AnalysisContext tracks one in-flight analysis: the immutable system
// description, the enabled plugin set and the results produced so far in
// execution order. It is owned by the orchestrator for the lifetime of one
// run; agents only ever see a read-only AnalysisView projection.
//
// Contract:
//   - a given framework id appears at most once in the results map
//   - Results/ResultOrder return defensive copies
//   - safe for concurrent access (rerun or chat may overlap a run)
type AnalysisContext struct {
	ID                string
	SystemDescription string
	EnabledPlugins    []FrameworkID
	Created           time.Time

	mu      sync.RWMutex
	order   []FrameworkID
	results map[FrameworkID]*AgentResult
}

// NewAnalysisContext creates an empty context for one analysis run.
func NewAnalysisContext(id string, req AnalysisRequest) *AnalysisContext {
	enabled := make([]FrameworkID, len(req.EnabledPlugins))
	copy(enabled, req.EnabledPlugins)
	return &AnalysisContext{
		ID:                id,
		SystemDescription: req.SystemDescription,
		EnabledPlugins:    enabled,
		Created:           time.Now().UTC(),
		results:           make(map[FrameworkID]*AgentResult),
	}
}

// AddResult records the result for a framework. The first write wins the
// position in execution order; a later write for the same framework (section
// rerun) replaces the value in place.
func (a *AnalysisContext) AddResult(result *AgentResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.results[result.Framework]; !exists {
		a.order = append(a.order, result.Framework)
	}
	a.results[result.Framework] = result
}

// Result returns the stored result for a framework, if any.
func (a *AnalysisContext) Result(id FrameworkID) (*AgentResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.results[id]
	return r, ok
}

// Results returns the stored results keyed by framework id.
func (a *AnalysisContext) Results() map[FrameworkID]*AgentResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[FrameworkID]*AgentResult, len(a.results))
	for k, v := range a.results {
		out[k] = v
	}
	return out
}

// ResultOrder returns framework ids in the order their results were stored.
func (a *AnalysisContext) ResultOrder() []FrameworkID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]FrameworkID, len(a.order))
	copy(out, a.order)
	return out
}

// View builds the read-only projection handed to one agent invocation,
// bundling retrieved context documents grouped by source plugin.
func (a *AnalysisContext) View(retrieved map[FrameworkID][]ContextDocument) *AnalysisView {
	return &AnalysisView{ctx: a, retrieved: retrieved}
}

// AnalysisView is the read-only projection of an AnalysisContext passed to
// agents, plus the context documents retrieved for this invocation and an
// optional progress sink the orchestrator wires to the notification channel.
type AnalysisView struct {
	ctx       *AnalysisContext
	retrieved map[FrameworkID][]ContextDocument
	progress  func(progress float64, message string)
}

// WithProgress returns a copy of the view whose ReportProgress forwards to fn.
func (v *AnalysisView) WithProgress(fn func(progress float64, message string)) *AnalysisView {
	nv := *v
	nv.progress = fn
	return &nv
}

// ReportProgress lets an agent surface intermediate progress (0-100). It is a
// no-op when the orchestrator did not attach a sink.
func (v *AnalysisView) ReportProgress(progress float64, message string) {
	if v.progress != nil {
		v.progress(progress, message)
	}
}

// AnalysisID returns the analysis identifier.
func (v *AnalysisView) AnalysisID() string { return v.ctx.ID }

// SystemDescription returns the immutable system description.
func (v *AnalysisView) SystemDescription() string { return v.ctx.SystemDescription }

// EnabledPlugins returns the enabled plugin set.
func (v *AnalysisView) EnabledPlugins() []FrameworkID {
	out := make([]FrameworkID, len(v.ctx.EnabledPlugins))
	copy(out, v.ctx.EnabledPlugins)
	return out
}

// Result exposes a previously produced agent result.
func (v *AnalysisView) Result(id FrameworkID) (*AgentResult, bool) { return v.ctx.Result(id) }

// Retrieved returns the context documents selected for this invocation,
// grouped by the plugin that produced them.
func (v *AnalysisView) Retrieved() map[FrameworkID][]ContextDocument { return v.retrieved }

// RunStatus is the terminal status of one plugin attempt within a run.
type RunStatus string

const (
	// StatusCompleted means the agent produced a result.
	StatusCompleted RunStatus = "completed"
	// StatusFailed means the agent raised; Error carries the message.
	StatusFailed RunStatus = "failed"
	// StatusSkipped means the plugin was enabled but no agent was registered.
	StatusSkipped RunStatus = "skipped"
)

// RunRecord reports the outcome of one plugin attempt. A finished report
// carries one record per plugin in execution order, so partial completion is
// always observable.
type RunRecord struct {
	Framework FrameworkID `json:"framework"`
	Status    RunStatus   `json:"status"`
	Error     string      `json:"error,omitempty"`
}

// Suggestion is a follow-up plugin recommendation derived from accumulated
// results.
type Suggestion struct {
	Framework FrameworkID `json:"framework"`
	Reason    string      `json:"reason"`
}

// Report is the aggregate outcome of one StartAnalysis call. Results holds an
// entry for every plugin that completed; Runs additionally records failed and
// skipped attempts.
type Report struct {
	AnalysisID  string                       `json:"analysis_id"`
	Results     map[FrameworkID]*AgentResult `json:"results"`
	Runs        []RunRecord                  `json:"runs"`
	Suggestions []Suggestion                 `json:"suggestions,omitempty"`
	CompletedAt time.Time                    `json:"completed_at"`
}

// ChatResponse carries retrieval grounding for a conversational query plus an
// answer when a generation model is configured.
type ChatResponse struct {
	Query   string            `json:"query"`
	Answer  string            `json:"answer,omitempty"`
	Sources []ContextDocument `json:"sources"`
}
