package core

import "context"

// Agent executes one framework's analysis against a system description and
// retrieved context. Implementations are framework-specific; the orchestrator
// only depends on this capability.
//
// Implementations must:
//   - respect context cancellation on every model call
//   - treat the AnalysisView as read-only
//   - return an error rather than a partial result when the run as a whole
//     failed; per-section failures belong inside the AgentResult
type Agent interface {
	// Framework returns the id this agent analyzes.
	Framework() FrameworkID
	// Description returns a short human-readable summary of the agent.
	Description() string
	// Sections lists the sections the agent produces, in output order.
	Sections() []SectionSpec
	// Analyze runs the full framework analysis.
	Analyze(ctx context.Context, view *AnalysisView) (*AgentResult, error)
	// AnalyzeSection re-runs exactly one section, optionally steered by
	// caller-supplied modification text.
	AnalyzeSection(ctx context.Context, sectionID string, view *AnalysisView, modifications string) (*SectionResult, error)
}

// Suggester recommends follow-up plugins once a run has finished, based on
// the accumulated results. Failures are treated as best-effort by callers.
type Suggester interface {
	Suggest(ctx context.Context, analysis *AnalysisContext) ([]Suggestion, error)
}
