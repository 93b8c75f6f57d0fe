package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/threatmesh/threatmesh/core"
)

// CoverageSuggester is the default suggestion collaborator: it recommends
// canonical frameworks the analysis has not run yet, with a heuristic reason
// derived from what already completed. It never errors.
type CoverageSuggester struct{}

// NewCoverageSuggester creates the rule-based default suggester.
func NewCoverageSuggester() *CoverageSuggester { return &CoverageSuggester{} }

// Suggest implements core.Suggester.
func (s *CoverageSuggester) Suggest(_ context.Context, analysis *core.AnalysisContext) ([]core.Suggestion, error) {
	done := analysis.Results()

	var out []core.Suggestion
	add := func(id core.FrameworkID, reason string) {
		if _, ran := done[id]; !ran {
			out = append(out, core.Suggestion{Framework: id, Reason: reason})
		}
	}

	if _, ran := done[core.FrameworkSTPASec]; ran {
		add(core.FrameworkSTRIDE, "a control structure exists; STRIDE can enumerate threats per component")
		add(core.FrameworkHAZOP, "control actions are identified; HAZOP can examine guideword deviations")
	}
	if _, ran := done[core.FrameworkSTRIDE]; ran {
		add(core.FrameworkDREAD, "STRIDE threats are available to score with DREAD")
		add(core.FrameworkPASTA, "PASTA can tie the identified threats to business impact")
	}
	if _, ran := done[core.FrameworkLINDDUN]; !ran && mentionsPersonalData(analysis.SystemDescription) {
		add(core.FrameworkLINDDUN, "the system description references personal data; LINDDUN covers privacy threats")
	}
	if len(done) >= 2 {
		add(core.FrameworkCrossIntegration, fmt.Sprintf("%d framework results can be cross-correlated", len(done)))
	}
	return out, nil
}

func mentionsPersonalData(description string) bool {
	lower := strings.ToLower(description)
	for _, kw := range []string{"personal", "privacy", "pii", "user data", "gdpr"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
