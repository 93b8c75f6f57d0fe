package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/threatmesh/threatmesh/core"
	"github.com/threatmesh/threatmesh/logging"
	"github.com/threatmesh/threatmesh/model"
	"github.com/threatmesh/threatmesh/recovery"
)

// PromptBuilder produces the system and user prompts for one section.
// Modifications is caller-supplied steering text for section reruns, empty
// otherwise.
type PromptBuilder func(section core.SectionSpec, view *core.AnalysisView, modifications string) (systemPrompt, prompt string)

// Options configure a ModelAgent.
type Options struct {
	// Description summarizes the agent for registries and logs.
	Description string
	// Sections declares the sections to produce, in order. Required.
	Sections []core.SectionSpec
	// BuildPrompt overrides the default prompt construction.
	BuildPrompt PromptBuilder
	// Temperature and MaxTokens are forwarded to each generation call.
	Temperature float64
	MaxTokens   int64
	// Logger receives per-section diagnostics.
	Logger logging.Logger
}

// ModelAgent is a generic framework agent: for every declared section it
// builds a prompt from the system description and retrieved context, calls
// the generation model, recovers structured data from the output and shapes
// it into the section's template type. Framework-specific behavior comes from
// the section set and the prompt builder.
type ModelAgent struct {
	framework   core.FrameworkID
	description string
	sections    []core.SectionSpec
	model       model.Model
	buildPrompt PromptBuilder
	temperature float64
	maxTokens   int64
	logger      logging.Logger
}

// NewModelAgent constructs a ModelAgent for one framework.
func NewModelAgent(framework core.FrameworkID, m model.Model, optFns ...func(o *Options)) *ModelAgent {
	opts := Options{
		Description: fmt.Sprintf("%s analysis agent", framework),
		Temperature: 0.3,
		MaxTokens:   4096,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	a := &ModelAgent{
		framework:   framework,
		description: opts.Description,
		sections:    opts.Sections,
		model:       m,
		buildPrompt: opts.BuildPrompt,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		logger:      opts.Logger,
	}
	if a.buildPrompt == nil {
		a.buildPrompt = a.defaultPrompt
	}
	return a
}

// Framework implements core.Agent.
func (a *ModelAgent) Framework() core.FrameworkID { return a.framework }

// Description implements core.Agent.
func (a *ModelAgent) Description() string { return a.description }

// Sections implements core.Agent.
func (a *ModelAgent) Sections() []core.SectionSpec {
	out := make([]core.SectionSpec, len(a.sections))
	copy(out, a.sections)
	return out
}

// Analyze implements core.Agent. Sections are generated in declared order;
// a failing section is recorded as failed and the remaining sections still
// run. Analyze returns an error only when no section produced output at all.
func (a *ModelAgent) Analyze(ctx context.Context, view *core.AnalysisView) (*core.AgentResult, error) {
	if len(a.sections) == 0 {
		return nil, fmt.Errorf("agent %s has no sections configured", a.framework)
	}
	start := time.Now()
	result := &core.AgentResult{Framework: a.framework}

	var firstErr error
	failures := 0
	for i, spec := range a.sections {
		view.ReportProgress(float64(i)/float64(len(a.sections))*100, spec.Title)
		sec, usage, err := a.runSection(ctx, spec, view, "")
		result.Usage.Add(usage)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			if firstErr == nil {
				firstErr = err
			}
			a.logger.Warn("section failed framework=%s section=%s: %v", a.framework, spec.ID, err)
			sec = core.SectionResult{
				ID:       spec.ID,
				Title:    spec.Title,
				Template: spec.Template,
				Status:   core.SectionFailed,
				Error:    err.Error(),
			}
		}
		result.Sections = append(result.Sections, sec)
		result.Artifacts = append(result.Artifacts, extractArtifacts(sec)...)
	}
	result.Duration = time.Since(start)

	if failures == len(a.sections) {
		return nil, fmt.Errorf("all sections failed: %w", firstErr)
	}
	return result, nil
}

// AnalyzeSection implements core.Agent, re-running exactly one section.
func (a *ModelAgent) AnalyzeSection(ctx context.Context, sectionID string, view *core.AnalysisView, modifications string) (*core.SectionResult, error) {
	spec, ok := a.section(sectionID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownSection, sectionID)
	}
	sec, _, err := a.runSection(ctx, spec, view, modifications)
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

func (a *ModelAgent) section(id string) (core.SectionSpec, bool) {
	for _, s := range a.sections {
		if s.ID == id {
			return s, true
		}
	}
	return core.SectionSpec{}, false
}

func (a *ModelAgent) runSection(ctx context.Context, spec core.SectionSpec, view *core.AnalysisView, modifications string) (core.SectionResult, core.TokenUsage, error) {
	systemPrompt, prompt := a.buildPrompt(spec, view, modifications)

	start := time.Now()
	resp, err := a.model.Generate(ctx, model.Request{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Temperature:  a.temperature,
		MaxTokens:    a.maxTokens,
	})
	if err != nil {
		return core.SectionResult{}, core.TokenUsage{}, fmt.Errorf("generation failed for section %s: %w", spec.ID, err)
	}
	if al, ok := a.logger.(*logging.AnalysisLogger); ok {
		al.LogLLMCall(resp.Model, resp.Usage.TotalTokens, time.Since(start), true, nil)
	}

	value, err := recovery.Parse(resp.Content)
	if err != nil {
		return core.SectionResult{}, resp.Usage, fmt.Errorf("unrecoverable output for section %s: %w", spec.ID, err)
	}
	content, err := shapeContent(spec.Template, value)
	if err != nil {
		return core.SectionResult{}, resp.Usage, fmt.Errorf("malformed output for section %s: %w", spec.ID, err)
	}

	return core.SectionResult{
		ID:       spec.ID,
		Title:    spec.Title,
		Content:  content,
		Template: spec.Template,
		Status:   core.SectionCompleted,
	}, resp.Usage, nil
}

func (a *ModelAgent) defaultPrompt(spec core.SectionSpec, view *core.AnalysisView, modifications string) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "System under analysis:\n%s\n", view.SystemDescription())

	retrieved := view.Retrieved()
	if len(retrieved) > 0 {
		b.WriteString("\nRelevant prior analysis:\n")
		for plugin, docs := range retrieved {
			for _, doc := range docs {
				fmt.Fprintf(&b, "\n[%s]\n%s\n", plugin, doc.Text)
			}
		}
	}
	if modifications != "" {
		fmt.Fprintf(&b, "\nRequested adjustments:\n%s\n", modifications)
	}
	fmt.Fprintf(&b, "\nProduce the %q section (%s).\n", spec.Title, spec.ID)
	b.WriteString(jsonShapeHint(spec.Template))

	systemPrompt := fmt.Sprintf(
		"You are a security analyst applying the %s methodology. Respond with a single JSON object and no surrounding prose.",
		a.framework)
	return systemPrompt, b.String()
}

func jsonShapeHint(t core.TemplateType) string {
	switch t {
	case core.TemplateTable:
		return `Respond as JSON: {"headers": [...], "rows": [[...], ...]}`
	case core.TemplateChart:
		return `Respond as JSON: {"chart_type": "...", "labels": [...], "series": {"name": [numbers]}}`
	case core.TemplateDiagram:
		return `Respond as JSON: {"format": "mermaid", "definition": "..."}`
	case core.TemplateList:
		return `Respond as JSON: {"items": ["..."]}`
	default:
		return `Respond as JSON: {"text": "..."}`
	}
}
