package core

import (
	"fmt"
	"strings"
	"time"
)

// TemplateType tags how a section's content should be rendered.
type TemplateType string

const (
	// TemplateTable renders as a header/rows table.
	TemplateTable TemplateType = "table"
	// TemplateChart renders as a labeled data series.
	TemplateChart TemplateType = "chart"
	// TemplateDiagram renders as a textual diagram definition (e.g. mermaid).
	TemplateDiagram TemplateType = "diagram"
	// TemplateText renders as prose.
	TemplateText TemplateType = "text"
	// TemplateList renders as an ordered list of items.
	TemplateList TemplateType = "list"
)

// SectionStatus tracks the lifecycle of one section of an agent's output.
type SectionStatus string

const (
	// SectionPending means the section has not started.
	SectionPending SectionStatus = "pending"
	// SectionInProgress means the section is being generated.
	SectionInProgress SectionStatus = "in_progress"
	// SectionCompleted means the section finished successfully.
	SectionCompleted SectionStatus = "completed"
	// SectionFailed means the section failed; Error is always set.
	SectionFailed SectionStatus = "failed"
)

// SectionContent is the closed union of section payload variants. Concrete
// types implement the unexported marker plus Template and CanonicalText, the
// explicit serialization contract used when results are indexed for
// retrieval.
type SectionContent interface {
	isSectionContent()
	Template() TemplateType
	CanonicalText() string
}

// TableContent holds tabular section output.
type TableContent struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

func (TableContent) isSectionContent() {}

// Template implements SectionContent.
func (TableContent) Template() TemplateType { return TemplateTable }

// CanonicalText projects the table into pipe-separated lines.
func (c TableContent) CanonicalText() string {
	var b strings.Builder
	b.WriteString(strings.Join(c.Headers, " | "))
	for _, row := range c.Rows {
		b.WriteString("\n")
		b.WriteString(strings.Join(row, " | "))
	}
	return b.String()
}

// ChartContent holds chart section output as named series over shared labels.
type ChartContent struct {
	ChartType string               `json:"chart_type"`
	Labels    []string             `json:"labels"`
	Series    map[string][]float64 `json:"series"`
}

func (ChartContent) isSectionContent() {}

// Template implements SectionContent.
func (ChartContent) Template() TemplateType { return TemplateChart }

// CanonicalText projects the chart into label=value lines per series.
func (c ChartContent) CanonicalText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s chart", c.ChartType)
	for name, values := range c.Series {
		fmt.Fprintf(&b, "\n%s:", name)
		for i, v := range values {
			label := ""
			if i < len(c.Labels) {
				label = c.Labels[i]
			}
			fmt.Fprintf(&b, " %s=%g", label, v)
		}
	}
	return b.String()
}

// DiagramContent holds a textual diagram definition.
type DiagramContent struct {
	Format     string `json:"format"` // "mermaid", "dot", ...
	Definition string `json:"definition"`
}

func (DiagramContent) isSectionContent() {}

// Template implements SectionContent.
func (DiagramContent) Template() TemplateType { return TemplateDiagram }

// CanonicalText implements SectionContent.
func (c DiagramContent) CanonicalText() string { return c.Definition }

// TextContent holds prose section output.
type TextContent struct {
	Text string `json:"text"`
}

func (TextContent) isSectionContent() {}

// Template implements SectionContent.
func (TextContent) Template() TemplateType { return TemplateText }

// CanonicalText implements SectionContent.
func (c TextContent) CanonicalText() string { return c.Text }

// ListContent holds an ordered list of findings or items.
type ListContent struct {
	Items []string `json:"items"`
}

func (ListContent) isSectionContent() {}

// Template implements SectionContent.
func (ListContent) Template() TemplateType { return TemplateList }

// CanonicalText implements SectionContent.
func (c ListContent) CanonicalText() string { return strings.Join(c.Items, "\n") }

// SectionSpec declares one section an agent produces, in order.
type SectionSpec struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Template TemplateType `json:"template_type"`
}

// SectionResult is one named sub-unit of an agent's output. It is created by
// an agent and never mutated after being reported; a rerun produces a
// replacement value.
type SectionResult struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Content  SectionContent `json:"content,omitempty"`
	Template TemplateType   `json:"template_type"`
	Status   SectionStatus  `json:"status"`
	Error    string         `json:"error,omitempty"` // non-empty iff Status == SectionFailed
}

// CanonicalText projects the section (title plus content) into indexable text.
func (s SectionResult) CanonicalText() string {
	if s.Content == nil {
		return s.Title
	}
	return s.Title + "\n" + s.Content.CanonicalText()
}

// ArtifactDescriptor references a structured object extracted from a section
// for downstream cross-referencing (e.g. a control structure element, a
// threat, a loss scenario).
type ArtifactDescriptor struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	SectionID string `json:"section_id"`
}

// TokenUsage counts tokenizer units consumed by an agent's model calls.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// AgentResult is the output of one agent run. Immutable once produced;
// Duration is never negative.
type AgentResult struct {
	Framework FrameworkID          `json:"framework"`
	Sections  []SectionResult      `json:"sections"`
	Artifacts []ArtifactDescriptor `json:"artifacts,omitempty"`
	Duration  time.Duration        `json:"duration"`
	Usage     TokenUsage           `json:"usage"`
}

// Section returns the section with the given id, if present.
func (r *AgentResult) Section(sectionID string) (SectionResult, bool) {
	for _, s := range r.Sections {
		if s.ID == sectionID {
			return s, true
		}
	}
	return SectionResult{}, false
}

// WithSection returns a copy of the result with the matching section replaced.
// The receiver is left untouched so previously reported results stay immutable.
func (r *AgentResult) WithSection(sec SectionResult) *AgentResult {
	clone := *r
	clone.Sections = make([]SectionResult, len(r.Sections))
	copy(clone.Sections, r.Sections)
	for i, s := range clone.Sections {
		if s.ID == sec.ID {
			clone.Sections[i] = sec
			break
		}
	}
	return &clone
}

// CanonicalText projects the whole result into the text form stored in the
// retrieval index. Failed sections contribute their error so later agents can
// see what is missing.
func (r *AgentResult) CanonicalText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s analysis", r.Framework)
	for _, s := range r.Sections {
		b.WriteString("\n\n")
		if s.Status == SectionFailed {
			fmt.Fprintf(&b, "%s: failed: %s", s.Title, s.Error)
			continue
		}
		b.WriteString(s.CanonicalText())
	}
	if len(r.Artifacts) > 0 {
		b.WriteString("\n\nartifacts:")
		for _, a := range r.Artifacts {
			fmt.Fprintf(&b, "\n- %s %q (%s)", a.Type, a.Name, a.ID)
		}
	}
	return b.String()
}
