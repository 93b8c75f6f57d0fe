package threatmesh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatmesh/threatmesh/agent"
	"github.com/threatmesh/threatmesh/core"
	"github.com/threatmesh/threatmesh/model"
)

func newDemoMesh(t *testing.T) (*ThreatMesh, *model.MockModel) {
	t.Helper()
	mesh := New()

	m := model.NewMockModel("test-model")
	m.AddResponse("Losses", `{"items": ["L1: loss of funds"]}`)
	m.AddResponse("Threats", `{"headers": ["Threat"], "rows": [["Spoofing"]]}`)

	stpa := agent.NewModelAgent(core.FrameworkSTPASec, m, func(o *agent.Options) {
		o.Sections = []core.SectionSpec{{ID: "losses", Title: "Losses", Template: core.TemplateList}}
	})
	stride := agent.NewModelAgent(core.FrameworkSTRIDE, m, func(o *agent.Options) {
		o.Sections = []core.SectionSpec{{ID: "threats", Title: "Threats", Template: core.TemplateTable}}
	})
	require.NoError(t, mesh.RegisterAgent(stpa))
	require.NoError(t, mesh.RegisterAgent(stride))
	return mesh, m
}

func TestThreatMesh_EndToEnd(t *testing.T) {
	mesh, _ := newDemoMesh(t)

	analysisID := core.NewID()
	events, cancel := mesh.Subscribe(analysisID)
	defer cancel()

	ctx, cancelCtx := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelCtx()

	report, err := mesh.StartAnalysis(ctx, core.AnalysisRequest{
		SystemDescription: "a payment service with a public API",
		EnabledPlugins:    []core.FrameworkID{core.FrameworkSTRIDE, core.FrameworkSTPASec},
	}, analysisID)
	require.NoError(t, err)

	require.Len(t, report.Runs, 2)
	assert.Equal(t, core.FrameworkSTPASec, report.Runs[0].Framework, "stpa-sec must run first")
	assert.Len(t, report.Results, 2)

	// Lifecycle events were broadcast while the run executed.
	var sawCompleted bool
drain:
	for {
		select {
		case ev := <-events:
			if ev.Type == core.EventAnalysisCompleted {
				sawCompleted = true
				break drain
			}
		default:
			break drain
		}
	}
	assert.True(t, sawCompleted, "expected analysis_completed event")

	// Rerun a section with steering text.
	section, err := mesh.RerunSection(ctx, analysisID, core.FrameworkSTPASec, "losses", "include environmental losses")
	require.NoError(t, err)
	assert.Equal(t, core.SectionCompleted, section.Status)

	// Chat grounding over the stored results.
	resp, err := mesh.ChatQuery(ctx, analysisID, "what threats affect the API?")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Sources)

	assert.Equal(t, []core.FrameworkID{core.FrameworkSTPASec, core.FrameworkSTRIDE}, mesh.Frameworks())
}

func TestThreatMesh_GeneratesAnalysisID(t *testing.T) {
	mesh, _ := newDemoMesh(t)

	report, err := mesh.StartAnalysis(context.Background(), core.AnalysisRequest{
		SystemDescription: "sys",
		EnabledPlugins:    []core.FrameworkID{core.FrameworkSTRIDE},
	}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, report.AnalysisID)
}

func TestThreatMesh_DuplicateRegistrationRejected(t *testing.T) {
	mesh, m := newDemoMesh(t)
	dup := agent.NewModelAgent(core.FrameworkSTRIDE, m, func(o *agent.Options) {
		o.Sections = []core.SectionSpec{{ID: "x", Title: "X", Template: core.TemplateText}}
	})
	assert.ErrorIs(t, mesh.RegisterAgent(dup), core.ErrAlreadyRegistered)
}
