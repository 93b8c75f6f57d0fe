package threatmesh

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatmesh/threatmesh/agent"
	"github.com/threatmesh/threatmesh/config"
	"github.com/threatmesh/threatmesh/core"
	"github.com/threatmesh/threatmesh/model"
)

func TestFromConfig_DefaultsRunAnalysis(t *testing.T) {
	mesh, err := FromConfig(config.Default())
	require.NoError(t, err)

	m := model.NewMockModel("test-model")
	m.AddResponse("Threats", `{"headers": ["Threat"], "rows": [["Spoofing"]]}`)
	stride := agent.NewModelAgent(core.FrameworkSTRIDE, m, func(o *agent.Options) {
		o.Sections = []core.SectionSpec{{ID: "threats", Title: "Threats", Template: core.TemplateTable}}
	})
	require.NoError(t, mesh.RegisterAgent(stride))

	report, err := mesh.StartAnalysis(context.Background(), core.AnalysisRequest{
		SystemDescription: "a payment service",
		EnabledPlugins:    []core.FrameworkID{core.FrameworkSTRIDE},
	}, "")
	require.NoError(t, err)
	require.Len(t, report.Runs, 1)
	assert.Equal(t, core.StatusCompleted, report.Runs[0].Status)

	// Default() selects the mock provider, so chat answers are generated too.
	resp, err := mesh.ChatQuery(context.Background(), report.AnalysisID, "what threats were found?")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Sources)
	assert.NotEmpty(t, resp.Answer)
}

func TestFromConfig_SQLiteStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Storage = config.StorageConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "artifacts.db")}

	mesh, err := FromConfig(cfg)
	require.NoError(t, err)

	m := model.NewMockModel("test-model")
	m.AddResponse("Losses", `{"items": ["L1: loss of funds"]}`)
	stpa := agent.NewModelAgent(core.FrameworkSTPASec, m, func(o *agent.Options) {
		o.Sections = []core.SectionSpec{{ID: "losses", Title: "Losses", Template: core.TemplateList}}
	})
	require.NoError(t, mesh.RegisterAgent(stpa))

	report, err := mesh.StartAnalysis(context.Background(), core.AnalysisRequest{
		SystemDescription: "sys",
		EnabledPlugins:    []core.FrameworkID{core.FrameworkSTPASec},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, report.Runs[0].Status)
}

func TestFromConfig_OptionsOverrideConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Retrieval.TopK = 7

	mesh, err := FromConfig(cfg, func(o *Options) { o.TopK = 3 })
	require.NoError(t, err)
	assert.Equal(t, 3, mesh.opts.TopK, "caller options run after the configuration")
}

func TestFromConfig_UnknownLogLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "verbose"

	_, err := FromConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}

func TestModelFromConfig_Providers(t *testing.T) {
	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{provider: "mock", want: "mock"},
		{provider: "openai", want: "openai"},
		{provider: "anthropic", want: "anthropic"},
		{provider: "ollama", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			m, err := ModelFromConfig(config.ModelConfig{Provider: tt.provider, APIKey: "test-key"})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Info().Provider)
		})
	}
}
