package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatmesh/threatmesh/artifact"
	"github.com/threatmesh/threatmesh/core"
)

// stubIndex returns documents in insertion order so budget behavior is
// deterministic regardless of embedding quality.
type stubIndex struct {
	docs []core.ContextDocument
}

func (s *stubIndex) Insert(_ context.Context, doc core.ContextDocument) error {
	s.docs = append(s.docs, doc)
	return nil
}

func (s *stubIndex) Query(_ context.Context, _ string, topK int) ([]core.ContextDocument, error) {
	out := make([]core.ContextDocument, len(s.docs))
	copy(out, s.docs)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func newTestStore(optFns ...func(o *Options)) *Store {
	base := func(o *Options) {
		o.NewIndex = func() core.VectorIndex { return &stubIndex{} }
		o.CountTokens = func(text string) int { return len(text) }
	}
	return NewStore(append([]func(o *Options){base}, optFns...)...)
}

func resultWithText(framework core.FrameworkID, text string) *core.AgentResult {
	return &core.AgentResult{
		Framework: framework,
		Sections: []core.SectionResult{{
			ID:       "s1",
			Title:    "Findings",
			Content:  core.TextContent{Text: text},
			Template: core.TemplateText,
			Status:   core.SectionCompleted,
		}},
	}
}

func TestStore_TokenBudgetCutoff(t *testing.T) {
	ctx := context.Background()
	// Budget admits the 30-char description and one 30-char result; the
	// second result overflows and stops accumulation entirely.
	store := newTestStore(func(o *Options) {
		o.MaxContextTokens = 100
	})

	desc := strings.Repeat("d", 30)
	require.NoError(t, store.Initialize(ctx, "a1", desc))
	require.NoError(t, store.StoreResult(ctx, "a1", core.FrameworkSTPASec, resultWithText(core.FrameworkSTPASec, strings.Repeat("x", 10))))
	require.NoError(t, store.StoreResult(ctx, "a1", core.FrameworkSTRIDE, resultWithText(core.FrameworkSTRIDE, strings.Repeat("y", 200))))
	// Would fit on its own, but accumulation already stopped.
	require.NoError(t, store.StoreResult(ctx, "a1", core.FrameworkDREAD, resultWithText(core.FrameworkDREAD, "z")))

	out, err := store.RelevantContext(ctx, "a1", "query", nil)
	require.NoError(t, err)

	var got []core.FrameworkID
	for plugin := range out {
		got = append(got, plugin)
	}
	assert.NotContains(t, got, core.FrameworkSTRIDE)
	assert.NotContains(t, got, core.FrameworkDREAD, "cutoff must stop at the first overflow, not skip past it")
	assert.Contains(t, got, core.FrameworkSTPASec)
}

func TestStore_BudgetIsHardCeiling(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(func(o *Options) {
		o.MaxContextTokens = 50
	})

	require.NoError(t, store.Initialize(ctx, "a1", strings.Repeat("d", 20)))
	for i, fw := range []core.FrameworkID{core.FrameworkSTRIDE, core.FrameworkPASTA, core.FrameworkDREAD} {
		text := strings.Repeat("abcdefghij", i+1)
		require.NoError(t, store.StoreResult(ctx, "a1", fw, resultWithText(fw, text)))
	}

	out, err := store.RelevantContext(ctx, "a1", "query", nil)
	require.NoError(t, err)

	total := 0
	for _, docs := range out {
		for _, d := range docs {
			total += len(d.Text)
		}
	}
	assert.LessOrEqual(t, total, 50)
}

func TestStore_UnknownAnalysisYieldsEmpty(t *testing.T) {
	store := newTestStore()
	out, err := store.RelevantContext(context.Background(), "never-seen", "query", nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	docs, err := store.SearchArtifacts(context.Background(), "never-seen", "query", 3)
	require.NoError(t, err)
	assert.Nil(t, docs)
}

func TestStore_CrossAnalysisIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	require.NoError(t, store.Initialize(ctx, "a1", "first system"))
	require.NoError(t, store.Initialize(ctx, "a2", "second system"))
	require.NoError(t, store.StoreResult(ctx, "a1", core.FrameworkSTRIDE, resultWithText(core.FrameworkSTRIDE, "only in a1")))

	out, err := store.RelevantContext(ctx, "a2", "anything", nil)
	require.NoError(t, err)
	for _, docs := range out {
		for _, d := range docs {
			assert.NotContains(t, d.Text, "only in a1")
		}
	}
}

func TestStore_PluginFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	require.NoError(t, store.Initialize(ctx, "a1", "sys"))
	require.NoError(t, store.StoreResult(ctx, "a1", core.FrameworkSTRIDE, resultWithText(core.FrameworkSTRIDE, "stride findings")))
	require.NoError(t, store.StoreResult(ctx, "a1", core.FrameworkPASTA, resultWithText(core.FrameworkPASTA, "pasta findings")))

	out, err := store.RelevantContext(ctx, "a1", "findings", []core.FrameworkID{core.FrameworkPASTA})
	require.NoError(t, err)
	assert.Contains(t, out, core.FrameworkPASTA)
	assert.NotContains(t, out, core.FrameworkSTRIDE)
}

func TestStore_RebuildFromArtifacts(t *testing.T) {
	ctx := context.Background()
	repo := artifact.NewInMemoryRepository()
	store := newTestStore(func(o *Options) {
		o.Artifacts = repo
	})

	require.NoError(t, repo.Save(ctx, "a1", core.Artifact{
		Content: "persisted stride output",
		Metadata: map[string]string{
			core.MetaPluginID: string(core.FrameworkSTRIDE),
			core.MetaDocType:  core.DocTypeAgentResult,
		},
	}))

	// No in-memory index exists; storing a new result must first rebuild
	// from the persisted artifact.
	require.NoError(t, store.StoreResult(ctx, "a1", core.FrameworkDREAD, resultWithText(core.FrameworkDREAD, "fresh dread output")))

	out, err := store.RelevantContext(ctx, "a1", "output", nil)
	require.NoError(t, err)
	assert.Contains(t, out, core.FrameworkSTRIDE)
	assert.Contains(t, out, core.FrameworkDREAD)
}

func TestStore_EvictThenRebuild(t *testing.T) {
	ctx := context.Background()
	repo := artifact.NewInMemoryRepository()
	store := newTestStore(func(o *Options) {
		o.Artifacts = repo
	})

	require.NoError(t, store.Initialize(ctx, "a1", "sys"))
	require.NoError(t, repo.Save(ctx, "a1", core.Artifact{
		Content:  "survived eviction",
		Metadata: map[string]string{core.MetaPluginID: string(core.FrameworkSTRIDE)},
	}))
	store.Evict("a1")

	require.NoError(t, store.StoreResult(ctx, "a1", core.FrameworkPASTA, resultWithText(core.FrameworkPASTA, "post-eviction")))

	out, err := store.RelevantContext(ctx, "a1", "anything", nil)
	require.NoError(t, err)
	var texts []string
	for _, docs := range out {
		for _, d := range docs {
			texts = append(texts, d.Text)
		}
	}
	assert.Contains(t, strings.Join(texts, "\n"), "survived eviction")
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("a", 100)))
}
