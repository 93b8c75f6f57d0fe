package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatmesh/threatmesh/core"
)

var _ core.ArtifactRepository = (*Repository)(nil)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository_SaveAndList(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "a1", core.Artifact{
		ID:      "art-1",
		Content: "stride output",
		Metadata: map[string]string{
			core.MetaPluginID: string(core.FrameworkSTRIDE),
			core.MetaDocType:  core.DocTypeAgentResult,
		},
	}))
	require.NoError(t, repo.Save(ctx, "a1", core.Artifact{ID: "art-2", Content: "dread output"}))
	require.NoError(t, repo.Save(ctx, "a2", core.Artifact{ID: "art-3", Content: "unrelated"}))

	arts, err := repo.List(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, "art-1", arts[0].ID)
	assert.Equal(t, "stride output", arts[0].Content)
	assert.Equal(t, string(core.FrameworkSTRIDE), arts[0].Metadata[core.MetaPluginID])
}

func TestRepository_SaveReplacesSameID(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "a1", core.Artifact{ID: "art-1", Content: "first"}))
	require.NoError(t, repo.Save(ctx, "a1", core.Artifact{ID: "art-1", Content: "second"}))

	arts, err := repo.List(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "second", arts[0].Content)
}

func TestRepository_AssignsIDWhenEmpty(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "a1", core.Artifact{Content: "no id"}))
	arts, err := repo.List(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.NotEmpty(t, arts[0].ID)
}

func TestRepository_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts.db")
	ctx := context.Background()

	repo, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, "a1", core.Artifact{ID: "art-1", Content: "durable"}))
	require.NoError(t, repo.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	arts, err := reopened.List(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "durable", arts[0].Content)
}

func TestRepository_UnknownAnalysisEmpty(t *testing.T) {
	repo := openTestRepo(t)
	arts, err := repo.List(context.Background(), "never")
	require.NoError(t, err)
	assert.Empty(t, arts)
}
