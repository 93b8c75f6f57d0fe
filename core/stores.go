package core

import "context"

// VectorIndex answers similarity queries over inserted context documents.
// One index instance is scoped to a single analysis; implementations embed
// document text on insert and attach scores on query results.
type VectorIndex interface {
	Insert(ctx context.Context, doc ContextDocument) error
	Query(ctx context.Context, text string, topK int) ([]ContextDocument, error)
}

// Embedder converts texts into vectors for similarity ranking.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Artifact is one persisted unit of analysis output used to rebuild a
// retrieval index after eviction or restart.
type Artifact struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// ArtifactRepository persists artifacts per analysis. Save is invoked by the
// orchestrator as results are produced; List is the rebuild source for the
// retrieval store. Implementations must be safe for concurrent use.
type ArtifactRepository interface {
	Save(ctx context.Context, analysisID string, artifact Artifact) error
	List(ctx context.Context, analysisID string) ([]Artifact, error)
}
