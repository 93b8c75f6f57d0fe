// Package retrieval maintains, per analysis identifier, an incrementally
// built similarity index over the system description and prior agent output,
// and answers token-budgeted relevance queries so each agent can see relevant
// prior context without exceeding a model's context window.
package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/threatmesh/threatmesh/core"
	"github.com/threatmesh/threatmesh/logging"
)

// TokenCounter computes the tokenizer units a text will consume.
type TokenCounter func(text string) int

// EstimateTokens is the default TokenCounter: a rough character heuristic
// (~4 characters per token). Inject an exact tokenizer via WithTokenCounter
// when hard accounting is required.
func EstimateTokens(text string) int { return len(text) / 4 }

// Options configure a Store.
type Options struct {
	// NewIndex creates the similarity index for one analysis.
	NewIndex func() core.VectorIndex
	// Artifacts is the rebuild source when no in-memory index exists.
	// May be nil, in which case rebuilds find nothing.
	Artifacts core.ArtifactRepository
	// TopK bounds how many candidates a relevance query considers.
	TopK int
	// MaxContextTokens is the hard ceiling on accumulated context per
	// relevance query.
	MaxContextTokens int
	// CountTokens measures candidate documents against the budget.
	CountTokens TokenCounter
	// Logger receives retrieval diagnostics.
	Logger logging.Logger
}

// Store is the per-analysis context store. All index mutation and rebuild for
// one analysis happens under that analysis's own lock, so concurrent store,
// rerun and chat operations on the same id do not race.
type Store struct {
	mu      sync.Mutex
	indexes map[string]*analysisIndex

	newIndex         func() core.VectorIndex
	artifacts        core.ArtifactRepository
	topK             int
	maxContextTokens int
	countTokens      TokenCounter
	logger           logging.Logger
}

type analysisIndex struct {
	mu    sync.Mutex
	index core.VectorIndex
}

// NewStore constructs a Store. NewIndex must be set (the façade wires the
// in-memory cosine index by default).
func NewStore(optFns ...func(o *Options)) *Store {
	opts := Options{
		TopK:             20,
		MaxContextTokens: 8000,
		CountTokens:      EstimateTokens,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		indexes:          make(map[string]*analysisIndex),
		newIndex:         opts.NewIndex,
		artifacts:        opts.Artifacts,
		topK:             opts.TopK,
		maxContextTokens: opts.MaxContextTokens,
		countTokens:      opts.CountTokens,
		logger:           opts.Logger,
	}
}

// Initialize registers the system description as the first document of a new
// analysis-scoped index.
func (s *Store) Initialize(ctx context.Context, analysisID, systemDescription string) error {
	idx := s.ensure(analysisID)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	doc := core.ContextDocument{
		ID:   core.NewID(),
		Text: systemDescription,
		Metadata: map[string]string{
			core.MetaAnalysisID: analysisID,
			core.MetaDocType:    core.DocTypeSystemDescription,
			core.MetaTimestamp:  time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := idx.index.Insert(ctx, doc); err != nil {
		return fmt.Errorf("failed to index system description: %w", err)
	}
	return nil
}

// StoreResult serializes the agent result to its canonical text projection
// and inserts it into the analysis's index. If no index exists in memory for
// this analysis (process restart, eviction) the index is first rebuilt from
// all previously persisted artifacts.
func (s *Store) StoreResult(ctx context.Context, analysisID string, pluginID core.FrameworkID, result *core.AgentResult) error {
	idx, rebuilt := s.ensureTracked(analysisID)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if rebuilt {
		if err := s.rebuild(ctx, analysisID, idx); err != nil {
			return err
		}
	}
	doc := core.ContextDocument{
		ID:   core.NewID(),
		Text: result.CanonicalText(),
		Metadata: map[string]string{
			core.MetaAnalysisID: analysisID,
			core.MetaPluginID:   string(pluginID),
			core.MetaDocType:    core.DocTypeAgentResult,
			core.MetaTimestamp:  time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := idx.index.Insert(ctx, doc); err != nil {
		return fmt.Errorf("failed to index result for %s: %w", pluginID, err)
	}
	return nil
}

// RelevantContext retrieves the documents most similar to query, optionally
// restricted to the plugins in pluginFilter, grouped by producing plugin in
// rank order. Candidates are accumulated greedily by descending similarity
// while the running token count stays within the configured budget; the first
// document whose inclusion would exceed the budget stops accumulation
// entirely. This guarantees a hard token ceiling at the cost of not doing
// combinatorial budget optimization.
//
// An analysis id with no index yields empty results, not an error.
func (s *Store) RelevantContext(ctx context.Context, analysisID, query string, pluginFilter []core.FrameworkID) (map[core.FrameworkID][]core.ContextDocument, error) {
	start := time.Now()
	out := make(map[core.FrameworkID][]core.ContextDocument)

	idx, ok := s.lookup(analysisID)
	if !ok {
		return out, nil
	}
	idx.mu.Lock()
	candidates, err := idx.index.Query(ctx, query, s.topK)
	idx.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("relevance query failed: %w", err)
	}

	var filter map[core.FrameworkID]bool
	if len(pluginFilter) > 0 {
		filter = make(map[core.FrameworkID]bool, len(pluginFilter))
		for _, p := range pluginFilter {
			filter[p] = true
		}
	}

	budget := s.maxContextTokens
	used := 0
	selected := 0
	for _, doc := range candidates {
		if filter != nil && !filter[doc.PluginID()] {
			continue
		}
		cost := s.countTokens(doc.Text)
		if used+cost > budget {
			break
		}
		used += cost
		selected++
		plugin := doc.PluginID()
		out[plugin] = append(out[plugin], doc)
	}

	if al, ok := s.logger.(*logging.AnalysisLogger); ok {
		al.LogRetrieval(query, selected, used, time.Since(start))
	} else {
		s.logger.Debug("retrieval selected %d documents (%d tokens) analysis_id=%s", selected, used, analysisID)
	}
	return out, nil
}

// SearchArtifacts is the simpler variant used for conversational grounding:
// top-K by similarity, no token budget and no grouping.
func (s *Store) SearchArtifacts(ctx context.Context, analysisID, query string, topK int) ([]core.ContextDocument, error) {
	idx, ok := s.lookup(analysisID)
	if !ok {
		return nil, nil
	}
	if topK <= 0 {
		topK = s.topK
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	docs, err := idx.index.Query(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("artifact search failed: %w", err)
	}
	return docs, nil
}

// ensure returns the index for an analysis, creating it if absent.
func (s *Store) ensure(analysisID string) *analysisIndex {
	idx, _ := s.ensureTracked(analysisID)
	return idx
}

// ensureTracked additionally reports whether the index was just created,
// which is the signal that a rebuild from persisted artifacts is needed.
func (s *Store) ensureTracked(analysisID string) (*analysisIndex, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[analysisID]; ok {
		return idx, false
	}
	idx := &analysisIndex{index: s.newIndex()}
	s.indexes[analysisID] = idx
	return idx, true
}

func (s *Store) lookup(analysisID string) (*analysisIndex, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[analysisID]
	return idx, ok
}

// Evict drops the in-memory index for an analysis. The next StoreResult
// rebuilds it from persisted artifacts.
func (s *Store) Evict(analysisID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, analysisID)
}

// rebuild repopulates an index from every persisted artifact of the
// analysis. Zero persisted artifacts leaves the index empty; that is not an
// error. Caller holds the analysis lock.
func (s *Store) rebuild(ctx context.Context, analysisID string, idx *analysisIndex) error {
	if s.artifacts == nil {
		return nil
	}
	artifacts, err := s.artifacts.List(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("failed to load artifacts for rebuild: %w", err)
	}
	for _, a := range artifacts {
		metadata := make(map[string]string, len(a.Metadata)+1)
		for k, v := range a.Metadata {
			metadata[k] = v
		}
		metadata[core.MetaAnalysisID] = analysisID
		doc := core.ContextDocument{ID: a.ID, Text: a.Content, Metadata: metadata}
		if err := idx.index.Insert(ctx, doc); err != nil {
			return fmt.Errorf("failed to rebuild index: %w", err)
		}
	}
	s.logger.Debug("rebuilt index analysis_id=%s documents=%d", analysisID, len(artifacts))
	return nil
}
