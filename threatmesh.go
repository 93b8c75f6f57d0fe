// Package threatmesh provides a high-level façade over the orchestration
// core and its collaborators (retrieval store, notification hub, artifact
// repository & logging) enabling rapid construction of multi-framework
// security-analysis pipelines. Most applications interact with this package
// by:
//  1. Creating a ThreatMesh via New() (optionally overriding default in-memory services)
//  2. Registering one agent per enabled framework (model-backed or custom)
//  3. Starting analyses (StartAnalysis), rerunning sections (RerunSection)
//     and asking follow-up questions (ChatQuery)
//
// The façade delegates execution to orchestrator.Orchestrator while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// artifact repository, a real embedder and a structured logger.
package threatmesh

import (
	"context"
	"time"

	"github.com/threatmesh/threatmesh/agent"
	"github.com/threatmesh/threatmesh/artifact"
	"github.com/threatmesh/threatmesh/core"
	"github.com/threatmesh/threatmesh/embedding"
	"github.com/threatmesh/threatmesh/logging"
	"github.com/threatmesh/threatmesh/model"
	"github.com/threatmesh/threatmesh/notify"
	"github.com/threatmesh/threatmesh/orchestrator"
	"github.com/threatmesh/threatmesh/retrieval"
	"github.com/threatmesh/threatmesh/vector"
)

// Options configures the ThreatMesh instance.
type Options struct {
	// Embedder vectorizes documents for the retrieval index. Defaults to the
	// deterministic hashing embedder, which needs no network access.
	Embedder core.Embedder

	// Artifacts persists analysis output for index rebuilds and chat
	// grounding. Defaults to an in-memory repository.
	Artifacts core.ArtifactRepository

	// Suggester recommends follow-up frameworks after each run. Defaults to
	// the rule-based coverage suggester.
	Suggester core.Suggester

	// ChatModel generates ChatQuery answers. When nil, ChatQuery returns
	// grounding documents only.
	ChatModel model.Model

	// TopK bounds retrieval candidates per relevance query.
	TopK int

	// MaxContextTokens caps accumulated retrieved context per agent run.
	MaxContextTokens int

	// PluginTimeout bounds each agent invocation. Zero disables timeouts.
	PluginTimeout time.Duration

	// MaxConcurrentAnalyses limits simultaneously running analyses. Zero
	// means unlimited.
	MaxConcurrentAnalyses int64

	// NotificationBufferSize sets the per-subscriber event buffer.
	NotificationBufferSize int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// ThreatMesh is the high-level façade aggregating the orchestrator and its
// services.
type ThreatMesh struct {
	opts         Options
	registry     *agent.Registry
	hub          *notify.Hub
	store        *retrieval.Store
	orchestrator *orchestrator.Orchestrator
}

// New creates a ThreatMesh instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *ThreatMesh {
	opts := Options{
		Embedder:               embedding.NewHashEmbedder(64),
		Artifacts:              artifact.NewInMemoryRepository(),
		TopK:                   20,
		MaxContextTokens:       8000,
		NotificationBufferSize: 64,
		Logger:                 logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	hub := notify.NewHub(func(o *notify.Options) {
		o.BufferSize = opts.NotificationBufferSize
		o.Logger = opts.Logger
	})
	store := retrieval.NewStore(func(o *retrieval.Options) {
		o.NewIndex = func() core.VectorIndex { return vector.NewInMemoryIndex(opts.Embedder) }
		o.Artifacts = opts.Artifacts
		o.TopK = opts.TopK
		o.MaxContextTokens = opts.MaxContextTokens
		o.Logger = opts.Logger
	})
	registry := agent.NewRegistry()
	orch := orchestrator.New(registry, store, hub, func(o *orchestrator.Options) {
		o.Suggester = opts.Suggester
		o.ChatModel = opts.ChatModel
		o.Artifacts = opts.Artifacts
		o.PluginTimeout = opts.PluginTimeout
		o.MaxConcurrentAnalyses = opts.MaxConcurrentAnalyses
		o.Logger = opts.Logger
	})

	return &ThreatMesh{
		opts:         opts,
		registry:     registry,
		hub:          hub,
		store:        store,
		orchestrator: orch,
	}
}

// RegisterAgent adds an agent under its framework id.
func (t *ThreatMesh) RegisterAgent(a core.Agent) error { return t.registry.Register(a) }

// StartAnalysis runs every enabled framework against the system description
// and returns the aggregate report. A fresh analysis id is generated when the
// caller passes an empty one.
func (t *ThreatMesh) StartAnalysis(ctx context.Context, req core.AnalysisRequest, analysisID string) (*core.Report, error) {
	if analysisID == "" {
		analysisID = core.NewID()
	}
	return t.orchestrator.StartAnalysis(ctx, req, analysisID)
}

// RerunSection regenerates one section of a previously produced result.
func (t *ThreatMesh) RerunSection(ctx context.Context, analysisID string, plugin core.FrameworkID, sectionID, modifications string) (*core.SectionResult, error) {
	return t.orchestrator.RerunSection(ctx, analysisID, plugin, sectionID, modifications)
}

// ChatQuery grounds a conversational question in the analysis's stored
// output.
func (t *ThreatMesh) ChatQuery(ctx context.Context, analysisID, query string) (*core.ChatResponse, error) {
	return t.orchestrator.ChatQuery(ctx, analysisID, query)
}

// Subscribe attaches a notification subscriber for an analysis id. The cancel
// function detaches it and closes the channel.
func (t *ThreatMesh) Subscribe(analysisID string) (<-chan core.NotificationEvent, func()) {
	return t.hub.Subscribe(analysisID)
}

// Frameworks returns the registered framework ids in lexicographic order.
func (t *ThreatMesh) Frameworks() []core.FrameworkID { return t.registry.Frameworks() }
