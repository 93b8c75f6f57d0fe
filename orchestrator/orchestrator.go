// Package orchestrator drives the ordered execution of framework agents for
// one analysis: it computes the execution order, pulls grounding context from
// the retrieval store before each agent runs, stores results back, emits
// progress notifications and aggregates the final report. One agent's failure
// never aborts the run; every attempted plugin is observable in the report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/threatmesh/threatmesh/agent"
	"github.com/threatmesh/threatmesh/core"
	"github.com/threatmesh/threatmesh/logging"
	"github.com/threatmesh/threatmesh/model"
	"github.com/threatmesh/threatmesh/notify"
	"github.com/threatmesh/threatmesh/retrieval"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// Suggester recommends follow-up plugins after a run; best-effort.
	Suggester core.Suggester
	// ChatModel, when set, generates answers for ChatQuery on top of the
	// retrieved grounding. Without it ChatQuery returns grounding only.
	ChatModel model.Model
	// Artifacts persists results for index rebuild. May be nil.
	Artifacts core.ArtifactRepository
	// PluginTimeout bounds each agent invocation; an expired timeout marks
	// that plugin failed and the run continues. Zero disables timeouts.
	PluginTimeout time.Duration
	// MaxConcurrentAnalyses bounds concurrently active StartAnalysis
	// calls. Plugins within one analysis always run sequentially. Zero
	// means unlimited.
	MaxConcurrentAnalyses int64
	// ChatTopK bounds ChatQuery grounding documents.
	ChatTopK int
	// Logger receives orchestration diagnostics.
	Logger logging.Logger
}

// Orchestrator coordinates agents, the retrieval store and the notification
// hub for any number of concurrently running analyses. Public methods are
// safe for concurrent use; within one analysis plugins execute strictly
// sequentially because each later agent's context depends on earlier stored
// results.
type Orchestrator struct {
	registry  *agent.Registry
	store     *retrieval.Store
	hub       *notify.Hub
	suggester core.Suggester
	chatModel model.Model
	artifacts core.ArtifactRepository
	logger    logging.Logger

	pluginTimeout time.Duration
	chatTopK      int
	sem           *semaphore.Weighted

	mu       sync.RWMutex
	analyses map[string]*core.AnalysisContext
}

// New constructs an Orchestrator with optional overrides.
func New(registry *agent.Registry, store *retrieval.Store, hub *notify.Hub, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		ChatTopK: 5,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	o := &Orchestrator{
		registry:      registry,
		store:         store,
		hub:           hub,
		suggester:     opts.Suggester,
		chatModel:     opts.ChatModel,
		artifacts:     opts.Artifacts,
		logger:        opts.Logger,
		pluginTimeout: opts.PluginTimeout,
		chatTopK:      opts.ChatTopK,
		analyses:      make(map[string]*core.AnalysisContext),
	}
	if o.suggester == nil {
		o.suggester = NewCoverageSuggester()
	}
	if opts.MaxConcurrentAnalyses > 0 {
		o.sem = semaphore.NewWeighted(opts.MaxConcurrentAnalyses)
	}
	return o
}

// StartAnalysis runs every enabled plugin in execution order against the
// request's system description. Per-plugin failures are isolated: the failing
// plugin is reported failed (notification + run record) and the run
// continues. Enabled plugins with no registered agent are skipped with a
// distinct skipped status. The caller supplies the analysis id and owns its
// uniqueness.
func (o *Orchestrator) StartAnalysis(ctx context.Context, req core.AnalysisRequest, analysisID string) (*core.Report, error) {
	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to acquire analysis slot: %w", err)
		}
		defer o.sem.Release(1)
	}

	if err := o.store.Initialize(ctx, analysisID, req.SystemDescription); err != nil {
		return nil, fmt.Errorf("failed to initialize context store: %w", err)
	}
	o.persist(ctx, analysisID, "", core.DocTypeSystemDescription, req.SystemDescription)

	analysis := core.NewAnalysisContext(analysisID, req)
	o.mu.Lock()
	o.analyses[analysisID] = analysis
	o.mu.Unlock()

	order := ExecutionOrder(req.EnabledPlugins)
	o.logger.Info("starting analysis analysis_id=%s plugins=%d", analysisID, len(order))

	runs := make([]core.RunRecord, 0, len(order))
	for _, plugin := range order {
		runs = append(runs, o.runPlugin(ctx, analysis, plugin))
	}

	suggestions, err := o.suggester.Suggest(ctx, analysis)
	if err != nil {
		// Suggestions are best-effort; a failing suggester never fails a
		// finished analysis.
		o.logger.Warn("suggestion collaborator failed analysis_id=%s: %v", analysisID, err)
		suggestions = nil
	}

	report := &core.Report{
		AnalysisID:  analysisID,
		Results:     analysis.Results(),
		Runs:        runs,
		Suggestions: suggestions,
		CompletedAt: time.Now().UTC(),
	}

	done := core.NewNotificationEvent(core.EventAnalysisCompleted, analysisID)
	done.Status = core.AgentCompleted
	done.Progress = 100
	done.Data = map[string]any{"plugins": len(runs), "completed": len(report.Results)}
	o.hub.Publish(analysisID, done)

	return report, nil
}

func (o *Orchestrator) runPlugin(ctx context.Context, analysis *core.AnalysisContext, plugin core.FrameworkID) core.RunRecord {
	pub := o.hub.NewPublisher(analysis.ID, plugin)

	ag, ok := o.registry.Agent(plugin)
	if !ok {
		o.logger.Info("no agent registered, skipping framework=%s analysis_id=%s", plugin, analysis.ID)
		pub.Skipped()
		return core.RunRecord{Framework: plugin, Status: core.StatusSkipped}
	}

	pub.Started(fmt.Sprintf("running %s analysis", plugin))

	retrieved, err := o.store.RelevantContext(ctx, analysis.ID, o.contextQuery(plugin, analysis), nil)
	if err != nil {
		o.logger.Error("context retrieval failed framework=%s analysis_id=%s: %v", plugin, analysis.ID, err)
		pub.Failed(err)
		return core.RunRecord{Framework: plugin, Status: core.StatusFailed, Error: err.Error()}
	}
	view := analysis.View(retrieved).WithProgress(pub.Progress)

	runCtx := ctx
	if o.pluginTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.pluginTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := ag.Analyze(runCtx, view)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("agent timed out after %s", o.pluginTimeout)
		}
		o.logger.Error("agent failed framework=%s analysis_id=%s: %v", plugin, analysis.ID, err)
		if al, ok := o.logger.(*logging.AnalysisLogger); ok {
			al.LogAgentRun(string(plugin), 0, time.Since(start), false, err)
		}
		pub.Failed(err)
		return core.RunRecord{Framework: plugin, Status: core.StatusFailed, Error: err.Error()}
	}
	if result.Duration < 0 {
		result.Duration = 0
	}
	if al, ok := o.logger.(*logging.AnalysisLogger); ok {
		al.LogAgentRun(string(plugin), len(result.Sections), time.Since(start), true, nil)
	}

	analysis.AddResult(result)
	if err := o.store.StoreResult(ctx, analysis.ID, plugin, result); err != nil {
		// The result itself survives; only cross-agent grounding degrades.
		o.logger.Warn("failed to index result framework=%s analysis_id=%s: %v", plugin, analysis.ID, err)
	}
	o.persist(ctx, analysis.ID, plugin, core.DocTypeAgentResult, result.CanonicalText())

	pub.Completed(map[string]any{
		"framework":    string(plugin),
		"sections":     len(result.Sections),
		"artifacts":    len(result.Artifacts),
		"duration_ms":  time.Since(start).Milliseconds(),
		"total_tokens": result.Usage.TotalTokens,
	})
	return core.RunRecord{Framework: plugin, Status: core.StatusCompleted}
}

// RerunSection re-invokes one agent's section-level entry point and replaces
// the stored section result. Unknown analysis or plugin ids are caller errors
// and raise; an agent failure during the rerun is converted into a failed
// section result, mirroring the per-plugin isolation of StartAnalysis.
func (o *Orchestrator) RerunSection(ctx context.Context, analysisID string, plugin core.FrameworkID, sectionID, modifications string) (*core.SectionResult, error) {
	o.mu.RLock()
	analysis, ok := o.analyses[analysisID]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownAnalysis, analysisID)
	}
	prior, ok := analysis.Result(plugin)
	if !ok {
		return nil, fmt.Errorf("%w: %q was never executed for analysis %q", core.ErrUnknownPlugin, plugin, analysisID)
	}
	ag, ok := o.registry.Agent(plugin)
	if !ok {
		return nil, fmt.Errorf("%w: no agent registered for %q", core.ErrUnknownPlugin, plugin)
	}

	retrieved, err := o.store.RelevantContext(ctx, analysisID, o.contextQuery(plugin, analysis), nil)
	if err != nil {
		return nil, fmt.Errorf("context retrieval failed: %w", err)
	}
	view := analysis.View(retrieved)

	section, err := ag.AnalyzeSection(ctx, sectionID, view, modifications)
	if err != nil {
		if errors.Is(err, core.ErrUnknownSection) {
			return nil, err
		}
		priorSection, _ := prior.Section(sectionID)
		section = &core.SectionResult{
			ID:       sectionID,
			Title:    priorSection.Title,
			Template: priorSection.Template,
			Status:   core.SectionFailed,
			Error:    err.Error(),
		}
	}

	updated := prior.WithSection(*section)
	analysis.AddResult(updated)
	if err := o.store.StoreResult(ctx, analysisID, plugin, updated); err != nil {
		o.logger.Warn("failed to re-index result framework=%s analysis_id=%s: %v", plugin, analysisID, err)
	}
	o.persist(ctx, analysisID, plugin, core.DocTypeAgentResult, updated.CanonicalText())

	ev := core.NewNotificationEvent(core.EventSectionUpdated, analysisID)
	ev.Framework = plugin
	ev.Status = core.AgentStatus(section.Status)
	ev.Message = sectionID
	o.hub.Publish(analysisID, ev)

	return section, nil
}

// ChatQuery grounds a conversational query in the analysis's stored
// artifacts. When a chat model is configured the answer is generated from the
// grounding; otherwise only the sources are returned and generation is the
// calling layer's concern. An unknown analysis id yields empty grounding,
// not an error.
func (o *Orchestrator) ChatQuery(ctx context.Context, analysisID, query string) (*core.ChatResponse, error) {
	sources, err := o.store.SearchArtifacts(ctx, analysisID, query, o.chatTopK)
	if err != nil {
		return nil, fmt.Errorf("artifact search failed: %w", err)
	}
	resp := &core.ChatResponse{Query: query, Sources: sources}

	if o.chatModel == nil || len(sources) == 0 {
		return resp, nil
	}

	prompt := buildChatPrompt(query, sources)
	generated, err := o.chatModel.Generate(ctx, model.Request{
		Prompt:       prompt,
		SystemPrompt: "You answer questions about a completed security analysis using only the provided excerpts.",
		Temperature:  0.2,
		MaxTokens:    1024,
	})
	if err != nil {
		return nil, fmt.Errorf("chat generation failed: %w", err)
	}
	resp.Answer = generated.Content
	return resp, nil
}

// Subscribe attaches a notification subscriber for an analysis id.
func (o *Orchestrator) Subscribe(analysisID string) (<-chan core.NotificationEvent, func()) {
	return o.hub.Subscribe(analysisID)
}

// Analysis returns the in-memory context for an analysis, if present.
func (o *Orchestrator) Analysis(analysisID string) (*core.AnalysisContext, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	a, ok := o.analyses[analysisID]
	return a, ok
}

func (o *Orchestrator) contextQuery(plugin core.FrameworkID, analysis *core.AnalysisContext) string {
	desc := analysis.SystemDescription
	if len(desc) > 500 {
		desc = desc[:500]
	}
	return fmt.Sprintf("%s security analysis of: %s", plugin, desc)
}

func (o *Orchestrator) persist(ctx context.Context, analysisID string, plugin core.FrameworkID, docType, content string) {
	if o.artifacts == nil {
		return
	}
	metadata := map[string]string{
		core.MetaDocType:   docType,
		core.MetaTimestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if plugin != "" {
		metadata[core.MetaPluginID] = string(plugin)
	}
	err := o.artifacts.Save(ctx, analysisID, core.Artifact{Content: content, Metadata: metadata})
	if err != nil {
		o.logger.Warn("failed to persist artifact analysis_id=%s type=%s: %v", analysisID, docType, err)
	}
}

func buildChatPrompt(query string, sources []core.ContextDocument) string {
	out := "Excerpts from the analysis:\n"
	for _, doc := range sources {
		out += fmt.Sprintf("\n[%s]\n%s\n", doc.Metadata[core.MetaDocType], doc.Text)
	}
	return out + "\nQuestion: " + query
}
