package notify

import "github.com/threatmesh/threatmesh/core"

// Publisher emits the per-plugin event sequence for one (analysis, framework)
// pair: started, zero or more progress events, then exactly one terminal
// completed/failed event. Progress values are clamped so subscribers never
// observe a regression. Not safe for concurrent use; one plugin execution
// owns one Publisher.
type Publisher struct {
	hub        *Hub
	analysisID string
	framework  core.FrameworkID
	last       float64
}

// NewPublisher binds a publisher to one plugin execution.
func (h *Hub) NewPublisher(analysisID string, framework core.FrameworkID) *Publisher {
	return &Publisher{hub: h, analysisID: analysisID, framework: framework}
}

func (p *Publisher) emit(eventType core.EventType, status core.AgentStatus, progress float64, message string, data map[string]any) {
	ev := core.NewNotificationEvent(eventType, p.analysisID)
	ev.Framework = p.framework
	ev.Status = status
	ev.Progress = progress
	ev.Message = message
	ev.Data = data
	p.hub.Publish(p.analysisID, ev)
}

// Started emits the in_progress transition at progress 0.
func (p *Publisher) Started(message string) {
	p.last = 0
	p.emit(core.EventAgentStarted, core.AgentInProgress, 0, message, nil)
}

// Progress emits an intermediate update. Values are clamped into [last, 100]
// to keep the observed sequence monotonically non-decreasing.
func (p *Publisher) Progress(progress float64, message string) {
	if progress < p.last {
		progress = p.last
	}
	if progress > 100 {
		progress = 100
	}
	p.last = progress
	p.emit(core.EventAgentProgress, core.AgentInProgress, progress, message, nil)
}

// Completed emits the terminal success event with the result payload.
func (p *Publisher) Completed(data map[string]any) {
	p.last = 100
	p.emit(core.EventAgentCompleted, core.AgentCompleted, 100, "", data)
}

// Failed emits the terminal failure event carrying the error message.
func (p *Publisher) Failed(err error) {
	p.emit(core.EventAgentFailed, core.AgentFailed, p.last, err.Error(), nil)
}

// Skipped reports an enabled plugin with no registered agent.
func (p *Publisher) Skipped() {
	p.emit(core.EventAgentSkipped, core.AgentSkipped, 0, "no agent registered", nil)
}
