package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies notification events emitted during a run.
type EventType string

const (
	// EventAgentStarted marks the start of one plugin's execution.
	EventAgentStarted EventType = "agent_started"
	// EventAgentProgress carries an intermediate progress update.
	EventAgentProgress EventType = "agent_progress"
	// EventAgentCompleted marks successful completion of one plugin.
	EventAgentCompleted EventType = "agent_completed"
	// EventAgentFailed marks a failed plugin; Message carries the error.
	EventAgentFailed EventType = "agent_failed"
	// EventAgentSkipped marks an enabled plugin with no registered agent.
	EventAgentSkipped EventType = "agent_skipped"
	// EventAnalysisCompleted marks the end of the whole run.
	EventAnalysisCompleted EventType = "analysis_completed"
	// EventSectionUpdated marks a section rerun replacing a stored section.
	EventSectionUpdated EventType = "section_updated"
)

// AgentStatus is the per-plugin execution state carried on events:
// pending -> in_progress -> {completed | failed}, or skipped when no agent
// is registered.
type AgentStatus string

const (
	// AgentPending means execution has not started.
	AgentPending AgentStatus = "pending"
	// AgentInProgress means the agent is running.
	AgentInProgress AgentStatus = "in_progress"
	// AgentCompleted means the agent finished successfully.
	AgentCompleted AgentStatus = "completed"
	// AgentFailed means the agent raised an error.
	AgentFailed AgentStatus = "failed"
	// AgentSkipped means no agent was registered for the plugin.
	AgentSkipped AgentStatus = "skipped"
)

// NotificationEvent is the unit of progress reporting pushed to subscribers.
// Events are ephemeral: delivery is fire-and-forget and nothing is persisted
// or replayed.
type NotificationEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	AnalysisID string         `json:"analysis_id"`
	Framework  FrameworkID    `json:"framework,omitempty"`
	Status     AgentStatus    `json:"status,omitempty"`
	Progress   float64        `json:"progress"` // 0.0 - 100.0
	Message    string         `json:"message,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewNotificationEvent creates an event with id and UTC timestamp filled in.
func NewNotificationEvent(eventType EventType, analysisID string) NotificationEvent {
	return NotificationEvent{
		ID:         NewID(),
		Type:       eventType,
		AnalysisID: analysisID,
		Timestamp:  time.Now().UTC(),
	}
}

// NewID generates a unique identifier for events and documents.
func NewID() string { return uuid.NewString() }
