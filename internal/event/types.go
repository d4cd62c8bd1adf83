package event

import "github.com/evttree/eventstore/internal/eventkind"

// EventNewData is the payload of an EventNew notification: one per
// successful append, carrying the committed event's essentials.
type EventNewData struct {
	SessionID string         `json:"sessionId"`
	EventID   string         `json:"eventId"`
	Kind      eventkind.Kind `json:"kind"`
}

// AgentTurnData reports a turn boundary (stream.turn_start/turn_end)
// for UI subscribers tracking live progress.
type AgentTurnData struct {
	SessionID string `json:"sessionId"`
	Turn      int    `json:"turn"`
	Started   bool   `json:"started"`
}

// TodosUpdatedData wraps a todo.write event for UI subscribers.
type TodosUpdatedData struct {
	SessionID string                `json:"sessionId"`
	Todos     []eventkind.TodoItem  `json:"todos"`
}

// ContextClearedData wraps a context.cleared event.
type ContextClearedData struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}

// CompactionCompleteData wraps a compact.summary event.
type CompactionCompleteData struct {
	SessionID string `json:"sessionId"`
	Summary   string `json:"summary"`
}

// PlanModeData wraps plan.mode_entered / plan.mode_exited events.
type PlanModeData struct {
	SessionID    string   `json:"sessionId"`
	BlockedTools []string `json:"blockedTools,omitempty"`
}

// ErrorPersistenceData reports an error returned by an append (a
// PersistenceError or a domain error such as SessionEnded), so UI
// subscribers can show a degraded-state banner without blocking the
// append path itself.
type ErrorPersistenceData struct {
	SessionID string `json:"sessionId"`
	Error     string `json:"error"`
}
