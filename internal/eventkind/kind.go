// Package eventkind defines the closed set of event kinds recorded by the
// event store and the typed payload shapes associated with each kind.
package eventkind

// Kind identifies the type of an event. The set is closed: every kind the
// core records is one of the constants below. Reconstruction folds a
// subset of them and ignores the rest; the store does not validate kinds.
type Kind string

const (
	// Lifecycle
	SessionStart Kind = "session.start"
	SessionEnd   Kind = "session.end"
	SessionFork  Kind = "session.fork"

	// Conversation
	MessageUser      Kind = "message.user"
	MessageAssistant Kind = "message.assistant"
	MessageDeleted   Kind = "message.deleted"

	// Tooling
	ToolCall  Kind = "tool.call"
	ToolResult Kind = "tool.result"
	ErrorTool Kind = "error.tool"

	// Stream boundaries
	StreamTurnStart Kind = "stream.turn_start"
	StreamTurnEnd   Kind = "stream.turn_end"

	// Errors
	ErrorAgent    Kind = "error.agent"
	ErrorProvider Kind = "error.provider"

	// Config
	ConfigModelSwitch     Kind = "config.model_switch"
	ConfigReasoningLevel  Kind = "config.reasoning_level"

	// Context lifecycle
	ContextCleared  Kind = "context.cleared"
	CompactBoundary Kind = "compact.boundary"
	CompactSummary  Kind = "compact.summary"

	// Extensions (tracked, not reconstructed as messages)
	SkillAdded            Kind = "skill.added"
	SkillRemoved          Kind = "skill.removed"
	PlanModeEntered       Kind = "plan.mode_entered"
	PlanModeExited        Kind = "plan.mode_exited"
	TodoWrite             Kind = "todo.write"
	NotificationInterrupted Kind = "notification.interrupted"

	// Worktree (opaque to core)
	WorktreeAcquired Kind = "worktree.acquired"
	WorktreeCommit   Kind = "worktree.commit"
	WorktreeReleased Kind = "worktree.released"
	WorktreeMerged   Kind = "worktree.merged"
)

// MessageKinds that count toward a session's message_count when not
// tombstoned (spec invariant 5).
func IsMessageKind(k Kind) bool {
	return k == MessageUser || k == MessageAssistant
}
