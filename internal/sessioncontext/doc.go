/*
Package sessioncontext implements the Session Context: the per-session
append linearization core that prevents concurrent callers from
branching a session's head.

It generalizes the teacher's session.Processor/sessionState
single-flight-with-waiters pattern (one in-flight operation per
session, later callers queued as waiters) from "one agentic loop at a
time" into a continuously-running single-consumer work queue: every
append for a session passes through one goroutine that holds the
"pending head" — the id of the most recently committed event of this
Context — and runs the queued appends one at a time, so a burst of
concurrent Append calls still forms a straight chain.

# Append chain

Each Append:

 1. enqueues a job carrying the event's kind and payload;
 2. the chain goroutine assigns the job's parent from the current
    pending head, calls the Event Store's Append, and on success
    advances the pending head to the newly committed event id;
 3. on failure, the pending head is left unchanged, so the next job
    chains from the same parent A would have used.

AppendAsync enqueues the same way but returns immediately; the caller
gets the committed event (or error) through an optional callback
instead of blocking. Flush waits for the chain to drain, giving callers
read-after-write visibility before reading from the Event Store.

# Turn state

StartTurn/AddTextDelta/AddToolUse/FlushPreTool/RecordToolCall/
RecordToolResult/EndTurn implement the pre-tool content flush contract:
one message.assistant for everything before the first tool execution,
one tool.call/tool.result pair per tool, one message.user carrying the
tool_result blocks, and a second message.assistant for whatever text
followed. Interrupt composes the same accumulated state into an
interrupted turn and appends notification.interrupted.
*/
package sessioncontext
