package sessioncontext

import (
	"context"
	"sync"
	"time"

	"github.com/evttree/eventstore/internal/eventkind"
	"github.com/evttree/eventstore/internal/eventstore"
)

// turnState accumulates one agent turn's content so it can be flushed
// in the shapes the Event Store expects: a message.assistant for
// everything before the first tool execution, one tool.call/tool.result
// pair per tool, a message.user carrying the resulting tool_result
// blocks, and a second message.assistant for anything after.
type turnState struct {
	mu sync.Mutex

	number       int
	startedAt    time.Time
	preToolBlocks []eventkind.Block
	postToolBlocks []eventkind.Block
	toolResults  []eventkind.Block
	flushed      bool // pre-tool content already flushed this turn
	planMode     bool
	blockedTools []string
}

// StartTurn resets accumulation for a new turn.
func (c *Context) StartTurn() int {
	c.turn.mu.Lock()
	defer c.turn.mu.Unlock()
	c.turn.number++
	c.turn.startedAt = time.Now()
	c.turn.preToolBlocks = nil
	c.turn.postToolBlocks = nil
	c.turn.toolResults = nil
	c.turn.flushed = false
	return c.turn.number
}

// AddTextDelta accumulates a text or thinking delta into the turn's
// current (pre- or post-tool) block list.
func (c *Context) AddTextDelta(block eventkind.Block) {
	c.turn.mu.Lock()
	defer c.turn.mu.Unlock()
	if c.turn.flushed {
		c.turn.postToolBlocks = append(c.turn.postToolBlocks, block)
	} else {
		c.turn.preToolBlocks = append(c.turn.preToolBlocks, block)
	}
}

// AddToolUse records a tool_use intent block in the current turn's
// pre-tool accumulation (tool_use blocks always precede the execution
// they describe).
func (c *Context) AddToolUse(block eventkind.Block) {
	c.turn.mu.Lock()
	defer c.turn.mu.Unlock()
	c.turn.preToolBlocks = append(c.turn.preToolBlocks, block)
}

// FlushPreTool emits the accumulated pre-tool content as a
// message.assistant on the first tool execution of the turn. Subsequent
// calls within the same turn are no-ops.
func (c *Context) FlushPreTool(ctx context.Context, model string) (*eventstore.Event, error) {
	c.turn.mu.Lock()
	if c.turn.flushed {
		c.turn.mu.Unlock()
		return nil, nil
	}
	blocks := c.turn.preToolBlocks
	turn := c.turn.number
	c.turn.flushed = true
	c.turn.preToolBlocks = nil
	c.turn.mu.Unlock()

	payload, err := eventkind.Encode(eventkind.MessageAssistantPayload{
		Content: blocks, Turn: turn, Model: model, StopReason: "tool_use",
	})
	if err != nil {
		return nil, err
	}
	return c.Append(ctx, eventkind.MessageAssistant, payload)
}

// RecordToolCall appends one tool.call event.
func (c *Context) RecordToolCall(ctx context.Context, toolCallID, name string, args map[string]any) (*eventstore.Event, error) {
	c.turn.mu.Lock()
	turn := c.turn.number
	c.turn.mu.Unlock()

	payload, err := eventkind.Encode(eventkind.ToolCallPayload{
		ToolCallID: toolCallID, Name: name, Arguments: args, Turn: turn,
	})
	if err != nil {
		return nil, err
	}
	return c.Append(ctx, eventkind.ToolCall, payload)
}

// RecordToolResult appends one tool.result event and queues its
// tool_result content block for the turn's post-tool message.user.
func (c *Context) RecordToolResult(ctx context.Context, result eventkind.ToolResultPayload) (*eventstore.Event, error) {
	result = eventkind.TruncateToolResult(result)
	payload, err := eventkind.Encode(result)
	if err != nil {
		return nil, err
	}
	evt, err := c.Append(ctx, eventkind.ToolResult, payload)
	if err != nil {
		return evt, err
	}

	c.turn.mu.Lock()
	c.turn.toolResults = append(c.turn.toolResults, eventkind.Block{
		Type: "tool_result", ToolCallID: result.ToolCallID, Content: result.Content, IsError: result.IsError,
	})
	c.turn.mu.Unlock()
	return evt, nil
}

// EndTurn flushes the turn's remaining content: a message.user carrying
// any queued tool_result blocks, then a closing message.assistant with
// the given stop reason. When no tool ever executed this turn,
// FlushPreTool never ran, so the closing message carries the
// accumulated pre-tool blocks (the turn's entire reply); when a tool
// did execute, FlushPreTool already emitted those as their own
// message.assistant and this closing message carries whatever
// accumulated afterward.
func (c *Context) EndTurn(ctx context.Context, model, stopReason string) error {
	c.turn.mu.Lock()
	toolResults := c.turn.toolResults
	closingBlocks := c.turn.postToolBlocks
	if !c.turn.flushed {
		closingBlocks = c.turn.preToolBlocks
	}
	turn := c.turn.number
	c.turn.mu.Unlock()

	if len(toolResults) > 0 {
		contentJSON, err := eventkind.Encode(toolResults)
		if err != nil {
			return err
		}
		payload, err := eventkind.Encode(eventkind.MessageUserPayload{Content: contentJSON})
		if err != nil {
			return err
		}
		if _, err := c.Append(ctx, eventkind.MessageUser, payload); err != nil {
			return err
		}
	}

	if len(closingBlocks) > 0 || stopReason == "end_turn" {
		payload, err := eventkind.Encode(eventkind.MessageAssistantPayload{
			Content: closingBlocks, Turn: turn, Model: model, StopReason: stopReason,
		})
		if err != nil {
			return err
		}
		if _, err := c.Append(ctx, eventkind.MessageAssistant, payload); err != nil {
			return err
		}
	}

	payload, err := eventkind.Encode(eventkind.StreamTurnEndPayload{Turn: turn})
	if err != nil {
		return err
	}
	_, err = c.Append(ctx, eventkind.StreamTurnEnd, payload)
	return err
}

// Interrupt composes whatever partial content was accumulated into an
// interrupted assistant message and a tool_result user message, appends
// notification.interrupted, and persists the session's interruption
// flag.
func (c *Context) Interrupt(ctx context.Context, model string, store *eventstore.Store, sessionID string) error {
	c.turn.mu.Lock()
	pending := append(append([]eventkind.Block{}, c.turn.preToolBlocks...), c.turn.postToolBlocks...)
	toolResults := c.turn.toolResults
	turn := c.turn.number
	c.turn.mu.Unlock()

	if len(pending) > 0 {
		payload, err := eventkind.Encode(eventkind.MessageAssistantPayload{
			Content: pending, Turn: turn, Model: model, StopReason: "interrupted", Interrupted: true,
		})
		if err != nil {
			return err
		}
		if _, err := c.Append(ctx, eventkind.MessageAssistant, payload); err != nil {
			return err
		}
	}

	if len(toolResults) > 0 {
		contentJSON, err := eventkind.Encode(toolResults)
		if err != nil {
			return err
		}
		payload, err := eventkind.Encode(eventkind.MessageUserPayload{Content: contentJSON})
		if err != nil {
			return err
		}
		if _, err := c.Append(ctx, eventkind.MessageUser, payload); err != nil {
			return err
		}
	}

	notifPayload, err := eventkind.Encode(eventkind.NotificationInterruptedPayload{})
	if err != nil {
		return err
	}
	if _, err := c.Append(ctx, eventkind.NotificationInterrupted, notifPayload); err != nil {
		return err
	}

	return store.SetWasInterrupted(ctx, sessionID)
}

// EnterPlanMode appends plan.mode_entered and updates local state.
func (c *Context) EnterPlanMode(ctx context.Context, blockedTools []string) error {
	c.turn.mu.Lock()
	c.turn.planMode = true
	c.turn.blockedTools = blockedTools
	c.turn.mu.Unlock()

	payload, err := eventkind.Encode(eventkind.PlanModePayload{BlockedTools: blockedTools})
	if err != nil {
		return err
	}
	_, err = c.Append(ctx, eventkind.PlanModeEntered, payload)
	return err
}

// ExitPlanMode appends plan.mode_exited and clears local state.
func (c *Context) ExitPlanMode(ctx context.Context) error {
	c.turn.mu.Lock()
	c.turn.planMode = false
	c.turn.blockedTools = nil
	c.turn.mu.Unlock()

	payload, err := eventkind.Encode(eventkind.PlanModePayload{})
	if err != nil {
		return err
	}
	_, err = c.Append(ctx, eventkind.PlanModeExited, payload)
	return err
}

// IsToolBlocked reports whether name is blocked by the current plan-mode
// state.
func (c *Context) IsToolBlocked(name string) bool {
	c.turn.mu.Lock()
	defer c.turn.mu.Unlock()
	if !c.turn.planMode {
		return false
	}
	for _, t := range c.turn.blockedTools {
		if t == name {
			return true
		}
	}
	return false
}
