package eventkind

import "encoding/json"

// Block is a content block inside a message.user or message.assistant
// payload: {type: "text"|"image"|"document"|"tool_result", ...} for user
// messages, {type: "text"|"thinking"|"tool_use", ...} for assistant ones.
type Block struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	Thinking string `json:"thinking,omitempty"`

	// tool_use
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result
	ToolCallID string `json:"toolCallId,omitempty"`
	Content    string `json:"content,omitempty"`
	IsError    bool   `json:"isError,omitempty"`

	// image / document
	MediaType string `json:"mediaType,omitempty"`
	URL       string `json:"url,omitempty"`
}

// TokenUsage mirrors the teacher's pkg/types.TokenUsage, generalized with
// a cache read/write split as spec.md's cumulative usage requires.
type TokenUsage struct {
	Input     int `json:"input"`
	Output    int `json:"output"`
	Reasoning int `json:"reasoning,omitempty"`
	CacheRead int `json:"cacheRead,omitempty"`
	CacheWrite int `json:"cacheWrite,omitempty"`
}

type SessionStartPayload struct {
	WorkingDirectory string  `json:"workingDirectory"`
	Model            string  `json:"model"`
	Title            *string `json:"title,omitempty"`
}

type SessionForkPayload struct {
	ForkedFromSessionID string  `json:"forkedFromSessionId"`
	ForkedFromEventID   string  `json:"forkedFromEventId"`
	Name                *string `json:"name,omitempty"`
}

type SessionEndPayload struct {
	Reason       string      `json:"reason"`
	Summary      *string     `json:"summary,omitempty"`
	MessageCount int         `json:"messageCount"`
	TokenUsage   *TokenUsage `json:"tokenUsage,omitempty"`
}

// MessageUserPayload's Content is either a bare string or []Block; callers
// use ContentBlocks() to normalize either shape.
type MessageUserPayload struct {
	Content json.RawMessage `json:"content"`
	Skills  []string        `json:"skills,omitempty"`
	Spells  []string        `json:"spells,omitempty"`
}

// ContentBlocks normalizes Content into a block slice whether it was
// stored as a plain string or an array of blocks.
func (p MessageUserPayload) ContentBlocks() []Block {
	var s string
	if err := json.Unmarshal(p.Content, &s); err == nil {
		return []Block{{Type: "text", Text: s}}
	}
	var blocks []Block
	if err := json.Unmarshal(p.Content, &blocks); err == nil {
		return blocks
	}
	return nil
}

type MessageAssistantPayload struct {
	Content         []Block     `json:"content"`
	TokenUsage      TokenUsage  `json:"tokenUsage"`
	NormalizedUsage *TokenUsage `json:"normalizedUsage,omitempty"`
	Turn            int         `json:"turn"`
	Model           string      `json:"model"`
	StopReason      string      `json:"stopReason"`
	LatencyMs       *int64      `json:"latency,omitempty"`
	HasThinking     bool        `json:"hasThinking"`
	Interrupted     bool        `json:"interrupted,omitempty"`
}

type MessageDeletedPayload struct {
	TargetEventID string  `json:"targetEventId"`
	Reason        *string `json:"reason,omitempty"`
}

type ToolCallPayload struct {
	ToolCallID string         `json:"toolCallId"`
	Name       string         `json:"name"`
	Arguments  map[string]any `json:"arguments"`
	Turn       int            `json:"turn"`
}

// MaxToolResultContentBytes is the truncation threshold for tool.result
// content, recorded via the `Truncated` flag when exceeded.
const MaxToolResultContentBytes = 1 << 20 // 1 MiB

type ToolResultPayload struct {
	ToolCallID    string   `json:"toolCallId"`
	Content       string   `json:"content"`
	IsError       bool     `json:"isError"`
	DurationMs    *int64   `json:"duration,omitempty"`
	Truncated     bool     `json:"truncated,omitempty"`
	AffectedFiles []string `json:"affectedFiles,omitempty"`
}

// TruncateToolResult enforces MaxToolResultContentBytes, setting Truncated
// when the content had to be cut.
func TruncateToolResult(p ToolResultPayload) ToolResultPayload {
	if len(p.Content) <= MaxToolResultContentBytes {
		return p
	}
	p.Content = p.Content[:MaxToolResultContentBytes]
	p.Truncated = true
	return p
}

type ErrorAgentPayload struct {
	Error       string  `json:"error"`
	Code        *string `json:"code,omitempty"`
	Recoverable bool    `json:"recoverable"`
}

type ErrorProviderPayload struct {
	Provider   string  `json:"provider"`
	Error      string  `json:"error"`
	Code       *string `json:"code,omitempty"`
	Retryable  bool    `json:"retryable"`
	RetryAfter *int64  `json:"retryAfter,omitempty"`
}

type StreamTurnStartPayload struct {
	Turn int `json:"turn"`
}

type StreamTurnEndPayload struct {
	Turn       int        `json:"turn"`
	TokenUsage TokenUsage `json:"tokenUsage"`
}

type ConfigModelSwitchPayload struct {
	PreviousModel string `json:"previousModel"`
	NewModel      string `json:"newModel"`
}

type ConfigReasoningLevelPayload struct {
	PreviousLevel string `json:"previousLevel"`
	NewLevel      string `json:"newLevel"`
}

type ContextClearedPayload struct {
	TokensBefore int    `json:"tokensBefore"`
	TokensAfter  int    `json:"tokensAfter"`
	Reason       string `json:"reason"`
}

type CompactBoundaryPayload struct {
	OriginalTokens    int     `json:"originalTokens"`
	CompactedTokens   int     `json:"compactedTokens"`
	CompressionRatio  float64 `json:"compressionRatio"`
	Reason            string  `json:"reason"`
	Summary           string  `json:"summary"`
}

type CompactSummaryPayload struct {
	Summary      string   `json:"summary"`
	KeyDecisions []string `json:"keyDecisions,omitempty"`
	FilesModified []string `json:"filesModified,omitempty"`
}

type SkillChangedPayload struct {
	Skill string `json:"skill"`
}

type PlanModePayload struct {
	BlockedTools []string `json:"blockedTools,omitempty"`
}

type TodoItem struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Status   string `json:"status"` // "pending" | "in_progress" | "completed"
	Priority string `json:"priority,omitempty"`
}

type TodoWritePayload struct {
	Todos []TodoItem `json:"todos"`
}

type NotificationInterruptedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// Decode unmarshals a raw event payload into dst, which should be a
// pointer to the struct matching the event's Kind.
func Decode(raw json.RawMessage, dst any) error {
	return json.Unmarshal(raw, dst)
}

// Encode marshals a typed payload value into the raw bytes the Persistent
// Store's events.payload column stores.
func Encode(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}
