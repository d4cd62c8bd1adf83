package eventstore

import (
	"context"

	"github.com/evttree/eventstore/internal/eventkind"
)

// GetStateAt reconstructs the full session state visible at eventID,
// following the two-pass algorithm: gather the ancestor chain (crossing
// fork links), then fold it root-to-descendant.
func (s *Store) GetStateAt(ctx context.Context, eventID string) (*SessionState, error) {
	chain, err := s.GetAncestors(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return foldState(chain), nil
}

// GetMessagesAt returns just the message list component of GetStateAt.
func (s *Store) GetMessagesAt(ctx context.Context, eventID string) ([]Message, error) {
	state, err := s.GetStateAt(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return state.Messages, nil
}

// GetStateAtHead reconstructs state at the session's current head.
func (s *Store) GetStateAtHead(ctx context.Context, sessionID string) (*SessionState, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.GetStateAt(ctx, sess.HeadEventID)
}

// GetMessagesAtHead returns the message list at the session's current head.
func (s *Store) GetMessagesAtHead(ctx context.Context, sessionID string) ([]Message, error) {
	state, err := s.GetStateAtHead(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return state.Messages, nil
}

// foldState implements reconstruction pass 2: scan root-to-descendant,
// folding each event kind into accumulated state. Deterministic for a
// fixed chain: repeated folds of the same events produce identical
// output.
func foldState(chain []*Event) *SessionState {
	deleted := make(map[string]bool)
	for _, evt := range chain {
		if evt.Kind == eventkind.MessageDeleted {
			var p eventkind.MessageDeletedPayload
			if eventkind.Decode(evt.Payload, &p) == nil {
				deleted[p.TargetEventID] = true
			}
		}
	}

	state := &SessionState{}

	for _, evt := range chain {
		switch evt.Kind {
		case eventkind.SessionStart:
			var p eventkind.SessionStartPayload
			if eventkind.Decode(evt.Payload, &p) == nil {
				state.Model = p.Model
				state.WorkingDirectory = p.WorkingDirectory
			}
		case eventkind.SessionFork:
			// Model/working directory were already folded from the
			// parent-session portion of the chain; nothing to record
			// at the fork boundary itself.
		case eventkind.MessageUser:
			if deleted[evt.ID] {
				continue
			}
			var p eventkind.MessageUserPayload
			if eventkind.Decode(evt.Payload, &p) == nil {
				state.Messages = append(state.Messages, Message{
					EventID: evt.ID, Role: "user", Blocks: p.ContentBlocks(),
				})
			}
		case eventkind.MessageAssistant:
			if deleted[evt.ID] {
				continue
			}
			var p eventkind.MessageAssistantPayload
			if eventkind.Decode(evt.Payload, &p) == nil {
				usage := p.TokenUsage
				state.Messages = append(state.Messages, Message{
					EventID: evt.ID, Role: "assistant", Blocks: p.Content, TokenUsage: &usage,
				})
			}
		case eventkind.ConfigModelSwitch:
			var p eventkind.ConfigModelSwitchPayload
			if eventkind.Decode(evt.Payload, &p) == nil {
				state.Model = p.NewModel
			}
		case eventkind.ConfigReasoningLevel:
			var p eventkind.ConfigReasoningLevelPayload
			if eventkind.Decode(evt.Payload, &p) == nil {
				state.ReasoningLevel = p.NewLevel
			}
		case eventkind.ContextCleared:
			state.Messages = nil
		case eventkind.CompactBoundary:
			// Marker only; the synthesized message comes from the
			// compact.summary event that follows it.
		case eventkind.CompactSummary:
			var p eventkind.CompactSummaryPayload
			if eventkind.Decode(evt.Payload, &p) == nil {
				state.Messages = []Message{{
					Role:   "user",
					Blocks: []eventkind.Block{{Type: "text", Text: p.Summary}},
				}}
			}
		case eventkind.PlanModeEntered:
			state.PlanMode = true
			var p eventkind.PlanModePayload
			if eventkind.Decode(evt.Payload, &p) == nil {
				state.BlockedTools = p.BlockedTools
			}
		case eventkind.PlanModeExited:
			state.PlanMode = false
			state.BlockedTools = nil
		case eventkind.SkillAdded:
			var p eventkind.SkillChangedPayload
			if eventkind.Decode(evt.Payload, &p) == nil {
				state.Skills = appendUnique(state.Skills, p.Skill)
			}
		case eventkind.SkillRemoved:
			var p eventkind.SkillChangedPayload
			if eventkind.Decode(evt.Payload, &p) == nil {
				state.Skills = removeString(state.Skills, p.Skill)
			}
		case eventkind.TodoWrite:
			var p eventkind.TodoWritePayload
			if eventkind.Decode(evt.Payload, &p) == nil {
				state.Todos = p.Todos
			}
		default:
			// tool.call/tool.result, stream boundaries, errors,
			// notifications, worktree events: ignored by reconstruction.
		}
	}

	return state
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, existing := range list {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
