package sessioncontext

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evttree/eventstore/internal/event"
	"github.com/evttree/eventstore/internal/eventkind"
	"github.com/evttree/eventstore/internal/eventstore"
	"github.com/evttree/eventstore/internal/store"
)

func newTestSession(t *testing.T) (*eventstore.Store, *eventstore.Session, *event.Bus) {
	t.Helper()
	db, err := store.Open(context.Background(), store.DefaultConfig(":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	es := eventstore.New(db)
	sess, _, err := es.CreateSession(context.Background(), t.TempDir(), "/work", "claude-x", nil, nil)
	require.NoError(t, err)

	bus := event.New()
	t.Cleanup(func() { bus.Close() })

	return es, sess, bus
}

func TestAppendChainsFromPendingHead(t *testing.T) {
	es, sess, bus := newTestSession(t)
	cc := New(sess.ID, sess.HeadEventID, es, bus)
	defer cc.Close()

	payload, _ := eventkind.Encode(eventkind.MessageUserPayload{Content: mustJSONString("hi")})
	evt1, err := cc.Append(context.Background(), eventkind.MessageUser, payload)
	require.NoError(t, err)
	require.Equal(t, sess.RootEventID, *evt1.ParentID)

	evt2, err := cc.Append(context.Background(), eventkind.MessageUser, payload)
	require.NoError(t, err)
	require.Equal(t, evt1.ID, *evt2.ParentID)
}

func TestAppendAsyncPreservesOrder(t *testing.T) {
	es, sess, bus := newTestSession(t)
	cc := New(sess.ID, sess.HeadEventID, es, bus)
	defer cc.Close()

	payload, _ := eventkind.Encode(eventkind.MessageUserPayload{Content: mustJSONString("hi")})

	results := make(chan *eventstore.Event, 2)
	cc.AppendAsync(eventkind.MessageUser, payload, func(e *eventstore.Event, err error) {
		require.NoError(t, err)
		results <- e
	})
	cc.AppendAsync(eventkind.MessageUser, payload, func(e *eventstore.Event, err error) {
		require.NoError(t, err)
		results <- e
	})

	require.NoError(t, cc.Flush(context.Background()))

	first := <-results
	second := <-results
	require.Equal(t, first.ID, *second.ParentID)
}

func TestFlushWaitsForQueuedWork(t *testing.T) {
	es, sess, bus := newTestSession(t)
	cc := New(sess.ID, sess.HeadEventID, es, bus)
	defer cc.Close()

	payload, _ := eventkind.Encode(eventkind.MessageUserPayload{Content: mustJSONString("hi")})
	cc.AppendAsync(eventkind.MessageUser, payload, nil)

	require.NoError(t, cc.Flush(context.Background()))

	msgs, err := es.GetMessagesAtHead(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

// TestConcurrentAppendsLinearize drives spec.md §8 scenario 5: 10
// concurrent callers submitting through one Session Context must still
// produce a single straight chain, each event's parent being its
// immediate predecessor in submission order.
func TestConcurrentAppendsLinearize(t *testing.T) {
	es, sess, bus := newTestSession(t)
	cc := New(sess.ID, sess.HeadEventID, es, bus)
	defer cc.Close()

	const n = 10
	var wg sync.WaitGroup
	results := make([]*eventstore.Event, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload, _ := eventkind.Encode(eventkind.MessageUserPayload{Content: mustJSONString("hi")})
			evt, err := cc.Append(context.Background(), eventkind.MessageUser, payload)
			require.NoError(t, err)
			results[i] = evt
		}(i)
	}
	wg.Wait()

	ancestors, err := es.GetAncestors(context.Background(), cc.PendingHead())
	require.NoError(t, err)
	require.Len(t, ancestors, n+1)
	require.Equal(t, sess.RootEventID, ancestors[0].ID)

	for i := 1; i < len(ancestors); i++ {
		require.NotNil(t, ancestors[i].ParentID)
		require.Equal(t, ancestors[i-1].ID, *ancestors[i].ParentID)
	}

	seen := make(map[string]bool, n)
	for _, evt := range results {
		require.NotNil(t, evt)
		seen[evt.ID] = true
	}
	require.Len(t, seen, n)
}

func TestEndTurnWithoutToolFlushesPreToolContent(t *testing.T) {
	es, sess, bus := newTestSession(t)
	cc := New(sess.ID, sess.HeadEventID, es, bus)
	defer cc.Close()
	ctx := context.Background()

	cc.StartTurn()
	cc.AddTextDelta(eventkind.Block{Type: "text", Text: "Hi"})

	require.NoError(t, cc.EndTurn(ctx, "claude-x", "end_turn"))

	msgs, err := es.GetMessagesAtHead(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "assistant", msgs[0].Role)
	require.Equal(t, "Hi", msgs[0].Blocks[0].Text)
}

func TestFlushPreToolClearsAccumulationBeforeInterrupt(t *testing.T) {
	es, sess, bus := newTestSession(t)
	cc := New(sess.ID, sess.HeadEventID, es, bus)
	defer cc.Close()
	ctx := context.Background()

	cc.StartTurn()
	cc.AddTextDelta(eventkind.Block{Type: "text", Text: "Let me "})
	cc.AddToolUse(eventkind.Block{Type: "tool_use", ID: "call1", Name: "read"})

	_, err := cc.FlushPreTool(ctx, "claude-x")
	require.NoError(t, err)

	cc.AddTextDelta(eventkind.Block{Type: "text", Text: "still working"})
	require.NoError(t, cc.Interrupt(ctx, "claude-x", es, sess.ID))

	msgs, err := es.GetMessagesAtHead(ctx, sess.ID)
	require.NoError(t, err)
	// assistant(flushed pre-tool) + assistant(interrupted, post-tool only)
	require.Equal(t, "assistant", msgs[0].Role)
	require.Len(t, msgs[0].Blocks, 2)
	require.Equal(t, "assistant", msgs[1].Role)
	require.Len(t, msgs[1].Blocks, 1)
	require.Equal(t, "still working", msgs[1].Blocks[0].Text)
}

func TestTurnFlushProducesExpectedShape(t *testing.T) {
	es, sess, bus := newTestSession(t)
	cc := New(sess.ID, sess.HeadEventID, es, bus)
	defer cc.Close()
	ctx := context.Background()

	cc.StartTurn()
	cc.AddTextDelta(eventkind.Block{Type: "text", Text: "thinking..."})
	cc.AddToolUse(eventkind.Block{Type: "tool_use", ID: "call1", Name: "read_file"})

	_, err := cc.FlushPreTool(ctx, "claude-x")
	require.NoError(t, err)

	_, err = cc.RecordToolCall(ctx, "call1", "read_file", map[string]any{"path": "a.go"})
	require.NoError(t, err)
	_, err = cc.RecordToolResult(ctx, eventkind.ToolResultPayload{ToolCallID: "call1", Content: "file contents"})
	require.NoError(t, err)

	require.NoError(t, cc.EndTurn(ctx, "claude-x", "end_turn"))

	msgs, err := es.GetMessagesAtHead(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, "assistant", msgs[0].Role)
	require.Equal(t, "user", msgs[1].Role)
	require.Equal(t, "tool_result", msgs[1].Blocks[0].Type)
}

func TestInterruptSetsWasInterrupted(t *testing.T) {
	es, sess, bus := newTestSession(t)
	cc := New(sess.ID, sess.HeadEventID, es, bus)
	defer cc.Close()
	ctx := context.Background()

	cc.StartTurn()
	cc.AddTextDelta(eventkind.Block{Type: "text", Text: "partial"})

	require.NoError(t, cc.Interrupt(ctx, "claude-x", es, sess.ID))

	updated, err := es.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, updated.WasInterrupted)
}

func mustJSONString(s string) []byte {
	b, _ := eventkind.Encode(s)
	return b
}
