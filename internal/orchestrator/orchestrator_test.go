package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evttree/eventstore/internal/event"
	"github.com/evttree/eventstore/internal/eventkind"
	"github.com/evttree/eventstore/internal/eventstore"
	"github.com/evttree/eventstore/internal/store"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	db, err := store.Open(context.Background(), store.DefaultConfig(":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	es := eventstore.New(db)
	bus := event.New()
	t.Cleanup(func() { bus.Close() })

	return New(es, bus)
}

func TestCreateSessionInstallsActive(t *testing.T) {
	orch := newTestOrchestrator(t)
	info, err := orch.CreateSession(context.Background(), CreateOptions{
		WorkspacePath: t.TempDir(), WorkingDirectory: "/work", Model: "claude-x",
	})
	require.NoError(t, err)
	require.Contains(t, orch.ActiveSessionIDs(), info.Session.ID)
}

func TestResumeEndedSessionFails(t *testing.T) {
	orch := newTestOrchestrator(t)
	info, err := orch.CreateSession(context.Background(), CreateOptions{
		WorkspacePath: t.TempDir(), WorkingDirectory: "/work", Model: "claude-x",
	})
	require.NoError(t, err)

	require.NoError(t, orch.EndSession(context.Background(), info.Session.ID, EndOptions{Reason: "done"}))

	_, err = orch.ResumeSession(context.Background(), info.Session.ID)
	require.ErrorAs(t, err, new(*eventstore.SessionEndedError))
}

func TestAppendEventRoutesThroughActiveContext(t *testing.T) {
	orch := newTestOrchestrator(t)
	info, err := orch.CreateSession(context.Background(), CreateOptions{
		WorkspacePath: t.TempDir(), WorkingDirectory: "/work", Model: "claude-x",
	})
	require.NoError(t, err)

	payload, err := eventkind.Encode(eventkind.MessageUserPayload{Content: mustJSON("hello")})
	require.NoError(t, err)

	evt, err := orch.AppendEvent(context.Background(), AppendOptions{
		SessionID: info.Session.ID, Kind: eventkind.MessageUser, Payload: payload,
	})
	require.NoError(t, err)
	require.Equal(t, info.Root.ID, *evt.ParentID)

	msgs, err := orch.GetSessionMessages(context.Background(), info.Session.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestForkSessionFromHead(t *testing.T) {
	orch := newTestOrchestrator(t)
	info, err := orch.CreateSession(context.Background(), CreateOptions{
		WorkspacePath: t.TempDir(), WorkingDirectory: "/work", Model: "claude-x",
	})
	require.NoError(t, err)

	payload, err := eventkind.Encode(eventkind.MessageUserPayload{Content: mustJSON("hello")})
	require.NoError(t, err)
	_, err = orch.AppendEvent(context.Background(), AppendOptions{
		SessionID: info.Session.ID, Kind: eventkind.MessageUser, Payload: payload,
	})
	require.NoError(t, err)

	forked, err := orch.ForkSession(context.Background(), info.Session.ID, "", nil)
	require.NoError(t, err)
	require.NotEqual(t, info.Session.ID, forked.Session.ID)
	require.NotContains(t, orch.ActiveSessionIDs(), forked.Session.ID)
}

func TestIdleSweepEndsStaleSessions(t *testing.T) {
	orch := newTestOrchestrator(t)
	info, err := orch.CreateSession(context.Background(), CreateOptions{
		WorkspacePath: t.TempDir(), WorkingDirectory: "/work", Model: "claude-x",
	})
	require.NoError(t, err)

	sw := NewSweeper(orch, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	ended := sw.SweepOnce(context.Background())
	require.Equal(t, 1, ended)
	require.NotContains(t, orch.ActiveSessionIDs(), info.Session.ID)

	sess, err := orch.store.GetSession(context.Background(), info.Session.ID)
	require.NoError(t, err)
	require.True(t, sess.Ended)
}

func mustJSON(s string) []byte {
	b, _ := eventkind.Encode(s)
	return b
}
