package eventstore_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/evttree/eventstore/internal/eventkind"
	"github.com/evttree/eventstore/internal/eventstore"
	"github.com/evttree/eventstore/internal/store"
)

// This suite exercises the reachable-state invariants and boundary
// behaviors spec'd for the Event Store (spec.md §8) as Ginkgo specs —
// the teacher reaches for ginkgo/gomega for its own provider property
// suites (internal/provider/ark_ginkgo_test.go); the same shape fits
// these store-level invariants naturally.
func TestEventstoreInvariants(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Eventstore Invariants Suite")
}

func openStore() *eventstore.Store {
	db, err := store.Open(context.Background(), store.DefaultConfig(":memory:"))
	Expect(err).NotTo(HaveOccurred())
	return eventstore.New(db)
}

func encode(v any) []byte {
	b, err := eventkind.Encode(v)
	Expect(err).NotTo(HaveOccurred())
	return b
}

func appendUser(s *eventstore.Store, sessionID, text string) *eventstore.Event {
	evt, err := s.Append(context.Background(), eventstore.AppendInput{
		SessionID: sessionID,
		Kind:      eventkind.MessageUser,
		Payload:   encode(eventkind.MessageUserPayload{Content: encode(text)}),
	})
	Expect(err).NotTo(HaveOccurred())
	return evt
}

var _ = Describe("Event Store invariants", func() {
	var (
		ctx context.Context
		s   *eventstore.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = openStore()
	})

	Describe("head and ancestor invariants", func() {
		It("points head at root for a freshly created session", func() {
			sess, root, err := s.CreateSession(ctx, "/p", "/p", "M", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(sess.HeadEventID).To(Equal(root.ID))
			Expect(sess.RootEventID).To(Equal(root.ID))
		})

		It("keeps ancestor chain sequence numbers strictly increasing root-to-head", func() {
			sess, _, err := s.CreateSession(ctx, "/p", "/p", "M", nil, nil)
			Expect(err).NotTo(HaveOccurred())

			var last *eventstore.Event
			for i := 0; i < 10; i++ {
				last = appendUser(s, sess.ID, "msg")
			}

			ancestors, err := s.GetAncestors(ctx, last.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ancestors).To(HaveLen(11))
			for i := 1; i < len(ancestors); i++ {
				Expect(ancestors[i].Sequence).To(BeNumerically(">", ancestors[i-1].Sequence))
			}
		})

		It("returns exactly one ancestor for a non-forked session's root", func() {
			sess, root, err := s.CreateSession(ctx, "/p", "/p", "M", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			ancestors, err := s.GetAncestors(ctx, sess.RootEventID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ancestors).To(HaveLen(1))
			Expect(ancestors[0].ID).To(Equal(root.ID))
		})

		It("starts every ancestor chain with a session.start or session.fork event", func() {
			sess, _, err := s.CreateSession(ctx, "/p", "/p", "M", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			head := appendUser(s, sess.ID, "hi")

			ancestors, err := s.GetAncestors(ctx, head.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ancestors[0].Kind).To(BeElementOf(eventkind.SessionStart, eventkind.SessionFork))
		})
	})

	Describe("counters", func() {
		It("keeps event_count equal to the number of events in the session", func() {
			sess, _, err := s.CreateSession(ctx, "/p", "/p", "M", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i < 5; i++ {
				appendUser(s, sess.ID, "msg")
			}
			updated, err := s.GetSession(ctx, sess.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.EventCount).To(Equal(6)) // root + 5
		})

		It("excludes tombstoned messages from message_count", func() {
			sess, _, err := s.CreateSession(ctx, "/p", "/p", "M", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			a := appendUser(s, sess.ID, "A")
			appendUser(s, sess.ID, "B")

			_, err = s.DeleteMessage(ctx, sess.ID, a.ID, nil)
			Expect(err).NotTo(HaveOccurred())

			updated, err := s.GetSession(ctx, sess.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.MessageCount).To(Equal(1))
		})

		It("is idempotent under a repeated tombstone for the same target", func() {
			sess, _, err := s.CreateSession(ctx, "/p", "/p", "M", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			a := appendUser(s, sess.ID, "A")

			_, err = s.DeleteMessage(ctx, sess.ID, a.ID, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.DeleteMessage(ctx, sess.ID, a.ID, nil)
			Expect(err).NotTo(HaveOccurred())

			msgs, err := s.GetMessagesAtHead(ctx, sess.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(BeEmpty())
		})
	})

	Describe("boundary behaviors", func() {
		It("rejects append to an ended session", func() {
			sess, _, err := s.CreateSession(ctx, "/p", "/p", "M", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.EndSession(ctx, sess.ID)).To(Succeed())

			_, err = s.Append(ctx, eventstore.AppendInput{
				SessionID: sess.ID, Kind: eventkind.MessageUser,
				Payload: encode(eventkind.MessageUserPayload{Content: encode("x")}),
			})
			Expect(err).To(HaveOccurred())
			var sessionEnded *eventstore.SessionEndedError
			Expect(err).To(BeAssignableToTypeOf(sessionEnded))
		})

		It("returns empty results searching a nonexistent workspace", func() {
			results, err := s.Search(ctx, "anything", eventstore.SearchOptions{WorkspaceID: "ws_missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("returns 51 ancestors for a 50-event-deep chain's tail", func() {
			sess, _, err := s.CreateSession(ctx, "/p", "/p", "M", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			var tail *eventstore.Event
			for i := 0; i < 50; i++ {
				tail = appendUser(s, sess.ID, "msg")
			}
			ancestors, err := s.GetAncestors(ctx, tail.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ancestors).To(HaveLen(51))
		})
	})

	Describe("fork semantics", func() {
		It("makes the forked session's root's parent belong to the source session", func() {
			sess, _, err := s.CreateSession(ctx, "/p", "/p", "M", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			point := appendUser(s, sess.ID, "hi")

			forkSess, forkRoot, err := s.Fork(ctx, point.ID, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(forkSess.ForkedFromSessionID).NotTo(BeNil())
			Expect(*forkSess.ForkedFromSessionID).To(Equal(sess.ID))
			Expect(*forkRoot.ParentID).To(Equal(point.ID))
		})

		It("reconstructs identical state at the fork root and the fork point", func() {
			sess, _, err := s.CreateSession(ctx, "/p", "/p", "M", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			appendUser(s, sess.ID, "hi")
			point := appendUser(s, sess.ID, "again")

			_, forkRoot, err := s.Fork(ctx, point.ID, nil)
			Expect(err).NotTo(HaveOccurred())

			atFork, err := s.GetStateAt(ctx, forkRoot.ID)
			Expect(err).NotTo(HaveOccurred())
			atPoint, err := s.GetStateAt(ctx, point.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(atFork.Messages).To(Equal(atPoint.Messages))
		})
	})
})
