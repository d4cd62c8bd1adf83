package sessioncontext

import (
	"context"
	"sync"

	"github.com/evttree/eventstore/internal/event"
	"github.com/evttree/eventstore/internal/eventkind"
	"github.com/evttree/eventstore/internal/eventstore"
	"github.com/evttree/eventstore/internal/logging"
)

// appendJob is one unit of work submitted to a Context's chain
// goroutine. A barrier job touches no storage: it exists only so Flush
// can observe that every job ahead of it in the queue has drained.
type appendJob struct {
	barrier  bool
	kind     eventkind.Kind
	payload  []byte
	resultCh chan appendResult
	callback func(*eventstore.Event, error)
}

type appendResult struct {
	event *eventstore.Event
	err   error
}

// Context is the Session Context for one active session: it serializes
// every append behind a single chain goroutine and tracks turn state.
type Context struct {
	sessionID string
	store     *eventstore.Store
	bus       *event.Bus

	jobs   chan appendJob
	done   chan struct{}
	closed sync.Once

	headMu      sync.Mutex
	pendingHead string

	turn turnState
}

// New starts a Session Context for sessionID whose pending head begins
// at headEventID (the session's stored head_event_id on activation).
func New(sessionID string, headEventID string, store *eventstore.Store, bus *event.Bus) *Context {
	c := &Context{
		sessionID:   sessionID,
		store:       store,
		bus:         bus,
		jobs:        make(chan appendJob, 256),
		done:        make(chan struct{}),
		pendingHead: headEventID,
	}
	go c.run()
	return c
}

// run is the chain goroutine: the single consumer that gives every
// append for this session a total order.
func (c *Context) run() {
	defer close(c.done)
	for job := range c.jobs {
		if job.barrier {
			if job.resultCh != nil {
				job.resultCh <- appendResult{}
			}
			continue
		}

		parent := c.currentPendingHead()
		evt, err := c.store.Append(context.Background(), eventstore.AppendInput{
			SessionID: c.sessionID,
			Kind:      job.kind,
			Payload:   job.payload,
			ParentID:  &parent,
		})

		if err == nil {
			c.setPendingHead(evt.ID)
			c.bus.Publish(event.Notification{
				Topic: event.EventNew,
				Data:  event.EventNewData{SessionID: c.sessionID, EventID: evt.ID, Kind: job.kind},
			})
		} else {
			logging.Component("sessioncontext").Warn().Str("session_id", c.sessionID).Str("kind", string(job.kind)).Err(err).
				Msg("append failed, chain continues from prior head")
			c.bus.Publish(event.Notification{
				Topic: event.ErrorPersistence,
				Data:  event.ErrorPersistenceData{SessionID: c.sessionID, Error: err.Error()},
			})
		}

		if job.resultCh != nil {
			job.resultCh <- appendResult{event: evt, err: err}
		}
		if job.callback != nil {
			job.callback(evt, err)
		}
	}
}

func (c *Context) currentPendingHead() string {
	c.headMu.Lock()
	defer c.headMu.Unlock()
	return c.pendingHead
}

func (c *Context) setPendingHead(id string) {
	c.headMu.Lock()
	c.pendingHead = id
	c.headMu.Unlock()
}

// Append enqueues kind/payload and blocks until it commits (or fails),
// chaining from whatever the pending head is at the moment it's
// dequeued.
func (c *Context) Append(ctx context.Context, kind eventkind.Kind, payload []byte) (*eventstore.Event, error) {
	result := make(chan appendResult, 1)
	job := appendJob{kind: kind, payload: payload, resultCh: result}

	select {
	case c.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-result:
		return r.event, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AppendAsync enqueues kind/payload and returns immediately; it is
// still fully linearized with every other call on this Context. If
// callback is non-nil it fires once the append resolves, from the
// chain goroutine.
func (c *Context) AppendAsync(kind eventkind.Kind, payload []byte, callback func(*eventstore.Event, error)) {
	c.jobs <- appendJob{kind: kind, payload: payload, callback: callback}
}

// Flush blocks until every job enqueued before this call has been
// processed, giving the caller read-after-write visibility into the
// Event Store.
func (c *Context) Flush(ctx context.Context) error {
	result := make(chan appendResult, 1)
	job := appendJob{barrier: true, resultCh: result}

	select {
	case c.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-result:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PendingHead returns the id the next append will chain from.
func (c *Context) PendingHead() string {
	return c.currentPendingHead()
}

// Close drains and stops the chain goroutine. Callers must Flush before
// Close if they need the final jobs' results.
func (c *Context) Close() {
	c.closed.Do(func() {
		close(c.jobs)
	})
	<-c.done
}
