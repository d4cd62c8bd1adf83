/*
Package event provides the broadcast bus the Orchestrator dispatches
committed events to. Delivery is best-effort: a subscriber that is not
listening when a notification fires simply misses it, and is expected
to catch up by reading the Event Store directly rather than rely on
the bus for durability.

# Architecture

The bus is built on watermill's gochannel for infrastructure while
keeping direct-call semantics so subscriber callbacks see typed Go
values rather than serialized envelopes.

# Topics

  - event_new: one per successful append, carrying an EventNewData
    (session id, event id, kind)
  - agent_event, agent_turn, browser.frame, todos_updated,
    context_cleared, compaction_completed, plan.mode_entered,
    plan.mode_exited: UI-facing wrappers over store-state changes;
    nothing in this module publishes them
  - error.persistence: any error returned by an append, published
    without blocking the append path that produced it

# Basic usage

	bus := event.New()
	defer bus.Close()

	unsubscribe := bus.Subscribe(event.EventNew, func(n event.Notification) {
		data := n.Data.(event.EventNewData)
		log.Info("event appended", "id", data.EventID)
	})
	defer unsubscribe()

	bus.Publish(event.Notification{Topic: event.EventNew, Data: data})

# Subscriber safety

Subscribers run in their own goroutine under Publish (PublishSync runs
them in the caller's goroutine instead, for tests that need delivery
before asserting). They must not call Publish/PublishSync re-entrantly
and should not block on unbuffered channels.
*/
package event
