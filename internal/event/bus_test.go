package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBus_Subscribe(t *testing.T) {
	bus := New()
	defer bus.Close()

	var received Notification
	var wg sync.WaitGroup
	wg.Add(1)

	unsub := bus.Subscribe(EventNew, func(n Notification) {
		received = n
		wg.Done()
	})
	defer unsub()

	bus.Publish(Notification{Topic: EventNew, Data: "test-session"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if received.Topic != EventNew {
			t.Errorf("expected EventNew, got %v", received.Topic)
		}
		if received.Data != "test-session" {
			t.Errorf("expected 'test-session', got %v", received.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := New()
	defer bus.Close()

	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	unsub := bus.SubscribeAll(func(n Notification) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})
	defer unsub()

	bus.Publish(Notification{Topic: EventNew, Data: nil})
	bus.Publish(Notification{Topic: TodosUpdated, Data: nil})
	bus.Publish(Notification{Topic: ContextCleared, Data: nil})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if atomic.LoadInt32(&count) != 3 {
			t.Errorf("expected 3 notifications, got %d", count)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notifications")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	defer bus.Close()

	var count int32
	unsub := bus.Subscribe(EventNew, func(n Notification) {
		atomic.AddInt32(&count, 1)
	})

	bus.PublishSync(Notification{Topic: EventNew})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected 1 before unsub, got %d", count)
	}

	unsub()

	bus.PublishSync(Notification{Topic: EventNew})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected still 1 after unsub, got %d", count)
	}
}

func TestBus_UnsubscribeGlobal(t *testing.T) {
	bus := New()
	defer bus.Close()

	var count int32
	unsub := bus.SubscribeAll(func(n Notification) {
		atomic.AddInt32(&count, 1)
	})

	bus.PublishSync(Notification{Topic: EventNew})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected 1 before unsub, got %d", count)
	}

	unsub()

	bus.PublishSync(Notification{Topic: TodosUpdated})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected still 1 after unsub, got %d", count)
	}
}

func TestBus_PublishSync(t *testing.T) {
	bus := New()
	defer bus.Close()

	var received []Topic
	var mu sync.Mutex

	bus.Subscribe(EventNew, func(n Notification) {
		mu.Lock()
		received = append(received, n.Topic)
		mu.Unlock()
	})
	bus.Subscribe(AgentTurn, func(n Notification) {
		mu.Lock()
		received = append(received, n.Topic)
		mu.Unlock()
	})

	bus.PublishSync(Notification{Topic: EventNew})
	bus.PublishSync(Notification{Topic: AgentTurn})

	mu.Lock()
	if len(received) != 2 {
		t.Errorf("expected 2 notifications, got %d", len(received))
	}
	mu.Unlock()
}

func TestBus_TopicFiltering(t *testing.T) {
	bus := New()
	defer bus.Close()

	var eventCount, todoCount int32

	bus.Subscribe(EventNew, func(n Notification) {
		atomic.AddInt32(&eventCount, 1)
	})
	bus.Subscribe(TodosUpdated, func(n Notification) {
		atomic.AddInt32(&todoCount, 1)
	})

	bus.PublishSync(Notification{Topic: EventNew})
	bus.PublishSync(Notification{Topic: EventNew})
	bus.PublishSync(Notification{Topic: TodosUpdated})

	if atomic.LoadInt32(&eventCount) != 2 {
		t.Errorf("expected 2 EventNew notifications, got %d", eventCount)
	}
	if atomic.LoadInt32(&todoCount) != 1 {
		t.Errorf("expected 1 TodosUpdated notification, got %d", todoCount)
	}
}

func TestBus_NoSubscribers(t *testing.T) {
	bus := New()
	defer bus.Close()

	bus.Publish(Notification{Topic: EventNew})
	bus.PublishSync(Notification{Topic: EventNew})
}

func TestBus_ClosedBusIgnoresPublish(t *testing.T) {
	bus := New()
	var count int32
	bus.Subscribe(EventNew, func(n Notification) {
		atomic.AddInt32(&count, 1)
	})
	bus.Close()

	bus.PublishSync(Notification{Topic: EventNew})
	if atomic.LoadInt32(&count) != 0 {
		t.Errorf("expected closed bus to drop notifications, got %d", count)
	}
}

func TestBus_ConcurrentSubscribePublish(t *testing.T) {
	bus := New()
	defer bus.Close()

	var count int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(EventNew, func(n Notification) {
				atomic.AddInt32(&count, 1)
			})
			defer unsub()

			for j := 0; j < 10; j++ {
				bus.Publish(Notification{Topic: EventNew})
			}
		}()
	}

	wg.Wait()
	time.Sleep(100 * time.Millisecond)

	if atomic.LoadInt32(&count) == 0 {
		t.Log("warning: no notifications received, but no panic occurred")
	}
}
