package notify

import (
	"fmt"
	"sync"
	"testing"

	"github.com/threatmesh/threatmesh/core"
)

func TestHub_DeliversInPublishOrder(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("a1")
	defer cancel()

	for i := 0; i < 5; i++ {
		ev := core.NewNotificationEvent(core.EventAgentProgress, "a1")
		ev.Message = fmt.Sprintf("m%d", i)
		hub.Publish("a1", ev)
	}

	for i := 0; i < 5; i++ {
		ev := <-ch
		if ev.Message != fmt.Sprintf("m%d", i) {
			t.Fatalf("expected m%d, got %q", i, ev.Message)
		}
	}
}

func TestHub_NoReplayForLateSubscriber(t *testing.T) {
	hub := NewHub()

	hub.Publish("a1", core.NewNotificationEvent(core.EventAgentStarted, "a1"))

	ch, cancel := hub.Subscribe("a1")
	defer cancel()

	select {
	case ev := <-ch:
		t.Fatalf("late subscriber must not see earlier events, got %v", ev.Type)
	default:
	}

	hub.Publish("a1", core.NewNotificationEvent(core.EventAgentCompleted, "a1"))
	if ev := <-ch; ev.Type != core.EventAgentCompleted {
		t.Fatalf("expected agent_completed, got %v", ev.Type)
	}
}

func TestHub_AnalysisIsolation(t *testing.T) {
	hub := NewHub()
	ch1, cancel1 := hub.Subscribe("a1")
	defer cancel1()
	ch2, cancel2 := hub.Subscribe("a2")
	defer cancel2()

	hub.Publish("a1", core.NewNotificationEvent(core.EventAgentStarted, "a1"))

	if ev := <-ch1; ev.AnalysisID != "a1" {
		t.Fatalf("wrong analysis id %q", ev.AnalysisID)
	}
	select {
	case ev := <-ch2:
		t.Fatalf("a2 subscriber must not see a1 events, got %v", ev.Type)
	default:
	}
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(func(o *Options) { o.BufferSize = 2 })
	ch, cancel := hub.Subscribe("a1")
	defer cancel()

	// Nobody reads; the buffer holds 2 and the rest are dropped. Publish
	// must return every time.
	for i := 0; i < 10; i++ {
		hub.Publish("a1", core.NewNotificationEvent(core.EventAgentProgress, "a1"))
	}
	if got := hub.Dropped(); got != 8 {
		t.Fatalf("expected 8 dropped events, got %d", got)
	}
	if len(ch) != 2 {
		t.Fatalf("expected 2 buffered events, got %d", len(ch))
	}
}

func TestHub_CancelIsIdempotentAndClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("a1")

	cancel()
	cancel() // second call must be a no-op

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
	if n := hub.SubscriberCount("a1"); n != 0 {
		t.Fatalf("expected 0 subscribers, got %d", n)
	}

	// Publishing after every subscriber left must not panic.
	hub.Publish("a1", core.NewNotificationEvent(core.EventAgentStarted, "a1"))
}

func TestHub_PublishNeverRacesCancel(t *testing.T) {
	hub := NewHub(func(o *Options) { o.BufferSize = 1 })

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					hub.Publish("a1", core.NewNotificationEvent(core.EventAgentProgress, "a1"))
				}
			}
		}()
	}

	// Subscribers attach and leave while publishers run. A send racing a
	// channel close would panic one of the publisher goroutines.
	for i := 0; i < 500; i++ {
		_, cancel := hub.Subscribe("a1")
		cancel()
	}
	close(done)
	wg.Wait()

	if n := hub.SubscriberCount("a1"); n != 0 {
		t.Fatalf("expected 0 subscribers after churn, got %d", n)
	}
}

func TestHub_ConcurrentPublishAndSubscribe(t *testing.T) {
	hub := NewHub(func(o *Options) { o.BufferSize = 256 })
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, cancel := hub.Subscribe("a1")
			hub.Publish("a1", core.NewNotificationEvent(core.EventAgentProgress, "a1"))
			<-ch
			cancel()
		}()
	}
	wg.Wait()
}

func TestPublisher_LifecycleSequence(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("a1")
	defer cancel()

	pub := hub.NewPublisher("a1", core.FrameworkSTRIDE)
	pub.Started("running")
	pub.Progress(40, "halfway")
	pub.Completed(map[string]any{"sections": 3})

	wantTypes := []core.EventType{core.EventAgentStarted, core.EventAgentProgress, core.EventAgentCompleted}
	wantProgress := []float64{0, 40, 100}
	for i, want := range wantTypes {
		ev := <-ch
		if ev.Type != want {
			t.Fatalf("event %d: expected %v, got %v", i, want, ev.Type)
		}
		if ev.Progress != wantProgress[i] {
			t.Fatalf("event %d: expected progress %v, got %v", i, wantProgress[i], ev.Progress)
		}
		if ev.Framework != core.FrameworkSTRIDE {
			t.Fatalf("event %d: wrong framework %q", i, ev.Framework)
		}
	}
}

func TestPublisher_ProgressNeverRegresses(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("a1")
	defer cancel()

	pub := hub.NewPublisher("a1", core.FrameworkSTRIDE)
	pub.Started("running")
	pub.Progress(60, "")
	pub.Progress(30, "")  // out of order, clamped up to 60
	pub.Progress(150, "") // clamped down to 100

	<-ch // started
	last := -1.0
	for i := 0; i < 3; i++ {
		ev := <-ch
		if ev.Progress < last {
			t.Fatalf("progress regressed: %v after %v", ev.Progress, last)
		}
		if ev.Progress > 100 {
			t.Fatalf("progress above 100: %v", ev.Progress)
		}
		last = ev.Progress
	}
	if last != 100 {
		t.Fatalf("expected final progress 100, got %v", last)
	}
}

func TestPublisher_FailedCarriesMessage(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("a1")
	defer cancel()

	pub := hub.NewPublisher("a1", core.FrameworkDREAD)
	pub.Started("running")
	pub.Failed(fmt.Errorf("LLM error"))

	<-ch
	ev := <-ch
	if ev.Type != core.EventAgentFailed || ev.Status != core.AgentFailed {
		t.Fatalf("unexpected terminal event %+v", ev)
	}
	if ev.Message != "LLM error" {
		t.Fatalf("expected error message, got %q", ev.Message)
	}
}
