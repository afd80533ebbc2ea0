package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEmitReachesSubscriber(t *testing.T) {
	b := NewBus()
	defer b.Shutdown()

	ch, unsubscribe, err := b.Subscribe("main", 4)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	if err := b.Emit("main", SnipComplete, "data:image/png;base64,AA=="); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	ev := <-ch
	if ev.Target != "main" || ev.Name != SnipComplete || ev.Payload == "" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestEmitWithoutSubscriberIsHeld(t *testing.T) {
	b := NewBus()
	defer b.Shutdown()

	if err := b.Emit("main", SnipCancel, "first"); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := b.Emit("main", SnipCancel, "second"); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	ch, unsubscribe, err := b.Subscribe("main", 1)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	select {
	case ev := <-ch:
		if ev.Payload != "second" {
			t.Fatalf("expected latest held event, got %+v", ev)
		}
	default:
		t.Fatal("expected held event to be delivered on subscribe")
	}

	ch2, unsubscribe2, _ := b.Subscribe("main", 1)
	defer unsubscribe2()
	select {
	case ev := <-ch2:
		t.Fatalf("held event delivered twice: %+v", ev)
	default:
	}
}

func TestTargetsAreIsolated(t *testing.T) {
	b := NewBus()
	defer b.Shutdown()

	mainCh, unsubMain, _ := b.Subscribe("main", 1)
	defer unsubMain()
	otherCh, unsubOther, _ := b.Subscribe("other", 1)
	defer unsubOther()

	if err := b.Emit("main", SnipCancel, ""); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	<-mainCh
	select {
	case ev := <-otherCh:
		t.Fatalf("event leaked to another target: %+v", ev)
	default:
	}
}

func TestFullSubscriberDropsOldest(t *testing.T) {
	b := NewBus()
	defer b.Shutdown()

	ch, unsubscribe, _ := b.Subscribe("main", 1)
	defer unsubscribe()

	for _, name := range []string{Window, SnipComplete} {
		if err := b.Emit("main", name, ""); err != nil {
			t.Fatalf("Emit %s: %v", name, err)
		}
	}
	if ev := <-ch; ev.Name != SnipComplete {
		t.Fatalf("expected newest event to survive, got %s", ev.Name)
	}
}

func TestStalledSubscriberDoesNotDelayOtherTargets(t *testing.T) {
	b := NewBus()
	defer b.Shutdown()

	_, unsubMain, _ := b.Subscribe("main", 1)
	defer unsubMain()
	_, unsubOther, _ := b.Subscribe("other", 1)
	wmCh, unsubWM, _ := b.Subscribe("window-manager", 1)
	defer unsubWM()

	// "main" is never drained.
	for i := 0; i < 3; i++ {
		if err := b.Emit("main", Window, ""); err != nil {
			t.Fatalf("Emit to stalled target: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		unsubOther()
	}()

	start := time.Now()
	if err := b.Emit("window-manager", Window, "{}"); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("unrelated Emit took %v", elapsed)
	}
	<-wmCh

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unsubscribe blocked behind a stalled subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	defer b.Shutdown()

	ch, unsubscribe, _ := b.Subscribe("main", 1)
	unsubscribe()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if n := b.Subscribers("main"); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestShutdownRejectsEmit(t *testing.T) {
	b := NewBus()
	ch, _, _ := b.Subscribe("main", 1)
	b.Shutdown()

	if err := b.Emit("main", SnipCancel, ""); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected subscriber channel to be closed by shutdown")
	}
	if _, _, err := b.Subscribe("main", 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from Subscribe, got %v", err)
	}
}

func TestWaitForFiltersByName(t *testing.T) {
	ch := make(chan Event, 2)
	ch <- Event{Name: Window}
	ch <- Event{Name: SnipComplete, Payload: "x"}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := WaitFor(ctx, ch, SnipComplete)
	if err != nil {
		t.Fatalf("WaitFor: %v", err)
	}
	if ev.Payload != "x" {
		t.Fatalf("unexpected event %+v", ev)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()
	if _, err := WaitFor(short, ch, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
