package eventbus

import "testing"

type progress struct {
	Nodes int
	Bound float64
}

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[progress](0)
	ch := bus.Subscribe()
	bus.Publish(progress{Nodes: 3, Bound: 42})
	v := <-ch
	if v.Nodes != 3 || v.Bound != 42 {
		t.Fatalf("unexpected event %+v", v)
	}
	bus.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
}

func TestTypedBusDropsWhenFull(t *testing.T) {
	bus := NewTyped[int](2)
	ch := bus.Subscribe()
	for i := 0; i < 5; i++ {
		bus.Publish(i)
	}
	if bus.Dropped() != 3 {
		t.Fatalf("expected 3 dropped got %d", bus.Dropped())
	}
	if v := <-ch; v != 0 {
		t.Fatalf("expected oldest event first, got %d", v)
	}
}

func TestTypedBusDrain(t *testing.T) {
	bus := NewTyped[int](8)
	var got []int
	done := bus.Drain(func(v int) { got = append(got, v) })
	bus.Publish(1)
	bus.Publish(2)
	bus.Close()
	<-done
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected drained events %v", got)
	}
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int](0)
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	bus.Publish(1)
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatal("subscribe after close must return a closed channel")
	}
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64](0)
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}
