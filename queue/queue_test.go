package queue

import (
	"testing"

	"github.com/transitorykris/netsim/graph"
)

func TestBasicFIFONew(t *testing.T) {
	q := NewBasicFIFO()
	if q.Len() != 0 {
		t.Errorf("expected queue to be empty but it has %d items", q.Len())
	}
}

func TestBasicFIFOPush(t *testing.T) {
	q := NewBasicFIFO()
	for i := 0; i < 10; i++ {
		q.Push(Event{Src: graph.RouterId(i), Dst: graph.RouterId(i + 1)})
	}
	if q.Len() != 10 {
		t.Errorf("pushed 10 items onto the queue but it only has %d items", q.Len())
	}
}

func TestBasicFIFOPop(t *testing.T) {
	q := NewBasicFIFO()
	dsts := []graph.RouterId{0, 1, 2, 3, 4}
	for _, dst := range dsts {
		q.Push(Event{Dst: dst})
	}
	for i := 0; i < len(dsts); i++ {
		popped, ok := q.Pop()
		if !ok {
			t.Fatalf("expected an event at index %d", i)
		}
		if popped.Dst != dsts[i] {
			t.Errorf("popped dst %v but expected %v", popped.Dst, dsts[i])
		}
	}
	if _, ok := q.Pop(); ok {
		t.Errorf("expected Pop on an empty queue to report ok=false")
	}
}

func TestBasicFIFOPopForRouter(t *testing.T) {
	q := NewBasicFIFO()
	q.Push(Event{Dst: 1})
	q.Push(Event{Dst: 2})
	q.Push(Event{Dst: 1})
	q.Push(Event{Dst: 3})

	got := q.PopForRouter(1)
	if len(got) != 2 {
		t.Fatalf("expected 2 events for router 1, got %d", len(got))
	}
	if q.Len() != 2 {
		t.Errorf("expected 2 events left in the queue, got %d", q.Len())
	}
}

func TestBasicFIFOSnapshot(t *testing.T) {
	q := NewBasicFIFO()
	q.Push(Event{Dst: 1})
	q.Push(Event{Dst: 2})

	snap := q.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 events in snapshot, got %d", len(snap))
	}
	if q.Len() != 2 {
		t.Errorf("Snapshot must not drain the queue, but Len() is now %d", q.Len())
	}
}
