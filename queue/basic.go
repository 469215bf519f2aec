package queue

import "github.com/transitorykris/netsim/graph"

// BasicFIFO dispatches every event in exactly the order it was pushed,
// regardless of destination. This is the simplest and strictest model
// in §4.2: a router can never observe an event addressed to it before an
// earlier-pushed event addressed to someone else has been dispatched.
type BasicFIFO struct {
	items []Event
}

// NewBasicFIFO creates an empty global FIFO.
func NewBasicFIFO() *BasicFIFO {
	return &BasicFIFO{items: make([]Event, 0, 1024)}
}

func (q *BasicFIFO) Push(e Event) {
	q.items = append(q.items, e)
}

func (q *BasicFIFO) Pop() (Event, bool) {
	if len(q.items) == 0 {
		return Event{}, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}

func (q *BasicFIFO) PopForRouter(dst graph.RouterId) []Event {
	var out []Event
	rest := q.items[:0]
	for _, e := range q.items {
		if e.Dst == dst {
			out = append(out, e)
		} else {
			rest = append(rest, e)
		}
	}
	q.items = rest
	return out
}

func (q *BasicFIFO) Len() int { return len(q.items) }

func (q *BasicFIFO) Snapshot() []Event {
	return append([]Event(nil), q.items...)
}
