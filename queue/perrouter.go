package queue

import "github.com/transitorykris/netsim/graph"

// PerRouterFIFO keeps one ordered queue per destination router, per
// §4.2's "per-router FIFO" model: events to different routers can
// interleave arbitrarily, but events to the same router are always
// dispatched in push order. Pop walks destinations in a fixed round-robin
// order so the overall dispatch sequence is still deterministic.
type PerRouterFIFO struct {
	queues map[graph.RouterId][]Event
	order  []graph.RouterId // round-robin cursor order, stable once a router is seen
	cursor int
	count  int
}

// NewPerRouterFIFO creates an empty per-router FIFO set.
func NewPerRouterFIFO() *PerRouterFIFO {
	return &PerRouterFIFO{queues: make(map[graph.RouterId][]Event)}
}

func (q *PerRouterFIFO) Push(e Event) {
	if _, ok := q.queues[e.Dst]; !ok {
		q.order = append(q.order, e.Dst)
	}
	q.queues[e.Dst] = append(q.queues[e.Dst], e)
	q.count++
}

// Pop returns the head of the next non-empty router queue in
// round-robin order.
func (q *PerRouterFIFO) Pop() (Event, bool) {
	if q.count == 0 {
		return Event{}, false
	}
	for i := 0; i < len(q.order); i++ {
		idx := (q.cursor + i) % len(q.order)
		dst := q.order[idx]
		items := q.queues[dst]
		if len(items) == 0 {
			continue
		}
		e := items[0]
		q.queues[dst] = items[1:]
		q.count--
		q.cursor = (idx + 1) % len(q.order)
		return e, true
	}
	return Event{}, false
}

// PopForRouter drains the entire queue addressed to dst in order,
// so a caller can dispatch a full batch to one router at a time (the
// kernel itself only uses Pop).
func (q *PerRouterFIFO) PopForRouter(dst graph.RouterId) []Event {
	items := q.queues[dst]
	if len(items) == 0 {
		return nil
	}
	q.queues[dst] = nil
	q.count -= len(items)
	return items
}

func (q *PerRouterFIFO) Len() int { return q.count }

// Snapshot returns every pending event in the round-robin dispatch order
// Pop would produce, without consuming the queue.
func (q *PerRouterFIFO) Snapshot() []Event {
	if q.count == 0 {
		return nil
	}
	cursors := make(map[graph.RouterId]int, len(q.order))
	out := make([]Event, 0, q.count)
	remaining := q.count
	cursor := q.cursor
	for remaining > 0 {
		advanced := false
		for i := 0; i < len(q.order); i++ {
			idx := (cursor + i) % len(q.order)
			dst := q.order[idx]
			items := q.queues[dst]
			pos := cursors[dst]
			if pos >= len(items) {
				continue
			}
			out = append(out, items[pos])
			cursors[dst] = pos + 1
			remaining--
			cursor = (idx + 1) % len(q.order)
			advanced = true
			break
		}
		if !advanced {
			break
		}
	}
	return out
}
