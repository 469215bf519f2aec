package queue

import (
	"container/heap"
	"math/rand"
	"sort"

	"github.com/transitorykris/netsim/graph"
)

// DelayModel assigns a virtual-tick delay to a message from a to b. It is
// the contract named in the timing-model open question: this package
// fixes how delays are used to reorder delivery, not their exact
// distribution, so callers can plug in whatever jitter shape a scenario
// needs.
type DelayModel interface {
	Sample(rng *rand.Rand, a, b graph.RouterId) uint64
}

// ExponentialFloor delays a message by a fixed propagation floor plus an
// exponentially distributed jitter term, the one DelayModel this package
// provides (callers pass it to NewTimingModel explicitly): most messages
// arrive close to Floor, with an occasional long tail. It ignores which
// routers a message travels between.
type ExponentialFloor struct {
	Floor uint64
	Mean  float64 // mean of the exponential jitter term, in ticks
}

func (e ExponentialFloor) Sample(rng *rand.Rand, _, _ graph.RouterId) uint64 {
	jitter := rng.ExpFloat64() * e.Mean
	return e.Floor + uint64(jitter)
}

type timingItem struct {
	event Event
	ready uint64
	seq   uint64 // push order, breaks ties so replay is deterministic for one seed
}

type timingHeap []timingItem

func (h timingHeap) Len() int { return len(h) }
func (h timingHeap) Less(i, j int) bool {
	if h[i].ready != h[j].ready {
		return h[i].ready < h[j].ready
	}
	return h[i].seq < h[j].seq
}
func (h timingHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timingHeap) Push(x interface{}) { *h = append(*h, x.(timingItem)) }
func (h *timingHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TimingModel reorders delivery by a pluggable virtual delay, seeded for
// reproducibility, per §4.2/§7: the same seed and push sequence always
// produces the same dispatch order.
type TimingModel struct {
	rng   *rand.Rand
	model DelayModel
	clock uint64
	seq   uint64
	heap  timingHeap
}

// NewTimingModel creates a timing-model queue with the given seed and
// delay model.
func NewTimingModel(seed int64, model DelayModel) *TimingModel {
	return &TimingModel{
		rng:   rand.New(rand.NewSource(seed)),
		model: model,
	}
}

func (q *TimingModel) Push(e Event) {
	d := q.model.Sample(q.rng, e.Src, e.Dst)
	item := timingItem{event: e, ready: q.clock + d, seq: q.seq}
	q.seq++
	heap.Push(&q.heap, item)
}

func (q *TimingModel) Pop() (Event, bool) {
	if q.heap.Len() == 0 {
		return Event{}, false
	}
	item := heap.Pop(&q.heap).(timingItem)
	q.clock = item.ready
	return item.event, true
}

func (q *TimingModel) PopForRouter(dst graph.RouterId) []Event {
	var matched []timingItem
	var rest timingHeap
	for _, item := range q.heap {
		if item.event.Dst == dst {
			matched = append(matched, item)
		} else {
			rest = append(rest, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ready != matched[j].ready {
			return matched[i].ready < matched[j].ready
		}
		return matched[i].seq < matched[j].seq
	})
	heap.Init(&rest)
	q.heap = rest

	out := make([]Event, len(matched))
	for i, item := range matched {
		out[i] = item.event
	}
	return out
}

func (q *TimingModel) Len() int { return q.heap.Len() }

// Snapshot returns every pending event ordered by (ready, seq), the order
// Pop would dispatch them in, without mutating the heap.
func (q *TimingModel) Snapshot() []Event {
	items := append(timingHeap(nil), q.heap...)
	sort.Slice(items, func(i, j int) bool {
		if items[i].ready != items[j].ready {
			return items[i].ready < items[j].ready
		}
		return items[i].seq < items[j].seq
	})
	out := make([]Event, len(items))
	for i, item := range items {
		out[i] = item.event
	}
	return out
}

// Clock returns the virtual time of the last dispatched event, for
// serialization.
func (q *TimingModel) Clock() uint64 { return q.clock }

// Seed, model, and each pending event's originally sampled delay aren't
// recoverable from a Snapshot alone: restoring a TimingModel from a
// serialized queue re-pushes events in snapshot order and resamples
// fresh delays, so neither the exact virtual-time gaps nor, in general,
// the original dispatch order between them is preserved.
