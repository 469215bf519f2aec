// Package queue provides the kernel's pending-event store in the three
// shapes named in §4.2/§7: a single global FIFO, one FIFO per
// destination router, and a randomized delivery-order model for fuzzing
// determinism bugs out of protocol logic that assumes in-order delivery.
package queue

import "github.com/transitorykris/netsim/graph"

// Event is one unit of simulated work: a message addressed to Dst,
// optionally naming the router it came from, carrying whatever payload
// the kernel's dispatch loop knows how to type-switch on (the network
// package's own BGP and OSPF message wrappers).
type Event struct {
	Src     graph.RouterId
	Dst     graph.RouterId
	Seq     uint64
	Payload any
}

// Queue is the kernel's event store. All three implementations are
// deterministic given the same sequence of Push calls (and, for
// TimingModel, the same seed); the simulator never relies on wall-clock
// or goroutine scheduling for ordering.
type Queue interface {
	Push(e Event)
	// Pop removes and returns the next event to dispatch, in whatever
	// order this implementation defines. ok is false when empty.
	Pop() (Event, bool)
	// PopForRouter removes and returns every currently-ready event
	// addressed to dst, preserving this implementation's relative
	// order. The kernel does not call it; it dispatches one event at a
	// time through Pop.
	PopForRouter(dst graph.RouterId) []Event
	Len() int
	// Snapshot returns every pending event in the order Pop would
	// eventually dispatch them, without mutating the queue. Used by
	// Kernel.Marshal to satisfy §6's requirement that in-flight queue
	// contents survive a serialize/deserialize round trip.
	Snapshot() []Event
}
