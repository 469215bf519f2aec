package ospf

// NeighborState is one of the simplified RFC 2328 neighbor states named
// in §4.5 (neighbor discovery below ExStart is assumed complete once an
// adjacency exists).
type NeighborState int

const (
	ExStart NeighborState = iota
	Exchange
	Loading
	Full
)

func (s NeighborState) String() string {
	switch s {
	case ExStart:
		return "ExStart"
	case Exchange:
		return "Exchange"
	case Loading:
		return "Loading"
	case Full:
		return "Full"
	default:
		return "unknown"
	}
}

// Neighbor is the per-adjacency state machine of §4.5.
type Neighbor struct {
	Remote RouterId
	Area   Area
	State  NeighborState
	Leader bool

	peerHeaders map[LsaKey]LsaHeader
	pending     map[LsaKey]bool
}

func newNeighbor(self, remote RouterId, area Area) *Neighbor {
	return &Neighbor{
		Remote:      remote,
		Area:        area,
		State:       ExStart,
		Leader:      self > remote,
		peerHeaders: make(map[LsaKey]LsaHeader),
		pending:     make(map[LsaKey]bool),
	}
}
