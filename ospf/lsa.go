package ospf

import "github.com/transitorykris/netsim/graph"

// LsaType distinguishes the three LSA kinds of §3/§4.5.
type LsaType int

const (
	RouterLsaType LsaType = iota
	SummaryLsaType
	ExternalLsaType
)

func (t LsaType) String() string {
	switch t {
	case RouterLsaType:
		return "router"
	case SummaryLsaType:
		return "summary"
	case ExternalLsaType:
		return "external"
	default:
		return "unknown"
	}
}

// MaxAge is the reserved age value meaning "purge this LSA", per the
// glossary. It counts AgeAndPurge calls (each adds one to an LSA's age),
// not wall-clock seconds, since real timing is out of scope (§1).
const MaxAge = 3600

// LsaKey identifies one LSA instance in a per-area database.
type LsaKey struct {
	Type       LsaType
	Originator RouterId
	Target     RouterId
}

// LsaHeader is the versioning metadata every LSA carries.
type LsaHeader struct {
	Seq uint32
	Age uint32
}

// newer reports whether h is strictly more recent than other, per §4.5's
// flooding rule: higher sequence wins; a tie on sequence is broken by
// lower age (a fresher copy of the same content has had less time to
// age).
func (h LsaHeader) newer(other LsaHeader) bool {
	if h.Seq != other.Seq {
		return h.Seq > other.Seq
	}
	return h.Age < other.Age
}

// Adjacency is one edge a Router LSA reports.
type Adjacency struct {
	Target RouterId
	Weight graph.Weight
}

// RouterLsaData lists an originator's in-area adjacencies.
type RouterLsaData struct {
	Adjacencies []Adjacency
}

// SummaryLsaData is an ABR's advertised cost to an internal target in
// another of its areas.
type SummaryLsaData struct {
	Cost uint32
}

// ExternalLsaData is an ABR/ASBR's advertised cost to an external target.
type ExternalLsaData struct {
	Cost uint32
}

// Lsa is one link-state advertisement: a header plus exactly one of the
// three data kinds named by its key's Type.
type Lsa struct {
	Header   LsaHeader
	Router   *RouterLsaData
	Summary  *SummaryLsaData
	External *ExternalLsaData
}

func (l Lsa) maxAged() bool { return l.Header.Age >= MaxAge }

// database is a per-area LSA store keyed by LsaKey, as in §3.
type database struct {
	lsas map[LsaKey]Lsa
}

func newDatabase() *database { return &database{lsas: make(map[LsaKey]Lsa)} }

func (d *database) get(k LsaKey) (Lsa, bool) {
	l, ok := d.lsas[k]
	return l, ok
}

func (d *database) install(k LsaKey, l Lsa) { d.lsas[k] = l }

func (d *database) purge(k LsaKey) { delete(d.lsas, k) }

func (d *database) headers() map[LsaKey]LsaHeader {
	out := make(map[LsaKey]LsaHeader, len(d.lsas))
	for k, l := range d.lsas {
		out[k] = l.Header
	}
	return out
}

func (d *database) keysByOriginator(originator RouterId, t LsaType) []LsaKey {
	var out []LsaKey
	for k := range d.lsas {
		if k.Originator == originator && k.Type == t {
			out = append(out, k)
		}
	}
	return out
}
