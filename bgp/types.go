// Package bgp implements the BGP decision process: per-router RIB-in,
// RIB-out and LOC-RIB maintenance, route-map filtering, and update/withdraw
// event generation for iBGP (peer, route-reflector client) and eBGP
// sessions. It is generic over the prefix family P (see package prefix).
package bgp

import (
	"fmt"

	"github.com/transitorykris/netsim/graph"
	"github.com/transitorykris/netsim/prefix"
)

// RouterId identifies a router; it is the same dense handle the physical
// graph and OSPF use.
type RouterId = graph.RouterId

// ASN is a 32-bit autonomous system number.
type ASN uint32

func (a ASN) String() string { return fmt.Sprintf("AS%d", uint32(a)) }

// Community is a BGP community: an ASN paired with a 16-bit value,
// conventionally displayed as asn:value.
type Community struct {
	ASN   ASN
	Value uint16
}

func (c Community) String() string { return fmt.Sprintf("%d:%d", c.ASN, c.Value) }

// ParseCommunity parses the asn:value form Community.String() produces.
func ParseCommunity(s string) (Community, error) {
	var asn uint32
	var value uint16
	if _, err := fmt.Sscanf(s, "%d:%d", &asn, &value); err != nil {
		return Community{}, fmt.Errorf("parse community %q: %w", s, err)
	}
	return Community{ASN: ASN(asn), Value: value}, nil
}

// Well-known communities, adapted from the teacher's RFC4271/1997 path
// attribute catalogue (rfc.go) into values route maps can match on.
var (
	NoExport        = Community{ASN: 0xFFFF, Value: 0xFF01}
	NoAdvertise     = Community{ASN: 0xFFFF, Value: 0xFF02}
	NoExportSubconf = Community{ASN: 0xFFFF, Value: 0xFF03}
)

// ASPath is an ordered list of ASNs a route has traversed. The closest
// hop is prepended, so ASPath[0] is the most recently traversed AS.
type ASPath []ASN

// Contains reports whether asn appears anywhere in the path.
func (p ASPath) Contains(asn ASN) bool {
	for _, a := range p {
		if a == asn {
			return true
		}
	}
	return false
}

// Prepend returns a new path with asn added at the front.
func (p ASPath) Prepend(asn ASN) ASPath {
	out := make(ASPath, 0, len(p)+1)
	out = append(out, asn)
	out = append(out, p...)
	return out
}

func (p ASPath) Len() int { return len(p) }

func (p ASPath) Clone() ASPath {
	out := make(ASPath, len(p))
	copy(out, p)
	return out
}

// Route is a BGP route for some prefix P, matching §3's data model.
type Route[P prefix.P] struct {
	Prefix       P
	ASPath       ASPath
	NextHop      RouterId
	LocalPref    *uint32
	MED          *uint32
	Community    map[Community]bool
	OriginatorID *RouterId
	ClusterList  []RouterId
}

// Clone deep-copies a route so callers can mutate the copy (set actions,
// attribute stripping) without aliasing the stored RIB entry.
func (r Route[P]) Clone() Route[P] {
	out := r
	out.ASPath = r.ASPath.Clone()
	if r.LocalPref != nil {
		v := *r.LocalPref
		out.LocalPref = &v
	}
	if r.MED != nil {
		v := *r.MED
		out.MED = &v
	}
	if r.OriginatorID != nil {
		v := *r.OriginatorID
		out.OriginatorID = &v
	}
	out.ClusterList = append([]RouterId(nil), r.ClusterList...)
	out.Community = make(map[Community]bool, len(r.Community))
	for c := range r.Community {
		out.Community[c] = true
	}
	return out
}

func (r Route[P]) localPref() uint32 {
	if r.LocalPref == nil {
		return 100
	}
	return *r.LocalPref
}

func (r Route[P]) med() uint32 {
	if r.MED == nil {
		return 0
	}
	return *r.MED
}

// SessionType is the role a directed BGP session plays, named after the
// session kinds in original_source's BgpSessionType.
type SessionType int

const (
	// EBgp is an external session; crossing it prepends the local ASN
	// and strips iBGP-only attributes.
	EBgp SessionType = iota
	// IBgpPeer is a plain internal peer: full-mesh semantics apply.
	IBgpPeer
	// IBgpClient marks the *speaker* as the route-reflector for the
	// other end (the other end is the client).
	IBgpClient
)

func (t SessionType) String() string {
	switch t {
	case EBgp:
		return "eBGP"
	case IBgpPeer:
		return "iBGP-peer"
	case IBgpClient:
		return "iBGP-client"
	default:
		return "unknown"
	}
}

// IsIBGP reports whether t is any flavor of internal session.
func (t SessionType) IsIBGP() bool { return t != EBgp }

// Direction selects which side of a route map a rule applies to.
type Direction int

const (
	Incoming Direction = iota
	Outgoing
)

func (d Direction) String() string {
	if d == Incoming {
		return "in"
	}
	return "out"
}

// Event is a message exchanged between BGP processes.
type Event[P prefix.P] struct {
	Update   *Route[P]
	Withdraw *P
}

// UpdateEvent builds an Update event.
func UpdateEvent[P prefix.P](r Route[P]) Event[P] { return Event[P]{Update: &r} }

// WithdrawEvent builds a Withdraw event.
func WithdrawEvent[P prefix.P](p P) Event[P] { return Event[P]{Withdraw: &p} }

func (e Event[P]) IsWithdraw() bool { return e.Withdraw != nil }
