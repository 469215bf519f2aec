package bgp

import "github.com/transitorykris/netsim/prefix"

// candidate bundles a received route with the metadata the decision
// process needs but which isn't itself a path attribute: who it came
// from, over what kind of session, and what it costs (in IGP metric) to
// reach its next hop.
type candidate[P prefix.P] struct {
	route       Route[P]
	peer        RouterId
	peerASN     ASN
	sessionType SessionType
	igpCost     uint32
	reachable   bool
}

// better reports whether a is strictly preferred over b under §3's
// decision ordering:
//  1. higher local-pref
//  2. shorter AS path
//  3. lower MED (only compared when both routes came from the same
//     neighbor AS)
//  4. eBGP over iBGP
//  5. lower IGP cost to next hop
//  6. deterministic tie-break: (originator id, cluster-list length,
//     neighbor router id)
func better[P prefix.P](a, b candidate[P]) bool {
	if a.route.localPref() != b.route.localPref() {
		return a.route.localPref() > b.route.localPref()
	}
	if a.route.ASPath.Len() != b.route.ASPath.Len() {
		return a.route.ASPath.Len() < b.route.ASPath.Len()
	}
	if a.peerASN == b.peerASN && a.route.med() != b.route.med() {
		return a.route.med() < b.route.med()
	}
	if a.sessionType.IsIBGP() != b.sessionType.IsIBGP() {
		return !a.sessionType.IsIBGP()
	}
	if a.igpCost != b.igpCost {
		return a.igpCost < b.igpCost
	}
	ao, bo := originatorOf(a.route), originatorOf(b.route)
	if ao != bo {
		return ao < bo
	}
	if len(a.route.ClusterList) != len(b.route.ClusterList) {
		return len(a.route.ClusterList) < len(b.route.ClusterList)
	}
	return a.peer < b.peer
}

func originatorOf[P prefix.P](r Route[P]) RouterId {
	if r.OriginatorID != nil {
		return *r.OriginatorID
	}
	return 0
}

// best returns the index of the most-preferred reachable candidate, or
// -1 if none are reachable.
func best[P prefix.P](cands []candidate[P]) int {
	winner := -1
	for i, c := range cands {
		if !c.reachable {
			continue
		}
		if winner == -1 || better(c, cands[winner]) {
			winner = i
		}
	}
	return winner
}
