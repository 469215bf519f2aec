package bgp

import "github.com/transitorykris/netsim/prefix"

// State is the action a matching route-map rule takes.
type State int

const (
	Allow State = iota
	Deny
)

// Match is a rule's match conjunction. Every non-nil field is one clause,
// and a route matches only if it satisfies all of them (a logical AND); a
// Match with no field set matches every route.
type Match[P prefix.P] struct {
	Prefix        []P
	ASPathHas     *ASN
	ASPathMinLen  *int
	ASPathMaxLen  *int
	NextHop       *RouterId
	Community     *Community
	DenyCommunity *Community
}

func (m Match[P]) holds(r Route[P]) bool {
	if m.Prefix != nil {
		found := false
		for _, p := range m.Prefix {
			if p == r.Prefix {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if m.ASPathHas != nil && !r.ASPath.Contains(*m.ASPathHas) {
		return false
	}
	if m.ASPathMinLen != nil && r.ASPath.Len() < *m.ASPathMinLen {
		return false
	}
	if m.ASPathMaxLen != nil && r.ASPath.Len() > *m.ASPathMaxLen {
		return false
	}
	if m.NextHop != nil && r.NextHop != *m.NextHop {
		return false
	}
	if m.Community != nil && !r.Community[*m.Community] {
		return false
	}
	if m.DenyCommunity != nil && r.Community[*m.DenyCommunity] {
		return false
	}
	return true
}

// SetAction mutates a route's attributes when a rule matches and allows.
type SetAction[P prefix.P] struct {
	NextHop      *RouterId
	LocalPref    *uint32
	MED          *uint32
	IGPCost      *uint32 // not applied: apply ignores it, so it changes neither the route nor the decision
	SetCommunity []Community
	DelCommunity []Community
}

func (a SetAction[P]) apply(r Route[P]) Route[P] {
	out := r.Clone()
	if a.NextHop != nil {
		out.NextHop = *a.NextHop
	}
	if a.LocalPref != nil {
		v := *a.LocalPref
		out.LocalPref = &v
	}
	if a.MED != nil {
		v := *a.MED
		out.MED = &v
	}
	for _, c := range a.SetCommunity {
		out.Community[c] = true
	}
	for _, c := range a.DelCommunity {
		delete(out.Community, c)
	}
	return out
}

// Rule is one ordered entry of a route map.
type Rule[P prefix.P] struct {
	Order   int
	State   State
	Match   Match[P]
	Actions []SetAction[P]
}

// RouteMap is an ordered list of rules applied to routes crossing one
// (neighbor, direction) boundary, per §3/§4.7: the first matching Deny
// drops the route; the first matching Allow applies its set actions and
// stops; if nothing matches the route passes through unchanged.
type RouteMap[P prefix.P] struct {
	rules []Rule[P]
}

// NewRouteMap builds a route map from rules, sorting them by Order.
func NewRouteMap[P prefix.P](rules ...Rule[P]) *RouteMap[P] {
	rm := &RouteMap[P]{rules: append([]Rule[P](nil), rules...)}
	rm.sort()
	return rm
}

func (rm *RouteMap[P]) sort() {
	rs := rm.rules
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j-1].Order > rs[j].Order; j-- {
			rs[j-1], rs[j] = rs[j], rs[j-1]
		}
	}
}

// SetRule installs or replaces the rule at the given order.
func (rm *RouteMap[P]) SetRule(r Rule[P]) {
	for i, existing := range rm.rules {
		if existing.Order == r.Order {
			rm.rules[i] = r
			rm.sort()
			return
		}
	}
	rm.rules = append(rm.rules, r)
	rm.sort()
}

// Rules returns the map's rules in evaluation order, for inspection and
// serialization.
func (rm *RouteMap[P]) Rules() []Rule[P] {
	return append([]Rule[P](nil), rm.rules...)
}

// RemoveRule deletes the rule at the given order, if present.
func (rm *RouteMap[P]) RemoveRule(order int) {
	for i, existing := range rm.rules {
		if existing.Order == order {
			rm.rules = append(rm.rules[:i], rm.rules[i+1:]...)
			return
		}
	}
}

// Apply runs r through the map. ok is false if a Deny rule matched (the
// route must be treated as a withdraw / not advertised).
func (rm *RouteMap[P]) Apply(r Route[P]) (Route[P], bool) {
	for _, rule := range rm.rules {
		if !rule.Match.holds(r) {
			continue
		}
		if rule.State == Deny {
			return r, false
		}
		out := r
		for _, action := range rule.Actions {
			out = action.apply(out)
		}
		return out, true
	}
	return r, true
}
