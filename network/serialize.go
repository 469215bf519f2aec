package network

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/transitorykris/netsim/bgp"
	"github.com/transitorykris/netsim/counter"
	"github.com/transitorykris/netsim/graph"
	"github.com/transitorykris/netsim/ospf"
	"github.com/transitorykris/netsim/prefix"
	"github.com/transitorykris/netsim/queue"
	"github.com/transitorykris/netsim/router"
	"github.com/transitorykris/netsim/serialize"
	"github.com/transitorykris/netsim/simerr"
)

// Codec converts prefix family P to and from the string form the
// serialized document stores it in.
type Codec[P prefix.P] interface {
	Encode(p P) string
	Decode(s string) (P, error)
}

// IPv4Codec is the Codec for the IPv4 prefix family.
type IPv4Codec struct{}

func (IPv4Codec) Encode(p prefix.IPv4Prefix) string { return p.String() }
func (IPv4Codec) Decode(s string) (prefix.IPv4Prefix, error) {
	return prefix.ParseIPv4Prefix(s)
}

// Marshal serializes the entire kernel state, including in-flight queue
// contents, per §6.
func (k *Kernel[P]) Marshal(codec Codec[P]) ([]byte, error) {
	doc := &serialize.Doc{
		Mode:     modeString(k.mode),
		MsgLimit: k.msgLimit,
		NextID:   uint32(k.nextID),
	}

	for _, id := range k.g.Routers() {
		rt := k.routers[id]
		doc.Routers = append(doc.Routers, serialize.RouterDoc{
			ID: uint32(id), Name: rt.Name, ASN: uint32(rt.ASN), External: rt.External,
		})
		if rt.LoadBalancing() {
			doc.LoadBalance = append(doc.LoadBalance, uint32(id))
		}
		for peer, sessType := range rt.BGP().Sessions() {
			if id < peer {
				// Record the reflector's side when the peer is the reflector,
				// since UnmarshalKernel mirrors only A's role onto B.
				a, b, role := id, peer, sessType
				if prt, ok := k.routers[peer]; ok {
					if pt, ok := prt.BGP().HasSession(id); ok && pt == bgp.IBgpClient {
						a, b, role = peer, id, pt
					}
				}
				doc.Sessions = append(doc.Sessions, serialize.SessionDoc{
					A: uint32(a), B: uint32(b), Role: sessionRoleString(role),
				})
			}
		}
		for _, entry := range rt.BGP().RouteMaps() {
			doc.RouteMaps = append(doc.RouteMaps, encodeRouteMap(codec, id, entry))
		}
		for _, pfx := range rt.StaticPrefixes() {
			sr, _ := rt.GetStaticRoute(pfx)
			doc.StaticRoutes = append(doc.StaticRoutes, serialize.StaticRouteDoc{
				Router: uint32(id), Prefix: codec.Encode(pfx), Kind: staticKindString(sr.Kind), NextHop: uint32(sr.NextHop),
			})
		}
		for pfx, route := range rt.BGP().AdvertisedRoutes() {
			doc.Advertised = append(doc.Advertised, encodeAdvertised(codec, id, pfx, route))
		}
		for _, pfx := range rt.BGP().Rib().Prefixes() {
			route, _ := rt.BGP().Rib().Best(pfx)
			doc.LocRib = append(doc.LocRib, serialize.LocRibDoc{
				Router: uint32(id), Route: encodeRouteDoc(codec, route),
			})
		}
		if k.mode == LocalMode {
			if local, ok := k.locals[id]; ok {
				for area, lsas := range local.Databases() {
					var lsaDocs []serialize.LsaDoc
					for key, lsa := range lsas {
						lsaDocs = append(lsaDocs, encodeLsa(key, lsa))
					}
					doc.OspfDatabases = append(doc.OspfDatabases, serialize.OspfDbDoc{
						Router: uint32(id), Area: uint32(area), Lsas: lsaDocs,
					})
				}
			}
		}
	}

	for _, a := range k.g.Routers() {
		for _, b := range k.g.Neighbors(a) {
			if a >= b {
				continue
			}
			area, _ := k.g.Area(a, b)
			doc.Links = append(doc.Links, serialize.LinkDoc{
				A: uint32(a), B: uint32(b), Weight: uint32(k.g.Weight(a, b)), Area: uint32(area),
			})
		}
	}

	for _, e := range k.q.Snapshot() {
		ed, err := encodeEvent(codec, e)
		if err != nil {
			return nil, simerr.SerializationErrorf("encode event: %v", err)
		}
		doc.Queue = append(doc.Queue, ed)
	}
	if tm, ok := k.q.(*queue.TimingModel); ok {
		doc.QueueClock = tm.Clock()
	}

	return serialize.Marshal(doc)
}

func modeString(m OspfMode) string {
	if m == LocalMode {
		return "local"
	}
	return "global"
}

func sessionRoleString(t bgp.SessionType) string {
	switch t {
	case bgp.EBgp:
		return "ebgp"
	case bgp.IBgpClient:
		return "ibgp-client"
	default:
		return "ibgp-peer"
	}
}

func parseSessionRole(s string) bgp.SessionType {
	switch s {
	case "ebgp":
		return bgp.EBgp
	case "ibgp-client":
		return bgp.IBgpClient
	default:
		return bgp.IBgpPeer
	}
}

func staticKindString(k router.StaticKind) string {
	switch k {
	case router.Direct:
		return "direct"
	case router.Indirect:
		return "indirect"
	default:
		return "drop"
	}
}

func parseStaticKind(s string) router.StaticKind {
	switch s {
	case "direct":
		return router.Direct
	case "indirect":
		return router.Indirect
	default:
		return router.Drop
	}
}

func encodeRouteMap[P prefix.P](codec Codec[P], router RouterId, entry bgp.RouteMapEntry[P]) serialize.RouteMapDoc {
	doc := serialize.RouteMapDoc{
		Router: uint32(router), Peer: uint32(entry.Peer), Dir: entry.Dir.String(),
	}
	for _, rule := range entry.Map.Rules() {
		doc.Rules = append(doc.Rules, encodeRule(codec, rule))
	}
	return doc
}

func encodeRule[P prefix.P](codec Codec[P], r bgp.Rule[P]) serialize.RuleDoc {
	rd := serialize.RuleDoc{Order: r.Order, State: stateString(r.State)}
	for _, p := range r.Match.Prefix {
		rd.Match.Prefix = append(rd.Match.Prefix, codec.Encode(p))
	}
	if r.Match.ASPathHas != nil {
		v := uint32(*r.Match.ASPathHas)
		rd.Match.ASPathHas = &v
	}
	rd.Match.ASPathMinLen = r.Match.ASPathMinLen
	rd.Match.ASPathMaxLen = r.Match.ASPathMaxLen
	if r.Match.NextHop != nil {
		v := uint32(*r.Match.NextHop)
		rd.Match.NextHop = &v
	}
	if r.Match.Community != nil {
		s := r.Match.Community.String()
		rd.Match.Community = &s
	}
	if r.Match.DenyCommunity != nil {
		s := r.Match.DenyCommunity.String()
		rd.Match.DenyCommunity = &s
	}
	for _, a := range r.Actions {
		rd.Actions = append(rd.Actions, encodeAction(a))
	}
	return rd
}

func encodeAction[P prefix.P](a bgp.SetAction[P]) serialize.ActionDoc {
	ad := serialize.ActionDoc{MED: a.MED, LocalPref: a.LocalPref}
	if a.NextHop != nil {
		v := uint32(*a.NextHop)
		ad.NextHop = &v
	}
	for _, c := range a.SetCommunity {
		ad.SetCommunity = append(ad.SetCommunity, c.String())
	}
	for _, c := range a.DelCommunity {
		ad.DelCommunity = append(ad.DelCommunity, c.String())
	}
	return ad
}

func stateString(s bgp.State) string {
	if s == bgp.Deny {
		return "deny"
	}
	return "allow"
}

func parseState(s string) bgp.State {
	if s == "deny" {
		return bgp.Deny
	}
	return bgp.Allow
}

func encodeAdvertised[P prefix.P](codec Codec[P], id RouterId, pfx P, route bgp.Route[P]) serialize.AdvertisedDoc {
	doc := serialize.AdvertisedDoc{Router: uint32(id), Prefix: codec.Encode(pfx), MED: route.MED}
	for _, asn := range route.ASPath {
		doc.ASPath = append(doc.ASPath, uint32(asn))
	}
	for c := range route.Community {
		doc.Community = append(doc.Community, c.String())
	}
	return doc
}

// encodeRouteDoc mirrors a bgp.Route into the wire form shared by
// LOC-RIB entries and queued BGP update events.
func encodeRouteDoc[P prefix.P](codec Codec[P], route bgp.Route[P]) serialize.RouteDoc {
	rd := serialize.RouteDoc{
		Prefix: codec.Encode(route.Prefix), NextHop: uint32(route.NextHop),
		LocalPref: route.LocalPref, MED: route.MED,
	}
	for _, asn := range route.ASPath {
		rd.ASPath = append(rd.ASPath, uint32(asn))
	}
	for c := range route.Community {
		rd.Community = append(rd.Community, c.String())
	}
	if route.OriginatorID != nil {
		v := uint32(*route.OriginatorID)
		rd.OriginatorID = &v
	}
	for _, c := range route.ClusterList {
		rd.ClusterList = append(rd.ClusterList, uint32(c))
	}
	return rd
}

// decodeRouteDoc is encodeRouteDoc's inverse.
func decodeRouteDoc[P prefix.P](codec Codec[P], rd serialize.RouteDoc) (bgp.Route[P], error) {
	pfx, err := codec.Decode(rd.Prefix)
	if err != nil {
		return bgp.Route[P]{}, err
	}
	route := bgp.Route[P]{
		Prefix: pfx, NextHop: RouterId(rd.NextHop),
		LocalPref: rd.LocalPref, MED: rd.MED,
		Community: make(map[bgp.Community]bool, len(rd.Community)),
	}
	for _, asn := range rd.ASPath {
		route.ASPath = append(route.ASPath, bgp.ASN(asn))
	}
	for _, s := range rd.Community {
		c, err := bgp.ParseCommunity(s)
		if err != nil {
			return bgp.Route[P]{}, err
		}
		route.Community[c] = true
	}
	if rd.OriginatorID != nil {
		v := RouterId(*rd.OriginatorID)
		route.OriginatorID = &v
	}
	for _, c := range rd.ClusterList {
		route.ClusterList = append(route.ClusterList, RouterId(c))
	}
	return route, nil
}

func encodeEvent[P prefix.P](codec Codec[P], e queue.Event) (serialize.EventDoc, error) {
	doc := serialize.EventDoc{Src: uint32(e.Src), Dst: uint32(e.Dst)}
	switch payload := e.Payload.(type) {
	case bgpMsg[P]:
		if payload.Event.IsWithdraw() {
			doc.Kind = "bgp_withdraw"
			s := codec.Encode(*payload.Event.Withdraw)
			doc.BgpWithdraw = &s
			return doc, nil
		}
		doc.Kind = "bgp_update"
		rd := encodeRouteDoc(codec, *payload.Event.Update)
		doc.BgpUpdate = &rd
		return doc, nil
	case ospfMsg:
		doc.Kind = "ospf"
		doc.Ospf = encodeOspfMsg(payload.Msg)
		return doc, nil
	default:
		return doc, fmt.Errorf("unrecognized event payload %T", payload)
	}
}

func encodeLsaKey(k ospf.LsaKey) serialize.LsaKeyDoc {
	return serialize.LsaKeyDoc{Type: k.Type.String(), Originator: uint32(k.Originator), Target: uint32(k.Target)}
}

func decodeLsaKey(d serialize.LsaKeyDoc) ospf.LsaKey {
	return ospf.LsaKey{Type: parseLsaType(d.Type), Originator: RouterId(d.Originator), Target: RouterId(d.Target)}
}

func parseLsaType(s string) ospf.LsaType {
	switch s {
	case "summary":
		return ospf.SummaryLsaType
	case "external":
		return ospf.ExternalLsaType
	default:
		return ospf.RouterLsaType
	}
}

func encodeLsa(k ospf.LsaKey, l ospf.Lsa) serialize.LsaDoc {
	doc := serialize.LsaDoc{Key: encodeLsaKey(k), Seq: l.Header.Seq, Age: l.Header.Age}
	if l.Router != nil {
		for _, adj := range l.Router.Adjacencies {
			doc.Adjacencies = append(doc.Adjacencies, serialize.AdjDoc{Target: uint32(adj.Target), Weight: uint32(adj.Weight)})
		}
	}
	if l.Summary != nil {
		c := l.Summary.Cost
		doc.Cost = &c
	}
	if l.External != nil {
		c := l.External.Cost
		doc.Cost = &c
	}
	return doc
}

func decodeLsa(doc serialize.LsaDoc) ospf.Lsa {
	l := ospf.Lsa{Header: ospf.LsaHeader{Seq: doc.Seq, Age: doc.Age}}
	switch parseLsaType(doc.Key.Type) {
	case ospf.RouterLsaType:
		var adj []ospf.Adjacency
		for _, a := range doc.Adjacencies {
			adj = append(adj, ospf.Adjacency{Target: RouterId(a.Target), Weight: graph.Weight(a.Weight)})
		}
		l.Router = &ospf.RouterLsaData{Adjacencies: adj}
	case ospf.SummaryLsaType:
		cost := uint32(0)
		if doc.Cost != nil {
			cost = *doc.Cost
		}
		l.Summary = &ospf.SummaryLsaData{Cost: cost}
	case ospf.ExternalLsaType:
		cost := uint32(0)
		if doc.Cost != nil {
			cost = *doc.Cost
		}
		l.External = &ospf.ExternalLsaData{Cost: cost}
	}
	return l
}

// decodeRule is encodeRule's inverse.
func decodeRule[P prefix.P](codec Codec[P], rd serialize.RuleDoc) (bgp.Rule[P], error) {
	rule := bgp.Rule[P]{Order: rd.Order, State: parseState(rd.State)}
	for _, s := range rd.Match.Prefix {
		p, err := codec.Decode(s)
		if err != nil {
			return bgp.Rule[P]{}, err
		}
		rule.Match.Prefix = append(rule.Match.Prefix, p)
	}
	if rd.Match.ASPathHas != nil {
		v := bgp.ASN(*rd.Match.ASPathHas)
		rule.Match.ASPathHas = &v
	}
	rule.Match.ASPathMinLen = rd.Match.ASPathMinLen
	rule.Match.ASPathMaxLen = rd.Match.ASPathMaxLen
	if rd.Match.NextHop != nil {
		v := RouterId(*rd.Match.NextHop)
		rule.Match.NextHop = &v
	}
	if rd.Match.Community != nil {
		c, err := bgp.ParseCommunity(*rd.Match.Community)
		if err != nil {
			return bgp.Rule[P]{}, err
		}
		rule.Match.Community = &c
	}
	if rd.Match.DenyCommunity != nil {
		c, err := bgp.ParseCommunity(*rd.Match.DenyCommunity)
		if err != nil {
			return bgp.Rule[P]{}, err
		}
		rule.Match.DenyCommunity = &c
	}
	for _, ad := range rd.Actions {
		action, err := decodeAction[P](ad)
		if err != nil {
			return bgp.Rule[P]{}, err
		}
		rule.Actions = append(rule.Actions, action)
	}
	return rule, nil
}

// decodeAction is encodeAction's inverse.
func decodeAction[P prefix.P](ad serialize.ActionDoc) (bgp.SetAction[P], error) {
	action := bgp.SetAction[P]{MED: ad.MED, LocalPref: ad.LocalPref}
	if ad.NextHop != nil {
		v := RouterId(*ad.NextHop)
		action.NextHop = &v
	}
	for _, s := range ad.SetCommunity {
		c, err := bgp.ParseCommunity(s)
		if err != nil {
			return bgp.SetAction[P]{}, err
		}
		action.SetCommunity = append(action.SetCommunity, c)
	}
	for _, s := range ad.DelCommunity {
		c, err := bgp.ParseCommunity(s)
		if err != nil {
			return bgp.SetAction[P]{}, err
		}
		action.DelCommunity = append(action.DelCommunity, c)
	}
	return action, nil
}

// decodeEvent is encodeEvent's inverse, rebuilding the private payload
// types that ride in the kernel's queue.
func decodeEvent[P prefix.P](codec Codec[P], ed serialize.EventDoc) (queue.Event, error) {
	src, dst := RouterId(ed.Src), RouterId(ed.Dst)
	switch ed.Kind {
	case "bgp_withdraw":
		if ed.BgpWithdraw == nil {
			return queue.Event{}, fmt.Errorf("bgp_withdraw event missing prefix")
		}
		pfx, err := codec.Decode(*ed.BgpWithdraw)
		if err != nil {
			return queue.Event{}, err
		}
		return queue.Event{Src: src, Dst: dst, Payload: bgpMsg[P]{Src: src, Event: bgp.WithdrawEvent(pfx)}}, nil
	case "bgp_update":
		if ed.BgpUpdate == nil {
			return queue.Event{}, fmt.Errorf("bgp_update event missing route")
		}
		route, err := decodeRouteDoc[P](codec, *ed.BgpUpdate)
		if err != nil {
			return queue.Event{}, err
		}
		return queue.Event{Src: src, Dst: dst, Payload: bgpMsg[P]{Src: src, Event: bgp.UpdateEvent(route)}}, nil
	case "ospf":
		if ed.Ospf == nil {
			return queue.Event{}, fmt.Errorf("ospf event missing message")
		}
		return queue.Event{Src: src, Dst: dst, Payload: ospfMsg{Src: src, Msg: decodeOspfMsg(*ed.Ospf)}}, nil
	default:
		return queue.Event{}, fmt.Errorf("unrecognized event kind %q", ed.Kind)
	}
}

func decodeOspfMsg(doc serialize.OspfMsgDoc) ospf.Message {
	switch {
	case doc.DDHeaders != nil:
		headers := make(map[ospf.LsaKey]ospf.LsaHeader, len(doc.DDHeaders))
		for i, kd := range doc.DDHeaders {
			h := ospf.LsaHeader{}
			if i < len(doc.DDSeqs) {
				h.Seq = doc.DDSeqs[i]
			}
			if i < len(doc.DDAges) {
				h.Age = doc.DDAges[i]
			}
			headers[decodeLsaKey(kd)] = h
		}
		return ospf.Message{DatabaseDescription: &ospf.DatabaseDescriptionMsg{Headers: headers}}
	case doc.LSRKeys != nil:
		var keys []ospf.LsaKey
		for _, kd := range doc.LSRKeys {
			keys = append(keys, decodeLsaKey(kd))
		}
		return ospf.Message{LinkStateRequest: &ospf.LinkStateRequestMsg{Keys: keys}}
	default:
		lsas := make(map[ospf.LsaKey]ospf.Lsa, len(doc.LULsas))
		for _, ld := range doc.LULsas {
			lsas[decodeLsaKey(ld.Key)] = decodeLsa(ld)
		}
		return ospf.Message{LinkStateUpdate: &ospf.LinkStateUpdateMsg{Lsas: lsas, Ack: doc.LUAck}}
	}
}

// UnmarshalKernel rebuilds a kernel from data written by Marshal. q is the
// (empty) queue implementation the restored kernel should use; its
// concrete type should match the one that produced data if queue_clock
// matters to the caller (only *queue.TimingModel carries one). newStatic
// and newRib build LPM containers exactly as they would for New.
func UnmarshalKernel[P prefix.P](
	data []byte,
	codec Codec[P],
	q queue.Queue,
	newStatic func() prefix.Map[P, router.StaticRoute],
	newRib func() prefix.Map[P, bgp.Route[P]],
) (*Kernel[P], error) {
	doc, err := serialize.Unmarshal(data)
	if err != nil {
		return nil, simerr.SerializationErrorf("unmarshal: %v", err)
	}

	mode := Global
	if doc.Mode == "local" {
		mode = LocalMode
	}

	k := &Kernel[P]{
		id:        uuid.New(),
		g:         graph.New(),
		routers:   make(map[RouterId]*router.Router[P]),
		nextID:    RouterId(doc.NextID),
		mode:      mode,
		locals:    make(map[RouterId]*ospf.Local),
		q:         q,
		tickCtr:   counter.New(),
		msgLimit:  doc.MsgLimit,
		newStatic: newStatic,
		newRib:    newRib,
	}
	k.log = logrus.WithField("kernel", k.id.String())

	for _, rd := range doc.Routers {
		id := RouterId(rd.ID)
		if err := k.g.AddRouter(id, rd.External); err != nil {
			return nil, simerr.TopologyErrorf("add router %d: %v", id, err)
		}
		k.routers[id] = router.New[P](rd.Name, id, bgp.ASN(rd.ASN), rd.External, newStatic, newRib)
	}

	for _, ld := range doc.Links {
		a, b := RouterId(ld.A), RouterId(ld.B)
		if err := k.g.AddLink(a, b); err != nil {
			return nil, simerr.TopologyErrorf("add link %d-%d: %v", a, b, err)
		}
		if err := k.g.SetWeight(a, b, graph.Weight(ld.Weight)); err != nil {
			return nil, simerr.TopologyErrorf("set weight %d-%d: %v", a, b, err)
		}
		if err := k.g.SetArea(a, b, graph.Area(ld.Area)); err != nil {
			return nil, simerr.TopologyErrorf("set area %d-%d: %v", a, b, err)
		}
	}

	k.oracle = ospf.NewOracle(k.g)
	if mode == Global {
		for id, rt := range k.routers {
			if !k.g.IsExternal(id) {
				rt.SetOracle(k.oracle)
			}
		}
	} else {
		for id, rt := range k.routers {
			if k.g.IsExternal(id) {
				continue
			}
			rt.SetLocal(k.localFor(id))
		}
		dbByRouter := make(map[RouterId]map[ospf.Area]map[ospf.LsaKey]ospf.Lsa)
		for _, dbd := range doc.OspfDatabases {
			id := RouterId(dbd.Router)
			m, ok := dbByRouter[id]
			if !ok {
				m = make(map[ospf.Area]map[ospf.LsaKey]ospf.Lsa)
				dbByRouter[id] = m
			}
			lsas := make(map[ospf.LsaKey]ospf.Lsa, len(dbd.Lsas))
			for _, ld := range dbd.Lsas {
				lsas[decodeLsaKey(ld.Key)] = decodeLsa(ld)
			}
			m[ospf.Area(dbd.Area)] = lsas
		}
		for id, dbs := range dbByRouter {
			if local, ok := k.locals[id]; ok {
				local.RestoreDatabases(dbs)
			}
		}
		for _, a := range k.g.Routers() {
			if k.g.IsExternal(a) {
				continue
			}
			for _, b := range k.g.Neighbors(a) {
				if a < b && !k.g.IsExternal(b) {
					k.bringUpAdjacency(a, b)
				}
			}
		}
	}

	lbSet := make(map[RouterId]bool, len(doc.LoadBalance))
	for _, id := range doc.LoadBalance {
		lbSet[RouterId(id)] = true
	}
	for id, rt := range k.routers {
		if lbSet[id] {
			rt.SetLoadBalancing(true)
		}
	}

	for _, sd := range doc.Sessions {
		a, b := RouterId(sd.A), RouterId(sd.B)
		role := parseSessionRole(sd.Role)
		k.routers[a].BGP().SetSession(b, role)
		k.routers[b].BGP().SetSession(a, mirrorSession(role))
	}

	for _, rmd := range doc.RouteMaps {
		rt, ok := k.routers[RouterId(rmd.Router)]
		if !ok {
			continue
		}
		var rules []bgp.Rule[P]
		for _, rd := range rmd.Rules {
			rule, err := decodeRule[P](codec, rd)
			if err != nil {
				return nil, simerr.SerializationErrorf("decode route map rule: %v", err)
			}
			rules = append(rules, rule)
		}
		dir := bgp.Incoming
		if rmd.Dir == "out" {
			dir = bgp.Outgoing
		}
		rt.BGP().SetRouteMap(RouterId(rmd.Peer), dir, bgp.NewRouteMap(rules...))
	}

	for _, srd := range doc.StaticRoutes {
		pfx, err := codec.Decode(srd.Prefix)
		if err != nil {
			return nil, simerr.SerializationErrorf("decode static route prefix: %v", err)
		}
		rt, ok := k.routers[RouterId(srd.Router)]
		if !ok {
			continue
		}
		rt.SetStaticRoute(pfx, router.StaticRoute{Kind: parseStaticKind(srd.Kind), NextHop: RouterId(srd.NextHop)})
	}

	for _, ad := range doc.Advertised {
		pfx, err := codec.Decode(ad.Prefix)
		if err != nil {
			return nil, simerr.SerializationErrorf("decode advertised prefix: %v", err)
		}
		rt, ok := k.routers[RouterId(ad.Router)]
		if !ok {
			continue
		}
		route := bgp.Route[P]{Prefix: pfx, NextHop: RouterId(ad.Router), MED: ad.MED, Community: make(map[bgp.Community]bool)}
		for _, asn := range ad.ASPath {
			route.ASPath = append(route.ASPath, bgp.ASN(asn))
		}
		for _, s := range ad.Community {
			c, err := bgp.ParseCommunity(s)
			if err != nil {
				return nil, simerr.SerializationErrorf("decode advertised community: %v", err)
			}
			route.Community[c] = true
		}
		rt.BGP().RestoreAdvertised(map[P]bgp.Route[P]{pfx: route})
	}

	for _, lrd := range doc.LocRib {
		rt, ok := k.routers[RouterId(lrd.Router)]
		if !ok {
			continue
		}
		route, err := decodeRouteDoc[P](codec, lrd.Route)
		if err != nil {
			return nil, simerr.SerializationErrorf("decode loc-rib route: %v", err)
		}
		rt.BGP().RestoreLocRib(map[P]bgp.Route[P]{route.Prefix: route})
	}

	// Events are re-pushed in snapshot (dispatch) order. BasicFIFO and
	// PerRouterFIFO reproduce the original relative order exactly; a
	// restored TimingModel resamples fresh delays per queue.TimingModel's
	// documented round-trip limitation, so doc.QueueClock is carried in
	// the document for inspection but isn't replayed into the new queue.
	for _, ed := range doc.Queue {
		ev, err := decodeEvent[P](codec, ed)
		if err != nil {
			return nil, simerr.SerializationErrorf("decode queued event: %v", err)
		}
		k.q.Push(ev)
	}

	return k, nil
}

func encodeOspfMsg(m ospf.Message) *serialize.OspfMsgDoc {
	doc := &serialize.OspfMsgDoc{}
	switch {
	case m.DatabaseDescription != nil:
		for k, h := range m.DatabaseDescription.Headers {
			doc.DDHeaders = append(doc.DDHeaders, encodeLsaKey(k))
			doc.DDSeqs = append(doc.DDSeqs, h.Seq)
			doc.DDAges = append(doc.DDAges, h.Age)
		}
	case m.LinkStateRequest != nil:
		for _, k := range m.LinkStateRequest.Keys {
			doc.LSRKeys = append(doc.LSRKeys, encodeLsaKey(k))
		}
	case m.LinkStateUpdate != nil:
		doc.LUAck = m.LinkStateUpdate.Ack
		for k, lsa := range m.LinkStateUpdate.Lsas {
			doc.LULsas = append(doc.LULsas, encodeLsa(k, lsa))
		}
	}
	return doc
}
