// Package serialize defines the wire format for a kernel snapshot: plain
// data structs yaml.v3 can marshal directly, with every RouterId and
// prefix reduced to a string or integer so the format carries no
// generic type parameters of its own. Package network owns converting
// a live Kernel[P] to and from a Doc, since only it can see the
// concrete payload types riding in its event queue.
package serialize

import "gopkg.in/yaml.v3"

// Doc is the entire serialized state of one kernel, per §6: topology,
// per-router configuration, and in-flight queue contents.
type Doc struct {
	Mode         string           `yaml:"mode"`
	MsgLimit     int              `yaml:"msg_limit"`
	NextID       uint32           `yaml:"next_id"`
	LoadBalance  []uint32         `yaml:"load_balancing_routers"`
	Routers      []RouterDoc      `yaml:"routers"`
	Links        []LinkDoc        `yaml:"links"`
	Sessions     []SessionDoc     `yaml:"sessions"`
	RouteMaps    []RouteMapDoc    `yaml:"route_maps"`
	StaticRoutes []StaticRouteDoc `yaml:"static_routes"`
	Advertised   []AdvertisedDoc  `yaml:"advertised"`
	LocRib       []LocRibDoc      `yaml:"loc_rib"`
	Queue        []EventDoc       `yaml:"queue"`
	QueueClock   uint64           `yaml:"queue_clock,omitempty"`
	OspfDatabases []OspfDbDoc     `yaml:"ospf_databases,omitempty"`
}

// RouterDoc is one router's identity.
type RouterDoc struct {
	ID       uint32 `yaml:"id"`
	Name     string `yaml:"name"`
	ASN      uint32 `yaml:"asn"`
	External bool   `yaml:"external"`
}

// LinkDoc is one physical link.
type LinkDoc struct {
	A      uint32 `yaml:"a"`
	B      uint32 `yaml:"b"`
	Weight uint32 `yaml:"weight"`
	Area   uint32 `yaml:"area"`
}

// SessionDoc is one directed BGP session: A's view of its role towards B.
type SessionDoc struct {
	A    uint32 `yaml:"a"`
	B    uint32 `yaml:"b"`
	Role string `yaml:"role"` // "ebgp" | "ibgp-peer" | "ibgp-client"
}

// StaticRouteDoc is one configured static route.
type StaticRouteDoc struct {
	Router  uint32 `yaml:"router"`
	Prefix  string `yaml:"prefix"`
	Kind    string `yaml:"kind"` // "direct" | "indirect" | "drop"
	NextHop uint32 `yaml:"next_hop,omitempty"`
}

// AdvertisedDoc is one externally-originated route.
type AdvertisedDoc struct {
	Router    uint32   `yaml:"router"`
	Prefix    string   `yaml:"prefix"`
	ASPath    []uint32 `yaml:"as_path,omitempty"`
	MED       *uint32  `yaml:"med,omitempty"`
	Community []string `yaml:"community,omitempty"`
}

// LocRibDoc is one router's selected LOC-RIB route for one prefix,
// carried verbatim across a round trip rather than re-derived, since
// RIB-in isn't itself part of the serialized state.
type LocRibDoc struct {
	Router uint32   `yaml:"router"`
	Route  RouteDoc `yaml:"route"`
}

// OspfDbDoc is one router's per-area LSA database, carried so a
// LocalMode kernel reconverges to the same SPF result after a round trip
// instead of starting from an empty database.
type OspfDbDoc struct {
	Router uint32   `yaml:"router"`
	Area   uint32   `yaml:"area"`
	Lsas   []LsaDoc `yaml:"lsas"`
}

// MatchDoc mirrors bgp.Match.
type MatchDoc struct {
	Prefix        []string `yaml:"prefix,omitempty"`
	ASPathHas     *uint32  `yaml:"as_path_has,omitempty"`
	ASPathMinLen  *int     `yaml:"as_path_min_len,omitempty"`
	ASPathMaxLen  *int     `yaml:"as_path_max_len,omitempty"`
	NextHop       *uint32  `yaml:"next_hop,omitempty"`
	Community     *string  `yaml:"community,omitempty"`
	DenyCommunity *string  `yaml:"deny_community,omitempty"`
}

// ActionDoc mirrors bgp.SetAction.
type ActionDoc struct {
	NextHop      *uint32  `yaml:"next_hop,omitempty"`
	LocalPref    *uint32  `yaml:"local_pref,omitempty"`
	MED          *uint32  `yaml:"med,omitempty"`
	SetCommunity []string `yaml:"set_community,omitempty"`
	DelCommunity []string `yaml:"del_community,omitempty"`
}

// RuleDoc mirrors bgp.Rule.
type RuleDoc struct {
	Order   int          `yaml:"order"`
	State   string       `yaml:"state"` // "allow" | "deny"
	Match   MatchDoc     `yaml:"match"`
	Actions []ActionDoc  `yaml:"actions,omitempty"`
}

// RouteMapDoc is one (router, peer, direction) route-map binding.
type RouteMapDoc struct {
	Router uint32    `yaml:"router"`
	Peer   uint32    `yaml:"peer"`
	Dir    string    `yaml:"dir"` // "in" | "out"
	Rules  []RuleDoc `yaml:"rules"`
}

// RouteDoc mirrors bgp.Route.
type RouteDoc struct {
	Prefix       string   `yaml:"prefix"`
	ASPath       []uint32 `yaml:"as_path,omitempty"`
	NextHop      uint32   `yaml:"next_hop"`
	LocalPref    *uint32  `yaml:"local_pref,omitempty"`
	MED          *uint32  `yaml:"med,omitempty"`
	Community    []string `yaml:"community,omitempty"`
	OriginatorID *uint32  `yaml:"originator_id,omitempty"`
	ClusterList  []uint32 `yaml:"cluster_list,omitempty"`
}

// LsaKeyDoc mirrors ospf.LsaKey.
type LsaKeyDoc struct {
	Type       string `yaml:"type"` // "router" | "summary" | "external"
	Originator uint32 `yaml:"originator"`
	Target     uint32 `yaml:"target"`
}

// LsaDoc mirrors ospf.Lsa, keyed alongside its LsaKeyDoc.
type LsaDoc struct {
	Key         LsaKeyDoc `yaml:"key"`
	Seq         uint32    `yaml:"seq"`
	Age         uint32    `yaml:"age"`
	Adjacencies []AdjDoc  `yaml:"adjacencies,omitempty"` // router LSAs
	Cost        *uint32   `yaml:"cost,omitempty"`        // summary/external LSAs
}

// AdjDoc mirrors ospf.Adjacency.
type AdjDoc struct {
	Target uint32 `yaml:"target"`
	Weight uint32 `yaml:"weight"`
}

// OspfMsgDoc mirrors ospf.Message: exactly one of its three fields is
// set, matching the source type.
type OspfMsgDoc struct {
	DDHeaders []LsaKeyDoc `yaml:"dd_headers,omitempty"` // keys; DDSeqs/DDAges hold their headers, index by index
	DDAges    []uint32    `yaml:"dd_ages,omitempty"`
	DDSeqs    []uint32    `yaml:"dd_seqs,omitempty"`
	LSRKeys   []LsaKeyDoc `yaml:"lsr_keys,omitempty"`
	LUAck     bool        `yaml:"lu_ack,omitempty"`
	LULsas    []LsaDoc    `yaml:"lu_lsas,omitempty"`
}

// EventDoc is one pending queue event. Exactly one of BgpUpdate/
// BgpWithdraw/Ospf is set, matching Kind.
type EventDoc struct {
	Src         uint32      `yaml:"src"`
	Dst         uint32      `yaml:"dst"`
	Kind        string      `yaml:"kind"` // "bgp_update" | "bgp_withdraw" | "ospf"
	BgpUpdate   *RouteDoc   `yaml:"bgp_update,omitempty"`
	BgpWithdraw *string     `yaml:"bgp_withdraw,omitempty"`
	Ospf        *OspfMsgDoc `yaml:"ospf,omitempty"`
}

// Marshal encodes a Doc as YAML.
func Marshal(d *Doc) ([]byte, error) {
	return yaml.Marshal(d)
}

// Unmarshal decodes a Doc from YAML.
func Unmarshal(data []byte) (*Doc, error) {
	var d Doc
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
