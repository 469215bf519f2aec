package serialize_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/transitorykris/netsim/serialize"
)

func sampleDoc() *serialize.Doc {
	med := uint32(10)
	localPref := uint32(100)
	cost := uint32(5)
	return &serialize.Doc{
		Mode:        "local",
		MsgLimit:    1000,
		NextID:      4,
		LoadBalance: []uint32{2},
		Routers: []serialize.RouterDoc{
			{ID: 1, Name: "r1", ASN: 100, External: false},
			{ID: 2, Name: "r2", ASN: 100, External: false},
			{ID: 3, Name: "r3", ASN: 200, External: true},
		},
		Links: []serialize.LinkDoc{
			{A: 1, B: 2, Weight: 1, Area: 0},
			{A: 2, B: 3, Weight: 1, Area: 0},
		},
		Sessions: []serialize.SessionDoc{
			{A: 1, B: 2, Role: "ibgp-peer"},
			{A: 2, B: 3, Role: "ebgp"},
		},
		RouteMaps: []serialize.RouteMapDoc{
			{
				Router: 2,
				Peer:   3,
				Dir:    "in",
				Rules: []serialize.RuleDoc{
					{
						Order: 0,
						State: "deny",
						Match: serialize.MatchDoc{Prefix: []string{"10.0.0.0/24"}},
					},
				},
			},
		},
		StaticRoutes: []serialize.StaticRouteDoc{
			{Router: 1, Prefix: "0.0.0.0/0", Kind: "indirect", NextHop: 2},
		},
		Advertised: []serialize.AdvertisedDoc{
			{Router: 3, Prefix: "203.0.113.0/24", ASPath: []uint32{200}, MED: &med},
		},
		LocRib: []serialize.LocRibDoc{
			{
				Router: 1,
				Route: serialize.RouteDoc{
					Prefix:    "203.0.113.0/24",
					ASPath:    []uint32{200},
					NextHop:   3,
					LocalPref: &localPref,
				},
			},
		},
		Queue: []serialize.EventDoc{
			{Src: 2, Dst: 1, Kind: "bgp_update", BgpUpdate: &serialize.RouteDoc{Prefix: "203.0.113.0/24", NextHop: 3}},
		},
		QueueClock: 42,
		OspfDatabases: []serialize.OspfDbDoc{
			{
				Router: 1,
				Area:   0,
				Lsas: []serialize.LsaDoc{
					{
						Key:         serialize.LsaKeyDoc{Type: "router", Originator: 1, Target: 1},
						Seq:         1,
						Age:         0,
						Adjacencies: []serialize.AdjDoc{{Target: 2, Weight: 1}},
					},
					{
						Key:  serialize.LsaKeyDoc{Type: "external", Originator: 2, Target: 3},
						Seq:  1,
						Cost: &cost,
					},
				},
			},
		},
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	doc := sampleDoc()

	data, err := serialize.Marshal(doc)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := serialize.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, doc, restored)
}

func TestMarshalOmitsEmptyOptionalFields(t *testing.T) {
	doc := &serialize.Doc{Mode: "global", Routers: []serialize.RouterDoc{{ID: 1, Name: "r1"}}}

	data, err := serialize.Marshal(doc)
	require.NoError(t, err)
	require.NotContains(t, string(data), "queue_clock")
	require.NotContains(t, string(data), "ospf_databases")
}

func TestUnmarshalRejectsMalformedYaml(t *testing.T) {
	_, err := serialize.Unmarshal([]byte("mode: [this is not a valid doc"))
	require.Error(t, err)
}

func TestAdvertisedDocOptionalFieldsRoundTrip(t *testing.T) {
	doc := &serialize.Doc{
		Routers: []serialize.RouterDoc{{ID: 1, Name: "r1", External: true}},
		Advertised: []serialize.AdvertisedDoc{
			{Router: 1, Prefix: "198.51.100.0/24", Community: []string{"100:1", "100:2"}},
		},
	}

	data, err := serialize.Marshal(doc)
	require.NoError(t, err)

	restored, err := serialize.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, doc.Advertised, restored.Advertised)
	require.Nil(t, restored.Advertised[0].MED, "an omitted MED must round-trip as nil, not a zero value")
}
