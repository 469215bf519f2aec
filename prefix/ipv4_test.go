package prefix_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/transitorykris/netsim/prefix"
)

func TestIPv4PrefixLess(t *testing.T) {
	narrow := prefix.MustIPv4Prefix("10.0.0.0/24")
	wide := prefix.MustIPv4Prefix("10.0.0.0/16")
	require.True(t, wide.Less(narrow), "a shorter prefix length must sort before a longer one")
	require.False(t, narrow.Less(wide))
}

func TestParseIPv4PrefixRoundTrip(t *testing.T) {
	p, err := prefix.ParseIPv4Prefix("192.0.2.0/24")
	require.NoError(t, err)
	require.Equal(t, "192.0.2.0/24", p.String())
}

func TestParseIPv4PrefixMalformed(t *testing.T) {
	_, err := prefix.ParseIPv4Prefix("not-a-prefix")
	require.Error(t, err)
}

func TestNewIPv4PrefixDeterministic(t *testing.T) {
	require.Equal(t, prefix.NewIPv4Prefix(5), prefix.NewIPv4Prefix(5))
	require.NotEqual(t, prefix.NewIPv4Prefix(5), prefix.NewIPv4Prefix(6))
}

func TestLPMMapGetLPM(t *testing.T) {
	m := prefix.NewLPMMap[string]()
	m.Insert(prefix.MustIPv4Prefix("10.0.0.0/8"), "supernet")
	m.Insert(prefix.MustIPv4Prefix("10.1.0.0/16"), "subnet")

	match, v, ok := m.GetLPM(prefix.MustIPv4Prefix("10.1.2.0/24"))
	require.True(t, ok)
	require.Equal(t, "subnet", v)
	require.Equal(t, prefix.MustIPv4Prefix("10.1.0.0/16"), match)

	match, v, ok = m.GetLPM(prefix.MustIPv4Prefix("10.2.2.0/24"))
	require.True(t, ok)
	require.Equal(t, "supernet", v)
	require.Equal(t, prefix.MustIPv4Prefix("10.0.0.0/8"), match)

	_, _, ok = m.GetLPM(prefix.MustIPv4Prefix("192.0.2.0/24"))
	require.False(t, ok)
}

func TestLPMMapRemove(t *testing.T) {
	m := prefix.NewLPMMap[string]()
	p := prefix.MustIPv4Prefix("10.0.0.0/24")
	m.Insert(p, "x")
	require.Equal(t, 1, m.Len())
	m.Remove(p)
	require.Equal(t, 0, m.Len())
	_, ok := m.Get(p)
	require.False(t, ok)
}
