package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupLPMPrefersLongerPrefix(t *testing.T) {
	for _, order := range []string{"short-first", "long-first"} {
		t.Run(order, func(t *testing.T) {
			rt := InitRoutingTable()
			add := func(dest string, prefix uint8, oif string) {
				require.NoError(t, rt.AddRoute(mustIP(t, dest), MaskFromPrefixLen(prefix), 0, oif))
			}
			if order == "short-first" {
				add("10.0.0.0", 8, "A")
				add("10.0.0.0", 24, "B")
			} else {
				add("10.0.0.0", 24, "B")
				add("10.0.0.0", 8, "A")
			}

			route := rt.LookupLPM(mustIP(t, "10.0.0.5"))
			require.NotNil(t, route)
			assert.Equal(t, "B", route.OIF)

			route = rt.LookupLPM(mustIP(t, "10.1.0.5"))
			require.NotNil(t, route)
			assert.Equal(t, "A", route.OIF)

			assert.Nil(t, rt.LookupLPM(mustIP(t, "11.0.0.1")))
		})
	}
}

func TestLookupLPMDefaultRoute(t *testing.T) {
	rt := InitRoutingTable()
	require.NoError(t, rt.AddRoute(0, 0, mustIP(t, "10.0.1.254"), "eth1"))
	require.NoError(t, rt.AddRoute(mustIP(t, "192.168.0.0"), MaskFromPrefixLen(16), 0, "eth2"))

	route := rt.LookupLPM(mustIP(t, "8.8.8.8"))
	require.NotNil(t, route)
	assert.Equal(t, "eth1", route.OIF)
	assert.Equal(t, mustIP(t, "10.0.1.254"), route.GatewayIP)

	route = rt.LookupLPM(mustIP(t, "192.168.4.4"))
	require.NotNil(t, route)
	assert.Equal(t, "eth2", route.OIF)
}

func TestLookupLPMTieKeepsFirst(t *testing.T) {
	rt := InitRoutingTable()
	require.NoError(t, rt.AddRoute(mustIP(t, "172.16.0.0"), MaskFromPrefixLen(16), mustIP(t, "10.0.1.2"), "eth1"))
	require.NoError(t, rt.AddRoute(mustIP(t, "172.16.0.0"), MaskFromPrefixLen(16), mustIP(t, "10.0.2.2"), "eth2"))

	route := rt.LookupLPM(mustIP(t, "172.16.9.9"))
	require.NotNil(t, route)
	assert.Equal(t, "eth1", route.OIF)
}

func TestLookupLPMIsPure(t *testing.T) {
	rt := InitRoutingTable()
	require.NoError(t, rt.AddRoute(mustIP(t, "10.0.0.0"), MaskFromPrefixLen(8), 0, "eth1"))

	first := rt.LookupLPM(mustIP(t, "10.2.3.4"))
	first.OIF = "mutated"
	second := rt.LookupLPM(mustIP(t, "10.2.3.4"))

	require.NotNil(t, second)
	assert.Equal(t, "eth1", second.OIF)
	assert.Equal(t, 1, rt.Len())
}

func TestAddRouteValidation(t *testing.T) {
	rt := InitRoutingTable()

	assert.Error(t, rt.AddRoute(mustIP(t, "10.0.0.0"), MaskFromPrefixLen(8), 0, ""))
	assert.Error(t, rt.AddRoute(mustIP(t, "10.0.0.0"), mustIP(t, "255.0.255.0"), 0, "eth1"))
	assert.Equal(t, 0, rt.Len())

	// Host bits are cleared on insert
	require.NoError(t, rt.AddRoute(mustIP(t, "10.1.2.3"), MaskFromPrefixLen(16), 0, "eth1"))
	assert.Equal(t, mustIP(t, "10.1.0.0"), rt.Routes()[0].Dest)
}

func TestMaskHelpers(t *testing.T) {
	assert.Equal(t, uint32(0), MaskFromPrefixLen(0))
	assert.Equal(t, mustIP(t, "255.255.255.0"), MaskFromPrefixLen(24))
	assert.Equal(t, ^uint32(0), MaskFromPrefixLen(32))
	assert.Equal(t, 24, PrefixLen(MaskFromPrefixLen(24)))
	assert.Equal(t, 0, PrefixLen(0))
}

func TestParseMac(t *testing.T) {
	mac, err := ParseMac("0a:00:00:00:00:aa")
	require.NoError(t, err)
	assert.Equal(t, hostAMac, mac)
	assert.Equal(t, "0a:00:00:00:00:aa", mac.String())

	_, err = ParseMac("0a:00:00:00:00")
	assert.Error(t, err)
	_, err = ParseMac("0a:00:00:00:00:zz")
	assert.Error(t, err)
	_, err = ParseMac("0a:00:00:00:00:aa:00:01")
	assert.Error(t, err, "EUI-64 is not an Ethernet address")

	mac, err = ParseMac("0a-00-00-00-00-aa")
	require.NoError(t, err)
	assert.Equal(t, hostAMac, mac)

	assert.True(t, BroadcastMac.IsBroadcast())
	assert.False(t, mac.IsBroadcast())
}
