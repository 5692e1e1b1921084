package capture

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-ip-router/internal/router"
)

var (
	hostMac   = router.MacAddr{0x0a, 0, 0, 0, 0, 0xaa}
	routerMac = router.MacAddr{0x02, 0, 0, 0, 0, 0x01}
)

func arpRequest() []byte {
	return router.BuildArpFrame(router.BroadcastMac, router.ARP_OP_REQUEST,
		hostMac, 0x0a000164, router.MacAddr{}, 0x0a000101)
}

func echoRequest() []byte {
	icmp := router.SerializeICMPMessage(&router.ICMPHeader{
		Type: router.ICMP_TYPE_ECHO_REQUEST,
		Rest: 1<<16 | 2,
	}, []byte("hello"))
	ip := router.BuildIPPacket(router.PROTO_ICMP, 7, 0x0a000164, 0x0a000101, icmp)
	return router.BuildEthernetFrame(routerMac, hostMac, router.ETHERTYPE_IP, ip)
}

func TestTapRecordsBothDirections(t *testing.T) {
	var buf bytes.Buffer
	var sent [][]byte

	tap, err := NewTap(&buf, router.TransmitFunc(func(frame []byte, intfName string) error {
		assert.Equal(t, "eth1", intfName)
		sent = append(sent, frame)
		return nil
	}))
	require.NoError(t, err)

	var handled int
	handler := tap.Handler(func(frame []byte, intfName string) {
		handled++
		assert.Equal(t, "eth1", intfName)
	})

	handler(arpRequest(), "eth1")
	require.NoError(t, tap.Transmit(echoRequest(), "eth1"))
	require.NoError(t, tap.Close())

	assert.Equal(t, 1, handled)
	require.Len(t, sent, 1)

	reader, err := pcapgo.NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, reader.LinkType())

	data, ci, err := reader.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, arpRequest(), data)
	assert.Equal(t, len(data), ci.Length)

	data, _, err = reader.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, echoRequest(), data)

	_, _, err = reader.ReadPacketData()
	assert.ErrorIs(t, err, io.EOF)
}

func TestTapWithoutTransmitter(t *testing.T) {
	tap, err := NewTap(io.Discard, nil)
	require.NoError(t, err)
	assert.Error(t, tap.Transmit(echoRequest(), "eth1"))
}

func TestOpenTapWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.pcap")

	tap, err := OpenTap(path, router.TransmitFunc(func([]byte, string) error { return nil }))
	require.NoError(t, err)
	require.NoError(t, tap.Transmit(arpRequest(), "eth1"))
	require.NoError(t, tap.Close())
	require.NoError(t, tap.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	require.NoError(t, err)
	data, _, err := reader.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, arpRequest(), data)
}

func TestSummary(t *testing.T) {
	assert.Equal(t,
		"0a:00:00:00:00:aa > ff:ff:ff:ff:ff:ff ARP who-has 10.0.1.1 tell 10.0.1.100",
		Summary(arpRequest()))

	s := Summary(echoRequest())
	assert.Contains(t, s, "IPv4 10.0.1.100 > 10.0.1.1 ttl 64")
	assert.Contains(t, s, "ICMP EchoRequest id 1 seq 2")

	assert.Contains(t, Summary([]byte{1, 2, 3}), "[")
}
