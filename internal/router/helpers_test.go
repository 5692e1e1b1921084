package router

import (
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

// PROTO_UDP stands in for any protocol the router does not serve
const PROTO_UDP = 17

var (
	eth1Mac = MacAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	eth2Mac = MacAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	eth3Mac = MacAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x03}

	hostAMac = MacAddr{0x0a, 0x00, 0x00, 0x00, 0x00, 0xaa}
	gwBMac   = MacAddr{0x0a, 0x00, 0x00, 0x00, 0x00, 0xbb}
)

func mustIP(t testing.TB, s string) uint32 {
	t.Helper()
	ip, err := IPStringToUint32(s)
	require.NoError(t, err)
	return ip
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentFrame struct {
	frame []byte
	intf  string
}

// recorder is a Transmitter that keeps a copy of every frame
type recorder struct {
	mu   sync.Mutex
	sent []sentFrame
}

func (r *recorder) Transmit(frame []byte, intfName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	r.sent = append(r.sent, sentFrame{frame: cp, intf: intfName})
	return nil
}

// take returns the frames sent since the last call
func (r *recorder) take() []sentFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sent
	r.sent = nil
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type testRouter struct {
	*Router
	tx    *recorder
	clock *fakeClock
}

// newTestRouter builds a three interface router:
//
//	eth1 10.0.1.1     10.0.1.0/24 direct
//	eth2 10.0.2.1     10.0.2.0/24 direct, 172.16.0.0/16 via 10.0.2.2
//	eth3 192.168.3.1  192.168.3.0/24 direct
func newTestRouter(t testing.TB) *testRouter {
	t.Helper()

	intfs := []Interface{
		{Name: "eth1", Mac: eth1Mac, IP: mustIP(t, "10.0.1.1"), Mask: MaskFromPrefixLen(24)},
		{Name: "eth2", Mac: eth2Mac, IP: mustIP(t, "10.0.2.1"), Mask: MaskFromPrefixLen(24)},
		{Name: "eth3", Mac: eth3Mac, IP: mustIP(t, "192.168.3.1"), Mask: MaskFromPrefixLen(24)},
	}

	rt := InitRoutingTable()
	require.NoError(t, rt.AddRoute(mustIP(t, "10.0.1.0"), MaskFromPrefixLen(24), 0, "eth1"))
	require.NoError(t, rt.AddRoute(mustIP(t, "10.0.2.0"), MaskFromPrefixLen(24), 0, "eth2"))
	require.NoError(t, rt.AddRoute(mustIP(t, "172.16.0.0"), MaskFromPrefixLen(16), mustIP(t, "10.0.2.2"), "eth2"))
	require.NoError(t, rt.AddRoute(mustIP(t, "192.168.3.0"), MaskFromPrefixLen(24), 0, "eth3"))

	clock := newFakeClock()
	tx := &recorder{}
	r, err := New(intfs, rt, tx,
		WithName("R1"),
		WithArpCache(NewArpCache(WithClock(clock.Now))))
	require.NoError(t, err)

	return &testRouter{Router: r, tx: tx, clock: clock}
}

// buildIPFrame builds an Ethernet+IPv4 frame with a valid header checksum
func buildIPFrame(src, dst MacAddr, srcIP, dstIP uint32, ttl, proto uint8, payload []byte) []byte {
	hdr := &IPHeader{}
	InitializeIPHeader(hdr)
	hdr.ID = 0x1234
	hdr.TTL = ttl
	hdr.Protocol = proto
	hdr.SrcIP = srcIP
	hdr.DstIP = dstIP
	hdr.TotalLen = uint16(IP_HDR_SIZE + len(payload))

	pkt := append(SerializeIPHeader(hdr), payload...)
	return BuildEthernetFrame(dst, src, ETHERTYPE_IP, pkt)
}

// withIPOptions rebuilds an IP frame with a 4-byte options field
// (NOP NOP NOP EOL), so IHL becomes 6
func withIPOptions(frame []byte) []byte {
	ip := frame[ETHERNET_HDR_SIZE:]
	out := make([]byte, 0, len(frame)+4)
	out = append(out, frame[:ETHERNET_HDR_SIZE+IP_HDR_SIZE]...)
	out = append(out, 0x01, 0x01, 0x01, 0x00)
	out = append(out, ip[IP_HDR_SIZE:]...)

	out_ip := out[ETHERNET_HDR_SIZE:]
	out_ip[0] = 0x46
	binary.BigEndian.PutUint16(out_ip[2:4], uint16(len(out_ip)))
	setChecksum(out_ip[:IP_HDR_SIZE+4], 10)
	return out
}

func echoRequest(id, seq uint16, data []byte) []byte {
	return SerializeICMPMessage(&ICMPHeader{
		Type: ICMP_TYPE_ECHO_REQUEST,
		Rest: uint32(id)<<16 | uint32(seq),
	}, data)
}

// decode parses frame with gopacket and fails on decode errors
func decode(t testing.TB, frame []byte) gopacket.Packet {
	t.Helper()
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		t.Fatalf("decode: %v", errLayer.Error())
	}
	return pkt
}

func ethLayer(t testing.TB, pkt gopacket.Packet) *layers.Ethernet {
	t.Helper()
	l, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	require.True(t, ok, "no Ethernet layer")
	return l
}

func ipLayer(t testing.TB, pkt gopacket.Packet) *layers.IPv4 {
	t.Helper()
	l, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	require.True(t, ok, "no IPv4 layer")
	return l
}

func icmpLayer(t testing.TB, pkt gopacket.Packet) *layers.ICMPv4 {
	t.Helper()
	l, ok := pkt.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
	require.True(t, ok, "no ICMPv4 layer")
	return l
}

func arpLayer(t testing.TB, pkt gopacket.Packet) *layers.ARP {
	t.Helper()
	l, ok := pkt.Layer(layers.LayerTypeARP).(*layers.ARP)
	require.True(t, ok, "no ARP layer")
	return l
}

func hw(mac MacAddr) net.HardwareAddr {
	return net.HardwareAddr(mac[:])
}

// requireValidChecksums checks IP and ICMP checksums of a router-authored
// frame
func requireValidChecksums(t testing.TB, frame []byte) {
	t.Helper()
	ip := frame[ETHERNET_HDR_SIZE:]
	hdr_len := int(ip[0]&0x0f) * 4
	require.True(t, ValidChecksum(ip[:hdr_len], 10), "ip checksum")
	if ip[9] == PROTO_ICMP {
		require.True(t, ValidICMPChecksum(ip[hdr_len:]), "icmp checksum")
	}
}
