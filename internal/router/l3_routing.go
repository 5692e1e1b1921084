package router

import (
	"encoding/binary"
	"fmt"

	"go-ip-router/internal/logger"
)

// PROTO_ICMP is the only protocol the router serves locally
const PROTO_ICMP = 1

const (
	IP_HDR_SIZE    = 20 // header without options
	IP_DEFAULT_TTL = 64
	IP_FLAG_DF     = 0x02
)

// IPHeader represents the IPv4 header (20 bytes without options)
type IPHeader struct {
	Version    uint8  // 4 bits: IP version (4 for IPv4)
	IHL        uint8  // 4 bits: Header length in 32-bit words (5 for 20-byte header without options)
	TOS        uint8  // Type of Service
	TotalLen   uint16 // Total length of IP packet (header + payload)
	ID         uint16 // Identification
	Flags      uint8  // 3 bits: Unused, DF, MF flags
	FragOffset uint16 // 13 bits: Fragment offset
	TTL        uint8  // Time to Live
	Protocol   uint8  // Protocol (1=ICMP, 6=TCP, 17=UDP, etc.)
	Checksum   uint16 // Header checksum
	SrcIP      uint32 // Source IP address
	DstIP      uint32 // Destination IP address
}

// InitializeIPHeader initializes an IP header with default values
func InitializeIPHeader(hdr *IPHeader) {
	hdr.Version = 4
	hdr.IHL = 5 // 5 * 4 = 20 bytes (no options)
	hdr.TOS = 0
	hdr.TotalLen = 0 // To be filled by caller
	hdr.ID = 0
	hdr.Flags = IP_FLAG_DF
	hdr.FragOffset = 0
	hdr.TTL = IP_DEFAULT_TTL
	hdr.Protocol = 0 // To be filled by caller
	hdr.Checksum = 0 // Computed on serialization
	hdr.SrcIP = 0    // To be filled by caller
	hdr.DstIP = 0    // To be filled by caller
}

// GetIPHeaderLen returns the IP header length in bytes
func GetIPHeaderLen(hdr *IPHeader) int {
	return int(hdr.IHL) * 4
}

// SerializeIPHeader converts IP header to bytes (20 bytes for basic header).
// The checksum field is always recomputed.
func SerializeIPHeader(hdr *IPHeader) []byte {
	buf := make([]byte, IP_HDR_SIZE)

	// Byte 0: Version (4 bits) + IHL (4 bits); options are never emitted
	buf[0] = (hdr.Version << 4) | 5
	buf[1] = hdr.TOS
	binary.BigEndian.PutUint16(buf[2:4], hdr.TotalLen)
	binary.BigEndian.PutUint16(buf[4:6], hdr.ID)

	// Bytes 6-7: Flags (3 bits) + Fragment Offset (13 bits)
	flagsAndOffset := (uint16(hdr.Flags) << 13) | (hdr.FragOffset & 0x1FFF)
	binary.BigEndian.PutUint16(buf[6:8], flagsAndOffset)

	buf[8] = hdr.TTL
	buf[9] = hdr.Protocol
	binary.BigEndian.PutUint32(buf[12:16], hdr.SrcIP)
	binary.BigEndian.PutUint32(buf[16:20], hdr.DstIP)

	setChecksum(buf, 10)
	hdr.Checksum = binary.BigEndian.Uint16(buf[10:12])

	return buf
}

// DeserializeIPHeader parses bytes into IP header
func DeserializeIPHeader(buf []byte) (*IPHeader, error) {
	if len(buf) < IP_HDR_SIZE {
		return nil, fmt.Errorf("ip header: need %d bytes, got %d: %w", IP_HDR_SIZE, len(buf), ErrTruncated)
	}

	hdr := &IPHeader{}

	hdr.Version = (buf[0] >> 4) & 0x0F
	hdr.IHL = buf[0] & 0x0F
	hdr.TOS = buf[1]
	hdr.TotalLen = binary.BigEndian.Uint16(buf[2:4])
	hdr.ID = binary.BigEndian.Uint16(buf[4:6])

	flagsAndOffset := binary.BigEndian.Uint16(buf[6:8])
	hdr.Flags = uint8((flagsAndOffset >> 13) & 0x07)
	hdr.FragOffset = flagsAndOffset & 0x1FFF

	hdr.TTL = buf[8]
	hdr.Protocol = buf[9]
	hdr.Checksum = binary.BigEndian.Uint16(buf[10:12])
	hdr.SrcIP = binary.BigEndian.Uint32(buf[12:16])
	hdr.DstIP = binary.BigEndian.Uint32(buf[16:20])

	return hdr, nil
}

// ====== Routing table ======

// L3Route represents a routing table entry
type L3Route struct {
	Dest      uint32 // Destination network
	Mask      uint32 // Netmask
	GatewayIP uint32 // Next hop; 0 means the destination is directly attached
	OIF       string // Outgoing interface name
}

func (route *L3Route) String() string {
	return fmt.Sprintf("%s/%d via %s dev %s",
		IPUint32ToString(route.Dest), PrefixLen(route.Mask),
		IPUint32ToString(route.GatewayIP), route.OIF)
}

// Matches checks whether ip falls inside the route's prefix
func (route *L3Route) Matches(ip uint32) bool {
	return ip&route.Mask == route.Dest&route.Mask
}

// RoutingTable is the static forwarding table. It is filled before the
// router starts and only read afterwards.
type RoutingTable struct {
	routes []L3Route
}

// InitRoutingTable initializes a new routing table
func InitRoutingTable() *RoutingTable {
	return &RoutingTable{
		routes: make([]L3Route, 0),
	}
}

// AddRoute appends a route. Entries keep their insertion order, which
// breaks ties between equally long prefixes.
func (rt *RoutingTable) AddRoute(dest, mask, gateway uint32, oif string) error {
	if oif == "" {
		return fmt.Errorf("route %s/%d has no interface", IPUint32ToString(dest), PrefixLen(mask))
	}
	if mask != MaskFromPrefixLen(uint8(PrefixLen(mask))) {
		return fmt.Errorf("route %s: non-contiguous mask %s", IPUint32ToString(dest), IPUint32ToString(mask))
	}

	route := L3Route{
		Dest:      dest & mask,
		Mask:      mask,
		GatewayIP: gateway,
		OIF:       oif,
	}
	rt.routes = append(rt.routes, route)

	logger.Debug("Added route %s", route.String())
	return nil
}

// Routes returns a copy of the entries in table order
func (rt *RoutingTable) Routes() []L3Route {
	out := make([]L3Route, len(rt.routes))
	copy(out, rt.routes)
	return out
}

// Len returns the number of routes
func (rt *RoutingTable) Len() int {
	return len(rt.routes)
}

// LookupLPM performs a longest prefix match over the whole table. A route
// replaces the current best only when its mask is strictly longer, so the
// first of several equally specific routes wins.
func (rt *RoutingTable) LookupLPM(destIP uint32) *L3Route {
	var bestRoute *L3Route
	bestLen := -1

	for i := range rt.routes {
		route := &rt.routes[i]
		if !route.Matches(destIP) {
			continue
		}
		if l := PrefixLen(route.Mask); l > bestLen {
			bestLen = l
			bestRoute = route
		}
	}

	if bestRoute == nil {
		logger.Debug("LPM: No matching route for %s", IPUint32ToString(destIP))
		return nil
	}

	logger.Debug("LPM: %s -> %s", IPUint32ToString(destIP), bestRoute.String())
	found := *bestRoute
	return &found
}
