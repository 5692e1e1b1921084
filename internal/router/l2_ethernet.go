package router

import (
	"encoding/binary"
	"fmt"

	"go-ip-router/internal/logger"
)

// Ethernet frame constants
const (
	MAC_ADDR_SIZE        = 6    // 6 bytes for MAC address
	ETHERNET_HDR_SIZE    = 14   // 6 (dst) + 6 (src) + 2 (ethertype)
	ETHERNET_MAX_PAYLOAD = 1500 // Maximum payload size (MTU)
)

// EtherType values the router understands
const (
	ETHERTYPE_IP  = 0x0800 // IPv4
	ETHERTYPE_ARP = 0x0806 // ARP
)

// EthernetHeader represents the Ethernet II frame header
type EthernetHeader struct {
	DstMac    MacAddr // Destination MAC address (6 bytes)
	SrcMac    MacAddr // Source MAC address (6 bytes)
	Ethertype uint16  // EtherType field (2 bytes) - identifies protocol
}

// SerializeEthernetHeader writes hdr into the first ETHERNET_HDR_SIZE bytes
// of buffer. The caller guarantees the length.
func SerializeEthernetHeader(hdr *EthernetHeader, buffer []byte) {
	// Copy destination MAC (6 bytes)
	copy(buffer[0:6], hdr.DstMac[:])

	// Copy source MAC (6 bytes)
	copy(buffer[6:12], hdr.SrcMac[:])

	// Copy EtherType (2 bytes, big-endian/network byte order)
	binary.BigEndian.PutUint16(buffer[12:14], hdr.Ethertype)
}

// DeserializeEthernetHeader parses bytes into Ethernet header
func DeserializeEthernetHeader(buffer []byte) (*EthernetHeader, error) {
	if len(buffer) < ETHERNET_HDR_SIZE {
		return nil, fmt.Errorf("ethernet header: need %d bytes, got %d: %w",
			ETHERNET_HDR_SIZE, len(buffer), ErrTruncated)
	}

	hdr := &EthernetHeader{}

	// Extract destination MAC (6 bytes)
	copy(hdr.DstMac[:], buffer[0:6])

	// Extract source MAC (6 bytes)
	copy(hdr.SrcMac[:], buffer[6:12])

	// Extract EtherType (2 bytes, big-endian)
	hdr.Ethertype = binary.BigEndian.Uint16(buffer[12:14])

	return hdr, nil
}

// BuildEthernetFrame encapsulates payload into a freshly allocated frame
func BuildEthernetFrame(dst, src MacAddr, ethertype uint16, payload []byte) []byte {
	frame := make([]byte, ETHERNET_HDR_SIZE+len(payload))
	SerializeEthernetHeader(&EthernetHeader{
		DstMac:    dst,
		SrcMac:    src,
		Ethertype: ethertype,
	}, frame)
	copy(frame[ETHERNET_HDR_SIZE:], payload)
	return frame
}

// rewriteEthernetAddrs sets source and destination MAC in place
func rewriteEthernetAddrs(frame []byte, src, dst MacAddr) {
	copy(frame[0:6], dst[:])
	copy(frame[6:12], src[:])
}

// HandleFrame is the entry point into the router for received frames.
// It is invoked once per frame by the transport; frame is lent for the
// duration of the call and never retained.
func (r *Router) HandleFrame(frame []byte, intfName string) {
	if len(frame) < ETHERNET_HDR_SIZE {
		logger.Debug("L2: Frame too small on %s: %d bytes (minimum %d)",
			intfName, len(frame), ETHERNET_HDR_SIZE)
		return
	}

	iif := r.interfaces.FindInterface(intfName)
	if iif == nil {
		logger.Warn("L2: Frame received on unknown interface %q", intfName)
		return
	}

	eth_hdr, err := DeserializeEthernetHeader(frame)
	if err != nil {
		logger.Debug("L2: Failed to parse Ethernet header: %v", err)
		return
	}

	logger.Debug("L2: %s received frame (%d bytes, type 0x%04x) from %s",
		intfName, len(frame), eth_hdr.Ethertype, eth_hdr.SrcMac)

	// Dispatch based on EtherType
	switch eth_hdr.Ethertype {
	case ETHERTYPE_ARP:
		r.handleArp(frame, eth_hdr, iif)
	case ETHERTYPE_IP:
		r.handleIP(frame, eth_hdr, iif)
	default:
		logger.Debug("L2: Dropping frame with unknown EtherType 0x%04x", eth_hdr.Ethertype)
	}
}
