package router

import (
	"encoding/binary"
	"fmt"

	"go-ip-router/internal/logger"
)

// ====== ARP (Address Resolution Protocol) ======

// ARP operation codes
const (
	ARP_OP_REQUEST = 1 // ARP request
	ARP_OP_REPLY   = 2 // ARP reply
)

// ARP hardware and protocol types
const (
	ARP_HW_TYPE_ETHERNET = 1      // Ethernet
	ARP_PROTO_TYPE_IP    = 0x0800 // IPv4
	ARP_HW_ADDR_LEN      = 6      // MAC address length
	ARP_PROTO_ADDR_LEN   = 4      // IPv4 address length
	ARP_HDR_SIZE         = 28     // ARP header size (fixed)
)

// ArpHeader represents ARP header format
type ArpHeader struct {
	HwType       uint16  // Hardware type (1 for Ethernet)
	ProtoType    uint16  // Protocol type (0x0800 for IPv4)
	HwAddrLen    uint8   // Hardware address length (6 for MAC)
	ProtoAddrLen uint8   // Protocol address length (4 for IPv4)
	OpCode       uint16  // Operation code (request=1, reply=2)
	SrcMac       MacAddr // Sender hardware address
	SrcIP        uint32  // Sender protocol address
	DstMac       MacAddr // Target hardware address
	DstIP        uint32  // Target protocol address
}

// SerializeArpHeader converts an ARP header to its 28 byte wire form
func SerializeArpHeader(hdr *ArpHeader) []byte {
	buffer := make([]byte, ARP_HDR_SIZE)

	binary.BigEndian.PutUint16(buffer[0:2], hdr.HwType)
	binary.BigEndian.PutUint16(buffer[2:4], hdr.ProtoType)
	buffer[4] = hdr.HwAddrLen
	buffer[5] = hdr.ProtoAddrLen
	binary.BigEndian.PutUint16(buffer[6:8], hdr.OpCode)
	copy(buffer[8:14], hdr.SrcMac[:])
	binary.BigEndian.PutUint32(buffer[14:18], hdr.SrcIP)
	copy(buffer[18:24], hdr.DstMac[:])
	binary.BigEndian.PutUint32(buffer[24:28], hdr.DstIP)

	return buffer
}

// DeserializeArpHeader parses bytes into ARP header
func DeserializeArpHeader(buffer []byte) (*ArpHeader, error) {
	if len(buffer) < ARP_HDR_SIZE {
		return nil, fmt.Errorf("arp header: need %d bytes, got %d: %w",
			ARP_HDR_SIZE, len(buffer), ErrTruncated)
	}

	hdr := &ArpHeader{}
	hdr.HwType = binary.BigEndian.Uint16(buffer[0:2])
	hdr.ProtoType = binary.BigEndian.Uint16(buffer[2:4])
	hdr.HwAddrLen = buffer[4]
	hdr.ProtoAddrLen = buffer[5]
	hdr.OpCode = binary.BigEndian.Uint16(buffer[6:8])
	copy(hdr.SrcMac[:], buffer[8:14])
	hdr.SrcIP = binary.BigEndian.Uint32(buffer[14:18])
	copy(hdr.DstMac[:], buffer[18:24])
	hdr.DstIP = binary.BigEndian.Uint32(buffer[24:28])

	return hdr, nil
}

// isEthernetIPv4 checks the fixed fields of an Ethernet/IPv4 ARP packet
func (hdr *ArpHeader) isEthernetIPv4() bool {
	return hdr.HwType == ARP_HW_TYPE_ETHERNET &&
		hdr.ProtoType == ARP_PROTO_TYPE_IP &&
		hdr.HwAddrLen == ARP_HW_ADDR_LEN &&
		hdr.ProtoAddrLen == ARP_PROTO_ADDR_LEN
}

// BuildArpFrame builds a complete Ethernet+ARP frame
func BuildArpFrame(eth_dst MacAddr, op uint16, src_mac MacAddr, src_ip uint32, dst_mac MacAddr, dst_ip uint32) []byte {
	payload := SerializeArpHeader(&ArpHeader{
		HwType:       ARP_HW_TYPE_ETHERNET,
		ProtoType:    ARP_PROTO_TYPE_IP,
		HwAddrLen:    ARP_HW_ADDR_LEN,
		ProtoAddrLen: ARP_PROTO_ADDR_LEN,
		OpCode:       op,
		SrcMac:       src_mac,
		SrcIP:        src_ip,
		DstMac:       dst_mac,
		DstIP:        dst_ip,
	})
	return BuildEthernetFrame(eth_dst, src_mac, ETHERTYPE_ARP, payload)
}

// handleArp processes an incoming ARP packet
func (r *Router) handleArp(frame []byte, eth_hdr *EthernetHeader, iif *Interface) {
	arp_hdr, err := DeserializeArpHeader(frame[ETHERNET_HDR_SIZE:])
	if err != nil {
		logger.Debug("ARP: Dropping packet on %s: %v", iif.Name, err)
		return
	}

	if !arp_hdr.isEthernetIPv4() {
		logger.Debug("ARP: Dropping non Ethernet/IPv4 ARP (htype %d, ptype 0x%04x)",
			arp_hdr.HwType, arp_hdr.ProtoType)
		return
	}

	// Learn the sender from requests and replies alike
	if arp_hdr.SrcIP != 0 {
		r.learn(arp_hdr.SrcMac, arp_hdr.SrcIP)
	}

	switch arp_hdr.OpCode {
	case ARP_OP_REQUEST:
		if !r.interfaces.IsLocal(arp_hdr.DstIP) {
			logger.Debug("ARP: Request for %s on %s is not for us",
				IPUint32ToString(arp_hdr.DstIP), iif.Name)
			return
		}
		r.sendArpReply(arp_hdr, iif)

	case ARP_OP_REPLY:
		logger.Debug("ARP: Reply on %s: %s is at %s", iif.Name,
			IPUint32ToString(arp_hdr.SrcIP), arp_hdr.SrcMac)

	default:
		logger.Debug("ARP: Unknown ARP operation: %d", arp_hdr.OpCode)
	}
}

// learn inserts ip -> mac and releases the packets waiting on ip
func (r *Router) learn(mac MacAddr, ip uint32) {
	req := r.cache.Insert(mac, ip)
	if req == nil {
		return
	}

	logger.Info("ARP: Resolved %s is at %s, sending %d queued packet(s)",
		IPUint32ToString(ip), mac, len(req.Packets))

	for _, pkt := range req.Packets {
		oif := r.interfaces.FindInterface(pkt.OIF)
		if oif == nil {
			logger.Error("ARP: Queued packet names unknown interface %q", pkt.OIF)
			continue
		}
		rewriteEthernetAddrs(pkt.Frame, oif.Mac, mac)
		r.transmit(pkt.Frame, oif.Name)
	}
}

// sendArpReply answers a request for one of our addresses out the
// interface it arrived on
func (r *Router) sendArpReply(req *ArpHeader, iif *Interface) {
	frame := BuildArpFrame(req.SrcMac, ARP_OP_REPLY,
		iif.Mac, req.DstIP,
		req.SrcMac, req.SrcIP)

	logger.Debug("ARP: Reply %s is at %s -> %s on %s",
		IPUint32ToString(req.DstIP), iif.Mac, IPUint32ToString(req.SrcIP), iif.Name)
	r.transmit(frame, iif.Name)
}

// sendArpRequest broadcasts a request for ip out of oif
func (r *Router) sendArpRequest(oif *Interface, ip uint32) {
	frame := BuildArpFrame(BroadcastMac, ARP_OP_REQUEST,
		oif.Mac, oif.IP,
		MacAddr{}, ip)

	logger.Debug("ARP: Request who-has %s tell %s on %s",
		IPUint32ToString(ip), IPUint32ToString(oif.IP), oif.Name)
	r.transmit(frame, oif.Name)
}
