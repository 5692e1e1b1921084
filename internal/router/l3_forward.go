package router

import (
	"go-ip-router/internal/logger"
)

// ====== IPv4 receive path ======

// handleIP validates an IPv4 packet and either delivers it locally or
// forwards it
func (r *Router) handleIP(frame []byte, eth_hdr *EthernetHeader, iif *Interface) {
	if len(frame) < ETHERNET_HDR_SIZE+IP_HDR_SIZE {
		logger.Debug("L3: Packet too small on %s: %d bytes", iif.Name, len(frame))
		return
	}

	ip_pkt := frame[ETHERNET_HDR_SIZE:]
	ip_hdr, err := DeserializeIPHeader(ip_pkt)
	if err != nil {
		logger.Debug("L3: Failed to deserialize IP header: %v", err)
		return
	}

	if ip_hdr.Version != 4 || ip_hdr.IHL < 5 {
		logger.Debug("L3: Dropping packet with version %d IHL %d", ip_hdr.Version, ip_hdr.IHL)
		return
	}

	hdr_len := GetIPHeaderLen(ip_hdr)
	if int(ip_hdr.TotalLen) < hdr_len || int(ip_hdr.TotalLen) > len(ip_pkt) {
		logger.Debug("L3: Dropping packet with total length %d (header %d, have %d)",
			ip_hdr.TotalLen, hdr_len, len(ip_pkt))
		return
	}

	if !ValidChecksum(ip_pkt[:hdr_len], 10) {
		logger.Debug("L3: Dropping packet from %s with bad header checksum",
			IPUint32ToString(ip_hdr.SrcIP))
		return
	}

	// Drop any Ethernet padding past the IP datagram
	frame = frame[:ETHERNET_HDR_SIZE+int(ip_hdr.TotalLen)]

	if r.interfaces.IsLocal(ip_hdr.DstIP) {
		r.deliverLocal(frame, eth_hdr, ip_hdr, iif)
		return
	}

	r.forward(frame, eth_hdr, ip_hdr, iif)
}

// deliverLocal handles packets addressed to one of our interfaces
func (r *Router) deliverLocal(frame []byte, eth_hdr *EthernetHeader, ip_hdr *IPHeader, iif *Interface) {
	ip_pkt := frame[ETHERNET_HDR_SIZE:]
	hdr_len := GetIPHeaderLen(ip_hdr)

	if ip_hdr.Protocol != PROTO_ICMP {
		logger.Debug("L3: Protocol %d to %s is not served, port unreachable",
			ip_hdr.Protocol, IPUint32ToString(ip_hdr.DstIP))
		r.sendICMPError(ip_pkt, ip_hdr, eth_hdr.SrcMac, iif,
			ICMP_TYPE_DEST_UNREACH, ICMP_CODE_PORT_UNREACH, ip_hdr.DstIP)
		return
	}

	icmp_msg := ip_pkt[hdr_len:]
	icmp_hdr, err := DeserializeICMPHeader(icmp_msg)
	if err != nil {
		logger.Debug("ICMP: %v", err)
		return
	}
	if !ValidICMPChecksum(icmp_msg) {
		logger.Debug("ICMP: Dropping message from %s with bad checksum", IPUint32ToString(ip_hdr.SrcIP))
		return
	}

	if icmp_hdr.Type == ICMP_TYPE_ECHO_REQUEST {
		r.sendEchoReply(icmp_msg, eth_hdr, ip_hdr, iif)
		return
	}

	// Only echo is served; errors about errors are suppressed by sendICMPError
	logger.Debug("ICMP: Type %d code %d from %s is not served, port unreachable",
		icmp_hdr.Type, icmp_hdr.Code, IPUint32ToString(ip_hdr.SrcIP))
	r.sendICMPError(ip_pkt, ip_hdr, eth_hdr.SrcMac, iif,
		ICMP_TYPE_DEST_UNREACH, ICMP_CODE_PORT_UNREACH, ip_hdr.DstIP)
}

// sendEchoReply answers an echo request with the same identifier,
// sequence number and payload
func (r *Router) sendEchoReply(request []byte, eth_hdr *EthernetHeader, ip_hdr *IPHeader, iif *Interface) {
	reply := make([]byte, len(request))
	copy(reply, request)
	reply[0] = ICMP_TYPE_ECHO_REPLY
	reply[1] = 0
	setChecksum(reply, 2)

	ip_pkt := BuildIPPacket(PROTO_ICMP, r.nextIPID(), ip_hdr.DstIP, ip_hdr.SrcIP, reply)
	frame := BuildEthernetFrame(eth_hdr.SrcMac, iif.Mac, ETHERTYPE_IP, ip_pkt)

	logger.Debug("ICMP: Echo reply %s -> %s on %s",
		IPUint32ToString(ip_hdr.DstIP), IPUint32ToString(ip_hdr.SrcIP), iif.Name)
	r.transmit(frame, iif.Name)
}

// forward sends a transit packet towards its next hop. frame is lent by
// the caller, so the rewritten packet is a copy.
func (r *Router) forward(frame []byte, eth_hdr *EthernetHeader, ip_hdr *IPHeader, iif *Interface) {
	ip_pkt := frame[ETHERNET_HDR_SIZE:]

	if ip_hdr.TTL <= 1 {
		logger.Debug("L3: TTL expired for %s -> %s",
			IPUint32ToString(ip_hdr.SrcIP), IPUint32ToString(ip_hdr.DstIP))
		r.sendICMPError(ip_pkt, ip_hdr, eth_hdr.SrcMac, iif,
			ICMP_TYPE_TIME_EXCEEDED, ICMP_CODE_TTL_EXCEEDED, iif.IP)
		return
	}

	route := r.routes.LookupLPM(ip_hdr.DstIP)
	if route == nil {
		r.sendICMPError(ip_pkt, ip_hdr, eth_hdr.SrcMac, iif,
			ICMP_TYPE_DEST_UNREACH, ICMP_CODE_NET_UNREACH, iif.IP)
		return
	}

	oif := r.interfaces.FindInterface(route.OIF)
	if oif == nil {
		logger.Error("L3: Route %s names unknown interface", route.String())
		return
	}

	out := make([]byte, len(frame))
	copy(out, frame)
	out_ip := out[ETHERNET_HDR_SIZE:]
	out_ip[8] = ip_hdr.TTL - 1
	setChecksum(out_ip[:GetIPHeaderLen(ip_hdr)], 10)

	next_hop := route.GatewayIP
	if next_hop == 0 {
		next_hop = ip_hdr.DstIP
	}

	if mac, ok := r.cache.Lookup(next_hop); ok {
		rewriteEthernetAddrs(out, oif.Mac, mac)
		logger.Debug("L3: Forwarding %s -> %s via %s on %s",
			IPUint32ToString(ip_hdr.SrcIP), IPUint32ToString(ip_hdr.DstIP),
			IPUint32ToString(next_hop), oif.Name)
		r.transmit(out, oif.Name)
		return
	}

	req, created := r.cache.QueuePacket(next_hop, out, oif.Name, iif.Name)
	if created {
		r.sendArpRequest(oif, req.IP)
	}
}

// sendICMPError answers the offending IP datagram with an ICMP error sent
// back out the interface it arrived on, to the Ethernet source it came from
func (r *Router) sendICMPError(offending []byte, ip_hdr *IPHeader, eth_dst MacAddr, iif *Interface,
	icmpType, code uint8, src uint32) {
	hdr_len := GetIPHeaderLen(ip_hdr)
	if ip_hdr.Protocol == PROTO_ICMP && len(offending) > hdr_len && isICMPError(offending[hdr_len]) {
		logger.Debug("ICMP: Not answering ICMP error from %s with another error",
			IPUint32ToString(ip_hdr.SrcIP))
		return
	}

	msg := BuildICMPErrorMessage(icmpType, code, offending)
	ip_pkt := BuildIPPacket(PROTO_ICMP, r.nextIPID(), src, ip_hdr.SrcIP, msg)
	frame := BuildEthernetFrame(eth_dst, iif.Mac, ETHERTYPE_IP, ip_pkt)

	logger.Debug("ICMP: Type %d code %d to %s on %s",
		icmpType, code, IPUint32ToString(ip_hdr.SrcIP), iif.Name)
	r.transmit(frame, iif.Name)
}

// hostUnreachable answers a packet whose next hop never resolved
func (r *Router) hostUnreachable(pkt *QueuedPacket) {
	iif := r.interfaces.FindInterface(pkt.IIF)
	if iif == nil {
		return
	}
	eth_hdr, err := DeserializeEthernetHeader(pkt.Frame)
	if err != nil {
		return
	}
	ip_hdr, err := DeserializeIPHeader(pkt.Frame[ETHERNET_HDR_SIZE:])
	if err != nil {
		return
	}

	r.sendICMPError(pkt.Frame[ETHERNET_HDR_SIZE:], ip_hdr, eth_hdr.SrcMac, iif,
		ICMP_TYPE_DEST_UNREACH, ICMP_CODE_HOST_UNREACH, iif.IP)
}
