package capture

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ====== One line frame summaries ======

// Summary decodes frame and describes it on one line, e.g.
//
//	0a:00:00:00:00:aa > 02:00:00:00:00:01 IPv4 10.0.1.100 > 10.0.1.1 ttl 64 ICMP EchoRequest id 1 seq 2
func Summary(frame []byte) string {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.NoCopy)

	var parts []string
	if eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet); ok {
		parts = append(parts, fmt.Sprintf("%s > %s", eth.SrcMAC, eth.DstMAC))
	}

	if arp, ok := pkt.Layer(layers.LayerTypeARP).(*layers.ARP); ok {
		switch arp.Operation {
		case layers.ARPRequest:
			parts = append(parts, fmt.Sprintf("ARP who-has %s tell %s",
				net.IP(arp.DstProtAddress), net.IP(arp.SourceProtAddress)))
		case layers.ARPReply:
			parts = append(parts, fmt.Sprintf("ARP %s is-at %s",
				net.IP(arp.SourceProtAddress), net.HardwareAddr(arp.SourceHwAddress)))
		default:
			parts = append(parts, fmt.Sprintf("ARP op %d", arp.Operation))
		}
	}

	if ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		parts = append(parts, fmt.Sprintf("IPv4 %s > %s ttl %d", ip.SrcIP, ip.DstIP, ip.TTL))
		if ip.Protocol != layers.IPProtocolICMPv4 {
			parts = append(parts, ip.Protocol.String())
		}
	}

	if icmp, ok := pkt.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4); ok {
		switch icmp.TypeCode.Type() {
		case layers.ICMPv4TypeEchoRequest, layers.ICMPv4TypeEchoReply:
			parts = append(parts, fmt.Sprintf("ICMP %s id %d seq %d", icmp.TypeCode, icmp.Id, icmp.Seq))
		default:
			parts = append(parts, fmt.Sprintf("ICMP %s", icmp.TypeCode))
		}
	}

	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		parts = append(parts, fmt.Sprintf("[%v]", errLayer.Error()))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%d bytes", len(frame))
	}
	return strings.Join(parts, " ")
}
