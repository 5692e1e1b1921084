package router

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net"
)

// MacAddr represents a MAC address as 6-byte array
type MacAddr [6]byte

// BroadcastMac is ff:ff:ff:ff:ff:ff
var BroadcastMac = MacAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func (mac MacAddr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

// IsBroadcast reports whether mac is ff:ff:ff:ff:ff:ff
func (mac MacAddr) IsBroadcast() bool {
	return mac == BroadcastMac
}

// ParseMac parses a 48-bit MAC address in any form net.ParseMAC accepts
// (xx:xx:xx:xx:xx:xx, xx-xx-xx-xx-xx-xx, xxxx.xxxx.xxxx)
func ParseMac(mac_str string) (MacAddr, error) {
	hw, err := net.ParseMAC(mac_str)
	if err != nil {
		return MacAddr{}, fmt.Errorf("invalid MAC address: %w", err)
	}
	return MacFromHardwareAddr(hw)
}

// MacFromHardwareAddr converts a net.HardwareAddr of length 6
func MacFromHardwareAddr(hw net.HardwareAddr) (MacAddr, error) {
	var mac MacAddr
	if len(hw) != len(mac) {
		return mac, fmt.Errorf("not an Ethernet hardware address: %s", hw)
	}
	copy(mac[:], hw)
	return mac, nil
}

// IP address conversion utilities. Addresses are carried as uint32 in
// host order; the codec writes them big-endian.

// IPStringToUint32 converts IP string to 32-bit integer
func IPStringToUint32(ipStr string) (uint32, error) {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return 0, fmt.Errorf("invalid IP address: %s", ipStr)
	}

	ipv4 := ip.To4()
	if ipv4 == nil {
		return 0, fmt.Errorf("not an IPv4 address: %s", ipStr)
	}

	return binary.BigEndian.Uint32(ipv4), nil
}

// IPToUint32 converts a net.IP holding an IPv4 address
func IPToUint32(ip net.IP) (uint32, error) {
	ipv4 := ip.To4()
	if ipv4 == nil {
		return 0, fmt.Errorf("not an IPv4 address: %s", ip)
	}
	return binary.BigEndian.Uint32(ipv4), nil
}

// IPUint32ToString converts 32-bit integer to IP string
func IPUint32ToString(ipInt uint32) string {
	return Uint32ToIP(ipInt).String()
}

// Uint32ToIP converts 32-bit integer to net.IP
func Uint32ToIP(ipInt uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, ipInt)
	return ip
}

// MaskFromPrefixLen builds a netmask from a CIDR prefix length
func MaskFromPrefixLen(prefix uint8) uint32 {
	if prefix == 0 {
		return 0
	}
	if prefix >= 32 {
		return ^uint32(0)
	}
	return ^uint32(0) << (32 - prefix)
}

// PrefixLen counts the bits set in mask
func PrefixLen(mask uint32) int {
	return bits.OnesCount32(mask)
}
