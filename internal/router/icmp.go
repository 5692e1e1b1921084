package router

import (
	"encoding/binary"
	"fmt"
)

// ====== ICMP (RFC 792) ======

// ICMP types
const (
	ICMP_TYPE_ECHO_REPLY    = 0
	ICMP_TYPE_DEST_UNREACH  = 3
	ICMP_TYPE_SOURCE_QUENCH = 4
	ICMP_TYPE_REDIRECT      = 5
	ICMP_TYPE_ECHO_REQUEST  = 8
	ICMP_TYPE_TIME_EXCEEDED = 11
	ICMP_TYPE_PARAM_PROBLEM = 12
)

// ICMP codes used with ICMP_TYPE_DEST_UNREACH and ICMP_TYPE_TIME_EXCEEDED
const (
	ICMP_CODE_NET_UNREACH  = 0
	ICMP_CODE_HOST_UNREACH = 1
	ICMP_CODE_PORT_UNREACH = 3
	ICMP_CODE_TTL_EXCEEDED = 0
)

const (
	ICMP_HDR_SIZE       = 8  // type, code, checksum, rest of header
	ICMP_DATA_SIZE      = 28 // IP header + 8 bytes of the offending datagram
	ICMP_ERROR_MSG_SIZE = ICMP_HDR_SIZE + ICMP_DATA_SIZE
)

// ICMPHeader is the fixed part of every ICMP message. Rest holds the
// identifier/sequence of echo messages and the unused/next-MTU word of
// error messages.
type ICMPHeader struct {
	Type     uint8
	Code     uint8
	Checksum uint16
	Rest     uint32
}

// DeserializeICMPHeader parses the first ICMP_HDR_SIZE bytes of an ICMP
// message
func DeserializeICMPHeader(buf []byte) (*ICMPHeader, error) {
	if len(buf) < ICMP_HDR_SIZE {
		return nil, fmt.Errorf("icmp header: need %d bytes, got %d: %w", ICMP_HDR_SIZE, len(buf), ErrTruncated)
	}
	return &ICMPHeader{
		Type:     buf[0],
		Code:     buf[1],
		Checksum: binary.BigEndian.Uint16(buf[2:4]),
		Rest:     binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

// SerializeICMPMessage writes hdr followed by body and computes the
// checksum over the whole message
func SerializeICMPMessage(hdr *ICMPHeader, body []byte) []byte {
	msg := make([]byte, ICMP_HDR_SIZE+len(body))
	msg[0] = hdr.Type
	msg[1] = hdr.Code
	binary.BigEndian.PutUint32(msg[4:8], hdr.Rest)
	copy(msg[ICMP_HDR_SIZE:], body)

	setChecksum(msg, 2)
	hdr.Checksum = binary.BigEndian.Uint16(msg[2:4])
	return msg
}

// ValidICMPChecksum checks the checksum of a complete ICMP message
func ValidICMPChecksum(msg []byte) bool {
	if len(msg) < ICMP_HDR_SIZE {
		return false
	}
	return ValidChecksum(msg, 2)
}

// isICMPError reports whether an ICMP type is an error message. No error
// is ever generated in response to one of these.
func isICMPError(icmpType uint8) bool {
	switch icmpType {
	case ICMP_TYPE_DEST_UNREACH, ICMP_TYPE_SOURCE_QUENCH, ICMP_TYPE_REDIRECT,
		ICMP_TYPE_TIME_EXCEEDED, ICMP_TYPE_PARAM_PROBLEM:
		return true
	}
	return false
}

// BuildICMPErrorMessage builds a type 3 or type 11 message quoting the
// first ICMP_DATA_SIZE bytes of the offending datagram. The data field is
// zero-padded when the datagram is shorter.
func BuildICMPErrorMessage(icmpType, code uint8, offending []byte) []byte {
	data := make([]byte, ICMP_DATA_SIZE)
	copy(data, offending)
	return SerializeICMPMessage(&ICMPHeader{Type: icmpType, Code: code}, data)
}

// BuildIPPacket prepends a fresh IPv4 header to payload
func BuildIPPacket(protocol uint8, id uint16, src, dst uint32, payload []byte) []byte {
	hdr := &IPHeader{}
	InitializeIPHeader(hdr)
	hdr.Protocol = protocol
	hdr.ID = id
	hdr.SrcIP = src
	hdr.DstIP = dst
	hdr.TotalLen = uint16(IP_HDR_SIZE + len(payload))

	pkt := make([]byte, IP_HDR_SIZE+len(payload))
	copy(pkt, SerializeIPHeader(hdr))
	copy(pkt[IP_HDR_SIZE:], payload)
	return pkt
}
