package router

import (
	"encoding/binary"
	"errors"
)

// ErrTruncated is returned by decoders when the buffer is shorter than the
// header they were asked to read.
var ErrTruncated = errors.New("buffer truncated")

// Checksum computes the Internet checksum (RFC 1071) of data: the one's
// complement of the one's complement sum of all 16-bit words. An odd
// trailing byte is padded with zero.
func Checksum(data []byte) uint16 {
	var sum uint32

	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}

	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// checksumWithZeroedField computes the checksum of data as if the 16-bit
// field at offset were zero, without modifying data.
func checksumWithZeroedField(data []byte, offset int) uint16 {
	scratch := make([]byte, len(data))
	copy(scratch, data)
	scratch[offset] = 0
	scratch[offset+1] = 0
	return Checksum(scratch)
}

// ValidChecksum reports whether the checksum stored at offset matches the
// checksum recomputed over data with that field zeroed.
func ValidChecksum(data []byte, offset int) bool {
	if offset < 0 || offset+2 > len(data) {
		return false
	}
	stored := binary.BigEndian.Uint16(data[offset : offset+2])
	return stored == checksumWithZeroedField(data, offset)
}

// setChecksum zeroes the field at offset, recomputes and stores it.
func setChecksum(data []byte, offset int) {
	data[offset] = 0
	data[offset+1] = 0
	binary.BigEndian.PutUint16(data[offset:offset+2], Checksum(data))
}
