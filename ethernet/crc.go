package ethernet

import (
	"encoding/binary"
	"hash/crc32"
)

// SizeFCS is the length of the frame check sequence trailing every frame on the wire.
const SizeFCS = 4

// crcTable is the IEEE CRC-32 table used for Ethernet FCS calculation.
var crcTable = crc32.MakeTable(crc32.IEEE)

// CRC32 calculates the Ethernet Frame Check Sequence (FCS) for the given data.
// The CRC is computed using the IEEE 802.3 CRC-32 polynomial.
// The input should be the frame data from destination MAC through payload,
// excluding any existing FCS.
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}

// AppendFCS appends the frame check sequence of frame to it, as the MAC
// does before a frame leaves on the wire.
func AppendFCS(frame []byte) []byte {
	return binary.LittleEndian.AppendUint32(frame, CRC32(frame))
}

// CheckFCS verifies the trailing frame check sequence of a frame as received
// from the wire and returns the frame without it.
func CheckFCS(wireFrame []byte) (frame []byte, ok bool) {
	n := len(wireFrame) - SizeFCS
	if n < 0 {
		return nil, false
	}
	frame = wireFrame[:n]
	return frame, CRC32(frame) == binary.LittleEndian.Uint32(wireFrame[n:])
}
