package ethernet

import (
	"strconv"
)

const (
	sizeHeaderNoVLAN = 14
	sizeHeaderVLAN   = 18
)

// AppendAddr appends the text representation of the hardware address to the destination buffer.
func AppendAddr(dst []byte, hwAddr [6]byte) []byte {
	for i, b := range hwAddr {
		if i != 0 {
			dst = append(dst, ':')
		}
		if b < 16 {
			dst = append(dst, '0')
		}
		dst = strconv.AppendUint(dst, uint64(b), 16)
	}
	return dst
}

// BroadcastAddr returns the all 0xff's broadcast hardware/MAC/EUI/OUI address.
func BroadcastAddr() [6]byte {
	return [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

// IsMulticastAddr reports whether the group bit of hwAddr is set. The
// broadcast address is a multicast address.
func IsMulticastAddr(hwAddr [6]byte) bool { return hwAddr[0]&1 != 0 }

type Type uint16

// IsSize returns true if the EtherType is actually the size of the payload
// and should NOT be interpreted as an EtherType.
func (et Type) IsSize() bool { return et <= 1500 }

// Ethernet types the MAC distinguishes.
const (
	TypeIPv4 Type = 0x0800
	TypeARP  Type = 0x0806
	TypeIPv6 Type = 0x86DD
	TypeVLAN Type = 0x8100
	// typeMin is the smallest EtherType value. Values in (1500, 1536) are undefined.
	typeMin Type = 0x0600
)

// IsEtherType reports whether the field holds an EtherType rather than a payload size,
// which the MAC reports as a "frame type" frame in its receive status.
func (et Type) IsEtherType() bool { return et >= typeMin }

// VLANTag holds priority (PCP) Drop indicator (DEI) and VLAN ID bits of the VLAN tag field.
type VLANTag uint16

// VLANIdentifier 12 bit field which specifies which VLAN the frame belongs to. Values of 0 and 4095 are reserved.
func (vt VLANTag) VLANIdentifier() uint16 { return uint16(vt) & 0xfff }

// PriorityCodePoint is the 3-bit IEEE 802.1p class of service of the frame.
func (vt VLANTag) PriorityCodePoint() uint8 { return uint8(vt >> 13) }
