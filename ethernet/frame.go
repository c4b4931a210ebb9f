package ethernet

import (
	"encoding/binary"
	"errors"
)

var (
	errShort     = errors.New("ethernet: too short")
	errShortVLAN = errors.New("ethernet: short VLAN")
)

// NewFrame returns a Frame with data set to buf. An error is returned if
// the buffer cannot hold the header, including the 802.1Q tag if the frame
// is tagged.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeaderNoVLAN {
		return Frame{}, errShort
	}
	frm := Frame{buf: buf}
	if frm.IsVLAN() && len(buf) < sizeHeaderVLAN {
		return Frame{}, errShortVLAN
	}
	return frm, nil
}

// Frame encapsulates the raw data of an Ethernet frame without preamble or
// FCS (first byte is start of destination address). See [IEEE 802.3].
//
// [IEEE 802.3]: https://standards.ieee.org/ieee/802.3/7071/
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (efrm Frame) RawData() []byte { return efrm.buf }

// HeaderLength returns the length of the ethernet packet header. Nominally returns 14; or 18 for VLAN packets.
func (efrm Frame) HeaderLength() int {
	if efrm.IsVLAN() {
		return sizeHeaderVLAN
	}
	return sizeHeaderNoVLAN
}

// Payload returns the data portion of the frame with correct handling of
// VLAN tags and of length fields shorter than the buffer (padded frames).
func (efrm Frame) Payload() []byte {
	hl := efrm.HeaderLength()
	et := efrm.EtherType()
	if et.IsSize() && hl+int(et) <= len(efrm.buf) {
		return efrm.buf[hl : hl+int(et)]
	}
	return efrm.buf[hl:]
}

// DestinationHardwareAddr returns the target's MAC/hardware address for the ethernet packet.
func (efrm Frame) DestinationHardwareAddr() (dst *[6]byte) {
	return (*[6]byte)(efrm.buf[0:6])
}

// IsBroadcast returns true if the destination is the broadcast address ff:ff:ff:ff:ff:ff, false otherwise.
func (efrm Frame) IsBroadcast() bool {
	return *efrm.DestinationHardwareAddr() == BroadcastAddr()
}

// IsMulticast returns true if the destination is a group address, broadcast included.
func (efrm Frame) IsMulticast() bool {
	return IsMulticastAddr(*efrm.DestinationHardwareAddr())
}

// SourceHardwareAddr returns the sender's MAC/hardware address of the ethernet packet.
func (efrm Frame) SourceHardwareAddr() (src *[6]byte) {
	return (*[6]byte)(efrm.buf[6:12])
}

// EtherTypeOrSize returns the EtherType/Size field at offset 12. For tagged
// frames it is [TypeVLAN].
func (efrm Frame) EtherTypeOrSize() Type {
	return Type(binary.BigEndian.Uint16(efrm.buf[12:14]))
}

// EtherType returns the EtherType/Size field following the 802.1Q tag, if any.
func (efrm Frame) EtherType() Type {
	if efrm.IsVLAN() {
		_, et := efrm.VLAN()
		return et
	}
	return efrm.EtherTypeOrSize()
}

// VLAN returns fields 14:16 and 16:18. Does not check field 12:14 for correctness.
func (efrm Frame) VLAN() (VLANTag, Type) {
	vt := binary.BigEndian.Uint16(efrm.buf[14:16])
	et := binary.BigEndian.Uint16(efrm.buf[16:18])
	return VLANTag(vt), Type(et)
}

// IsVLAN returns true if the SizeOrEtherType is set to the VLAN TPID 0x8100,
// meaning an 802.1Q tag follows the source address.
func (efrm Frame) IsVLAN() bool {
	return efrm.EtherTypeOrSize() == TypeVLAN
}
