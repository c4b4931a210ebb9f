// Package ltesto generates Ethernet frames for driver tests.
package ltesto

import (
	"math/rand"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	sizeHeaderEthNoVLAN = 14
	sizeHeaderVLAN      = 4
	sizeHeaderIPv4      = 20
	sizeHeaderUDP       = 8
)

// EtherTypeTest is the IEEE local experimental EtherType. Frames of exact
// length are generated with it so no upper layer needs to be valid.
const EtherTypeTest layers.EthernetType = 0x88b5

type PacketGen struct {
	SrcMAC, DstMAC   [6]byte // hardware address
	SrcIPv4, DstIPv4 [4]byte // address
	SrcUDP, DstUDP   uint16  // ports
	EnableVLAN       bool
}

func (gen *PacketGen) RandomizeAddrs(rng *rand.Rand) {
	rng.Read(gen.SrcMAC[:])
	rng.Read(gen.DstMAC[:])
	gen.SrcMAC[0] &^= 1 // Unicast source.
	rng.Read(gen.SrcIPv4[:])
	rng.Read(gen.DstIPv4[:])
	ports := rng.Uint32()
	gen.SrcUDP = uint16(ports)
	gen.DstUDP = uint16(ports >> 16)
}

// AppendRandomFrame appends an Ethernet frame of exactly size bytes with a
// random payload. size must be at least 14 (18 if VLAN tagging is enabled).
func (gen *PacketGen) AppendRandomFrame(dst []byte, rng *rand.Rand, size int) []byte {
	hdr := sizeHeaderEthNoVLAN
	if gen.EnableVLAN {
		hdr += sizeHeaderVLAN
	}
	if size < hdr {
		panic("frame size smaller than header")
	}
	payload := make([]byte, size-hdr)
	rng.Read(payload)
	eth := gen.ethernet()
	ls := []gopacket.SerializableLayer{eth}
	if gen.EnableVLAN {
		eth.EthernetType = layers.EthernetTypeDot1Q
		ls = append(ls, &layers.Dot1Q{
			VLANIdentifier: uint16(rng.Intn(4094) + 1),
			Type:           EtherTypeTest,
		})
	} else {
		eth.EthernetType = EtherTypeTest
	}
	ls = append(ls, gopacket.Payload(payload))
	n := len(dst)
	// Ethernet serialization pads to the 60 byte minimum.
	return gen.serialize(dst, ls...)[:n+size]
}

// AppendRandomUDPFrame appends an Ethernet+IPv4+UDP frame carrying
// datalen random bytes with valid lengths and checksums.
func (gen *PacketGen) AppendRandomUDPFrame(dst []byte, rng *rand.Rand, datalen int) []byte {
	if datalen > 1472 {
		panic("too long datalen")
	}
	payload := make([]byte, datalen)
	rng.Read(payload)
	eth := gen.ethernet()
	eth.EthernetType = layers.EthernetTypeIPv4
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Id:       uint16(rng.Uint32()),
		Flags:    layers.IPv4DontFragment,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP(gen.SrcIPv4[:]),
		DstIP:    net.IP(gen.DstIPv4[:]),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(gen.SrcUDP),
		DstPort: layers.UDPPort(gen.DstUDP),
	}
	udp.SetNetworkLayerForChecksum(ip)
	return gen.serialize(dst, eth, ip, udp, gopacket.Payload(payload))
}

// SizeUDPFrame returns the length of a frame generated by
// [PacketGen.AppendRandomUDPFrame] for datalen payload bytes.
func SizeUDPFrame(datalen int) int {
	return sizeHeaderEthNoVLAN + sizeHeaderIPv4 + sizeHeaderUDP + datalen
}

func (gen *PacketGen) ethernet() *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC: net.HardwareAddr(gen.SrcMAC[:]),
		DstMAC: net.HardwareAddr(gen.DstMAC[:]),
	}
}

func (gen *PacketGen) serialize(dst []byte, ls ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}, ls...)
	if err != nil {
		panic(err)
	}
	return append(dst, buf.Bytes()...)
}

// Decode parses frame as an Ethernet frame and returns the decoded packet.
func Decode(frame []byte) gopacket.Packet {
	return gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
}
