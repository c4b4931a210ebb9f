package eth

import "github.com/soypat/stm32eth/hw"

// Ethernet MAC register offsets (RM0090 33.8.2).
const (
	RegMACCR    = 0x00 // Configuration register
	RegMACFFR   = 0x04 // Frame filter register
	RegMACMIIAR = 0x10 // MII address register
	RegMACMIIDR = 0x14 // MII data register
	RegMACFCR   = 0x18 // Flow control register
	RegMACA0HR  = 0x40 // Address 0 high register
	RegMACA0LR  = 0x44 // Address 0 low register

	// RegMACSize is the size of the MAC register block up to MACA0LR.
	RegMACSize = 0x48
)

// MACCR bits.
const (
	MACCRRxEnable       = 1 << 2
	MACCRTxEnable       = 1 << 3
	MACCRAutoPadStrip   = 1 << 7
	MACCRRetryDisable   = 1 << 9
	MACCRChecksumOffld  = 1 << 10
	MACCRDuplex         = 1 << 11
	MACCRFastEthernet   = 1 << 14
	MACCRTypeFrameStrip = 1 << 25
)

// MACFFR bits.
const (
	MACFFRPromiscuous = 1 << 0
	MACFFRReceiveAll  = 1 << 31
)

// MACFCR pause time field.
const (
	macfcrPausePos  = 16
	macfcrPauseMask = 0xffff
)

// MACMIIAR bits.
const (
	MIIARBusy    = 1 << 0
	MIIARWrite   = 1 << 1
	miiarCRPos   = 2
	miiarCRMask  = 0b111
	miiarMRPos   = 6
	miiarPAPos   = 11
	miiarRegMask = 0x1f
)

//go:generate stringer -type=Family -linecomment -output stringers.go .

// Family is the STM32 line the MAC belongs to. The two lines differ in a
// couple of MACCR bits.
type Family uint8

const (
	// FamilyF4 covers STM32F4x7 and STM32F4x9.
	FamilyF4 Family = iota // stm32f4
	// FamilyF107 covers the STM32F107 connectivity line.
	FamilyF107 // stm32f107
)


// ClockRange selects the HCLK divider generating the MDC clock. It must
// match the HCLK frequency so MDC stays at or below 2.5MHz.
type ClockRange uint8

const (
	// ClockRangeDefault selects the range of the reference clock tree of the family.
	ClockRangeDefault ClockRange = iota
	ClockRange60_100             // HCLK 60-100MHz, MDC = HCLK/42
	ClockRange100_150            // HCLK 100-150MHz, MDC = HCLK/62
	ClockRange20_35              // HCLK 20-35MHz, MDC = HCLK/16
	ClockRange35_60              // HCLK 35-60MHz, MDC = HCLK/26
	ClockRange150_168            // HCLK 150-168MHz, MDC = HCLK/102
)

func (cr ClockRange) bits(f Family) uint32 {
	if cr == ClockRangeDefault {
		cr = ClockRange20_35
		if f == FamilyF107 {
			cr = ClockRange35_60
		}
	}
	return uint32(cr - 1)
}

func (cr ClockRange) valid() bool { return cr <= ClockRange150_168 }

// maccr returns the MAC configuration for a full duplex 100Mbps link.
func (f Family) maccr() uint32 {
	v := uint32(MACCRFastEthernet | MACCRDuplex | MACCRAutoPadStrip | MACCRRetryDisable | MACCRRxEnable | MACCRTxEnable)
	if f == FamilyF107 {
		v |= MACCRChecksumOffld
	} else {
		v |= MACCRTypeFrameStrip
	}
	return v
}

func setHardwareAddr(mac hw.Peripheral, addr [6]byte) {
	mac.Write32(RegMACA0HR, uint32(addr[5])<<8|uint32(addr[4]))
	mac.Write32(RegMACA0LR, uint32(addr[3])<<24|uint32(addr[2])<<16|uint32(addr[1])<<8|uint32(addr[0]))
}

func hardwareAddr(mac hw.Peripheral) (addr [6]byte) {
	hi := mac.Read32(RegMACA0HR)
	lo := mac.Read32(RegMACA0LR)
	addr[0] = byte(lo)
	addr[1] = byte(lo >> 8)
	addr[2] = byte(lo >> 16)
	addr[3] = byte(lo >> 24)
	addr[4] = byte(hi)
	addr[5] = byte(hi >> 8)
	return addr
}
