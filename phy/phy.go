// Package phy provides Ethernet PHY management via MDIO.
// It supports IEEE 802.3 Clause 22 register access for configuring and
// monitoring the physical layer transceiver attached to the MAC, with
// register decoding for the LAN8742 and DP83848 parts found on STM32 boards.
//
// [Device.Status] reads BMSR for generic and LAN8742 PHYs, where speed and
// duplex are derived from the ability bits and so describe what the PHY can
// do rather than the negotiated mode. For the DP83848 it reads PHYSTS
// instead, whose speed and duplex are the resolved link mode. Use
// [Device.NegotiatedLink] for the negotiated mode on any variant.
package phy

//go:generate stringer -type=LinkMode,Variant -linecomment -output stringers.go .

import (
	"errors"

	"github.com/soypat/stm32eth"
	"github.com/soypat/stm32eth/hw"
)

// MDIOBus is a HAL for MDIO bus access supporting both Clause 22 and Clause 45 devices.
// Implementations should use devaddr to select the framing:
//   - devaddr=0: Clause 22 framing (devaddr ignored in transaction)
//   - devaddr>=1: Clause 45 framing (PMA/PMD=1, WIS=2, PCS=3, PHY XS=4, DTE XS=5, AN=7)
//
// Register address range: Clause 22 uses 0-31, Clause 45 uses 0-65535.
// Implementations that do not support Clause 45 return [stm32eth.ErrUnsupported].
type MDIOBus interface {
	// Read reads a 16-bit register from the PHY.
	Read(phyAddr, devAddr uint8, regAddr uint16) (value uint16, err error)
	// Write writes a 16-bit value to a PHY register.
	Write(phyAddr, devAddr uint8, regAddr, value uint16) error
}

// Transceiver is the control plane the MAC driver needs from its PHY.
type Transceiver interface {
	// Reset performs a software reset and blocks until the PHY completes it.
	Reset() error
	// SetAutoNeg enables auto-negotiation and blocks until it completes.
	SetAutoNeg() error
	// Status returns a snapshot of the PHY status with a single bus read.
	Status() (Status, error)
}

var _ Transceiver = (*Device)(nil)

// FindClause22PHYs finds all regular non-clause45 PHYs on the MDIO bus and writes their addresses to dst.
// FindClause22PHYs returns error only if unable to find any PHY.
func FindClause22PHYs(mdio MDIOBus, dst []uint8) (n int, err error) {
	const maxAddr = 31
	if len(dst) < maxAddr+1 {
		return -1, stm32eth.ErrShortBuffer
	}
	for addr := uint8(0); addr <= maxAddr; addr++ {
		val, err := mdio.Read(addr, 0, AddrBMSR)
		if err != nil {
			continue
		}
		// An absent PHY leaves the data line floating high (or pulled low on some boards).
		if val != 0xffff && val != 0x0000 {
			dst[n] = addr
			n++
		}
	}
	if n <= 0 {
		err = errors.New("no phy found")
	}
	return n, err
}

// Config configures a [Device].
type Config struct {
	// Addr is the PHY address on the MDIO bus (0-31).
	Addr uint8
	// Variant selects how [Device.Status] and [Device.NegotiatedLink] decode registers.
	Variant Variant
	// Poll bounds the waits in [Device.Reset] and [Device.SetAutoNeg].
	// The zero value polls forever.
	Poll hw.Poller
}

// Device is a Clause 22 PHY.
type Device struct {
	mdio    MDIOBus
	phyaddr uint8
	variant Variant
	poll    hw.Poller
}

// Configure resets all state of device. Does not do a software reset of the PHY.
func (phy *Device) Configure(mdio MDIOBus, cfg Config) error {
	if cfg.Addr > 31 {
		return stm32eth.ErrInvalidAddr
	} else if mdio == nil || cfg.Variant > VariantDP83848 {
		return stm32eth.ErrInvalidConfig
	}
	*phy = Device{
		mdio:    mdio,
		phyaddr: cfg.Addr,
		variant: cfg.Variant,
		poll:    cfg.Poll,
	}
	return nil
}

// PHYAddr returns the PHY address on the MDIO bus (0-31).
func (phy *Device) PHYAddr() uint8 {
	return phy.phyaddr
}

// Variant returns the configured PHY part.
func (phy *Device) Variant() Variant {
	return phy.variant
}

// BasicControl reads the Basic Mode Control Register (BMCR, register 0).
func (phy *Device) BasicControl() (BMCR, error) {
	ctl, err := phy.rread(AddrBMCR)
	return BMCR(ctl), err
}

// BasicStatus reads the Basic Mode Status Register (BMSR, register 1).
func (phy *Device) BasicStatus() (BMSR, error) {
	stat, err := phy.rread(AddrBMSR)
	return BMSR(stat), err
}

// ID reads the PHY Identifier registers. The top 22 bits are the OUI bits 3-24,
// then 6 bits of model number and 4 bits of revision.
func (phy *Device) ID() (uint32, error) {
	id1, err := phy.rread(AddrPHYID1)
	if err != nil {
		return 0, err
	}
	id2, err := phy.rread(AddrPHYID2)
	if err != nil {
		return 0, err
	}
	return uint32(id1)<<16 | uint32(id2), nil
}

// Reset sets the BMCR reset bit and waits until the PHY clears it.
// Returns an error on MDIO bus failure or [stm32eth.ErrTimeout] if the
// configured poll bound is exceeded.
func (phy *Device) Reset() error {
	err := phy.setBits(AddrBMCR, uint16(BMCRReset))
	if err != nil {
		return err
	}
	return phy.poll.Until(func() (bool, error) {
		ctl, err := phy.BasicControl()
		return ctl&BMCRReset == 0, err
	})
}

// SetAutoNeg sets the BMCR auto-negotiation enable bit and waits until BMSR
// reports auto-negotiation complete. Without a link partner this only returns
// when the poll bound is exceeded.
func (phy *Device) SetAutoNeg() error {
	err := phy.setBits(AddrBMCR, uint16(BMCRANEnable))
	if err != nil {
		return err
	}
	return phy.poll.Until(func() (bool, error) {
		st, err := phy.BasicStatus()
		return st.AutoNegotiationComplete(), err
	})
}

// Status reads the variant's status register once and returns the snapshot.
func (phy *Device) Status() (Status, error) {
	if phy.variant == VariantDP83848 {
		v, err := phy.rread(AddrPHYSTS)
		return StatusFromPHYSTS(PHYSTS(v)), err
	}
	v, err := phy.rread(AddrBMSR)
	return StatusFromBMSR(BMSR(v)), err
}

// SetupForced disables auto-negotiation and forces mode. Only 10 and
// 100Mbps modes are accepted since the MAC does not go faster. Loopback,
// isolate and power down bits are left as they are.
func (phy *Device) SetupForced(mode LinkMode) error {
	speed := mode.SpeedMbps()
	if (speed != 10 && speed != 100) || mode == Link100T4 {
		return stm32eth.ErrUnsupported
	}
	ctl, err := phy.BasicControl()
	if err != nil {
		return err
	}
	ctl &^= BMCRANEnable | BMCRANRestart | BMCRSpeed100 | BMCRFullDuplex
	if speed == 100 {
		ctl |= BMCRSpeed100
	}
	if mode.IsFullDuplex() {
		ctl |= BMCRFullDuplex
	}
	return phy.rwrite(AddrBMCR, uint16(ctl))
}

// Advertisement reads the current Auto-Negotiation Advertisement Register.
func (phy *Device) Advertisement() (ANAR, error) {
	val, err := phy.rread(AddrANAR)
	return ANAR(val), err
}

// SetAdvertisement writes to the Auto-Negotiation Advertisement Register.
// Does NOT restart auto-negotiation; call RestartAutoNeg() after if needed.
func (phy *Device) SetAdvertisement(ad ANAR) error {
	return phy.rwrite(AddrANAR, uint16(ad))
}

// LinkPartnerAdvertisement reads what the link partner is advertising (ANLPAR).
func (phy *Device) LinkPartnerAdvertisement() (ANAR, error) {
	val, err := phy.rread(AddrANLPAR)
	return ANAR(val), err
}

// RestartAutoNeg enables auto-negotiation and restarts it. Does not wait for completion.
func (phy *Device) RestartAutoNeg() error {
	return phy.setBits(AddrBMCR, uint16(BMCRANEnable|BMCRANRestart))
}

// NegotiatedLink returns the link mode the PHY settled on. DP83848 and LAN8742
// report it in a vendor register; generic PHYs resolve it from ANAR and ANLPAR
// by the priority order of IEEE 802.3 Annex 28B.3. With auto-negotiation
// disabled the mode forced in BMCR is returned.
func (phy *Device) NegotiatedLink() (LinkMode, error) {
	ctl, err := phy.BasicControl()
	if err != nil {
		return LinkDown, err
	} else if ctl&BMCRANEnable == 0 {
		speed := 10
		if ctl&BMCRSpeed100 != 0 {
			speed = 100
		}
		return LinkModeOf(speed, ctl&BMCRFullDuplex != 0), nil
	}
	switch phy.variant {
	case VariantDP83848:
		st, err := phy.Status()
		return st.LinkMode(), err
	case VariantLAN8742:
		v, err := phy.rread(AddrPSCSR)
		if err != nil {
			return LinkDown, err
		} else if PSCSR(v)&PSCSRANComplete == 0 {
			return LinkDown, errors.New("auto-negotiation not complete")
		}
		return PSCSR(v).LinkMode(), nil
	}
	status, err := phy.BasicStatus()
	if err != nil {
		return LinkDown, err
	}
	if !status.AutoNegotiationComplete() {
		return LinkDown, errors.New("auto-negotiation not complete")
	}
	anar, err := phy.Advertisement()
	if err != nil {
		return LinkDown, err
	}
	anlpar, err := phy.LinkPartnerAdvertisement()
	if err != nil {
		return LinkDown, err
	}
	return (anar & anlpar).LinkMode(), nil
}

// SetLoopback enables or disables PHY near-end loopback mode (BMCR bit 14).
// In loopback mode, TX data is routed back to RX internally through PCS/PMA/PMD.
func (phy *Device) SetLoopback(enable bool) error {
	ctl, err := phy.BasicControl()
	if err != nil {
		return err
	}
	if enable {
		ctl |= BMCRLoopback
	} else {
		ctl &^= BMCRLoopback
	}
	return phy.rwrite(AddrBMCR, uint16(ctl))
}

func (phy *Device) setBits(regaddr, bits uint16) error {
	v, err := phy.rread(regaddr)
	if err != nil {
		return err
	}
	return phy.rwrite(regaddr, v|bits)
}

func (phy *Device) rread(regaddr uint16) (uint16, error) {
	return phy.mdio.Read(phy.phyaddr, 0, regaddr)
}

func (phy *Device) rwrite(regaddr, value uint16) error {
	return phy.mdio.Write(phy.phyaddr, 0, regaddr, value)
}
