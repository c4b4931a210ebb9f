package sim

import "github.com/soypat/stm32eth/phy"

const (
	bmcrDefault = uint16(phy.BMCRANEnable | phy.BMCRSpeed100 | phy.BMCRFullDuplex)
	bmsrAbility = uint16(phy.BMSR100Full | phy.BMSR100Half | phy.BMSR10Full | phy.BMSR10Half |
		phy.BMSRANCap | phy.BMSRExtCap)
	anarDefault = uint16(phy.ANARSelector8023 | phy.ANAR10Half | phy.ANAR10Full | phy.ANAR100Half | phy.ANAR100Full)
)

// phyModel is the register file of a Clause 22 PHY behind a management bus.
type phyModel struct {
	variant phy.Variant
	addr    uint8
	regs    [32]uint16
	// partner is the link partner's mode, LinkDown without cable.
	partner phy.LinkMode

	resetCfg  int
	resetBusy int
	anegCfg   int
	anegBusy  int
	anegDone  bool
	// latchedDown holds BMSR link status low until read, as 802.3 requires.
	latchedDown bool
}

func (m *phyModel) init(v phy.Variant, addr uint8, partner phy.LinkMode, resetReads, anegReads int) {
	*m = phyModel{
		variant:  v,
		addr:     addr,
		partner:  partner,
		resetCfg: resetReads,
		anegCfg:  anegReads,
	}
	m.reset()
}

func (m *phyModel) reset() {
	m.regs = [32]uint16{}
	m.regs[phy.AddrBMCR] = bmcrDefault
	m.regs[phy.AddrANAR] = anarDefault
	switch m.variant {
	case phy.VariantLAN8742:
		m.regs[phy.AddrPHYID1] = 0x0007
		m.regs[phy.AddrPHYID2] = 0xc131
	case phy.VariantDP83848:
		m.regs[phy.AddrPHYID1] = 0x2000
		m.regs[phy.AddrPHYID2] = 0x5c90
	default:
		m.regs[phy.AddrPHYID1] = 0x0022
		m.regs[phy.AddrPHYID2] = 0x1556
	}
	m.anegDone = false
	m.anegBusy = m.anegCfg
	m.latchedDown = false
}

// mode returns the link mode the PHY operates at, LinkDown without link.
func (m *phyModel) mode() phy.LinkMode {
	bmcr := phy.BMCR(m.regs[phy.AddrBMCR])
	if m.partner == phy.LinkDown || bmcr&(phy.BMCRPowerDown|phy.BMCRIsolate) != 0 || m.resetBusy > 0 {
		return phy.LinkDown
	}
	if bmcr&phy.BMCRANEnable == 0 {
		return phy.LinkModeOf(forcedSpeed(bmcr), bmcr&phy.BMCRFullDuplex != 0)
	} else if !m.anegDone {
		return phy.LinkDown
	}
	common := phy.ANAR(m.regs[phy.AddrANAR]) & partnerAbilities(m.partner)
	return common.LinkMode()
}

// partnerAbilities is what a link partner whose best mode is best
// advertises: every mode up to its speed, no full duplex mode if it is half
// duplex only.
func partnerAbilities(best phy.LinkMode) phy.ANAR {
	if best == phy.LinkDown || best == phy.Link100T4 {
		return best.ANAR()
	}
	ad := phy.ANAR(0).WithMaxSpeed(best.SpeedMbps())
	if !best.IsFullDuplex() {
		ad = ad.HalfDuplexOnly()
	}
	return ad
}

func forcedSpeed(bmcr phy.BMCR) int {
	if bmcr&phy.BMCRSpeed100 != 0 {
		return 100
	}
	return 10
}

// loopback reports whether the PHY returns transmitted frames to the MAC.
func (m *phyModel) loopback() bool {
	return phy.BMCR(m.regs[phy.AddrBMCR])&phy.BMCRLoopback != 0
}

func (m *phyModel) read(addr, reg uint8) uint16 {
	if addr != m.addr {
		return 0xffff // Nobody drives the bus.
	}
	switch reg {
	case phy.AddrBMCR:
		if m.resetBusy > 0 {
			m.resetBusy--
			if m.resetBusy == 0 {
				m.reset()
			}
			return m.regs[reg] | uint16(phy.BMCRReset)
		}
		return m.regs[reg]
	case phy.AddrBMSR:
		m.stepAutoNeg()
		bmsr := bmsrAbility
		if m.anegDone {
			bmsr |= uint16(phy.BMSRANComplete)
		}
		if m.mode() != phy.LinkDown && !m.latchedDown {
			bmsr |= uint16(phy.BMSRLinkStatus)
		}
		m.latchedDown = false
		return bmsr
	case phy.AddrANLPAR:
		if !m.anegDone || m.partner == phy.LinkDown {
			return 0
		}
		return uint16(phy.ANARSelector8023 | phy.ANARAck | partnerAbilities(m.partner))
	case phy.AddrPHYSTS:
		if m.variant != phy.VariantDP83848 {
			break
		}
		m.stepAutoNeg()
		return uint16(m.physts())
	case phy.AddrPSCSR:
		if m.variant != phy.VariantLAN8742 {
			break
		}
		m.stepAutoNeg()
		return uint16(m.pscsr())
	}
	return m.regs[reg]
}

func (m *phyModel) write(addr, reg uint8, v uint16) {
	if addr != m.addr || m.resetBusy > 0 {
		return
	}
	switch reg {
	case phy.AddrBMCR:
		bmcr := phy.BMCR(v)
		if bmcr&phy.BMCRReset != 0 {
			m.regs[reg] = v &^ uint16(phy.BMCRReset)
			m.resetBusy = m.resetCfg
			if m.resetBusy <= 0 {
				m.reset()
			}
			return
		}
		old := phy.BMCR(m.regs[reg])
		if bmcr&phy.BMCRANRestart != 0 || (bmcr&phy.BMCRANEnable != 0 && old&phy.BMCRANEnable == 0) {
			m.anegDone = false
			m.anegBusy = m.anegCfg
		}
		m.regs[reg] = v &^ uint16(phy.BMCRANRestart) // Self-clearing.
	case phy.AddrBMSR, phy.AddrPHYID1, phy.AddrPHYID2, phy.AddrANLPAR:
		// Read-only.
	default:
		m.regs[reg] = v
	}
}

// stepAutoNeg advances auto-negotiation by one status register read.
func (m *phyModel) stepAutoNeg() {
	if m.anegDone || phy.BMCR(m.regs[phy.AddrBMCR])&phy.BMCRANEnable == 0 || m.partner == phy.LinkDown {
		return
	}
	if m.anegBusy > 0 {
		m.anegBusy--
		return
	}
	m.anegDone = true
}

// setPartner plugs (or unplugs with LinkDown) a link partner and restarts
// auto-negotiation as a real PHY does on link loss.
func (m *phyModel) setPartner(mode phy.LinkMode) {
	if mode == m.partner {
		return
	}
	if m.partner != phy.LinkDown {
		m.latchedDown = true
	}
	m.partner = mode
	m.anegDone = false
	m.anegBusy = m.anegCfg
}

func (m *phyModel) physts() phy.PHYSTS {
	var sts phy.PHYSTS
	mode := m.mode()
	if mode != phy.LinkDown {
		sts |= phy.PHYSTSLinkStatus
		if mode.SpeedMbps() == 10 {
			sts |= phy.PHYSTSSpeed10
		}
		if mode.IsFullDuplex() {
			sts |= phy.PHYSTSFullDuplex
		}
	}
	if m.anegDone {
		sts |= phy.PHYSTSANComplete
	}
	if m.loopback() {
		sts |= phy.PHYSTSLoopback
	}
	return sts
}

func (m *phyModel) pscsr() phy.PSCSR {
	var v phy.PSCSR
	if m.anegDone {
		v |= phy.PSCSRANComplete
	}
	switch m.mode() {
	case phy.Link10HDX:
		v |= phy.PSCSR10Half
	case phy.Link10FDX:
		v |= phy.PSCSR10Full
	case phy.Link100HDX:
		v |= phy.PSCSR100Half
	case phy.Link100FDX:
		v |= phy.PSCSR100Full
	}
	return v
}
