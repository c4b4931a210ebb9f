package phy

// Status is a snapshot of one PHY status register. Its zero value has no link.
type Status struct {
	raw  uint16
	addr uint8 // Register raw was read from, AddrBMSR or AddrPHYSTS.
}

// StatusFromBMSR decodes an IEEE Basic Mode Status Register value. Since
// BMSR carries ability bits rather than the resolved mode, duplex and speed
// are the highest the PHY is capable of.
func StatusFromBMSR(v BMSR) Status {
	return Status{raw: uint16(v), addr: AddrBMSR}
}

// StatusFromPHYSTS decodes a DP83848 PHY Status Register value.
func StatusFromPHYSTS(v PHYSTS) Status {
	return Status{raw: uint16(v), addr: AddrPHYSTS}
}

// Raw returns the register value and address the snapshot was decoded from.
func (s Status) Raw() (value uint16, regAddr uint8) {
	return s.raw, s.addr
}

// LinkDetected reports whether the PHY has a valid link.
func (s Status) LinkDetected() bool {
	if s.addr == AddrPHYSTS {
		return PHYSTS(s.raw)&PHYSTSLinkStatus != 0
	}
	return BMSR(s.raw).LinkUp()
}

// AutoNegDone reports whether auto-negotiation completed.
func (s Status) AutoNegDone() bool {
	if s.addr == AddrPHYSTS {
		return PHYSTS(s.raw)&PHYSTSANComplete != 0
	}
	return BMSR(s.raw).AutoNegotiationComplete()
}

// RemoteFault reports whether the link partner signalled a fault.
func (s Status) RemoteFault() bool {
	if s.addr == AddrPHYSTS {
		return PHYSTS(s.raw)&PHYSTSRemoteFault != 0
	}
	return BMSR(s.raw)&BMSRRemoteFault != 0
}

// FullDuplex returns the duplex mode. ok is false when there is no link.
func (s Status) FullDuplex() (full, ok bool) {
	if !s.LinkDetected() {
		return false, false
	}
	if s.addr == AddrPHYSTS {
		return PHYSTS(s.raw)&PHYSTSFullDuplex != 0, true
	}
	return BMSR(s.raw)&(BMSR100Full|BMSR10Full) != 0, true
}

// SpeedMbps returns 10, 100 or 0 if there is no link or the speed is unknown.
func (s Status) SpeedMbps() int {
	if !s.LinkDetected() {
		return 0
	}
	if s.addr == AddrPHYSTS {
		if PHYSTS(s.raw)&PHYSTSSpeed10 != 0 {
			return 10
		}
		return 100
	}
	bmsr := BMSR(s.raw)
	switch {
	case bmsr&(BMSR100Full|BMSR100Half) != 0:
		return 100
	case bmsr&(BMSR10Full|BMSR10Half) != 0:
		return 10
	}
	return 0
}

// LinkMode returns the speed and duplex as a [LinkMode], LinkDown without link.
func (s Status) LinkMode() LinkMode {
	full, _ := s.FullDuplex()
	return LinkModeOf(s.SpeedMbps(), full)
}

// Equivalent reports whether s and other describe the same link: both
// without link, or both with link at the same duplex and speed. Remote fault
// and other raw bits are ignored so it can be used to detect link changes.
func (s Status) Equivalent(other Status) bool {
	link := s.LinkDetected()
	if link != other.LinkDetected() {
		return false
	} else if !link {
		return true
	}
	sfull, _ := s.FullDuplex()
	ofull, _ := other.FullDuplex()
	return sfull == ofull && s.SpeedMbps() == other.SpeedMbps()
}

// String returns a short human readable description, i.e: "up 100M-F an".
func (s Status) String() string {
	if !s.LinkDetected() {
		return "down"
	}
	str := "up " + s.LinkMode().String()
	if s.AutoNegDone() {
		str += " an"
	}
	if s.RemoteFault() {
		str += " rf"
	}
	return str
}
