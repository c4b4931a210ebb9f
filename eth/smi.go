package eth

import (
	"github.com/soypat/stm32eth"
	"github.com/soypat/stm32eth/hw"
	"github.com/soypat/stm32eth/phy"
)

var _ phy.MDIOBus = (*SMI)(nil)

// SMI is the MAC's station management interface: a Clause 22 MDIO master
// driven through the MACMIIAR and MACMIIDR registers.
//
// SMI is not safe for concurrent use; one transaction occupies the bus
// until the busy bit clears.
type SMI struct {
	mac  hw.Peripheral
	poll hw.Poller
}

// Configure sets the MAC register block and the busy bit polling policy.
func (s *SMI) Configure(mac hw.Peripheral, poll hw.Poller) error {
	if mac == nil {
		return stm32eth.ErrInvalidConfig
	}
	s.mac = mac
	s.poll = poll
	return nil
}

// SetClockRange programs the MDC clock divider. Other MACMIIAR bits are preserved.
func (s *SMI) SetClockRange(cr ClockRange, f Family) error {
	if !cr.valid() {
		return stm32eth.ErrInvalidConfig
	}
	s.miiar().ReplaceBits(cr.bits(f), miiarCRMask, miiarCRPos)
	return nil
}

// ClockRange returns the raw CR field of MACMIIAR.
func (s *SMI) ClockRange() uint8 {
	return uint8(s.mac.Read32(RegMACMIIAR)>>miiarCRPos) & miiarCRMask
}

// Read reads a PHY register. devAddr must be 0; the SMI has no Clause 45 framing.
func (s *SMI) Read(phyAddr, devAddr uint8, regAddr uint16) (uint16, error) {
	err := validateSMI(phyAddr, devAddr, regAddr)
	if err != nil {
		return 0, err
	}
	s.start(phyAddr, regAddr, false)
	err = s.wait()
	if err != nil {
		return 0, err
	}
	return uint16(s.mac.Read32(RegMACMIIDR)), nil
}

// Write writes a PHY register. devAddr must be 0; the SMI has no Clause 45 framing.
func (s *SMI) Write(phyAddr, devAddr uint8, regAddr, value uint16) error {
	err := validateSMI(phyAddr, devAddr, regAddr)
	if err != nil {
		return err
	}
	s.mac.Write32(RegMACMIIDR, uint32(value))
	s.start(phyAddr, regAddr, true)
	return s.wait()
}

// start programs PHY and register address and sets the busy bit, which
// begins the transaction. The clock range is preserved.
func (s *SMI) start(phyAddr uint8, regAddr uint16, write bool) {
	miiar := s.miiar()
	v := miiar.Get()
	v &^= miiarRegMask<<miiarPAPos | miiarRegMask<<miiarMRPos | MIIARWrite
	v |= uint32(phyAddr)<<miiarPAPos | uint32(regAddr)<<miiarMRPos | MIIARBusy
	if write {
		v |= MIIARWrite
	}
	miiar.Set(v)
}

func (s *SMI) wait() error {
	miiar := s.miiar()
	return s.poll.Until(func() (bool, error) {
		return !miiar.HasBits(MIIARBusy), nil
	})
}

func (s *SMI) miiar() hw.Reg { return hw.NewReg(s.mac, RegMACMIIAR) }

func validateSMI(phyAddr, devAddr uint8, regAddr uint16) error {
	if devAddr != 0 {
		return stm32eth.ErrUnsupported
	} else if phyAddr > 31 || regAddr > 31 {
		return stm32eth.ErrInvalidAddr
	}
	return nil
}
