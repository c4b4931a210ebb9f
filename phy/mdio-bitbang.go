package phy

import (
	"errors"

	"github.com/soypat/stm32eth"
)

var _ MDIOBus = (*MDIOBitBang)(nil) // compile time guarantee of interface implementation.

const (
	mdioRead  = 0b10
	mdioWrite = 0b01
	c45bit    = 1 << 15
	c45Addr   = c45bit | 0b00
	c45Read   = c45bit | 0b11
	c45Write  = c45bit | 0b01
)

var errTurnaround = errors.New("PHY did not drive turnaround low")

// MDIOPins are the pin callbacks needed by [MDIOBitBang]. MDC is the clock
// line, MDIO the bidirectional data line.
type MDIOPins struct {
	// SendBit drives MDIO to bit and pulses MDC.
	SendBit func(bit bool)
	// GetBit pulses MDC and samples MDIO.
	GetBit func() bool
	// SetDir switches MDIO between driven (output) and released (input).
	SetDir func(output bool)
}

// MDIOBitBang is a software MDIO station management entity. It is useful on
// boards where the PHY management lines are not routed to the MAC's SMI pins
// or to talk to a second PHY. Inspired by linux drivers/net/phy/mdio-bitbang.c
//
//	const mdioDelay = 340 * time.Nanosecond
//	pinMDC := machine.PC1
//	pinMDIO := machine.PA2
//	pinMDC.Configure(machine.PinConfig{Mode: machine.PinOutput})
//	var mdio phy.MDIOBitBang
//	err := mdio.Configure(phy.MDIOPins{
//		SendBit: func(b bool) {
//			pinMDIO.Set(b)
//			time.Sleep(mdioDelay)
//			pinMDC.High()
//			time.Sleep(mdioDelay)
//			pinMDC.Low()
//		},
//		GetBit: func() bool {
//			time.Sleep(mdioDelay)
//			pinMDC.High()
//			time.Sleep(mdioDelay)
//			pinMDC.Low()
//			return pinMDIO.Get()
//		},
//		SetDir: func(out bool) {
//			if out {
//				pinMDIO.Configure(machine.PinConfig{Mode: machine.PinOutput})
//			} else {
//				pinMDIO.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
//			}
//		},
//	})
type MDIOBitBang struct {
	pins MDIOPins
}

// Configure sets the pin callbacks and releases the bus.
func (m *MDIOBitBang) Configure(pins MDIOPins) error {
	if pins.SendBit == nil || pins.GetBit == nil || pins.SetDir == nil {
		return stm32eth.ErrInvalidConfig
	}
	m.pins = pins
	m.pins.SetDir(true)
	return nil
}

// Read reads a PHY register. Uses Clause 45 framing if devAddr is non-zero.
func (m *MDIOBitBang) Read(phyAddr, devAddr uint8, regAddr uint16) (uint16, error) {
	if err := m.validate(phyAddr, devAddr, regAddr); err != nil {
		return 0, err
	}
	if devAddr != 0 {
		m.cmdAddr45(phyAddr, devAddr, regAddr)
		m.cmd(c45Read, phyAddr, devAddr)
	} else {
		m.cmd(mdioRead, phyAddr, uint8(regAddr))
	}
	m.pins.SetDir(false)
	// PHY drives the second turnaround bit low.
	if m.pins.GetBit() {
		// Flush whatever the PHY is doing.
		for range 32 {
			m.pins.GetBit()
		}
		return 0xffff, errTurnaround
	}
	ret := m.getNum(16)
	m.pins.GetBit()
	return ret, nil
}

// Write writes a value to a PHY register. Uses Clause 45 framing if devAddr is non-zero.
func (m *MDIOBitBang) Write(phyAddr, devAddr uint8, regAddr, value uint16) error {
	if err := m.validate(phyAddr, devAddr, regAddr); err != nil {
		return err
	}
	if devAddr != 0 {
		m.cmdAddr45(phyAddr, devAddr, regAddr)
		m.cmd(c45Write, phyAddr, devAddr)
	} else {
		m.cmd(mdioWrite, phyAddr, uint8(regAddr))
	}
	m.pins.SendBit(true)
	m.pins.SendBit(false)
	m.sendNum(value, 16)
	m.pins.SetDir(false)
	m.pins.GetBit()
	return nil
}

func (m *MDIOBitBang) validate(phyAddr, devAddr uint8, regAddr uint16) error {
	if m.pins.GetBit == nil {
		return stm32eth.ErrNotStarted
	} else if phyAddr > 31 || devAddr > 31 || (devAddr == 0 && regAddr > 31) {
		return stm32eth.ErrInvalidAddr
	}
	return nil
}

func (m *MDIOBitBang) cmdAddr45(phy, dev uint8, reg uint16) {
	m.cmd(c45Addr, phy, dev)
	m.pins.SendBit(true)
	m.pins.SendBit(false)
	m.sendNum(reg, 16)
	m.pins.SetDir(false)
	m.pins.GetBit()
}

func (m *MDIOBitBang) cmd(op uint16, phy uint8, reg uint8) {
	m.pins.SetDir(true)
	// Preamble, 32 bits of 1.
	for range 32 {
		m.pins.SendBit(true)
	}
	// Start of frame is 01 for Clause 22, 00 for Clause 45.
	m.pins.SendBit(false)
	m.pins.SendBit(op&c45bit == 0)
	m.pins.SendBit((op>>1)&1 != 0)
	m.pins.SendBit(op&1 != 0)
	m.sendNum(uint16(phy), 5)
	m.sendNum(uint16(reg), 5)
}

func (m *MDIOBitBang) sendNum(val uint16, bits int) {
	for i := bits - 1; i >= 0; i-- {
		m.pins.SendBit((val>>i)&1 != 0)
	}
}

func (m *MDIOBitBang) getNum(bits int) (ret uint16) {
	for i := 0; i < bits; i++ {
		ret <<= 1
		if m.pins.GetBit() {
			ret |= 1
		}
	}
	return ret
}
