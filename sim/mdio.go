package sim

import "github.com/soypat/stm32eth/phy"

// MDIOWire is the PHY end of a bit-banged MDIO bus. Its methods are the
// pin callbacks of a [phy.MDIOBitBang] and decode Clause 22 management
// frames against the simulated PHY. Clause 45 frames are not answered.
type MDIOWire struct {
	p     *Peripheral
	ones  int
	state mdioState
	bits  uint32
	nbits int
	// Decoded header.
	st, op, pa, ra uint8
	// Read shift register, turnaround bit first.
	out   uint32
	nout  int
	drive bool
}

type mdioState uint8

const (
	mdioIdle mdioState = iota
	mdioHeader
	mdioWriteData
	mdioReadData
)

// MDIOWire returns the bit-level management interface of the PHY.
func (p *Peripheral) MDIOWire() *MDIOWire {
	return &MDIOWire{p: p}
}

// Pins returns the callbacks to pass to [phy.MDIOBitBang.Configure].
func (w *MDIOWire) Pins() phy.MDIOPins {
	return phy.MDIOPins{SendBit: w.SendBit, GetBit: w.GetBit, SetDir: w.SetDir}
}

// SetDir is called when the station management entity switches MDIO direction.
func (w *MDIOWire) SetDir(output bool) {}

// SendBit clocks in a bit driven by the station management entity.
func (w *MDIOWire) SendBit(bit bool) {
	switch w.state {
	case mdioIdle, mdioReadData:
		if w.state == mdioReadData {
			// Master took the bus back; abandon the read.
			w.state = mdioIdle
			w.ones = 0
		}
		if bit {
			w.ones++
			return
		}
		if w.ones >= 32 {
			w.state = mdioHeader
			w.bits, w.nbits = 0, 1 // First start bit, a zero.
		}
		w.ones = 0
	case mdioHeader:
		w.shift(bit)
		if w.nbits < 14 {
			return
		}
		w.st = uint8(w.bits>>12) & 0b11
		w.op = uint8(w.bits>>10) & 0b11
		w.pa = uint8(w.bits>>5) & 0x1f
		w.ra = uint8(w.bits) & 0x1f
		w.bits, w.nbits = 0, 0
		if w.op == 0b10 || w.op == 0b11 {
			w.startRead()
		} else {
			w.state = mdioWriteData
		}
	case mdioWriteData:
		w.shift(bit)
		if w.nbits < 18 {
			return
		}
		// Clause 22 frames start with 01. Drop Clause 45 frames.
		if w.st == 0b01 {
			w.p.mu.Lock()
			w.p.phy.write(w.pa, w.ra, uint16(w.bits))
			w.p.mu.Unlock()
		}
		w.state = mdioIdle
		w.ones = 0
	}
}

func (w *MDIOWire) startRead() {
	w.state = mdioReadData
	w.drive = false
	if w.st != 0b01 {
		return
	}
	w.p.mu.Lock()
	w.drive = w.pa == w.p.phy.addr
	v := w.p.phy.read(w.pa, w.ra)
	w.p.mu.Unlock()
	// Turnaround zero followed by 16 data bits.
	w.out = uint32(v)
	w.nout = 17
}

// GetBit clocks out the bit the PHY drives, or a pulled up one when idle.
func (w *MDIOWire) GetBit() bool {
	if w.state != mdioReadData || !w.drive {
		return true
	}
	if w.nout == 0 {
		w.state = mdioIdle
		w.ones = 0
		return true
	}
	w.nout--
	return w.out>>w.nout&1 != 0
}

func (w *MDIOWire) shift(bit bool) {
	w.bits <<= 1
	if bit {
		w.bits |= 1
	}
	w.nbits++
}
