// Package hw defines the hardware capabilities the driver is built on:
// access to a peripheral's register file, the addresses the DMA engine
// dereferences, the peripheral's interrupt line and bounded polling of
// hardware completion flags.
//
// On the MCU these are implemented by [MMIO] and [DirectMap] (TinyGo builds).
// On a host they are implemented by a simulated peripheral, which is what
// makes the driver testable without hardware.
package hw

import (
	"unsafe"

	"github.com/soypat/stm32eth"
)

// Peripheral is a 32-bit register file addressed by byte offset.
// Reads and writes must not be cached or reordered by the implementation;
// a write may have side effects (write-1-to-clear bits, triggers).
type Peripheral interface {
	Read32(off uintptr) uint32
	Write32(off uintptr, v uint32)
}

// Reg is a single register of a [Peripheral]. Its method set mirrors
// TinyGo's volatile.Register32.
type Reg struct {
	p   Peripheral
	off uintptr
}

// NewReg returns the register at byte offset off of p.
func NewReg(p Peripheral, off uintptr) Reg {
	return Reg{p: p, off: off}
}

// Get reads the register.
func (r Reg) Get() uint32 { return r.p.Read32(r.off) }

// Set writes v to the register.
func (r Reg) Set(v uint32) { r.p.Write32(r.off, v) }

// SetBits sets the bits in mask with a read-modify-write.
func (r Reg) SetBits(mask uint32) { r.Set(r.Get() | mask) }

// ClearBits clears the bits in mask with a read-modify-write.
func (r Reg) ClearBits(mask uint32) { r.Set(r.Get() &^ mask) }

// HasBits reports whether any of the bits in mask are set.
func (r Reg) HasBits(mask uint32) bool { return r.Get()&mask != 0 }

// ReplaceBits replaces the field at pos of width mask with value.
func (r Reg) ReplaceBits(value, mask uint32, pos uint8) {
	r.Set(r.Get()&^(mask<<pos) | (value&mask)<<pos)
}

// AddrMapper translates memory owned by the CPU into the 32-bit address the
// DMA engine uses to reach it. Memory passed to BusAddr must stay valid and
// unmoved for as long as the DMA engine may access it.
type AddrMapper interface {
	BusAddr(p unsafe.Pointer, size uintptr) uint32
}

// DirectMap is the identity [AddrMapper] of a 32-bit MCU without an IOMMU.
// It does not check that memory is reachable by the DMA engine: core coupled
// memory (CCM) on STM32F4 is not.
type DirectMap struct{}

// BusAddr returns the address of p truncated to 32 bits.
func (DirectMap) BusAddr(p unsafe.Pointer, _ uintptr) uint32 {
	return uint32(uintptr(p))
}

// IRQ is the capability to unmask and mask one interrupt line at the
// interrupt controller. TinyGo's interrupt.Interrupt satisfies it.
type IRQ interface {
	Enable()
	Disable()
}

// Poller bounds busy-wait loops on hardware completion flags.
// The zero value polls forever without waiting between polls, which is how
// the hardware is driven when no bound is configured: an unresponsive device
// hangs the caller.
type Poller struct {
	// MaxPolls is the number of unsuccessful polls after which
	// [Poller.Until] gives up with [stm32eth.ErrTimeout]. Zero or negative
	// polls forever.
	MaxPolls int
	// Wait, if not nil, is called between polls. It may sleep or yield.
	Wait func()
}

// Until calls done until it reports true, returns an error or the poll
// budget is exhausted.
func (p Poller) Until(done func() (bool, error)) error {
	for i := 0; p.MaxPolls <= 0 || i < p.MaxPolls; i++ {
		ok, err := done()
		if err != nil {
			return err
		} else if ok {
			return nil
		}
		if p.Wait != nil {
			p.Wait()
		}
	}
	return stm32eth.ErrTimeout
}

// Bounded reports whether the poller gives up after a finite number of polls.
func (p Poller) Bounded() bool { return p.MaxPolls > 0 }
