//go:build tinygo

package hw

import (
	"runtime/volatile"
	"unsafe"
)

// MMIO is a memory mapped peripheral at a fixed base address.
type MMIO uintptr

// Ethernet peripheral base addresses, common to STM32F107 and STM32F4xx.
const (
	ETH_MAC MMIO = 0x4002_8000
	ETH_DMA MMIO = 0x4002_9000
)

var _ Peripheral = MMIO(0)

func (m MMIO) reg(off uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(m) + off))
}

// Read32 performs a volatile load of the register at off.
func (m MMIO) Read32(off uintptr) uint32 { return m.reg(off).Get() }

// Write32 performs a volatile store of v to the register at off.
func (m MMIO) Write32(off uintptr, v uint32) { m.reg(off).Set(v) }
