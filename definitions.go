// Package stm32eth holds definitions shared by the STM32 Ethernet MAC/DMA
// driver packages. The driver itself lives in package eth, the descriptor
// rings in package dma and PHY management in package phy.
package stm32eth

const (
	// MTU is the largest frame the driver sends or receives.
	// From the datasheet: VLAN frame maxsize = 1522.
	MTU = 1522

	// BufferSize is the size of each descriptor buffer. The DMA requires
	// buffer sizes to be a multiple of the 32-bit bus width.
	BufferSize = (MTU + 3) &^ 3

	// SizeHeader is the length of an untagged Ethernet header.
	SizeHeader = 14
)
