// Package eth drives the Ethernet MAC of STM32F4 and STM32F107
// microcontrollers: it brings up the MAC, its DMA engine and the PHY, and
// exposes zero-copy frame reception and transmission over descriptor rings.
package eth

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/soypat/stm32eth"
	"github.com/soypat/stm32eth/dma"
	"github.com/soypat/stm32eth/hw"
	"github.com/soypat/stm32eth/internal"
	"github.com/soypat/stm32eth/phy"
)

// Peripherals are the hardware capabilities the driver is built on.
type Peripherals struct {
	// MAC is the ETHERNET_MAC register block.
	MAC hw.Peripheral
	// DMA is the ETHERNET_DMA register block.
	DMA hw.Peripheral
	// Bus translates descriptor and buffer pointers to DMA bus addresses.
	// Nil selects [hw.DirectMap].
	Bus hw.AddrMapper
	// IRQ is the Ethernet global interrupt line. May be nil if
	// [Device.EnableInterrupt] is never called.
	IRQ hw.IRQ
}

// Config configures a [Device].
type Config struct {
	// RxEntries and TxEntries are the ring entries. They must reside in memory
	// the DMA can access; on STM32F4 core coupled memory is not.
	// Both must have at least one entry.
	RxEntries []dma.RxEntry
	TxEntries []dma.TxEntry
	// Family selects the MAC flavor.
	Family Family
	// PHY is the transceiver part.
	PHY phy.Variant
	// PHYAddr is the PHY bus address. A negative value selects the part's default address.
	PHYAddr int
	// ClockRange is the MDC divider. The zero value selects the family default.
	ClockRange ClockRange
	// Poll bounds every hardware wait: DMA reset, SMI busy bit and
	// PHY reset and auto-negotiation. The zero value waits forever.
	Poll hw.Poller
	// HardwareAddr is programmed as the MAC address.
	HardwareAddr [6]byte
	Logger       *slog.Logger
}

// Device is an initialized, running Ethernet MAC.
//
// Receive and transmit methods are not safe for concurrent use. The
// interrupt handler only touches DMASR and may run at any time.
type Device struct {
	logger
	mac    hw.Peripheral
	dma    *dma.Controller
	irq    hw.IRQ
	smi    SMI
	phy    phy.Device
	rx     dma.RxRing
	tx     dma.TxRing
	link   phy.Status
	hwaddr [6]byte
	onRecv func([]byte) error
}

// New allocates a Device and calls [Device.Configure].
func New(p Peripherals, cfg Config) (*Device, error) {
	d := new(Device)
	err := d.Configure(p, cfg)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Configure initializes the MAC, DMA and PHY and starts both rings. It blocks
// until the PHY finishes auto-negotiation or the poll budget runs out.
func (d *Device) Configure(p Peripherals, cfg Config) (err error) {
	if p.MAC == nil || p.DMA == nil || !cfg.ClockRange.valid() ||
		len(cfg.RxEntries) == 0 || len(cfg.TxEntries) == 0 {
		return stm32eth.ErrInvalidConfig
	}
	phyAddr := cfg.PHYAddr
	if phyAddr < 0 {
		phyAddr = int(cfg.PHY.DefaultAddr())
	} else if phyAddr > 31 {
		return stm32eth.ErrInvalidAddr
	}
	bus := p.Bus
	if bus == nil {
		bus = hw.DirectMap{}
	}
	*d = Device{
		logger: logger{log: cfg.Logger},
		mac:    p.MAC,
		dma:    dma.NewController(p.DMA),
		irq:    p.IRQ,
		hwaddr: cfg.HardwareAddr,
	}
	d.rx.SetLogger(cfg.Logger)
	d.tx.SetLogger(cfg.Logger)

	d.debug("eth:reset", slog.String("family", cfg.Family.String()))
	err = d.dma.SoftwareReset(cfg.Poll)
	if err != nil {
		return fmt.Errorf("dma reset: %w", err)
	}
	err = d.smi.Configure(p.MAC, cfg.Poll)
	if err != nil {
		return err
	}
	err = d.smi.SetClockRange(cfg.ClockRange, cfg.Family)
	if err != nil {
		return err
	}

	err = d.phy.Configure(&d.smi, phy.Config{Addr: uint8(phyAddr), Variant: cfg.PHY, Poll: cfg.Poll})
	if err != nil {
		return err
	}
	d.debug("eth:phy-reset", slog.Int("addr", phyAddr), slog.String("phy", cfg.PHY.String()))
	err = d.phy.Reset()
	if err != nil {
		return fmt.Errorf("phy reset: %w", err)
	}
	d.debug("eth:phy-autoneg")
	err = d.phy.SetAutoNeg()
	if err != nil {
		return fmt.Errorf("phy autoneg: %w", err)
	}

	hw.NewReg(p.MAC, RegMACCR).SetBits(cfg.Family.maccr())
	hw.NewReg(p.MAC, RegMACFFR).SetBits(MACFFRReceiveAll | MACFFRPromiscuous)
	hw.NewReg(p.MAC, RegMACFCR).ReplaceBits(0x100, macfcrPauseMask, macfcrPausePos)
	setHardwareAddr(p.MAC, cfg.HardwareAddr)

	d.dma.OperationMode().SetBits(dma.OMRNoDropChecksum | dma.OMRRxStoreForward |
		dma.OMRNoFlushRxFrames | dma.OMRTxStoreForward | dma.OMRForwardErrFrames | dma.OMROperateSecond)
	bmr := d.dma.BusMode()
	bmr.SetBits(dma.BMRAddrAligned | dma.BMRFixedBurst | dma.BMRSeparatePBL)
	bmr.ReplaceBits(32, 0x3f, dma.BMRRxPBLPos)
	bmr.ReplaceBits(32, 0x3f, dma.BMRPBLPos)
	bmr.ReplaceBits(0b01, 0b11, dma.BMRPMPos)

	err = d.rx.Configure(cfg.RxEntries, bus)
	if err != nil {
		return err
	}
	err = d.tx.Configure(cfg.TxEntries, bus)
	if err != nil {
		return err
	}
	err = d.rx.Start(d.dma)
	if err != nil {
		return err
	}
	err = d.tx.Start(d.dma)
	if err != nil {
		return err
	}
	d.link, err = d.phy.Status()
	if err != nil {
		return fmt.Errorf("phy status: %w", err)
	}
	d.info("eth:up",
		internal.SlogAddr6("hwaddr", &d.hwaddr),
		slog.String("link", d.link.String()),
		slog.Int("rx", len(cfg.RxEntries)),
		slog.Int("tx", len(cfg.TxEntries)),
	)
	return nil
}

// EnableInterrupt enables the receive, transmit and normal summary DMA
// interrupts and unmasks the Ethernet interrupt line. The interrupt handler
// must call [InterruptHandler] or the interrupt fires again immediately.
func (d *Device) EnableInterrupt() error {
	if d.irq == nil {
		return stm32eth.ErrUnsupported
	}
	d.dma.EnableInterrupts()
	d.irq.Enable()
	return nil
}

// InterruptHandler acknowledges the DMA interrupt. See [InterruptHandler].
func (d *Device) InterruptHandler() dma.Status {
	return InterruptHandler(d.dma.Registers())
}

// InterruptHandler acknowledges the receive, transmit and normal summary
// causes in DMASR and returns which of them were pending. It does not touch
// the rings, so it is safe to call from an interrupt while the application
// sends and receives. Interrupt handlers that cannot reach the [Device] may
// pass the DMA register block directly.
func InterruptHandler(dmaRegs hw.Peripheral) dma.Status {
	return dma.AckInterrupts(dmaRegs)
}

// PHY returns the transceiver control plane.
func (d *Device) PHY() *phy.Device { return &d.phy }

// SMI returns the management bus, i.e. to reach other devices on it.
func (d *Device) SMI() *SMI { return &d.smi }

// Status returns a PHY status snapshot.
func (d *Device) Status() (phy.Status, error) {
	return d.phy.Status()
}

// PollLink reads the PHY status and reports whether the link changed since
// the last call. Remote fault and other status bits do not count as changes.
func (d *Device) PollLink() (st phy.Status, changed bool, err error) {
	st, err = d.phy.Status()
	if err != nil {
		return d.link, false, err
	}
	changed = !st.Equivalent(d.link)
	if changed {
		d.info("eth:link", slog.String("old", d.link.String()), slog.String("new", st.String()))
	}
	d.link = st
	return st, changed, nil
}

// RxIsRunning reports whether the receive DMA is scanning the ring. It
// suspends when every entry holds an unreleased frame.
func (d *Device) RxIsRunning() bool {
	return d.rx.IsRunning()
}

// RecvNext returns the next received frame or [dma.ErrRxWouldBlock]. See [dma.RxRing.RecvNext].
func (d *Device) RecvNext() (dma.RxPacket, error) {
	return d.rx.RecvNext()
}

// TxIsRunning reports whether the transmit DMA is running.
func (d *Device) TxIsRunning() bool {
	return d.tx.IsRunning()
}

// Send transmits a frame of length bytes written by fill. See [dma.TxRing.Send].
func (d *Device) Send(length int, fill func(frame []byte) error) error {
	return d.tx.Send(length, fill)
}

// Stats returns the ring counters.
func (d *Device) Stats() (dma.RxStats, dma.TxStats) {
	return d.rx.Stats(), d.tx.Stats()
}

// HardwareAddr6 returns the MAC address programmed in MACA0.
func (d *Device) HardwareAddr6() ([6]byte, error) {
	return hardwareAddr(d.mac), nil
}

// SetHardwareAddr6 programs a new MAC address.
func (d *Device) SetHardwareAddr6(addr [6]byte) {
	d.hwaddr = addr
	setHardwareAddr(d.mac, addr)
}

// IsRxFault reports whether err is a receive error due to a faulty frame
// that the ring already discarded, as opposed to no frame being available.
func IsRxFault(err error) bool {
	return errors.Is(err, dma.ErrRxTruncated) || errors.Is(err, dma.ErrRxTooLarge) ||
		errors.Is(err, dma.ErrRxCRC) || errors.Is(err, dma.ErrRxFrameFault)
}
