// Package sim simulates the STM32 Ethernet MAC, its DMA engine and an
// attached PHY on a host. Register blocks behave like the silicon where the
// driver can observe it: write-1-to-clear status bits, self-clearing busy
// and reset bits, poll demand registers and descriptor ownership handoff
// through the descriptors in (host) memory.
package sim

import (
	"errors"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/soypat/stm32eth"
	"github.com/soypat/stm32eth/dma"
	"github.com/soypat/stm32eth/eth"
	"github.com/soypat/stm32eth/hw"
	"github.com/soypat/stm32eth/internal"
	"github.com/soypat/stm32eth/phy"
)

var (
	errQueueFull = errors.New("sim: inbound frame queue full")
	errBadBusRef = errors.New("sim: DMA access outside mapped memory")
)

// Wire is the medium transmitted frames leave through and received frames
// arrive from, i.e. a TAP interface.
type Wire interface {
	// WriteFrame sends one Ethernet frame without FCS.
	WriteFrame(frame []byte) error
	// ReadFrame blocks until a frame is available and copies it to dst.
	ReadFrame(dst []byte) (int, error)
}

// Config configures a [Peripheral]. The zero value is a generic PHY at address 0
// with a 100M full duplex link partner and hardware that completes every
// operation immediately.
type Config struct {
	PHY phy.Variant
	// PHYAddr is the strap address of the PHY. Negative selects the variant default.
	PHYAddr int
	// Link is the mode auto-negotiation settles on. LinkDown means no cable.
	Link phy.LinkMode
	// NoLink disconnects the cable, overriding Link.
	NoLink bool
	// MIIBusyReads is the number of MACMIIAR reads that still show the busy
	// bit after a management transaction starts.
	MIIBusyReads int
	// DMAResetReads is the number of DMABMR reads that still show the
	// software reset bit after it is set.
	DMAResetReads int
	// PHYResetReads is the number of BMCR reads that still show the reset bit.
	PHYResetReads int
	// AutoNegReads is the number of BMSR reads before auto-negotiation completes.
	AutoNegReads int
	// QueueSize is the size in bytes of the inbound frame queue. Defaults to 64kB.
	QueueSize int
	// Loopback feeds transmitted frames back into the receive path.
	Loopback bool
	// Wire, if set, receives every transmitted frame. [Peripheral.Run] also
	// reads inbound frames from it.
	Wire   Wire
	Logger *slog.Logger
}

// Peripheral is a simulated Ethernet MAC with DMA and PHY.
type Peripheral struct {
	logger
	mu  sync.Mutex
	mac [eth.RegMACSize / 4]uint32
	dma [dma.RegSize / 4]uint32

	miiBusy     int
	miiBusyCfg  int
	resetBusy   int
	dmaResetCfg int

	// Current descriptor pointers of the receive and transmit processes.
	rxCur, txCur uint32
	// Frame being assembled over several transmit descriptors.
	txFrame []byte

	phy      phyModel
	inbound  internal.FrameQueue
	scratch  [4 + maxFrame]byte
	loopback bool
	wire     Wire
	txlog    [][]byte
	txFaults []dma.TxStatus
	stats    Stats

	bus busMap
	irq IRQ
}

// Stats are counters of the simulated hardware.
type Stats struct {
	// Transmitted counts frames that left through loopback, the wire or the transmit log.
	Transmitted uint64
	// NoCarrier counts frames the transmit DMA processed while the link was down.
	NoCarrier uint64
	// Delivered counts frames written to receive descriptors.
	Delivered uint64
	// Filtered counts frames dropped by the MAC address filter.
	Filtered uint64
	// Missed counts frames dropped because the inbound queue was full.
	Missed uint64
	// WireErrors counts failed writes to the wire.
	WireErrors uint64
}

// New returns a simulated peripheral in its reset state.
func New(cfg Config) *Peripheral {
	p := &Peripheral{
		logger:      logger{log: cfg.Logger},
		miiBusyCfg:  cfg.MIIBusyReads,
		dmaResetCfg: cfg.DMAResetReads,
		loopback:    cfg.Loopback,
		wire:        cfg.Wire,
	}
	addr := cfg.PHYAddr
	if addr < 0 {
		addr = int(cfg.PHY.DefaultAddr())
	}
	link := cfg.Link
	if link == phy.LinkDown && !cfg.NoLink {
		link = phy.Link100FDX
	} else if cfg.NoLink {
		link = phy.LinkDown
	}
	p.phy.init(cfg.PHY, uint8(addr), link, cfg.PHYResetReads, cfg.AutoNegReads)
	qsize := cfg.QueueSize
	if qsize <= 0 {
		qsize = 64 * 1024
	}
	p.inbound.Reset(make([]byte, qsize))
	p.irq.p = p
	p.bus.next = busBase
	p.resetRegisters()
	return p
}

// Peripherals returns the capabilities to pass to [eth.New].
func (p *Peripheral) Peripherals() eth.Peripherals {
	return eth.Peripherals{
		MAC: p.MAC(),
		DMA: p.DMA(),
		Bus: p,
		IRQ: &p.irq,
	}
}

// MAC returns the MAC register block.
func (p *Peripheral) MAC() hw.Peripheral { return macRegs{p} }

// DMA returns the DMA register block.
func (p *Peripheral) DMA() hw.Peripheral { return dmaRegs{p} }

// IRQ returns the interrupt line of the peripheral.
func (p *Peripheral) IRQ() *IRQ { return &p.irq }

// Stats returns the hardware counters.
func (p *Peripheral) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// BusAddr maps a region of host memory to a 32 bit DMA bus address.
// Mapping the same pointer twice returns the same address.
func (p *Peripheral) BusAddr(ptr unsafe.Pointer, size uintptr) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bus.addr(ptr, size)
}

var _ hw.AddrMapper = (*Peripheral)(nil)

func (p *Peripheral) resetRegisters() {
	p.mac = [eth.RegMACSize / 4]uint32{}
	p.mac[eth.RegMACCR/4] = 0x0000_8000
	p.mac[eth.RegMACA0HR/4] = 0x8000_ffff
	p.mac[eth.RegMACA0LR/4] = 0xffff_ffff
	p.dma = [dma.RegSize / 4]uint32{}
	p.dma[dma.RegBMR/4] = 0x0000_2100 // Documented reset value 0x2101 with the reset bit already cleared.
	p.rxCur, p.txCur = 0, 0
	p.txFrame = p.txFrame[:0]
	p.miiBusy = 0
}

// IRQ is the simulated Ethernet interrupt line.
type IRQ struct {
	p       *Peripheral
	enabled bool
	handler func()
}

var _ hw.IRQ = (*IRQ)(nil)

// Enable unmasks the interrupt line.
func (irq *IRQ) Enable() {
	irq.p.mu.Lock()
	irq.enabled = true
	irq.p.mu.Unlock()
}

// Disable masks the interrupt line.
func (irq *IRQ) Disable() {
	irq.p.mu.Lock()
	irq.enabled = false
	irq.p.mu.Unlock()
}

// SetHandler sets the function called, from the goroutine running
// [Peripheral.Step], when an enabled DMA interrupt is raised.
func (irq *IRQ) SetHandler(fn func()) {
	irq.p.mu.Lock()
	irq.handler = fn
	irq.p.mu.Unlock()
}

// pendingHandler returns the handler if an interrupt should fire. Called with mu held.
func (irq *IRQ) pendingHandler() func() {
	sr := dma.Status(irq.p.dma[dma.RegSR/4])
	if !irq.enabled || irq.handler == nil || sr&(dma.StatusNormalSummary|dma.StatusAbnormalSummary) == 0 {
		return nil
	}
	return irq.handler
}

// maxFrame is the largest frame the simulated wire carries.
const maxFrame = 4 * stm32eth.BufferSize

const busBase = 0x2000_0000

type busRegion struct {
	base uint32
	size uint32
	ptr  unsafe.Pointer
}

// busMap hands out bus addresses for host memory. Host pointers may not fit
// in 32 bits, so unlike on the MCU the mapping is not the identity.
type busMap struct {
	regions []busRegion
	next    uint32
}

func (m *busMap) addr(ptr unsafe.Pointer, size uintptr) uint32 {
	for _, r := range m.regions {
		if r.ptr == ptr && uintptr(r.size) >= size {
			return r.base
		}
	}
	base := m.next
	m.regions = append(m.regions, busRegion{base: base, size: uint32(size), ptr: ptr})
	m.next += (uint32(size) + 15) &^ 15
	return base
}

// slice returns the host memory at bus address addr.
func (m *busMap) slice(addr uint32, size int) ([]byte, error) {
	for _, r := range m.regions {
		if addr >= r.base && addr-r.base+uint32(size) <= r.size {
			return unsafe.Slice((*byte)(unsafe.Add(r.ptr, addr-r.base)), size), nil
		}
	}
	return nil, errBadBusRef
}

// descriptor returns the four words of the descriptor at bus address addr.
func (m *busMap) descriptor(addr uint32) (*descriptor, error) {
	b, err := m.slice(addr, dma.DescriptorSize)
	if err != nil {
		return nil, err
	}
	return (*descriptor)(unsafe.Pointer(&b[0])), nil
}
