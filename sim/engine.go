package sim

import (
	"encoding/binary"
	"log/slog"
	"sync/atomic"

	"github.com/soypat/stm32eth"
	"github.com/soypat/stm32eth/dma"
	"github.com/soypat/stm32eth/eth"
	"github.com/soypat/stm32eth/ethernet"
	"github.com/soypat/stm32eth/internal"
	"github.com/soypat/stm32eth/phy"
)

const ownBit = 1 << 31

// descriptor is the memory layout of a DMA descriptor, shared with the
// driver through atomics only.
type descriptor [4]atomic.Uint32

func (d *descriptor) word0() uint32 { return d[0].Load() }
func (d *descriptor) ctl() uint32   { return d[1].Load() }
func (d *descriptor) buf() uint32   { return d[2].Load() }
func (d *descriptor) next() uint32  { return d[3].Load() }

// release hands the descriptor back to software. All buffer writes happen before.
func (d *descriptor) release(word0 uint32) { d[0].Store(word0 &^ ownBit) }

// Inject queues a frame as if it arrived on the wire. It is delivered to the
// receive ring by the next [Peripheral.Step] that finds a free descriptor.
func (p *Peripheral) Inject(frame []byte) error {
	return p.InjectFault(frame, 0)
}

// InjectFault queues a frame whose receive descriptor will carry the fault
// bits in RDES0, i.e. [dma.RxErrCRC]. The error summary bit is set for
// faults that imply it.
func (p *Peripheral) InjectFault(frame []byte, fault dma.RxStatus) error {
	if len(frame) == 0 || len(frame) > maxFrame {
		return stm32eth.ErrInvalidConfig
	}
	const summarized = dma.RxErrDescriptor | dma.RxErrOverflow | dma.RxErrHeaderCsum |
		dma.RxErrCollision | dma.RxErrWatchdog | dma.RxErrReceive | dma.RxErrCRC | dma.RxErrPayload
	if fault&summarized != 0 {
		fault |= dma.RxErrSummary
	}
	fault &^= dma.RxOwn | dma.RxFirst | dma.RxLast
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enqueue(frame, fault)
}

// InjectWire queues a frame as received on the wire, trailing frame check
// sequence included. The MAC strips the FCS and flags a mismatch with
// [dma.RxErrCRC].
func (p *Peripheral) InjectWire(wireFrame []byte) error {
	frame, ok := ethernet.CheckFCS(wireFrame)
	var fault dma.RxStatus
	if !ok {
		fault = dma.RxErrCRC
	}
	return p.InjectFault(frame, fault)
}

// enqueue is called with mu held.
func (p *Peripheral) enqueue(frame []byte, fault dma.RxStatus) error {
	if p.inbound.Free() < len(frame)+4 {
		p.stats.Missed++
		missed := p.dma[dma.RegMFBOCR/4]
		if missed&0xffff != 0xffff {
			p.dma[dma.RegMFBOCR/4] = missed + 1
		}
		return errQueueFull
	}
	buf := p.scratch[:4+len(frame)]
	binary.LittleEndian.PutUint32(buf, uint32(fault))
	copy(buf[4:], frame)
	return p.inbound.Push(buf)
}

// Pending returns the number of inbound frames not yet delivered.
func (p *Peripheral) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inbound.Len()
}

// Transmitted returns the frames sent since the last call and clears them.
// Frames sent to a [Wire] are not recorded.
func (p *Peripheral) Transmitted() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	frames := p.txlog
	p.txlog = nil
	return frames
}

// InjectTxFault makes the next transmitted frames complete with the given
// TDES0 error bits, one fault per frame. The error summary bit is always set.
func (p *Peripheral) InjectTxFault(faults ...dma.TxStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range faults {
		p.txFaults = append(p.txFaults, f|dma.TxErrSummary)
	}
}

// SetLink connects a link partner that negotiates mode. LinkDown unplugs the cable.
func (p *Peripheral) SetLink(mode phy.LinkMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phy.setPartner(mode)
	p.info("sim:link", slog.String("partner", mode.String()))
}

// SetLoopback routes transmitted frames back to the receive path.
func (p *Peripheral) SetLoopback(enable bool) {
	p.mu.Lock()
	p.loopback = enable
	p.mu.Unlock()
}

// Step performs one pass of the DMA engine: transmit every frame software
// handed over, then deliver queued inbound frames to the receive ring.
// It reports whether any descriptor was processed and raises the interrupt
// line if an enabled cause is pending.
func (p *Peripheral) Step() (busy bool) {
	p.mu.Lock()
	busy = p.stepTx()
	busy = p.stepRx() || busy
	handler := p.irq.pendingHandler()
	p.mu.Unlock()
	if handler != nil {
		handler()
	}
	return busy
}

func (p *Peripheral) stepTx() (busy bool) {
	sr := dma.Status(p.dma[dma.RegSR/4])
	if sr.TxState() != dma.Running || p.mac[eth.RegMACCR/4]&eth.MACCRTxEnable == 0 {
		return false
	}
	var causes dma.Status
	for {
		d, err := p.bus.descriptor(p.txCur)
		if err != nil {
			p.fatalBusError(err)
			return busy
		}
		word0 := d.word0()
		if word0&ownBit == 0 {
			sr = dma.Status(p.dma[dma.RegSR/4]).WithTxProcess(tpsSuspended)
			p.setStatus(sr)
			causes |= dma.StatusTxBufUnavail
			break
		}
		busy = true
		status := dma.TxStatus(word0)
		length := int(d.ctl() & dma.TxBufSizeMask)
		data, err := p.bus.slice(d.buf(), length)
		if err != nil {
			p.fatalBusError(err)
			return busy
		}
		if status&dma.TxFirst != 0 {
			p.txFrame = p.txFrame[:0]
		}
		p.txFrame = append(p.txFrame, data...)
		status &^= dma.TxErrSummary | dma.TxErrUnderflow | dma.TxErrJabber | dma.TxErrFlushed |
			dma.TxErrCarrier | dma.TxErrNoCarrier | dma.TxErrCollision | dma.TxErrExcessColls
		if status&dma.TxLast != 0 {
			if len(p.txFaults) > 0 {
				status |= p.txFaults[0]
				p.txFaults = p.txFaults[1:]
			} else {
				p.emit(p.txFrame)
			}
			p.txFrame = p.txFrame[:0]
			if status&dma.TxIntOnComplete != 0 {
				causes |= dma.StatusTx
			}
		}
		d.release(uint32(status))
		p.txCur = nextDesc(d, p.txCur, p.dma[dma.RegTDLAR/4], status&dma.TxChained != 0, status&dma.TxEndOfRing != 0)
	}
	p.raise(causes)
	return busy
}

func (p *Peripheral) emit(frame []byte) {
	if efrm, err := ethernet.NewFrame(frame); err == nil && p.logenabled(internal.LevelTrace) {
		p.trace("sim:tx", slog.Int("len", len(frame)),
			internal.SlogAddr6("src", efrm.SourceHardwareAddr()),
			internal.SlogAddr6("dst", efrm.DestinationHardwareAddr()),
			slog.Bool("vlan", efrm.IsVLAN()),
		)
	}
	if p.loopback || p.phy.loopback() {
		p.stats.Transmitted++
		p.enqueue(frame, 0)
		return
	} else if p.phy.mode() == phy.LinkDown {
		p.stats.NoCarrier++
		return // Frame is lost.
	}
	p.stats.Transmitted++
	if p.wire != nil {
		if err := p.wire.WriteFrame(frame); err != nil {
			p.stats.WireErrors++
			p.debug("sim:wire-write", slog.String("err", err.Error()))
		}
		return
	}
	p.txlog = append(p.txlog, append([]byte(nil), frame...))
}

func (p *Peripheral) stepRx() (busy bool) {
	sr := dma.Status(p.dma[dma.RegSR/4])
	if sr.RxState() != dma.Running || p.mac[eth.RegMACCR/4]&eth.MACCRRxEnable == 0 {
		return false
	}
	var causes dma.Status
	for p.inbound.Len() > 0 {
		d, err := p.bus.descriptor(p.rxCur)
		if err != nil {
			p.fatalBusError(err)
			return busy
		}
		if d.word0()&ownBit == 0 {
			p.setStatus(dma.Status(p.dma[dma.RegSR/4]).WithRxProcess(rpsSuspended))
			causes |= dma.StatusRxBufUnavail
			break
		}
		n, _ := p.inbound.Pop(p.scratch[:])
		fault := dma.RxStatus(binary.LittleEndian.Uint32(p.scratch[:4]))
		frame := p.scratch[4:n]
		if !p.accept(frame) {
			p.stats.Filtered++
			continue
		}
		busy = true
		if p.deliver(frame, fault) {
			causes |= dma.StatusRx
		}
	}
	p.raise(causes)
	return busy
}

// accept applies the MAC address filter.
func (p *Peripheral) accept(frame []byte) bool {
	ffr := p.mac[eth.RegMACFFR/4]
	efrm, err := ethernet.NewFrame(frame)
	if ffr&(eth.MACFFRReceiveAll|eth.MACFFRPromiscuous) != 0 || err != nil {
		return true
	}
	hi := p.mac[eth.RegMACA0HR/4]
	lo := p.mac[eth.RegMACA0LR/4]
	own := [6]byte{byte(lo), byte(lo >> 8), byte(lo >> 16), byte(lo >> 24), byte(hi), byte(hi >> 8)}
	return *efrm.DestinationHardwareAddr() == own || efrm.IsMulticast()
}

// deliver writes frame over as many receive descriptors as needed. It
// returns false if the ring ran out of descriptors mid-frame, in which case
// the remainder of the frame is lost.
func (p *Peripheral) deliver(frame []byte, fault dma.RxStatus) bool {
	first := true
	remaining := frame
	for {
		d, err := p.bus.descriptor(p.rxCur)
		if err != nil {
			p.fatalBusError(err)
			return false
		}
		word0 := d.word0()
		if word0&ownBit == 0 {
			p.setStatus(dma.Status(p.dma[dma.RegSR/4]).WithRxProcess(rpsSuspended))
			return false
		}
		ctl := d.ctl()
		size := min(int(ctl&dma.RxBufSizeMask), len(remaining))
		buf, err := p.bus.slice(d.buf(), size)
		if err != nil {
			p.fatalBusError(err)
			return false
		}
		copy(buf, remaining[:size])
		remaining = remaining[size:]
		var status dma.RxStatus
		if first {
			status |= dma.RxFirst
			first = false
		}
		if len(remaining) == 0 {
			status |= dma.RxLast | fault
			status = status.WithFrameLength(len(frame))
			if efrm, err := ethernet.NewFrame(frame); err == nil && efrm.EtherTypeOrSize().IsEtherType() {
				status |= dma.RxFrameType
			}
		}
		d.release(uint32(status))
		p.rxCur = nextDesc(d, p.rxCur, p.dma[dma.RegRDLAR/4], ctl&dma.RxChained != 0, ctl&dma.RxEndOfRing != 0)
		if len(remaining) == 0 {
			p.stats.Delivered++
			return true
		}
	}
}

// nextDesc returns the address of the descriptor following the one at cur.
func nextDesc(d *descriptor, cur, list uint32, chained, endOfRing bool) uint32 {
	switch {
	case chained:
		return d.next()
	case endOfRing:
		return list
	}
	// Ring mode without descriptor skip: descriptors are contiguous.
	return cur + dma.DescriptorSize
}

func (p *Peripheral) fatalBusError(err error) {
	sr := dma.Status(p.dma[dma.RegSR/4]).WithRxProcess(0).WithTxProcess(0)
	p.setStatus(sr | dma.StatusFatalBus | dma.StatusAbnormalSummary)
	p.info("sim:fatal-bus-error", slog.String("err", err.Error()))
}
