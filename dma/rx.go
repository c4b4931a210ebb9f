package dma

import (
	"log/slog"
	"unsafe"

	"github.com/soypat/stm32eth"
	"github.com/soypat/stm32eth/hw"
	"github.com/soypat/stm32eth/internal"
)

// RxEntry is a receive descriptor and the buffer it points to.
// Entries must reside in memory the DMA engine can access.
type RxEntry struct {
	desc RxDescriptor
	buf  [stm32eth.BufferSize]byte
}

// Descriptor returns the entry's descriptor.
func (e *RxEntry) Descriptor() *RxDescriptor { return &e.desc }

// RxRing hands receive buffers back and forth between software and the DMA
// engine. Entries are consumed in strict circular order starting at index 0.
//
// RxRing is not safe for concurrent use.
type RxRing struct {
	logger
	entries []RxEntry
	ctl     *Controller
	// next is the index of the oldest entry not yet processed by software.
	next int
	// seq identifies the outstanding packet, if pending.
	seq     uint32
	pending bool
	stats   RxStats
}

// Configure takes ownership of entries for the lifetime of the ring. Every
// descriptor is pointed at its buffer, chained to the next entry and handed
// to the DMA, ready to receive.
func (r *RxRing) Configure(entries []RxEntry, m hw.AddrMapper) error {
	if len(entries) == 0 || m == nil {
		return stm32eth.ErrInvalidConfig
	} else if r.ctl != nil {
		return stm32eth.ErrAlreadyStarted
	}
	for i := range entries {
		e := &entries[i]
		next := &entries[(i+1)%len(entries)]
		e.desc.buf.Store(m.BusAddr(unsafe.Pointer(&e.buf[0]), uintptr(len(e.buf))))
		e.desc.next.Store(m.BusAddr(unsafe.Pointer(&next.desc), DescriptorSize))
		e.desc.ctl.Store(RxChained | uint32(len(e.buf))&RxBufSizeMask)
		e.desc.status.giveBack(0)
	}
	*r = RxRing{logger: r.logger, entries: entries}
	return nil
}

// SetLogger sets the logger used to trace discarded frames.
func (r *RxRing) SetLogger(l *slog.Logger) { r.log = l }

// Start points the DMA at the first descriptor and starts the receive process.
// It must be called once after [RxRing.Configure].
func (r *RxRing) Start(ctl *Controller) error {
	if len(r.entries) == 0 || ctl == nil {
		return stm32eth.ErrInvalidConfig
	} else if r.ctl != nil {
		return stm32eth.ErrAlreadyStarted
	}
	r.ctl = ctl
	// The last entry is chained to the first.
	ctl.startRx(r.entries[len(r.entries)-1].desc.next.Load())
	r.debug("rx:start", slog.Int("entries", len(r.entries)))
	return nil
}

// IsRunning returns true if the receive process is running.
func (r *RxRing) IsRunning() bool { return r.RunningState().IsRunning() }

// Len returns the number of entries in the ring.
func (r *RxRing) Len() int { return len(r.entries) }

// Cursor returns the index of the next entry RecvNext inspects.
func (r *RxRing) Cursor() int { return r.next }

// Entry returns the i'th entry of the ring.
func (r *RxRing) Entry(i int) *RxEntry { return &r.entries[i] }

// Stats returns the ring's counters.
func (r *RxRing) Stats() RxStats { return r.stats }

// RunningState returns the receive process state. It does not modify the ring.
func (r *RxRing) RunningState() RunningState {
	if r.ctl == nil {
		return Stopped
	}
	return r.ctl.RxState()
}

// RecvNext returns the next received frame. [ErrRxWouldBlock] is returned
// when the DMA has not yet filled the entry at the cursor; this is the
// expected outcome of polling an idle link.
//
// Frames flagged faulty by the DMA are discarded: their descriptor is handed
// back, the cursor advanced and the specific error returned.
// The returned packet must be released with [RxPacket.Release] before the
// next call to RecvNext, which returns [ErrRxBusy] otherwise.
func (r *RxRing) RecvNext() (RxPacket, error) {
	if len(r.entries) == 0 {
		return RxPacket{}, stm32eth.ErrInvalidConfig
	} else if r.pending {
		return RxPacket{}, ErrRxBusy
	}
	e := &r.entries[r.next]
	word, ok := e.desc.status.tryTake()
	if !ok {
		r.stats.WouldBlock++
		return RxPacket{}, ErrRxWouldBlock
	}
	status := RxStatus(word)
	if err := status.err(); err != nil {
		r.stats.count(err)
		if r.logenabled(internal.LevelTrace) {
			r.trace("rx:discard",
				slog.Int("idx", r.next),
				slog.Uint64("rdes0", uint64(status)),
				slog.String("err", err.Error()),
			)
		}
		r.handBack(e)
		return RxPacket{}, err
	}
	n := status.FrameLength()
	r.pending = true
	r.seq++
	r.stats.Frames++
	r.stats.Bytes += uint64(n)
	return RxPacket{ring: r, seq: r.seq, idx: r.next, n: n}, nil
}

// handBack returns the entry at the cursor to the DMA and advances the
// cursor. A receive process suspended on this entry is resumed with a poll
// demand, otherwise no further frames are delivered.
func (r *RxRing) handBack(e *RxEntry) {
	e.desc.status.giveBack(0)
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
	}
	if r.ctl != nil && r.ctl.RxState() == Suspended {
		r.ctl.RxPollDemand()
	}
}

func (r *RxRing) release(p *RxPacket) {
	if !r.pending || p.ring != r || p.seq != r.seq {
		return
	}
	r.pending = false
	r.handBack(&r.entries[p.idx])
}

func (s RxStatus) err() error {
	const firstLast = RxFirst | RxLast
	n := s.FrameLength()
	switch {
	case s&firstLast != firstLast:
		return ErrRxTruncated // Frame does not fit in one buffer.
	case s&RxErrCRC != 0:
		return ErrRxCRC
	case s&(RxErrLength|RxErrWatchdog) != 0 || n > stm32eth.MTU:
		return ErrRxTooLarge
	case s&RxErrSummary != 0:
		return ErrRxFrameFault
	case n < stm32eth.SizeHeader:
		return ErrRxTruncated
	}
	return nil
}

// RxPacket is a received frame still residing in its ring buffer.
// It is valid until released and must not outlive the ring.
type RxPacket struct {
	ring *RxRing
	seq  uint32
	idx  int
	n    int
}

// Data returns the frame as written by the DMA. The slice aliases the ring
// buffer: it may be modified in place and must not be used after Release.
// Data returns nil for a released packet.
func (p *RxPacket) Data() []byte {
	if !p.valid() {
		return nil
	}
	return p.ring.entries[p.idx].buf[:p.n]
}

// Len returns the frame length.
func (p *RxPacket) Len() int { return p.n }

// Index returns the ring index of the entry holding the frame.
func (p *RxPacket) Index() int { return p.idx }

// Release hands the buffer back to the DMA and advances the ring cursor.
// Calling Release more than once has no effect.
func (p *RxPacket) Release() {
	if p.ring != nil {
		p.ring.release(p)
	}
}

func (p *RxPacket) valid() bool {
	return p.ring != nil && p.ring.pending && p.ring.seq == p.seq
}
