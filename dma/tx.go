package dma

import (
	"log/slog"
	"unsafe"

	"github.com/soypat/stm32eth"
	"github.com/soypat/stm32eth/hw"
	"github.com/soypat/stm32eth/internal"
)

// TxEntry is a transmit descriptor and the buffer it points to.
// Entries must reside in memory the DMA engine can access.
type TxEntry struct {
	desc TxDescriptor
	buf  [stm32eth.BufferSize]byte
}

// Descriptor returns the entry's descriptor.
func (e *TxEntry) Descriptor() *TxDescriptor { return &e.desc }

// Buffer returns the entry's buffer. Only meaningful to whoever owns the descriptor.
func (e *TxEntry) Buffer() []byte { return e.buf[:] }

// TxRing hands transmit buffers to the DMA engine in strict circular order.
//
// TxRing is not safe for concurrent use.
type TxRing struct {
	logger
	entries []TxEntry
	ctl     *Controller
	next    int
	stats   TxStats
}

// Configure takes ownership of entries for the lifetime of the ring. Every
// descriptor is pointed at its buffer, chained to the next entry and left
// owned by software, ready to be filled.
func (t *TxRing) Configure(entries []TxEntry, m hw.AddrMapper) error {
	if len(entries) == 0 || m == nil {
		return stm32eth.ErrInvalidConfig
	} else if t.ctl != nil {
		return stm32eth.ErrAlreadyStarted
	}
	for i := range entries {
		e := &entries[i]
		next := &entries[(i+1)%len(entries)]
		e.desc.buf.Store(m.BusAddr(unsafe.Pointer(&e.buf[0]), uintptr(len(e.buf))))
		e.desc.next.Store(m.BusAddr(unsafe.Pointer(&next.desc), DescriptorSize))
		e.desc.ctl.Store(0)
		e.desc.status.init(uint32(TxChained))
	}
	*t = TxRing{logger: t.logger, entries: entries}
	return nil
}

// SetLogger sets the logger used to trace transmit errors.
func (t *TxRing) SetLogger(l *slog.Logger) { t.log = l }

// Start points the DMA at the first descriptor and starts the transmit process.
// It must be called once after [TxRing.Configure] and before [TxRing.Send].
func (t *TxRing) Start(ctl *Controller) error {
	if len(t.entries) == 0 || ctl == nil {
		return stm32eth.ErrInvalidConfig
	} else if t.ctl != nil {
		return stm32eth.ErrAlreadyStarted
	}
	t.ctl = ctl
	ctl.startTx(t.entries[len(t.entries)-1].desc.next.Load())
	t.debug("tx:start", slog.Int("entries", len(t.entries)))
	return nil
}

// Len returns the number of entries in the ring.
func (t *TxRing) Len() int { return len(t.entries) }

// Cursor returns the index of the entry the next Send fills.
func (t *TxRing) Cursor() int { return t.next }

// Entry returns the i'th entry of the ring.
func (t *TxRing) Entry(i int) *TxEntry { return &t.entries[i] }

// Stats returns the ring's counters.
func (t *TxRing) Stats() TxStats { return t.stats }

// RunningState returns the transmit process state. It does not modify the ring.
func (t *TxRing) RunningState() RunningState {
	if t.ctl == nil {
		return Stopped
	}
	return t.ctl.TxState()
}

// IsRunning returns true if the transmit process is running.
func (t *TxRing) IsRunning() bool { return t.RunningState().IsRunning() }

// Send hands a frame of length bytes to the DMA. fill is called with the
// entry's buffer trimmed to length and must write the whole frame into it;
// the ring never copies frame data. If fill returns an error the entry is
// left untouched and the error returned.
//
// [ErrTxWouldBlock] is returned when the entry at the cursor is still owned
// by the DMA and [ErrTxTooLarge] when length exceeds [stm32eth.MTU]; fill is
// not called in either case. Every call writes a transmit poll demand so a
// suspended DMA picks the new frame up.
func (t *TxRing) Send(length int, fill func(frame []byte) error) error {
	if t.ctl == nil {
		return stm32eth.ErrNotStarted
	}
	err := t.send(length, fill)
	t.ctl.TxPollDemand()
	return err
}

// SendResult is [TxRing.Send] for fillers that produce a value while
// writing the frame, such as a sequence number or checksum. The value is
// returned alongside Send's error and is the zero R when fill was not called.
func SendResult[R any](t *TxRing, length int, fill func(frame []byte) (R, error)) (result R, err error) {
	if fill == nil {
		return result, t.Send(length, nil)
	}
	err = t.Send(length, func(frame []byte) error {
		var ferr error
		result, ferr = fill(frame)
		return ferr
	})
	return result, err
}

func (t *TxRing) send(length int, fill func([]byte) error) error {
	e := &t.entries[t.next]
	word, ok := e.desc.status.tryTake()
	if !ok {
		t.stats.WouldBlock++
		return ErrTxWouldBlock
	} else if length > stm32eth.MTU {
		t.stats.TooLarge++
		return ErrTxTooLarge
	} else if length <= 0 {
		return stm32eth.ErrShortBuffer
	}
	if fill != nil {
		if err := fill(e.buf[:length]); err != nil {
			return err
		}
	}
	if prev := TxStatus(word); prev&TxFirst != 0 && prev&TxErrSummary != 0 {
		t.stats.Errors++
		if t.logenabled(internal.LevelTrace) {
			t.trace("tx:error", slog.Int("idx", t.next), slog.Uint64("tdes0", uint64(prev)))
		}
	}
	e.desc.ctl.Store(uint32(length) & TxBufSizeMask)
	e.desc.status.giveBack(uint32(txControl))
	t.stats.Frames++
	t.stats.Bytes += uint64(length)
	t.next++
	if t.next == len(t.entries) {
		t.next = 0
	}
	return nil
}
