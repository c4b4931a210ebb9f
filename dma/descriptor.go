package dma

import "sync/atomic"

// Descriptors use the STM32 "normal descriptor" layout in chained mode:
//
//	word 0: OWN bit, status and control flags
//	word 1: buffer sizes and chain flag
//	word 2: buffer 1 bus address
//	word 3: next descriptor bus address
//
// The DMA engine reads and writes these words concurrently with the CPU.
const (
	ownBit = 1 << 31

	// DescriptorSize is the size of a descriptor in memory.
	DescriptorSize = 16
)

// ownFlag is word 0 of a descriptor. Its OWN bit hands the descriptor and
// its buffer between software and the DMA engine, and is the only
// synchronization between the two. Whoever does not own the descriptor must
// not touch the buffer nor any other descriptor word.
//
// tryTake is an acquire load and giveBack a release store: everything the
// DMA wrote before clearing OWN is visible after a successful tryTake and
// everything software wrote before giveBack is visible to the DMA once it
// observes OWN set. sync/atomic provides this ordering in both the Go and
// TinyGo memory models.
type ownFlag struct {
	w atomic.Uint32
}

// tryTake returns word 0 and true if software owns the descriptor.
// The returned word is the status snapshot that must be used; the word is
// not to be re-read.
func (f *ownFlag) tryTake() (word uint32, ok bool) {
	word = f.w.Load()
	return word, word&ownBit == 0
}

// giveBack publishes word with OWN set, handing the descriptor to the DMA.
func (f *ownFlag) giveBack(word uint32) {
	f.w.Store(word | ownBit)
}

// init stores word with OWN clear. Only valid before the DMA is pointed at
// the descriptor.
func (f *ownFlag) init(word uint32) {
	f.w.Store(word &^ ownBit)
}

// load returns word 0 for inspection without taking ownership.
func (f *ownFlag) load() uint32 { return f.w.Load() }

// RxStatus is word 0 of a receive descriptor (RDES0).
type RxStatus uint32

// RDES0 bits.
const (
	RxOwn           RxStatus = ownBit
	RxFilterFail    RxStatus = 1 << 30 // Destination address filter fail
	RxErrSummary    RxStatus = 1 << 15 // Error summary
	RxErrDescriptor RxStatus = 1 << 14 // Descriptor error
	RxErrLength     RxStatus = 1 << 12 // Length error
	RxErrOverflow   RxStatus = 1 << 11 // Overflow error
	RxVLAN          RxStatus = 1 << 10 // VLAN tag
	RxFirst         RxStatus = 1 << 9  // First descriptor of frame
	RxLast          RxStatus = 1 << 8  // Last descriptor of frame
	RxErrHeaderCsum RxStatus = 1 << 7  // IP header checksum error
	RxErrCollision  RxStatus = 1 << 6  // Late collision
	RxFrameType     RxStatus = 1 << 5  // Ethernet type frame
	RxErrWatchdog   RxStatus = 1 << 4  // Receive watchdog timeout
	RxErrReceive    RxStatus = 1 << 3  // Receive error
	RxErrDribble    RxStatus = 1 << 2  // Dribble bit error
	RxErrCRC        RxStatus = 1 << 1  // CRC error
	RxErrPayload    RxStatus = 1 << 0  // Payload checksum error

	rxFrameLenPos  = 16
	rxFrameLenMask = 0x3fff
)

// FrameLength is the received frame length reported by the DMA.
// Valid when [RxLast] is set.
func (s RxStatus) FrameLength() int { return int(s>>rxFrameLenPos) & rxFrameLenMask }

// WithFrameLength returns s with the frame length field set to n.
func (s RxStatus) WithFrameLength(n int) RxStatus {
	return s&^(rxFrameLenMask<<rxFrameLenPos) | RxStatus(n&rxFrameLenMask)<<rxFrameLenPos
}

// RDES1 bits.
const (
	RxChained     = 1 << 14 // Second address is the next descriptor
	RxEndOfRing   = 1 << 15
	RxBufSizeMask = 0x1fff
)

// RxDescriptor is a receive DMA descriptor.
type RxDescriptor struct {
	status ownFlag
	ctl    atomic.Uint32
	buf    atomic.Uint32
	next   atomic.Uint32
}

// Status reads RDES0.
func (d *RxDescriptor) Status() RxStatus { return RxStatus(d.status.load()) }

// OwnedByDMA reports whether the DMA engine owns the descriptor.
func (d *RxDescriptor) OwnedByDMA() bool {
	_, sw := d.status.tryTake()
	return !sw
}

// TxStatus is word 0 of a transmit descriptor (TDES0).
// It holds control bits set by software and status bits written back by the DMA.
type TxStatus uint32

// TDES0 bits.
const (
	TxOwn            TxStatus = ownBit
	TxIntOnComplete  TxStatus = 1 << 30 // Interrupt on completion
	TxLast           TxStatus = 1 << 29 // Last segment
	TxFirst          TxStatus = 1 << 28 // First segment
	TxDisableCRC     TxStatus = 1 << 27
	TxDisablePad     TxStatus = 1 << 26
	TxEndOfRing      TxStatus = 1 << 21
	TxChained        TxStatus = 1 << 20 // Second address is the next descriptor
	TxErrSummary     TxStatus = 1 << 15 // Error summary
	TxErrJabber      TxStatus = 1 << 14 // Jabber timeout
	TxErrFlushed     TxStatus = 1 << 13 // Frame flushed
	TxErrCarrier     TxStatus = 1 << 11 // Loss of carrier
	TxErrNoCarrier   TxStatus = 1 << 10 // No carrier
	TxErrCollision   TxStatus = 1 << 9  // Late collision
	TxErrExcessColls TxStatus = 1 << 8  // Excessive collision
	TxErrUnderflow   TxStatus = 1 << 1  // Underflow error
	TxDeferred       TxStatus = 1 << 0  // Deferred bit

	txControl = TxIntOnComplete | TxLast | TxFirst | TxChained
)

// TDES1 bits.
const TxBufSizeMask = 0x1fff

// TxDescriptor is a transmit DMA descriptor.
type TxDescriptor struct {
	status ownFlag
	ctl    atomic.Uint32
	buf    atomic.Uint32
	next   atomic.Uint32
}

// Status reads TDES0.
func (d *TxDescriptor) Status() TxStatus { return TxStatus(d.status.load()) }

// OwnedByDMA reports whether the DMA engine owns the descriptor.
func (d *TxDescriptor) OwnedByDMA() bool {
	_, sw := d.status.tryTake()
	return !sw
}

// FrameLength returns the length programmed into TDES1.
func (d *TxDescriptor) FrameLength() int { return int(d.ctl.Load() & TxBufSizeMask) }
