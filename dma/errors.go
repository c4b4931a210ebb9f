package dma

//go:generate stringer -type=errRing,RunningState -linecomment -output stringers.go .

type errRing uint8

// Ring errors. All of them are returned to the immediate caller and none is
// retried by the ring. Receive errors other than [ErrRxWouldBlock] and
// [ErrRxBusy] have already discarded the faulty frame and returned its
// descriptor to the DMA.
const (
	_               errRing = iota // non-initialized err
	ErrRxWouldBlock                // no frame ready
	ErrRxTruncated                 // frame truncated
	ErrRxTooLarge                  // frame too large
	ErrRxCRC                       // frame CRC error
	ErrRxFrameFault                // frame fault flagged by DMA
	ErrRxBusy                      // previous packet not released
	ErrTxWouldBlock                // transmit ring full
	ErrTxTooLarge                  // frame exceeds buffer
)

func (err errRing) Error() string {
	return err.String()
}
