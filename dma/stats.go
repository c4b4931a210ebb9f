package dma

// RxStats counts receive ring outcomes.
type RxStats struct {
	Frames     uint64 // Frames handed to the caller.
	Bytes      uint64 // Bytes handed to the caller.
	WouldBlock uint64
	Truncated  uint64
	TooLarge   uint64
	CRC        uint64
	Faults     uint64
}

// Dropped returns the number of frames discarded because of errors.
func (s RxStats) Dropped() uint64 {
	return s.Truncated + s.TooLarge + s.CRC + s.Faults
}

func (s *RxStats) count(err error) {
	switch err {
	case ErrRxWouldBlock:
		s.WouldBlock++
	case ErrRxTruncated:
		s.Truncated++
	case ErrRxTooLarge:
		s.TooLarge++
	case ErrRxCRC:
		s.CRC++
	case ErrRxFrameFault:
		s.Faults++
	}
}

// TxStats counts transmit ring outcomes.
type TxStats struct {
	Frames     uint64 // Frames handed to the DMA.
	Bytes      uint64 // Bytes handed to the DMA.
	WouldBlock uint64
	TooLarge   uint64
	// Errors counts frames the DMA completed with the error summary set.
	// Counted when the descriptor is reused.
	Errors uint64
}
