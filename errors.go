package stm32eth

//go:generate stringer -type=errGeneric -linecomment -output stringers.go .

type errGeneric uint8

// Generic errors common to the driver packages.
const (
	_                 errGeneric = iota // non-initialized err
	ErrInvalidConfig                    // invalid configuration
	ErrInvalidAddr                      // invalid address
	ErrUnsupported                      // unsupported
	ErrTimeout                          // timeout polling hardware
	ErrShortBuffer                      // short buffer
	ErrNotStarted                       // DMA not started
	ErrAlreadyStarted                   // DMA already started
)

func (err errGeneric) Error() string {
	return err.String()
}
