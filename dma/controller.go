package dma

import "github.com/soypat/stm32eth/hw"

// Ethernet DMA register offsets (RM0090 33.8.1).
const (
	RegBMR    = 0x00 // Bus mode register
	RegTPDR   = 0x04 // Transmit poll demand register
	RegRPDR   = 0x08 // Receive poll demand register
	RegRDLAR  = 0x0C // Receive descriptor list address register
	RegTDLAR  = 0x10 // Transmit descriptor list address register
	RegSR     = 0x14 // Status register
	RegOMR    = 0x18 // Operation mode register
	RegIER    = 0x1C // Interrupt enable register
	RegMFBOCR = 0x20 // Missed frame and buffer overflow counter register
	RegCHTDR  = 0x48 // Current host transmit descriptor register
	RegCHRDR  = 0x4C // Current host receive descriptor register

	// RegSize is the size of the DMA register block.
	RegSize = 0x58
)

// Bus mode register bits.
const (
	BMRSoftwareReset = 1 << 0
	BMRFixedBurst    = 1 << 16
	BMRSeparatePBL   = 1 << 23
	BMRAddrAligned   = 1 << 25

	BMRPBLPos   = 8  // Programmable burst length, 6 bits.
	BMRRxPBLPos = 17 // Rx DMA burst length, 6 bits.
	BMRPMPos    = 14 // Rx:Tx priority ratio, 2 bits.
)

// Operation mode register bits.
const (
	OMRStartRx          = 1 << 1
	OMROperateSecond    = 1 << 2
	OMRForwardErrFrames = 1 << 7
	OMRStartTx          = 1 << 13
	OMRFlushTxFIFO      = 1 << 20
	OMRTxStoreForward   = 1 << 21
	OMRNoFlushRxFrames  = 1 << 24
	OMRRxStoreForward   = 1 << 25
	OMRNoDropChecksum   = 1 << 26
)

// Interrupt enable register bits.
const (
	IERTx         = 1 << 0
	IERRx         = 1 << 6
	IERAbnormal   = 1 << 15
	IERNormal     = 1 << 16
	ierNormalMask = IERTx | IERRx | IERNormal
)

// Status is the value of the DMA status register (DMASR).
// Interrupt cause bits are write-1-to-clear.
type Status uint32

// DMASR bits.
const (
	StatusTx              Status = 1 << 0  // Transmit complete
	StatusTxStopped       Status = 1 << 1  // Transmit process stopped
	StatusTxBufUnavail    Status = 1 << 2  // Transmit buffer unavailable
	StatusTxJabber        Status = 1 << 3  // Transmit jabber timeout
	StatusRxOverflow      Status = 1 << 4  // Receive overflow
	StatusTxUnderflow     Status = 1 << 5  // Transmit underflow
	StatusRx              Status = 1 << 6  // Receive complete
	StatusRxBufUnavail    Status = 1 << 7  // Receive buffer unavailable
	StatusRxStopped       Status = 1 << 8  // Receive process stopped
	StatusRxWatchdog      Status = 1 << 9  // Receive watchdog timeout
	StatusEarlyTx         Status = 1 << 10 // Early transmit
	StatusFatalBus        Status = 1 << 13 // Fatal bus error
	StatusEarlyRx         Status = 1 << 14 // Early receive
	StatusAbnormalSummary Status = 1 << 15 // Abnormal interrupt summary
	StatusNormalSummary   Status = 1 << 16 // Normal interrupt summary

	statusRxStatePos = 17
	statusTxStatePos = 20
	statusStateMask  = 0b111

	// StatusAckMask are the causes acknowledged by [AckInterrupts].
	StatusAckMask = StatusNormalSummary | StatusRx | StatusTx
)

// RxProcess returns the raw receive process state field (RPS).
func (s Status) RxProcess() uint8 { return uint8(s>>statusRxStatePos) & statusStateMask }

// TxProcess returns the raw transmit process state field (TPS).
func (s Status) TxProcess() uint8 { return uint8(s>>statusTxStatePos) & statusStateMask }

// RxState decodes the receive process state.
func (s Status) RxState() RunningState {
	switch s.RxProcess() {
	case 0:
		return Stopped
	case 4: // Receive descriptor unavailable.
		return Suspended
	default:
		return Running
	}
}

// TxState decodes the transmit process state.
func (s Status) TxState() RunningState {
	switch s.TxProcess() {
	case 0:
		return Stopped
	case 6: // Transmit descriptor unavailable or underflow.
		return Suspended
	default:
		return Running
	}
}

// WithRxProcess returns s with the RPS field set to state.
// Used by DMA engine implementations.
func (s Status) WithRxProcess(state uint8) Status {
	return s&^(statusStateMask<<statusRxStatePos) | Status(state&statusStateMask)<<statusRxStatePos
}

// WithTxProcess returns s with the TPS field set to state.
// Used by DMA engine implementations.
func (s Status) WithTxProcess(state uint8) Status {
	return s&^(statusStateMask<<statusTxStatePos) | Status(state&statusStateMask)<<statusTxStatePos
}

// RunningState is the state of a DMA process as read from DMASR.
type RunningState uint8

const (
	Stopped   RunningState = iota // stopped
	Running                       // running
	Suspended                     // suspended
)

// IsRunning returns true if the DMA process is scanning its ring.
func (rs RunningState) IsRunning() bool { return rs == Running }


// Controller drives the Ethernet DMA register block.
type Controller struct {
	regs hw.Peripheral
}

// NewController returns a Controller for the DMA register block regs.
func NewController(regs hw.Peripheral) *Controller {
	return &Controller{regs: regs}
}

// Registers returns the DMA register block.
func (c *Controller) Registers() hw.Peripheral { return c.regs }

// BusMode returns the bus mode register (DMABMR).
func (c *Controller) BusMode() hw.Reg { return hw.NewReg(c.regs, RegBMR) }

// OperationMode returns the operation mode register (DMAOMR).
func (c *Controller) OperationMode() hw.Reg { return hw.NewReg(c.regs, RegOMR) }

// InterruptEnable returns the interrupt enable register (DMAIER).
func (c *Controller) InterruptEnable() hw.Reg { return hw.NewReg(c.regs, RegIER) }

// Status reads DMASR. It does not modify any state.
func (c *Controller) Status() Status { return Status(c.regs.Read32(RegSR)) }

// RxState returns the receive process state.
func (c *Controller) RxState() RunningState { return c.Status().RxState() }

// TxState returns the transmit process state.
func (c *Controller) TxState() RunningState { return c.Status().TxState() }

// RxPollDemand makes a suspended receive process re-read the current descriptor.
func (c *Controller) RxPollDemand() { c.regs.Write32(RegRPDR, 1) }

// TxPollDemand makes a suspended transmit process re-read the current descriptor.
func (c *Controller) TxPollDemand() { c.regs.Write32(RegTPDR, 1) }

// SoftwareReset resets all MAC subsystem internal registers and logic and
// waits for the DMA to clear the reset bit.
func (c *Controller) SoftwareReset(p hw.Poller) error {
	bmr := c.BusMode()
	bmr.SetBits(BMRSoftwareReset)
	return p.Until(func() (bool, error) {
		return !bmr.HasBits(BMRSoftwareReset), nil
	})
}

// EnableInterrupts enables the normal interrupt summary together with the
// receive and transmit complete interrupts.
func (c *Controller) EnableInterrupts() {
	c.InterruptEnable().SetBits(ierNormalMask)
}

func (c *Controller) startRx(list uint32) {
	c.regs.Write32(RegRDLAR, list)
	c.OperationMode().SetBits(OMRStartRx)
}

func (c *Controller) startTx(list uint32) {
	c.regs.Write32(RegTDLAR, list)
	c.OperationMode().SetBits(OMRStartTx)
}

// AckInterrupts clears the normal interrupt summary, receive and transmit
// complete causes in DMASR and returns which of them were pending.
// It only touches DMASR so it is safe to call from an interrupt handler
// while the rings are in use elsewhere.
func AckInterrupts(regs hw.Peripheral) Status {
	pending := Status(regs.Read32(RegSR)) & StatusAckMask
	regs.Write32(RegSR, uint32(StatusAckMask))
	return pending
}
