package sim

import (
	"github.com/soypat/stm32eth/dma"
	"github.com/soypat/stm32eth/eth"
)

// DMA register bits the simulator acts on that the driver never writes.
const (
	omrFlushTxFIFO  = dma.OMRFlushTxFIFO
	ierRxBufUnavail = 1 << 7
	ierTxBufUnavail = 1 << 2

	// DMASR bits that are write-1-to-clear. The process state fields are read-only.
	statusW1C = 0x1_ffff

	rpsRunning   = 3 // Waiting for a frame.
	rpsSuspended = 4
	tpsRunning   = 1
	tpsSuspended = 6
)

type macRegs struct{ p *Peripheral }

func (r macRegs) Read32(off uintptr) uint32 {
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if off/4 >= uintptr(len(p.mac)) {
		return 0
	}
	v := p.mac[off/4]
	if off == eth.RegMACMIIAR && p.miiBusy > 0 {
		p.miiBusy--
		if p.miiBusy == 0 {
			p.mac[off/4] &^= eth.MIIARBusy
		}
	}
	return v
}

func (r macRegs) Write32(off uintptr, v uint32) {
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if off/4 >= uintptr(len(p.mac)) {
		return
	}
	switch off {
	case eth.RegMACMIIAR:
		if p.miiBusy > 0 {
			// Writes while busy are ignored by the silicon.
			return
		}
		p.mac[off/4] = v
		if v&eth.MIIARBusy != 0 {
			p.miiTransaction(v)
		}
		return
	case eth.RegMACA0HR:
		v |= 1 << 31 // Always 1.
	}
	p.mac[off/4] = v
}

// miiTransaction performs the management frame programmed in MACMIIAR.
func (p *Peripheral) miiTransaction(miiar uint32) {
	const regMask = 0x1f
	phyAddr := uint8(miiar>>11) & regMask
	regAddr := uint8(miiar>>6) & regMask
	if miiar&eth.MIIARWrite != 0 {
		p.phy.write(phyAddr, regAddr, uint16(p.mac[eth.RegMACMIIDR/4]))
	} else {
		p.mac[eth.RegMACMIIDR/4] = uint32(p.phy.read(phyAddr, regAddr))
	}
	if p.miiBusyCfg <= 0 {
		p.mac[eth.RegMACMIIAR/4] &^= eth.MIIARBusy
		return
	}
	p.miiBusy = p.miiBusyCfg
}

type dmaRegs struct{ p *Peripheral }

func (r dmaRegs) Read32(off uintptr) uint32 {
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()
	switch off {
	case dma.RegBMR:
		v := p.dma[off/4]
		if p.resetBusy > 0 {
			p.resetBusy--
			if p.resetBusy == 0 {
				p.finishSoftwareReset()
			}
		}
		return v
	case dma.RegMFBOCR:
		v := p.dma[off/4]
		p.dma[off/4] = 0 // Cleared on read.
		return v
	case dma.RegCHTDR:
		return p.txCur
	case dma.RegCHRDR:
		return p.rxCur
	}
	if off/4 >= uintptr(len(p.dma)) {
		return 0
	}
	return p.dma[off/4]
}

func (r dmaRegs) Write32(off uintptr, v uint32) {
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()
	sr := dma.Status(p.dma[dma.RegSR/4])
	switch off {
	case dma.RegBMR:
		p.dma[off/4] = v
		if v&dma.BMRSoftwareReset != 0 {
			p.resetBusy = p.dmaResetCfg
			if p.resetBusy <= 0 {
				p.finishSoftwareReset()
			}
		}
	case dma.RegTPDR:
		if sr.TxState() == dma.Suspended {
			p.setStatus(sr.WithTxProcess(tpsRunning))
		}
	case dma.RegRPDR:
		if sr.RxState() == dma.Suspended {
			p.setStatus(sr.WithRxProcess(rpsRunning))
		}
	case dma.RegRDLAR:
		p.dma[off/4] = v
		p.rxCur = v
	case dma.RegTDLAR:
		p.dma[off/4] = v
		p.txCur = v
	case dma.RegSR:
		p.setStatus(sr &^ dma.Status(v&statusW1C))
	case dma.RegOMR:
		p.writeOMR(v)
	case dma.RegMFBOCR, dma.RegCHTDR, dma.RegCHRDR:
		// Read-only.
	default:
		if off/4 < uintptr(len(p.dma)) {
			p.dma[off/4] = v
		}
	}
}

func (p *Peripheral) writeOMR(v uint32) {
	old := p.dma[dma.RegOMR/4]
	sr := dma.Status(p.dma[dma.RegSR/4])
	if v&dma.OMRStartRx != 0 && old&dma.OMRStartRx == 0 {
		sr = sr.WithRxProcess(rpsRunning)
	} else if v&dma.OMRStartRx == 0 {
		sr = sr.WithRxProcess(0)
	}
	if v&dma.OMRStartTx != 0 && old&dma.OMRStartTx == 0 {
		sr = sr.WithTxProcess(tpsRunning)
	} else if v&dma.OMRStartTx == 0 {
		sr = sr.WithTxProcess(0)
	}
	if v&omrFlushTxFIFO != 0 {
		p.txFrame = p.txFrame[:0]
		v &^= omrFlushTxFIFO // Self-clearing.
	}
	p.dma[dma.RegOMR/4] = v
	p.setStatus(sr)
}

func (p *Peripheral) finishSoftwareReset() {
	p.resetRegisters()
	p.debug("sim:dma-reset")
}

func (p *Peripheral) setStatus(sr dma.Status) {
	p.dma[dma.RegSR/4] = uint32(sr)
}

// raise sets interrupt cause bits and the summary bits they enable.
func (p *Peripheral) raise(causes dma.Status) {
	sr := dma.Status(p.dma[dma.RegSR/4]) | causes
	ier := p.dma[dma.RegIER/4]
	if ier&dma.IERNormal != 0 &&
		(sr&dma.StatusRx != 0 && ier&dma.IERRx != 0 ||
			sr&dma.StatusTx != 0 && ier&dma.IERTx != 0 ||
			sr&dma.StatusTxBufUnavail != 0 && ier&ierTxBufUnavail != 0) {
		sr |= dma.StatusNormalSummary
	}
	if ier&dma.IERAbnormal != 0 && sr&dma.StatusRxBufUnavail != 0 && ier&ierRxBufUnavail != 0 {
		sr |= dma.StatusAbnormalSummary
	}
	p.setStatus(sr)
}
