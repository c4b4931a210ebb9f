package sim

import (
	"testing"

	"github.com/soypat/stm32eth"
	"github.com/soypat/stm32eth/dma"
	"github.com/soypat/stm32eth/eth"
	"github.com/soypat/stm32eth/hw"
	"github.com/soypat/stm32eth/phy"
)

func TestStatusWriteOneToClear(t *testing.T) {
	p := New(Config{})
	regs := p.DMA()
	p.mu.Lock()
	p.setStatus(dma.StatusRx | dma.StatusTx | dma.StatusNormalSummary | dma.Status(0).WithRxProcess(rpsRunning))
	p.mu.Unlock()
	regs.Write32(dma.RegSR, uint32(dma.StatusTx))
	sr := dma.Status(regs.Read32(dma.RegSR))
	if sr&dma.StatusTx != 0 {
		t.Fatal("TS not cleared")
	}
	if sr&(dma.StatusRx|dma.StatusNormalSummary) != dma.StatusRx|dma.StatusNormalSummary {
		t.Fatal("writing one bit cleared others")
	}
	regs.Write32(dma.RegSR, 0xffff_ffff)
	sr = dma.Status(regs.Read32(dma.RegSR))
	if sr&statusW1C != 0 {
		t.Fatalf("cause bits remain: %#x", sr)
	}
	if sr.RxState() != dma.Running {
		t.Fatal("process state must be read-only, got", sr.RxState())
	}
}

func TestMIIBusyReads(t *testing.T) {
	const busy = 3
	p := New(Config{PHY: phy.VariantLAN8742, MIIBusyReads: busy})
	mac := hw.NewReg(p.MAC(), eth.RegMACMIIAR)
	mac.Set(eth.MIIARBusy | uint32(phy.AddrPHYID1)<<6)
	for i := 0; i < busy; i++ {
		if !mac.HasBits(eth.MIIARBusy) {
			t.Fatalf("busy cleared after %d reads; want %d", i, busy)
		}
	}
	if mac.HasBits(eth.MIIARBusy) {
		t.Fatal("busy not cleared")
	}
	if got := p.MAC().Read32(eth.RegMACMIIDR); got != 0x0007 {
		t.Fatalf("got PHYID1 %#x; want LAN8742 0x0007", got)
	}
}

func TestMIIWriteWhileBusyIgnored(t *testing.T) {
	p := New(Config{PHY: phy.VariantLAN8742, MIIBusyReads: 2})
	mac := p.MAC()
	mac.Write32(eth.RegMACMIIAR, eth.MIIARBusy|uint32(phy.AddrPHYID2)<<6)
	mac.Write32(eth.RegMACMIIAR, eth.MIIARBusy|uint32(phy.AddrPHYID1)<<6)
	mac.Read32(eth.RegMACMIIAR)
	mac.Read32(eth.RegMACMIIAR)
	if got := mac.Read32(eth.RegMACMIIDR); got != 0xc131 {
		t.Fatalf("second transaction was not ignored: MIIDR=%#x", got)
	}
}

func TestDMASoftwareReset(t *testing.T) {
	const resetReads = 4
	p := New(Config{DMAResetReads: resetReads})
	ctl := dma.NewController(p.DMA())
	err := ctl.SoftwareReset(hw.Poller{MaxPolls: resetReads})
	if err != stm32eth.ErrTimeout {
		t.Fatal("expected timeout, got", err)
	}

	p = New(Config{DMAResetReads: resetReads})
	ctl = dma.NewController(p.DMA())
	ctl.InterruptEnable().Set(dma.IERNormal)
	err = ctl.SoftwareReset(hw.Poller{MaxPolls: resetReads + 1})
	if err != nil {
		t.Fatal(err)
	}
	if ctl.InterruptEnable().Get() != 0 {
		t.Fatal("software reset must reset DMA registers")
	}
	if ctl.BusMode().Get() != 0x2100 {
		t.Fatalf("got DMABMR %#x after reset", ctl.BusMode().Get())
	}
}

func TestMACAddressFilter(t *testing.T) {
	p := New(Config{})
	own := [6]byte{0x02, 0, 0, 0, 0, 1}
	mac := p.MAC()
	mac.Write32(eth.RegMACA0HR, uint32(own[5])<<8|uint32(own[4]))
	mac.Write32(eth.RegMACA0LR, uint32(own[3])<<24|uint32(own[2])<<16|uint32(own[1])<<8|uint32(own[0]))
	if mac.Read32(eth.RegMACA0HR)&(1<<31) == 0 {
		t.Fatal("MACA0HR bit 31 must read 1")
	}
	frame := make([]byte, 60)
	p.mu.Lock()
	defer p.mu.Unlock()
	copy(frame, own[:])
	if !p.accept(frame) {
		t.Fatal("own address filtered")
	}
	copy(frame, []byte{0x02, 0, 0, 0, 0, 2})
	if p.accept(frame) {
		t.Fatal("foreign unicast accepted")
	}
	copy(frame, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	if !p.accept(frame) {
		t.Fatal("broadcast filtered")
	}
	copy(frame, []byte{0x02, 0, 0, 0, 0, 2})
	p.mac[eth.RegMACFFR/4] = eth.MACFFRPromiscuous
	if !p.accept(frame) {
		t.Fatal("promiscuous mode filtered a frame")
	}
}

func TestMissedFrameCounter(t *testing.T) {
	p := New(Config{QueueSize: 256})
	frame := make([]byte, 100)
	if err := p.Inject(frame); err != nil {
		t.Fatal(err)
	}
	if err := p.Inject(frame); err != nil {
		t.Fatal(err)
	}
	if err := p.Inject(frame); err != errQueueFull {
		t.Fatal("expected full queue, got", err)
	}
	if p.Stats().Missed != 1 {
		t.Fatal("missed frame not counted")
	}
	if got := p.DMA().Read32(dma.RegMFBOCR); got != 1 {
		t.Fatalf("got MFBOCR %d; want 1", got)
	}
	if got := p.DMA().Read32(dma.RegMFBOCR); got != 0 {
		t.Fatal("MFBOCR must clear on read")
	}
	if p.Pending() != 2 {
		t.Fatal("queued frames lost")
	}
}

func TestPHYResetAndAutoNeg(t *testing.T) {
	const resetReads, anegReads = 3, 5
	for _, variant := range []phy.Variant{phy.VariantGeneric, phy.VariantLAN8742, phy.VariantDP83848} {
		p := New(Config{PHY: variant, PHYAddr: -1, Link: phy.Link10FDX, PHYResetReads: resetReads, AutoNegReads: anegReads})
		var smi eth.SMI
		smi.Configure(p.MAC(), hw.Poller{MaxPolls: 1})
		var dev phy.Device
		err := dev.Configure(&smi, phy.Config{Addr: variant.DefaultAddr(), Variant: variant, Poll: hw.Poller{MaxPolls: 100}})
		if err != nil {
			t.Fatal(err)
		}
		if err = dev.Reset(); err != nil {
			t.Fatal(variant, err)
		}
		st, err := dev.Status()
		if err != nil {
			t.Fatal(err)
		}
		if st.LinkDetected() {
			t.Fatal(variant, "link before auto-negotiation")
		}
		if err = dev.SetAutoNeg(); err != nil {
			t.Fatal(variant, err)
		}
		st, err = dev.Status()
		if err != nil {
			t.Fatal(err)
		}
		if !st.LinkDetected() || !st.AutoNegDone() {
			t.Fatalf("%s: no link after auto-negotiation: %s", variant, st)
		}
		mode, err := dev.NegotiatedLink()
		if err != nil {
			t.Fatal(err)
		}
		if mode != phy.Link10FDX {
			t.Fatalf("%s: got mode %s; want %s", variant, mode, phy.Link10FDX)
		}
		if _, reg := st.Raw(); variant == phy.VariantDP83848 && reg != phy.AddrPHYSTS {
			t.Fatal("DP83848 status must come from PHYSTS")
		}
	}
}

func TestPHYLinkLatchedLow(t *testing.T) {
	p := New(Config{})
	var smi eth.SMI
	smi.Configure(p.MAC(), hw.Poller{MaxPolls: 1})
	read := func() phy.BMSR {
		v, err := smi.Read(0, 0, phy.AddrBMSR)
		if err != nil {
			t.Fatal(err)
		}
		return phy.BMSR(v)
	}
	if !read().LinkUp() {
		t.Fatal("expected link")
	}
	p.SetLink(phy.LinkDown)
	p.SetLink(phy.Link100FDX)
	if read().LinkUp() {
		t.Fatal("link loss must latch until read")
	}
	if !read().LinkUp() {
		t.Fatal("link must come back after latched read")
	}
}

func TestAbsentPHY(t *testing.T) {
	p := New(Config{PHYAddr: 5})
	var smi eth.SMI
	smi.Configure(p.MAC(), hw.Poller{MaxPolls: 1})
	var found [32]uint8
	n, err := phy.FindClause22PHYs(&smi, found[:])
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || found[0] != 5 {
		t.Fatal("expected single PHY at address 5, got", found[:n])
	}
	_, err = phy.FindClause22PHYs(&smi, found[:8])
	if err != stm32eth.ErrShortBuffer {
		t.Fatal("expected short buffer, got", err)
	}
}

func TestMDIOWire(t *testing.T) {
	p := New(Config{PHY: phy.VariantDP83848, PHYAddr: -1})
	var bus phy.MDIOBitBang
	if err := bus.Configure(p.MDIOWire().Pins()); err != nil {
		t.Fatal(err)
	}
	id1, err := bus.Read(1, 0, phy.AddrPHYID1)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := bus.Read(1, 0, phy.AddrPHYID2)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != 0x2000 || id2 != 0x5c90 {
		t.Fatalf("got PHY ID %#x %#x", id1, id2)
	}
	const anar = uint16(phy.ANARSelector8023 | phy.ANAR10Full)
	if err = bus.Write(1, 0, phy.AddrANAR, anar); err != nil {
		t.Fatal(err)
	}
	got, err := bus.Read(1, 0, phy.AddrANAR)
	if err != nil {
		t.Fatal(err)
	}
	if got != anar {
		t.Fatalf("got ANAR %#x; want %#x", got, anar)
	}
	if _, err = bus.Read(2, 0, phy.AddrBMCR); err == nil {
		t.Fatal("expected turnaround error for absent PHY")
	}
	if _, err = bus.Read(1, 1, 0); err == nil {
		t.Fatal("Clause 45 frames must not be answered")
	}
	// Bus must still work after failed transactions.
	if id1, err = bus.Read(1, 0, phy.AddrPHYID1); err != nil || id1 != 0x2000 {
		t.Fatal("bus unusable after error:", id1, err)
	}
}

func TestIRQHandler(t *testing.T) {
	p := New(Config{Loopback: true})
	mac := hw.NewReg(p.MAC(), eth.RegMACCR)
	mac.SetBits(eth.MACCRRxEnable | eth.MACCRTxEnable)
	p.MAC().Write32(eth.RegMACFFR, eth.MACFFRReceiveAll)
	ctl := dma.NewController(p.DMA())
	var rx dma.RxRing
	var tx dma.TxRing
	rx.Configure(make([]dma.RxEntry, 2), p)
	tx.Configure(make([]dma.TxEntry, 2), p)
	rx.Start(ctl)
	tx.Start(ctl)
	ctl.EnableInterrupts()
	var calls int
	var causes dma.Status
	p.IRQ().SetHandler(func() {
		calls++
		causes |= dma.AckInterrupts(p.DMA())
	})
	tx.Send(64, nil)
	p.Step()
	if calls != 0 {
		t.Fatal("handler called with interrupt line masked")
	}
	p.IRQ().Enable()
	tx.Send(64, nil)
	p.Step()
	if calls != 1 {
		t.Fatalf("handler called %d times; want 1", calls)
	}
	if causes&(dma.StatusRx|dma.StatusTx) != dma.StatusRx|dma.StatusTx {
		t.Fatalf("got causes %#x", causes)
	}
	p.Step()
	if calls != 1 {
		t.Fatal("handler called without pending cause")
	}
}
