package eth_test

import (
	"bytes"
	"errors"
	"math/rand"
	"net"
	"testing"

	"github.com/soypat/stm32eth"
	"github.com/soypat/stm32eth/dma"
	"github.com/soypat/stm32eth/eth"
	"github.com/soypat/stm32eth/hw"
	"github.com/soypat/stm32eth/internal/ltesto"
	"github.com/soypat/stm32eth/phy"
	"github.com/soypat/stm32eth/sim"
)

var testHWAddr = [6]byte{0x02, 0x00, 0x5e, 0x10, 0x20, 0x30}

func newDevice(t *testing.T, scfg sim.Config, cfg eth.Config) (*eth.Device, *sim.Peripheral) {
	t.Helper()
	p := sim.New(scfg)
	if cfg.RxEntries == nil {
		cfg.RxEntries = make([]dma.RxEntry, 4)
	}
	if cfg.TxEntries == nil {
		cfg.TxEntries = make([]dma.TxEntry, 4)
	}
	if cfg.HardwareAddr == ([6]byte{}) {
		cfg.HardwareAddr = testHWAddr
	}
	if cfg.Poll.MaxPolls == 0 {
		cfg.Poll.MaxPolls = 1000
	}
	d, err := eth.New(p.Peripherals(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	return d, p
}

func TestConfigure(t *testing.T) {
	for _, family := range []eth.Family{eth.FamilyF4, eth.FamilyF107} {
		d, p := newDevice(t, sim.Config{MIIBusyReads: 2, DMAResetReads: 3, PHYResetReads: 2, AutoNegReads: 4},
			eth.Config{Family: family, PHYAddr: -1})
		mac, regs := p.MAC(), p.DMA()
		maccr := mac.Read32(eth.RegMACCR)
		const common = eth.MACCRFastEthernet | eth.MACCRDuplex | eth.MACCRAutoPadStrip |
			eth.MACCRRetryDisable | eth.MACCRRxEnable | eth.MACCRTxEnable
		if maccr&common != common {
			t.Fatalf("%s: MACCR=%#x missing bits", family, maccr)
		}
		wantF107 := family == eth.FamilyF107
		if (maccr&eth.MACCRChecksumOffld != 0) != wantF107 || (maccr&eth.MACCRTypeFrameStrip != 0) == wantF107 {
			t.Fatalf("%s: wrong family bits in MACCR=%#x", family, maccr)
		}
		if got := mac.Read32(eth.RegMACFFR); got != eth.MACFFRReceiveAll|eth.MACFFRPromiscuous {
			t.Fatalf("MACFFR=%#x", got)
		}
		if got := mac.Read32(eth.RegMACFCR) >> 16; got != 0x100 {
			t.Fatalf("pause time %#x", got)
		}
		const omr = dma.OMRNoDropChecksum | dma.OMRRxStoreForward | dma.OMRNoFlushRxFrames |
			dma.OMRTxStoreForward | dma.OMRForwardErrFrames | dma.OMROperateSecond | dma.OMRStartRx | dma.OMRStartTx
		if got := regs.Read32(dma.RegOMR); got != omr {
			t.Fatalf("DMAOMR=%#x; want %#x", got, omr)
		}
		bmr := regs.Read32(dma.RegBMR)
		if bmr&(dma.BMRAddrAligned|dma.BMRFixedBurst|dma.BMRSeparatePBL) != dma.BMRAddrAligned|dma.BMRFixedBurst|dma.BMRSeparatePBL {
			t.Fatalf("DMABMR=%#x missing bits", bmr)
		}
		if bmr>>dma.BMRPBLPos&0x3f != 32 || bmr>>dma.BMRRxPBLPos&0x3f != 32 || bmr>>dma.BMRPMPos&0b11 != 0b01 {
			t.Fatalf("DMABMR=%#x wrong burst fields", bmr)
		}
		wantCR := uint8(0b010)
		if wantF107 {
			wantCR = 0b011
		}
		if got := d.SMI().ClockRange(); got != wantCR {
			t.Fatalf("%s: clock range %#b; want %#b", family, got, wantCR)
		}
		if got, _ := d.HardwareAddr6(); got != testHWAddr {
			t.Fatal("hardware address not programmed", got)
		}
		if !d.RxIsRunning() || !d.TxIsRunning() {
			t.Fatal("rings not running after configure")
		}
		st, err := d.Status()
		if err != nil {
			t.Fatal(err)
		}
		if !st.LinkDetected() || !st.AutoNegDone() {
			t.Fatal("no link after configure:", st)
		}
		if d.PHY().PHYAddr() != phy.VariantGeneric.DefaultAddr() {
			t.Fatal("wrong default PHY address")
		}
	}
}

func TestConfigureInvalid(t *testing.T) {
	p := sim.New(sim.Config{})
	rx, tx := make([]dma.RxEntry, 1), make([]dma.TxEntry, 1)
	tests := []struct {
		cfg  eth.Config
		per  eth.Peripherals
		want error
	}{
		{cfg: eth.Config{TxEntries: tx}, per: p.Peripherals(), want: stm32eth.ErrInvalidConfig},
		{cfg: eth.Config{RxEntries: rx}, per: p.Peripherals(), want: stm32eth.ErrInvalidConfig},
		{cfg: eth.Config{RxEntries: rx, TxEntries: tx}, per: eth.Peripherals{DMA: p.DMA()}, want: stm32eth.ErrInvalidConfig},
		{cfg: eth.Config{RxEntries: rx, TxEntries: tx, ClockRange: 200}, per: p.Peripherals(), want: stm32eth.ErrInvalidConfig},
		{cfg: eth.Config{RxEntries: rx, TxEntries: tx, PHYAddr: 32}, per: p.Peripherals(), want: stm32eth.ErrInvalidAddr},
		{cfg: eth.Config{RxEntries: rx, TxEntries: tx, PHY: 99}, per: p.Peripherals(), want: stm32eth.ErrInvalidConfig},
	}
	for i, tc := range tests {
		_, err := eth.New(tc.per, tc.cfg)
		if !errors.Is(err, tc.want) {
			t.Errorf("%d: got %v; want %v", i, err, tc.want)
		}
	}
}

func TestConfigureTimeout(t *testing.T) {
	tests := []struct {
		name string
		scfg sim.Config
	}{
		{name: "dma", scfg: sim.Config{DMAResetReads: 50}},
		{name: "smi", scfg: sim.Config{MIIBusyReads: 50}},
		{name: "phyreset", scfg: sim.Config{PHYResetReads: 50}},
		{name: "nolink", scfg: sim.Config{NoLink: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := sim.New(tc.scfg)
			_, err := eth.New(p.Peripherals(), eth.Config{
				RxEntries: make([]dma.RxEntry, 1),
				TxEntries: make([]dma.TxEntry, 1),
				Poll:      hw.Poller{MaxPolls: 10},
			})
			if !errors.Is(err, stm32eth.ErrTimeout) {
				t.Fatal("expected timeout, got", err)
			}
		})
	}
}

func TestLoopback(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	var gen ltesto.PacketGen
	gen.RandomizeAddrs(rng)
	gen.EnableVLAN = true
	for _, phyLoop := range []bool{false, true} {
		d, p := newDevice(t, sim.Config{Loopback: !phyLoop}, eth.Config{})
		if phyLoop {
			if err := d.PHY().SetLoopback(true); err != nil {
				t.Fatal(err)
			}
		}
		for i := 0; i < 32; i++ {
			frame := gen.AppendRandomFrame(nil, rng, 18+rng.Intn(stm32eth.MTU-18+1))
			err := d.Send(len(frame), func(b []byte) error {
				copy(b, frame)
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			p.Step()
			pkt, err := d.RecvNext()
			if err != nil {
				t.Fatal(i, err)
			}
			if !bytes.Equal(pkt.Data(), frame) {
				t.Fatalf("phyloop=%v %d: frame mismatch", phyLoop, i)
			}
			pkt.Release()
		}
		rxs, txs := d.Stats()
		if rxs.Frames != 32 || txs.Frames != 32 || rxs.Dropped() != 0 {
			t.Fatalf("rx=%+v tx=%+v", rxs, txs)
		}
	}
}

func TestPollLink(t *testing.T) {
	for _, variant := range []phy.Variant{phy.VariantGeneric, phy.VariantLAN8742, phy.VariantDP83848} {
		d, p := newDevice(t, sim.Config{PHY: variant, PHYAddr: -1}, eth.Config{PHY: variant, PHYAddr: -1})
		if d.NetFlags()&net.FlagRunning == 0 {
			t.Fatal(variant, "running flag not set with link")
		}
		st, changed, err := d.PollLink()
		if err != nil {
			t.Fatal(err)
		} else if changed || !st.LinkDetected() {
			t.Fatalf("%s: unexpected change %v %s", variant, changed, st)
		}
		p.SetLink(phy.LinkDown)
		st, changed, err = d.PollLink()
		if err != nil {
			t.Fatal(err)
		} else if !changed || st.LinkDetected() {
			t.Fatalf("%s: link loss not detected: %s", variant, st)
		}
		_, changed, _ = d.PollLink()
		if changed {
			t.Fatal(variant, "no change expected")
		}
		p.SetLink(phy.Link100FDX)
		st, changed, err = d.PollLink()
		if err != nil {
			t.Fatal(err)
		} else if !changed || !st.LinkDetected() {
			t.Fatalf("%s: link not restored: %s", variant, st)
		}
		if variant != phy.VariantDP83848 {
			continue
		}
		// Only PHYSTS carries the resolved speed.
		p.SetLink(phy.Link10HDX)
		st, changed, _ = d.PollLink()
		if !changed || st.LinkMode() != phy.Link10HDX {
			t.Fatalf("speed change not detected: %s", st)
		}
	}
}

func TestSMI(t *testing.T) {
	p := sim.New(sim.Config{PHY: phy.VariantLAN8742, MIIBusyReads: 5, PHYAddr: 3})
	var smi eth.SMI
	if err := smi.Configure(nil, hw.Poller{}); err != stm32eth.ErrInvalidConfig {
		t.Fatal("expected invalid config, got", err)
	}
	smi.Configure(p.MAC(), hw.Poller{MaxPolls: 2})
	if _, err := smi.Read(3, 1, 0); err != stm32eth.ErrUnsupported {
		t.Fatal("expected unsupported Clause 45, got", err)
	}
	if _, err := smi.Read(32, 0, 0); err != stm32eth.ErrInvalidAddr {
		t.Fatal("expected invalid PHY address, got", err)
	}
	if err := smi.Write(3, 0, 32, 0); err != stm32eth.ErrInvalidAddr {
		t.Fatal("expected invalid register, got", err)
	}
	if _, err := smi.Read(3, 0, phy.AddrPHYID1); err != stm32eth.ErrTimeout {
		t.Fatal("expected timeout, got", err)
	}
	smi.Configure(p.MAC(), hw.Poller{MaxPolls: 10})
	if err := smi.SetClockRange(eth.ClockRange150_168, eth.FamilyF4); err != nil {
		t.Fatal(err)
	}
	// Wait out the transaction that timed out.
	for i := 0; i < 5; i++ {
		p.MAC().Read32(eth.RegMACMIIAR)
	}
	if err := smi.SetClockRange(eth.ClockRange150_168, eth.FamilyF4); err != nil {
		t.Fatal(err)
	}
	id, err := smi.Read(3, 0, phy.AddrPHYID1)
	if err != nil {
		t.Fatal(err)
	}
	if id != 0x0007 {
		t.Fatalf("got PHYID1 %#x", id)
	}
	if smi.ClockRange() != 0b100 {
		t.Fatal("transaction overwrote the clock range", smi.ClockRange())
	}
	const anar = uint16(phy.ANARSelector8023 | phy.ANAR100Full)
	if err = smi.Write(3, 0, phy.AddrANAR, anar); err != nil {
		t.Fatal(err)
	}
	if got, _ := smi.Read(3, 0, phy.AddrANAR); got != anar {
		t.Fatalf("got ANAR %#x; want %#x", got, anar)
	}
}

func TestInterruptHandler(t *testing.T) {
	d, p := newDevice(t, sim.Config{Loopback: true}, eth.Config{})
	var causes dma.Status
	p.IRQ().SetHandler(func() {
		causes |= eth.InterruptHandler(p.DMA())
	})
	if err := d.EnableInterrupt(); err != nil {
		t.Fatal(err)
	}
	if err := d.SendEth(make([]byte, 64)); err != nil {
		t.Fatal(err)
	}
	p.Step()
	want := dma.StatusNormalSummary | dma.StatusRx | dma.StatusTx
	if causes != want {
		t.Fatalf("got causes %#x; want %#x", causes, want)
	}
	if got := d.InterruptHandler(); got != 0 {
		t.Fatal("handler left causes pending:", got)
	}
	// The handler does not touch the ring.
	pkt, err := d.RecvNext()
	if err != nil {
		t.Fatal(err)
	}
	pkt.Release()

	per := p.Peripherals()
	per.IRQ = nil
	d2, err := eth.New(per, eth.Config{RxEntries: make([]dma.RxEntry, 1), TxEntries: make([]dma.TxEntry, 1)})
	if err != nil {
		t.Fatal(err)
	}
	if err = d2.EnableInterrupt(); err != stm32eth.ErrUnsupported {
		t.Fatal("expected unsupported without IRQ, got", err)
	}
}

func TestPollOne(t *testing.T) {
	d, p := newDevice(t, sim.Config{}, eth.Config{})
	if _, err := d.PollOne(); err == nil {
		t.Fatal("expected error without handler")
	}
	var got [][]byte
	errHandler := errors.New("handler failed")
	var fail bool
	d.RecvEthHandle(func(pkt []byte) error {
		got = append(got, append([]byte(nil), pkt...))
		if fail {
			return errHandler
		}
		return nil
	})
	ok, err := d.PollOne()
	if ok || err != nil {
		t.Fatal("expected nothing to poll", ok, err)
	}
	frame := make([]byte, 80)
	copy(frame, testHWAddr[:])
	frame[79] = 0xaa
	p.InjectFault(frame, dma.RxErrCRC)
	p.Inject(frame)
	p.Inject(frame)
	p.Step()
	ok, err = d.PollOne()
	if ok || err != nil {
		t.Fatal("faulty frame must be dropped silently", ok, err)
	}
	ok, err = d.PollOne()
	if !ok || err != nil || len(got) != 1 || !bytes.Equal(got[0], frame) {
		t.Fatal("frame not delivered to handler", ok, err)
	}
	fail = true
	ok, err = d.PollOne()
	if !ok || err != errHandler {
		t.Fatal("handler error not returned", ok, err)
	}
	if _, err := d.RecvNext(); err != dma.ErrRxWouldBlock {
		t.Fatal("frame not released after handler error:", err)
	}
	rxs, _ := d.Stats()
	if rxs.CRC != 1 || rxs.Frames != 2 {
		t.Fatalf("stats %+v", rxs)
	}
	if !eth.IsRxFault(dma.ErrRxCRC) || eth.IsRxFault(dma.ErrRxWouldBlock) {
		t.Fatal("IsRxFault misclassifies")
	}
}

func TestSendEth(t *testing.T) {
	d, p := newDevice(t, sim.Config{}, eth.Config{TxEntries: make([]dma.TxEntry, 2)})
	if d.MTU() != 1500 {
		t.Fatal("unexpected MTU", d.MTU())
	}
	frame := make([]byte, 1514)
	frame[1513] = 0x55
	for i := 0; i < 2; i++ {
		if err := d.SendEth(frame); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.SendEth(frame); err != dma.ErrTxWouldBlock {
		t.Fatal("expected would block, got", err)
	}
	if err := d.SendEth(make([]byte, stm32eth.MTU+1)); err != dma.ErrTxWouldBlock {
		// The full ring is checked before the frame length.
		t.Fatal("expected would block, got", err)
	}
	p.Step()
	sent := p.Transmitted()
	if len(sent) != 2 || !bytes.Equal(sent[1], frame) {
		t.Fatal("transmitted frames mismatch")
	}
	if err := d.SendEth(make([]byte, stm32eth.MTU+1)); err != dma.ErrTxTooLarge {
		t.Fatal("expected too large, got", err)
	}
	_, txs := d.Stats()
	if txs.WouldBlock != 2 || txs.TooLarge != 1 || txs.Frames != 2 {
		t.Fatalf("stats %+v", txs)
	}
}

func TestHardwareAddr(t *testing.T) {
	d, p := newDevice(t, sim.Config{}, eth.Config{})
	addr := [6]byte{0x02, 0xde, 0xad, 0xbe, 0xef, 0x01}
	d.SetHardwareAddr6(addr)
	got, err := d.HardwareAddr6()
	if err != nil {
		t.Fatal(err)
	}
	if got != addr {
		t.Fatalf("got %x; want %x", got, addr)
	}
	if p.MAC().Read32(eth.RegMACA0HR) != 1<<31|0x01ef {
		t.Fatalf("MACA0HR=%#x", p.MAC().Read32(eth.RegMACA0HR))
	}
}
