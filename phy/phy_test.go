package phy

import (
	"errors"
	"testing"

	"github.com/soypat/stm32eth"
	"github.com/soypat/stm32eth/hw"
)

// regbus is a single PHY whose BMCR reset and BMSR autoneg complete take
// a number of reads to settle.
type regbus struct {
	addr        uint8
	regs        [32]uint16
	resetReads  int
	anegReads   int
	reads       int
	failOnReads bool
}

func (b *regbus) Read(phyAddr, devAddr uint8, regAddr uint16) (uint16, error) {
	if devAddr != 0 {
		return 0, stm32eth.ErrUnsupported
	} else if phyAddr != b.addr {
		return 0xffff, nil
	} else if b.failOnReads {
		return 0, errors.New("bus fault")
	}
	b.reads++
	switch regAddr {
	case AddrBMCR:
		if b.regs[AddrBMCR]&uint16(BMCRReset) != 0 {
			if b.resetReads <= 0 {
				b.regs[AddrBMCR] &^= uint16(BMCRReset)
			}
			b.resetReads--
		}
	case AddrBMSR:
		if b.regs[AddrBMCR]&uint16(BMCRANEnable) != 0 {
			if b.anegReads <= 0 {
				b.regs[AddrBMSR] |= uint16(BMSRANComplete)
			}
			b.anegReads--
		}
	}
	return b.regs[regAddr], nil
}

func (b *regbus) Write(phyAddr, devAddr uint8, regAddr, value uint16) error {
	if phyAddr != b.addr {
		return nil
	}
	b.regs[regAddr] = value
	return nil
}

func TestDeviceReset(t *testing.T) {
	bus := &regbus{addr: 1, resetReads: 5}
	bus.regs[AddrBMCR] = uint16(BMCRSpeed100)
	var dev Device
	err := dev.Configure(bus, Config{Addr: 1, Variant: VariantDP83848})
	if err != nil {
		t.Fatal(err)
	}
	err = dev.Reset()
	if err != nil {
		t.Fatal(err)
	}
	ctl, _ := dev.BasicControl()
	if ctl&BMCRReset != 0 {
		t.Fatal("reset bit still set after Reset returned")
	}
	if ctl&BMCRSpeed100 == 0 {
		t.Fatal("reset must set bits by read-modify-write")
	}

	t.Run("timeout", func(t *testing.T) {
		bus := &regbus{resetReads: 100}
		var dev Device
		dev.Configure(bus, Config{Poll: hw.Poller{MaxPolls: 10}})
		err := dev.Reset()
		if err != stm32eth.ErrTimeout {
			t.Fatal("expected timeout, got", err)
		}
		if bus.reads != 1+10 {
			t.Fatalf("expected read-modify-write plus 10 polls, got %d reads", bus.reads)
		}
	})
	t.Run("busfault", func(t *testing.T) {
		bus := &regbus{failOnReads: true}
		var dev Device
		dev.Configure(bus, Config{})
		if err := dev.Reset(); err == nil {
			t.Fatal("expected bus error")
		}
	})
}

func TestDeviceSetAutoNeg(t *testing.T) {
	bus := &regbus{anegReads: 20}
	var dev Device
	dev.Configure(bus, Config{Variant: VariantLAN8742})
	err := dev.SetAutoNeg()
	if err != nil {
		t.Fatal(err)
	}
	if bus.regs[AddrBMCR]&uint16(BMCRANEnable) == 0 {
		t.Fatal("autoneg enable not set")
	}
	st, _ := dev.BasicStatus()
	if !st.AutoNegotiationComplete() {
		t.Fatal("SetAutoNeg returned before autoneg complete")
	}

	bus = &regbus{anegReads: 1000}
	dev.Configure(bus, Config{Poll: hw.Poller{MaxPolls: 3}})
	if err := dev.SetAutoNeg(); err != stm32eth.ErrTimeout {
		t.Fatal("expected timeout, got", err)
	}
}

func TestSetupForced(t *testing.T) {
	bus := &regbus{}
	bus.regs[AddrBMCR] = uint16(BMCRANEnable | BMCRLoopback | BMCRSpeed100 | BMCRFullDuplex)
	var dev Device
	dev.Configure(bus, Config{})
	tests := []struct {
		mode LinkMode
		bmcr BMCR
	}{
		{mode: Link10FDX, bmcr: BMCRLoopback | BMCRFullDuplex},
		{mode: Link10HDX, bmcr: BMCRLoopback},
		{mode: Link100HDX, bmcr: BMCRLoopback | BMCRSpeed100},
		{mode: Link100FDX, bmcr: BMCRLoopback | BMCRSpeed100 | BMCRFullDuplex},
	}
	for _, tc := range tests {
		if err := dev.SetupForced(tc.mode); err != nil {
			t.Fatal(tc.mode, err)
		}
		if got := BMCR(bus.regs[AddrBMCR]); got != tc.bmcr {
			t.Errorf("%s: BMCR=%#x; want %#x", tc.mode, got, tc.bmcr)
		}
		if lm, err := dev.NegotiatedLink(); err != nil || lm != tc.mode {
			t.Errorf("%s: forced mode reads back as %s (%v)", tc.mode, lm, err)
		}
	}
	for _, mode := range []LinkMode{LinkDown, Link100T4, Link1000FDX} {
		if err := dev.SetupForced(mode); err != stm32eth.ErrUnsupported {
			t.Errorf("%s: expected unsupported, got %v", mode, err)
		}
	}
}

func TestRestartAutoNeg(t *testing.T) {
	bus := &regbus{}
	var dev Device
	dev.Configure(bus, Config{})
	ad := NewANAR().WithMaxSpeed(10).FullDuplexOnly()
	if err := dev.SetAdvertisement(ad); err != nil {
		t.Fatal(err)
	}
	if got, _ := dev.Advertisement(); got != ad {
		t.Fatalf("advertisement %#x; want %#x", got, ad)
	}
	if err := dev.RestartAutoNeg(); err != nil {
		t.Fatal(err)
	}
	if bmcr := BMCR(bus.regs[AddrBMCR]); bmcr&(BMCRANEnable|BMCRANRestart) != BMCRANEnable|BMCRANRestart {
		t.Fatalf("BMCR=%#x; want auto-negotiation enabled and restarted", bmcr)
	}
	bus.regs[AddrANLPAR] = uint16(NewANAR().WithMaxSpeed(100))
	if err := dev.SetAutoNeg(); err != nil {
		t.Fatal(err)
	}
	if lm, err := dev.NegotiatedLink(); err != nil || lm != Link10FDX {
		t.Fatalf("negotiated %s (%v); want 10M-F", lm, err)
	}
}

func TestDeviceConfigure(t *testing.T) {
	var dev Device
	if err := dev.Configure(&regbus{}, Config{Addr: 32}); err != stm32eth.ErrInvalidAddr {
		t.Error("expected invalid address error, got", err)
	}
	if err := dev.Configure(nil, Config{}); err != stm32eth.ErrInvalidConfig {
		t.Error("expected invalid config error, got", err)
	}
	if err := dev.Configure(&regbus{}, Config{Variant: VariantDP83848 + 1}); err != stm32eth.ErrInvalidConfig {
		t.Error("expected invalid config on unknown variant, got", err)
	}
}

func TestStatusVariant(t *testing.T) {
	bus := &regbus{addr: 1}
	bus.regs[AddrBMSR] = uint16(BMSRLinkStatus | BMSR100Full | BMSR100Half | BMSR10Full | BMSR10Half)
	bus.regs[AddrPHYSTS] = uint16(PHYSTSLinkStatus | PHYSTSSpeed10)
	var dev Device
	dev.Configure(bus, Config{Addr: 1, Variant: VariantDP83848})
	st, err := dev.Status()
	if err != nil {
		t.Fatal(err)
	}
	if _, reg := st.Raw(); reg != AddrPHYSTS {
		t.Fatal("DP83848 status must come from PHYSTS")
	}
	if st.LinkMode() != Link10HDX {
		t.Fatal("got", st.LinkMode(), "want", Link10HDX)
	}
	dev.Configure(bus, Config{Addr: 1, Variant: VariantGeneric})
	before := bus.reads
	st, _ = dev.Status()
	if bus.reads-before != 1 {
		t.Fatal("Status must be a single bus read")
	}
	if st.LinkMode() != Link100FDX {
		t.Fatal("got", st.LinkMode(), "want", Link100FDX)
	}
}

func TestStatusDecode(t *testing.T) {
	tests := []struct {
		st    Status
		link  bool
		full  bool
		speed int
	}{
		{st: StatusFromBMSR(0)},
		{st: StatusFromBMSR(BMSR100Full | BMSR10Full)}, // Abilities without link resolve nothing.
		{st: StatusFromBMSR(BMSRLinkStatus | BMSR100Half), link: true, speed: 100},
		{st: StatusFromBMSR(BMSRLinkStatus | BMSR10Full), link: true, full: true, speed: 10},
		{st: StatusFromBMSR(BMSRLinkStatus | BMSR10Half | BMSR100Full), link: true, full: true, speed: 100},
		{st: StatusFromBMSR(BMSRLinkStatus), link: true},
		{st: StatusFromPHYSTS(PHYSTSFullDuplex)},
		{st: StatusFromPHYSTS(PHYSTSLinkStatus), link: true, speed: 100},
		{st: StatusFromPHYSTS(PHYSTSLinkStatus | PHYSTSSpeed10 | PHYSTSFullDuplex), link: true, full: true, speed: 10},
		{st: StatusFromPHYSTS(PHYSTSLinkStatus | PHYSTSFullDuplex | PHYSTSRemoteFault), link: true, full: true, speed: 100},
	}
	for i, tc := range tests {
		if tc.st.LinkDetected() != tc.link {
			t.Errorf("%d: link got %v", i, !tc.link)
		}
		full, ok := tc.st.FullDuplex()
		if ok != tc.link || full != tc.full {
			t.Errorf("%d: duplex got (%v,%v) want (%v,%v)", i, full, ok, tc.full, tc.link)
		}
		if tc.st.SpeedMbps() != tc.speed {
			t.Errorf("%d: speed got %d want %d", i, tc.st.SpeedMbps(), tc.speed)
		}
	}
}

func TestStatusEquivalent(t *testing.T) {
	down := []Status{
		{},
		StatusFromBMSR(BMSR100Full | BMSRANComplete),
		StatusFromBMSR(BMSRRemoteFault),
		StatusFromPHYSTS(PHYSTSFullDuplex | PHYSTSRemoteFault),
	}
	for i := range down {
		for j := range down {
			if !down[i].Equivalent(down[j]) {
				t.Errorf("statuses without link must be equivalent: %d vs %d", i, j)
			}
		}
	}
	fd100 := StatusFromBMSR(BMSRLinkStatus | BMSR100Full)
	fd100rf := StatusFromBMSR(BMSRLinkStatus | BMSR100Full | BMSRRemoteFault | BMSRANComplete)
	fd100sts := StatusFromPHYSTS(PHYSTSLinkStatus | PHYSTSFullDuplex | PHYSTSRemoteFault)
	hd100 := StatusFromBMSR(BMSRLinkStatus | BMSR100Half)
	if !fd100.Equivalent(fd100rf) || !fd100rf.Equivalent(fd100) {
		t.Error("remote fault must not affect equivalence")
	}
	if !fd100.Equivalent(fd100sts) {
		t.Error("equal link across registers must be equivalent")
	}
	if fd100.Equivalent(hd100) {
		t.Error("duplex change must break equivalence")
	}
	if fd100.Equivalent(down[1]) || down[1].Equivalent(fd100) {
		t.Error("link change must break equivalence")
	}
}

func TestFindClause22PHYs(t *testing.T) {
	bus := &regbus{addr: 7}
	bus.regs[AddrBMSR] = uint16(BMSR100Full | BMSRANCap)
	var dst [32]uint8
	n, err := FindClause22PHYs(bus, dst[:])
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || dst[0] != 7 {
		t.Fatalf("got %v; want [7]", dst[:n])
	}
	_, err = FindClause22PHYs(bus, dst[:4])
	if err != stm32eth.ErrShortBuffer {
		t.Fatal("expected short buffer error, got", err)
	}
}

func TestLinkMode(t *testing.T) {
	for lm := LinkDown; lm <= Link1000FDX; lm++ {
		got, ok := ParseLinkMode(lm.String())
		if !ok || got != lm {
			t.Errorf("parse %q: got %v", lm.String(), got)
		}
		if lm == Link100T4 || lm == LinkDown {
			continue
		}
		if LinkModeOf(lm.SpeedMbps(), lm.IsFullDuplex()) != lm {
			t.Errorf("LinkModeOf round trip failed for %v", lm)
		}
	}
	var a ANAR = NewANAR().With10M().With100M()
	if a.LinkMode() != Link100FDX {
		t.Error("got", a.LinkMode())
	}
	if a.FullDuplexOnly().Without100M().LinkMode() != Link10FDX {
		t.Error("got", a.FullDuplexOnly().Without100M().LinkMode())
	}
}
