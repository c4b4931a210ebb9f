package eth

import (
	"errors"
	"log/slog"
	"net"

	"github.com/soypat/stm32eth"
	"github.com/soypat/stm32eth/dma"
)

// sizeTagAndFCS is the room a VLAN tag and the frame check sequence take in a max size frame.
const sizeTagAndFCS = 4 + 4

var errNoRecvHandler = errors.New("eth: no receive handler set")

// MTU returns the largest network layer payload a frame can carry.
func (d *Device) MTU() int { return stm32eth.MTU - stm32eth.SizeHeader - sizeTagAndFCS }

// NetFlags returns the interface flags. FlagRunning reflects the link
// state observed by the last [Device.PollLink].
func (d *Device) NetFlags() net.Flags {
	flags := net.FlagUp | net.FlagBroadcast | net.FlagMulticast
	if d.link.LinkDetected() {
		flags |= net.FlagRunning
	}
	return flags
}

// SendEth copies pkt, a whole Ethernet frame without FCS, into the transmit ring.
func (d *Device) SendEth(pkt []byte) error {
	return d.tx.Send(len(pkt), func(frame []byte) error {
		copy(frame, pkt)
		return nil
	})
}

// RecvEthHandle sets the callback [Device.PollOne] passes received frames to.
// The frame is only valid during the call.
func (d *Device) RecvEthHandle(cb func(pkt []byte) error) {
	d.onRecv = cb
}

// PollOne passes at most one received frame to the receive handler and
// reports whether it did. Faulty frames are dropped and counted in
// [Device.Stats] without being reported as errors.
func (d *Device) PollOne() (bool, error) {
	if d.onRecv == nil {
		return false, errNoRecvHandler
	}
	pkt, err := d.rx.RecvNext()
	if err == dma.ErrRxWouldBlock {
		return false, nil
	} else if IsRxFault(err) {
		if d.logenabled(slog.LevelDebug) {
			d.debug("eth:drop", slog.String("err", err.Error()))
		}
		return false, nil
	} else if err != nil {
		return false, err
	}
	err = d.onRecv(pkt.Data())
	pkt.Release()
	return true, err
}
