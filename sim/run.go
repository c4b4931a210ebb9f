package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/soypat/stm32eth/internal"
)

// Run plays the DMA engine until ctx is cancelled, calling [Peripheral.Step]
// with an exponential backoff while idle. If a [Wire] is configured its
// inbound frames are injected as they arrive; a wire implementing
// [io.Closer] is closed when ctx is done to unblock the reader.
func (p *Peripheral) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		backoff := internal.NewBackoff(internal.BackoffCriticalPath)
		for ctx.Err() == nil {
			if p.Step() {
				backoff.Hit()
			} else {
				backoff.Miss()
			}
		}
		return ctx.Err()
	})
	if p.wire != nil {
		g.Go(func() error {
			<-ctx.Done()
			if c, ok := p.wire.(io.Closer); ok {
				c.Close()
			}
			return nil
		})
		g.Go(func() error {
			var buf [maxFrame]byte
			for {
				n, err := p.wire.ReadFrame(buf[:])
				if ctx.Err() != nil {
					return ctx.Err()
				} else if err != nil {
					return err
				}
				err = p.Inject(buf[:n])
				if err != nil && p.logenabled(slog.LevelDebug) {
					p.debug("sim:wire-drop", slog.Int("len", n), slog.String("err", err.Error()))
				}
			}
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// TapWire adapts a TAP interface to a [Wire].
type TapWire struct {
	Tap *internal.Tap
}

// NewTapWire creates or attaches to the TAP interface name.
func NewTapWire(name string) (*TapWire, error) {
	tap, err := internal.NewTap(name)
	if err != nil {
		return nil, err
	}
	return &TapWire{Tap: tap}, nil
}

func (w *TapWire) WriteFrame(frame []byte) error {
	_, err := w.Tap.Write(frame)
	return err
}

func (w *TapWire) ReadFrame(dst []byte) (int, error) {
	return w.Tap.Read(dst)
}

func (w *TapWire) Close() error { return w.Tap.Close() }

// HardwareAddr6 returns the host side MAC address of the TAP.
func (w *TapWire) HardwareAddr6() ([6]byte, error) { return w.Tap.HardwareAddress6() }
