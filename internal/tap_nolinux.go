//go:build !linux || baremetal || tinygo

package internal

import "errors"

type Tap struct{}

func NewTap(name string) (*Tap, error) {
	return nil, errors.ErrUnsupported
}

func (tap *Tap) Name() string { return "" }
func (tap *Tap) Read(b []byte) (int, error) {
	return -1, errors.ErrUnsupported
}
func (tap *Tap) Write(b []byte) (int, error) {
	return -1, errors.ErrUnsupported
}
func (tap *Tap) Close() error {
	return errors.ErrUnsupported
}
func (tap *Tap) MTU() (int, error) {
	return -1, errors.ErrUnsupported
}
func (tap *Tap) HardwareAddress6() (hw [6]byte, err error) {
	return hw, errors.ErrUnsupported
}
