//go:build linux && !baremetal && !tinygo

package internal

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const safamilyHW6 = 1

// Tap is a Linux TAP interface. Each Read or Write moves one whole
// Ethernet frame without the frame check sequence.
type Tap struct {
	fd   int // points to /dev/net/tun device.
	name string
}

// NewTap creates (or attaches to) the TAP interface name and brings it up.
func NewTap(name string) (*Tap, error) {
	if len(name) >= unix.IFNAMSIZ {
		return nil, errors.New("name too large")
	}
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open tun device: %w", err)
	}
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	ifr.SetUint16(unix.IFF_TAP | unix.IFF_NO_PI)
	err = unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("creating tap interface: %w", err)
	}
	tap := &Tap{fd: fd, name: ifr.Name()}
	if err = tap.up(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return tap, nil
}

// Name returns the kernel interface name.
func (tap *Tap) Name() string { return tap.name }

func (tap *Tap) Read(b []byte) (int, error) {
	return unix.Read(tap.fd, b)
}

func (tap *Tap) Write(b []byte) (int, error) {
	return unix.Write(tap.fd, b)
}

func (tap *Tap) Close() error {
	return unix.Close(tap.fd)
}

func (tap *Tap) up() error {
	sock, err := tap.getSock()
	if err != nil {
		return err
	}
	defer unix.Close(sock)
	ifr, err := unix.NewIfreq(tap.name)
	if err != nil {
		return err
	}
	if err = unix.IoctlIfreq(sock, unix.SIOCGIFFLAGS, ifr); err != nil {
		return fmt.Errorf("get tap flags: %w", err)
	}
	ifr.SetUint16(ifr.Uint16() | unix.IFF_UP | unix.IFF_RUNNING)
	if err = unix.IoctlIfreq(sock, unix.SIOCSIFFLAGS, ifr); err != nil {
		return fmt.Errorf("set tap up: %w", err)
	}
	return nil
}

func (tap *Tap) MTU() (int, error) {
	sock, err := tap.getSock()
	if err != nil {
		return 0, err
	}
	defer unix.Close(sock)
	ifr, err := unix.NewIfreq(tap.name)
	if err != nil {
		return 0, err
	}
	err = unix.IoctlIfreq(sock, unix.SIOCGIFMTU, ifr)
	if err != nil {
		return 0, err
	}
	return int(ifr.Uint32()), nil
}

// HardwareAddress6 returns the MAC address the host assigned to its end of the TAP.
func (tap *Tap) HardwareAddress6() (hw [6]byte, err error) {
	// The hardware address is known by the host network stack, not the tun fd.
	sock, err := tap.getSock()
	if err != nil {
		return hw, err
	}
	defer unix.Close(sock)
	var ifr ifreqHW
	copy(ifr.Name[:], tap.name)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(sock), unix.SIOCGIFHWADDR, uintptr(unsafe.Pointer(&ifr)))
	if errno != 0 {
		return hw, fmt.Errorf("get tap hwaddr: %w", errno)
	}
	if ifr.Family != safamilyHW6 {
		return hw, fmt.Errorf("expecting sa_family=1 got %d", ifr.Family)
	}
	copy(hw[:], ifr.Data[:6])
	return hw, nil
}

func (tap *Tap) getSock() (int, error) {
	sock, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, fmt.Errorf("tap socket open: %w", err)
	}
	return sock, nil
}

// ifreqHW is struct ifreq with the ifr_hwaddr sockaddr member.
type ifreqHW struct {
	Name   [unix.IFNAMSIZ]byte
	Family uint16 // Host order.
	Data   [14]byte
	_      [8]byte
}
