package watchdog

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrClosed is returned by Feed after Close.
var ErrClosed = errors.New("watchdog: closed")

// magicClose is written before closing so the kernel driver disarms the
// timer instead of resetting the board.
const magicClose = 'V'

// keepalive is any byte other than magicClose.
const keepalive = '.'

// Feeder is implemented by anything that can keep a watchdog alive.
type Feeder interface {
	Feed() error
}

// Device feeds a Linux-style watchdog device file such as /dev/watchdog.
type Device struct {
	mu    sync.Mutex
	f     *os.File
	path  string
	feeds uint64
}

// Open opens the watchdog device. The timer is armed from this point on.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening watchdog %s: %w", path, err)
	}
	return &Device{f: f, path: path}, nil
}

// Feed writes a keepalive byte.
func (d *Device) Feed() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.f == nil {
		return ErrClosed
	}
	if _, err := d.f.Write([]byte{keepalive}); err != nil {
		return fmt.Errorf("feeding watchdog %s: %w", d.path, err)
	}
	d.feeds++
	return nil
}

// Feeds returns how many keepalives have been written.
func (d *Device) Feeds() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.feeds
}

// Close disarms the watchdog with the magic close character and releases
// the device. Safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.f == nil {
		return nil
	}
	_, werr := d.f.Write([]byte{magicClose})
	cerr := d.f.Close()
	d.f = nil
	if werr != nil {
		return fmt.Errorf("disarming watchdog %s: %w", d.path, werr)
	}
	if cerr != nil {
		return fmt.Errorf("closing watchdog %s: %w", d.path, cerr)
	}
	return nil
}

// Nop is a Feeder for hosts without a watchdog.
type Nop struct{}

// Feed does nothing.
func (Nop) Feed() error { return nil }
