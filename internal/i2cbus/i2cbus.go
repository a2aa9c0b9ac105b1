// Package i2cbus implements the I²C register transport (C2): blocking
// read-register / write-register operations against a kernel I²C adapter,
// serialised by a per-bus lock so sensors sharing a bus are safe under
// concurrent access.
//
// Grounded on the teacher's host/sysfs I²C driver: a single combined
// I2C_RDWR ioctl transaction (write the register address, then read N
// bytes) is the same shape the datasheet-driven drivers in this repo
// expect.
package i2cbus

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrTransportFailure is the single error kind C2 surfaces; callers do not
// distinguish transient from permanent I²C failures, matching spec §4.2.
var ErrTransportFailure = errors.New("i2cbus: transport failure")

// Bus is the minimal interface a concrete I²C driver must implement: one
// atomic write-then-read transaction against a 7-bit slave address.
type Bus interface {
	// Tx performs w (if non-empty) followed by filling r (if non-empty) as
	// a single bus transaction.
	Tx(addr uint16, w, r []byte) error
	Close() error
}

// Transport wraps a Bus with the register-oriented read/write contract C2
// exposes to drivers, plus the per-bus lock spec §5 requires.
type Transport struct {
	mu  sync.Mutex
	bus Bus
}

// New wraps bus with a per-bus lock.
func New(bus Bus) *Transport {
	return &Transport{bus: bus}
}

// ReadRegister issues a combined write-register-address-then-read-N
// transaction and fills buf.
func (t *Transport) ReadRegister(addr uint16, reg byte, buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.bus.Tx(addr, []byte{reg}, buf); err != nil {
		return errors.Wrapf(ErrTransportFailure, "read register 0x%02x from 0x%02x: %v", reg, addr, err)
	}
	return nil
}

// WriteRegister sends the register address followed by data in one
// transfer.
func (t *Transport) WriteRegister(addr uint16, reg byte, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	if err := t.bus.Tx(addr, w, nil); err != nil {
		return errors.Wrapf(ErrTransportFailure, "write register 0x%02x to 0x%02x: %v", reg, addr, err)
	}
	return nil
}

// Close releases the underlying bus handle.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bus.Close()
}
