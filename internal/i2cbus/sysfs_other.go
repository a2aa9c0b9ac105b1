//go:build !linux

package i2cbus

import "github.com/pkg/errors"

// SysfsBus is unavailable outside Linux.
type SysfsBus struct{}

// OpenSysfsBus always fails on non-Linux hosts.
func OpenSysfsBus(num int) (*SysfsBus, error) {
	return nil, errors.New("i2cbus: sysfs I2C is only supported on linux")
}

func (b *SysfsBus) Tx(addr uint16, w, r []byte) error {
	return errors.New("i2cbus: sysfs I2C is only supported on linux")
}

func (b *SysfsBus) Close() error { return nil }

var _ Bus = (*SysfsBus)(nil)
