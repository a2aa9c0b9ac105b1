//go:build !linux

package gpiofacade

import "github.com/pkg/errors"

// SysfsChip is unavailable outside Linux.
type SysfsChip struct{}

// OpenSysfsChip always fails on non-Linux hosts.
func OpenSysfsChip() (*SysfsChip, error) {
	return nil, errors.New("gpiofacade: sysfs GPIO is only supported on linux")
}

func (c *SysfsChip) Export(line uint8) error               { return errUnsupported }
func (c *SysfsChip) SetDirection(line uint8, out bool) error { return errUnsupported }
func (c *SysfsChip) WriteValue(line uint8, high bool) error { return errUnsupported }
func (c *SysfsChip) ReadValue(line uint8) (bool, error)     { return false, errUnsupported }

var errUnsupported = errors.New("gpiofacade: sysfs GPIO is only supported on linux")

var _ Chip = (*SysfsChip)(nil)
