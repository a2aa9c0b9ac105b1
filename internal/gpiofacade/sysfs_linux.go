//go:build linux

package gpiofacade

import (
	"fmt"
	"os"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
)

// SysfsChip drives GPIO lines through /sys/class/gpio, adapted from the
// teacher's host/sysfs Pin.open/In/Out: export once via the shared /export
// handle, then read/write each line's own direction and value files.
type SysfsChip struct {
	exportHandle *os.File
}

// OpenSysfsChip opens /sys/class/gpio/export, ready to export lines on
// demand.
func OpenSysfsChip() (*SysfsChip, error) {
	f, err := os.OpenFile("/sys/class/gpio/export", os.O_WRONLY, 0)
	if err != nil {
		return nil, errors.Wrap(err, "gpiofacade: open /sys/class/gpio/export")
	}
	return &SysfsChip{exportHandle: f}, nil
}

// Export implements Chip. Exporting an already-exported line returns EBUSY,
// which is not an error for our purposes.
func (c *SysfsChip) Export(line uint8) error {
	_, err := c.exportHandle.Write([]byte(strconv.Itoa(int(line))))
	if err != nil && !os.IsExist(err) && !isErrBusy(err) {
		return err
	}
	return nil
}

// SetDirection implements Chip.
func (c *SysfsChip) SetDirection(line uint8, out bool) error {
	f, err := os.OpenFile(directionPath(line), os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	dir := "in"
	if out {
		dir = "low" // drive low by default when switching to output
	}
	_, err = f.WriteString(dir)
	return err
}

// WriteValue implements Chip.
func (c *SysfsChip) WriteValue(line uint8, high bool) error {
	f, err := os.OpenFile(valuePath(line), os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	v := "0"
	if high {
		v = "1"
	}
	_, err = f.WriteString(v)
	return err
}

// ReadValue implements Chip.
func (c *SysfsChip) ReadValue(line uint8) (bool, error) {
	f, err := os.OpenFile(valuePath(line), os.O_RDONLY, 0)
	if err != nil {
		return false, err
	}
	defer f.Close()
	var buf [1]byte
	if _, err := f.Read(buf[:]); err != nil {
		return false, err
	}
	return buf[0] == '1', nil
}

func directionPath(line uint8) string {
	return fmt.Sprintf("/sys/class/gpio/gpio%d/direction", line)
}

func valuePath(line uint8) string {
	return fmt.Sprintf("/sys/class/gpio/gpio%d/value", line)
}

func isErrBusy(err error) bool {
	return os.IsExist(err) || errors.Is(err, syscall.EBUSY)
}

var _ Chip = (*SysfsChip)(nil)
