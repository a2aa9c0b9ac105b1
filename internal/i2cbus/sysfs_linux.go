//go:build linux

package i2cbus

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
)

// i2cdev driver IOCTL control codes, from /usr/include/linux/i2c-dev.h and
// /usr/include/linux/i2c.h.
const (
	ioctlFuncs = 0x705
	ioctlRdwr  = 0x707

	flagRD = 0x0001 // read data, from slave to master
)

type i2cMsg struct {
	addr   uint16
	flags  uint16
	length uint16
	buf    uintptr
}

type rdwrIoctlData struct {
	msgs  uintptr
	nmsgs uint32
}

// SysfsBus is a real I²C bus opened through the Linux /dev/i2c-N character
// device.
type SysfsBus struct {
	f   *os.File
	num int
	mu  sync.Mutex
}

// OpenSysfsBus opens /dev/i2c-<num>.
func OpenSysfsBus(num int) (*SysfsBus, error) {
	f, err := os.OpenFile(fmt.Sprintf("/dev/i2c-%d", num), os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "i2cbus: bus #%d is not configured", num)
		}
		return nil, errors.Wrapf(err, "i2cbus: opening bus #%d (are you a member of group 'i2c'?)", num)
	}
	b := &SysfsBus{f: f, num: num}
	var funcs uint64
	if err := b.ioctl(ioctlFuncs, uintptr(unsafe.Pointer(&funcs))); err != nil {
		f.Close()
		return nil, err
	}
	return b, nil
}

func (b *SysfsBus) ioctl(op uint, arg uintptr) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, b.f.Fd(), uintptr(op), arg); errno != 0 {
		return syscall.Errno(errno)
	}
	return nil
}

// Tx implements Bus: a single I2C_RDWR transaction combining the write and
// read segments, matching the combined write-register-address-then-read
// sequence the BME280 driver issues.
func (b *SysfsBus) Tx(addr uint16, w, r []byte) error {
	if len(w) == 0 && len(r) == 0 {
		return nil
	}
	var buf [2]i2cMsg
	msgs := buf[0:0]
	if len(w) != 0 {
		msgs = buf[:1]
		buf[0] = i2cMsg{addr: addr, length: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))}
	}
	if len(r) != 0 {
		i := len(msgs)
		msgs = msgs[:i+1]
		buf[i] = i2cMsg{addr: addr, flags: flagRD, length: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))}
	}
	data := rdwrIoctlData{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(len(msgs))}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ioctl(ioctlRdwr, uintptr(unsafe.Pointer(&data)))
}

// Close closes the character device handle.
func (b *SysfsBus) Close() error {
	return b.f.Close()
}

var _ Bus = (*SysfsBus)(nil)
