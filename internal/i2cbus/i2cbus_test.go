package i2cbus

import (
	"errors"
	"testing"

	"github.com/karol-design/pihub/internal/i2cbus/i2ctest"
)

func TestReadRegister(t *testing.T) {
	fake := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: 0x76, Write: []byte{0xD0}, Read: []byte{0x60}},
	}}
	tr := New(fake)

	buf := make([]byte, 1)
	if err := tr.ReadRegister(0x76, 0xD0, buf); err != nil {
		t.Fatalf("ReadRegister() error = %v", err)
	}
	if buf[0] != 0x60 {
		t.Fatalf("ReadRegister() = %#x, want 0x60", buf[0])
	}
	if err := fake.Close(); err != nil {
		t.Fatalf("unconsumed ops: %v", err)
	}
}

func TestWriteRegister(t *testing.T) {
	fake := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: 0x76, Write: []byte{0xF4, 0x27}},
	}}
	tr := New(fake)

	if err := tr.WriteRegister(0x76, 0xF4, []byte{0x27}); err != nil {
		t.Fatalf("WriteRegister() error = %v", err)
	}
	if err := fake.Close(); err != nil {
		t.Fatalf("unconsumed ops: %v", err)
	}
}

func TestReadRegisterTransportFailureWrapped(t *testing.T) {
	fake := &i2ctest.Playback{} // no ops queued: Tx will fail
	tr := New(fake)

	err := tr.ReadRegister(0x76, 0xD0, make([]byte, 1))
	if !errors.Is(err, ErrTransportFailure) {
		t.Fatalf("ReadRegister() error = %v, want ErrTransportFailure", err)
	}
}
