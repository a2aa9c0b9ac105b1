// Package i2ctest provides a fake I²C bus for exercising drivers without
// real hardware, adapted from the teacher's conn/i2c/i2ctest replay-based
// mock: a Playback bus is pre-loaded with the exact sequence of
// transactions a driver is expected to issue and returns an error from Tx
// the moment an actual call diverges from the recording.
package i2ctest

import (
	"bytes"
	"fmt"
	"sync"
)

// IO records one expected Tx call: the bytes written and the bytes the
// fake bus should hand back to the reader.
type IO struct {
	Addr  uint16
	Write []byte
	Read  []byte
}

// Playback implements i2cbus.Bus and plays back a fixed sequence of
// transactions, failing on any divergence.
type Playback struct {
	mu  sync.Mutex
	Ops []IO
}

// Tx implements i2cbus.Bus.
func (p *Playback) Tx(addr uint16, w, r []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Ops) == 0 {
		return fmt.Errorf("i2ctest: unexpected Tx(addr=%#x, w=%#v, len(r)=%d), no ops left", addr, w, len(r))
	}
	op := p.Ops[0]
	if addr != op.Addr {
		return fmt.Errorf("i2ctest: unexpected addr %#x, want %#x", addr, op.Addr)
	}
	if !bytes.Equal(op.Write, w) {
		return fmt.Errorf("i2ctest: unexpected write %#v, want %#v", w, op.Write)
	}
	if len(op.Read) != len(r) {
		return fmt.Errorf("i2ctest: unexpected read buffer length %d, want %d", len(r), len(op.Read))
	}
	copy(r, op.Read)
	p.Ops = p.Ops[1:]
	return nil
}

// Close implements i2cbus.Bus and fails if any expected ops were never
// consumed.
func (p *Playback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Ops) != 0 {
		return fmt.Errorf("i2ctest: %d unconsumed ops remain", len(p.Ops))
	}
	return nil
}
