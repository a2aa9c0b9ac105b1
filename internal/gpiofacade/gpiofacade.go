// Package gpiofacade is the blocking Set/Get facade over Linux sysfs GPIO
// (C7): export-on-first-use, direction caching per line, and value
// read/write, trimmed from the teacher's full gpio.PinIO surface (no edge
// detection, no Func/SetFunc, no pull resistors — this system only ever
// drives or reads a line).
package gpiofacade

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrTransportFailure is the single error kind C7 surfaces, same policy as
// the I²C transport (C2).
var ErrTransportFailure = errors.New("gpiofacade: transport failure")

// direction tracks which way a line was last requested, so repeated
// commands against the same line don't re-request it every call.
type direction int

const (
	directionUnset direction = iota
	directionIn
	directionOut
)

// Chip is the minimal interface a concrete GPIO backend must implement:
// export a line once, then drive or sample its value.
type Chip interface {
	// Export prepares line for use, idempotent across repeated calls.
	Export(line uint8) error
	// SetDirection switches line to input or output.
	SetDirection(line uint8, out bool) error
	// WriteValue drives an output line high (true) or low (false).
	WriteValue(line uint8, high bool) error
	// ReadValue samples the current level of line.
	ReadValue(line uint8) (bool, error)
}

// lineState is what the facade remembers about one line between calls.
type lineState struct {
	dir direction
}

// Facade is the shared, concurrency-safe GPIO handle every `gpio` command
// dispatches through.
type Facade struct {
	chip Chip

	mu    sync.Mutex
	lines map[uint8]*lineState
}

// New wraps chip with the line-state cache.
func New(chip Chip) *Facade {
	return &Facade{chip: chip, lines: make(map[uint8]*lineState)}
}

// Set drives line high or low, requesting it as an output first if it
// isn't already held that way.
func (f *Facade) Set(line uint8, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, err := f.ensureExported(line)
	if err != nil {
		return err
	}
	if st.dir != directionOut {
		if err := f.chip.SetDirection(line, true); err != nil {
			return errors.Wrapf(ErrTransportFailure, "set line %d as output: %v", line, err)
		}
		st.dir = directionOut
	}
	if err := f.chip.WriteValue(line, value); err != nil {
		return errors.Wrapf(ErrTransportFailure, "write line %d: %v", line, err)
	}
	return nil
}

// Get reads line's current level, requesting it as an input first if it
// isn't already held that way.
func (f *Facade) Get(line uint8) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, err := f.ensureExported(line)
	if err != nil {
		return false, err
	}
	if st.dir != directionIn {
		if err := f.chip.SetDirection(line, false); err != nil {
			return false, errors.Wrapf(ErrTransportFailure, "set line %d as input: %v", line, err)
		}
		st.dir = directionIn
	}
	v, err := f.chip.ReadValue(line)
	if err != nil {
		return false, errors.Wrapf(ErrTransportFailure, "read line %d: %v", line, err)
	}
	return v, nil
}

// ensureExported returns the cached state for line, exporting it with the
// backing chip on first use. Callers must hold f.mu.
func (f *Facade) ensureExported(line uint8) (*lineState, error) {
	if st, ok := f.lines[line]; ok {
		return st, nil
	}
	if err := f.chip.Export(line); err != nil {
		return nil, errors.Wrapf(ErrTransportFailure, "export line %d: %v", line, err)
	}
	st := &lineState{}
	f.lines[line] = st
	return st, nil
}
