package gpiofacade

import (
	"errors"
	"testing"
)

// fakeChip is an in-memory Chip recording calls, used the same way the
// teacher's gpiotest fakes stand in for real sysfs pins.
type fakeChip struct {
	exported  map[uint8]bool
	direction map[uint8]bool // true = out
	values    map[uint8]bool
	exportErr error
}

func newFakeChip() *fakeChip {
	return &fakeChip{
		exported:  make(map[uint8]bool),
		direction: make(map[uint8]bool),
		values:    make(map[uint8]bool),
	}
}

func (c *fakeChip) Export(line uint8) error {
	if c.exportErr != nil {
		return c.exportErr
	}
	c.exported[line] = true
	return nil
}

func (c *fakeChip) SetDirection(line uint8, out bool) error {
	c.direction[line] = out
	return nil
}

func (c *fakeChip) WriteValue(line uint8, high bool) error {
	c.values[line] = high
	return nil
}

func (c *fakeChip) ReadValue(line uint8) (bool, error) {
	return c.values[line], nil
}

func TestSetExportsAndDrivesOutput(t *testing.T) {
	chip := newFakeChip()
	f := New(chip)

	if err := f.Set(4, true); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !chip.exported[4] {
		t.Fatal("Set() did not export line 4")
	}
	if !chip.direction[4] {
		t.Fatal("Set() did not request line 4 as output")
	}
	if !chip.values[4] {
		t.Fatal("Set() did not drive line 4 high")
	}
}

func TestGetExportsAndReadsInput(t *testing.T) {
	chip := newFakeChip()
	chip.values[7] = true
	f := New(chip)

	v, err := f.Get(7)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !v {
		t.Fatal("Get() = false, want true")
	}
	if chip.direction[7] {
		t.Fatal("Get() requested line 7 as output, want input")
	}
}

func TestRepeatedCallsDoNotReexport(t *testing.T) {
	chip := newFakeChip()
	f := New(chip)

	if err := f.Set(1, true); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	chip.exported[1] = false // simulate: a re-export would be visible
	if err := f.Set(1, false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if chip.exported[1] {
		t.Fatal("second Set() re-exported an already-known line")
	}
}

func TestExportFailureSurfacesAsTransportFailure(t *testing.T) {
	chip := newFakeChip()
	chip.exportErr = errUnsupportedForTest
	f := New(chip)

	if err := f.Set(2, true); !errors.Is(err, ErrTransportFailure) {
		t.Fatalf("Set() error = %v, want export failure wrapped as ErrTransportFailure", err)
	}
}

var errUnsupportedForTest = errFake("fake export failure")

type errFake string

func (e errFake) Error() string { return string(e) }
