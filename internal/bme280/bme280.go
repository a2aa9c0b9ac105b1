// Package bme280 drives a Bosch BME280 environmental sensor over I²C: chip
// identification, the fixed init sequence, and the datasheet's integer
// compensation algorithms for temperature, pressure and humidity.
//
// Adapted from the teacher's devices/bme280/bme280.go — the register map
// and the three compensation formulas are carried over bit-exact, with the
// SPI path dropped (this system only ever talks to the sensor over I²C, see
// internal/i2cbus) and the init sequence narrowed to the fixed,
// non-configurable steps the datasheet-driven original performs: one
// oversampling x16 / normal-mode write, a 10ms settle, one config write,
// then the trim read — no ctrl_hum write, no Opts, no continuous-sampling
// ticker.
package bme280

import (
	"time"

	"github.com/pkg/errors"

	"github.com/karol-design/pihub/internal/i2cbus"
)

// Registers, from the BME280 datasheet.
const (
	regChipID    = 0xD0
	regCtrlMeas  = 0xF4
	regConfig    = 0xF5
	regCalibA    = 0x88 // 26 bytes: dig_T1..T3, dig_P1..P9, dig_H1
	calibALen    = 26
	regCalibB    = 0xE1 // 7 bytes: dig_H2..H6
	calibBLen    = 7
	regDataBurst = 0xF7 // 8 bytes: press, temp, hum ADC words
	dataBurstLen = 8

	expectedChipID = 0x60
	settleDelay    = 10 * time.Millisecond
)

const (
	osrsMax16x  = 5 // 0b101: oversampling x16
	modeNormal  = 3 // 0b11
	filterOff   = 0 // 0b000
	standby20ms = 7 // 0b111: t_sb = 20ms
	spi3wOff    = 0
)

// Sentinel errors, matching spec's three BME280 failure kinds.
var (
	ErrNotInitialised = errors.New("bme280: sensor not initialised")
	ErrInvalidID      = errors.New("bme280: chip id mismatch, not a BME280")
)

// Reading is one set of compensated engineering-unit measurements.
type Reading struct {
	TemperatureC float64
	PressurePa   float64
	HumidityRH   float64
}

// Dev is one configured BME280 sensor.
type Dev struct {
	addr        uint16
	transport   *i2cbus.Transport
	initialised bool
	trim        calibration
}

// New returns a handle to a BME280 at addr on transport. It does not touch
// the device; call Init before any reading.
func New(transport *i2cbus.Transport, addr uint16) *Dev {
	return &Dev{addr: addr, transport: transport}
}

// Init runs the fixed init sequence from spec §4.3: chip-ID check,
// ctrl_meas write (oversampling x16 temp+press, normal mode), a 10ms
// settle, the config write (20ms standby, filter off, 3-wire SPI off), and
// the trim read. Each step is fatal on failure.
func (d *Dev) Init() error {
	var id [1]byte
	if err := d.transport.ReadRegister(d.addr, regChipID, id[:]); err != nil {
		return err
	}
	if id[0] != expectedChipID {
		return errors.Wrapf(ErrInvalidID, "got 0x%02x, want 0x%02x", id[0], expectedChipID)
	}

	ctrlMeas := byte(osrsMax16x)<<5 | byte(osrsMax16x)<<2 | byte(modeNormal)
	if err := d.transport.WriteRegister(d.addr, regCtrlMeas, []byte{ctrlMeas}); err != nil {
		return err
	}

	time.Sleep(settleDelay)

	config := byte(standby20ms)<<5 | byte(filterOff)<<2 | byte(spi3wOff)
	if err := d.transport.WriteRegister(d.addr, regConfig, []byte{config}); err != nil {
		return err
	}

	var a [calibALen]byte
	if err := d.transport.ReadRegister(d.addr, regCalibA, a[:]); err != nil {
		return err
	}
	var b [calibBLen]byte
	if err := d.transport.ReadRegister(d.addr, regCalibB, b[:]); err != nil {
		return err
	}
	d.trim = newCalibration(a[:], b[:])
	d.initialised = true
	return nil
}

// Read takes one reading. The sensor must already be running continuously
// in normal mode (set up by Init), so Read only pulls the latest data
// burst and compensates it.
func (d *Dev) Read() (Reading, error) {
	if !d.initialised {
		return Reading{}, ErrNotInitialised
	}
	var buf [dataBurstLen]byte
	if err := d.transport.ReadRegister(d.addr, regDataBurst, buf[:]); err != nil {
		return Reading{}, err
	}

	adcP := int32(buf[0])<<12 | int32(buf[1])<<4 | int32(buf[2])>>4
	adcT := int32(buf[3])<<12 | int32(buf[4])<<4 | int32(buf[5])>>4
	adcH := int32(buf[6])<<8 | int32(buf[7])

	tCenti, tFine := d.trim.compensateTempInt(adcT)
	p := d.trim.compensatePressureInt64(adcP, tFine)
	h := d.trim.compensateHumidityInt(adcH, tFine)

	return Reading{
		TemperatureC: float64(tCenti) / 100,
		PressurePa:   float64(p) / 256,
		HumidityRH:   float64(h) / 1024,
	}, nil
}

// calibration holds the 18 factory trim words read once during Init.
type calibration struct {
	t1                             uint16
	t2, t3                         int16
	p1                             uint16
	p2, p3, p4, p5, p6, p7, p8, p9 int16
	h1, h3                         uint8
	h2, h4, h5                     int16
	h6                             int8
}

// newCalibration derives the trim words from the two register bursts read
// during Init, indexed strictly by register address (a starts at 0x88, b
// at 0xE1) rather than from any single concatenated buffer — sidestepping
// the off-by-one buffer-offset ambiguity a naive single-buffer port of the
// datasheet algorithm is prone to.
func newCalibration(a, b []byte) calibration {
	var c calibration
	c.t1 = uint16(a[0]) | uint16(a[1])<<8
	c.t2 = int16(a[2]) | int16(a[3])<<8
	c.t3 = int16(a[4]) | int16(a[5])<<8
	c.p1 = uint16(a[6]) | uint16(a[7])<<8
	c.p2 = int16(a[8]) | int16(a[9])<<8
	c.p3 = int16(a[10]) | int16(a[11])<<8
	c.p4 = int16(a[12]) | int16(a[13])<<8
	c.p5 = int16(a[14]) | int16(a[15])<<8
	c.p6 = int16(a[16]) | int16(a[17])<<8
	c.p7 = int16(a[18]) | int16(a[19])<<8
	c.p8 = int16(a[20]) | int16(a[21])<<8
	c.p9 = int16(a[22]) | int16(a[23])<<8
	c.h1 = uint8(a[25]) // register 0xA1

	c.h2 = int16(b[0]) | int16(b[1])<<8  // 0xE1/0xE2
	c.h3 = uint8(b[2])                   // 0xE3
	c.h4 = int16(b[3])<<4 | int16(b[4])&0xF // 0xE4<<4 | 0xE5&0xF
	c.h5 = int16(b[5])<<4 | int16(b[4])>>4  // 0xE6<<4 | 0xE5>>4
	c.h6 = int8(b[6])                    // 0xE7
	return c
}

// compensateTempInt returns temperature in centi-°C and t_fine, the
// datasheet's intermediate value also consumed by pressure and humidity.
func (c *calibration) compensateTempInt(raw int32) (int32, int32) {
	var1 := ((raw>>3 - int32(c.t1)<<1) * int32(c.t2)) >> 11
	var2 := ((((raw>>4 - int32(c.t1)) * (raw>>4 - int32(c.t1))) >> 12) * int32(c.t3)) >> 14
	tFine := var1 + var2
	return (tFine*5 + 128) >> 8, tFine
}

// compensatePressureInt64 returns pressure in Pa, Q24.8 fixed point.
func (c *calibration) compensatePressureInt64(raw, tFine int32) uint32 {
	v1 := int64(tFine) - 128000
	v2 := v1 * v1 * int64(c.p6)
	v2 += (v1 * int64(c.p5)) << 17
	v2 += int64(c.p4) << 35
	v1 = (v1*v1*int64(c.p3))>>8 + ((v1 * int64(c.p2)) << 12)
	v1 = ((int64(1)<<47 + v1) * int64(c.p1)) >> 33
	if v1 == 0 {
		return 0
	}
	p := ((((1048576 - int64(raw)) << 31) - v2) * 3125) / v1
	v1 = (int64(c.p9) * (p >> 13) * (p >> 13)) >> 25
	v2 = (int64(c.p8) * p) >> 19
	return uint32(((p + v1 + v2) >> 8) + (int64(c.p7) << 4))
}

// compensateHumidityInt returns relative humidity, Q22.10 fixed point,
// clamped to [0, 419430400] per the datasheet.
func (c *calibration) compensateHumidityInt(raw, tFine int32) uint32 {
	x := tFine - 76800
	a := (raw<<14 - int32(c.h4)<<20 - int32(c.h5)*x + 16384) >> 15
	x3 := (x * int32(c.h6)) >> 10
	x4 := (x * int32(c.h3)) >> 11
	x5 := (x3 * (x4 + 32768)) >> 10
	b := ((x5+2097152)*int32(c.h2) + 8192) >> 14
	v := a * b
	v -= (((v >> 15) * (v >> 15)) >> 7) * int32(c.h1) >> 4
	if v < 0 {
		v = 0
	}
	if v > 419430400 {
		v = 419430400
	}
	return uint32(v >> 12)
}
