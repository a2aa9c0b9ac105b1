// Package config is the App Config (C10): a plain Go struct built from
// parsed flags, no config file and no environment-variable driven
// settings library — the teacher's own cmd/ tools are flag+struct only,
// and that ambient idiom is carried forward unchanged here.
package config

import (
	"github.com/pkg/errors"

	"github.com/karol-design/pihub/internal/dispatcher"
)

// InterfaceKind labels how a configured sensor is wired, per spec §6's
// sensor inventory.
type InterfaceKind string

const (
	I2C InterfaceKind = "I2C"
	SPI InterfaceKind = "SPI"
)

// Sensor is one entry of the build-time sensor inventory.
type Sensor struct {
	ID        uint8
	Addr      uint16
	Interface InterfaceKind
}

// Config is the fully-validated set of values the App Glue needs to wire
// up the server, dispatcher, GPIO facade, I²C transport and sensors.
type Config struct {
	ListenAddr      string
	MaxClients      int
	MaxPending      int
	Delimiter       string
	I2CBusNumber    int
	Sensors         []Sensor
	StatsIface      string
	LogLevel        string
}

// Validate checks the ranges and invariants the App Glue relies on:
// listen address set, positive client/pending caps, a non-empty
// delimiter that fits the dispatcher's limit, and a sensor inventory
// indexed 0..N-1 with no gaps or duplicates.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("config: listen address is required")
	}
	if c.MaxClients <= 0 {
		return errors.New("config: max clients must be positive")
	}
	if c.MaxPending <= 0 {
		return errors.New("config: max pending connections must be positive")
	}
	if c.Delimiter == "" || len(c.Delimiter) >= dispatcher.MaxDelimLen {
		return errors.New("config: delimiter must be non-empty and short")
	}
	for i, s := range c.Sensors {
		if int(s.ID) != i {
			return errors.Errorf("config: sensor inventory must be indexed 0..N-1, got id %d at position %d", s.ID, i)
		}
		if s.Interface != I2C && s.Interface != SPI {
			return errors.Errorf("config: sensor %d has unknown interface kind %q", s.ID, s.Interface)
		}
	}
	return nil
}
