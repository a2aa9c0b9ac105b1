// Command pihubd is the PiHub control daemon: it brings up the I²C bus,
// the GPIO chip and the configured BME280 sensors, then serves the
// line-oriented TCP command protocol until it receives SIGINT/SIGTERM.
//
// Flag parsing and the mainImpl/main split follow the teacher's cmd/
// tools (see cmd/bme280): a single error-returning mainImpl, with main
// itself doing nothing but reporting that error and setting the exit
// code.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/karol-design/pihub/internal/app"
	"github.com/karol-design/pihub/internal/bme280"
	"github.com/karol-design/pihub/internal/config"
	"github.com/karol-design/pihub/internal/gpiofacade"
	"github.com/karol-design/pihub/internal/i2cbus"
)

// restartDelay is the "short sleep" of the stop -> sleep -> deinit ->
// re-init -> run restart policy spec §9 names as the reference
// on_server_failure behaviour.
const restartDelay = 2 * time.Second

// sensorAddrList collects repeated -sensor flags into an ordered u16
// address list, one entry per configured sensor, id assigned by position.
type sensorAddrList []uint16

func (l *sensorAddrList) String() string {
	parts := make([]string, len(*l))
	for i, a := range *l {
		parts[i] = fmt.Sprintf("0x%02x", a)
	}
	return strings.Join(parts, ",")
}

func (l *sensorAddrList) Set(s string) error {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 16)
	if err != nil {
		return fmt.Errorf("invalid sensor address %q: %w", s, err)
	}
	*l = append(*l, uint16(v))
	return nil
}

func mainImpl() error {
	listenAddr := flag.String("listen", ":65002", "TCP address to listen on")
	maxClients := flag.Int("max-clients", 8, "maximum number of simultaneously connected clients")
	maxPending := flag.Int("max-pending", 16, "maximum number of connections queued ahead of accept (validated only; the listen backlog stays at the OS default)")
	i2cBus := flag.Int("i2c-bus", 1, "I²C bus number, opened as /dev/i2c-<n>")
	delim := flag.String("delim", " ", "command token delimiter")
	statsIface := flag.String("iface", "eth0", "network interface reported by `server net`/`server status`")
	logLevel := flag.String("log-level", "info", "logrus level: trace, debug, info, warn, error")
	verbose := flag.Bool("v", false, "shorthand for -log-level debug")
	var sensorAddrs sensorAddrList
	flag.Var(&sensorAddrs, "sensor", "BME280 I²C address (e.g. 0x76); repeat for multiple sensors")
	flag.Parse()

	if len(sensorAddrs) == 0 {
		sensorAddrs = sensorAddrList{0x76}
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level := *logLevel
	if *verbose {
		level = "debug"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	log.SetLevel(lvl)

	bus, err := i2cbus.OpenSysfsBus(*i2cBus)
	if err != nil {
		return err
	}
	transport := i2cbus.New(bus)

	sensors := make([]*bme280.Dev, len(sensorAddrs))
	cfgSensors := make([]config.Sensor, len(sensorAddrs))
	for i, addr := range sensorAddrs {
		dev := bme280.New(transport, addr)
		if err := dev.Init(); err != nil {
			return fmt.Errorf("sensor #%d (0x%02x): %w", i, addr, err)
		}
		sensors[i] = dev
		cfgSensors[i] = config.Sensor{ID: uint8(i), Addr: addr, Interface: config.I2C}
		log.WithFields(logrus.Fields{"id": i, "addr": fmt.Sprintf("0x%02x", addr)}).Info("sensor initialised")
	}

	chip, err := gpiofacade.OpenSysfsChip()
	if err != nil {
		return err
	}
	gpio := gpiofacade.New(chip)

	cfg := config.Config{
		ListenAddr:   *listenAddr,
		MaxClients:   *maxClients,
		MaxPending:   *maxPending,
		Delimiter:    *delim,
		I2CBusNumber: *i2cBus,
		Sensors:      cfgSensors,
		StatsIface:   *statsIface,
		LogLevel:     level,
	}

	d := &daemon{cfg: cfg, log: log, gpio: gpio, sensors: sensors}
	if err := d.start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("signal received, shutting down")
	return d.stop()
}

// daemon owns the current App instance and implements the restart policy
// spec §9 names for on_server_failure: stop, sleep, deinit, re-init, run.
// The hardware collaborators (gpio, sensors, transport) survive a restart
// unchanged; only the server/dispatcher/registry are rebuilt.
type daemon struct {
	cfg     config.Config
	log     *logrus.Logger
	gpio    *gpiofacade.Facade
	sensors []*bme280.Dev

	current *app.App
}

func (d *daemon) start() error {
	a, err := app.New(d.cfg, d.log, d.gpio, d.sensors, d.onServerFailure)
	if err != nil {
		return err
	}
	if err := a.Run(); err != nil {
		return err
	}
	d.current = a
	d.log.WithField("addr", a.Addr()).Info("pihub listening")
	return nil
}

func (d *daemon) stop() error {
	if d.current == nil {
		return nil
	}
	if err := d.current.Shutdown(); err != nil {
		return err
	}
	return d.current.Deinit()
}

func (d *daemon) onServerFailure(err error) {
	d.log.WithError(err).Error("server infrastructure failure, restarting")

	if d.current != nil {
		if err := d.current.Shutdown(); err != nil {
			d.log.WithError(err).Warn("shutdown during restart reported an error")
		}
	}
	time.Sleep(restartDelay)
	if d.current != nil {
		if err := d.current.Deinit(); err != nil {
			d.log.WithError(err).Warn("deinit during restart reported an error")
		}
	}

	if err := d.start(); err != nil {
		d.log.WithError(err).Error("restart failed, giving up")
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "pihubd: %s.\n", err)
		os.Exit(1)
	}
}
