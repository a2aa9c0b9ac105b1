// Package app is the App Glue (C6): the single process-wide wiring of the
// TCP Server Core, Command Dispatcher, GPIO Facade, I²C transport and
// configured sensor drivers into the command table spec §4.6 names, plus
// the server callbacks that turn connect/disconnect/data events into
// wire-protocol lines.
//
// Unlike original_source's app.c, whose gpio/sensor handlers are stubs
// ("@TODO" comments, no real hardware calls), every handler here is fully
// implemented against the real collaborators — a complete system is what
// this package wires, not a demonstration of the dispatch mechanism.
package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/karol-design/pihub/internal/bme280"
	"github.com/karol-design/pihub/internal/config"
	"github.com/karol-design/pihub/internal/dispatcher"
	"github.com/karol-design/pihub/internal/gpiofacade"
	"github.com/karol-design/pihub/internal/registry"
	"github.com/karol-design/pihub/internal/server"
	"github.com/karol-design/pihub/internal/stats"
)

const welcomeLine = "> Welcome to PiHub — type `server help` for available commands.\n"

var manual = []string{
	"gpio set <line> <0|1>      -- drive a GPIO line high or low",
	"gpio get <line>            -- read a GPIO line's current level",
	"sensor list                -- list configured sensors and their interface",
	"sensor get <id> <temp|hum|press> -- read one measurement from a sensor",
	"server status              -- memory, network and uptime summary",
	"server uptime              -- system uptime",
	"server net                 -- network interface counters",
	"server disconnect          -- disconnect your own session",
	"server help                -- this manual",
}

// dispatcher command slot IDs, assigned once at registration.
const (
	cmdGPIOSet = iota
	cmdGPIOGet
	cmdSensorList
	cmdSensorGet
	cmdServerStatus
	cmdServerUptime
	cmdServerNet
	cmdServerDisconnect
	cmdServerHelp
)

// App holds the process-wide singletons named in spec §4.6.
type App struct {
	cfg     config.Config
	log     *logrus.Logger
	srv     *server.Server
	disp    *dispatcher.Dispatcher
	gpio    *gpiofacade.Facade
	sensors []*bme280.Dev
	stats   *stats.Collector
}

// New builds the App and registers the full command table against disp.
// It does not start the server; call Run after construction.
func New(cfg config.Config, log *logrus.Logger, gpio *gpiofacade.Facade, sensors []*bme280.Dev, onServerFailure func(error)) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	disp, err := dispatcher.New(cfg.Delimiter)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		disp:    disp,
		gpio:    gpio,
		sensors: sensors,
		stats:   stats.New(),
	}

	srv, err := server.New(server.Callbacks{
		OnClientConnect:    a.onClientConnect,
		OnClientDisconnect: a.onClientDisconnect,
		OnDataReceived:     a.onDataReceived,
		OnServerFailure:    onServerFailure,
	}, server.WithMaxClients(cfg.MaxClients))
	if err != nil {
		return nil, err
	}
	a.srv = srv

	if err := a.registerCommands(); err != nil {
		return nil, err
	}
	return a, nil
}

// Run starts the server listening on the configured address.
func (a *App) Run() error {
	return a.srv.Run(a.cfg.ListenAddr)
}

// Shutdown disconnects every client and stops the acceptor.
func (a *App) Shutdown() error {
	return a.srv.Shutdown()
}

// Addr returns the server's bound listen address.
func (a *App) Addr() string {
	return a.srv.Addr()
}

// Deinit releases server resources. Must be called only after Shutdown.
func (a *App) Deinit() error {
	return a.srv.Deinit()
}

func (a *App) registerCommands() error {
	type reg struct {
		id      int
		target  string
		action  string
		handler dispatcher.Handler
	}
	for _, r := range []reg{
		{cmdGPIOSet, "gpio", "set", a.handleGPIOSet},
		{cmdGPIOGet, "gpio", "get", a.handleGPIOGet},
		{cmdSensorList, "sensor", "list", a.handleSensorList},
		{cmdSensorGet, "sensor", "get", a.handleSensorGet},
		{cmdServerStatus, "server", "status", a.handleServerStatus},
		{cmdServerUptime, "server", "uptime", a.handleServerUptime},
		{cmdServerNet, "server", "net", a.handleServerNet},
		{cmdServerDisconnect, "server", "disconnect", a.handleServerDisconnect},
		{cmdServerHelp, "server", "help", a.handleServerHelp},
	} {
		if err := a.disp.Register(r.id, r.target, r.action, r.handler); err != nil {
			return err
		}
	}
	return nil
}

// --- server callbacks ---

func (a *App) onClientConnect(c *registry.Client) {
	if err := c.Write([]byte(welcomeLine)); err != nil {
		a.log.WithError(err).WithField("client", c.ID()).Warn("failed to send welcome line")
	}
	line := fmt.Sprintf("> %s connected to the server\n", c.RemoteIP())
	if err := a.srv.BroadcastExcept(c, []byte(line)); err != nil {
		a.log.WithError(err).Warn("broadcast on connect had per-client failures")
	}
}

func (a *App) onClientDisconnect(c *registry.Client) {
	if err := a.srv.Broadcast([]byte("> one of the clients disconnected from the server\n")); err != nil {
		a.log.WithError(err).Warn("broadcast on disconnect had per-client failures")
	}
}

func (a *App) onDataReceived(c *registry.Client, line string) {
	if err := a.disp.Execute(line, c); err != nil {
		reply(c, errLine(err.Error()))
	}
}

// --- command handlers ---

func (a *App) handleGPIOSet(tok dispatcher.Tokens, rawCtx interface{}) error {
	c := rawCtx.(*registry.Client)
	if len(tok.Args) != 2 {
		reply(c, errLine("usage: gpio set <line> <0|1>"))
		return nil
	}
	line, err := parseU8(tok.Args[0])
	if err != nil {
		reply(c, errLine("invalid line number"))
		return nil
	}
	state, err := strconv.Atoi(tok.Args[1])
	if err != nil || (state != 0 && state != 1) {
		reply(c, errLine("incorrect state value (only 0 or 1 is allowed)"))
		return nil
	}

	if err := a.gpio.Set(line, state == 1); err != nil {
		reply(c, errLine(fmt.Sprintf("failed to set GPIO line %d: %v", line, err)))
		return nil
	}
	level := "LOW"
	if state == 1 {
		level = "HIGH"
	}
	reply(c, fmt.Sprintf("GPIO line %d set to %s", line, level))
	return nil
}

func (a *App) handleGPIOGet(tok dispatcher.Tokens, rawCtx interface{}) error {
	c := rawCtx.(*registry.Client)
	if len(tok.Args) != 1 {
		reply(c, errLine("usage: gpio get <line>"))
		return nil
	}
	line, err := parseU8(tok.Args[0])
	if err != nil {
		reply(c, errLine("invalid line number"))
		return nil
	}

	v, err := a.gpio.Get(line)
	if err != nil {
		reply(c, errLine(fmt.Sprintf("failed to read GPIO line %d: %v", line, err)))
		return nil
	}
	level := "LOW"
	if v {
		level = "HIGH"
	}
	reply(c, fmt.Sprintf("GPIO line %d is %s", line, level))
	return nil
}

func (a *App) handleSensorList(tok dispatcher.Tokens, rawCtx interface{}) error {
	c := rawCtx.(*registry.Client)
	if len(a.cfg.Sensors) == 0 {
		reply(c, "no sensors configured")
		return nil
	}
	for _, s := range a.cfg.Sensors {
		reply(c, fmt.Sprintf("sensor #%d: interface %s, address 0x%02x", s.ID, s.Interface, s.Addr))
	}
	return nil
}

func (a *App) handleSensorGet(tok dispatcher.Tokens, rawCtx interface{}) error {
	c := rawCtx.(*registry.Client)
	if len(tok.Args) != 2 {
		reply(c, errLine("usage: sensor get <id> <temp|hum|press>"))
		return nil
	}
	id, err := parseU8(tok.Args[0])
	if err != nil || int(id) >= len(a.sensors) {
		reply(c, errLine("invalid sensor id"))
		return nil
	}
	measurement := strings.ToLower(tok.Args[1])

	reading, err := a.sensors[id].Read()
	if err != nil {
		reply(c, errLine(fmt.Sprintf("sensor #%d read failed: %v", id, err)))
		return nil
	}

	switch measurement {
	case "temp":
		reply(c, fmt.Sprintf("sensor #%d returned temp: %.2f *C", id, reading.TemperatureC))
	case "hum":
		reply(c, fmt.Sprintf("sensor #%d returned hum: %.2f %%RH", id, reading.HumidityRH))
	case "press":
		reply(c, fmt.Sprintf("sensor #%d returned press: %.2f hPa", id, reading.PressurePa/100))
	default:
		reply(c, errLine("unknown measurement, expected temp, hum or press"))
	}
	return nil
}

func (a *App) handleServerStatus(tok dispatcher.Tokens, rawCtx interface{}) error {
	c := rawCtx.(*registry.Client)

	uptime, err := a.stats.Uptime()
	if err != nil {
		reply(c, errLine(fmt.Sprintf("failed to read uptime: %v", err)))
		return nil
	}
	mem, err := a.stats.MemInfo()
	if err != nil {
		reply(c, errLine(fmt.Sprintf("failed to read memory info: %v", err)))
		return nil
	}
	net, err := a.stats.NetStats(a.cfg.StatsIface)
	if err != nil {
		reply(c, errLine(fmt.Sprintf("failed to read network info: %v", err)))
		return nil
	}

	reply(c, fmt.Sprintf("uptime: %s", uptime))
	reply(c, fmt.Sprintf("memory: total=%dkB free=%dkB available=%dkB", mem.TotalKB, mem.FreeKB, mem.AvailableKB))
	reply(c, fmt.Sprintf("net %s: rx_bytes=%d rx_packets=%d tx_bytes=%d tx_packets=%d",
		a.cfg.StatsIface, net.RXBytes, net.RXPackets, net.TXBytes, net.TXPackets))
	reply(c, fmt.Sprintf("connected clients: %d", len(a.srv.GetClients())))
	return nil
}

func (a *App) handleServerUptime(tok dispatcher.Tokens, rawCtx interface{}) error {
	c := rawCtx.(*registry.Client)
	uptime, err := a.stats.Uptime()
	if err != nil {
		reply(c, errLine(fmt.Sprintf("failed to read uptime: %v", err)))
		return nil
	}
	reply(c, fmt.Sprintf("uptime: %s", uptime))
	return nil
}

func (a *App) handleServerNet(tok dispatcher.Tokens, rawCtx interface{}) error {
	c := rawCtx.(*registry.Client)
	net, err := a.stats.NetStats(a.cfg.StatsIface)
	if err != nil {
		reply(c, errLine(fmt.Sprintf("failed to read network info: %v", err)))
		return nil
	}
	reply(c, fmt.Sprintf("net %s: rx_bytes=%d rx_packets=%d tx_bytes=%d tx_packets=%d",
		a.cfg.StatsIface, net.RXBytes, net.RXPackets, net.TXBytes, net.TXPackets))
	return nil
}

func (a *App) handleServerDisconnect(tok dispatcher.Tokens, rawCtx interface{}) error {
	c := rawCtx.(*registry.Client)
	reply(c, "disconnecting from the server...")
	if err := a.srv.BroadcastExcept(c, []byte("> one of the clients disconnected from the server\n")); err != nil {
		a.log.WithError(err).Warn("broadcast on command-disconnect had per-client failures")
	}
	a.srv.Disconnect(c)
	return nil
}

func (a *App) handleServerHelp(tok dispatcher.Tokens, rawCtx interface{}) error {
	c := rawCtx.(*registry.Client)
	for _, line := range manual {
		reply(c, line)
	}
	return nil
}

// --- helpers ---

func reply(c *registry.Client, line string) {
	c.Write([]byte("> " + line + "\n"))
}

func errLine(msg string) string {
	return "err: " + msg
}

func parseU8(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}
