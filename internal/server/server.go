// Package server implements the TCP Server Core (C5): an acceptor
// goroutine enforcing a connected-client cap, one worker goroutine per
// client, and broadcast/write/disconnect/shutdown operations over the
// Client Registry.
//
// Shaped after original_source's comm/network.c acceptor/worker split, but
// re-expressed with goroutines and channels in place of epoll+eventfd: the
// acceptor is a goroutine blocked in Listener.Accept, each worker is a
// goroutine blocked in a buffered line read, and a client's "wakeup
// primitive" is the registry.Client's done channel, closed exactly once via
// sync.Once. The options-pattern constructor and the accept-then-cap-check
// shape are grounded on simonvetter-modbus's ModbusServer.
package server

import (
	"bufio"
	"net"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/karol-design/pihub/internal/registry"
)

// ErrAlreadyRunning and ErrNotRunning guard the INIT/RUNNING/STOPPED state
// machine from spec §4.5.
var (
	ErrAlreadyRunning = errors.New("server: already running")
	ErrNotRunning     = errors.New("server: not running")
)

// Callbacks are the application hooks the server invokes at each lifecycle
// point, matching original_source's ServerConfig_t.cb_list.
type Callbacks struct {
	OnClientConnect    func(c *registry.Client)
	OnClientDisconnect func(c *registry.Client)
	OnDataReceived     func(c *registry.Client, line string)
	OnServerFailure    func(err error)
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithMaxClients caps the number of simultaneously connected clients;
// connections beyond the cap are accepted then immediately closed, per
// spec §4.5's acceptor step 1. Zero means unlimited.
func WithMaxClients(n int) Option {
	return func(s *Server) { s.maxClients = n }
}

// Server is one listening PiHub TCP endpoint.
type Server struct {
	callbacks  Callbacks
	maxClients int

	mu       sync.Mutex
	listener net.Listener
	reg      *registry.Registry
	running  bool
}

// New builds a Server around the given callbacks. The registry is created
// empty; Run binds the listener and starts accepting.
func New(callbacks Callbacks, opts ...Option) (*Server, error) {
	if callbacks.OnClientConnect == nil || callbacks.OnClientDisconnect == nil ||
		callbacks.OnDataReceived == nil || callbacks.OnServerFailure == nil {
		return nil, errors.New("server: all callbacks are required")
	}
	s := &Server{callbacks: callbacks, reg: registry.New()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Run binds addr (e.g. ":65002") and spawns the acceptor goroutine. It
// returns once the listener is bound; Run does not block.
func (s *Server) Run(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "server: listen")
	}
	s.listener = l
	s.running = true

	go s.accept()
	return nil
}

// accept is the acceptor task: blocks on Listener.Accept, enforces the
// max-clients cap, and spawns a worker per accepted connection.
func (s *Server) accept() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			stopped := !s.running
			s.mu.Unlock()
			if stopped {
				return
			}
			s.callbacks.OnServerFailure(errors.Wrap(err, "server: accept"))
			return
		}

		if s.maxClients > 0 && s.reg.Length() >= s.maxClients {
			conn.Close()
			continue
		}

		client := registry.NewClient(conn)
		s.reg.Push(client)
		s.callbacks.OnClientConnect(client)
		go s.serveClient(client)
	}
}

// serveClient is the worker task: reads newline-delimited commands until
// the peer disconnects or the client's done channel fires, then converges
// on the single teardown path described in spec §4.5.
//
// The done channel is the client's wakeup primitive; a forced disconnect
// (server shutdown or the `disconnect` command) closes it, which this
// goroutine turns into an immediate socket close so the blocking
// ReadString unblocks with an error rather than waiting for the peer.
func (s *Server) serveClient(c *registry.Client) {
	unblock := make(chan struct{})
	go func() {
		select {
		case <-c.Done():
			c.Close()
		case <-unblock:
		}
	}()
	defer close(unblock)

	reader := bufio.NewReader(c.Conn())
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			select {
			case <-c.Done():
				s.teardown(c, false)
			default:
				s.teardown(c, true)
			}
			return
		}
		s.callbacks.OnDataReceived(c, trimNewline(line))
	}
}

// teardown is the single convergence point for self- and forced-disconnect,
// matching spec §4.5's teardown path: close the socket, remove the handle
// from the registry, and invoke on_client_disconnect only for a self
// disconnect.
func (s *Server) teardown(c *registry.Client, self bool) {
	c.Close()
	s.reg.Remove(c)
	if self {
		s.callbacks.OnClientDisconnect(c)
	}
}

// Write sends bytes to one client under that client's write lock.
func (s *Server) Write(c *registry.Client, data []byte) error {
	return c.Write(data)
}

// Broadcast sends bytes to every registered client. Failures are
// best-effort: every client is attempted and all errors are aggregated
// with multierr, rather than aborting on the first failure (see
// DESIGN.md's "Broadcast semantics" decision).
func (s *Server) Broadcast(data []byte) error {
	return s.BroadcastExcept(nil, data)
}

// BroadcastExcept sends bytes to every registered client other than self.
// Pass a nil self to reach the whole registry (equivalent to Broadcast).
// Used for the connect/disconnect notices in spec §6, which must never
// echo a client's own event back to it.
func (s *Server) BroadcastExcept(self *registry.Client, data []byte) error {
	var errs error
	s.reg.Iterate(func(c *registry.Client) error {
		if self != nil && c.ID() == self.ID() {
			return nil
		}
		if err := c.Write(data); err != nil {
			errs = multierr.Append(errs, err)
		}
		return nil
	})
	return errs
}

// Disconnect signals client for a forced disconnect; its worker performs
// the actual teardown.
func (s *Server) Disconnect(c *registry.Client) {
	c.SignalDisconnect()
}

// Shutdown disconnects every client and stops the acceptor. It does not
// wait for worker goroutines to finish tearing down.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotRunning
	}

	s.reg.Iterate(func(c *registry.Client) error {
		c.SignalDisconnect()
		return nil
	})

	s.running = false
	return s.listener.Close()
}

// Deinit releases the registry. Must be called only after Shutdown.
func (s *Server) Deinit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("server: deinit called before shutdown")
	}
	s.reg.Deinit()
	return nil
}

// GetClientIP returns client's peer address as a dotted IPv4 string.
func GetClientIP(c *registry.Client) string {
	return c.RemoteIP()
}

// GetClients returns a snapshot of the currently connected clients.
func (s *Server) GetClients() []*registry.Client {
	return s.reg.Snapshot()
}

// Addr returns the listener's bound address, including the ephemeral port
// Run chose when addr ended in ":0".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func trimNewline(s string) string {
	n := len(s)
	for n > 0 && (s[n-1] == '\n' || s[n-1] == '\r') {
		n--
	}
	return s[:n]
}
