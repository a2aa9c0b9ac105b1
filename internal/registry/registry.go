// Package registry implements the active-client registry: the ordered,
// thread-safe collection of connected peers shared by the acceptor, the
// per-client workers, and the broadcast/status commands.
//
// The original's hand-rolled singly-linked list is treated as out of scope
// boilerplate here — a mutex-guarded slice is the idiomatic Go ordered
// container and gives push/remove/iterate for free.
package registry

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Client is one connected peer: the identity referenced from exactly one
// registry slot and from the one worker goroutine handling it.
type Client struct {
	id   uint64
	conn net.Conn

	// done is closed at most once, by SignalDisconnect: a "server
	// disconnect" command or a full server shutdown. The peer closing its
	// end does not close it.
	done      chan struct{}
	closeOnce sync.Once

	// writeMu serialises writes from handlers and from broadcast so two
	// messages to the same peer never interleave on the wire.
	writeMu sync.Mutex
}

var nextClientID uint64

// NewClient wraps an accepted connection into a Client handle with a fresh
// identity and disconnect signal. The handle is not yet registered.
func NewClient(conn net.Conn) *Client {
	return &Client{
		id:   atomic.AddUint64(&nextClientID, 1),
		conn: conn,
		done: make(chan struct{}),
	}
}

// ID returns the handle's registry identity, analogous to the socket
// descriptor the original registry keyed on.
func (c *Client) ID() uint64 { return c.id }

// Conn exposes the underlying connection for reads; writers must go
// through Write so concurrent writers serialise correctly.
func (c *Client) Conn() net.Conn { return c.conn }

// RemoteIP returns the peer's host address, or the full remote address
// string if it cannot be split into host and port (never fails the caller).
func (c *Client) RemoteIP() string {
	host, _, err := net.SplitHostPort(c.conn.RemoteAddr().String())
	if err != nil {
		return c.conn.RemoteAddr().String()
	}
	return host
}

// Write sends b in full to this client, looping on partial writes, holding
// the per-client write lock so handlers and broadcasts never interleave.
func (c *Client) Write(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	for len(b) > 0 {
		n, err := c.conn.Write(b)
		if err != nil {
			return errors.Wrap(err, "registry: client write failed")
		}
		b = b[n:]
	}
	return nil
}

// Done returns the channel that is closed when this client has been forced
// to disconnect via SignalDisconnect.
func (c *Client) Done() <-chan struct{} { return c.done }

// SignalDisconnect closes Done exactly once, idempotently.
func (c *Client) SignalDisconnect() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Registry is the thread-safe ordered collection of active clients.
type Registry struct {
	mu      sync.Mutex
	clients []*Client
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Push appends a client to the registry in acceptance order.
func (r *Registry) Push(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = append(r.clients, c)
}

// Remove unlinks the client whose ID matches c's from the registry. A
// client not present is a no-op, matching the original's tolerant removal.
func (r *Registry) Remove(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.clients {
		if cur.ID() == c.ID() {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			return
		}
	}
}

// Length returns the number of currently registered clients.
func (r *Registry) Length() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Snapshot returns a copy of the current client list, safe to range over
// without holding the registry lock — used by broadcast and by the
// "connected clients" status command.
func (r *Registry) Snapshot() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, len(r.clients))
	copy(out, r.clients)
	return out
}

// Iterate applies fn to each registered client in insertion order, stopping
// early if fn returns an error.
func (r *Registry) Iterate(fn func(*Client) error) error {
	for _, c := range r.Snapshot() {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// Deinit clears the registry. Callers must have already disconnected every
// client (see server.Shutdown); Deinit does not itself close connections.
func (r *Registry) Deinit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = nil
}
