package registry

import (
	"net"
	"sync"
	"testing"
)

func newTestClient(t *testing.T) (*Client, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return NewClient(server), client
}

func TestPushRemoveLength(t *testing.T) {
	r := New()
	if got := r.Length(); got != 0 {
		t.Fatalf("Length() on empty registry = %d, want 0", got)
	}

	a, _ := newTestClient(t)
	b, _ := newTestClient(t)
	r.Push(a)
	r.Push(b)
	if got := r.Length(); got != 2 {
		t.Fatalf("Length() = %d, want 2", got)
	}

	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].ID() != a.ID() || snap[1].ID() != b.ID() {
		t.Fatalf("Snapshot() = %v, want insertion order [a, b]", snap)
	}

	r.Remove(a)
	if got := r.Length(); got != 1 {
		t.Fatalf("Length() after Remove(a) = %d, want 1", got)
	}
	snap = r.Snapshot()
	if len(snap) != 1 || snap[0].ID() != b.ID() {
		t.Fatalf("Snapshot() after Remove(a) = %v, want [b]", snap)
	}
}

func TestRemoveMissingIsNoOp(t *testing.T) {
	r := New()
	a, _ := newTestClient(t)
	b, _ := newTestClient(t)
	r.Push(a)
	r.Remove(b)
	if got := r.Length(); got != 1 {
		t.Fatalf("Length() after removing an absent client = %d, want 1", got)
	}
}

func TestIterateAbortsOnError(t *testing.T) {
	r := New()
	for i := 0; i < 5; i++ {
		c, _ := newTestClient(t)
		r.Push(c)
	}
	seen := 0
	stop := errFake{}
	err := r.Iterate(func(*Client) error {
		seen++
		if seen == 3 {
			return stop
		}
		return nil
	})
	if err != stop {
		t.Fatalf("Iterate() error = %v, want %v", err, stop)
	}
	if seen != 3 {
		t.Fatalf("Iterate() visited %d clients, want 3", seen)
	}
}

type errFake struct{}

func (errFake) Error() string { return "fake iteration abort" }

func TestSignalDisconnectIdempotent(t *testing.T) {
	c, _ := newTestClient(t)
	c.SignalDisconnect()
	c.SignalDisconnect() // must not panic on double-close

	select {
	case <-c.Done():
	default:
		t.Fatal("Done() channel not closed after SignalDisconnect")
	}
}

func TestConcurrentPushRemove(t *testing.T) {
	r := New()
	const n = 64
	clients := make([]*Client, n)
	for i := range clients {
		clients[i], _ = newTestClient(t)
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			r.Push(c)
		}(c)
	}
	wg.Wait()
	if got := r.Length(); got != n {
		t.Fatalf("Length() after concurrent pushes = %d, want %d", got, n)
	}

	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			r.Remove(c)
		}(c)
	}
	wg.Wait()
	if got := r.Length(); got != 0 {
		t.Fatalf("Length() after concurrent removes = %d, want 0", got)
	}
}

func TestNoDuplicateIDs(t *testing.T) {
	seen := map[uint64]bool{}
	for i := 0; i < 10; i++ {
		c, _ := newTestClient(t)
		if seen[c.ID()] {
			t.Fatalf("duplicate client ID %d", c.ID())
		}
		seen[c.ID()] = true
	}
}
