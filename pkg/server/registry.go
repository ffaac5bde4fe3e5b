package server

import (
	"sort"
	"sync"
)

// Registry is the server's non-owning index of live connections, keyed by
// peer address. Handlers own their Connection; the registry only lets the
// idle monitor, STAT and shutdown find them.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Connection
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Add registers c under its peer address.
func (r *Registry) Add(c *Connection) {
	r.mu.Lock()
	r.conns[c.addr] = c
	r.mu.Unlock()
}

// Remove deregisters c. It only removes the entry if it still points at c,
// so a late cleanup cannot evict a newer connection from the same address.
func (r *Registry) Remove(c *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[c.addr]; ok && cur == c {
		delete(r.conns, c.addr)
		return true
	}
	return false
}

// Get returns the connection registered for addr.
func (r *Registry) Get(addr string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[addr]
	return c, ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Snapshot returns the registered connections ordered by connect time.
// The slice is a copy; it is safe to iterate while connections come and go.
func (r *Registry) Snapshot() []*Connection {
	r.mu.Lock()
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].connectedAt.Before(out[j].connectedAt)
	})
	return out
}
