package relay

import "sync"

// Registry tracks every live connection by its stable connection ID.
// It owns no room state; membership lives in Rooms.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Conn)}
}

// Register records a new live connection.
// Registering the same ID twice is a programming error upstream; the newer
// entry wins.
func (r *Registry) Register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = c
}

// Unregister removes a connection. Safe to call for unknown IDs.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connID)
}

// Lookup returns the connection for the given ID, if still live.
func (r *Registry) Lookup(connID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
