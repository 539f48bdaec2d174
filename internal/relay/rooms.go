package relay

import "sync"

// Rooms is the room membership table: room ID to the set of member
// connection IDs. Entries appear on first join and disappear with the last
// leave. Membership mutation and read-for-fanout are serialized per room;
// different rooms do not contend beyond the map lookup itself.
//
// Lock order is always the table lock before a room lock.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[int64]*memberSet
}

type memberSet struct {
	mu      sync.Mutex
	members map[string]struct{}
	// dead marks a set reaped from the table; a racing join must retry
	// rather than resurrect it.
	dead bool
}

// NewRooms constructs an empty membership table.
func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[int64]*memberSet)}
}

// Join adds the connection to the room, creating the room if absent.
// Re-joining is a no-op.
func (r *Rooms) Join(roomID int64, connID string) {
	for {
		r.mu.RLock()
		ms := r.rooms[roomID]
		r.mu.RUnlock()

		if ms == nil {
			r.mu.Lock()
			ms = r.rooms[roomID]
			if ms == nil {
				ms = &memberSet{members: map[string]struct{}{connID: {}}}
				r.rooms[roomID] = ms
				r.mu.Unlock()
				return
			}
			r.mu.Unlock()
		}

		ms.mu.Lock()
		if ms.dead {
			ms.mu.Unlock()
			continue
		}
		ms.members[connID] = struct{}{}
		ms.mu.Unlock()
		return
	}
}

// Leave removes the connection from the room. The last member leaving deletes
// the room entry. Leaving a room not joined is a no-op.
func (r *Rooms) Leave(roomID int64, connID string) {
	r.mu.RLock()
	ms := r.rooms[roomID]
	r.mu.RUnlock()
	if ms == nil {
		return
	}

	ms.mu.Lock()
	delete(ms.members, connID)
	empty := len(ms.members) == 0
	ms.mu.Unlock()

	if empty {
		r.reap(roomID)
	}
}

// Members returns a snapshot of the room's member connection IDs, or nil if
// the room does not exist.
func (r *Rooms) Members(roomID int64) []string {
	r.mu.RLock()
	ms := r.rooms[roomID]
	r.mu.RUnlock()
	if ms == nil {
		return nil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(ms.members) == 0 {
		return nil
	}
	out := make([]string, 0, len(ms.members))
	for id := range ms.members {
		out = append(out, id)
	}
	return out
}

// RemoveConnFromAllRooms purges the connection from every room it is a member
// of, reaping rooms left empty. Used at disconnect.
func (r *Rooms) RemoveConnFromAllRooms(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID, ms := range r.rooms {
		ms.mu.Lock()
		delete(ms.members, connID)
		if len(ms.members) == 0 {
			ms.dead = true
			delete(r.rooms, roomID)
		}
		ms.mu.Unlock()
	}
}

// Count reports the number of rooms with at least one member.
func (r *Rooms) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Rooms) reap(roomID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms := r.rooms[roomID]
	if ms == nil {
		return
	}
	ms.mu.Lock()
	if len(ms.members) == 0 {
		ms.dead = true
		delete(r.rooms, roomID)
	}
	ms.mu.Unlock()
}
