// Package rooms tracks which signaling room, if any, each live connection
// has joined. Rooms exist only as values in this map; they are created and
// destroyed implicitly by membership.
package rooms

import "sync"

// Registry is a concurrency-safe connection -> room mapping. It owns
// membership only and never touches transport resources; fan-out is the
// dispatcher's job.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]string // connectionID -> roomID
}

func New() *Registry {
	return &Registry{rooms: make(map[string]string)}
}

// Join puts a connection into a room. When the connection was already in a
// different room, that room is returned so the caller can announce the
// departure; re-joining the same room is a no-op.
func (r *Registry) Join(connID, roomID string) (prevRoom string, switched bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.rooms[connID]
	r.rooms[connID] = roomID
	if ok && prev != roomID {
		return prev, true
	}
	return "", false
}

// Leave removes a connection's membership and returns the room it was in.
// Exactly one caller wins under concurrent disconnect signals for the same
// connection; the rest get ok=false.
func (r *Registry) Leave(connID string) (roomID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok = r.rooms[connID]
	if ok {
		delete(r.rooms, connID)
	}
	return roomID, ok
}

// Room returns the current room of a connection.
func (r *Registry) Room(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.rooms[connID]
	return roomID, ok
}

// Members returns a snapshot of the connections currently in a room.
func (r *Registry) Members(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var members []string
	for connID, room := range r.rooms {
		if room == roomID {
			members = append(members, connID)
		}
	}
	return members
}
