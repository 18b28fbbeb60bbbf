package room

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
)

var ErrRoomNotFound = errors.New("room not found")

// Defaults carries the creation parameters GetOrCreate uses when the key is
// not present yet.
type Defaults struct {
	DisplayName string
	Capacity    int
}

// Registry owns the mapping from room key to room state. It is process-wide
// mutable state: empty at startup, torn down only by process exit.
type Registry struct {
	rooms map[string]*Room
	mu    sync.RWMutex
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// NormalizeKey folds a caller-supplied room code into its canonical form.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// GetOrCreate returns the existing room for key, or atomically constructs,
// inserts, and returns a new empty room built from defaults.
func (r *Registry) GetOrCreate(key string, defaults Defaults) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.rooms[key]; ok {
		return existing
	}

	displayName := defaults.DisplayName
	if displayName == "" {
		displayName = key
	}
	capacity := defaults.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	created := &Room{
		Key:         key,
		DisplayName: displayName,
		Capacity:    capacity,
		Players:     make(map[string]*PlayerState),
	}
	r.rooms[key] = created
	return created
}

// Get is a pure lookup with no side effects.
func (r *Registry) Get(key string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[key]
	return room, ok
}

// RemoveIfEmpty removes the room if and only if it has no players at the time
// of the call, and reports whether it was removed. Callers invoke this
// immediately after any operation that could have emptied the room.
func (r *Registry) RemoveIfEmpty(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[key]
	if !ok || !room.IsEmpty() {
		return false
	}
	delete(r.rooms, key)
	return true
}

// Remove drops a room regardless of membership. Used by the admin close path
// after members have been notified.
func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[key]; !ok {
		return false
	}
	delete(r.rooms, key)
	return true
}

// List returns all currently-existing rooms.
func (r *Registry) List() []*Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		result = append(result, room)
	}
	return result
}

// Count returns the number of currently-existing rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// GenerateKey returns a fresh upper-case hex key of the given length that
// does not collide with any currently-existing room. Odd lengths round up to
// the next full byte before truncation.
func (r *Registry) GenerateKey(length int) string {
	if length <= 0 {
		length = 4
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for {
		buf := make([]byte, (length+1)/2)
		rand.Read(buf)
		key := strings.ToUpper(hex.EncodeToString(buf)[:length])
		if _, taken := r.rooms[key]; !taken {
			return key
		}
	}
}
