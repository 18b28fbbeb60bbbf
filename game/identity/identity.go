// Package identity issues stable player identifiers for the lifetime of a
// connection. An identifier is allocated exactly once, before any message
// from that connection is processed, and never changes across joins, updates,
// or leaves.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// Allocator issues unique player identifiers. It holds no state beyond its
// randomness source, so a zero Allocator is ready to use.
type Allocator struct{}

// NewAllocator creates a player id allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate returns a fresh identifier, unique among all currently-connected
// players. Collisions with past, now-disconnected players are harmless and
// with UUIDs do not occur in practice.
func (a *Allocator) Allocate() string {
	return uuid.NewString()
}

// DefaultName returns the generated display label used when a player joins
// without supplying a name.
func DefaultName(playerID string) string {
	short := playerID
	if len(short) > 4 {
		short = short[:4]
	}
	return fmt.Sprintf("Player-%s", short)
}
