// Package room contains the core domain model for the Bart Multiplayer Server.
//
// The room package implements:
//   - Room and PlayerState records with their wire JSON shapes
//   - Shallow field-level merging of partial player updates
//   - The Registry owning every live Room for the process lifetime
//
// Ownership:
//
// The Registry exclusively owns all Room and PlayerState values. Transports
// hold only the (playerID, roomKey) pair needed to look them up, so a room
// and its players are released as soon as the registry drops the room.
//
// Lifecycle:
//
// Rooms are created lazily by the first join (or an explicit create) and
// removed eagerly when the last player leaves. The registry is empty at
// process start and is only torn down by process exit; an empty room never
// survives the operation that emptied it.
//
// Concurrency:
//
// The Registry guards its key-to-room map with a RWMutex. The contents of an
// individual Room (its player map) are mutated only by the service layer,
// which serializes all membership mutations, so Room itself carries no lock.
package room
