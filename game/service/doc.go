// Package service provides the business logic layer for the Bart Multiplayer
// Server.
//
// The service package implements:
//   - Room membership control (create, join, leave, disconnect)
//   - Capacity admission checks
//   - Partial player-state updates via the room merge
//   - Snapshot and directory rendering for broadcast
//
// Core Interfaces:
//
// RelayService is the main service interface providing high-level relay
// operations to every transport (WebSocket, REST, MCP).
//
// Architecture:
//
// The service layer sits between the transport layer and the room registry.
// It owns the per-connection membership state machine: a player id is
// Unattached until a successful create/join makes it Attached to exactly one
// room, and a leave or disconnect makes it Unattached again. The player id
// itself never changes across these transitions.
//
// Concurrency:
//
// Every operation that reads or mutates room membership runs under one
// service-wide mutex, so two operations on the same room can never interleave
// partially regardless of which transport they arrived on. Transports may
// therefore call into the service from any goroutine.
//
// Error Semantics:
//
// Join failures (ErrRoomFull, room.ErrRoomNotFound, ErrAlreadyInRoom,
// ErrCreateNotAllowed) are reported to the originating caller and leave the
// registry untouched. ErrNotInRoom marks the expected race between a late
// update (or leave) and a disconnect; transports drop it silently. No service
// error terminates a connection or corrupts a room.
package service
