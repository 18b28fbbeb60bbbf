// Package websocket provides the WebSocket transport for the Bart Multiplayer
// Server.
//
// The websocket package implements:
//   - Real-time bidirectional communication
//   - Per-connection player identity assignment
//   - Tagged-union message decoding and routing to the relay service
//   - Room-scoped snapshot fan-out and global directory fan-out
//   - Connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each connection is handled by dedicated read/write
// goroutines, but every application message is forwarded to the hub's single
// Run loop and processed there to completion before the next one starts.
// That single-writer discipline is what makes each join/leave/update atomic
// with respect to all others.
//
// Message Protocol:
//
// Messages are JSON-encoded and discriminated by a "type" field:
//   - Incoming: {"type":"join_server","server_code":"ABCD","name":"Ana"}
//     {"type":"update_player","payload":{"pos":[3,4],"score":5}}
//   - Outgoing: joined_server, join_failed, server_state, server_list,
//     server_closing
//
// Anything without a recognized type, or with a payload that does not parse,
// is logged and dropped; the connection stays open.
//
// Connection Lifecycle:
//
// 1. Client connects; a player id is allocated before any message is read
// 2. Connection registered with hub
// 3. Client creates or joins a room, reports state, receives snapshots
// 4. Disconnection triggers the leave path and room cleanup
package websocket
