// Package api provides the HTTP surface of the Bart Multiplayer Server.
//
// The api package implements:
//   - Plain-text liveness banner and JSON health check
//   - Room directory and per-room snapshot endpoints
//   - Admin close of a room (members get a terminal notice first)
//   - Process-wide relay statistics
//   - WebSocket upgrade handling
//
// Endpoints:
//
// Health:
//   - GET /            - liveness banner (plain text)
//   - GET /api/health  - liveness indicator (JSON)
//
// Rooms:
//   - GET    /api/rooms        - directory of all current rooms
//   - GET    /api/rooms/{key}  - snapshot of one room
//   - DELETE /api/rooms/{key}  - close a room (admin)
//
// Other:
//   - GET /api/stats   - room/player counts and active policy
//   - GET /api/configs - available deployment configurations
//   - GET /ws          - WebSocket upgrade
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "error": "error message"
//	}
package api
