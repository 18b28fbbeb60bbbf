// Package mcp provides a Model Context Protocol surface for the Bart
// Multiplayer Server.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Admin and inspection tools over the relay
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - list_rooms: list all currently-existing rooms
//   - room_state: get the full snapshot of one room
//   - server_stats: process-wide room/player counts and active policy
//   - close_room: close a room after notifying its members
//
// The surface is admin/inspection only; players join and play over the
// WebSocket transport, never over MCP.
//
// Architecture:
//
// The MCP server is a thin client that proxies every tool call to the REST
// API, so MCP and REST observe exactly the same state and the relay has a
// single mutation path per operation.
package mcp
