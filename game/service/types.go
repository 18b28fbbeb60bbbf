package service

import (
	"github.com/bartgame/multiplayer-server/game/config"
	"github.com/bartgame/multiplayer-server/game/room"
)

// RoomSnapshot is the rendered, point-in-time view of one room's full
// membership and state. Player entries are value copies, so a snapshot stays
// stable after later mutations of the room.
type RoomSnapshot struct {
	Key         string                      `json:"server_key"`
	DisplayName string                      `json:"servername"`
	PlayerCount int                         `json:"player_count"`
	Players     map[string]room.PlayerState `json:"players"`
}

// RoomInfo is one entry of the room directory.
type RoomInfo struct {
	Key         string `json:"key"`
	DisplayName string `json:"servername"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
}

// DirectoryList is the rendered list of all currently-existing rooms, sorted
// by key for stable output.
type DirectoryList struct {
	Rooms []RoomInfo `json:"rooms"`
}

// JoinResult is returned on a successful create or join.
type JoinResult struct {
	Key         string `json:"server_key"`
	DisplayName string `json:"servername"`
	PlayerID    string `json:"player_id"`

	// Snapshot is the room state after the join, for broadcast to members.
	Snapshot *RoomSnapshot `json:"-"`

	// Directory is non-nil only in discovery deployments.
	Directory *DirectoryList `json:"-"`
}

// LeaveResult is returned on a successful leave or disconnect.
type LeaveResult struct {
	Key string

	// Snapshot is nil when the leave emptied the room and it was removed.
	Snapshot  *RoomSnapshot
	Directory *DirectoryList
}

// CloseResult is returned by the admin close operation.
type CloseResult struct {
	Key string

	// PlayerIDs lists the members that were detached, so transports can
	// deliver the terminal server_closing notice.
	PlayerIDs []string
	Directory *DirectoryList
}

// Stats summarizes the process-wide relay state.
type Stats struct {
	RoomCount   int               `json:"room_count"`
	PlayerCount int               `json:"player_count"`
	Deployment  string            `json:"deployment"`
	JoinPolicy  config.JoinPolicy `json:"join_policy"`
	MaxPlayers  int               `json:"max_players"`
}
