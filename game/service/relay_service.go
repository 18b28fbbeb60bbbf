package service

import (
	"context"
	"errors"

	"github.com/bartgame/multiplayer-server/game/config"
	"github.com/bartgame/multiplayer-server/game/room"
)

var (
	// ErrRoomFull rejects a join against a room already at capacity.
	ErrRoomFull = errors.New("room full")

	// ErrAlreadyInRoom rejects a create/join from a player that is still
	// attached to a room. The player must leave first; joins never move a
	// player between rooms implicitly.
	ErrAlreadyInRoom = errors.New("already in a room")

	// ErrNotInRoom marks an update or leave from an unattached player. This
	// is an expected race with disconnects, not a client error, and callers
	// drop it silently.
	ErrNotInRoom = errors.New("not in a room")

	// ErrCreateNotAllowed rejects create_server under the join-by-code
	// policy, where rooms only come into existence through join_server.
	ErrCreateNotAllowed = errors.New("create not allowed under this policy")
)

// RelayService defines all relay operations exposed to transports.
type RelayService interface {
	// Membership
	CreateRoom(ctx context.Context, playerID, name string) (*JoinResult, error)
	JoinRoom(ctx context.Context, playerID, key, name string) (*JoinResult, error)
	LeaveRoom(ctx context.Context, playerID string) (*LeaveResult, error)

	// State
	UpdatePlayer(ctx context.Context, playerID string, patch room.PlayerPatch) (*RoomSnapshot, error)

	// Rendering
	RoomSnapshot(ctx context.Context, key string) (*RoomSnapshot, error)
	Directory(ctx context.Context) (*DirectoryList, error)
	Stats(ctx context.Context) (*Stats, error)

	// Administration
	CloseRoom(ctx context.Context, key string) (*CloseResult, error)

	// Deployment returns the active deployment policy.
	Deployment() *config.Deployment
}

// FailureReason maps a join/create error to the wire reason carried by a
// join_failed message. It returns "" for errors that are not join failures.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrRoomFull):
		return "RoomFull"
	case errors.Is(err, room.ErrRoomNotFound):
		return "RoomNotFound"
	case errors.Is(err, ErrAlreadyInRoom):
		return "AlreadyInRoom"
	case errors.Is(err, ErrCreateNotAllowed):
		return "CreateNotAllowed"
	}
	return ""
}
