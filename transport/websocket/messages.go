package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bartgame/multiplayer-server/game/room"
	"github.com/bartgame/multiplayer-server/game/service"
)

// Inbound message types.
const (
	TypeCreateServer = "create_server"
	TypeJoinServer   = "join_server"
	TypeUpdatePlayer = "update_player"
	TypeLeaveServer  = "leave_server"
)

// Outbound message types.
const (
	TypeJoinedServer  = "joined_server"
	TypeJoinFailed    = "join_failed"
	TypeServerState   = "server_state"
	TypeServerList    = "server_list"
	TypeServerClosing = "server_closing"
)

// ErrMalformedMessage marks an inbound frame that does not parse or carries
// no recognized type. Malformed messages are logged and dropped; they never
// close the connection.
var ErrMalformedMessage = errors.New("malformed message")

// InboundMessage is the tagged union of everything a client may send.
type InboundMessage struct {
	Type       string          `json:"type"`
	ServerCode string          `json:"server_code,omitempty"`
	Name       string          `json:"name,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// DecodeInbound parses a raw frame into an InboundMessage, rejecting unknown
// or missing type tags.
func DecodeInbound(data []byte) (*InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.Type {
	case TypeCreateServer, TypeJoinServer, TypeUpdatePlayer, TypeLeaveServer:
		return &msg, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, msg.Type)
}

// PlayerPatch decodes the payload of an update_player message.
func (m *InboundMessage) PlayerPatch() (room.PlayerPatch, error) {
	var patch room.PlayerPatch
	if len(m.Payload) == 0 {
		return patch, fmt.Errorf("%w: update_player without payload", ErrMalformedMessage)
	}
	if err := json.Unmarshal(m.Payload, &patch); err != nil {
		return patch, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return patch, nil
}

// JoinedServerMessage confirms a successful create or join.
type JoinedServerMessage struct {
	Type       string `json:"type"`
	ServerKey  string `json:"server_key"`
	ServerName string `json:"servername"`
	PlayerID   string `json:"player_id"`
}

// JoinFailedMessage reports a rejected create or join to its originator.
type JoinFailedMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ServerStateMessage is the room snapshot broadcast to every member after a
// membership or state change.
type ServerStateMessage struct {
	Type        string                      `json:"type"`
	ServerName  string                      `json:"servername"`
	PlayerCount int                         `json:"player_count"`
	Players     map[string]room.PlayerState `json:"players"`
}

// ServerListMessage is the directory broadcast sent to all connections in
// discovery deployments.
type ServerListMessage struct {
	Type  string             `json:"type"`
	Rooms []service.RoomInfo `json:"rooms"`
}

// ServerClosingMessage is the terminal notice sent to members of a room the
// server is about to release.
type ServerClosingMessage struct {
	Type      string `json:"type"`
	ServerKey string `json:"server_key"`
}

// NewJoinedServer builds the confirmation for a join result.
func NewJoinedServer(result *service.JoinResult) JoinedServerMessage {
	return JoinedServerMessage{
		Type:       TypeJoinedServer,
		ServerKey:  result.Key,
		ServerName: result.DisplayName,
		PlayerID:   result.PlayerID,
	}
}

// NewServerState builds the broadcast message for a room snapshot.
func NewServerState(snapshot *service.RoomSnapshot) ServerStateMessage {
	return ServerStateMessage{
		Type:        TypeServerState,
		ServerName:  snapshot.DisplayName,
		PlayerCount: snapshot.PlayerCount,
		Players:     snapshot.Players,
	}
}

// NewServerList builds the broadcast message for a room directory.
func NewServerList(list *service.DirectoryList) ServerListMessage {
	return ServerListMessage{
		Type:  TypeServerList,
		Rooms: list.Rooms,
	}
}
