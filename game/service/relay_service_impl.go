package service

import (
	"context"
	"sort"
	"sync"

	"github.com/bartgame/multiplayer-server/game/config"
	"github.com/bartgame/multiplayer-server/game/identity"
	"github.com/bartgame/multiplayer-server/game/room"
)

// relayService implements RelayService on top of the room registry.
type relayService struct {
	registry   *room.Registry
	deployment *config.Deployment

	// attachments maps player id to room key; absence means Unattached.
	attachments map[string]string

	// mu serializes every membership read and mutation so per-room
	// operations never interleave partially across transports.
	mu sync.Mutex
}

// NewRelayService creates the relay service for one deployment.
func NewRelayService(registry *room.Registry, deployment *config.Deployment) RelayService {
	return &relayService{
		registry:    registry,
		deployment:  deployment,
		attachments: make(map[string]string),
	}
}

// Deployment returns the active deployment policy.
func (s *relayService) Deployment() *config.Deployment {
	return s.deployment
}

// CreateRoom mints a server-generated room key and joins the creating player
// to the fresh room. Only valid under the join-by-id policy.
func (s *relayService) CreateRoom(ctx context.Context, playerID, name string) (*JoinResult, error) {
	if s.deployment.JoinPolicy != config.JoinByID {
		return nil, ErrCreateNotAllowed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, attached := s.attachments[playerID]; attached {
		return nil, ErrAlreadyInRoom
	}

	key := s.registry.GenerateKey(s.deployment.KeyLength)
	return s.attach(playerID, key, name, true)
}

// JoinRoom attaches a player to the room for key. Under the join-by-code
// policy the room is created implicitly; under join-by-id it must already
// exist.
func (s *relayService) JoinRoom(ctx context.Context, playerID, key, name string) (*JoinResult, error) {
	key = room.NormalizeKey(key)
	if key == "" {
		return nil, room.ErrRoomNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, attached := s.attachments[playerID]; attached {
		return nil, ErrAlreadyInRoom
	}

	return s.attach(playerID, key, name, s.deployment.JoinPolicy == config.JoinByCode)
}

// attach performs the shared admission path: resolve (or create) the room,
// enforce capacity, insert the player record, and record the attachment.
// Callers hold s.mu.
func (s *relayService) attach(playerID, key, name string, createIfAbsent bool) (*JoinResult, error) {
	var rm *room.Room
	if createIfAbsent {
		rm = s.registry.GetOrCreate(key, room.Defaults{
			DisplayName: key,
			Capacity:    s.deployment.MaxPlayers,
		})
	} else {
		var ok bool
		rm, ok = s.registry.Get(key)
		if !ok {
			return nil, room.ErrRoomNotFound
		}
	}

	if rm.IsFull() {
		return nil, ErrRoomFull
	}

	if name == "" {
		name = identity.DefaultName(playerID)
	}
	rm.Players[playerID] = room.NewPlayerState(playerID, name)
	s.attachments[playerID] = key

	return &JoinResult{
		Key:         rm.Key,
		DisplayName: rm.DisplayName,
		PlayerID:    playerID,
		Snapshot:    renderSnapshot(rm),
		Directory:   s.directoryIfDiscoveryLocked(),
	}, nil
}

// LeaveRoom detaches a player from its room, removing the room when the
// player was its last member.
func (s *relayService) LeaveRoom(ctx context.Context, playerID string) (*LeaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, attached := s.attachments[playerID]
	if !attached {
		return nil, ErrNotInRoom
	}
	delete(s.attachments, playerID)

	result := &LeaveResult{Key: key}
	if rm, ok := s.registry.Get(key); ok {
		delete(rm.Players, playerID)
		if !s.registry.RemoveIfEmpty(key) {
			result.Snapshot = renderSnapshot(rm)
		}
	}
	result.Directory = s.directoryIfDiscoveryLocked()
	return result, nil
}

// UpdatePlayer merges a partial state patch into the player's record and
// returns the resulting room snapshot.
func (s *relayService) UpdatePlayer(ctx context.Context, playerID string, patch room.PlayerPatch) (*RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, attached := s.attachments[playerID]
	if !attached {
		return nil, ErrNotInRoom
	}

	rm, ok := s.registry.Get(key)
	if !ok {
		// Stale attachment; treat like the unattached race.
		delete(s.attachments, playerID)
		return nil, ErrNotInRoom
	}

	existing, ok := rm.Players[playerID]
	if !ok {
		return nil, ErrNotInRoom
	}

	merged := room.Merge(*existing, patch)
	rm.Players[playerID] = &merged

	return renderSnapshot(rm), nil
}

// RoomSnapshot renders the current state of one room.
func (s *relayService) RoomSnapshot(ctx context.Context, key string) (*RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.registry.Get(room.NormalizeKey(key))
	if !ok {
		return nil, room.ErrRoomNotFound
	}
	return renderSnapshot(rm), nil
}

// Directory renders the list of all currently-existing rooms.
func (s *relayService) Directory(ctx context.Context) (*DirectoryList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderDirectoryLocked(), nil
}

// Stats summarizes the process-wide relay state.
func (s *relayService) Stats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &Stats{
		RoomCount:   s.registry.Count(),
		PlayerCount: len(s.attachments),
		Deployment:  s.deployment.Name,
		JoinPolicy:  s.deployment.JoinPolicy,
		MaxPlayers:  s.deployment.MaxPlayers,
	}, nil
}

// CloseRoom detaches every member of a room and removes it, returning the
// detached player ids so the transport can deliver the terminal notice.
func (s *relayService) CloseRoom(ctx context.Context, key string) (*CloseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = room.NormalizeKey(key)
	rm, ok := s.registry.Get(key)
	if !ok {
		return nil, room.ErrRoomNotFound
	}

	result := &CloseResult{Key: key}
	for playerID := range rm.Players {
		result.PlayerIDs = append(result.PlayerIDs, playerID)
		delete(s.attachments, playerID)
	}
	sort.Strings(result.PlayerIDs)

	s.registry.Remove(key)
	result.Directory = s.directoryIfDiscoveryLocked()
	return result, nil
}

// directoryIfDiscoveryLocked renders the directory for broadcast, or nil when
// the deployment does not expose a discovery list. Callers hold s.mu.
func (s *relayService) directoryIfDiscoveryLocked() *DirectoryList {
	if !s.deployment.Discovery {
		return nil
	}
	return s.renderDirectoryLocked()
}

// renderSnapshot copies a room's membership into a broadcast-stable value.
func renderSnapshot(rm *room.Room) *RoomSnapshot {
	players := make(map[string]room.PlayerState, len(rm.Players))
	for id, p := range rm.Players {
		players[id] = *p
	}
	return &RoomSnapshot{
		Key:         rm.Key,
		DisplayName: rm.DisplayName,
		PlayerCount: len(players),
		Players:     players,
	}
}

// renderDirectoryLocked renders the room directory. Callers hold s.mu.
func (s *relayService) renderDirectoryLocked() *DirectoryList {
	rooms := s.registry.List()
	list := &DirectoryList{Rooms: make([]RoomInfo, 0, len(rooms))}
	for _, rm := range rooms {
		list.Rooms = append(list.Rooms, RoomInfo{
			Key:         rm.Key,
			DisplayName: rm.DisplayName,
			PlayerCount: rm.PlayerCount(),
			MaxPlayers:  rm.Capacity,
		})
	}
	sort.Slice(list.Rooms, func(i, j int) bool {
		return list.Rooms[i].Key < list.Rooms[j].Key
	})
	return list
}
