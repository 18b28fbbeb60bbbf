package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bartgame/multiplayer-server/game/config"
	"github.com/bartgame/multiplayer-server/game/room"
)

func codeService(maxPlayers int) RelayService {
	return NewRelayService(room.NewRegistry(), &config.Deployment{
		Name:       "test-code",
		MaxPlayers: maxPlayers,
		JoinPolicy: config.JoinByCode,
	})
}

func idService(discovery bool) RelayService {
	return NewRelayService(room.NewRegistry(), &config.Deployment{
		Name:       "test-id",
		MaxPlayers: 4,
		JoinPolicy: config.JoinByID,
		Discovery:  discovery,
		KeyLength:  5,
	})
}

func TestJoinRoom_CodePolicy(t *testing.T) {
	ctx := context.Background()
	relay := codeService(4)

	t.Run("first join creates the room with exactly one player", func(t *testing.T) {
		result, err := relay.JoinRoom(ctx, "p1", "abcd", "Ana")
		if err != nil {
			t.Fatalf("Failed to join: %v", err)
		}

		if result.Key != "ABCD" {
			t.Errorf("Expected normalized key ABCD, got %q", result.Key)
		}
		if result.PlayerID != "p1" {
			t.Errorf("Expected player id p1, got %q", result.PlayerID)
		}
		if result.Snapshot.PlayerCount != 1 {
			t.Errorf("Expected 1 player, got %d", result.Snapshot.PlayerCount)
		}
		if result.Snapshot.Players["p1"].Name != "Ana" {
			t.Errorf("Expected name Ana, got %q", result.Snapshot.Players["p1"].Name)
		}
		if result.Directory != nil {
			t.Error("Code policy must not produce a discovery directory")
		}
	})

	t.Run("second join shares the room", func(t *testing.T) {
		result, err := relay.JoinRoom(ctx, "p2", "ABCD", "")
		if err != nil {
			t.Fatalf("Failed to join: %v", err)
		}
		if result.Snapshot.PlayerCount != 2 {
			t.Errorf("Expected 2 players, got %d", result.Snapshot.PlayerCount)
		}
		if result.Snapshot.Players["p2"].Name == "" {
			t.Error("Expected a generated display name for an anonymous join")
		}
	})

	t.Run("joining twice is rejected", func(t *testing.T) {
		_, err := relay.JoinRoom(ctx, "p1", "EFGH", "Ana")
		if !errors.Is(err, ErrAlreadyInRoom) {
			t.Errorf("Expected ErrAlreadyInRoom, got %v", err)
		}
		if _, err := relay.RoomSnapshot(ctx, "EFGH"); !errors.Is(err, room.ErrRoomNotFound) {
			t.Error("Rejected join must not have created a room")
		}
	})

	t.Run("empty key is not joinable", func(t *testing.T) {
		if _, err := relay.JoinRoom(ctx, "p3", "   ", ""); !errors.Is(err, room.ErrRoomNotFound) {
			t.Errorf("Expected ErrRoomNotFound, got %v", err)
		}
	})

	t.Run("create_server is rejected under code policy", func(t *testing.T) {
		if _, err := relay.CreateRoom(ctx, "p3", ""); !errors.Is(err, ErrCreateNotAllowed) {
			t.Errorf("Expected ErrCreateNotAllowed, got %v", err)
		}
	})
}

func TestJoinRoom_RoomFull(t *testing.T) {
	ctx := context.Background()
	relay := codeService(2)

	for _, id := range []string{"p1", "p2"} {
		if _, err := relay.JoinRoom(ctx, id, "FULL", ""); err != nil {
			t.Fatalf("Failed to fill room: %v", err)
		}
	}

	_, err := relay.JoinRoom(ctx, "p3", "FULL", "")
	if !errors.Is(err, ErrRoomFull) {
		t.Fatalf("Expected ErrRoomFull, got %v", err)
	}

	// Membership is unchanged by the rejected join.
	snapshot, err := relay.RoomSnapshot(ctx, "FULL")
	if err != nil {
		t.Fatalf("Failed to snapshot: %v", err)
	}
	if snapshot.PlayerCount != 2 {
		t.Errorf("Expected 2 players after rejected join, got %d", snapshot.PlayerCount)
	}
	if _, ok := snapshot.Players["p3"]; ok {
		t.Error("Rejected player must not appear in the room")
	}

	// The rejected player is still unattached and can join elsewhere.
	if _, err := relay.JoinRoom(ctx, "p3", "OTHER", ""); err != nil {
		t.Errorf("Rejected player should be able to join another room: %v", err)
	}
}

func TestJoinRoom_IDPolicy(t *testing.T) {
	ctx := context.Background()
	relay := idService(false)

	t.Run("join without create fails", func(t *testing.T) {
		if _, err := relay.JoinRoom(ctx, "p1", "ABCDE", ""); !errors.Is(err, room.ErrRoomNotFound) {
			t.Errorf("Expected ErrRoomNotFound, got %v", err)
		}
	})

	t.Run("create mints a key and joins the creator", func(t *testing.T) {
		result, err := relay.CreateRoom(ctx, "p1", "Ana")
		if err != nil {
			t.Fatalf("Failed to create: %v", err)
		}
		if len(result.Key) != 5 {
			t.Errorf("Expected 5-character generated key, got %q", result.Key)
		}
		if result.Snapshot.PlayerCount != 1 {
			t.Errorf("Expected 1 player, got %d", result.Snapshot.PlayerCount)
		}

		// The generated key is now joinable.
		joined, err := relay.JoinRoom(ctx, "p2", result.Key, "")
		if err != nil {
			t.Fatalf("Failed to join generated room: %v", err)
		}
		if joined.Snapshot.PlayerCount != 2 {
			t.Errorf("Expected 2 players, got %d", joined.Snapshot.PlayerCount)
		}
	})

	t.Run("creating while attached is rejected", func(t *testing.T) {
		if _, err := relay.CreateRoom(ctx, "p1", ""); !errors.Is(err, ErrAlreadyInRoom) {
			t.Errorf("Expected ErrAlreadyInRoom, got %v", err)
		}
	})
}

func TestJoinRoom_Discovery(t *testing.T) {
	ctx := context.Background()
	relay := idService(true)

	result, err := relay.CreateRoom(ctx, "p1", "")
	if err != nil {
		t.Fatalf("Failed to create: %v", err)
	}
	if result.Directory == nil {
		t.Fatal("Expected a directory in a discovery deployment")
	}
	if len(result.Directory.Rooms) != 1 {
		t.Fatalf("Expected 1 directory entry, got %d", len(result.Directory.Rooms))
	}

	entry := result.Directory.Rooms[0]
	if entry.Key != result.Key || entry.PlayerCount != 1 || entry.MaxPlayers != 4 {
		t.Errorf("Unexpected directory entry: %+v", entry)
	}

	leave, err := relay.LeaveRoom(ctx, "p1")
	if err != nil {
		t.Fatalf("Failed to leave: %v", err)
	}
	if leave.Directory == nil {
		t.Fatal("Expected a directory after leave")
	}
	// The emptied room is pruned from the list as soon as it is removed.
	if len(leave.Directory.Rooms) != 0 {
		t.Errorf("Expected empty directory, got %d entries", len(leave.Directory.Rooms))
	}
}

func TestUpdatePlayer(t *testing.T) {
	ctx := context.Background()
	relay := codeService(4)

	if _, err := relay.JoinRoom(ctx, "p1", "ABCD", "Ana"); err != nil {
		t.Fatalf("Failed to join: %v", err)
	}

	t.Run("patch overwrites only present fields", func(t *testing.T) {
		pos := room.Position{3, 4}
		snapshot, err := relay.UpdatePlayer(ctx, "p1", room.PlayerPatch{Position: &pos})
		if err != nil {
			t.Fatalf("Failed to update: %v", err)
		}

		p := snapshot.Players["p1"]
		if p.Position != pos {
			t.Errorf("Expected position [3,4], got %v", p.Position)
		}
		if p.Name != "Ana" || p.Score != 0 || p.Rotation != 0 || p.Launched {
			t.Errorf("Untouched fields changed: %+v", p)
		}
	})

	t.Run("updates accumulate", func(t *testing.T) {
		score := 5
		snapshot, err := relay.UpdatePlayer(ctx, "p1", room.PlayerPatch{Score: &score})
		if err != nil {
			t.Fatalf("Failed to update: %v", err)
		}

		p := snapshot.Players["p1"]
		if p.Score != 5 {
			t.Errorf("Expected score 5, got %d", p.Score)
		}
		if p.Position != (room.Position{3, 4}) {
			t.Errorf("Earlier update lost: %v", p.Position)
		}
	})

	t.Run("update while unattached is the expected race", func(t *testing.T) {
		if _, err := relay.UpdatePlayer(ctx, "ghost", room.PlayerPatch{}); !errors.Is(err, ErrNotInRoom) {
			t.Errorf("Expected ErrNotInRoom, got %v", err)
		}
	})
}

func TestLeaveRoom(t *testing.T) {
	ctx := context.Background()
	relay := codeService(4)

	if _, err := relay.JoinRoom(ctx, "p1", "ABCD", ""); err != nil {
		t.Fatalf("Failed to join: %v", err)
	}
	if _, err := relay.JoinRoom(ctx, "p2", "ABCD", ""); err != nil {
		t.Fatalf("Failed to join: %v", err)
	}

	t.Run("non-last leave keeps the room", func(t *testing.T) {
		result, err := relay.LeaveRoom(ctx, "p1")
		if err != nil {
			t.Fatalf("Failed to leave: %v", err)
		}
		if result.Snapshot == nil {
			t.Fatal("Expected a snapshot while the room survives")
		}
		if result.Snapshot.PlayerCount != 1 {
			t.Errorf("Expected 1 player left, got %d", result.Snapshot.PlayerCount)
		}
		if _, ok := result.Snapshot.Players["p1"]; ok {
			t.Error("Departed player still present in snapshot")
		}
	})

	t.Run("last leave removes the room", func(t *testing.T) {
		result, err := relay.LeaveRoom(ctx, "p2")
		if err != nil {
			t.Fatalf("Failed to leave: %v", err)
		}
		if result.Snapshot != nil {
			t.Error("Expected no snapshot for a removed room")
		}
		if _, err := relay.RoomSnapshot(ctx, "ABCD"); !errors.Is(err, room.ErrRoomNotFound) {
			t.Error("Emptied room must be absent from the registry")
		}
	})

	t.Run("a rejoin gets a fresh room, not the stale one", func(t *testing.T) {
		result, err := relay.JoinRoom(ctx, "p3", "ABCD", "")
		if err != nil {
			t.Fatalf("Failed to rejoin: %v", err)
		}
		if result.Snapshot.PlayerCount != 1 {
			t.Errorf("Expected a fresh room with 1 player, got %d", result.Snapshot.PlayerCount)
		}
		if _, ok := result.Snapshot.Players["p1"]; ok {
			t.Error("Stale player state leaked into the fresh room")
		}
	})

	t.Run("leave while unattached is reported as the race", func(t *testing.T) {
		if _, err := relay.LeaveRoom(ctx, "ghost"); !errors.Is(err, ErrNotInRoom) {
			t.Errorf("Expected ErrNotInRoom, got %v", err)
		}
	})
}

func TestCapacityInvariant(t *testing.T) {
	ctx := context.Background()
	relay := codeService(4)

	check := func() {
		t.Helper()
		snapshot, err := relay.RoomSnapshot(ctx, "CAP")
		if errors.Is(err, room.ErrRoomNotFound) {
			return
		}
		if err != nil {
			t.Fatalf("Failed to snapshot: %v", err)
		}
		if snapshot.PlayerCount > 4 {
			t.Fatalf("Capacity invariant violated: %d players", snapshot.PlayerCount)
		}
	}

	players := []string{"p1", "p2", "p3", "p4", "p5", "p6"}
	for _, id := range players {
		relay.JoinRoom(ctx, id, "CAP", "")
		check()
	}
	relay.LeaveRoom(ctx, "p2")
	check()
	relay.JoinRoom(ctx, "p5", "CAP", "")
	check()
	for _, id := range players {
		relay.LeaveRoom(ctx, id)
		check()
	}
}

func TestPlayerIDStability(t *testing.T) {
	ctx := context.Background()
	relay := codeService(4)

	joined, err := relay.JoinRoom(ctx, "p1", "ABCD", "Ana")
	if err != nil {
		t.Fatalf("Failed to join: %v", err)
	}
	if joined.PlayerID != "p1" {
		t.Fatalf("Join changed the player id: %q", joined.PlayerID)
	}

	score := 7
	snapshot, err := relay.UpdatePlayer(ctx, "p1", room.PlayerPatch{Score: &score})
	if err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
	if snapshot.Players["p1"].ID != "p1" {
		t.Errorf("Update changed the player id: %q", snapshot.Players["p1"].ID)
	}

	result, err := relay.LeaveRoom(ctx, "p1")
	if err != nil {
		t.Fatalf("Failed to leave under the same id: %v", err)
	}
	if result.Key != "ABCD" {
		t.Errorf("Leave resolved the wrong room: %q", result.Key)
	}
}

func TestCloseRoom(t *testing.T) {
	ctx := context.Background()
	relay := codeService(4)

	for _, id := range []string{"p1", "p2"} {
		if _, err := relay.JoinRoom(ctx, id, "DOOMED", ""); err != nil {
			t.Fatalf("Failed to join: %v", err)
		}
	}

	result, err := relay.CloseRoom(ctx, "doomed")
	if err != nil {
		t.Fatalf("Failed to close: %v", err)
	}
	if len(result.PlayerIDs) != 2 {
		t.Fatalf("Expected 2 detached players, got %d", len(result.PlayerIDs))
	}
	if result.PlayerIDs[0] != "p1" || result.PlayerIDs[1] != "p2" {
		t.Errorf("Expected sorted player ids, got %v", result.PlayerIDs)
	}

	if _, err := relay.RoomSnapshot(ctx, "DOOMED"); !errors.Is(err, room.ErrRoomNotFound) {
		t.Error("Closed room must be gone")
	}

	// Detached members are unattached again.
	if _, err := relay.UpdatePlayer(ctx, "p1", room.PlayerPatch{}); !errors.Is(err, ErrNotInRoom) {
		t.Errorf("Expected ErrNotInRoom after close, got %v", err)
	}
	if _, err := relay.JoinRoom(ctx, "p1", "FRESH", ""); err != nil {
		t.Errorf("Detached player should be able to join again: %v", err)
	}

	t.Run("closing an absent room", func(t *testing.T) {
		if _, err := relay.CloseRoom(ctx, "NOPE"); !errors.Is(err, room.ErrRoomNotFound) {
			t.Errorf("Expected ErrRoomNotFound, got %v", err)
		}
	})
}

func TestDirectoryAndStats(t *testing.T) {
	ctx := context.Background()
	relay := codeService(4)

	relay.JoinRoom(ctx, "p1", "BBBB", "")
	relay.JoinRoom(ctx, "p2", "AAAA", "")
	relay.JoinRoom(ctx, "p3", "BBBB", "")

	list, err := relay.Directory(ctx)
	if err != nil {
		t.Fatalf("Failed to render directory: %v", err)
	}
	if len(list.Rooms) != 2 {
		t.Fatalf("Expected 2 rooms, got %d", len(list.Rooms))
	}
	if list.Rooms[0].Key != "AAAA" || list.Rooms[1].Key != "BBBB" {
		t.Errorf("Expected keys sorted, got %v", list.Rooms)
	}
	if list.Rooms[1].PlayerCount != 2 {
		t.Errorf("Expected 2 players in BBBB, got %d", list.Rooms[1].PlayerCount)
	}

	stats, err := relay.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to render stats: %v", err)
	}
	if stats.RoomCount != 2 || stats.PlayerCount != 3 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.JoinPolicy != config.JoinByCode || stats.MaxPlayers != 4 {
		t.Errorf("Unexpected policy stats: %+v", stats)
	}
}

func TestSnapshotIsStable(t *testing.T) {
	ctx := context.Background()
	relay := codeService(4)

	relay.JoinRoom(ctx, "p1", "ABCD", "Ana")
	before, err := relay.RoomSnapshot(ctx, "ABCD")
	if err != nil {
		t.Fatalf("Failed to snapshot: %v", err)
	}

	score := 42
	if _, err := relay.UpdatePlayer(ctx, "p1", room.PlayerPatch{Score: &score}); err != nil {
		t.Fatalf("Failed to update: %v", err)
	}

	if before.Players["p1"].Score != 0 {
		t.Error("Earlier snapshot mutated by a later update")
	}
}

func TestFailureReason(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"room full":      {ErrRoomFull, "RoomFull"},
		"room not found": {room.ErrRoomNotFound, "RoomNotFound"},
		"already":        {ErrAlreadyInRoom, "AlreadyInRoom"},
		"create":         {ErrCreateNotAllowed, "CreateNotAllowed"},
		"not in room":    {ErrNotInRoom, ""},
		"other":          {errors.New("boom"), ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := FailureReason(tc.err); got != tc.want {
				t.Errorf("FailureReason(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}
