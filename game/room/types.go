package room

// DefaultCapacity is the policy default for rooms whose deployment does not
// override max_players.
const DefaultCapacity = 4

// Position represents a 2D coordinate, encoded on the wire as [x, y].
type Position [2]float64

// PlayerState is one player's reported game state within a room.
type PlayerState struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Position Position `json:"pos"`
	Rotation float64  `json:"rot"`
	Score    int      `json:"score"`
	Launched bool     `json:"launched"`
}

// NewPlayerState creates a player record with default state.
func NewPlayerState(id, name string) *PlayerState {
	return &PlayerState{
		ID:       id,
		Name:     name,
		Position: Position{0, 0},
	}
}

// PlayerPatch is a partial player update. Fields left nil are not touched by
// Merge; unknown JSON fields are dropped during decoding and never reach the
// merge.
type PlayerPatch struct {
	Name     *string   `json:"name,omitempty"`
	Position *Position `json:"pos,omitempty"`
	Rotation *float64  `json:"rot,omitempty"`
	Score    *int      `json:"score,omitempty"`
	Launched *bool     `json:"launched,omitempty"`
}

// IsZero reports whether the patch carries no fields at all.
func (p PlayerPatch) IsZero() bool {
	return p.Name == nil && p.Position == nil && p.Rotation == nil &&
		p.Score == nil && p.Launched == nil
}

// Merge applies a partial update to an existing player state and returns the
// result. The merge is shallow: each present field overwrites the prior value
// wholesale (a new position replaces both coordinates), absent fields are
// left untouched. It never fails and never changes the player's ID.
func Merge(existing PlayerState, patch PlayerPatch) PlayerState {
	merged := existing
	if patch.Name != nil {
		merged.Name = *patch.Name
	}
	if patch.Position != nil {
		merged.Position = *patch.Position
	}
	if patch.Rotation != nil {
		merged.Rotation = *patch.Rotation
	}
	if patch.Score != nil {
		merged.Score = *patch.Score
	}
	if patch.Launched != nil {
		merged.Launched = *patch.Launched
	}
	return merged
}

// Room is an ephemeral named group of up to Capacity players sharing one
// state broadcast channel. Capacity is fixed at creation; rooms are never
// renamed or resized.
type Room struct {
	Key         string
	DisplayName string
	Capacity    int
	Players     map[string]*PlayerState
}

// PlayerCount returns the number of players currently in the room.
func (r *Room) PlayerCount() int {
	return len(r.Players)
}

// IsFull reports whether the room is at capacity.
func (r *Room) IsFull() bool {
	return len(r.Players) >= r.Capacity
}

// IsEmpty reports whether the room has no players.
func (r *Room) IsEmpty() bool {
	return len(r.Players) == 0
}
