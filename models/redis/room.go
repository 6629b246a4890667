package redis

import "time"

type RoomState string

const (
	RoomStateLobby   RoomState = "lobby"
	RoomStateStarted RoomState = "started"
)

// RoomPlayer is one member of a private room, ordered by join time.
type RoomPlayer struct {
	UID      string    `json:"uid"`
	Nickname string    `json:"nickname,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// Room is a private-session lobby joined by a 6-character code. The host
// starts either a duel (first two players) or a multiplayer game from it.
type Room struct {
	ID          string       `json:"id"`
	Code        string       `json:"code"`
	HostUID     string       `json:"host_uid"`
	CreatedAt   time.Time    `json:"created_at"`
	State       RoomState    `json:"state"`
	Players     []RoomPlayer `json:"players"`
	DuelMatchID string       `json:"duel_match_id,omitempty"`
	GameID      string       `json:"game_id,omitempty"`
}

// HasPlayer reports whether uid is already a member of the room.
func (r *Room) HasPlayer(uid string) bool {
	for _, p := range r.Players {
		if p.UID == uid {
			return true
		}
	}
	return false
}
