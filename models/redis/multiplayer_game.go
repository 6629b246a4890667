package redis

import "time"

// GamePlayer is a free-for-all participant's live state.
type GamePlayer struct {
	Nickname   string    `json:"nickname"`
	TotalScore int       `json:"total_score"`
	LastSeen   time.Time `json:"last_seen"`
	Connected  bool      `json:"connected"`
}

// MultiplayerGame is the shared document of a 2-10 player free-for-all.
// Scoring is additive over a fixed number of rounds, with no eliminations.
type MultiplayerGame struct {
	ID        string                 `json:"id"`
	RoomID    string                 `json:"room_id,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	State     MatchState             `json:"state"`
	Round     int                    `json:"round"`
	MaxRounds int                    `json:"max_rounds"`
	HostUID   string                 `json:"host_uid"`
	Players   map[string]*GamePlayer `json:"players"`
	Rounds    map[int]*RoundRecord   `json:"rounds"`
	WinnerUID string                 `json:"winner_uid,omitempty"`
}

// CurrentRound returns the round record for the current round number.
func (g *MultiplayerGame) CurrentRound() *RoundRecord {
	if g.Rounds == nil {
		return nil
	}
	return g.Rounds[g.Round]
}
