package redis

import "time"

type MatchState string

const (
	MatchStatePlaying  MatchState = "playing"
	MatchStateFinished MatchState = "finished"
)

// EndCause distinguishes why a match reached the finished state.
type EndCause string

const (
	EndCauseNormal        EndCause = "normal"
	EndCauseTimeout       EndCause = "timeout"
	EndCauseDisconnect    EndCause = "disconnect"
	EndCauseDoubleTimeout EndCause = "double_timeout"
)

const (
	// StartingHP is the health both duel players begin with.
	StartingHP = 6000

	// MaxPlayersPerGame caps free-for-all games.
	MaxPlayersPerGame = 10

	// DefaultMaxRounds is the fixed round count of a multiplayer game.
	DefaultMaxRounds = 5
)

// ObservationItem is one geotagged photo record inside a RoundRecord.
type ObservationItem struct {
	ID       int64   `json:"id"`
	PhotoURL string  `json:"photo"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Species  string  `json:"species"`
}

// Guess is a single player's submission for one round. Synthetic guesses
// produced by the timeout/disconnect supervisor carry the Timeout /
// Disconnected / Eliminated flags and no coordinates.
type Guess struct {
	UID          string    `json:"uid"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	DistanceKm   float64   `json:"distance_km"`
	Points       int       `json:"points"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Timeout      bool      `json:"timeout,omitempty"`
	Disconnected bool      `json:"disconnected,omitempty"`
	Eliminated   bool      `json:"eliminated,omitempty"`
}

// DuelOutcome is the resolved result of one duel round.
type DuelOutcome struct {
	WinnerUID  string             `json:"winner_uid"`
	LoserUID   string             `json:"loser_uid"`
	Damage     int                `json:"damage"`
	Multiplier float64            `json:"multiplier"`
	Round      int                `json:"round"`
	Distances  map[string]float64 `json:"distances"`
	Points     map[string]int     `json:"points"`
}

// RankingEntry is one row of a multiplayer round or final ranking.
type RankingEntry struct {
	UID        string  `json:"uid"`
	Nickname   string  `json:"nickname"`
	Points     int     `json:"points"`
	TotalScore int     `json:"total_score"`
	DistanceKm float64 `json:"distance_km"`
}

// GameOutcome is the resolved result of one multiplayer round.
type GameOutcome struct {
	Round    int            `json:"round"`
	Scores   map[string]int `json:"scores"`
	Rankings []RankingEntry `json:"rankings"`
}

// RoundRecord holds the truth data and guess collection for one round.
// It is written at most once per round number (first-writer-wins); guesses
// are merged in by each player's own submission transaction. Guesses always
// score against Items[0]; Index only selects the photo being displayed.
type RoundRecord struct {
	Items       []ObservationItem `json:"items"`
	Index       int               `json:"index"`
	Guesses     map[string]*Guess `json:"guesses"`
	DuelOutcome *DuelOutcome      `json:"duel_outcome,omitempty"`
	GameOutcome *GameOutcome      `json:"game_outcome,omitempty"`
}

// Resolved reports whether the round already has an outcome. Resolution
// transactions must no-op when this is true.
func (r *RoundRecord) Resolved() bool {
	return r != nil && (r.DuelOutcome != nil || r.GameOutcome != nil)
}

// Truth returns the coordinates every guess of this round scores against.
func (r *RoundRecord) Truth() (lat, lon float64, ok bool) {
	if r == nil || len(r.Items) == 0 {
		return 0, 0, false
	}
	return r.Items[0].Lat, r.Items[0].Lon, true
}

// DuelPlayer is a duel participant's live state inside the match document.
type DuelPlayer struct {
	Nickname string    `json:"nickname"`
	HP       int       `json:"hp"`
	LastSeen time.Time `json:"last_seen"`
}

// DuelMatch is the shared document of a 1v1 duel. The player set is fixed
// at creation, the round counter only moves forward, and the state only
// transitions playing -> finished.
type DuelMatch struct {
	ID             string                  `json:"id"`
	CreatedAt      time.Time               `json:"created_at"`
	State          MatchState              `json:"state"`
	Round          int                     `json:"round"`
	HostUID        string                  `json:"host_uid"`
	Players        map[string]*DuelPlayer  `json:"players"`
	Rounds         map[int]*RoundRecord    `json:"rounds"`
	Matchmaking    bool                    `json:"matchmaking"`
	EndCause       EndCause                `json:"end_cause,omitempty"`
	WinnerUID      string                  `json:"winner_uid,omitempty"`
	StatsProcessed bool                    `json:"stats_processed"`
}

// OpponentOf returns the uid of the other duel participant.
func (m *DuelMatch) OpponentOf(uid string) string {
	for other := range m.Players {
		if other != uid {
			return other
		}
	}
	return ""
}

// CurrentRound returns the round record for the current round number,
// which may be nil while sourcing is still in flight.
func (m *DuelMatch) CurrentRound() *RoundRecord {
	if m.Rounds == nil {
		return nil
	}
	return m.Rounds[m.Round]
}
