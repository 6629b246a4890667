package match

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	redis_models "github.com/pedrocchii/birdersplace/models/redis"
	"github.com/pedrocchii/birdersplace/services/scoring"
)

// NewMultiplayerGame builds a free-for-all document for 2-10 players
// with zeroed cumulative scores.
func NewMultiplayerGame(roomID, hostUID string, players []redis_models.RoomPlayer) (*redis_models.MultiplayerGame, error) {
	if len(players) < 2 {
		return nil, fmt.Errorf("at least 2 players are required, got %d", len(players))
	}
	if len(players) > redis_models.MaxPlayersPerGame {
		return nil, fmt.Errorf("maximum %d players, got %d", redis_models.MaxPlayersPerGame, len(players))
	}

	now := time.Now()
	playersMap := make(map[string]*redis_models.GamePlayer, len(players))
	for _, p := range players {
		playersMap[p.UID] = &redis_models.GamePlayer{
			Nickname:  p.Nickname,
			LastSeen:  now,
			Connected: true,
		}
	}

	return &redis_models.MultiplayerGame{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		CreatedAt: now,
		State:     redis_models.MatchStatePlaying,
		Round:     1,
		MaxRounds: redis_models.DefaultMaxRounds,
		HostUID:   hostUID,
		Players:   playersMap,
		Rounds:    map[int]*redis_models.RoundRecord{},
	}, nil
}

// SetGameRoundDataIfAbsent is the first-writer-wins round install for
// multiplayer games.
func SetGameRoundDataIfAbsent(g *redis_models.MultiplayerGame, round int, items []redis_models.ObservationItem) (bool, error) {
	if g.State != redis_models.MatchStatePlaying {
		return false, nil
	}
	if g.Rounds == nil {
		g.Rounds = map[int]*redis_models.RoundRecord{}
	}
	if existing := g.Rounds[round]; existing != nil && len(existing.Items) > 0 {
		return false, nil
	}
	g.Rounds[round] = &redis_models.RoundRecord{
		Items:   items,
		Index:   0,
		Guesses: map[string]*redis_models.Guess{},
	}
	return true, nil
}

// ApplyGameGuess merges one player's guess and resolves the round once
// every expected player has one (real or synthetic).
func ApplyGameGuess(g *redis_models.MultiplayerGame, uid string, lat, lng float64, now time.Time) (bool, error) {
	if g.State != redis_models.MatchStatePlaying {
		return false, nil
	}
	player := g.Players[uid]
	if player == nil {
		return false, fmt.Errorf("player %s is not part of game %s", uid, g.ID)
	}

	record := g.CurrentRound()
	if record == nil || len(record.Items) == 0 {
		return false, fmt.Errorf("round %d of game %s has no data yet", g.Round, g.ID)
	}
	if record.Resolved() {
		return false, nil
	}
	if record.Guesses == nil {
		record.Guesses = map[string]*redis_models.Guess{}
	}
	if _, already := record.Guesses[uid]; already {
		return false, nil
	}

	truthLat, truthLon, _ := record.Truth()
	distance := scoring.HaversineDistance(truthLat, truthLon, lat, lng)
	record.Guesses[uid] = &redis_models.Guess{
		UID:         uid,
		Lat:         lat,
		Lng:         lng,
		DistanceKm:  distance,
		Points:      scoring.DistanceToPoints(distance),
		SubmittedAt: now,
	}
	player.LastSeen = now

	if len(record.Guesses) >= len(g.Players) {
		resolveGameRound(g, record)
	}
	return true, nil
}

// ApplyGameTimeout records a synthetic zero-point guess for a player who
// failed to act before the round deadline. Multiplayer has no
// eliminations; the player simply scores nothing this round.
func ApplyGameTimeout(g *redis_models.MultiplayerGame, uid string, round int, disconnected bool, now time.Time) (bool, error) {
	if g.State != redis_models.MatchStatePlaying || g.Round != round {
		return false, nil
	}
	player := g.Players[uid]
	if player == nil {
		return false, fmt.Errorf("player %s is not part of game %s", uid, g.ID)
	}

	record := g.CurrentRound()
	if record == nil {
		return false, nil
	}
	if record.Resolved() {
		return false, nil
	}
	if record.Guesses == nil {
		record.Guesses = map[string]*redis_models.Guess{}
	}
	if _, guessed := record.Guesses[uid]; guessed {
		return false, nil
	}

	record.Guesses[uid] = &redis_models.Guess{
		UID:          uid,
		SubmittedAt:  now,
		Timeout:      !disconnected,
		Disconnected: disconnected,
	}
	if disconnected {
		player.Connected = false
	}

	if len(record.Guesses) >= len(g.Players) {
		resolveGameRound(g, record)
	}
	return true, nil
}

// resolveGameRound ranks the round, accumulates totals, and either
// advances the round or finishes the game after the final round. The
// final winner is the highest cumulative score; ties break towards the
// lexicographically smallest uid so every resolver agrees.
func resolveGameRound(g *redis_models.MultiplayerGame, record *redis_models.RoundRecord) {
	if record.Resolved() {
		return
	}

	scores := make(map[string]int, len(record.Guesses))
	for uid, guess := range record.Guesses {
		scores[uid] = guess.Points
	}
	for uid, points := range scores {
		if player := g.Players[uid]; player != nil {
			player.TotalScore += points
		}
	}

	rankings := make([]redis_models.RankingEntry, 0, len(scores))
	for uid, points := range scores {
		entry := redis_models.RankingEntry{UID: uid, Points: points}
		if player := g.Players[uid]; player != nil {
			entry.Nickname = player.Nickname
			entry.TotalScore = player.TotalScore
		}
		if guess := record.Guesses[uid]; guess != nil {
			entry.DistanceKm = guess.DistanceKm
		}
		rankings = append(rankings, entry)
	}
	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].Points != rankings[j].Points {
			return rankings[i].Points > rankings[j].Points
		}
		return rankings[i].UID < rankings[j].UID
	})

	record.GameOutcome = &redis_models.GameOutcome{
		Round:    g.Round,
		Scores:   scores,
		Rankings: rankings,
	}

	if g.Round >= g.MaxRounds {
		g.State = redis_models.MatchStateFinished
		g.WinnerUID = gameWinner(g)
	} else {
		g.Round++
	}
}

func gameWinner(g *redis_models.MultiplayerGame) string {
	winnerUID := ""
	best := -1
	var uids []string
	for uid := range g.Players {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	for _, uid := range uids {
		if g.Players[uid].TotalScore > best {
			best = g.Players[uid].TotalScore
			winnerUID = uid
		}
	}
	return winnerUID
}

// TouchGamePlayer refreshes a player's activity timestamp.
func TouchGamePlayer(g *redis_models.MultiplayerGame, uid string, now time.Time) (bool, error) {
	player := g.Players[uid]
	if player == nil || g.State != redis_models.MatchStatePlaying {
		return false, nil
	}
	player.LastSeen = now
	player.Connected = true
	return true, nil
}
