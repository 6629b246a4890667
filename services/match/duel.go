package match

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	redis_models "github.com/pedrocchii/birdersplace/models/redis"
	"github.com/pedrocchii/birdersplace/services/scoring"
)

// The functions in this file are pure reducers over the duel document:
// (current state, input) -> (next state, commit?). They never touch the
// store themselves; the transaction layer re-runs them against fresh
// state whenever an optimistic write loses its race, so each reducer
// re-verifies its precondition and returns commit=false when the work
// was already done by a concurrent writer.

// NewDuelMatch builds a fresh duel document with both players at full
// health on round 1.
func NewDuelMatch(hostUID, hostNickname, opponentUID, opponentNickname string, matchmaking bool) *redis_models.DuelMatch {
	now := time.Now()
	return &redis_models.DuelMatch{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		State:       redis_models.MatchStatePlaying,
		Round:       1,
		HostUID:     hostUID,
		Matchmaking: matchmaking,
		Players: map[string]*redis_models.DuelPlayer{
			hostUID:     {Nickname: hostNickname, HP: redis_models.StartingHP, LastSeen: now},
			opponentUID: {Nickname: opponentNickname, HP: redis_models.StartingHP, LastSeen: now},
		},
		Rounds: map[int]*redis_models.RoundRecord{},
	}
}

// SetRoundDataIfAbsent installs the sourced items for a round number.
// First writer wins: if the round already has data the reducer is a
// no-op, so a re-sourcing retry can never overwrite the agreed truth
// coordinates.
func SetRoundDataIfAbsent(m *redis_models.DuelMatch, round int, items []redis_models.ObservationItem) (bool, error) {
	if m.State != redis_models.MatchStatePlaying {
		return false, nil
	}
	if m.Rounds == nil {
		m.Rounds = map[int]*redis_models.RoundRecord{}
	}
	if existing := m.Rounds[round]; existing != nil && len(existing.Items) > 0 {
		return false, nil
	}
	m.Rounds[round] = &redis_models.RoundRecord{
		Items:   items,
		Index:   0,
		Guesses: map[string]*redis_models.Guess{},
	}
	return true, nil
}

// ApplyDuelGuess merges one player's guess into the current round and,
// if the opponent already guessed, resolves the round: damage applied to
// the lower-scoring player, round advanced or match finished. Submission
// order is commutative and resolution is idempotent per round number.
func ApplyDuelGuess(m *redis_models.DuelMatch, uid string, lat, lng float64, now time.Time) (bool, error) {
	if m.State != redis_models.MatchStatePlaying {
		return false, nil
	}
	player := m.Players[uid]
	if player == nil {
		return false, fmt.Errorf("player %s is not part of match %s", uid, m.ID)
	}

	record := m.CurrentRound()
	if record == nil || len(record.Items) == 0 {
		return false, fmt.Errorf("round %d of match %s has no data yet", m.Round, m.ID)
	}
	if record.Resolved() {
		// round already resolved by a racing transaction
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

	opponentUID := m.OpponentOf(uid)
	if _, opponentGuessed := record.Guesses[opponentUID]; opponentGuessed {
		resolveDuelRound(m, record)
	}
	return true, nil
}

// resolveDuelRound computes the outcome once both guesses are present.
// Ties deal zero damage; the winner label falls to the lexicographically
// smaller uid so racing resolvers agree on the outcome.
func resolveDuelRound(m *redis_models.DuelMatch, record *redis_models.RoundRecord) {
	if record.Resolved() {
		return
	}

	var uids []string
	for uid := range m.Players {
		uids = append(uids, uid)
	}
	if len(uids) != 2 {
		return
	}
	a, b := uids[0], uids[1]
	if a > b {
		a, b = b, a
	}
	guessA, guessB := record.Guesses[a], record.Guesses[b]
	if guessA == nil || guessB == nil {
		return
	}

	winnerUID, loserUID := a, b
	if guessB.Points > guessA.Points {
		winnerUID, loserUID = b, a
	}
	damage := scoring.DuelDamage(guessA.Points, guessB.Points, m.Round)

	loser := m.Players[loserUID]
	loser.HP -= damage
	if loser.HP < 0 {
		loser.HP = 0
	}

	record.DuelOutcome = &redis_models.DuelOutcome{
		WinnerUID:  winnerUID,
		LoserUID:   loserUID,
		Damage:     damage,
		Multiplier: scoring.DamageMultiplier(m.Round),
		Round:      m.Round,
		Distances: map[string]float64{
			a: guessA.DistanceKm,
			b: guessB.DistanceKm,
		},
		Points: map[string]int{
			a: guessA.Points,
			b: guessB.Points,
		},
	}

	if loser.HP <= 0 {
		m.State = redis_models.MatchStateFinished
		m.EndCause = redis_models.EndCauseNormal
		m.WinnerUID = winnerUID
	} else {
		m.Round++
	}
}

// EliminateDuelPlayer forces a player out for failing to act: health to
// zero, a synthetic eliminated guess recorded, match finished with the
// opponent as winner. The reducer re-verifies that the match is still
// playing, that we are still on the expected round, and that the target
// has not legitimately guessed in the meantime, so a stale timer firing
// after a last-second submission is a no-op.
func EliminateDuelPlayer(m *redis_models.DuelMatch, uid string, round int, cause redis_models.EndCause, now time.Time) (bool, error) {
	if m.State != redis_models.MatchStatePlaying || m.Round != round {
		return false, nil
	}
	player := m.Players[uid]
	if player == nil {
		return false, fmt.Errorf("player %s is not part of match %s", uid, m.ID)
	}

	record := m.CurrentRound()
	if record == nil {
		record = &redis_models.RoundRecord{Guesses: map[string]*redis_models.Guess{}}
		if m.Rounds == nil {
			m.Rounds = map[int]*redis_models.RoundRecord{}
		}
		m.Rounds[round] = record
	}
	if record.Guesses == nil {
		record.Guesses = map[string]*redis_models.Guess{}
	}
	if _, guessed := record.Guesses[uid]; guessed {
		return false, nil
	}

	record.Guesses[uid] = syntheticGuess(uid, cause, now)
	player.HP = 0
	player.LastSeen = now

	m.State = redis_models.MatchStateFinished
	m.EndCause = cause
	m.WinnerUID = m.OpponentOf(uid)
	return true, nil
}

// EliminateBothDuelPlayers handles the double-timeout: neither player
// guessed when the round deadline expired, so both are eliminated and
// no winner is declared. Such matches never reach the stats ledger.
func EliminateBothDuelPlayers(m *redis_models.DuelMatch, round int, now time.Time) (bool, error) {
	if m.State != redis_models.MatchStatePlaying || m.Round != round {
		return false, nil
	}
	record := m.CurrentRound()
	if record != nil && len(record.Guesses) > 0 {
		return false, nil
	}
	if record == nil {
		record = &redis_models.RoundRecord{Guesses: map[string]*redis_models.Guess{}}
		if m.Rounds == nil {
			m.Rounds = map[int]*redis_models.RoundRecord{}
		}
		m.Rounds[round] = record
	}
	if record.Guesses == nil {
		record.Guesses = map[string]*redis_models.Guess{}
	}

	for uid, player := range m.Players {
		record.Guesses[uid] = syntheticGuess(uid, redis_models.EndCauseTimeout, now)
		player.HP = 0
		player.LastSeen = now
	}
	m.State = redis_models.MatchStateFinished
	m.EndCause = redis_models.EndCauseDoubleTimeout
	m.WinnerUID = ""
	return true, nil
}

// MarkStatsProcessed is the check-and-set guard the ledger runs inside
// a single transaction: it commits only for finished matchmaking duels
// with a winner that have not been processed yet.
func MarkStatsProcessed(m *redis_models.DuelMatch) (bool, error) {
	if m.State != redis_models.MatchStateFinished {
		return false, nil
	}
	if !m.Matchmaking || m.StatsProcessed {
		return false, nil
	}
	if m.EndCause == redis_models.EndCauseDoubleTimeout || m.WinnerUID == "" {
		return false, nil
	}
	m.StatsProcessed = true
	return true, nil
}

// TouchDuelPlayer refreshes a player's activity timestamp.
func TouchDuelPlayer(m *redis_models.DuelMatch, uid string, now time.Time) (bool, error) {
	player := m.Players[uid]
	if player == nil || m.State != redis_models.MatchStatePlaying {
		return false, nil
	}
	player.LastSeen = now
	return true, nil
}

func syntheticGuess(uid string, cause redis_models.EndCause, now time.Time) *redis_models.Guess {
	return &redis_models.Guess{
		UID:          uid,
		SubmittedAt:  now,
		Timeout:      cause == redis_models.EndCauseTimeout,
		Disconnected: cause == redis_models.EndCauseDisconnect,
		Eliminated:   true,
	}
}
