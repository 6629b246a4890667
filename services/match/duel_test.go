package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	redis_models "github.com/pedrocchii/birdersplace/models/redis"
	"github.com/pedrocchii/birdersplace/services/scoring"
)

func testItems() []redis_models.ObservationItem {
	items := make([]redis_models.ObservationItem, 8)
	for i := range items {
		items[i] = redis_models.ObservationItem{
			ID:       int64(1000 + i),
			PhotoURL: "https://example.org/photo.jpg",
			Lat:      40.4168,
			Lon:      -3.7038,
			Species:  "Passer domesticus",
		}
	}
	return items
}

func newTestDuel(t *testing.T) *redis_models.DuelMatch {
	t.Helper()
	m := NewDuelMatch("alice", "Alice", "bob", "Bob", true)
	committed, err := SetRoundDataIfAbsent(m, 1, testItems())
	assert.NoError(t, err)
	assert.True(t, committed)
	return m
}

func TestNewDuelMatch(t *testing.T) {
	m := NewDuelMatch("alice", "Alice", "bob", "Bob", false)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, redis_models.MatchStatePlaying, m.State)
	assert.Equal(t, 1, m.Round)
	assert.Len(t, m.Players, 2)
	assert.Equal(t, redis_models.StartingHP, m.Players["alice"].HP)
	assert.Equal(t, redis_models.StartingHP, m.Players["bob"].HP)
	assert.False(t, m.Matchmaking)
}

func TestSetRoundDataIfAbsentFirstWriterWins(t *testing.T) {
	m := newTestDuel(t)
	first := m.Rounds[1].Items

	other := testItems()
	other[0].Lat = 10
	committed, err := SetRoundDataIfAbsent(m, 1, other)

	assert.NoError(t, err)
	assert.False(t, committed)
	assert.Equal(t, first[0].Lat, m.Rounds[1].Items[0].Lat)
}

func TestApplyDuelGuessSingleGuessDoesNotResolve(t *testing.T) {
	m := newTestDuel(t)

	committed, err := ApplyDuelGuess(m, "alice", 40.4168, -3.7038, time.Now())

	assert.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, 1, m.Round)
	assert.Nil(t, m.Rounds[1].DuelOutcome)
	assert.Equal(t, 5000, m.Rounds[1].Guesses["alice"].Points)
}

func TestApplyDuelGuessResolvesOnSecondGuess(t *testing.T) {
	m := newTestDuel(t)
	now := time.Now()

	// alice guesses the exact spot, bob is off by hundreds of km
	_, err := ApplyDuelGuess(m, "alice", 40.4168, -3.7038, now)
	assert.NoError(t, err)
	committed, err := ApplyDuelGuess(m, "bob", 48.8566, 2.3522, now)
	assert.NoError(t, err)
	assert.True(t, committed)

	outcome := m.Rounds[1].DuelOutcome
	assert.NotNil(t, outcome)
	assert.Equal(t, "alice", outcome.WinnerUID)
	assert.Equal(t, "bob", outcome.LoserUID)
	assert.Equal(t, 1.0, outcome.Multiplier)

	pointsA := outcome.Points["alice"]
	pointsB := outcome.Points["bob"]
	assert.Equal(t, 5000, pointsA)
	assert.Less(t, pointsB, pointsA)
	assert.Equal(t, scoring.DuelDamage(pointsA, pointsB, 1), outcome.Damage)

	assert.Equal(t, redis_models.StartingHP, m.Players["alice"].HP)
	assert.Equal(t, redis_models.StartingHP-outcome.Damage, m.Players["bob"].HP)
	assert.Equal(t, 2, m.Round)
	assert.Equal(t, redis_models.MatchStatePlaying, m.State)
}

func TestApplyDuelGuessOrderIsCommutative(t *testing.T) {
	now := time.Now()

	first := newTestDuel(t)
	_, _ = ApplyDuelGuess(first, "alice", 40.4168, -3.7038, now)
	_, _ = ApplyDuelGuess(first, "bob", 48.8566, 2.3522, now)

	second := newTestDuel(t)
	_, _ = ApplyDuelGuess(second, "bob", 48.8566, 2.3522, now)
	_, _ = ApplyDuelGuess(second, "alice", 40.4168, -3.7038, now)

	assert.Equal(t, first.Rounds[1].DuelOutcome.Damage, second.Rounds[1].DuelOutcome.Damage)
	assert.Equal(t, first.Rounds[1].DuelOutcome.WinnerUID, second.Rounds[1].DuelOutcome.WinnerUID)
	assert.Equal(t, first.Players["bob"].HP, second.Players["bob"].HP)
}

func TestApplyDuelGuessTieDealsZeroDamage(t *testing.T) {
	m := newTestDuel(t)
	now := time.Now()

	_, _ = ApplyDuelGuess(m, "alice", 40.4168, -3.7038, now)
	_, _ = ApplyDuelGuess(m, "bob", 40.4168, -3.7038, now)

	outcome := m.Rounds[1].DuelOutcome
	assert.NotNil(t, outcome)
	assert.Equal(t, 0, outcome.Damage)
	// tie-break: winner label goes to the lexicographically smaller uid
	assert.Equal(t, "alice", outcome.WinnerUID)
	assert.Equal(t, redis_models.StartingHP, m.Players["alice"].HP)
	assert.Equal(t, redis_models.StartingHP, m.Players["bob"].HP)
	assert.Equal(t, 2, m.Round)
}

func TestApplyDuelGuessDuplicateIsNoOp(t *testing.T) {
	m := newTestDuel(t)
	now := time.Now()

	_, _ = ApplyDuelGuess(m, "alice", 40.4168, -3.7038, now)
	committed, err := ApplyDuelGuess(m, "alice", 0, 0, now)

	assert.NoError(t, err)
	assert.False(t, committed)
	assert.Equal(t, 5000, m.Rounds[1].Guesses["alice"].Points)
}

func TestApplyDuelGuessUnknownPlayer(t *testing.T) {
	m := newTestDuel(t)

	committed, err := ApplyDuelGuess(m, "mallory", 0, 0, time.Now())

	assert.Error(t, err)
	assert.False(t, committed)
}

func TestApplyDuelGuessWithoutRoundData(t *testing.T) {
	m := NewDuelMatch("alice", "Alice", "bob", "Bob", true)

	committed, err := ApplyDuelGuess(m, "alice", 0, 0, time.Now())

	assert.Error(t, err)
	assert.False(t, committed)
}

func TestDamageMultiplierEscalatesInLateRounds(t *testing.T) {
	m := newTestDuel(t)
	m.Round = 5
	_, _ = SetRoundDataIfAbsent(m, 5, testItems())
	now := time.Now()

	_, _ = ApplyDuelGuess(m, "alice", 40.4168, -3.7038, now)
	_, _ = ApplyDuelGuess(m, "bob", 48.8566, 2.3522, now)

	outcome := m.Rounds[5].DuelOutcome
	assert.NotNil(t, outcome)
	assert.Equal(t, 2.0, outcome.Multiplier)
	assert.Equal(t, scoring.DuelDamage(outcome.Points["alice"], outcome.Points["bob"], 5), outcome.Damage)
}

func TestDuelFinishesWhenHPExhausted(t *testing.T) {
	m := newTestDuel(t)
	m.Players["bob"].HP = 10
	now := time.Now()

	_, _ = ApplyDuelGuess(m, "alice", 40.4168, -3.7038, now)
	_, _ = ApplyDuelGuess(m, "bob", 48.8566, 2.3522, now)

	assert.Equal(t, redis_models.MatchStateFinished, m.State)
	assert.Equal(t, redis_models.EndCauseNormal, m.EndCause)
	assert.Equal(t, "alice", m.WinnerUID)
	assert.Equal(t, 0, m.Players["bob"].HP)
}

func TestEliminateDuelPlayerTimeout(t *testing.T) {
	m := newTestDuel(t)
	now := time.Now()
	_, _ = ApplyDuelGuess(m, "alice", 40.4168, -3.7038, now)

	committed, err := EliminateDuelPlayer(m, "bob", 1, redis_models.EndCauseTimeout, now)

	assert.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, redis_models.MatchStateFinished, m.State)
	assert.Equal(t, redis_models.EndCauseTimeout, m.EndCause)
	assert.Equal(t, "alice", m.WinnerUID)
	assert.Equal(t, 0, m.Players["bob"].HP)
	assert.True(t, m.Rounds[1].Guesses["bob"].Eliminated)
	assert.True(t, m.Rounds[1].Guesses["bob"].Timeout)
}

func TestEliminateDuelPlayerNoOpAfterGuess(t *testing.T) {
	m := newTestDuel(t)
	now := time.Now()
	_, _ = ApplyDuelGuess(m, "bob", 40.4168, -3.7038, now)

	// stale timer fires after bob already submitted
	committed, err := EliminateDuelPlayer(m, "bob", 1, redis_models.EndCauseTimeout, now)

	assert.NoError(t, err)
	assert.False(t, committed)
	assert.Equal(t, redis_models.MatchStatePlaying, m.State)
}

func TestEliminateDuelPlayerNoOpOnStaleRound(t *testing.T) {
	m := newTestDuel(t)
	now := time.Now()
	_, _ = ApplyDuelGuess(m, "alice", 40.4168, -3.7038, now)
	_, _ = ApplyDuelGuess(m, "bob", 48.8566, 2.3522, now)
	assert.Equal(t, 2, m.Round)

	// timer armed for round 1 fires after the round resolved
	committed, err := EliminateDuelPlayer(m, "bob", 1, redis_models.EndCauseTimeout, now)

	assert.NoError(t, err)
	assert.False(t, committed)
	assert.Equal(t, redis_models.MatchStatePlaying, m.State)
}

func TestEliminateBothDuelPlayers(t *testing.T) {
	m := newTestDuel(t)

	committed, err := EliminateBothDuelPlayers(m, 1, time.Now())

	assert.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, redis_models.MatchStateFinished, m.State)
	assert.Equal(t, redis_models.EndCauseDoubleTimeout, m.EndCause)
	assert.Empty(t, m.WinnerUID)
	assert.Equal(t, 0, m.Players["alice"].HP)
	assert.Equal(t, 0, m.Players["bob"].HP)
}

func TestEliminateBothDuelPlayersNoOpWithGuesses(t *testing.T) {
	m := newTestDuel(t)
	_, _ = ApplyDuelGuess(m, "alice", 40.4168, -3.7038, time.Now())

	committed, err := EliminateBothDuelPlayers(m, 1, time.Now())

	assert.NoError(t, err)
	assert.False(t, committed)
	assert.Equal(t, redis_models.MatchStatePlaying, m.State)
}

func TestMarkStatsProcessedOnce(t *testing.T) {
	m := newTestDuel(t)
	m.Players["bob"].HP = 10
	now := time.Now()
	_, _ = ApplyDuelGuess(m, "alice", 40.4168, -3.7038, now)
	_, _ = ApplyDuelGuess(m, "bob", 48.8566, 2.3522, now)
	assert.Equal(t, redis_models.MatchStateFinished, m.State)

	committed, err := MarkStatsProcessed(m)
	assert.NoError(t, err)
	assert.True(t, committed)
	assert.True(t, m.StatsProcessed)

	// a second observer of the same termination must not commit
	committed, err = MarkStatsProcessed(m)
	assert.NoError(t, err)
	assert.False(t, committed)
}

func TestMarkStatsProcessedSkipsFriendlyMatches(t *testing.T) {
	m := NewDuelMatch("alice", "Alice", "bob", "Bob", false)
	_, _ = SetRoundDataIfAbsent(m, 1, testItems())
	m.State = redis_models.MatchStateFinished
	m.EndCause = redis_models.EndCauseNormal
	m.WinnerUID = "alice"

	committed, err := MarkStatsProcessed(m)

	assert.NoError(t, err)
	assert.False(t, committed)
	assert.False(t, m.StatsProcessed)
}

func TestMarkStatsProcessedSkipsDoubleTimeout(t *testing.T) {
	m := newTestDuel(t)
	_, _ = EliminateBothDuelPlayers(m, 1, time.Now())

	committed, err := MarkStatsProcessed(m)

	assert.NoError(t, err)
	assert.False(t, committed)
}

func TestFullDuelToCompletion(t *testing.T) {
	m := newTestDuel(t)
	now := time.Now()

	round := 1
	for m.State == redis_models.MatchStatePlaying {
		assert.Equal(t, round, m.Round)
		if round > 1 {
			committed, err := SetRoundDataIfAbsent(m, round, testItems())
			assert.NoError(t, err)
			assert.True(t, committed)
		}
		// bob misses badly every round and eventually runs out of HP
		_, err := ApplyDuelGuess(m, "alice", 40.4168, -3.7038, now)
		assert.NoError(t, err)
		_, err = ApplyDuelGuess(m, "bob", -33.8688, 151.2093, now)
		assert.NoError(t, err)
		round++
		assert.Less(t, round, 20, "duel should finish well before 20 rounds")
	}

	assert.Equal(t, redis_models.EndCauseNormal, m.EndCause)
	assert.Equal(t, "alice", m.WinnerUID)
	assert.Equal(t, 0, m.Players["bob"].HP)
	assert.Equal(t, redis_models.StartingHP, m.Players["alice"].HP)
}
