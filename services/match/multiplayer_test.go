package match

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	redis_models "github.com/pedrocchii/birdersplace/models/redis"
)

func testRoomPlayers(n int) []redis_models.RoomPlayer {
	players := make([]redis_models.RoomPlayer, n)
	for i := range players {
		players[i] = redis_models.RoomPlayer{
			UID:      fmt.Sprintf("player-%02d", i),
			Nickname: fmt.Sprintf("Player %d", i),
		}
	}
	return players
}

func newTestGame(t *testing.T, n int) *redis_models.MultiplayerGame {
	t.Helper()
	g, err := NewMultiplayerGame("room-1", "player-00", testRoomPlayers(n))
	assert.NoError(t, err)
	committed, err := SetGameRoundDataIfAbsent(g, 1, testItems())
	assert.NoError(t, err)
	assert.True(t, committed)
	return g
}

func TestNewMultiplayerGamePlayerBounds(t *testing.T) {
	_, err := NewMultiplayerGame("room-1", "solo", testRoomPlayers(1))
	assert.Error(t, err)

	_, err = NewMultiplayerGame("room-1", "player-00", testRoomPlayers(11))
	assert.Error(t, err)

	g, err := NewMultiplayerGame("room-1", "player-00", testRoomPlayers(10))
	assert.NoError(t, err)
	assert.Len(t, g.Players, 10)
	assert.Equal(t, redis_models.DefaultMaxRounds, g.MaxRounds)
	assert.Equal(t, 1, g.Round)
}

func TestApplyGameGuessWaitsForAllPlayers(t *testing.T) {
	g := newTestGame(t, 3)
	now := time.Now()

	_, _ = ApplyGameGuess(g, "player-00", 40.4168, -3.7038, now)
	committed, err := ApplyGameGuess(g, "player-01", 48.8566, 2.3522, now)

	assert.NoError(t, err)
	assert.True(t, committed)
	assert.Nil(t, g.Rounds[1].GameOutcome)
	assert.Equal(t, 1, g.Round)
}

func TestApplyGameGuessResolvesWhenComplete(t *testing.T) {
	g := newTestGame(t, 3)
	now := time.Now()

	// player-00 exact, player-01 in Paris, player-02 in Tokyo
	_, _ = ApplyGameGuess(g, "player-00", 40.4168, -3.7038, now)
	_, _ = ApplyGameGuess(g, "player-01", 48.8566, 2.3522, now)
	_, _ = ApplyGameGuess(g, "player-02", 35.6762, 139.6503, now)

	outcome := g.Rounds[1].GameOutcome
	assert.NotNil(t, outcome)
	assert.Len(t, outcome.Rankings, 3)
	assert.Equal(t, "player-00", outcome.Rankings[0].UID)
	assert.Equal(t, 5000, outcome.Rankings[0].Points)
	assert.Equal(t, "player-01", outcome.Rankings[1].UID)
	assert.Equal(t, "player-02", outcome.Rankings[2].UID)

	assert.Equal(t, 5000, g.Players["player-00"].TotalScore)
	assert.Equal(t, 2, g.Round)
	assert.Equal(t, redis_models.MatchStatePlaying, g.State)
}

func TestGameRankingTieBreaksBySmallerUID(t *testing.T) {
	g := newTestGame(t, 2)
	now := time.Now()

	_, _ = ApplyGameGuess(g, "player-01", 40.4168, -3.7038, now)
	_, _ = ApplyGameGuess(g, "player-00", 40.4168, -3.7038, now)

	outcome := g.Rounds[1].GameOutcome
	assert.NotNil(t, outcome)
	assert.Equal(t, outcome.Rankings[0].Points, outcome.Rankings[1].Points)
	assert.Equal(t, "player-00", outcome.Rankings[0].UID)
}

func TestApplyGameTimeoutScoresZero(t *testing.T) {
	g := newTestGame(t, 2)
	now := time.Now()

	_, _ = ApplyGameGuess(g, "player-00", 40.4168, -3.7038, now)
	committed, err := ApplyGameTimeout(g, "player-01", 1, false, now)

	assert.NoError(t, err)
	assert.True(t, committed)

	outcome := g.Rounds[1].GameOutcome
	assert.NotNil(t, outcome)
	assert.Equal(t, 0, outcome.Scores["player-01"])
	assert.True(t, g.Rounds[1].Guesses["player-01"].Timeout)
	assert.Equal(t, 0, g.Players["player-01"].TotalScore)
	assert.Equal(t, 2, g.Round)
}

func TestApplyGameTimeoutDisconnectMarksPlayer(t *testing.T) {
	g := newTestGame(t, 3)
	now := time.Now()

	committed, err := ApplyGameTimeout(g, "player-02", 1, true, now)

	assert.NoError(t, err)
	assert.True(t, committed)
	assert.False(t, g.Players["player-02"].Connected)
	assert.True(t, g.Rounds[1].Guesses["player-02"].Disconnected)
	// only one of three guesses present, round keeps waiting
	assert.Nil(t, g.Rounds[1].GameOutcome)
}

func TestApplyGameTimeoutNoOpAfterGuess(t *testing.T) {
	g := newTestGame(t, 2)
	now := time.Now()
	_, _ = ApplyGameGuess(g, "player-00", 40.4168, -3.7038, now)

	committed, err := ApplyGameTimeout(g, "player-00", 1, false, now)

	assert.NoError(t, err)
	assert.False(t, committed)
	assert.Equal(t, 5000, g.Rounds[1].Guesses["player-00"].Points)
}

func TestApplyGameTimeoutNoOpOnStaleRound(t *testing.T) {
	g := newTestGame(t, 2)
	now := time.Now()
	_, _ = ApplyGameGuess(g, "player-00", 40.4168, -3.7038, now)
	_, _ = ApplyGameGuess(g, "player-01", 48.8566, 2.3522, now)
	assert.Equal(t, 2, g.Round)

	committed, err := ApplyGameTimeout(g, "player-01", 1, false, now)

	assert.NoError(t, err)
	assert.False(t, committed)
}

func TestFullGameToCompletion(t *testing.T) {
	g := newTestGame(t, 4)
	now := time.Now()

	for round := 1; round <= redis_models.DefaultMaxRounds; round++ {
		assert.Equal(t, round, g.Round)
		if round > 1 {
			committed, err := SetGameRoundDataIfAbsent(g, round, testItems())
			assert.NoError(t, err)
			assert.True(t, committed)
		}
		// player-00 nails every round, the rest trail at fixed offsets
		_, _ = ApplyGameGuess(g, "player-00", 40.4168, -3.7038, now)
		_, _ = ApplyGameGuess(g, "player-01", 41.3874, 2.1686, now)
		_, _ = ApplyGameGuess(g, "player-02", 48.8566, 2.3522, now)
		_, _ = ApplyGameGuess(g, "player-03", 35.6762, 139.6503, now)
	}

	assert.Equal(t, redis_models.MatchStateFinished, g.State)
	assert.Equal(t, "player-00", g.WinnerUID)
	assert.Equal(t, 5000*redis_models.DefaultMaxRounds, g.Players["player-00"].TotalScore)

	// every round carries its own resolved outcome
	for round := 1; round <= redis_models.DefaultMaxRounds; round++ {
		assert.NotNil(t, g.Rounds[round].GameOutcome)
	}
}

func TestGameWinnerTieBreaksBySmallerUID(t *testing.T) {
	g := newTestGame(t, 2)
	now := time.Now()

	for round := 1; round <= redis_models.DefaultMaxRounds; round++ {
		if round > 1 {
			_, _ = SetGameRoundDataIfAbsent(g, round, testItems())
		}
		_, _ = ApplyGameGuess(g, "player-00", 40.4168, -3.7038, now)
		_, _ = ApplyGameGuess(g, "player-01", 40.4168, -3.7038, now)
	}

	assert.Equal(t, redis_models.MatchStateFinished, g.State)
	assert.Equal(t, g.Players["player-00"].TotalScore, g.Players["player-01"].TotalScore)
	assert.Equal(t, "player-00", g.WinnerUID)
}

func TestTouchGamePlayer(t *testing.T) {
	g := newTestGame(t, 2)
	later := time.Now().Add(30 * time.Second)

	committed, err := TouchGamePlayer(g, "player-01", later)

	assert.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, later, g.Players["player-01"].LastSeen)

	committed, err = TouchGamePlayer(g, "ghost", later)
	assert.NoError(t, err)
	assert.False(t, committed)
}
