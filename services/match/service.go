package match

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	redis_models "github.com/pedrocchii/birdersplace/models/redis"
	"github.com/pedrocchii/birdersplace/services/redis"
	"github.com/pedrocchii/birdersplace/services/sourcing"
)

// Notifier pushes committed document snapshots to the connected clients
// of a match/game room. This is the live-subscription half of the
// protocol: every transaction that commits is followed by exactly one
// notification carrying the new state.
type Notifier interface {
	DuelUpdated(match *redis_models.DuelMatch)
	GameUpdated(game *redis_models.MultiplayerGame)
	SourcingFailed(kind, id string, round int, err error)
}

// StatsRecorder is invoked whenever a duel is observed in the finished
// state. Implementations must be safe under concurrent duplicate calls.
type StatsRecorder interface {
	ProcessDuelCompletion(matchID string)
}

// Service owns the round lifecycle of duels and multiplayer games:
// sourcing round data, merging guesses, advancing rounds and kicking
// off stats processing on termination.
type Service struct {
	redisClient *redis.RedisClient
	sourcer     *sourcing.Client
	notifier    Notifier
	stats       StatsRecorder
	Supervisor  *Supervisor
}

func NewService(redisClient *redis.RedisClient, sourcer *sourcing.Client) *Service {
	s := &Service{
		redisClient: redisClient,
		sourcer:     sourcer,
	}
	s.Supervisor = NewSupervisor(redisClient, s)
	return s
}

// SetNotifier wires the realtime layer in. Must be called before any
// match is started.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetStatsRecorder wires the ledger in.
func (s *Service) SetStatsRecorder(r StatsRecorder) { s.stats = r }

func (s *Service) notifyDuel(m *redis_models.DuelMatch) {
	if s.notifier != nil && m != nil {
		s.notifier.DuelUpdated(m)
	}
}

func (s *Service) notifyGame(g *redis_models.MultiplayerGame) {
	if s.notifier != nil && g != nil {
		s.notifier.GameUpdated(g)
	}
}

// ---------------------------------------------------------------
// Duels
// ---------------------------------------------------------------

// StartDuel persists a freshly created duel and begins round 1.
func (s *Service) StartDuel(m *redis_models.DuelMatch) error {
	if err := s.redisClient.SaveDuelMatch(m); err != nil {
		return fmt.Errorf("error saving new duel: %v", err)
	}
	s.Supervisor.TrackDuel(m.ID)
	go s.StartDuelRound(m.ID, 1)
	return nil
}

// StartDuelRound sources the round's 8 items (deterministic seed, so a
// re-run computes identical data) and installs them first-writer-wins,
// then arms the round deadline. Non-submitting observers simply receive
// the broadcast once the install commits.
func (s *Service) StartDuelRound(matchID string, round int) {
	m, err := s.redisClient.GetDuelMatch(matchID)
	if err != nil {
		log.Printf("[DUEL-ROUND-ERROR] Error getting match %s: %v", matchID, err)
		return
	}
	if m.State != redis_models.MatchStatePlaying || m.Round != round {
		log.Printf("[DUEL-ROUND-INFO] Match %s moved past round %d, skipping", matchID, round)
		return
	}

	if existing := m.CurrentRound(); existing != nil && len(existing.Items) > 0 {
		s.Supervisor.ArmDuelTimer(matchID, round)
		s.notifyDuel(m)
		return
	}

	log.Printf("[DUEL-ROUND] Sourcing round %d for match %s", round, matchID)
	items, err := s.sourcer.LoadRound(context.Background(), sourcing.MatchSeed(matchID, round))
	if err != nil {
		log.Printf("[DUEL-ROUND-ERROR] Sourcing failed for match %s round %d: %v", matchID, round, err)
		if s.notifier != nil {
			s.notifier.SourcingFailed("duel", matchID, round, err)
		}
		return
	}

	updated, err := s.redisClient.UpdateDuelMatch(matchID, func(m *redis_models.DuelMatch) (bool, error) {
		return SetRoundDataIfAbsent(m, round, items)
	})
	if err != nil {
		log.Printf("[DUEL-ROUND-ERROR] Error installing round %d data for match %s: %v", round, matchID, err)
		return
	}

	s.Supervisor.ArmDuelTimer(matchID, round)
	s.notifyDuel(updated)
	log.Printf("[DUEL-ROUND-SUCCESS] Round %d ready for match %s", round, matchID)
}

// RetryDuelRound re-attempts sourcing after a failure was surfaced.
func (s *Service) RetryDuelRound(matchID string) {
	m, err := s.redisClient.GetDuelMatch(matchID)
	if err != nil {
		return
	}
	s.StartDuelRound(matchID, m.Round)
}

// SubmitDuelGuess merges the guess transactionally and drives whatever
// the commit implies: broadcast, next round, or termination.
func (s *Service) SubmitDuelGuess(matchID, uid string, lat, lng float64) (*redis_models.DuelMatch, error) {
	roundBefore := 0
	updated, err := s.redisClient.UpdateDuelMatch(matchID, func(m *redis_models.DuelMatch) (bool, error) {
		roundBefore = m.Round
		return ApplyDuelGuess(m, uid, lat, lng, time.Now())
	})
	if err != nil {
		return nil, err
	}

	s.notifyDuel(updated)
	s.afterDuelMutation(updated, roundBefore)
	return updated, nil
}

// afterDuelMutation inspects a committed snapshot and advances the
// lifecycle: cancels timers, schedules the next round, or triggers the
// ledger on termination.
func (s *Service) afterDuelMutation(m *redis_models.DuelMatch, roundBefore int) {
	if m == nil {
		return
	}
	if m.State == redis_models.MatchStateFinished {
		s.Supervisor.UntrackDuel(m.ID)
		if s.stats != nil {
			s.stats.ProcessDuelCompletion(m.ID)
		}
		return
	}
	if m.Round > roundBefore {
		s.Supervisor.CancelDuelTimer(m.ID)
		go s.StartDuelRound(m.ID, m.Round)
	}
}

// HeartbeatDuel refreshes the player's activity timestamp, which the
// disconnection sweep reads.
func (s *Service) HeartbeatDuel(matchID, uid string) {
	_, err := s.redisClient.UpdateDuelMatch(matchID, func(m *redis_models.DuelMatch) (bool, error) {
		return TouchDuelPlayer(m, uid, time.Now())
	})
	if err != nil && !errors.Is(err, redis.ErrNotFound) {
		log.Printf("[HEARTBEAT-ERROR] Error touching player %s in match %s: %v", uid, matchID, err)
	}
}

// ---------------------------------------------------------------
// Multiplayer games
// ---------------------------------------------------------------

// StartGame persists a freshly created game and begins round 1.
func (s *Service) StartGame(g *redis_models.MultiplayerGame) error {
	if err := s.redisClient.SaveMultiplayerGame(g); err != nil {
		return fmt.Errorf("error saving new game: %v", err)
	}
	s.Supervisor.TrackGame(g.ID)
	go s.StartGameRound(g.ID, 1)
	return nil
}

// StartGameRound mirrors StartDuelRound for free-for-all games.
func (s *Service) StartGameRound(gameID string, round int) {
	g, err := s.redisClient.GetMultiplayerGame(gameID)
	if err != nil {
		log.Printf("[GAME-ROUND-ERROR] Error getting game %s: %v", gameID, err)
		return
	}
	if g.State != redis_models.MatchStatePlaying || g.Round != round {
		return
	}

	if existing := g.CurrentRound(); existing != nil && len(existing.Items) > 0 {
		s.Supervisor.ArmGameTimer(gameID, round)
		s.notifyGame(g)
		return
	}

	log.Printf("[GAME-ROUND] Sourcing round %d for game %s", round, gameID)
	items, err := s.sourcer.LoadRound(context.Background(), sourcing.MatchSeed(gameID, round))
	if err != nil {
		log.Printf("[GAME-ROUND-ERROR] Sourcing failed for game %s round %d: %v", gameID, round, err)
		if s.notifier != nil {
			s.notifier.SourcingFailed("game", gameID, round, err)
		}
		return
	}

	updated, err := s.redisClient.UpdateMultiplayerGame(gameID, func(g *redis_models.MultiplayerGame) (bool, error) {
		return SetGameRoundDataIfAbsent(g, round, items)
	})
	if err != nil {
		log.Printf("[GAME-ROUND-ERROR] Error installing round %d data for game %s: %v", round, gameID, err)
		return
	}

	s.Supervisor.ArmGameTimer(gameID, round)
	s.notifyGame(updated)
	log.Printf("[GAME-ROUND-SUCCESS] Round %d ready for game %s", round, gameID)
}

// RetryGameRound re-attempts sourcing after a failure was surfaced.
func (s *Service) RetryGameRound(gameID string) {
	g, err := s.redisClient.GetMultiplayerGame(gameID)
	if err != nil {
		return
	}
	s.StartGameRound(gameID, g.Round)
}

// SubmitGameGuess merges the guess transactionally.
func (s *Service) SubmitGameGuess(gameID, uid string, lat, lng float64) (*redis_models.MultiplayerGame, error) {
	roundBefore := 0
	updated, err := s.redisClient.UpdateMultiplayerGame(gameID, func(g *redis_models.MultiplayerGame) (bool, error) {
		roundBefore = g.Round
		return ApplyGameGuess(g, uid, lat, lng, time.Now())
	})
	if err != nil {
		return nil, err
	}

	s.notifyGame(updated)
	s.afterGameMutation(updated, roundBefore)
	return updated, nil
}

func (s *Service) afterGameMutation(g *redis_models.MultiplayerGame, roundBefore int) {
	if g == nil {
		return
	}
	if g.State == redis_models.MatchStateFinished {
		s.Supervisor.UntrackGame(g.ID)
		return
	}
	if g.Round > roundBefore {
		s.Supervisor.CancelGameTimer(g.ID)
		go s.StartGameRound(g.ID, g.Round)
	}
}

// HeartbeatGame refreshes the player's activity timestamp.
func (s *Service) HeartbeatGame(gameID, uid string) {
	_, err := s.redisClient.UpdateMultiplayerGame(gameID, func(g *redis_models.MultiplayerGame) (bool, error) {
		return TouchGamePlayer(g, uid, time.Now())
	})
	if err != nil && !errors.Is(err, redis.ErrNotFound) {
		log.Printf("[HEARTBEAT-ERROR] Error touching player %s in game %s: %v", uid, gameID, err)
	}
}
