package match

import (
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	redis_models "github.com/pedrocchii/birdersplace/models/redis"
	"github.com/pedrocchii/birdersplace/services/redis"
)

const (
	// RoundTimeout is how long players get to submit a guess once the
	// round data is installed.
	RoundTimeout = 90 * time.Second

	// DisconnectThreshold is how long a player may stay silent (no
	// guess, no heartbeat) before the sweep treats them as gone. It
	// sits just above RoundTimeout so the round deadline always fires
	// first for players who are merely slow.
	DisconnectThreshold = 93 * time.Second

	// SweepInterval is how often the disconnection sweep runs.
	SweepInterval = 10 * time.Second
)

type roundTimer struct {
	round  int
	cancel chan struct{}
}

// Supervisor enforces the liveness rules: a per-round deadline timer
// per active match and a periodic sweep that eliminates players whose
// activity timestamp went stale. Timers are advisory; every expiry is
// re-verified transactionally against current state, so a timer firing
// after a last-second guess is a no-op.
type Supervisor struct {
	redisClient *redis.RedisClient
	service     *Service

	mu         sync.Mutex
	duelTimers map[string]*roundTimer
	gameTimers map[string]*roundTimer
	duels      map[string]bool
	games      map[string]bool

	scheduler gocron.Scheduler
}

func NewSupervisor(redisClient *redis.RedisClient, service *Service) *Supervisor {
	return &Supervisor{
		redisClient: redisClient,
		service:     service,
		duelTimers:  map[string]*roundTimer{},
		gameTimers:  map[string]*roundTimer{},
		duels:       map[string]bool{},
		games:       map[string]bool{},
	}
}

// Start launches the periodic disconnection sweep.
func (s *Supervisor) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(SweepInterval),
		gocron.NewTask(s.sweep),
	)
	if err != nil {
		return err
	}
	scheduler.Start()
	s.scheduler = scheduler
	log.Printf("[SUPERVISOR] Disconnection sweep running every %s", SweepInterval)
	return nil
}

// Stop shuts the sweep down and drops all timers.
func (s *Supervisor) Stop() {
	if s.scheduler != nil {
		_ = s.scheduler.Shutdown()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.duelTimers {
		close(t.cancel)
		delete(s.duelTimers, id)
	}
	for id, t := range s.gameTimers {
		close(t.cancel)
		delete(s.gameTimers, id)
	}
}

// ---------------------------------------------------------------
// Match registry
// ---------------------------------------------------------------

func (s *Supervisor) TrackDuel(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duels[matchID] = true
}

func (s *Supervisor) UntrackDuel(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.duels, matchID)
	if t := s.duelTimers[matchID]; t != nil {
		close(t.cancel)
		delete(s.duelTimers, matchID)
	}
}

func (s *Supervisor) TrackGame(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[gameID] = true
}

func (s *Supervisor) UntrackGame(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, gameID)
	if t := s.gameTimers[gameID]; t != nil {
		close(t.cancel)
		delete(s.gameTimers, gameID)
	}
}

// ---------------------------------------------------------------
// Round deadline timers
// ---------------------------------------------------------------

// ArmDuelTimer starts the deadline countdown for a duel round,
// replacing any timer armed for a previous round of the same match.
func (s *Supervisor) ArmDuelTimer(matchID string, round int) {
	s.mu.Lock()
	if existing := s.duelTimers[matchID]; existing != nil {
		if existing.round == round {
			s.mu.Unlock()
			return
		}
		close(existing.cancel)
	}
	t := &roundTimer{round: round, cancel: make(chan struct{})}
	s.duelTimers[matchID] = t
	s.mu.Unlock()

	go func() {
		select {
		case <-time.After(RoundTimeout):
			s.handleDuelDeadline(matchID, round)
		case <-t.cancel:
		}
	}()
}

// CancelDuelTimer drops the pending deadline for a match, typically
// because the round resolved before it expired.
func (s *Supervisor) CancelDuelTimer(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.duelTimers[matchID]; t != nil {
		close(t.cancel)
		delete(s.duelTimers, matchID)
	}
}

// ArmGameTimer starts the deadline countdown for a multiplayer round.
func (s *Supervisor) ArmGameTimer(gameID string, round int) {
	s.mu.Lock()
	if existing := s.gameTimers[gameID]; existing != nil {
		if existing.round == round {
			s.mu.Unlock()
			return
		}
		close(existing.cancel)
	}
	t := &roundTimer{round: round, cancel: make(chan struct{})}
	s.gameTimers[gameID] = t
	s.mu.Unlock()

	go func() {
		select {
		case <-time.After(RoundTimeout):
			s.handleGameDeadline(gameID, round)
		case <-t.cancel:
		}
	}()
}

// CancelGameTimer drops the pending deadline for a game.
func (s *Supervisor) CancelGameTimer(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.gameTimers[gameID]; t != nil {
		close(t.cancel)
		delete(s.gameTimers, gameID)
	}
}

// handleDuelDeadline fires when a duel round ran out of time. Zero
// guesses eliminates both players with no winner; exactly one missing
// guess eliminates the absentee. All checks rerun inside the
// transaction, so a guess that lands between expiry and commit makes
// this a no-op.
func (s *Supervisor) handleDuelDeadline(matchID string, round int) {
	log.Printf("[DUEL-TIMEOUT] Round %d deadline expired for match %s", round, matchID)
	now := time.Now()
	roundBefore := 0
	updated, err := s.redisClient.UpdateDuelMatch(matchID, func(m *redis_models.DuelMatch) (bool, error) {
		roundBefore = m.Round
		if m.State != redis_models.MatchStatePlaying || m.Round != round {
			return false, nil
		}
		record := m.CurrentRound()
		guessed := 0
		if record != nil {
			guessed = len(record.Guesses)
		}
		if guessed == 0 {
			return EliminateBothDuelPlayers(m, round, now)
		}
		for uid := range m.Players {
			if record.Guesses[uid] == nil {
				return EliminateDuelPlayer(m, uid, round, redis_models.EndCauseTimeout, now)
			}
		}
		return false, nil
	})
	if err != nil {
		log.Printf("[DUEL-TIMEOUT-ERROR] Error applying deadline for match %s: %v", matchID, err)
		return
	}

	s.service.notifyDuel(updated)
	s.service.afterDuelMutation(updated, roundBefore)
}

// handleGameDeadline fires when a multiplayer round ran out of time:
// every player without a guess receives a synthetic zero-point one,
// which completes the round and lets it resolve.
func (s *Supervisor) handleGameDeadline(gameID string, round int) {
	log.Printf("[GAME-TIMEOUT] Round %d deadline expired for game %s", round, gameID)
	now := time.Now()
	roundBefore := 0
	updated, err := s.redisClient.UpdateMultiplayerGame(gameID, func(g *redis_models.MultiplayerGame) (bool, error) {
		roundBefore = g.Round
		committed := false
		for uid := range g.Players {
			ok, err := ApplyGameTimeout(g, uid, round, false, now)
			if err != nil {
				return false, err
			}
			committed = committed || ok
		}
		return committed, nil
	})
	if err != nil {
		log.Printf("[GAME-TIMEOUT-ERROR] Error applying deadline for game %s: %v", gameID, err)
		return
	}

	s.service.notifyGame(updated)
	s.service.afterGameMutation(updated, roundBefore)
}

// ---------------------------------------------------------------
// Disconnection sweep
// ---------------------------------------------------------------

func (s *Supervisor) sweep() {
	now := time.Now()
	s.mu.Lock()
	duelIDs := make([]string, 0, len(s.duels))
	for id := range s.duels {
		duelIDs = append(duelIDs, id)
	}
	gameIDs := make([]string, 0, len(s.games))
	for id := range s.games {
		gameIDs = append(gameIDs, id)
	}
	s.mu.Unlock()

	for _, matchID := range duelIDs {
		s.sweepDuel(matchID, now)
	}
	for _, gameID := range gameIDs {
		s.sweepGame(gameID, now)
	}
}

// sweepDuel eliminates any duel player whose activity timestamp went
// stale without a guess this round.
func (s *Supervisor) sweepDuel(matchID string, now time.Time) {
	m, err := s.redisClient.GetDuelMatch(matchID)
	if err != nil {
		if err == redis.ErrNotFound {
			s.UntrackDuel(matchID)
		}
		return
	}
	if m.State != redis_models.MatchStatePlaying {
		s.UntrackDuel(matchID)
		return
	}

	record := m.CurrentRound()
	for uid, player := range m.Players {
		if record != nil && record.Guesses != nil && record.Guesses[uid] != nil {
			continue
		}
		if now.Sub(player.LastSeen) <= DisconnectThreshold {
			continue
		}

		log.Printf("[DISCONNECT] Player %s silent for over %s in match %s, eliminating", uid, DisconnectThreshold, matchID)
		round := m.Round
		roundBefore := 0
		updated, err := s.redisClient.UpdateDuelMatch(matchID, func(m *redis_models.DuelMatch) (bool, error) {
			roundBefore = m.Round
			player := m.Players[uid]
			if player == nil || now.Sub(player.LastSeen) <= DisconnectThreshold {
				return false, nil
			}
			return EliminateDuelPlayer(m, uid, round, redis_models.EndCauseDisconnect, now)
		})
		if err != nil {
			log.Printf("[DISCONNECT-ERROR] Error eliminating player %s in match %s: %v", uid, matchID, err)
			return
		}
		s.service.notifyDuel(updated)
		s.service.afterDuelMutation(updated, roundBefore)
		return
	}
}

// sweepGame records disconnection guesses for stale multiplayer
// players. The game keeps going for everyone else.
func (s *Supervisor) sweepGame(gameID string, now time.Time) {
	g, err := s.redisClient.GetMultiplayerGame(gameID)
	if err != nil {
		if err == redis.ErrNotFound {
			s.UntrackGame(gameID)
		}
		return
	}
	if g.State != redis_models.MatchStatePlaying {
		s.UntrackGame(gameID)
		return
	}

	record := g.CurrentRound()
	stale := make([]string, 0)
	for uid, player := range g.Players {
		if record != nil && record.Guesses != nil && record.Guesses[uid] != nil {
			continue
		}
		if now.Sub(player.LastSeen) > DisconnectThreshold {
			stale = append(stale, uid)
		}
	}
	if len(stale) == 0 {
		return
	}

	round := g.Round
	roundBefore := 0
	updated, err := s.redisClient.UpdateMultiplayerGame(gameID, func(g *redis_models.MultiplayerGame) (bool, error) {
		roundBefore = g.Round
		committed := false
		for _, uid := range stale {
			player := g.Players[uid]
			if player == nil || now.Sub(player.LastSeen) <= DisconnectThreshold {
				continue
			}
			ok, err := ApplyGameTimeout(g, uid, round, true, now)
			if err != nil {
				return false, err
			}
			committed = committed || ok
		}
		return committed, nil
	})
	if err != nil {
		log.Printf("[DISCONNECT-ERROR] Error sweeping game %s: %v", gameID, err)
		return
	}
	if len(stale) > 0 {
		log.Printf("[DISCONNECT] Marked %d stale player(s) in game %s", len(stale), gameID)
	}
	s.service.notifyGame(updated)
	s.service.afterGameMutation(updated, roundBefore)
}
