package matchmaking

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	redis_models "github.com/pedrocchii/birdersplace/models/redis"
	"github.com/pedrocchii/birdersplace/services/match"
	"github.com/pedrocchii/birdersplace/services/redis"
)

const (
	// StaleThreshold is how long a waiting entry may go without a
	// heartbeat before the sweep evicts it. Clients heartbeat every few
	// seconds while on the queue screen, so anything past this is a
	// closed tab or a dead connection.
	StaleThreshold = 30 * time.Second

	// SweepInterval is how often the queue sweep evicts stale entries
	// and pairs whatever is left waiting.
	SweepInterval = 10 * time.Second
)

// ErrAlreadyQueued is returned when a player enqueues while already
// holding a queue entry.
var ErrAlreadyQueued = errors.New("player already in queue")

// Notifier pushes queue events to individual players: their pairing
// result, or their current position while waiting.
type Notifier interface {
	MatchFound(uid string, match *redis_models.DuelMatch)
	QueueUpdate(uid string, position, size int)
}

// Service runs the ranked duel queue: players enqueue, heartbeat while
// waiting, and get paired oldest-first. Pairing is race-safe: the two
// entries are consumed inside one transaction, so two concurrent
// pairing attempts can never both claim the same player.
type Service struct {
	redisClient *redis.RedisClient
	matches     *match.Service
	notifier    Notifier
	scheduler   gocron.Scheduler
}

func NewService(redisClient *redis.RedisClient, matches *match.Service) *Service {
	return &Service{
		redisClient: redisClient,
		matches:     matches,
	}
}

// SetNotifier wires the realtime layer in.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// Start launches the periodic queue sweep.
func (s *Service) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(SweepInterval),
		gocron.NewTask(s.Sweep),
	)
	if err != nil {
		return err
	}
	scheduler.Start()
	s.scheduler = scheduler
	log.Printf("[QUEUE] Queue sweep running every %s", SweepInterval)
	return nil
}

// Stop shuts the sweep down.
func (s *Service) Stop() {
	if s.scheduler != nil {
		_ = s.scheduler.Shutdown()
	}
}

// Enqueue registers a player as waiting and immediately attempts a
// pairing against the current pool.
func (s *Service) Enqueue(uid, nickname string) (*redis_models.QueueEntry, error) {
	existing, err := s.redisClient.GetQueueEntry(uid)
	if err != nil && !errors.Is(err, redis.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.Status == redis_models.QueueStatusMatched {
			// previous match already assigned, hand it back
			return existing, nil
		}
		return nil, ErrAlreadyQueued
	}

	now := time.Now()
	entry := &redis_models.QueueEntry{
		UID:       uid,
		Nickname:  nickname,
		Status:    redis_models.QueueStatusWaiting,
		CreatedAt: now,
		LastSeen:  now,
	}
	if err := s.redisClient.SaveQueueEntry(entry); err != nil {
		return nil, fmt.Errorf("error enqueueing player %s: %v", uid, err)
	}
	log.Printf("[QUEUE] Player %s (%s) joined the queue", uid, nickname)

	s.AttemptMatch(uid)
	s.broadcastPool()
	return entry, nil
}

// broadcastPool tells every waiting player their position so queue
// screens can show progress.
func (s *Service) broadcastPool() {
	if s.notifier == nil {
		return
	}
	waiting, err := s.redisClient.GetWaitingEntries()
	if err != nil {
		log.Printf("[QUEUE-ERROR] Error reading pool for broadcast: %v", err)
		return
	}
	for i, entry := range waiting {
		s.notifier.QueueUpdate(entry.UID, i+1, len(waiting))
	}
}

// Cancel removes a player's waiting entry. Matched entries are left
// alone; the match already exists and the entry is cleaned up once the
// player acknowledges it (or by TTL).
func (s *Service) Cancel(uid string) error {
	entry, err := s.redisClient.GetQueueEntry(uid)
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil
		}
		return err
	}
	if entry.Status == redis_models.QueueStatusMatched {
		return nil
	}
	log.Printf("[QUEUE] Player %s left the queue", uid)
	return s.redisClient.DeleteQueueEntry(uid)
}

// Heartbeat refreshes a waiting player's liveness timestamp.
func (s *Service) Heartbeat(uid string) error {
	entry, err := s.redisClient.GetQueueEntry(uid)
	if err != nil {
		return err
	}
	if entry.Status != redis_models.QueueStatusWaiting {
		return nil
	}
	entry.LastSeen = time.Now()
	return s.redisClient.SaveQueueEntry(entry)
}

// Acknowledge clears a matched entry once the player has received the
// match id and moved on to the duel screen.
func (s *Service) Acknowledge(uid string) error {
	entry, err := s.redisClient.GetQueueEntry(uid)
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil
		}
		return err
	}
	if entry.Status != redis_models.QueueStatusMatched {
		return nil
	}
	return s.redisClient.DeleteQueueEntry(uid)
}

// AttemptMatch tries to pair the given player against the oldest other
// waiting entry. Candidates taken by a concurrent pairing are skipped
// and the next oldest is tried.
func (s *Service) AttemptMatch(uid string) {
	waiting, err := s.redisClient.GetWaitingEntries()
	if err != nil {
		log.Printf("[QUEUE-ERROR] Error reading waiting entries: %v", err)
		return
	}

	for _, candidate := range waiting {
		if candidate.UID == uid {
			continue
		}
		if s.pair(uid, candidate.UID) {
			return
		}
	}
}

// pair consumes both queue entries and starts the duel. Returns false
// when the candidate was no longer available.
func (s *Service) pair(callerUID, opponentUID string) bool {
	created, err := s.redisClient.PairPlayers(callerUID, opponentUID,
		func(caller, opponent *redis_models.QueueEntry) *redis_models.DuelMatch {
			return match.NewDuelMatch(caller.UID, caller.Nickname, opponent.UID, opponent.Nickname, true)
		})
	if err != nil {
		if errors.Is(err, redis.ErrCandidateTaken) {
			return false
		}
		log.Printf("[QUEUE-ERROR] Error pairing %s with %s: %v", callerUID, opponentUID, err)
		return false
	}

	log.Printf("[QUEUE-SUCCESS] Paired %s with %s into match %s", callerUID, opponentUID, created.ID)

	s.matches.Supervisor.TrackDuel(created.ID)
	go s.matches.StartDuelRound(created.ID, 1)

	if s.notifier != nil {
		s.notifier.MatchFound(callerUID, created)
		s.notifier.MatchFound(opponentUID, created)
	}
	return true
}

// Sweep evicts waiting entries whose heartbeat went stale and then
// pairs the remaining pool oldest-first. This is the backstop for
// players whose own pairing attempt raced and lost: the pool never
// sits with two waiting entries for more than one sweep interval.
func (s *Service) Sweep() {
	now := time.Now()
	waiting, err := s.redisClient.GetWaitingEntries()
	if err != nil {
		log.Printf("[QUEUE-ERROR] Error reading queue for sweep: %v", err)
		return
	}

	pool := waiting[:0]
	for _, entry := range waiting {
		if entry.IsStale(now, StaleThreshold) {
			log.Printf("[QUEUE] Evicting stale entry for player %s", entry.UID)
			if err := s.redisClient.DeleteQueueEntry(entry.UID); err != nil {
				log.Printf("[QUEUE-ERROR] Error evicting player %s: %v", entry.UID, err)
			}
			continue
		}
		pool = append(pool, entry)
	}

	for len(pool) >= 2 {
		if s.pair(pool[0].UID, pool[1].UID) {
			pool = pool[2:]
			continue
		}
		// first candidate pair raced away, drop the head and retry
		pool = pool[1:]
	}

	s.broadcastPool()
}
