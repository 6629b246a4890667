package stats

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	postgres_models "github.com/pedrocchii/birdersplace/models/postgres"
	redis_models "github.com/pedrocchii/birdersplace/models/redis"
	"github.com/pedrocchii/birdersplace/services/match"
	"github.com/pedrocchii/birdersplace/services/redis"
)

const (
	// CupsPerWin / CupsPerLoss are the fixed ladder stakes of a ranked
	// duel. Cups never go below zero.
	CupsPerWin  = 5
	CupsPerLoss = 5
)

// Service applies duel results to the persistent ladder: wins, losses
// and cups in PostgreSQL, mirrored into the Redis leaderboard ZSET.
type Service struct {
	db          *gorm.DB
	redisClient *redis.RedisClient
}

func NewService(db *gorm.DB, redisClient *redis.RedisClient) *Service {
	return &Service{db: db, redisClient: redisClient}
}

// ProcessDuelCompletion records the result of a finished ranked duel
// exactly once. The claim is a transactional check-and-set on the match
// document itself: only the caller whose transaction flips the
// stats-processed flag goes on to write the ledger, so any number of
// concurrent observers of the same termination produce one update.
// Friendly matches and double timeouts never reach the ledger.
func (s *Service) ProcessDuelCompletion(matchID string) {
	claimed := false
	m, err := s.redisClient.UpdateDuelMatch(matchID, func(m *redis_models.DuelMatch) (bool, error) {
		ok, err := match.MarkStatsProcessed(m)
		claimed = ok
		return ok, err
	})
	if err != nil {
		log.Printf("[STATS-ERROR] Error claiming match %s for stats: %v", matchID, err)
		return
	}
	// claimed reflects the reducer run that actually committed; when a
	// concurrent observer won the flag, our run saw it set and backed off
	if !claimed || m == nil || m.WinnerUID == "" {
		return
	}

	winnerUID := m.WinnerUID
	loserUID := m.OpponentOf(winnerUID)
	if loserUID == "" {
		log.Printf("[STATS-ERROR] Match %s has winner %s but no opponent", matchID, winnerUID)
		return
	}

	if err := s.applyDuelResult(winnerUID, loserUID); err != nil {
		log.Printf("[STATS-ERROR] Error writing ledger for match %s: %v", matchID, err)
		return
	}
	log.Printf("[STATS-SUCCESS] Match %s recorded: winner %s, loser %s", matchID, winnerUID, loserUID)
}

// applyDuelResult updates both ledger rows in one database transaction
// and mirrors the new cups balances into the leaderboard.
func (s *Service) applyDuelResult(winnerUID, loserUID string) error {
	now := time.Now()
	var winnerCups, loserCups int

	err := s.db.Transaction(func(tx *gorm.DB) error {
		winner, err := lockStatsRow(tx, winnerUID)
		if err != nil {
			return err
		}
		loser, err := lockStatsRow(tx, loserUID)
		if err != nil {
			return err
		}

		winner.Wins++
		winner.Cups += CupsPerWin
		winner.LastWinAt = &now

		loser.Losses++
		loser.Cups -= CupsPerLoss
		if loser.Cups < 0 {
			loser.Cups = 0
		}
		loser.LastLossAt = &now

		if err := tx.Save(winner).Error; err != nil {
			return fmt.Errorf("error saving winner stats: %v", err)
		}
		if err := tx.Save(loser).Error; err != nil {
			return fmt.Errorf("error saving loser stats: %v", err)
		}

		winnerCups = winner.Cups
		loserCups = loser.Cups
		return nil
	})
	if err != nil {
		return err
	}

	// leaderboard mirror is best-effort; the ZSET converges on the next
	// update for the same player
	if err := s.redisClient.SetLeaderboardCups(winnerUID, winnerCups); err != nil {
		log.Printf("[STATS-ERROR] Error mirroring cups for %s: %v", winnerUID, err)
	}
	if err := s.redisClient.SetLeaderboardCups(loserUID, loserCups); err != nil {
		log.Printf("[STATS-ERROR] Error mirroring cups for %s: %v", loserUID, err)
	}
	return nil
}

// lockStatsRow fetches a player's ledger row FOR UPDATE, creating it on
// first contact with the ladder.
func lockStatsRow(tx *gorm.DB, username string) (*postgres_models.PlayerStats, error) {
	var row postgres_models.PlayerStats
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("username = ?", username).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		row = postgres_models.PlayerStats{Username: username}
		if err := tx.Create(&row).Error; err != nil {
			return nil, fmt.Errorf("error creating stats row for %s: %v", username, err)
		}
		return &row, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading stats row for %s: %v", username, err)
	}
	return &row, nil
}

// GetPlayerStats returns a player's ledger row, zero-valued when the
// player never played a ranked duel.
func (s *Service) GetPlayerStats(username string) (*postgres_models.PlayerStats, error) {
	var row postgres_models.PlayerStats
	err := s.db.Where("username = ?", username).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return &postgres_models.PlayerStats{Username: username}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading stats for %s: %v", username, err)
	}
	return &row, nil
}
