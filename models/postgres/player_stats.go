package postgres

import (
	"time"

	"gorm.io/datatypes"
)

/*
 * 'PlayerStats' is the per-player ranked-ladder ledger. It is mutated
 * exactly once per finished matchmaking duel: +5 cups on a win, -5 on a
 * loss (floored at 0). Double-timeout duels and private-room matches
 * never touch it.
 */
type PlayerStats struct {
	Username   string         `gorm:"primaryKey;size:50;not null"`
	Wins       int            `gorm:"default:0"`
	Losses     int            `gorm:"default:0"`
	Cups       int            `gorm:"default:0"`
	LastWinAt  *time.Time     `gorm:""`
	LastLossAt *time.Time     `gorm:""`
	Extra      datatypes.JSON `gorm:"type:jsonb;default:'{}'"`
}
