package postgres

import (
	"time"
)

/*
 * 'User' contains the blueprint definition of a registered player. It
 * references the player's stats ledger row through the username.
 */
type User struct {
	Email        string    `gorm:"primaryKey;size:100;not null"`
	Username     string    `gorm:"size:50;not null;uniqueIndex"`
	Nickname     string    `gorm:"size:50"`
	PasswordHash string    `gorm:"size:255;not null"`
	MemberSince  time.Time `gorm:"default:CURRENT_TIMESTAMP"`

	// Relationship with the player's stats ledger
	PlayerStats PlayerStats `gorm:"foreignKey:Username;references:Username;constraint:OnDelete:CASCADE"`
}
