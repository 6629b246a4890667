package redis

import "time"

type QueueStatus string

const (
	QueueStatusWaiting QueueStatus = "waiting"
	QueueStatusMatched QueueStatus = "matched"
)

// QueueEntry represents one player waiting for a ranked duel.
// There is at most one entry per player (keyed by uid).
type QueueEntry struct {
	UID              string      `json:"uid"`
	Nickname         string      `json:"nickname,omitempty"`
	Status           QueueStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	LastSeen         time.Time   `json:"last_seen"`
	MatchID          string      `json:"match_id,omitempty"`
	OpponentUID      string      `json:"opponent_uid,omitempty"`
	OpponentNickname string      `json:"opponent_nickname,omitempty"`
}

// IsStale reports whether the entry's heartbeat is older than the given
// threshold. Stale waiting entries are evicted by the queue sweep.
func (e *QueueEntry) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(e.LastSeen) > threshold
}
