package utils

/**
 * This file contains utility functions to format the keys for Redis
 * (key, value) pairs. It avoids having to call "fmt.Sprintf(...)"
 * with the same format spec every time, potentially confusing the key format.
 */

import "fmt"

func FormatQueueEntryKey(uid string) string {
	return fmt.Sprintf("duel_queue:%s", uid)
}

// FormatQueueIndexKey is the ZSET indexing waiting players by enqueue time.
func FormatQueueIndexKey() string {
	return "duel_queue:index"
}

func FormatDuelMatchKey(matchID string) string {
	return fmt.Sprintf("duel_match:%s", matchID)
}

func FormatGameKey(gameID string) string {
	return fmt.Sprintf("multiplayer_game:%s", gameID)
}

func FormatRoomKey(roomID string) string {
	return fmt.Sprintf("room:%s", roomID)
}

// FormatRoomCodeKey maps a join code to its room id.
func FormatRoomCodeKey(code string) string {
	return fmt.Sprintf("room_code:%s", code)
}

// FormatCupsLeaderboardKey is the ZSET ranking players by cups.
func FormatCupsLeaderboardKey() string {
	return "leaderboard:cups"
}
