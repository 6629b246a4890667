package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	redis_models "github.com/pedrocchii/birdersplace/models/redis"
	redis_utils "github.com/pedrocchii/birdersplace/services/redis/utils"
)

// documentTTL keeps abandoned documents from accumulating forever.
const documentTTL = 24 * time.Hour

// ErrNotFound is returned when a requested document does not exist.
// Observers treat it either as "not yet ready" (round data) or as an
// explicit deletion signal (match gone), per the caller's context.
var ErrNotFound = errors.New("document not found")

// RedisClient handles all operations against the shared document store:
// queue entries, duel matches, multiplayer games and private rooms, each
// stored as a JSON blob under a typed key.
type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisClient creates a new Redis client instance
func NewRedisClient(addr string, db int) *RedisClient {
	var client *redis.Client
	if addr != "localhost:6379" {
		log.Println("Connecting to remote Redis...")
		opt, err := redis.ParseURL(addr)
		if err != nil {
			panic("Error parsing Redis URL")
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		})
	}
	return &RedisClient{
		client: client,
		ctx:    context.Background(),
	}
}

func (rc *RedisClient) getJSON(key string, dest interface{}) error {
	data, err := rc.client.Get(rc.ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return fmt.Errorf("error getting %s: %v", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("error unmarshaling %s: %v", key, err)
	}
	return nil
}

func (rc *RedisClient) setJSON(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error marshaling %s: %v", key, err)
	}
	return rc.client.Set(rc.ctx, key, data, documentTTL).Err()
}

// ---------------------------------------------------------------
// Queue entries
// ---------------------------------------------------------------

// SaveQueueEntry stores a queue entry and indexes it by enqueue time.
// Key format: "duel_queue:{uid}"
func (rc *RedisClient) SaveQueueEntry(entry *redis_models.QueueEntry) error {
	key := redis_utils.FormatQueueEntryKey(entry.UID)
	if err := rc.setJSON(key, entry); err != nil {
		return fmt.Errorf("error saving queue entry: %v", err)
	}
	return rc.client.ZAdd(rc.ctx, redis_utils.FormatQueueIndexKey(), redis.Z{
		Score:  float64(entry.CreatedAt.UnixMilli()),
		Member: entry.UID,
	}).Err()
}

// GetQueueEntry retrieves a player's queue entry.
func (rc *RedisClient) GetQueueEntry(uid string) (*redis_models.QueueEntry, error) {
	var entry redis_models.QueueEntry
	if err := rc.getJSON(redis_utils.FormatQueueEntryKey(uid), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteQueueEntry removes a player from the queue unconditionally.
func (rc *RedisClient) DeleteQueueEntry(uid string) error {
	pipe := rc.client.Pipeline()
	pipe.Del(rc.ctx, redis_utils.FormatQueueEntryKey(uid))
	pipe.ZRem(rc.ctx, redis_utils.FormatQueueIndexKey(), uid)
	_, err := pipe.Exec(rc.ctx)
	if err != nil {
		return fmt.Errorf("error deleting queue entry: %v", err)
	}
	return nil
}

// GetWaitingEntries returns all waiting queue entries ordered oldest
// first. Entries whose document vanished are pruned from the index.
func (rc *RedisClient) GetWaitingEntries() ([]*redis_models.QueueEntry, error) {
	uids, err := rc.client.ZRange(rc.ctx, redis_utils.FormatQueueIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading queue index: %v", err)
	}

	var waiting []*redis_models.QueueEntry
	for _, uid := range uids {
		entry, err := rc.GetQueueEntry(uid)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				rc.client.ZRem(rc.ctx, redis_utils.FormatQueueIndexKey(), uid)
				continue
			}
			return nil, err
		}
		if entry.Status == redis_models.QueueStatusWaiting {
			waiting = append(waiting, entry)
		}
	}
	return waiting, nil
}

// ---------------------------------------------------------------
// Duel matches
// ---------------------------------------------------------------

// SaveDuelMatch stores a duel match state in Redis
// Key format: "duel_match:{id}"
// TTL: 24 hours
func (rc *RedisClient) SaveDuelMatch(match *redis_models.DuelMatch) error {
	return rc.setJSON(redis_utils.FormatDuelMatchKey(match.ID), match)
}

// GetDuelMatch retrieves a duel match state from Redis
func (rc *RedisClient) GetDuelMatch(matchID string) (*redis_models.DuelMatch, error) {
	var match redis_models.DuelMatch
	if err := rc.getJSON(redis_utils.FormatDuelMatchKey(matchID), &match); err != nil {
		return nil, err
	}
	return &match, nil
}

// DeleteDuelMatch removes a duel match from Redis
func (rc *RedisClient) DeleteDuelMatch(matchID string) error {
	return rc.client.Del(rc.ctx, redis_utils.FormatDuelMatchKey(matchID)).Err()
}

// ---------------------------------------------------------------
// Multiplayer games
// ---------------------------------------------------------------

// SaveMultiplayerGame stores a game state in Redis
// Key format: "multiplayer_game:{id}"
func (rc *RedisClient) SaveMultiplayerGame(game *redis_models.MultiplayerGame) error {
	return rc.setJSON(redis_utils.FormatGameKey(game.ID), game)
}

// GetMultiplayerGame retrieves a game state from Redis
func (rc *RedisClient) GetMultiplayerGame(gameID string) (*redis_models.MultiplayerGame, error) {
	var game redis_models.MultiplayerGame
	if err := rc.getJSON(redis_utils.FormatGameKey(gameID), &game); err != nil {
		return nil, err
	}
	return &game, nil
}

// DeleteMultiplayerGame removes a game from Redis
func (rc *RedisClient) DeleteMultiplayerGame(gameID string) error {
	return rc.client.Del(rc.ctx, redis_utils.FormatGameKey(gameID)).Err()
}

// ---------------------------------------------------------------
// Rooms
// ---------------------------------------------------------------

// SaveRoom stores a private room and its code index.
func (rc *RedisClient) SaveRoom(room *redis_models.Room) error {
	if err := rc.setJSON(redis_utils.FormatRoomKey(room.ID), room); err != nil {
		return err
	}
	return rc.client.Set(rc.ctx, redis_utils.FormatRoomCodeKey(room.Code), room.ID, documentTTL).Err()
}

// GetRoom retrieves a private room by id.
func (rc *RedisClient) GetRoom(roomID string) (*redis_models.Room, error) {
	var room redis_models.Room
	if err := rc.getJSON(redis_utils.FormatRoomKey(roomID), &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// GetRoomIDByCode resolves a join code to a room id.
func (rc *RedisClient) GetRoomIDByCode(code string) (string, error) {
	roomID, err := rc.client.Get(rc.ctx, redis_utils.FormatRoomCodeKey(code)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("error resolving room code: %v", err)
	}
	return roomID, nil
}

// DeleteRoom removes a room and its code index.
func (rc *RedisClient) DeleteRoom(room *redis_models.Room) error {
	pipe := rc.client.Pipeline()
	pipe.Del(rc.ctx, redis_utils.FormatRoomKey(room.ID))
	pipe.Del(rc.ctx, redis_utils.FormatRoomCodeKey(room.Code))
	_, err := pipe.Exec(rc.ctx)
	if err != nil {
		return fmt.Errorf("error deleting room data: %v", err)
	}
	return nil
}

// ---------------------------------------------------------------
// Cups leaderboard
// ---------------------------------------------------------------

// SetLeaderboardCups mirrors a player's cups balance into the ranked
// ZSET so leaderboard reads never hit PostgreSQL.
func (rc *RedisClient) SetLeaderboardCups(username string, cups int) error {
	return rc.client.ZAdd(rc.ctx, redis_utils.FormatCupsLeaderboardKey(), redis.Z{
		Score:  float64(cups),
		Member: username,
	}).Err()
}

// TopCups returns the highest-ranked players with their cups balances.
func (rc *RedisClient) TopCups(limit int) ([]redis.Z, error) {
	return rc.client.ZRevRangeWithScores(rc.ctx, redis_utils.FormatCupsLeaderboardKey(), 0, int64(limit-1)).Result()
}

// CleanupKeys removes the specified keys from Redis
func (rc *RedisClient) CleanupKeys(keys []string) error {
	for _, key := range keys {
		if err := rc.client.Del(rc.ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to cleanup Redis key %s: %v", key, err)
		}
	}
	return nil
}
