package redis

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	redis_models "github.com/pedrocchii/birdersplace/models/redis"
	redis_utils "github.com/pedrocchii/birdersplace/services/redis/utils"
)

// Every mutation of a shared document goes through an optimistic
// read-modify-write transaction: WATCH the key, read current state,
// decide, then conditionally write inside MULTI/EXEC. If another writer
// commits first the EXEC fails and the whole function is re-run against
// fresh state. Update functions therefore re-verify their precondition
// on every run and return commit=false when the work was already done
// by a concurrent writer (lost races are normal flow, not errors).

const maxTxRetries = 16

// ErrTxRetriesExceeded means a transaction kept losing the optimistic
// race. With bounded writers per document this indicates a stuck loop,
// not ordinary contention.
var ErrTxRetriesExceeded = errors.New("transaction retries exceeded")

// ErrCandidateTaken is returned when matchmaking re-verification finds
// that one of the two queue entries is no longer waiting.
var ErrCandidateTaken = errors.New("queue candidate no longer waiting")

// RunTransaction executes fn under WATCH of the given keys, retrying
// on optimistic-concurrency conflicts.
func (rc *RedisClient) RunTransaction(fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := rc.client.Watch(rc.ctx, fn, keys...)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return ErrTxRetriesExceeded
}

func (rc *RedisClient) getJSONTx(tx *redis.Tx, key string, dest interface{}) error {
	data, err := tx.Get(rc.ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return fmt.Errorf("error getting %s in transaction: %v", key, err)
	}
	return json.Unmarshal(data, dest)
}

func (rc *RedisClient) setJSONPipe(pipe redis.Pipeliner, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error marshaling %s: %v", key, err)
	}
	pipe.Set(rc.ctx, key, data, documentTTL)
	return nil
}

// UpdateDuelMatch runs update against the current match state inside a
// transaction. The updated (or unchanged, when commit=false) document is
// returned so callers can broadcast the committed snapshot.
func (rc *RedisClient) UpdateDuelMatch(matchID string,
	update func(match *redis_models.DuelMatch) (commit bool, err error)) (*redis_models.DuelMatch, error) {

	key := redis_utils.FormatDuelMatchKey(matchID)
	var result *redis_models.DuelMatch

	err := rc.RunTransaction(func(tx *redis.Tx) error {
		var match redis_models.DuelMatch
		if err := rc.getJSONTx(tx, key, &match); err != nil {
			return err
		}
		commit, err := update(&match)
		if err != nil {
			return err
		}
		result = &match
		if !commit {
			return nil
		}
		_, err = tx.TxPipelined(rc.ctx, func(pipe redis.Pipeliner) error {
			return rc.setJSONPipe(pipe, key, &match)
		})
		return err
	}, key)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateMultiplayerGame is UpdateDuelMatch for free-for-all games.
func (rc *RedisClient) UpdateMultiplayerGame(gameID string,
	update func(game *redis_models.MultiplayerGame) (commit bool, err error)) (*redis_models.MultiplayerGame, error) {

	key := redis_utils.FormatGameKey(gameID)
	var result *redis_models.MultiplayerGame

	err := rc.RunTransaction(func(tx *redis.Tx) error {
		var game redis_models.MultiplayerGame
		if err := rc.getJSONTx(tx, key, &game); err != nil {
			return err
		}
		commit, err := update(&game)
		if err != nil {
			return err
		}
		result = &game
		if !commit {
			return nil
		}
		_, err = tx.TxPipelined(rc.ctx, func(pipe redis.Pipeliner) error {
			return rc.setJSONPipe(pipe, key, &game)
		})
		return err
	}, key)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateRoom runs update against a private room document.
func (rc *RedisClient) UpdateRoom(roomID string,
	update func(room *redis_models.Room) (commit bool, err error)) (*redis_models.Room, error) {

	key := redis_utils.FormatRoomKey(roomID)
	var result *redis_models.Room

	err := rc.RunTransaction(func(tx *redis.Tx) error {
		var room redis_models.Room
		if err := rc.getJSONTx(tx, key, &room); err != nil {
			return err
		}
		commit, err := update(&room)
		if err != nil {
			return err
		}
		result = &room
		if !commit {
			return nil
		}
		_, err = tx.TxPipelined(rc.ctx, func(pipe redis.Pipeliner) error {
			return rc.setJSONPipe(pipe, key, &room)
		})
		return err
	}, key)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// PairPlayers atomically consumes two waiting queue entries and creates
// the duel match produced by buildMatch. Both entries are re-verified as
// still waiting inside the transaction; if either was taken by a
// concurrent pairing attempt, ErrCandidateTaken is returned and the
// caller re-attempts on the next pool update.
func (rc *RedisClient) PairPlayers(callerUID, opponentUID string,
	buildMatch func(caller, opponent *redis_models.QueueEntry) *redis_models.DuelMatch) (*redis_models.DuelMatch, error) {

	callerKey := redis_utils.FormatQueueEntryKey(callerUID)
	opponentKey := redis_utils.FormatQueueEntryKey(opponentUID)
	var match *redis_models.DuelMatch

	err := rc.RunTransaction(func(tx *redis.Tx) error {
		match = nil

		var caller, opponent redis_models.QueueEntry
		if err := rc.getJSONTx(tx, callerKey, &caller); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrCandidateTaken
			}
			return err
		}
		if err := rc.getJSONTx(tx, opponentKey, &opponent); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrCandidateTaken
			}
			return err
		}
		if caller.Status != redis_models.QueueStatusWaiting ||
			opponent.Status != redis_models.QueueStatusWaiting {
			return ErrCandidateTaken
		}

		created := buildMatch(&caller, &opponent)

		caller.Status = redis_models.QueueStatusMatched
		caller.MatchID = created.ID
		caller.OpponentUID = opponent.UID
		caller.OpponentNickname = opponent.Nickname

		opponent.Status = redis_models.QueueStatusMatched
		opponent.MatchID = created.ID
		opponent.OpponentUID = caller.UID
		opponent.OpponentNickname = caller.Nickname

		_, err := tx.TxPipelined(rc.ctx, func(pipe redis.Pipeliner) error {
			if err := rc.setJSONPipe(pipe, redis_utils.FormatDuelMatchKey(created.ID), created); err != nil {
				return err
			}
			if err := rc.setJSONPipe(pipe, callerKey, &caller); err != nil {
				return err
			}
			return rc.setJSONPipe(pipe, opponentKey, &opponent)
		})
		if err != nil {
			return err
		}
		match = created
		return nil
	}, callerKey, opponentKey)

	if err != nil {
		return nil, err
	}
	return match, nil
}
