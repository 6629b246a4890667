package handlers

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/socket.io/v2/socket"

	"github.com/pedrocchii/birdersplace/services/match"
	"github.com/pedrocchii/birdersplace/services/redis"
	socketio_utils "github.com/pedrocchii/birdersplace/services/socket_io/utils"
)

// parseGuessArgs extracts (id, lat, lng) from the payload every guess
// event sends: {"match_id"/"game_id": ..., "lat": ..., "lng": ...}.
func parseGuessArgs(args []interface{}, idField string) (id string, lat, lng float64, ok bool) {
	if len(args) < 1 {
		return "", 0, 0, false
	}
	payload, isMap := args[0].(map[string]interface{})
	if !isMap {
		return "", 0, 0, false
	}
	id, _ = payload[idField].(string)
	lat, latOK := payload["lat"].(float64)
	lng, lngOK := payload["lng"].(float64)
	if id == "" || !latOK || !lngOK {
		return "", 0, 0, false
	}
	return id, lat, lng, true
}

// Join the duel's broadcast room and receive the current state. Only
// participants may join.
func HandleJoinDuel(redisClient *redis.RedisClient, matches *match.Service,
	client *socket.Socket, username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		if len(args) < 1 {
			client.Emit("error", gin.H{"error": "Missing match id"})
			return
		}
		matchID, _ := args[0].(string)

		m, err := redisClient.GetDuelMatch(matchID)
		if err != nil {
			if errors.Is(err, redis.ErrNotFound) {
				// explicit deletion signal so clients reset to idle
				client.Emit("match_gone", gin.H{"match_id": matchID})
				return
			}
			log.Printf("[DUEL-SOCKET-ERROR] Error getting match %s: %v", matchID, err)
			client.Emit("error", gin.H{"error": "Error getting match"})
			return
		}
		if m.Players[username] == nil {
			client.Emit("error", gin.H{"error": "You are not part of this match"})
			return
		}

		client.Join(socketio_utils.DuelRoom(matchID))
		matches.HeartbeatDuel(matchID, username)
		client.Emit("duel_state", m)
		log.Printf("[DUEL-SOCKET] Player %s joined duel room %s", username, matchID)
	}
}

// Submit a guess for the current duel round. The resulting state is
// broadcast to the whole room by the notifier, so no reply is emitted
// here beyond errors.
func HandleDuelGuess(matches *match.Service, client *socket.Socket,
	username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		matchID, lat, lng, ok := parseGuessArgs(args, "match_id")
		if !ok {
			client.Emit("error", gin.H{"error": "Invalid guess payload"})
			return
		}

		if _, err := matches.SubmitDuelGuess(matchID, username, lat, lng); err != nil {
			log.Printf("[DUEL-SOCKET-ERROR] Error submitting guess for %s in %s: %v", username, matchID, err)
			client.Emit("error", gin.H{"error": "Error submitting guess"})
			return
		}
	}
}

// Periodic liveness signal while inside a duel.
func HandleDuelHeartbeat(matches *match.Service, client *socket.Socket,
	username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		if len(args) < 1 {
			return
		}
		matchID, _ := args[0].(string)
		if matchID == "" {
			return
		}
		matches.HeartbeatDuel(matchID, username)
	}
}

// Re-attempt sourcing after a "sourcing_failed" event.
func HandleDuelRetryRound(matches *match.Service, client *socket.Socket,
	username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		if len(args) < 1 {
			return
		}
		matchID, _ := args[0].(string)
		if matchID == "" {
			return
		}
		go matches.RetryDuelRound(matchID)
	}
}
