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

// Join a multiplayer game's broadcast room and receive the current
// state. Only participants may join.
func HandleJoinGame(redisClient *redis.RedisClient, matches *match.Service,
	client *socket.Socket, username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		if len(args) < 1 {
			client.Emit("error", gin.H{"error": "Missing game id"})
			return
		}
		gameID, _ := args[0].(string)

		g, err := redisClient.GetMultiplayerGame(gameID)
		if err != nil {
			if errors.Is(err, redis.ErrNotFound) {
				// explicit deletion signal so clients reset to idle
				client.Emit("game_gone", gin.H{"game_id": gameID})
				return
			}
			log.Printf("[GAME-SOCKET-ERROR] Error getting game %s: %v", gameID, err)
			client.Emit("error", gin.H{"error": "Error getting game"})
			return
		}
		if g.Players[username] == nil {
			client.Emit("error", gin.H{"error": "You are not part of this game"})
			return
		}

		client.Join(socketio_utils.GameRoom(gameID))
		matches.HeartbeatGame(gameID, username)
		client.Emit("game_state", g)
		log.Printf("[GAME-SOCKET] Player %s joined game room %s", username, gameID)
	}
}

// Submit a guess for the current game round.
func HandleGameGuess(matches *match.Service, client *socket.Socket,
	username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		gameID, lat, lng, ok := parseGuessArgs(args, "game_id")
		if !ok {
			client.Emit("error", gin.H{"error": "Invalid guess payload"})
			return
		}

		if _, err := matches.SubmitGameGuess(gameID, username, lat, lng); err != nil {
			log.Printf("[GAME-SOCKET-ERROR] Error submitting guess for %s in %s: %v", username, gameID, err)
			client.Emit("error", gin.H{"error": "Error submitting guess"})
			return
		}
	}
}

// Periodic liveness signal while inside a game.
func HandleGameHeartbeat(matches *match.Service, client *socket.Socket,
	username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		if len(args) < 1 {
			return
		}
		gameID, _ := args[0].(string)
		if gameID == "" {
			return
		}
		matches.HeartbeatGame(gameID, username)
	}
}

// Re-attempt sourcing after a "sourcing_failed" event.
func HandleGameRetryRound(matches *match.Service, client *socket.Socket,
	username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		if len(args) < 1 {
			return
		}
		gameID, _ := args[0].(string)
		if gameID == "" {
			return
		}
		go matches.RetryGameRound(gameID)
	}
}
