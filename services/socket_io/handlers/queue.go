package handlers

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/socket.io/v2/socket"

	redis_models "github.com/pedrocchii/birdersplace/models/redis"
	"github.com/pedrocchii/birdersplace/services/matchmaking"
)

// Join the ranked duel queue. Pairing may happen synchronously (the
// pool already had a waiting player) or later via the queue sweep; in
// both cases the result arrives as a "match_found" event.
func HandleJoinQueue(queue *matchmaking.Service, client *socket.Socket,
	username, nickname string) func(args ...interface{}) {
	return func(args ...interface{}) {
		log.Printf("[QUEUE-SOCKET] Player %s joining queue", username)

		entry, err := queue.Enqueue(username, nickname)
		if err != nil {
			if errors.Is(err, matchmaking.ErrAlreadyQueued) {
				client.Emit("error", gin.H{"error": "You are already in the queue"})
				return
			}
			log.Printf("[QUEUE-SOCKET-ERROR] Error enqueueing %s: %v", username, err)
			client.Emit("error", gin.H{"error": "Error joining the queue"})
			return
		}

		// an entry left matched by a previous session delivers its match
		// immediately
		if entry.Status == redis_models.QueueStatusMatched {
			client.Emit("duel_found", gin.H{
				"match_id":          entry.MatchID,
				"opponent_uid":      entry.OpponentUID,
				"opponent_nickname": entry.OpponentNickname,
			})
			return
		}

		client.Emit("queue_joined", gin.H{"uid": username})
	}
}

// Leave the queue voluntarily.
func HandleLeaveQueue(queue *matchmaking.Service, client *socket.Socket,
	username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		if err := queue.Cancel(username); err != nil {
			log.Printf("[QUEUE-SOCKET-ERROR] Error cancelling queue for %s: %v", username, err)
			client.Emit("error", gin.H{"error": "Error leaving the queue"})
			return
		}
		client.Emit("queue_left", gin.H{"uid": username})
	}
}

// Periodic liveness signal while waiting on the queue screen. Entries
// that stop heartbeating are evicted by the queue sweep.
func HandleQueueHeartbeat(queue *matchmaking.Service, client *socket.Socket,
	username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		if err := queue.Heartbeat(username); err != nil {
			log.Printf("[QUEUE-SOCKET-ERROR] Error heartbeating %s: %v", username, err)
		}
	}
}

// Acknowledge a delivered match so the queue entry can be cleaned up.
func HandleQueueAck(queue *matchmaking.Service, client *socket.Socket,
	username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		if err := queue.Acknowledge(username); err != nil {
			log.Printf("[QUEUE-SOCKET-ERROR] Error acknowledging match for %s: %v", username, err)
		}
	}
}
