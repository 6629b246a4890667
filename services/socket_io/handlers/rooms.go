package handlers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/socket.io/v2/socket"

	redis_models "github.com/pedrocchii/birdersplace/models/redis"
	"github.com/pedrocchii/birdersplace/services/match"
	"github.com/pedrocchii/birdersplace/services/redis"
	socketio_types "github.com/pedrocchii/birdersplace/services/socket_io/types"
	socketio_utils "github.com/pedrocchii/birdersplace/services/socket_io/utils"
)

// Create a private room and become its host. The reply carries the
// 6-character join code to share.
func HandleCreateRoom(redisClient *redis.RedisClient, client *socket.Socket,
	username, nickname string) func(args ...interface{}) {
	return func(args ...interface{}) {
		var code string
		for attempt := 0; attempt < 5; attempt++ {
			candidate := socketio_utils.GenerateRoomCode()
			if _, err := redisClient.GetRoomIDByCode(candidate); errors.Is(err, redis.ErrNotFound) {
				code = candidate
				break
			}
		}
		if code == "" {
			client.Emit("error", gin.H{"error": "Could not allocate a room code"})
			return
		}

		now := time.Now()
		room := &redis_models.Room{
			ID:        fmt.Sprintf("room_%d_%s", now.UnixMilli(), username),
			Code:      code,
			HostUID:   username,
			CreatedAt: now,
			State:     redis_models.RoomStateLobby,
			Players: []redis_models.RoomPlayer{
				{UID: username, Nickname: nickname, JoinedAt: now},
			},
		}
		if err := redisClient.SaveRoom(room); err != nil {
			log.Printf("[ROOM-ERROR] Error creating room for %s: %v", username, err)
			client.Emit("error", gin.H{"error": "Error creating room"})
			return
		}

		client.Join(socketio_utils.LobbyRoom(room.ID))
		client.Emit("room_update", room)
		log.Printf("[ROOM-SUCCESS] Player %s created room %s (code %s)", username, room.ID, code)
	}
}

// Join a room by its code. Full rooms and rooms whose session already
// started are rejected.
func HandleJoinRoom(redisClient *redis.RedisClient, client *socket.Socket,
	username, nickname string, sio *socketio_types.SocketServer) func(args ...interface{}) {
	return func(args ...interface{}) {
		if len(args) < 1 {
			client.Emit("error", gin.H{"error": "Missing room code"})
			return
		}
		code, _ := args[0].(string)

		roomID, err := redisClient.GetRoomIDByCode(code)
		if err != nil {
			client.Emit("error", gin.H{"error": "Room not found"})
			return
		}

		updated, err := redisClient.UpdateRoom(roomID, func(room *redis_models.Room) (bool, error) {
			if room.State != redis_models.RoomStateLobby {
				return false, errors.New("room already started")
			}
			if room.HasPlayer(username) {
				return false, nil
			}
			if len(room.Players) >= redis_models.MaxPlayersPerGame {
				return false, errors.New("room is full")
			}
			room.Players = append(room.Players, redis_models.RoomPlayer{
				UID:      username,
				Nickname: nickname,
				JoinedAt: time.Now(),
			})
			return true, nil
		})
		if err != nil {
			client.Emit("error", gin.H{"error": err.Error()})
			return
		}

		client.Join(socketio_utils.LobbyRoom(roomID))
		sio.Sio_server.To(socketio_utils.LobbyRoom(roomID)).Emit("room_update", updated)
		log.Printf("[ROOM] Player %s joined room %s", username, roomID)
	}
}

// Leave a room voluntarily. The host leaving hands the room to the
// longest-standing remaining player; the last player leaving deletes it.
func HandleLeaveRoom(redisClient *redis.RedisClient, client *socket.Socket,
	username string, sio *socketio_types.SocketServer) func(args ...interface{}) {
	return func(args ...interface{}) {
		if len(args) < 1 {
			client.Emit("error", gin.H{"error": "Missing room id"})
			return
		}
		roomID, _ := args[0].(string)

		updated, err := redisClient.UpdateRoom(roomID, func(room *redis_models.Room) (bool, error) {
			if !room.HasPlayer(username) {
				return false, nil
			}
			remaining := room.Players[:0]
			for _, p := range room.Players {
				if p.UID != username {
					remaining = append(remaining, p)
				}
			}
			room.Players = remaining
			if room.HostUID == username && len(room.Players) > 0 {
				room.HostUID = room.Players[0].UID
			}
			return true, nil
		})
		if err != nil {
			if errors.Is(err, redis.ErrNotFound) {
				return
			}
			log.Printf("[ROOM-ERROR] Error leaving room %s: %v", roomID, err)
			client.Emit("error", gin.H{"error": "Error leaving room"})
			return
		}

		client.Leave(socketio_utils.LobbyRoom(roomID))
		if updated != nil && len(updated.Players) == 0 {
			if err := redisClient.DeleteRoom(updated); err != nil {
				log.Printf("[ROOM-ERROR] Error deleting empty room %s: %v", roomID, err)
			}
			return
		}
		sio.Sio_server.To(socketio_utils.LobbyRoom(roomID)).Emit("room_update", updated)
		log.Printf("[ROOM] Player %s left room %s", username, roomID)
	}
}

// Start a 1v1 duel from the room. Host only, and the room must hold
// exactly two players. Friendly duels never touch the cups ledger.
func HandleStartDuel(redisClient *redis.RedisClient, matches *match.Service,
	client *socket.Socket, username string, sio *socketio_types.SocketServer) func(args ...interface{}) {
	return func(args ...interface{}) {
		if len(args) < 1 {
			client.Emit("error", gin.H{"error": "Missing room id"})
			return
		}
		roomID, _ := args[0].(string)

		var created *redis_models.DuelMatch
		updated, err := redisClient.UpdateRoom(roomID, func(room *redis_models.Room) (bool, error) {
			if room.HostUID != username {
				return false, errors.New("only the host can start the duel")
			}
			if room.State != redis_models.RoomStateLobby {
				return false, errors.New("room already started")
			}
			if len(room.Players) != 2 {
				return false, errors.New("a duel needs exactly 2 players")
			}
			host, opponent := room.Players[0], room.Players[1]
			if host.UID != room.HostUID {
				host, opponent = opponent, host
			}
			created = match.NewDuelMatch(host.UID, host.Nickname, opponent.UID, opponent.Nickname, false)
			room.State = redis_models.RoomStateStarted
			room.DuelMatchID = created.ID
			return true, nil
		})
		if err != nil {
			client.Emit("error", gin.H{"error": err.Error()})
			return
		}

		if err := matches.StartDuel(created); err != nil {
			log.Printf("[ROOM-ERROR] Error starting duel from room %s: %v", roomID, err)
			client.Emit("error", gin.H{"error": "Error starting duel"})
			return
		}

		sio.Sio_server.To(socketio_utils.LobbyRoom(roomID)).Emit("duel_started", gin.H{
			"room_id":  updated.ID,
			"match_id": created.ID,
		})
		log.Printf("[ROOM-SUCCESS] Duel %s started from room %s", created.ID, roomID)
	}
}

// Start a free-for-all game with everyone in the room. Host only,
// 2-10 players.
func HandleStartGame(redisClient *redis.RedisClient, matches *match.Service,
	client *socket.Socket, username string, sio *socketio_types.SocketServer) func(args ...interface{}) {
	return func(args ...interface{}) {
		if len(args) < 1 {
			client.Emit("error", gin.H{"error": "Missing room id"})
			return
		}
		roomID, _ := args[0].(string)

		var created *redis_models.MultiplayerGame
		updated, err := redisClient.UpdateRoom(roomID, func(room *redis_models.Room) (bool, error) {
			if room.HostUID != username {
				return false, errors.New("only the host can start the game")
			}
			if room.State != redis_models.RoomStateLobby {
				return false, errors.New("room already started")
			}
			game, err := match.NewMultiplayerGame(room.ID, room.HostUID, room.Players)
			if err != nil {
				return false, err
			}
			created = game
			room.State = redis_models.RoomStateStarted
			room.GameID = created.ID
			return true, nil
		})
		if err != nil {
			client.Emit("error", gin.H{"error": err.Error()})
			return
		}

		if err := matches.StartGame(created); err != nil {
			log.Printf("[ROOM-ERROR] Error starting game from room %s: %v", roomID, err)
			client.Emit("error", gin.H{"error": "Error starting game"})
			return
		}

		sio.Sio_server.To(socketio_utils.LobbyRoom(roomID)).Emit("game_started", gin.H{
			"room_id": updated.ID,
			"game_id": created.ID,
		})
		log.Printf("[ROOM-SUCCESS] Game %s started from room %s", created.ID, roomID)
	}
}
