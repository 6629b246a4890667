package socketio_utils

import (
	"math/rand"

	"github.com/zishang520/socket.io/v2/socket"
)

// DuelRoom is the socket.io room every subscriber of a duel joins.
func DuelRoom(matchID string) socket.Room {
	return socket.Room("duel:" + matchID)
}

// GameRoom is the socket.io room of a multiplayer game.
func GameRoom(gameID string) socket.Room {
	return socket.Room("game:" + gameID)
}

// LobbyRoom is the socket.io room of a private lobby.
func LobbyRoom(roomID string) socket.Room {
	return socket.Room("lobby:" + roomID)
}

// codeAlphabet avoids ambiguous characters (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateRoomCode builds a 6-character join code.
func GenerateRoomCode() string {
	code := make([]byte, 6)
	for i := range code {
		code[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(code)
}
