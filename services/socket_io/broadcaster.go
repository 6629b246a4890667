package socket_io

import (
	"log"

	"github.com/gin-gonic/gin"

	redis_models "github.com/pedrocchii/birdersplace/models/redis"
	socketio_types "github.com/pedrocchii/birdersplace/services/socket_io/types"
	socketio_utils "github.com/pedrocchii/birdersplace/services/socket_io/utils"
)

// Broadcaster pushes committed state to the socket rooms. It is the
// notifier wired into the match and matchmaking services.
type Broadcaster struct {
	Sio *socketio_types.SocketServer
}

func NewBroadcaster(sio *MySocketServer) *Broadcaster {
	return &Broadcaster{Sio: (*socketio_types.SocketServer)(sio)}
}

// DuelUpdated sends the committed duel snapshot to every subscriber of
// the match room.
func (b *Broadcaster) DuelUpdated(m *redis_models.DuelMatch) {
	b.Sio.Sio_server.To(socketio_utils.DuelRoom(m.ID)).Emit("duel_state", m)
}

// GameUpdated sends the committed game snapshot to the game room.
func (b *Broadcaster) GameUpdated(g *redis_models.MultiplayerGame) {
	b.Sio.Sio_server.To(socketio_utils.GameRoom(g.ID)).Emit("game_state", g)
}

// SourcingFailed tells a room its round data could not be sourced so
// clients can offer a retry.
func (b *Broadcaster) SourcingFailed(kind, id string, round int, err error) {
	log.Printf("[BROADCAST] Sourcing failed for %s %s round %d: %v", kind, id, round, err)
	payload := gin.H{"round": round, "error": "Could not source round data"}
	switch kind {
	case "duel":
		payload["match_id"] = id
		b.Sio.Sio_server.To(socketio_utils.DuelRoom(id)).Emit("sourcing_failed", payload)
	case "game":
		payload["game_id"] = id
		b.Sio.Sio_server.To(socketio_utils.GameRoom(id)).Emit("sourcing_failed", payload)
	}
}

// MatchFound delivers a queue pairing to one player's direct
// connection. Players without a live socket learn about the match from
// their matched queue entry on reconnect.
func (b *Broadcaster) MatchFound(uid string, m *redis_models.DuelMatch) {
	conn, exists := b.Sio.GetConnection(uid)
	if !exists {
		log.Printf("[BROADCAST] No live connection for %s, match %s delivered via queue entry", uid, m.ID)
		return
	}
	conn.Emit("duel_found", gin.H{
		"match_id":          m.ID,
		"opponent_uid":      m.OpponentOf(uid),
		"opponent_nickname": nicknameOf(m, m.OpponentOf(uid)),
	})
}

// QueueUpdate tells one waiting player their position in the pool.
func (b *Broadcaster) QueueUpdate(uid string, position, size int) {
	conn, exists := b.Sio.GetConnection(uid)
	if !exists {
		return
	}
	conn.Emit("queue_update", gin.H{"position": position, "size": size})
}

func nicknameOf(m *redis_models.DuelMatch, uid string) string {
	if p := m.Players[uid]; p != nil {
		return p.Nickname
	}
	return ""
}
