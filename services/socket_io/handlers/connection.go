package handlers

import (
	"log"

	"github.com/pedrocchii/birdersplace/services/matchmaking"
	socketio_types "github.com/pedrocchii/birdersplace/services/socket_io/types"
)

// Function to handle socket.io client disconnections. The connection is
// dropped from the map and any waiting queue entry is cancelled; active
// matches are left to the disconnection sweep, which gives the player
// the full threshold to reconnect.
func HandleDisconnecting(username string, queue *matchmaking.Service,
	sio *socketio_types.SocketServer) func(args ...interface{}) {
	return func(args ...interface{}) {
		log.Printf("[DISCONNECT] Player %s disconnecting", username)

		sio.RemoveConnection(username)

		if err := queue.Cancel(username); err != nil {
			log.Printf("[DISCONNECT-ERROR] Error cancelling queue for %s: %v", username, err)
		}
	}
}
