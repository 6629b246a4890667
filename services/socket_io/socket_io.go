package socket_io

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
	"gorm.io/gorm"

	"github.com/pedrocchii/birdersplace/services/match"
	"github.com/pedrocchii/birdersplace/services/matchmaking"
	"github.com/pedrocchii/birdersplace/services/redis"
	"github.com/pedrocchii/birdersplace/services/socket_io/handlers"
	socketio_types "github.com/pedrocchii/birdersplace/services/socket_io/types"
	socketio_utils "github.com/pedrocchii/birdersplace/services/socket_io/utils"
)

type MySocketServer socketio_types.SocketServer

func (sio *MySocketServer) Start(router *gin.Engine, db *gorm.DB, redisClient *redis.RedisClient,
	matches *match.Service, queue *matchmaking.Service) {
	c := socket.DefaultServerOptions()
	c.SetServeClient(true)
	// NOTE: higher ping interval and timeout to 1) reduce network load and 2) support slower networks
	c.SetPingInterval(5 * time.Second)
	c.SetPingTimeout(3 * time.Second)
	c.SetMaxHttpBufferSize(1000000)
	c.SetConnectTimeout(10 * time.Second)
	c.SetTransports(types.NewSet("polling", "websocket"))
	c.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	sio.UserConnections = make(map[string]*socket.Socket)

	sio.Sio_server = socket.NewServer(nil, nil)
	sio.Sio_server.On("connection", func(clients ...interface{}) {
		client := clients[0].(*socket.Socket)

		// Check if the client is authenticated
		success, username, nickname := socketio_utils.VerifyUserConnection(client, db)
		if !success {
			return
		}

		// Add connection to map
		(*socketio_types.SocketServer)(sio).AddConnection(username, client)
		fmt.Println("An individual just connected!: ", username)

		// Ranked queue lifecycle
		client.On("join_queue", handlers.HandleJoinQueue(queue, client, username, nickname))
		client.On("leave_queue", handlers.HandleLeaveQueue(queue, client, username))
		client.On("queue_heartbeat", handlers.HandleQueueHeartbeat(queue, client, username))
		client.On("queue_ack", handlers.HandleQueueAck(queue, client, username))

		// Duel subscription and play
		client.On("join_duel", handlers.HandleJoinDuel(redisClient, matches, client, username))
		client.On("duel_guess", handlers.HandleDuelGuess(matches, client, username))
		client.On("duel_heartbeat", handlers.HandleDuelHeartbeat(matches, client, username))
		client.On("duel_retry_round", handlers.HandleDuelRetryRound(matches, client, username))

		// Multiplayer game subscription and play
		client.On("join_game", handlers.HandleJoinGame(redisClient, matches, client, username))
		client.On("game_guess", handlers.HandleGameGuess(matches, client, username))
		client.On("game_heartbeat", handlers.HandleGameHeartbeat(matches, client, username))
		client.On("game_retry_round", handlers.HandleGameRetryRound(matches, client, username))

		// Private rooms
		client.On("create_room", handlers.HandleCreateRoom(redisClient, client, username, nickname))
		client.On("join_room", handlers.HandleJoinRoom(redisClient, client, username, nickname, (*socketio_types.SocketServer)(sio)))
		client.On("leave_room", handlers.HandleLeaveRoom(redisClient, client, username, (*socketio_types.SocketServer)(sio)))
		client.On("start_duel", handlers.HandleStartDuel(redisClient, matches, client, username, (*socketio_types.SocketServer)(sio)))
		client.On("start_game", handlers.HandleStartGame(redisClient, matches, client, username, (*socketio_types.SocketServer)(sio)))

		// NOTE: will remove sio connection from map
		client.On("disconnecting", handlers.HandleDisconnecting(username, queue, (*socketio_types.SocketServer)(sio)))
	})

	router.POST("/socket.io/*f", gin.WrapH(sio.Sio_server.ServeHandler(c)))
	router.GET("/socket.io/*f", gin.WrapH(sio.Sio_server.ServeHandler(c)))

	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				sio.Sio_server.Close(nil)
				os.Exit(0)
			}
		}
	}()

	fmt.Println("Socket server started")
}
