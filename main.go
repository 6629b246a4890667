package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/pedrocchii/birdersplace/config"
	_ "github.com/pedrocchii/birdersplace/config/swagger"
	"github.com/pedrocchii/birdersplace/middleware"
	"github.com/pedrocchii/birdersplace/routes"
	"github.com/pedrocchii/birdersplace/services/match"
	"github.com/pedrocchii/birdersplace/services/matchmaking"
	"github.com/pedrocchii/birdersplace/services/redis"
	"github.com/pedrocchii/birdersplace/services/socket_io"
	"github.com/pedrocchii/birdersplace/services/sourcing"
	"github.com/pedrocchii/birdersplace/services/stats"
)

// @title Birders Place API
// @version 1.0
// @description Gin-Gonic server for the Birders Place game API
// @host localhost:8080
// @BasePath /
func main() {
	godotenv.Load()
	log.Println("Setting up server...")

	if os.Getenv("PROD") == "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	gormDB, err := config.ConnectGORM()
	if err != nil {
		log.Fatalf("Error connecting to PostgreSQL: %v", err)
	}
	log.Println("GORM Connected")

	// Only migrate in development or during deployment
	if os.Getenv("MIGRATE_POSTGRES") == "true" {
		log.Println("Migrating PostgreSQL database...")
		if err := config.MigrateDatabase(gormDB); err != nil {
			log.Printf("Warning: Database migration failed: %v", err)
		} else {
			log.Println("Database migrated successfully")
		}
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("Error reading GORM PostgreSQL instance: %v", err)
	}
	defer sqlDB.Close()

	redisClient, err := config.Connect_redis()
	if err != nil {
		log.Fatalf("Error connecting to Redis: %v", err)
	}
	log.Println("Connection to Redis successful")
	defer redis.CloseRedis(redisClient)

	// Domain services
	sourcer := sourcing.NewClient(os.Getenv("INATURALIST_URL"))
	matches := match.NewService(redisClient, sourcer)
	queue := matchmaking.NewService(redisClient, matches)
	ledger := stats.NewService(gormDB, redisClient)
	matches.SetStatsRecorder(ledger)

	r := gin.Default()

	middleware.SetUpMiddleware(r)

	routes.SetupRoutes(r, gormDB, redisClient, sourcer)

	// Realtime layer
	sio := &socket_io.MySocketServer{}
	sio.Start(r, gormDB, redisClient, matches, queue)

	broadcaster := socket_io.NewBroadcaster(sio)
	matches.SetNotifier(broadcaster)
	queue.SetNotifier(broadcaster)

	// Background supervision: round deadlines, disconnections, queue sweep
	if err := matches.Supervisor.Start(); err != nil {
		log.Fatalf("Error starting match supervisor: %v", err)
	}
	defer matches.Supervisor.Stop()
	if err := queue.Start(); err != nil {
		log.Fatalf("Error starting queue sweep: %v", err)
	}
	defer queue.Stop()

	// Configure port
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Error starting server: %v", err)
	}
}
