package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/pedrocchii/birdersplace/controllers"
	"github.com/pedrocchii/birdersplace/middleware"
	"github.com/pedrocchii/birdersplace/services/redis"
	"github.com/pedrocchii/birdersplace/services/sourcing"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *gorm.DB, redisClient *redis.RedisClient, sourcer *sourcing.Client) {
	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes group
	api := router.Group("/")

	api.GET("/ping", controllers.Ping)

	api.POST("/signup", controllers.SignUp(db))

	api.POST("/login", controllers.Login(db))

	api.GET("/leaderboard", controllers.GetLeaderboard(db, redisClient))

	api.GET("/users/:username/stats", controllers.GetPlayerStats(db))

	// Routes that require authentication
	authentication := api.Group("/auth")
	authentication.Use(middleware.AuthRequired)
	{
		authentication.GET("/me", controllers.GetUserPrivateInfo(db))

		authentication.PATCH("/update", controllers.UpdateUserInfo(db))

		// single-player practice round
		authentication.GET("/observations/round", controllers.GetObservationRound(sourcer))
	}
}
