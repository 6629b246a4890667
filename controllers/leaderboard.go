package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	models "github.com/pedrocchii/birdersplace/models/postgres"
	"github.com/pedrocchii/birdersplace/services/redis"
)

const defaultLeaderboardSize = 50

type leaderboardRow struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Cups     int    `json:"cups"`
}

// @Summary Cups leaderboard
// @Description Returns the top players ranked by cups
// @Produce json
// @Param limit query int false "Number of rows (default 50)"
// @Success 200 {array} leaderboardRow
// @Failure 500 {object} object{error=string}
// @Router /leaderboard [get]
func GetLeaderboard(db *gorm.DB, redisClient *redis.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultLeaderboardSize
		if raw := c.Query("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
				limit = parsed
			}
		}

		// the ZSET mirror serves the hot path; an empty mirror (fresh
		// Redis) falls back to the ledger table
		entries, err := redisClient.TopCups(limit)
		if err == nil && len(entries) > 0 {
			rows := make([]leaderboardRow, 0, len(entries))
			for i, z := range entries {
				username, _ := z.Member.(string)
				rows = append(rows, leaderboardRow{
					Rank:     i + 1,
					Username: username,
					Cups:     int(z.Score),
				})
			}
			c.JSON(http.StatusOK, rows)
			return
		}

		var stats []models.PlayerStats
		if err := db.Order("cups DESC, username ASC").Limit(limit).Find(&stats).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching leaderboard"})
			return
		}
		rows := make([]leaderboardRow, 0, len(stats))
		for i, row := range stats {
			rows = append(rows, leaderboardRow{Rank: i + 1, Username: row.Username, Cups: row.Cups})
			// re-seed the mirror while we are here
			_ = redisClient.SetLeaderboardCups(row.Username, row.Cups)
		}
		c.JSON(http.StatusOK, rows)
	}
}

// @Summary Player stats
// @Description Returns a player's ranked-ladder record
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} object{username=string,wins=integer,losses=integer,cups=integer}
// @Failure 404 {object} object{error=string}
// @Router /users/{username}/stats [get]
func GetPlayerStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Param("username")

		var user models.User
		if err := db.Where("username = ?", username).First(&user).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		var stats models.PlayerStats
		if err := db.Where("username = ?", username).First(&stats).Error; err != nil {
			// player never finished a ranked duel
			stats = models.PlayerStats{Username: username}
		}

		c.JSON(http.StatusOK, gin.H{
			"username":     username,
			"nickname":     user.Nickname,
			"wins":         stats.Wins,
			"losses":       stats.Losses,
			"cups":         stats.Cups,
			"last_win_at":  stats.LastWinAt,
			"last_loss_at": stats.LastLossAt,
		})
	}
}
