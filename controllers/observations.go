package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pedrocchii/birdersplace/services/sourcing"
)

// @Summary Source a single-player round
// @Description Returns 8 bird observations clustered around a hidden location. The first item carries the coordinates guesses score against.
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {object} object{items=[]object{id=integer,photo=string,lat=number,lon=number,species=string}}
// @Failure 502 {object} object{error=string}
// @Router /auth/observations/round [get]
// @Security ApiKeyAuth
func GetObservationRound(sourcer *sourcing.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := sourcer.LoadRound(c.Request.Context(), sourcing.RandomSeed{})
		if err != nil {
			if errors.Is(err, sourcing.ErrNoCluster) {
				c.JSON(http.StatusBadGateway, gin.H{"error": "Could not find a suitable observation cluster, try again"})
				return
			}
			log.Printf("[OBSERVATIONS-ERROR] Error sourcing round: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Error sourcing observations"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}
