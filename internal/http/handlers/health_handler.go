package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Status string `json:"status" example:"UP"`
}

// HealthCheck godoc
// @ID          healthCheck
// @Summary     Liveness probe
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Router      /health-check [get]
func HealthCheck(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{Status: "UP"})
}
