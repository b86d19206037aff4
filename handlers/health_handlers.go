package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vit0-9/domain_mcp/models"
	"github.com/vit0-9/domain_mcp/pkg/tools"
)

type HealthHandler struct {
	version string
}

func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// HealthCheckHandler godoc
// @Summary      Health Check
// @Description  Checks the health of the API.
// @Tags         Monitoring
// @Produce      json
// @Success      200  {object}  models.HealthResponse
// @Router       /health [get]
func (h *HealthHandler) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "UP",
		Version: h.version,
		Tools:   len(tools.AllTools),
	})
}
