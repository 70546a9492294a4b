package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"filament-monitor-backend/internal/control"
)

type controlResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PostControl handles POST /api/control. Unknown actions answer 200 with
// success=false; commands that cannot reach the printer answer 503.
func (h *Handler) PostControl(c *gin.Context) {
	var req control.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, controlResponse{Success: false, Message: "Invalid JSON"})
		return
	}

	message, err := h.Control.Execute(req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, controlResponse{Success: true, Message: message})
	case errors.Is(err, control.ErrUnknownAction):
		c.JSON(http.StatusOK, controlResponse{Success: false, Message: "Unknown action"})
	case errors.Is(err, control.ErrMissingFilename):
		c.JSON(http.StatusBadRequest, controlResponse{Success: false, Message: err.Error()})
	default:
		c.JSON(http.StatusServiceUnavailable, controlResponse{Success: false, Message: err.Error()})
	}
}
