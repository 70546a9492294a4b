package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

func historyLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > maxHistoryLimit {
		n = maxHistoryLimit
	}
	return n, true
}

// GetPrints handles GET /api/prints.
func (h *Handler) GetPrints(c *gin.Context) {
	limit, ok := historyLimit(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	prints, err := h.Store.RecentPrints(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve prints"})
		return
	}
	c.JSON(http.StatusOK, prints)
}

// GetFaults handles GET /api/faults.
func (h *Handler) GetFaults(c *gin.Context) {
	limit, ok := historyLimit(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	faults, err := h.Store.RecentFaults(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve faults"})
		return
	}
	c.JSON(http.StatusOK, faults)
}
