package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	resp := gin.H{
		"loading":       h.store.Loading(),
		"version":       h.store.Version(),
		"capture":       nil,
		"lastIngestion": nil,
	}
	if h.capture != nil {
		resp["capture"] = h.capture.Status()
	}
	if report, ok := h.ingest.LastReport(); ok {
		resp["lastIngestion"] = report
	}
	c.JSON(http.StatusOK, resp)
}

// GetHistory handles GET /api/history?limit=N.
func (h *Handler) GetHistory(c *gin.Context) {
	if h.history == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "history is disabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	snaps, err := h.history.ListSnapshots(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve history"})
		return
	}

	events, err := h.history.ListReservationEvents(c.Request.Context(), c.Query("spotId"), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve reservation events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshots": snaps, "reservations": events})
}
