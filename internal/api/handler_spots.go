package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spotwise-backend/internal/reservation"
	"spotwise-backend/internal/stats"
)

// GetSpots handles GET /api/spots.
func (h *Handler) GetSpots(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Snapshot())
}

// GetStats handles GET /api/stats.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, stats.Compute(h.store.Snapshot()))
}

// GetNearest handles GET /api/nearest?lat=&lng=. A missing or bad location
// yields no nearest spot rather than an error.
func (h *Handler) GetNearest(c *gin.Context) {
	loc, _ := stats.ParseLocation(c.Query("lat"), c.Query("lng"))
	spot, ok := stats.Nearest(h.store.Snapshot(), loc)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"spotId": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"spotId":     spot.ID,
		"spot":       spot,
		"navigation": h.navigator.Navigate(spot),
	})
}

// Reserve handles POST /api/spots/:id/reservation.
func (h *Handler) Reserve(c *gin.Context) {
	var req reservation.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.SpotID = c.Param("id")

	spot, err := h.reservations.Reserve(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusCreated, spot)
}

// CancelReservation handles DELETE /api/spots/:id/reservation.
func (h *Handler) CancelReservation(c *gin.Context) {
	spot, err := h.reservations.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, spot)
}

// GetDurations handles GET /api/reservation/durations.
func (h *Handler) GetDurations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"durations": h.reservations.Durations()})
}
