package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"housekeeping-backend/internal/availability"
	"housekeeping-backend/internal/model"
)

// GetAvailability handles GET /api/availability.
func (h *Handler) GetAvailability(c *gin.Context) {
	req := availability.Request{
		FacilityName:     c.Query("facility"),
		RoomCode:         c.Query("room"),
		ExcludeBookingID: c.Query("exclude"),
	}
	if req.FacilityName == "" || req.RoomCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "facility and room are required"})
		return
	}

	var err error
	if req.Checkin, err = time.Parse(time.RFC3339, c.Query("checkin")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'checkin' timestamp format. Use RFC3339."})
		return
	}
	if req.Checkout, err = time.Parse(time.RFC3339, c.Query("checkout")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'checkout' timestamp format. Use RFC3339."})
		return
	}
	if !req.Checkout.After(req.Checkin) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "checkout must be after checkin"})
		return
	}

	ok, conflicts := h.bookings.Availability(req)
	if conflicts == nil {
		conflicts = []model.Booking{}
	}
	c.JSON(http.StatusOK, gin.H{"available": ok, "conflicts": conflicts})
}

// CreateBooking handles POST /api/bookings.
func (h *Handler) CreateBooking(c *gin.Context) {
	var b model.Booking
	if err := c.ShouldBindJSON(&b); err != nil {
		badRequest(c)
		return
	}

	created, err := h.bookings.Create(c.Request.Context(), b)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateBooking handles PUT /api/bookings/:id.
func (h *Handler) UpdateBooking(c *gin.Context) {
	var b model.Booking
	if err := c.ShouldBindJSON(&b); err != nil {
		badRequest(c)
		return
	}

	updated, err := h.bookings.Update(c.Request.Context(), c.Param("id"), b)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
