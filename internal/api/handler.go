package api

import (
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"housekeeping-backend/config"
	"housekeeping-backend/internal/booking"
	"housekeeping-backend/internal/dispatch"
	"housekeeping-backend/internal/errs"
	"housekeeping-backend/internal/inventory"
	"housekeeping-backend/internal/parse"
	"housekeeping-backend/internal/state"
	"housekeeping-backend/internal/store"
)

// Deps is everything the handlers call into.
type Deps struct {
	Config    *config.Config
	Store     store.Store
	State     *state.Store
	Dispatch  *dispatch.Service
	Inventory *inventory.Service
	Bookings  *booking.Service
	WebPush   *webpush.Options
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	cfg       *config.Config
	store     store.Store
	state     *state.Store
	dispatch  *dispatch.Service
	inventory *inventory.Service
	bookings  *booking.Service
	webpush   *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		cfg:       d.Config,
		store:     d.Store,
		state:     d.State,
		dispatch:  d.Dispatch,
		inventory: d.Inventory,
		bookings:  d.Bookings,
		webpush:   d.WebPush,
	}
}

// respondError answers with the status the error maps onto. Internal errors
// are logged and their detail kept from the client.
func respondError(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("Error: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

// day reads a date from raw, defaulting to today.
func (h *Handler) day(raw string) (parse.Day, error) {
	if raw == "" {
		return h.dispatch.Today(), nil
	}
	d, err := parse.ParseDay(raw, h.dispatch.Location())
	if err != nil {
		return "", errs.Validation("date", "%v", err)
	}
	return d, nil
}
