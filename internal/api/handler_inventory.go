package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"housekeeping-backend/internal/inventory"
	"housekeeping-backend/internal/model"
	"housekeeping-backend/internal/store"
)

type inventoryOp func(ctx context.Context, req inventory.Request) (inventory.Result, error)

// inventoryHandler binds a movement request and runs op on it.
func inventoryHandler(op inventoryOp) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req inventory.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c)
			return
		}

		res, err := op(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// GetItems handles GET /api/inventory/items.
func (h *Handler) GetItems(c *gin.Context) {
	items := h.inventory.Items()
	if items == nil {
		items = []model.InventoryItem{}
	}
	c.JSON(http.StatusOK, items)
}

// GetTransactions handles GET /api/inventory/transactions.
func (h *Handler) GetTransactions(c *gin.Context) {
	f := store.TransactionFilter{
		ItemID:       c.Query("item"),
		FacilityName: c.Query("facility"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		f.Limit = limit
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'since' timestamp format. Use RFC3339."})
			return
		}
		f.Since = since
	}

	txs, err := h.inventory.Transactions(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	if txs == nil {
		txs = []model.InventoryTransaction{}
	}
	c.JSON(http.StatusOK, txs)
}
