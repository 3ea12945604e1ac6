package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"housekeeping-backend/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint  string `json:"endpoint" binding:"required"`
	P256DH    string `json:"p256dh" binding:"required"`
	Auth      string `json:"auth" binding:"required"`
	StaffName string `json:"staff_name" binding:"required"`
}

// PutSubscription handles the creation or replacement of a subscription.
// A device belongs to one staff member; registering it again moves it.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	if !h.knownStaff(req.StaffName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown staff member"})
		return
	}

	subscription := model.PushSubscription{
		Endpoint:  req.Endpoint,
		P256DH:    req.P256DH,
		Auth:      req.Auth,
		StaffName: req.StaffName,
	}
	if err := h.store.SaveSubscription(c.Request.Context(), subscription); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

func (h *Handler) knownStaff(name string) bool {
	for _, s := range h.state.Current().Staff {
		if s.Name == name {
			return true
		}
	}
	return false
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam returns a query value without URL decoding. Push endpoints
// carry their own escapes and must be matched byte for byte.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription handles the retrieval of a subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	subscription, err := h.store.GetSubscription(c.Request.Context(), raw)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"staff_name": subscription.StaffName})
}
