package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"housekeeping-backend/internal/dispatch"
	"housekeeping-backend/internal/model"
	"housekeeping-backend/internal/worklist"
)

// GetWorklist handles GET /api/worklist.
func (h *Handler) GetWorklist(c *gin.Context) {
	date, err := h.day(c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	f := worklist.Filter{
		Status: model.TaskStatus(c.Query("status")),
		Type:   model.TaskType(c.Query("type")),
		Staff:  c.Query("staff"),
	}
	if f.Status != "" && !f.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	if f.Type != "" && !f.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown type"})
		return
	}

	entries := h.dispatch.Worklist(date, f)
	if entries == nil {
		entries = []worklist.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "entries": entries})
}

type dateRequest struct {
	Date string `json:"date"`
}

// AutoAssign handles POST /api/worklist/auto-assign.
func (h *Handler) AutoAssign(c *gin.Context) {
	var req dateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	date, err := h.day(req.Date)
	if err != nil {
		respondError(c, err)
		return
	}

	assigned, err := h.dispatch.AutoAssign(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "assigned": len(assigned), "assignments": assigned})
}

type mutationRequest struct {
	Date     string            `json:"date"`
	Assignee *string           `json:"assignee"`
	Status   *model.TaskStatus `json:"status"`
	Priority *model.Priority   `json:"priority"`
}

func (r mutationRequest) mutation() dispatch.Mutation {
	return dispatch.Mutation{Assignee: r.Assignee, Status: r.Status, Priority: r.Priority}
}

func roomKey(c *gin.Context) model.RoomKey {
	return model.RoomKey{FacilityID: c.Param("facility_id"), RoomCode: c.Param("room_code")}
}

// UpdateEntry handles PATCH /api/worklist/:facility_id/:room_code.
func (h *Handler) UpdateEntry(c *gin.Context) {
	var req mutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	date, err := h.day(req.Date)
	if err != nil {
		respondError(c, err)
		return
	}

	task, err := h.dispatch.Update(c.Request.Context(), date, roomKey(c), req.mutation())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type inquiryRequest struct {
	Date          string `json:"date"`
	NeedsCleaning *bool  `json:"needs_cleaning" binding:"required"`
	Actor         string `json:"actor"`
}

// ResolveInquiry handles POST /api/worklist/:facility_id/:room_code/inquiry.
func (h *Handler) ResolveInquiry(c *gin.Context) {
	var req inquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	date, err := h.day(req.Date)
	if err != nil {
		respondError(c, err)
		return
	}

	task, err := h.dispatch.ResolveInquiry(c.Request.Context(), date, roomKey(c), *req.NeedsCleaning, req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type bulkRequest struct {
	mutationRequest
	Rooms []model.RoomKey `json:"rooms" binding:"required,min=1"`
}

// BulkUpdate handles POST /api/worklist/bulk.
func (h *Handler) BulkUpdate(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	date, err := h.day(req.Date)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.dispatch.Bulk(c.Request.Context(), date, req.Rooms, req.mutation())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type roomStatusRequest struct {
	Status model.RoomStatus `json:"status" binding:"required"`
}

// SetRoomStatus handles PUT /api/rooms/:facility_id/:room_code/status.
func (h *Handler) SetRoomStatus(c *gin.Context) {
	var req roomStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	room, err := h.dispatch.SetRoomStatus(c.Request.Context(), roomKey(c), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}
