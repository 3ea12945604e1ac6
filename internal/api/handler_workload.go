package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"housekeeping-backend/internal/parse"
	"housekeeping-backend/internal/report"
	"housekeeping-backend/internal/worklist"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) workload(date parse.Day) report.Workload {
	entries := h.dispatch.Worklist(date, worklist.Filter{})
	return report.Build(date, entries, h.state.Current().Staff, report.RatesFrom(h.cfg.Housekeeping.Rates))
}

// GetWorkload handles GET /api/workload.
func (h *Handler) GetWorkload(c *gin.Context) {
	date, err := h.day(c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.workload(date))
}

// ExportWorkload handles GET /api/workload/export.
func (h *Handler) ExportWorkload(c *gin.Context) {
	date, err := h.day(c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.workload(date).WriteXLSX(&buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="workload-%s.xlsx"`, date))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
