package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studytracker/internal/tracker"
)

const defaultReportDays = 7

// RegisterReports mounts read-only reports.
func (h *Handler) RegisterReports(rg *gin.RouterGroup) {
	rg.GET("/reports/daily-totals", h.dailyTotals)
}

func (h *Handler) dailyTotals(c *gin.Context) {
	staffID, studentID := c.Query("staff_id"), c.Query("student_id")
	var owner tracker.Owner
	switch {
	case staffID != "" && studentID == "":
		owner = tracker.Owner{Kind: tracker.OwnerStaff, ID: staffID}
	case studentID != "" && staffID == "":
		owner = tracker.Owner{Kind: tracker.OwnerStudent, ID: studentID}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of staff_id or student_id is required"})
		return
	}

	to := tracker.DateOf(time.Now())
	if v := c.Query("to"); v != "" {
		parsed, err := tracker.ParseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		to = parsed
	}
	from := to.AddDays(-(defaultReportDays - 1))
	if v := c.Query("from"); v != "" {
		parsed, err := tracker.ParseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		from = parsed
	}

	days, err := h.totals.Daily(c.Request.Context(), owner, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	var sum tracker.Span
	for _, d := range days {
		sum += d.Total
	}
	c.JSON(http.StatusOK, gin.H{
		"owner":          owner,
		"from":           from,
		"to":             to,
		"days":           days,
		"total_duration": sum,
	})
}
