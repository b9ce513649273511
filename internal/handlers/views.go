package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"racer-platform/internal/engagement"
)

type ViewHandler struct {
	Recorder *engagement.Recorder
	Gate     engagement.Gate
}

func NewViewHandler(r *engagement.Recorder, gate engagement.Gate) *ViewHandler {
	return &ViewHandler{Recorder: r, Gate: gate}
}

// RecordViewRequest carries the engagement signals the page collected.
type RecordViewRequest struct {
	DwellMS    int64 `json:"dwell_ms" binding:"gte=0"`
	Interacted bool  `json:"interacted"`
	Visible    bool  `json:"visible"`
}

// Record counts a profile view once the visitor has actually engaged with it.
// The response never reports a storage failure.
func (h *ViewHandler) Record(c *gin.Context) {
	profileID, ok := idParam(c, "profileID")
	if !ok {
		return
	}
	v, ok := viewer(c)
	if !ok {
		return
	}
	var req RecordViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	signals := engagement.Signals{
		Dwell:      time.Duration(req.DwellMS) * time.Millisecond,
		Interacted: req.Interacted,
		Visible:    req.Visible,
	}
	if !h.Gate.Satisfied(signals) {
		c.JSON(http.StatusAccepted, gin.H{"counted": false, "outcome": engagement.OutcomeSkipped})
		return
	}

	out := h.Recorder.RecordView(c.Request.Context(), profileID, v.UserID, c.Request.UserAgent())
	c.JSON(http.StatusOK, gin.H{
		"counted": out == engagement.OutcomeRecorded || out == engagement.OutcomeFallback,
		"outcome": out,
	})
}

func (h *ViewHandler) Count(c *gin.Context) {
	profileID, ok := idParam(c, "profileID")
	if !ok {
		return
	}
	n, stale := h.Recorder.ViewCount(c.Request.Context(), profileID)
	c.JSON(http.StatusOK, gin.H{"profile_id": profileID, "views": n, "stale": stale})
}
