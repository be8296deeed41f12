package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sahaj33-op/msm/internal/models"
	"github.com/Sahaj33-op/msm/internal/scheduler"
)

type scheduleRequest struct {
	Action  models.Action `json:"action" binding:"required"`
	Cron    string        `json:"cron" binding:"required"`
	Enabled *bool         `json:"enabled"`
	Payload string        `json:"payload"`
}

// ListSchedules returns all schedules for a server.
func (h *Handler) ListSchedules(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := h.servers.Get(id); err != nil {
		writeError(c, err)
		return
	}
	schedules, err := h.schedules.List(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

// CreateSchedule adds a cron-driven task for a server.
func (h *Handler) CreateSchedule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := h.servers.Get(id); err != nil {
		writeError(c, err)
		return
	}

	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidAction(req.Action) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action " + string(req.Action)})
		return
	}
	if err := scheduler.ValidateExpr(req.Cron); err != nil {
		writeError(c, err)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	sched := &models.Schedule{
		ServerID: id,
		Action:   req.Action,
		Cron:     req.Cron,
		Enabled:  enabled,
		Payload:  req.Payload,
	}
	if enabled {
		next, err := scheduler.NextRun(req.Cron, time.Now().UTC())
		if err != nil {
			writeError(c, err)
			return
		}
		sched.NextRun = &next
	}

	created, err := h.schedules.Create(sched)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateSchedule rewrites a schedule's action, cron, payload, or enabled
// flag and recomputes its next run.
func (h *Handler) UpdateSchedule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	sched, err := h.schedules.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}

	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidAction(req.Action) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action " + string(req.Action)})
		return
	}
	if err := scheduler.ValidateExpr(req.Cron); err != nil {
		writeError(c, err)
		return
	}

	sched.Action = req.Action
	sched.Cron = req.Cron
	sched.Payload = req.Payload
	if req.Enabled != nil {
		sched.Enabled = *req.Enabled
	}
	if sched.Enabled {
		next, err := scheduler.NextRun(sched.Cron, time.Now().UTC())
		if err != nil {
			writeError(c, err)
			return
		}
		sched.NextRun = &next
	} else {
		sched.NextRun = nil
	}

	if err := h.schedules.Update(sched); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// DeleteSchedule removes a schedule.
func (h *Handler) DeleteSchedule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.schedules.Delete(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
