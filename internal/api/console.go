package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type sendCommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// SendCommand writes a command to a running server's console.
func (h *Handler) SendCommand(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req sendCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.engine.SendCommand(id, req.Command); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// ConsoleHistory returns recent console lines. ?lines= bounds the tail;
// default is the configured replay window.
func (h *Handler) ConsoleHistory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	n := h.cfg.Console.ReplayLines
	if raw := c.Query("lines"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lines parameter"})
			return
		}
		n = parsed
	}

	lines, err := h.engine.History(id, n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}
