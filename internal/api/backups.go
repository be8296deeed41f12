package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListBackups returns recorded backups for a server.
func (h *Handler) ListBackups(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := h.servers.Get(id); err != nil {
		writeError(c, err)
		return
	}
	backups, err := h.backups.List(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": backups})
}

// CreateBackup archives the server directory now.
func (h *Handler) CreateBackup(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	record, err := h.backups.CreateBackup(c.Request.Context(), id, "manual")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}
