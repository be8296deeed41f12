package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Sahaj33-op/msm/internal/models"
)

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// ListServers returns all servers.
func (h *Handler) ListServers(c *gin.Context) {
	servers, err := h.servers.List()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"servers": servers})
}

// GetServer returns one server record.
func (h *Handler) GetServer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	srv, err := h.servers.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, srv)
}

type createServerRequest struct {
	Name     string `json:"name" binding:"required"`
	Type     string `json:"type"`
	Version  string `json:"version"`
	Path     string `json:"path" binding:"required"`
	Port     int    `json:"port" binding:"required"`
	Memory   string `json:"memory"`
	JavaPath string `json:"java_path"`
	JVMArgs  string `json:"jvm_args"`
}

// CreateServer registers a new server directory with the manager.
func (h *Handler) CreateServer(c *gin.Context) {
	var req createServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Port < 1 || req.Port > 65535 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "port must be between 1 and 65535"})
		return
	}
	if req.Type == "" {
		req.Type = "vanilla"
	}
	if req.Memory == "" {
		req.Memory = "2G"
	}

	srv, err := h.servers.Create(&models.Server{
		Name:     req.Name,
		Type:     req.Type,
		Version:  req.Version,
		Path:     req.Path,
		Port:     req.Port,
		Memory:   req.Memory,
		JavaPath: req.JavaPath,
		JVMArgs:  req.JVMArgs,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, srv)
}

type updateServerRequest struct {
	Name     *string `json:"name"`
	Type     *string `json:"type"`
	Version  *string `json:"version"`
	Path     *string `json:"path"`
	Port     *int    `json:"port"`
	Memory   *string `json:"memory"`
	JavaPath *string `json:"java_path"`
	JVMArgs  *string `json:"jvm_args"`
}

// UpdateServer patches a server's configuration fields. Changes take effect
// on the next start.
func (h *Handler) UpdateServer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	srv, err := h.servers.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}

	var req updateServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Port != nil && (*req.Port < 1 || *req.Port > 65535) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "port must be between 1 and 65535"})
		return
	}

	if req.Name != nil {
		srv.Name = *req.Name
	}
	if req.Type != nil {
		srv.Type = *req.Type
	}
	if req.Version != nil {
		srv.Version = *req.Version
	}
	if req.Path != nil {
		srv.Path = *req.Path
	}
	if req.Port != nil {
		srv.Port = *req.Port
	}
	if req.Memory != nil {
		srv.Memory = *req.Memory
	}
	if req.JavaPath != nil {
		srv.JavaPath = *req.JavaPath
	}
	if req.JVMArgs != nil {
		srv.JVMArgs = *req.JVMArgs
	}

	if err := h.servers.Update(srv); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, srv)
}

// DeleteServer removes a server record. The server must be stopped first;
// files on disk are left alone.
func (h *Handler) DeleteServer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.engine.Status(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if view.IsRunning {
		c.JSON(http.StatusBadRequest, gin.H{"error": "server is running, stop it before deleting"})
		return
	}
	if err := h.servers.Delete(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// StartServer launches the server process.
func (h *Handler) StartServer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.engine.Start(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "starting"})
}

// StopServer shuts the server down, forcibly when ?force=true.
func (h *Handler) StopServer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"
	if err := h.engine.Stop(c.Request.Context(), id, force); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped", "forced": force})
}

// RestartServer stops (if running) and starts the server.
func (h *Handler) RestartServer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.engine.Restart(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "restarting"})
}

// ServerStatus returns the reconciled state plus live process metrics.
func (h *Handler) ServerStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.engine.Status(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
