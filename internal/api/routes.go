// Package api exposes the manager over HTTP: server CRUD, lifecycle
// actions, console history and live websocket streaming, schedules, and
// backups.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sahaj33-op/msm/internal/backup"
	"github.com/Sahaj33-op/msm/internal/config"
	"github.com/Sahaj33-op/msm/internal/lifecycle"
	"github.com/Sahaj33-op/msm/internal/store"
)

// Handler carries the dependencies shared by all endpoints.
type Handler struct {
	cfg       *config.Config
	servers   *store.ServerStore
	schedules *store.ScheduleStore
	engine    *lifecycle.Engine
	backups   *backup.Service
}

func NewHandler(cfg *config.Config, servers *store.ServerStore, schedules *store.ScheduleStore, engine *lifecycle.Engine, backups *backup.Service) *Handler {
	return &Handler{
		cfg:       cfg,
		servers:   servers,
		schedules: schedules,
		engine:    engine,
		backups:   backups,
	}
}

// SetupRouter configures and returns the HTTP router.
func SetupRouter(h *Handler) *gin.Engine {
	if h.cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/servers", h.ListServers)
		v1.POST("/servers", h.CreateServer)
		v1.GET("/servers/:id", h.GetServer)
		v1.PUT("/servers/:id", h.UpdateServer)
		v1.DELETE("/servers/:id", h.DeleteServer)

		v1.POST("/servers/:id/start", h.StartServer)
		v1.POST("/servers/:id/stop", h.StopServer)
		v1.POST("/servers/:id/restart", h.RestartServer)
		v1.GET("/servers/:id/status", h.ServerStatus)

		v1.POST("/servers/:id/command", h.SendCommand)
		v1.GET("/servers/:id/console", h.ConsoleHistory)

		v1.GET("/servers/:id/schedules", h.ListSchedules)
		v1.POST("/servers/:id/schedules", h.CreateSchedule)
		v1.PUT("/schedules/:id", h.UpdateSchedule)
		v1.DELETE("/schedules/:id", h.DeleteSchedule)

		v1.GET("/servers/:id/backups", h.ListBackups)
		v1.POST("/servers/:id/backups", h.CreateBackup)
	}

	router.GET("/ws/servers/:id/console", h.ConsoleSocket)

	return router
}
