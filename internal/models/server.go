package models

import "time"

// Server is the persisted record for one managed Minecraft server.
// is_running and pid are runtime state cached in the database; the OS process
// table is the ground truth and the lifecycle engine reconciles the two.
type Server struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"type"` // paper, fabric, vanilla, forge
	Version   string     `json:"version"`
	Path      string     `json:"path"`
	Port      int        `json:"port"`
	Memory    string     `json:"memory"` // e.g. "2G"
	JavaPath  string     `json:"java_path,omitempty"`
	JVMArgs   string     `json:"jvm_args,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	IsRunning   bool       `json:"is_running"`
	PID         int        `json:"pid,omitempty"`
	LastStarted *time.Time `json:"last_started,omitempty"`
	LastStopped *time.Time `json:"last_stopped,omitempty"`
}

// ProcessStats holds live metrics for a running server process.
type ProcessStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryRSS     uint64  `json:"memory_rss"`
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime"`
}

// StatusView merges persisted server fields with live process metrics.
// Process is nil when the server is not running or the process disappeared
// between the liveness check and metrics collection.
type StatusView struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Version     string        `json:"version"`
	Port        int           `json:"port"`
	Memory      string        `json:"memory"`
	IsRunning   bool          `json:"is_running"`
	PID         int           `json:"pid,omitempty"`
	LastStarted *time.Time    `json:"last_started,omitempty"`
	LastStopped *time.Time    `json:"last_stopped,omitempty"`
	Process     *ProcessStats `json:"process,omitempty"`
}
