package models

import "time"

// Action is the closed set of operations a schedule can trigger.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
	ActionBackup  Action = "backup"
	ActionCommand Action = "command"
)

// ValidAction reports whether a is one of the known schedule actions.
func ValidAction(a Action) bool {
	switch a {
	case ActionStart, ActionStop, ActionRestart, ActionBackup, ActionCommand:
		return true
	}
	return false
}

// Schedule is a persisted cron-driven task against one server.
// NextRun is nil while the schedule is disabled, meaning "never due"; it is
// recomputed after every create, update, and execution.
type Schedule struct {
	ID        int64      `json:"id"`
	ServerID  int64      `json:"server_id"`
	Action    Action     `json:"action"`
	Cron      string     `json:"cron"`
	Enabled   bool       `json:"enabled"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	Payload   string     `json:"payload,omitempty"` // JSON or raw command text
	CreatedAt time.Time  `json:"created_at"`
}

// Backup records a created archive for a server.
type Backup struct {
	ID        string    `json:"id"`
	ServerID  int64     `json:"server_id"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	Type      string    `json:"type"` // manual, scheduled
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
