package database

// Migration represents a database migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// migrations contains all database migrations in order
var migrations = []Migration{
	{
		Version: "001_init",
		Up: `
-- Managed Minecraft servers
CREATE TABLE servers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    type TEXT NOT NULL DEFAULT 'vanilla',
    version TEXT NOT NULL DEFAULT '',
    path TEXT NOT NULL,
    port INTEGER NOT NULL DEFAULT 25565,
    memory TEXT NOT NULL DEFAULT '2G',
    java_path TEXT,
    jvm_args TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME,

    -- Runtime state, reconciled against the OS process table
    is_running BOOLEAN NOT NULL DEFAULT 0,
    pid INTEGER,
    last_started DATETIME,
    last_stopped DATETIME
);

CREATE INDEX idx_servers_name ON servers(name);
CREATE INDEX idx_servers_running ON servers(is_running);

-- Cron-driven scheduled actions
CREATE TABLE schedules (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    server_id INTEGER NOT NULL,
    action TEXT NOT NULL,
    cron TEXT NOT NULL,
    enabled BOOLEAN NOT NULL DEFAULT 1,
    last_run DATETIME,
    next_run DATETIME,
    payload TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
);

CREATE INDEX idx_schedules_server ON schedules(server_id);
CREATE INDEX idx_schedules_next_run ON schedules(next_run);

-- Created backup archives
CREATE TABLE backups (
    id TEXT PRIMARY KEY,
    server_id INTEGER NOT NULL,
    path TEXT NOT NULL,
    size_bytes INTEGER,
    type TEXT NOT NULL DEFAULT 'manual',
    status TEXT NOT NULL DEFAULT 'completed',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
);

CREATE INDEX idx_backups_server ON backups(server_id);
`,
		Down: `
DROP TABLE backups;
DROP TABLE schedules;
DROP TABLE servers;
`,
	},
}
