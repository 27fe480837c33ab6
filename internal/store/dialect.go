package store

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite3  = "sqlite3"  // github.com/mattn/go-sqlite3 (cgo)
	DriverSQLite   = "sqlite"   // modernc.org/sqlite (pure Go)
	DriverPostgres = "postgres" // github.com/lib/pq
)

type dialect struct {
	driver      string
	timestamp   string
	autoID      string
	positional  bool
	pragmas     []string
	singleConn  bool
	uniqueError []string
}

var dialects = map[string]dialect{
	DriverSQLite3: {
		driver:      DriverSQLite3,
		timestamp:   "DATETIME",
		autoID:      "INTEGER PRIMARY KEY AUTOINCREMENT",
		pragmas:     []string{"PRAGMA foreign_keys = ON"},
		singleConn:  true,
		uniqueError: []string{"UNIQUE constraint failed"},
	},
	DriverSQLite: {
		driver:      DriverSQLite,
		timestamp:   "DATETIME",
		autoID:      "INTEGER PRIMARY KEY AUTOINCREMENT",
		pragmas:     []string{"PRAGMA foreign_keys = ON"},
		singleConn:  true,
		uniqueError: []string{"UNIQUE constraint failed"},
	},
	DriverPostgres: {
		driver:      DriverPostgres,
		timestamp:   "TIMESTAMPTZ",
		autoID:      "BIGSERIAL PRIMARY KEY",
		positional:  true,
		uniqueError: []string{"duplicate key value", "unique_violation"},
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

// rebind rewrites ? placeholders into $n for drivers that need positional parameters.
// Queries must not contain literal question marks.
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range d.uniqueError {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (d dialect) migrations() []string {
	ts := d.timestamp
	return []string{
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			endpoint TEXT NOT NULL,
			capabilities TEXT,
			status TEXT NOT NULL DEFAULT 'inactive',
			last_heartbeat ` + ts + `,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		// agent_id is a plain reference: tasks outlive the agent that owned them.
		`CREATE TABLE IF NOT EXISTS tasks (
			id ` + d.autoID + `,
			task_id TEXT NOT NULL UNIQUE,
			agent_id TEXT NOT NULL,
			task_type TEXT NOT NULL,
			parameters TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			result TEXT,
			error_message TEXT,
			priority INTEGER NOT NULL DEFAULT 5,
			created_at ` + ts + ` NOT NULL,
			started_at ` + ts + `,
			completed_at ` + ts + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_order ON tasks(priority, created_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_agent_status ON tasks(agent_id, status)`,
		`CREATE TABLE IF NOT EXISTS configuration (
			id ` + d.autoID + `,
			key TEXT NOT NULL UNIQUE,
			value TEXT,
			description TEXT,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS task_events (
			seq ` + d.autoID + `,
			event_id TEXT NOT NULL UNIQUE,
			task_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			ts BIGINT NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (task_id) REFERENCES tasks(task_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_events_task ON task_events(task_id, ts)`,
	}
}
