package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/agentmcp/internal/domain"
)

// SQLStore implements Store on database/sql. It speaks the sqlite3, sqlite and
// postgres dialects.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLiteStore creates a store backed by mattn/go-sqlite3.
func NewSQLiteStore(dsn string) (*SQLStore, error) {
	return NewSQLStore(DriverSQLite3, dsn)
}

// NewSQLStore opens dsn with the named driver and runs migrations.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite: in-memory databases are per connection, and pragmas apply to one
	// connection only.
	if d.singleConn {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	for _, p := range d.pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	s := &SQLStore{db: db, dialect: d}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	for _, m := range s.dialect.migrations() {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) q(query string) string {
	return s.dialect.rebind(query)
}

func (s *SQLStore) wrapConflict(err error, what string) error {
	if s.dialect.isUniqueViolation(err) {
		return fmt.Errorf("%s already exists: %w", what, domain.ErrConflict)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Agents

const agentColumns = `id, name, description, endpoint, capabilities, status, last_heartbeat, created_at, updated_at`

// CreateAgent inserts a new agent. A duplicate id yields domain.ErrConflict.
func (s *SQLStore) CreateAgent(ctx context.Context, agent *domain.Agent) error {
	caps, err := json.Marshal(capabilitiesOrEmpty(agent.Capabilities))
	if err != nil {
		return err
	}
	var hb sql.NullTime
	if agent.LastHeartbeat != nil {
		hb = sql.NullTime{Time: agent.LastHeartbeat.UTC(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, s.q(
		`INSERT INTO agents (`+agentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		agent.ID, agent.Name, nullString(agent.Description), agent.Endpoint, string(caps),
		agent.Status, hb, agent.CreatedAt.UTC(), agent.UpdatedAt.UTC())
	return s.wrapConflict(err, "agent "+agent.ID)
}

func scanAgent(row rowScanner) (*domain.Agent, error) {
	var a domain.Agent
	var description, caps sql.NullString
	var hb sql.NullTime
	if err := row.Scan(&a.ID, &a.Name, &description, &a.Endpoint, &caps, &a.Status, &hb, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if description.Valid {
		a.Description = description.String
	}
	a.Capabilities = []string{}
	if caps.Valid && caps.String != "" {
		if err := json.Unmarshal([]byte(caps.String), &a.Capabilities); err != nil {
			return nil, fmt.Errorf("decode capabilities of agent %s: %w", a.ID, err)
		}
	}
	if hb.Valid {
		t := hb.Time
		a.LastHeartbeat = &t
	}
	return &a, nil
}

// GetAgent retrieves an agent by ID.
func (s *SQLStore) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+agentColumns+` FROM agents WHERE id = ?`), agentID)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAgents returns all agents ordered by creation.
func (s *SQLStore) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := []domain.Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return agents, nil
}

// UpdateAgent merges the non-nil fields of patch and refreshes updated_at.
func (s *SQLStore) UpdateAgent(ctx context.Context, agentID string, patch domain.AgentPatch, now time.Time) (bool, error) {
	var sets []string
	var args []any
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(*patch.Description))
	}
	if patch.Endpoint != nil {
		sets = append(sets, "endpoint = ?")
		args = append(args, *patch.Endpoint)
	}
	if patch.Capabilities != nil {
		caps, err := json.Marshal(capabilitiesOrEmpty(*patch.Capabilities))
		if err != nil {
			return false, err
		}
		sets = append(sets, "capabilities = ?")
		args = append(args, string(caps))
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now.UTC(), agentID)

	res, err := s.db.ExecContext(ctx, s.q(`UPDATE agents SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// TouchAgentHeartbeat records a heartbeat and forces the agent active.
// updated_at is left alone.
func (s *SQLStore) TouchAgentHeartbeat(ctx context.Context, agentID string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE agents SET last_heartbeat = ?, status = ? WHERE id = ?`),
		now.UTC(), domain.AgentStatusActive, agentID)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// DeleteAgent removes the agent and cancels its pending tasks in one transaction.
// Running tasks keep their status.
func (s *SQLStore) DeleteAgent(ctx context.Context, agentID string, reason string, now time.Time) ([]string, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM agents WHERE id = ?`), agentID)
	if err != nil {
		return nil, false, err
	}
	ok, err := affected(res)
	if err != nil || !ok {
		return nil, ok, err
	}

	rows, err := tx.QueryContext(ctx, s.q(
		`UPDATE tasks SET status = ?, error_message = ?, completed_at = ?
		 WHERE agent_id = ? AND status = ?
		 RETURNING task_id`),
		domain.TaskStatusCancelled, reason, now.UTC(), agentID, domain.TaskStatusPending)
	if err != nil {
		return nil, false, err
	}
	cancelled := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, false, err
		}
		cancelled = append(cancelled, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return cancelled, true, nil
}

// CountAgentsByStatus groups agents by status.
func (s *SQLStore) CountAgentsByStatus(ctx context.Context) (map[domain.AgentStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM agents GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[domain.AgentStatus]int{}
	for rows.Next() {
		var st domain.AgentStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, rows.Err()
}

// Tasks

const taskColumns = `id, task_id, agent_id, task_type, parameters, status, result, error_message, priority, created_at, started_at, completed_at`

// CreateTask inserts a task and fills in its numeric ID.
func (s *SQLStore) CreateTask(ctx context.Context, task *domain.Task) error {
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO tasks (task_id, agent_id, task_type, parameters, status, result, error_message, priority, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		task.TaskID, task.AgentID, task.TaskType, nullStringBytes(task.Parameters), task.Status,
		nullStringBytes(task.Result), nullString(task.ErrorMessage), task.Priority, task.CreatedAt.UTC(),
	).Scan(&task.ID)
	return s.wrapConflict(err, "task "+task.TaskID)
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var params, result, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(&t.ID, &t.TaskID, &t.AgentID, &t.TaskType, &params, &t.Status, &result, &errMsg,
		&t.Priority, &t.CreatedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	if params.Valid {
		t.Parameters = json.RawMessage(params.String)
	}
	if result.Valid {
		t.Result = json.RawMessage(result.String)
	}
	if errMsg.Valid {
		t.ErrorMessage = errMsg.String
	}
	if startedAt.Valid {
		ts := startedAt.Time
		t.StartedAt = &ts
	}
	if completedAt.Valid {
		ts := completedAt.Time
		t.CompletedAt = &ts
	}
	return &t, nil
}

// GetTask retrieves a task by its public task_id.
func (s *SQLStore) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`), taskID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTasks returns tasks matching filter in ledger order:
// priority ASC, created_at ASC, id ASC.
func (s *SQLStore) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1 = 1`
	var args []any
	if filter.AgentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, filter.AgentID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.TaskType != "" {
		query += ` AND task_type = ?`
		args = append(args, filter.TaskType)
	}
	query += ` ORDER BY priority ASC, created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateTaskStatus applies a partial update as a single UPDATE statement.
// SET expressions see the stored row, so started_at is only stamped when the
// stored status is pending and the new status is running. Entering a terminal
// status stamps completed_at. A JSON null result clears the column.
func (s *SQLStore) UpdateTaskStatus(ctx context.Context, taskID string, update domain.TaskUpdate, now time.Time) (bool, error) {
	now = now.UTC()
	var sets []string
	var args []any
	if update.Status != nil {
		st := *update.Status
		if st == domain.TaskStatusRunning {
			sets = append(sets, "started_at = CASE WHEN status = ? THEN ? ELSE started_at END")
			args = append(args, domain.TaskStatusPending, now)
		}
		if st.Terminal() {
			sets = append(sets, "completed_at = ?")
			args = append(args, now)
		}
		sets = append(sets, "status = ?")
		args = append(args, st)
	}
	if update.Result != nil {
		sets = append(sets, "result = ?")
		if string(update.Result) == "null" {
			args = append(args, sql.NullString{})
		} else {
			args = append(args, string(update.Result))
		}
	}
	if update.ErrorMessage != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, *update.ErrorMessage)
	}

	if len(sets) == 0 {
		var one int
		err := s.db.QueryRowContext(ctx, s.q(`SELECT 1 FROM tasks WHERE task_id = ?`), taskID).Scan(&one)
		if err == sql.ErrNoRows {
			return false, nil
		}
		return err == nil, err
	}

	args = append(args, taskID)
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE task_id = ?`), args...)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// CountTasksByStatus groups tasks by status.
func (s *SQLStore) CountTasksByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[domain.TaskStatus]int{}
	for rows.Next() {
		var st domain.TaskStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, rows.Err()
}

// Configuration

const configurationColumns = `id, key, value, description, created_at, updated_at`

// CreateConfiguration inserts a configuration entry. A duplicate key yields domain.ErrConflict.
func (s *SQLStore) CreateConfiguration(ctx context.Context, cfg *domain.Configuration) error {
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO configuration (key, value, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`),
		cfg.Key, cfg.Value, nullString(cfg.Description), cfg.CreatedAt.UTC(), cfg.UpdatedAt.UTC(),
	).Scan(&cfg.ID)
	return s.wrapConflict(err, "configuration "+cfg.Key)
}

func scanConfiguration(row rowScanner) (*domain.Configuration, error) {
	var c domain.Configuration
	var value, description sql.NullString
	if err := row.Scan(&c.ID, &c.Key, &value, &description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Value = value.String
	c.Description = description.String
	return &c, nil
}

// GetConfiguration retrieves a configuration entry by key.
func (s *SQLStore) GetConfiguration(ctx context.Context, key string) (*domain.Configuration, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+configurationColumns+` FROM configuration WHERE key = ?`), key)
	c, err := scanConfiguration(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListConfigurations returns all entries ordered by key.
func (s *SQLStore) ListConfigurations(ctx context.Context) ([]domain.Configuration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+configurationColumns+` FROM configuration ORDER BY key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Configuration{}
	for rows.Next() {
		c, err := scanConfiguration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateConfiguration sets value and/or description and refreshes updated_at.
func (s *SQLStore) UpdateConfiguration(ctx context.Context, key string, value, description *string, now time.Time) (bool, error) {
	sets := []string{}
	args := []any{}
	if value != nil {
		sets = append(sets, "value = ?")
		args = append(args, *value)
	}
	if description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(*description))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now.UTC(), key)

	res, err := s.db.ExecContext(ctx, s.q(`UPDATE configuration SET `+strings.Join(sets, ", ")+` WHERE key = ?`), args...)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// Events

// CreateTaskEvent appends an event to the task event log.
func (s *SQLStore) CreateTaskEvent(ctx context.Context, event *domain.TaskEvent) error {
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO task_events (event_id, task_id, agent_id, ts, type, payload) VALUES (?, ?, ?, ?, ?, ?)`),
		event.EventID, event.TaskID, event.AgentID, event.Ts, event.Type, nullStringBytes(event.Payload))
	return err
}

// ListTaskEvents returns a task's events in timestamp order, ties in insertion order.
func (s *SQLStore) ListTaskEvents(ctx context.Context, taskID string) ([]domain.TaskEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT event_id, task_id, agent_id, ts, type, payload FROM task_events WHERE task_id = ? ORDER BY ts ASC, seq ASC`),
		taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.TaskEvent{}
	for rows.Next() {
		var e domain.TaskEvent
		var payload sql.NullString
		if err := rows.Scan(&e.EventID, &e.TaskID, &e.AgentID, &e.Ts, &e.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func capabilitiesOrEmpty(caps []string) []string {
	if caps == nil {
		return []string{}
	}
	return caps
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
