package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xiaot623/agentmcp/internal/domain"
)

func newTestStore(t *testing.T, driver string) *SQLStore {
	t.Helper()
	store, err := NewSQLStore(driver, ":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var sqliteDrivers = []string{DriverSQLite3, DriverSQLite}

func seedAgent(t *testing.T, s *SQLStore, id string, now time.Time) {
	t.Helper()
	agent := &domain.Agent{
		ID:            id,
		Name:          "Agent " + id,
		Endpoint:      "http://localhost:5001",
		Capabilities:  []string{"echo"},
		Status:        domain.AgentStatusActive,
		LastHeartbeat: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.CreateAgent(context.Background(), agent); err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
}

func seedTask(t *testing.T, s *SQLStore, taskID, agentID string, priority int, createdAt time.Time) *domain.Task {
	t.Helper()
	task := &domain.Task{
		TaskID:     taskID,
		AgentID:    agentID,
		TaskType:   "echo",
		Parameters: json.RawMessage(`{"text":"hi"}`),
		Status:     domain.TaskStatusPending,
		Priority:   priority,
		CreatedAt:  createdAt,
	}
	if err := s.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	return task
}

func TestSQLStoreAgents(t *testing.T) {
	for _, driver := range sqliteDrivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t, driver)
			now := time.Now().UTC().Truncate(time.Millisecond)

			seedAgent(t, s, "a1", now)

			got, err := s.GetAgent(ctx, "a1")
			if err != nil {
				t.Fatalf("GetAgent failed: %v", err)
			}
			if got == nil || got.Name != "Agent a1" || got.Status != domain.AgentStatusActive {
				t.Fatalf("unexpected agent: %+v", got)
			}
			if len(got.Capabilities) != 1 || got.Capabilities[0] != "echo" {
				t.Fatalf("unexpected capabilities: %v", got.Capabilities)
			}
			if got.LastHeartbeat == nil || !got.LastHeartbeat.Equal(now) {
				t.Fatalf("unexpected last heartbeat: %v", got.LastHeartbeat)
			}

			dup := &domain.Agent{ID: "a1", Name: "other", Endpoint: "http://x", Status: domain.AgentStatusActive, CreatedAt: now, UpdatedAt: now}
			if err := s.CreateAgent(ctx, dup); !errors.Is(err, domain.ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
			got, _ = s.GetAgent(ctx, "a1")
			if got.Name != "Agent a1" {
				t.Fatalf("duplicate insert modified agent: %+v", got)
			}

			missing, err := s.GetAgent(ctx, "nope")
			if err != nil || missing != nil {
				t.Fatalf("expected nil, nil for missing agent, got %+v, %v", missing, err)
			}

			name := "Renamed"
			status := domain.AgentStatusError
			later := now.Add(time.Minute)
			ok, err := s.UpdateAgent(ctx, "a1", domain.AgentPatch{Name: &name, Status: &status}, later)
			if err != nil || !ok {
				t.Fatalf("UpdateAgent failed: %v, %v", ok, err)
			}
			got, _ = s.GetAgent(ctx, "a1")
			if got.Name != "Renamed" || got.Status != domain.AgentStatusError || got.Endpoint != "http://localhost:5001" {
				t.Fatalf("unexpected agent after update: %+v", got)
			}
			if !got.UpdatedAt.Equal(later) {
				t.Fatalf("updated_at not refreshed: %v", got.UpdatedAt)
			}

			ok, err = s.TouchAgentHeartbeat(ctx, "a1", later.Add(time.Minute))
			if err != nil || !ok {
				t.Fatalf("TouchAgentHeartbeat failed: %v, %v", ok, err)
			}
			got, _ = s.GetAgent(ctx, "a1")
			if got.Status != domain.AgentStatusActive {
				t.Fatalf("heartbeat should force active, got %s", got.Status)
			}
			if got.LastHeartbeat == nil || !got.LastHeartbeat.Equal(later.Add(time.Minute)) {
				t.Fatalf("unexpected last heartbeat: %v", got.LastHeartbeat)
			}
			if !got.UpdatedAt.Equal(later) {
				t.Fatalf("heartbeat must not touch updated_at: %v", got.UpdatedAt)
			}

			ok, err = s.TouchAgentHeartbeat(ctx, "ghost", later)
			if err != nil || ok {
				t.Fatalf("expected no match for unknown agent, got %v, %v", ok, err)
			}

			seedAgent(t, s, "a0", now.Add(-time.Minute))
			agents, err := s.ListAgents(ctx)
			if err != nil {
				t.Fatalf("ListAgents failed: %v", err)
			}
			if len(agents) != 2 || agents[0].ID != "a0" || agents[1].ID != "a1" {
				t.Fatalf("unexpected agent order: %+v", agents)
			}

			counts, err := s.CountAgentsByStatus(ctx)
			if err != nil {
				t.Fatalf("CountAgentsByStatus failed: %v", err)
			}
			if counts[domain.AgentStatusActive] != 2 {
				t.Fatalf("unexpected counts: %v", counts)
			}
		})
	}
}

func TestSQLStoreListTasksOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, DriverSQLite3)
	base := time.Now().UTC()
	seedAgent(t, s, "a1", base)

	seedTask(t, s, "t-low", "a1", 9, base)
	seedTask(t, s, "t-late", "a1", 1, base.Add(2*time.Second))
	seedTask(t, s, "t-early", "a1", 1, base.Add(time.Second))
	// Same priority and timestamp: storage id breaks the tie.
	seedTask(t, s, "t-tie-1", "a1", 5, base)
	seedTask(t, s, "t-tie-2", "a1", 5, base)

	tasks, err := s.ListTasks(ctx, domain.TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	want := []string{"t-early", "t-late", "t-tie-1", "t-tie-2", "t-low"}
	if len(tasks) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(tasks))
	}
	for i, id := range want {
		if tasks[i].TaskID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, tasks[i].TaskID)
		}
	}

	filtered, err := s.ListTasks(ctx, domain.TaskFilter{AgentID: "a1", Status: domain.TaskStatusPending, TaskType: "echo"})
	if err != nil || len(filtered) != 5 {
		t.Fatalf("unexpected filtered result: %d, %v", len(filtered), err)
	}
	none, err := s.ListTasks(ctx, domain.TaskFilter{TaskType: "other"})
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty list, got %d, %v", len(none), err)
	}
}

func TestSQLStoreUpdateTaskStatus(t *testing.T) {
	for _, driver := range sqliteDrivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t, driver)
			now := time.Now().UTC().Truncate(time.Millisecond)
			seedAgent(t, s, "a1", now)
			task := seedTask(t, s, "t1", "a1", 5, now)
			if task.ID == 0 {
				t.Fatalf("expected storage id to be assigned")
			}

			running := domain.TaskStatusRunning
			startAt := now.Add(time.Second)
			ok, err := s.UpdateTaskStatus(ctx, "t1", domain.TaskUpdate{Status: &running}, startAt)
			if err != nil || !ok {
				t.Fatalf("UpdateTaskStatus(running) failed: %v, %v", ok, err)
			}
			got, _ := s.GetTask(ctx, "t1")
			if got.Status != domain.TaskStatusRunning || got.StartedAt == nil || !got.StartedAt.Equal(startAt) {
				t.Fatalf("unexpected task after running: %+v", got)
			}
			if got.CompletedAt != nil {
				t.Fatalf("completed_at should be unset: %v", got.CompletedAt)
			}

			// running -> running keeps the original started_at
			if _, err := s.UpdateTaskStatus(ctx, "t1", domain.TaskUpdate{Status: &running}, startAt.Add(time.Hour)); err != nil {
				t.Fatalf("UpdateTaskStatus failed: %v", err)
			}
			got, _ = s.GetTask(ctx, "t1")
			if !got.StartedAt.Equal(startAt) {
				t.Fatalf("started_at moved: %v", got.StartedAt)
			}

			completed := domain.TaskStatusCompleted
			doneAt := now.Add(2 * time.Second)
			ok, err = s.UpdateTaskStatus(ctx, "t1", domain.TaskUpdate{Status: &completed, Result: json.RawMessage(`{"ok":true}`)}, doneAt)
			if err != nil || !ok {
				t.Fatalf("UpdateTaskStatus(completed) failed: %v, %v", ok, err)
			}
			got, _ = s.GetTask(ctx, "t1")
			if got.Status != domain.TaskStatusCompleted || got.CompletedAt == nil || !got.CompletedAt.Equal(doneAt) {
				t.Fatalf("unexpected task after completion: %+v", got)
			}
			if string(got.Result) != `{"ok":true}` {
				t.Fatalf("unexpected result: %s", got.Result)
			}
			if got.StartedAt.After(*got.CompletedAt) {
				t.Fatalf("started_at after completed_at")
			}

			msg := "note"
			ok, err = s.UpdateTaskStatus(ctx, "t1", domain.TaskUpdate{ErrorMessage: &msg, Result: json.RawMessage(`null`)}, doneAt)
			if err != nil || !ok {
				t.Fatalf("field-only update failed: %v, %v", ok, err)
			}
			got, _ = s.GetTask(ctx, "t1")
			if got.ErrorMessage != "note" || got.Result != nil || got.Status != domain.TaskStatusCompleted {
				t.Fatalf("unexpected task after field update: %+v", got)
			}

			ok, err = s.UpdateTaskStatus(ctx, "ghost", domain.TaskUpdate{Status: &completed}, doneAt)
			if err != nil || ok {
				t.Fatalf("expected no match for unknown task, got %v, %v", ok, err)
			}
			ok, err = s.UpdateTaskStatus(ctx, "t1", domain.TaskUpdate{}, doneAt)
			if err != nil || !ok {
				t.Fatalf("empty update on existing task should match: %v, %v", ok, err)
			}
		})
	}
}

func TestSQLStoreFailedFromPendingSkipsStartedAt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, DriverSQLite3)
	now := time.Now().UTC()
	seedAgent(t, s, "a1", now)
	seedTask(t, s, "t1", "a1", 5, now)

	failed := domain.TaskStatusFailed
	if _, err := s.UpdateTaskStatus(ctx, "t1", domain.TaskUpdate{Status: &failed}, now); err != nil {
		t.Fatalf("UpdateTaskStatus failed: %v", err)
	}
	got, _ := s.GetTask(ctx, "t1")
	if got.StartedAt != nil || got.CompletedAt == nil {
		t.Fatalf("unexpected timestamps: started=%v completed=%v", got.StartedAt, got.CompletedAt)
	}
}

func TestSQLStoreDeleteAgentCascade(t *testing.T) {
	for _, driver := range sqliteDrivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t, driver)
			now := time.Now().UTC()
			seedAgent(t, s, "a1", now)
			seedAgent(t, s, "a2", now)
			seedTask(t, s, "p1", "a1", 5, now)
			seedTask(t, s, "p2", "a1", 5, now)
			seedTask(t, s, "r1", "a1", 5, now)
			seedTask(t, s, "other", "a2", 5, now)

			running := domain.TaskStatusRunning
			if _, err := s.UpdateTaskStatus(ctx, "r1", domain.TaskUpdate{Status: &running}, now); err != nil {
				t.Fatalf("UpdateTaskStatus failed: %v", err)
			}

			cancelled, ok, err := s.DeleteAgent(ctx, "a1", "Agent unregistered", now)
			if err != nil || !ok {
				t.Fatalf("DeleteAgent failed: %v, %v", ok, err)
			}
			if len(cancelled) != 2 {
				t.Fatalf("expected 2 cancelled tasks, got %v", cancelled)
			}

			for _, id := range []string{"p1", "p2"} {
				task, _ := s.GetTask(ctx, id)
				if task.Status != domain.TaskStatusCancelled || task.ErrorMessage != "Agent unregistered" || task.CompletedAt == nil {
					t.Fatalf("unexpected cancelled task: %+v", task)
				}
			}
			r1, _ := s.GetTask(ctx, "r1")
			if r1.Status != domain.TaskStatusRunning {
				t.Fatalf("running task touched: %+v", r1)
			}
			other, _ := s.GetTask(ctx, "other")
			if other.Status != domain.TaskStatusPending {
				t.Fatalf("other agent's task touched: %+v", other)
			}
			if a, _ := s.GetAgent(ctx, "a1"); a != nil {
				t.Fatalf("agent still present: %+v", a)
			}

			cancelled, ok, err = s.DeleteAgent(ctx, "a1", "Agent unregistered", now)
			if err != nil || ok || len(cancelled) != 0 {
				t.Fatalf("expected no match on second delete, got %v, %v, %v", cancelled, ok, err)
			}

			counts, err := s.CountTasksByStatus(ctx)
			if err != nil {
				t.Fatalf("CountTasksByStatus failed: %v", err)
			}
			if counts[domain.TaskStatusCancelled] != 2 || counts[domain.TaskStatusRunning] != 1 || counts[domain.TaskStatusPending] != 1 {
				t.Fatalf("unexpected counts: %v", counts)
			}
		})
	}
}

func TestSQLStoreConfiguration(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, DriverSQLite3)
	now := time.Now().UTC()

	cfg := &domain.Configuration{Key: "max_tasks", Value: "10", Description: "limit", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateConfiguration(ctx, cfg); err != nil {
		t.Fatalf("CreateConfiguration failed: %v", err)
	}
	if cfg.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}
	dup := &domain.Configuration{Key: "max_tasks", Value: "1", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateConfiguration(ctx, dup); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	value := "20"
	ok, err := s.UpdateConfiguration(ctx, "max_tasks", &value, nil, now.Add(time.Second))
	if err != nil || !ok {
		t.Fatalf("UpdateConfiguration failed: %v, %v", ok, err)
	}
	got, err := s.GetConfiguration(ctx, "max_tasks")
	if err != nil || got == nil {
		t.Fatalf("GetConfiguration failed: %+v, %v", got, err)
	}
	if got.Value != "20" || got.Description != "limit" {
		t.Fatalf("unexpected configuration: %+v", got)
	}

	ok, err = s.UpdateConfiguration(ctx, "missing", &value, nil, now)
	if err != nil || ok {
		t.Fatalf("expected no match, got %v, %v", ok, err)
	}

	all, err := s.ListConfigurations(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("unexpected list: %+v, %v", all, err)
	}
}

func TestSQLStoreTaskEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, DriverSQLite3)
	now := time.Now().UTC()
	seedAgent(t, s, "a1", now)
	seedTask(t, s, "t1", "a1", 5, now)

	for i, typ := range []domain.TaskEventType{domain.TaskEventCreated, domain.TaskEventDispatched} {
		ev := &domain.TaskEvent{
			EventID: string(typ),
			TaskID:  "t1",
			AgentID: "a1",
			Ts:      now.UnixMilli() + int64(i),
			Type:    typ,
			Payload: json.RawMessage(`{"n":1}`),
		}
		if err := s.CreateTaskEvent(ctx, ev); err != nil {
			t.Fatalf("CreateTaskEvent failed: %v", err)
		}
	}

	// Same timestamp as the last event; insertion order breaks the tie.
	tie := &domain.TaskEvent{EventID: "aaa", TaskID: "t1", AgentID: "a1", Ts: now.UnixMilli() + 1, Type: domain.TaskEventStatusChanged}
	if err := s.CreateTaskEvent(ctx, tie); err != nil {
		t.Fatalf("CreateTaskEvent failed: %v", err)
	}

	events, err := s.ListTaskEvents(ctx, "t1")
	if err != nil {
		t.Fatalf("ListTaskEvents failed: %v", err)
	}
	if len(events) != 3 || events[0].Type != domain.TaskEventCreated || events[1].Type != domain.TaskEventDispatched ||
		events[2].Type != domain.TaskEventStatusChanged {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[2].Payload != nil {
		t.Fatalf("expected nil payload, got %s", events[2].Payload)
	}

	bad := &domain.TaskEvent{EventID: "x", TaskID: "ghost", AgentID: "a1", Ts: 1, Type: domain.TaskEventCreated}
	if err := s.CreateTaskEvent(ctx, bad); err == nil {
		t.Fatalf("expected foreign key failure for unknown task")
	}
}

func TestRebind(t *testing.T) {
	pg := dialects[DriverPostgres]
	got := pg.rebind(`UPDATE tasks SET status = ?, result = ? WHERE task_id = ?`)
	want := `UPDATE tasks SET status = $1, result = $2 WHERE task_id = $3`
	if got != want {
		t.Fatalf("rebind = %q, want %q", got, want)
	}

	lite := dialects[DriverSQLite3]
	if q := `SELECT ?`; lite.rebind(q) != q {
		t.Fatalf("sqlite query should be unchanged")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pg := dialects[DriverPostgres]
	if !pg.isUniqueViolation(errors.New(`pq: duplicate key value violates unique constraint "agents_pkey"`)) {
		t.Fatalf("expected postgres duplicate key to be detected")
	}
	if pg.isUniqueViolation(nil) {
		t.Fatalf("nil is not a violation")
	}
	if _, err := NewSQLStore("oracle", "x"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
