package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/agentmcp/internal/config"
	"github.com/xiaot623/agentmcp/internal/domain"
)

func TestRegisterAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/mcp/agents", r.URL.Path)

		var req domain.RegisterAgentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a1", req.ID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.Agent{ID: req.ID, Name: req.Name, Status: domain.AgentStatusActive})
	}))
	defer server.Close()

	client := NewClient(server.URL + "/")
	agent, err := client.RegisterAgent(context.Background(), &domain.RegisterAgentRequest{ID: "a1", Name: "Agent", Endpoint: "http://x"})
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusActive, agent.Status)
}

func TestErrorCodesMapToDomainErrors(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusConflict, `{"error":"agent a1 already exists","code":"conflict"}`, domain.ErrConflict},
		{http.StatusNotFound, `{"error":"agent not found","code":"not_found"}`, domain.ErrNotFound},
		{http.StatusBadRequest, `{"error":"agent inactive","code":"precondition_failed"}`, domain.ErrPreconditionFailed},
		{http.StatusBadGateway, `{"error":"agent unreachable","code":"transport_failure"}`, domain.ErrTransportFailure},
		{http.StatusNotFound, `not json`, domain.ErrNotFound},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		err := NewClient(server.URL).Heartbeat(context.Background(), "a1")
		server.Close()

		require.Error(t, err)
		assert.True(t, errors.Is(err, tc.want), "status %d body %s: got %v", tc.status, tc.body, err)
	}
}

func TestUnregisterAcceptsNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/mcp/agents/a%201", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	require.NoError(t, NewClient(server.URL).UnregisterAgent(context.Background(), "a 1"))
}

func TestUpdateTaskStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/mcp/tasks/t1/status", r.URL.Path)
		var req domain.UpdateTaskStatusRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Status)
		_ = json.NewEncoder(w).Encode(domain.Task{TaskID: "t1", Status: *req.Status, Result: req.Result})
	}))
	defer server.Close()

	status := domain.TaskStatusCompleted
	task, err := NewClient(server.URL).UpdateTaskStatus(context.Background(), "t1", &domain.UpdateTaskStatusRequest{
		Status: &status,
		Result: json.RawMessage(`{"n":1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.JSONEq(t, `{"n":1}`, string(task.Result))
}

func TestListTasksEncodesFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a1", r.URL.Query().Get("agent_id"))
		assert.Equal(t, "pending", r.URL.Query().Get("status"))
		assert.Empty(t, r.URL.Query().Get("task_type"))
		_, _ = w.Write([]byte(`[{"task_id":"t1"},{"task_id":"t2"}]`))
	}))
	defer server.Close()

	tasks, err := NewClient(server.URL).ListTasks(context.Background(), domain.TaskFilter{AgentID: "a1", Status: domain.TaskStatusPending})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t2", tasks[1].TaskID)
}

func TestUnreachableCoordinator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := server.URL
	server.Close()

	err := NewClient(base).Heartbeat(context.Background(), "a1")
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
}

func TestEventsURL(t *testing.T) {
	u, err := NewClient("https://mcp.example.com").eventsURL("a1", "")
	require.NoError(t, err)
	assert.Equal(t, "wss://mcp.example.com/api/mcp/events/ws?agent_id=a1", u)
}

func TestWatchEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mcp/events/ws", r.URL.Path)
		assert.Equal(t, "t1", r.URL.Query().Get("task_id"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		data, _ := json.Marshal(domain.TaskEvent{EventID: "e1", TaskID: "t1", Type: domain.TaskEventDispatched})
		_ = conn.WriteMessage(websocket.TextMessage, data)
		// Hold the connection until the client leaves.
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan domain.TaskEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- NewClient(server.URL).WatchEvents(ctx, "", "t1", func(ev domain.TaskEvent) {
			got <- ev
			cancel()
		})
	}()

	select {
	case ev := <-got:
		assert.Equal(t, "e1", ev.EventID)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
	assert.NoError(t, <-done)
}

func TestDispatchOutlastsCoordinatorTimeout(t *testing.T) {
	t.Setenv(config.ConfigFileEnv, "")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("DISPATCH_TIMEOUT_MS", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, DispatchTimeout > cfg.DispatchTimeout, "dispatch calls must outlast %s", cfg.DispatchTimeout)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mcp/tasks/dispatch-next", r.URL.Path)
		assert.Equal(t, "a1", r.URL.Query().Get("agent_id"))
		_ = json.NewEncoder(w).Encode(domain.DispatchResponse{TaskID: "t1", Status: "task_sent_to_agent"})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).DispatchNext(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "t1", resp.TaskID)
}
