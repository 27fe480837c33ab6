package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/agentmcp/internal/adapter/agentclient"
	"github.com/xiaot623/agentmcp/internal/config"
	"github.com/xiaot623/agentmcp/internal/domain"
	"github.com/xiaot623/agentmcp/internal/hub"
	"github.com/xiaot623/agentmcp/internal/service"
	"github.com/xiaot623/agentmcp/internal/testutil"
	handler "github.com/xiaot623/agentmcp/internal/transport/http"
)

func newCoordinator(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := hub.NewHub()
	go h.Run(ctx)

	svc := service.New(testutil.NewTestStore(t), agentclient.NewClient(time.Second),
		&config.Config{DispatchTimeout: time.Second}, nil, nil, h)
	srv := httptest.NewServer(handler.NewServer(svc, h, nil, nil))
	t.Cleanup(srv.Close)
	return srv
}

func mcpctl(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(append([]string{"--no-color", "--server", server}, args...), &out)
	return out.String(), err
}

func TestMcpctlWorkflow(t *testing.T) {
	srv := newCoordinator(t)
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"completed"}`))
	}))
	defer agent.Close()

	ctx := context.Background()
	client := (&Options{Server: srv.URL}).api()
	_, err := client.RegisterAgent(ctx, &domain.RegisterAgentRequest{ID: "a1", Name: "Demo", Endpoint: agent.URL})
	require.NoError(t, err)

	out, err := mcpctl(t, srv.URL, "agents")
	require.NoError(t, err)
	assert.Contains(t, out, "a1")
	assert.Contains(t, out, "active")

	out, err = mcpctl(t, srv.URL, "--json", "create-task", "--agent", "a1", "--type", "echo", "--params", `{"x":1}`, "--priority", "2")
	require.NoError(t, err)
	var task domain.Task
	require.NoError(t, json.Unmarshal([]byte(out), &task))
	assert.Equal(t, 2, task.Priority)

	out, err = mcpctl(t, srv.URL, "tasks", "--agent", "a1")
	require.NoError(t, err)
	assert.Contains(t, out, task.TaskID)
	assert.Contains(t, out, "pending")

	out, err = mcpctl(t, srv.URL, "dispatch-next")
	require.NoError(t, err)
	assert.Contains(t, out, "task_sent_to_agent")

	out, err = mcpctl(t, srv.URL, "dispatch-next")
	require.NoError(t, err)
	assert.Contains(t, out, "no dispatchable pending task")

	out, err = mcpctl(t, srv.URL, "events", task.TaskID)
	require.NoError(t, err)
	assert.Contains(t, out, "task_created")
	assert.Contains(t, out, "task_dispatched")

	out, err = mcpctl(t, srv.URL, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Tasks 1 total")

	_, err = mcpctl(t, srv.URL, "task", "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMcpctlSetConfig(t *testing.T) {
	srv := newCoordinator(t)

	out, err := mcpctl(t, srv.URL, "set-config", "max_tasks", "10", "-d", "limit")
	require.NoError(t, err)
	assert.Contains(t, out, "max_tasks = 10")

	out, err = mcpctl(t, srv.URL, "set-config", "max_tasks", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "max_tasks = 20")

	out, err = mcpctl(t, srv.URL, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "max_tasks")
	assert.Contains(t, out, "limit")
}

func TestMcpctlCreateTaskRejectsBadParams(t *testing.T) {
	srv := newCoordinator(t)
	_, err := mcpctl(t, srv.URL, "create-task", "--agent", "a1", "--type", "echo", "--params", "{nope")
	assert.Error(t, err)
}
