package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/agentmcp/internal/domain"
)

func TestSweepDispatchesAllEligibleTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	agent := newFakeAgent(t, http.StatusOK)
	f.register(t, "a1", agent.server.URL)

	t1 := f.createTask(t, "a1", 5)
	t2 := f.createTask(t, "a1", 1)
	t3 := f.createTask(t, "a1", 9)

	n := f.svc.sweepPendingTasks(ctx)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{t2.TaskID, t1.TaskID, t3.TaskID}, agent.taskIDs())

	assert.Equal(t, 0, f.svc.sweepPendingTasks(ctx))
}

func TestSweepSkipsPastTransportFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	broken := newFakeAgent(t, http.StatusInternalServerError)
	healthy := newFakeAgent(t, http.StatusOK)
	f.register(t, "broken", broken.server.URL)
	f.register(t, "healthy", healthy.server.URL)

	bad := f.createTask(t, "broken", 1)
	good := f.createTask(t, "healthy", 5)

	n := f.svc.sweepPendingTasks(ctx)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetTask(ctx, bad.TaskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)

	got, err = f.svc.GetTask(ctx, good.TaskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusRunning, got.Status)
}

func TestRunSchedulerStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	agent := newFakeAgent(t, http.StatusOK)
	f.register(t, "a1", agent.server.URL)
	task := f.createTask(t, "a1", 5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.RunScheduler(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got, err := f.svc.GetTask(context.Background(), task.TaskID)
		return err == nil && got.Status == domain.TaskStatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
