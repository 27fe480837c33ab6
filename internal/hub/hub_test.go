package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/agentmcp/internal/domain"
)

func TestFilterMatch(t *testing.T) {
	ev := domain.TaskEvent{TaskID: "t1", AgentID: "a1"}

	assert.True(t, Filter{}.Match(ev))
	assert.True(t, Filter{AgentID: "a1"}.Match(ev))
	assert.True(t, Filter{AgentID: "a1", TaskID: "t1"}.Match(ev))
	assert.False(t, Filter{AgentID: "a2"}.Match(ev))
	assert.False(t, Filter{TaskID: "t2"}.Match(ev))
}

func TestHubDeliversMatchingEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)

	all := h.NewConnection(nil, Filter{})
	onlyA2 := h.NewConnection(nil, Filter{AgentID: "a2"})
	h.Register(all)
	h.Register(onlyA2)
	require.Eventually(t, func() bool { return h.GetConnectionCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.Publish(domain.TaskEvent{EventID: "e1", TaskID: "t1", AgentID: "a1", Type: domain.TaskEventCreated}))

	select {
	case data := <-all.Send:
		var ev domain.TaskEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, "e1", ev.EventID)
		assert.Equal(t, domain.TaskEventCreated, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected event on unfiltered connection")
	}

	select {
	case <-onlyA2.Send:
		t.Fatal("filtered connection should not receive event for a1")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)

	conn := h.NewConnection(nil, Filter{})
	h.Register(conn)
	h.Unregister(conn)

	select {
	case _, ok := <-conn.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	assert.Equal(t, 0, h.GetConnectionCount())
}

func TestPublishNeverBlocks(t *testing.T) {
	h := NewHub()
	var err error
	for i := 0; i < cap(h.broadcast)+1; i++ {
		err = h.Publish(domain.TaskEvent{EventID: "e"})
	}
	assert.ErrorIs(t, err, ErrQueueFull)
}
