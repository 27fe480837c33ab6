// Package service implements the coordinator: agent registry, task ledger and dispatcher.
package service

import (
	"log/slog"
	"time"

	"github.com/xiaot623/agentmcp/internal/adapter/agentclient"
	"github.com/xiaot623/agentmcp/internal/config"
	"github.com/xiaot623/agentmcp/internal/domain"
	"github.com/xiaot623/agentmcp/internal/metrics"
	"github.com/xiaot623/agentmcp/internal/policy"
	"github.com/xiaot623/agentmcp/internal/store"
)

// EventPublisher receives every recorded task event.
type EventPublisher interface {
	Publish(ev domain.TaskEvent) error
}

type Service struct {
	store        store.Store
	agentClient  *agentclient.Client
	config       *config.Config
	policyEngine *policy.Engine
	metrics      *metrics.Metrics
	events       EventPublisher
	logger       *slog.Logger
	now          func() time.Time
}

// New wires the coordinator. policyEngine, m and events may be nil.
func New(store store.Store, agentClient *agentclient.Client, cfg *config.Config, policyEngine *policy.Engine, m *metrics.Metrics, events EventPublisher) *Service {
	return &Service{
		store:        store,
		agentClient:  agentClient,
		config:       cfg,
		policyEngine: policyEngine,
		metrics:      m,
		events:       events,
		logger:       slog.Default().With("component", "service"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}
