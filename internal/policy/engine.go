// Package policy evaluates task admission rules written in Rego.
package policy

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by a policy.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Query is the rule every admission policy must define.
const Query = "data.task_policy.decision"

// Input is the document a policy sees for a task creation request.
type Input struct {
	AgentID    string     `json:"agent_id"`
	TaskType   string     `json:"task_type"`
	Priority   int        `json:"priority"`
	Parameters any        `json:"parameters"`
	Agent      AgentInput `json:"agent"`
}

// AgentInput describes the target agent.
type AgentInput struct {
	Status       string   `json:"status"`
	Capabilities []string `json:"capabilities"`
}

// Engine is the OPA policy engine. The prepared query can be swapped at runtime.
type Engine struct {
	mu    sync.RWMutex
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	query, err := prepare(ctx, policyContent)
	if err != nil {
		return nil, err
	}
	return &Engine{query: query}, nil
}

// NewEngineFromFile creates an engine from a policy file, or the default policy when path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return NewEngine(ctx, string(content))
}

func prepare(ctx context.Context, policyContent string) (rego.PreparedEvalQuery, error) {
	r := rego.New(
		rego.Query(Query),
		rego.Module("task_policy.rego", policyContent),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return query, nil
}

// Reload compiles policyContent and swaps it in. On error the current policy stays active.
func (e *Engine) Reload(ctx context.Context, policyContent string) error {
	query, err := prepare(ctx, policyContent)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.query = query
	e.mu.Unlock()
	return nil
}

// Evaluate checks the task policy.
// Returns: decision (allow or deny), reason (optional), error.
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, string, error) {
	e.mu.RLock()
	query := e.query
	e.mu.RUnlock()

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	// An undefined decision means the policy has no default rule.
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, "no decision", nil
	}

	switch v := results[0].Expressions[0].Value.(type) {
	case string:
		return v, "", nil
	case map[string]any:
		decision, _ := v["decision"].(string)
		reason, _ := v["reason"].(string)
		if decision == "" {
			return "", "", fmt.Errorf("policy object is missing a decision")
		}
		return decision, reason, nil
	default:
		return "", "", fmt.Errorf("unexpected policy result type %T", v)
	}
}

// DefaultPolicy admits every task.
const DefaultPolicy = `
package task_policy

default decision = "allow"
`
