package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xiaot623/agentmcp/internal/domain"
)

type StatusCmd struct{}

func (c *StatusCmd) Execute([]string) error {
	status, err := options.api().SystemStatus(context.Background())
	if err != nil {
		return err
	}
	if options.JSON {
		return printJSON(status)
	}
	printStatus(status)
	return nil
}

type AgentsCmd struct{}

func (c *AgentsCmd) Execute([]string) error {
	agents, err := options.api().ListAgents(context.Background())
	if err != nil {
		return err
	}
	if options.JSON {
		return printJSON(agents)
	}
	printAgents(agents)
	return nil
}

type TasksCmd struct {
	AgentID  string `short:"a" long:"agent" description:"only tasks owned by this agent"`
	Status   string `long:"status" description:"only tasks with this status"`
	TaskType string `short:"t" long:"type" description:"only tasks of this type"`
}

func (c *TasksCmd) Execute([]string) error {
	tasks, err := options.api().ListTasks(context.Background(), domain.TaskFilter{
		AgentID:  c.AgentID,
		Status:   domain.TaskStatus(c.Status),
		TaskType: c.TaskType,
	})
	if err != nil {
		return err
	}
	if options.JSON {
		return printJSON(tasks)
	}
	printTasks(tasks)
	return nil
}

type taskArg struct {
	TaskID string `positional-arg-name:"task-id"`
}

type TaskCmd struct {
	Args taskArg `positional-args:"yes" required:"yes"`
}

func (c *TaskCmd) Execute([]string) error {
	task, err := options.api().GetTask(context.Background(), c.Args.TaskID)
	if err != nil {
		return err
	}
	return printJSON(task)
}

type CreateTaskCmd struct {
	AgentID    string `short:"a" long:"agent" required:"yes" description:"owning agent id"`
	TaskType   string `short:"t" long:"type" required:"yes" description:"task type"`
	Parameters string `short:"p" long:"params" default:"{}" description:"task parameters as a JSON object"`
	Priority   int    `long:"priority" default:"5" description:"1 (highest) to 10"`
}

func (c *CreateTaskCmd) Execute([]string) error {
	if !json.Valid([]byte(c.Parameters)) {
		return fmt.Errorf("--params is not valid JSON")
	}
	priority := c.Priority
	task, err := options.api().CreateTask(context.Background(), &domain.CreateTaskRequest{
		AgentID:    c.AgentID,
		TaskType:   c.TaskType,
		Parameters: json.RawMessage(c.Parameters),
		Priority:   &priority,
	})
	if err != nil {
		return err
	}
	if options.JSON {
		return printJSON(task)
	}
	fmt.Fprintf(options.out, "%s %s\n", okMark(), task.TaskID)
	return nil
}

type DispatchCmd struct {
	Args taskArg `positional-args:"yes" required:"yes"`
}

func (c *DispatchCmd) Execute([]string) error {
	resp, err := options.api().DispatchTask(context.Background(), c.Args.TaskID)
	if err != nil {
		return err
	}
	printDispatch(resp)
	return nil
}

type DispatchNextCmd struct {
	AgentID string `short:"a" long:"agent" description:"only consider this agent's tasks"`
}

func (c *DispatchNextCmd) Execute([]string) error {
	resp, err := options.api().DispatchNext(context.Background(), c.AgentID)
	if errors.Is(err, domain.ErrNotFound) {
		fmt.Fprintln(options.out, dim("no dispatchable pending task"))
		return nil
	}
	if err != nil {
		return err
	}
	printDispatch(resp)
	return nil
}

type EventsCmd struct {
	Args taskArg `positional-args:"yes" required:"yes"`
}

func (c *EventsCmd) Execute([]string) error {
	events, err := options.api().ListTaskEvents(context.Background(), c.Args.TaskID)
	if err != nil {
		return err
	}
	if options.JSON {
		return printJSON(events)
	}
	for _, ev := range events {
		printEvent(ev)
	}
	return nil
}

type ConfigCmd struct {
	Args struct {
		Key string `positional-arg-name:"key"`
	} `positional-args:"yes"`
}

func (c *ConfigCmd) Execute([]string) error {
	ctx := context.Background()
	if c.Args.Key != "" {
		cfg, err := options.api().GetConfiguration(ctx, c.Args.Key)
		if err != nil {
			return err
		}
		return printJSON(cfg)
	}
	cfgs, err := options.api().ListConfigurations(ctx)
	if err != nil {
		return err
	}
	if options.JSON {
		return printJSON(cfgs)
	}
	printConfigurations(cfgs)
	return nil
}

type SetConfigCmd struct {
	Description string `short:"d" long:"description" description:"description of the key"`
	Args        struct {
		Key   string `positional-arg-name:"key"`
		Value string `positional-arg-name:"value"`
	} `positional-args:"yes" required:"yes"`
}

// Execute updates the key, creating it when it does not exist yet.
func (c *SetConfigCmd) Execute([]string) error {
	ctx := context.Background()
	req := &domain.ConfigurationRequest{Key: c.Args.Key, Value: &c.Args.Value}
	if c.Description != "" {
		req.Description = &c.Description
	}

	cfg, err := options.api().UpdateConfiguration(ctx, c.Args.Key, req)
	if errors.Is(err, domain.ErrNotFound) {
		cfg, err = options.api().CreateConfiguration(ctx, req)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(options.out, "%s %s = %s\n", okMark(), cfg.Key, cfg.Value)
	return nil
}

type WatchCmd struct {
	AgentID string `short:"a" long:"agent" description:"only events of this agent"`
	TaskID  string `long:"task" description:"only events of this task"`
}

func (c *WatchCmd) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(options.out, dim("watching events, press Ctrl+C to stop"))
	return options.api().WatchEvents(ctx, c.AgentID, c.TaskID, func(ev domain.TaskEvent) {
		if options.JSON {
			_ = printJSON(ev)
			return
		}
		printEvent(ev)
	})
}
