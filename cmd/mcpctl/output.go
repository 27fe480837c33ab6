package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/xiaot623/agentmcp/internal/domain"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func okMark() string {
	return green("✓")
}

func colorStatus(status string) string {
	switch status {
	case string(domain.AgentStatusActive), string(domain.TaskStatusCompleted):
		return green(status)
	case string(domain.TaskStatusRunning), string(domain.TaskStatusPending), string(domain.AgentStatusInactive):
		return yellow(status)
	case string(domain.AgentStatusError), string(domain.TaskStatusFailed):
		return red(status)
	default:
		return dim(status)
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(options.out, string(data))
	return err
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(options.out, 0, 0, 2, ' ', 0)
}

func printStatus(s *domain.SystemStatus) {
	fmt.Fprintf(options.out, "%s %d total\n", bold("Agents"), s.Agents["total"])
	for _, st := range domain.AgentStatuses {
		fmt.Fprintf(options.out, "  %-10s %d\n", colorStatus(string(st)), s.Agents[string(st)])
	}
	fmt.Fprintf(options.out, "%s %d total\n", bold("Tasks"), s.Tasks["total"])
	for _, st := range domain.TaskStatuses {
		fmt.Fprintf(options.out, "  %-10s %d\n", colorStatus(string(st)), s.Tasks[string(st)])
	}
	fmt.Fprintln(options.out, dim("as of "+s.Timestamp.Format(time.RFC3339)))
}

func printAgents(agents []domain.Agent) {
	if len(agents) == 0 {
		fmt.Fprintln(options.out, dim("no agents registered"))
		return
	}
	w := newTable()
	fmt.Fprintln(w, "ID\tNAME\tENDPOINT\tCAPABILITIES\tLAST HEARTBEAT\tSTATUS")
	for _, a := range agents {
		hb := "-"
		if a.LastHeartbeat != nil {
			hb = a.LastHeartbeat.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Name, a.Endpoint, strings.Join(a.Capabilities, ","), hb, colorStatus(string(a.Status)))
	}
	w.Flush()
}

func printTasks(tasks []domain.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(options.out, dim("no tasks"))
		return
	}
	w := newTable()
	fmt.Fprintln(w, "TASK ID\tAGENT\tTYPE\tPRIORITY\tCREATED\tSTATUS")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			t.TaskID, t.AgentID, t.TaskType, t.Priority, t.CreatedAt.Local().Format(time.DateTime), colorStatus(string(t.Status)))
	}
	w.Flush()
}

func printConfigurations(cfgs []domain.Configuration) {
	if len(cfgs) == 0 {
		fmt.Fprintln(options.out, dim("no configuration"))
		return
	}
	w := newTable()
	fmt.Fprintln(w, "KEY\tVALUE\tDESCRIPTION")
	for _, c := range cfgs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Key, c.Value, c.Description)
	}
	w.Flush()
}

func printDispatch(resp *domain.DispatchResponse) {
	fmt.Fprintf(options.out, "%s %s %s\n", okMark(), resp.TaskID, cyan(resp.Status))
}

func printEvent(ev domain.TaskEvent) {
	ts := time.UnixMilli(ev.Ts).Local().Format("15:04:05.000")
	line := fmt.Sprintf("%s %s task=%s agent=%s", dim(ts), cyan(string(ev.Type)), ev.TaskID, ev.AgentID)
	if len(ev.Payload) > 0 {
		line += " " + string(ev.Payload)
	}
	fmt.Fprintln(options.out, line)
}
