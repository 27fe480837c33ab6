// Command mcpctl is a command line client for the coordinator API.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"

	"github.com/xiaot623/agentmcp/internal/adapter/mcpclient"
)

// Options is the root command that groups sub-commands. The struct tags are
// interpreted by github.com/jessevdk/go-flags.
type Options struct {
	Server  string `short:"s" long:"server" env:"MCP_URL" default:"http://localhost:8080" description:"coordinator base URL"`
	NoColor bool   `long:"no-color" description:"disable colored output"`
	JSON    bool   `long:"json" description:"print raw JSON instead of tables"`

	Status       StatusCmd       `command:"status" description:"Show agent and task counts"`
	Agents       AgentsCmd       `command:"agents" description:"List registered agents"`
	Tasks        TasksCmd        `command:"tasks" description:"List tasks in ledger order"`
	Task         TaskCmd         `command:"task" description:"Show one task"`
	CreateTask   CreateTaskCmd   `command:"create-task" description:"Create a pending task"`
	Dispatch     DispatchCmd     `command:"dispatch" description:"Push a pending task to its agent"`
	DispatchNext DispatchNextCmd `command:"dispatch-next" description:"Dispatch the next eligible pending task"`
	Events       EventsCmd       `command:"events" description:"Show the event log of a task"`
	Config       ConfigCmd       `command:"config" description:"List configuration or show one key"`
	SetConfig    SetConfigCmd    `command:"set-config" description:"Create or update a configuration key"`
	Watch        WatchCmd        `command:"watch" description:"Stream task events"`

	out    io.Writer
	client *mcpclient.Client
}

// options is shared with sub-commands during Execute.
var options *Options

func (o *Options) api() *mcpclient.Client {
	if o.client == nil {
		o.client = mcpclient.NewClient(o.Server)
	}
	return o.client
}

// run parses args and executes the selected command, writing to out.
func run(args []string, out io.Writer) error {
	options = &Options{out: out}
	parser := flags.NewParser(options, flags.HelpFlag|flags.PassDoubleDash)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if options.NoColor {
			color.NoColor = true
		}
		if cmd == nil {
			return nil
		}
		return cmd.Execute(args)
	}
	_, err := parser.ParseArgs(args)
	return err
}

func main() {
	if err := run(os.Args[1:], color.Output); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, flagsErr.Message)
			return
		}
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}
