// Package diagnostics exposes the process to the gops command line tool.
package diagnostics

import (
	"fmt"

	"github.com/google/gops/agent"
)

// Start runs a gops agent on addr, writing its port file under configDir
// (the gops default when empty). An empty addr disables the agent and
// returns a no-op stop function.
func Start(addr, configDir string) (stop func(), err error) {
	if addr == "" {
		return func() {}, nil
	}
	if err := agent.Listen(agent.Options{Addr: addr, ConfigDir: configDir}); err != nil {
		return nil, fmt.Errorf("starting gops agent: %w", err)
	}
	return agent.Close, nil
}
