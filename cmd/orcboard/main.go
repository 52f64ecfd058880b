// Command orcboard is the entry point for the board-driven agent
// orchestrator.
package main

import (
	"os"

	"github.com/taskfleet/taskfleet/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
