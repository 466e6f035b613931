// Command tuplremotectl is a thin operational client for tuplremoted's
// read-only HTTP diagnostics surface: session listing, handle counts, and
// health checks.
package main

import (
	"fmt"
	"os"

	"github.com/tupldb/remote/cmd/tuplremotectl/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
