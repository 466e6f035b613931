// Command tuplremoted runs the remote-access server: it opens the bundled
// reference engine, accepts RPC connections over the two-slot handshake,
// and optionally exposes Prometheus metrics and a read-only diagnostics
// HTTP surface alongside it.
package main

import (
	"fmt"
	"os"

	"github.com/tupldb/remote/cmd/tuplremoted/commands"
)

// Build-time variables injected via ldflags.
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
