package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether a running tuplremoted's diagnostics surface is healthy",
	Long: `Calls the diagnostics surface's /healthz endpoint and reports whether
the server responded. This only works when the server was started with
diagnostics.enabled: true.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:9091", "Diagnostics surface base URL")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(statusAddr + "/healthz")
	if err != nil {
		fmt.Println("Status: unreachable")
		return fmt.Errorf("diagnostics surface unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		fmt.Println("Status: healthy")
		return nil
	}
	fmt.Printf("Status: unhealthy (HTTP %d)\n", resp.StatusCode)
	return fmt.Errorf("diagnostics surface returned HTTP %d", resp.StatusCode)
}
