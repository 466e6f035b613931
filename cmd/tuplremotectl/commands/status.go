package commands

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var (
	statusServer string
	statusToken  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check a tuplremoted server's health",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServer, "server", "", "Diagnostics surface base URL (overrides stored login)")
	statusCmd.Flags().StringVar(&statusToken, "token", "", "Bearer token (overrides stored login)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	server, _, err := resolveServerAndToken(statusServer, statusToken)
	if err != nil && server == "" {
		return err
	}

	req, err := newAuthenticatedRequest(http.MethodGet, server+"/healthz", "")
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		fmt.Println("Status: unreachable")
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		fmt.Printf("Status: healthy (%s)\n", server)
		return nil
	}
	fmt.Printf("Status: unhealthy (HTTP %d)\n", resp.StatusCode)
	return fmt.Errorf("server returned HTTP %d", resp.StatusCode)
}
