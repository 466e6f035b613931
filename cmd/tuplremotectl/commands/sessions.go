package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var (
	sessionsServer string
	sessionsToken  string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List active sessions on a tuplremoted server",
	Long: `sessions calls the diagnostics surface's GET /sessions endpoint and
prints each session's id, peer address, and per-kind handle counts.`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsServer, "server", "", "Diagnostics surface base URL (overrides stored login)")
	sessionsCmd.Flags().StringVar(&sessionsToken, "token", "", "Bearer token (overrides stored login)")
}

type sessionView struct {
	ID        string         `json:"id"`
	PeerAddr  string         `json:"peer_addr"`
	CreatedAt string         `json:"created_at"`
	Handles   map[string]int `json:"handles_by_kind"`
}

func runSessions(cmd *cobra.Command, args []string) error {
	server, token, err := resolveServerAndToken(sessionsServer, sessionsToken)
	if err != nil {
		return err
	}

	req, err := newAuthenticatedRequest(http.MethodGet, server+"/sessions", token)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned HTTP %d: %s", resp.StatusCode, body)
	}

	var sessions []sessionView
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No active sessions")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  peer=%s  created=%s  handles=%v\n", s.ID, s.PeerAddr, s.CreatedAt, s.Handles)
	}
	return nil
}
