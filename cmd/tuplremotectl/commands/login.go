package commands

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/tupldb/remote/internal/admintoken"
	"github.com/tupldb/remote/internal/cli/credentials"
)

var (
	loginServer string
	loginSecret string
	loginTTL    time.Duration
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Mint and store a bearer token for a tuplremoted diagnostics surface",
	Long: `login mints a bearer token signed with the server's admin token
secret (the same secret configured as diagnostics.admin_token_secret) and
stores it alongside the server URL, so later commands don't need the
secret again.

Examples:
  tuplremotectl login --server http://localhost:9091 --secret "$TUPLREMOTE_ADMIN_SECRET"`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginServer, "server", "", "Diagnostics surface base URL (required)")
	loginCmd.Flags().StringVar(&loginSecret, "secret", "", "Admin token signing secret (required)")
	loginCmd.Flags().DurationVar(&loginTTL, "ttl", time.Hour, "Token lifetime")
}

func runLogin(cmd *cobra.Command, args []string) error {
	if loginServer == "" {
		return fmt.Errorf("--server is required")
	}
	if loginSecret == "" {
		return fmt.Errorf("--secret is required")
	}

	parsed, err := url.Parse(loginServer)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	serverURL := parsed.String()

	issuer, err := admintoken.NewIssuer(loginSecret, loginTTL)
	if err != nil {
		return fmt.Errorf("build token issuer: %w", err)
	}
	token, expiresAt, err := issuer.Issue("tuplremotectl")
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	store, err := credentials.Load()
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if err := store.Save(&credentials.Context{ServerURL: serverURL, Token: token, ExpiresAt: expiresAt}); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	fmt.Printf("Logged in to %s\n", serverURL)
	fmt.Printf("Token expires: %s\n", expiresAt.Format(time.RFC3339))
	fmt.Printf("Credentials saved to: %s\n", store.Path())
	return nil
}
