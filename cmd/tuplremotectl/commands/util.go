package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tupldb/remote/internal/cli/credentials"
)

// resolveServerAndToken returns the diagnostics base URL and bearer token
// to use: explicit flags win, falling back to the stored login context.
func resolveServerAndToken(flagServer, flagToken string) (server, token string, err error) {
	if flagServer != "" && flagToken != "" {
		return flagServer, flagToken, nil
	}

	store, err := credentials.Load()
	if err != nil {
		return "", "", fmt.Errorf("load credentials: %w", err)
	}
	ctx, err := store.Current()
	if err != nil {
		if flagServer != "" {
			return flagServer, "", nil
		}
		return "", "", err
	}

	server = ctx.ServerURL
	if flagServer != "" {
		server = flagServer
	}
	token = ctx.Token
	if flagToken != "" {
		token = flagToken
	}
	if ctx.IsExpired() && flagToken == "" {
		return server, token, fmt.Errorf("stored token has expired; run 'tuplremotectl login' again")
	}
	return server, token, nil
}

func newAuthenticatedRequest(method, url, token string) (*http.Request, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

var httpClient = &http.Client{Timeout: 5 * time.Second}
