package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tupldb/remote/internal/cli/credentials"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.Load()
		if err != nil {
			return fmt.Errorf("load credentials: %w", err)
		}
		if err := store.Clear(); err != nil {
			return fmt.Errorf("clear credentials: %w", err)
		}
		fmt.Println("Logged out")
		return nil
	},
}
