package cli

import (
	"fmt"

	"github.com/anything-ai/anything-ai/internal/services/auth"
	"github.com/anything-ai/anything-ai/internal/services/storage"
	"github.com/spf13/cobra"
)

var tokenUsername string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for an existing user",
	Long: `Issue a bearer token for an existing user, for scripting and debugging.

Examples:
  anythingai token --username alice`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUsername, "username", "u", "", "username to issue the token for")
	tokenCmd.MarkFlagRequired("username")
}

func runToken(cmd *cobra.Command, args []string) error {
	store, err := storage.NewManager(&cfg.Storage, log, nil)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer store.Close()

	user, err := store.GetUserByUsername(cmd.Context(), tokenUsername)
	if err != nil {
		return fmt.Errorf("find user %s: %w", tokenUsername, err)
	}

	token, err := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).IssueToken(user)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
