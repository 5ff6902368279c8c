package cli

import (
	"fmt"

	"github.com/anything-ai/anything-ai/internal/seed"
	"github.com/anything-ai/anything-ai/internal/services/storage"
	"github.com/spf13/cobra"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load departments and users from a YAML file",
	Long: `Load departments and users into the configured storage backend.

Departments are upserted and existing usernames are skipped, so the command
can be run repeatedly. It is only useful with the redis or mongo backend.

Examples:
  anythingai seed --file configs/seed.yaml`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "configs/seed.yaml", "seed file")
}

func runSeed(cmd *cobra.Command, args []string) error {
	if cfg.Storage.Type == "memory" {
		log.Warn("Seeding the memory backend has no lasting effect; use serve --seed instead")
	}

	file, err := seed.Load(seedFile)
	if err != nil {
		return err
	}

	store, err := storage.NewManager(&cfg.Storage, log, nil)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer store.Close()

	result, err := seed.Apply(cmd.Context(), store, file, log)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "departments: %d, users created: %d, users skipped: %d\n",
		result.Departments, result.UsersCreated, result.UsersSkipped)
	return nil
}
