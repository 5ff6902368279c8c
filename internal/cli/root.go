// Package cli provides the anythingai command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/anything-ai/anything-ai/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	configPath string
	envFile    string

	cfg *config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "anythingai",
	Short: "Anything AI chat relay",
	Long: `Anything AI relays chat turns to a hosted generative model and streams the
reply back over Server-Sent Events, enriched with weather, time and web context.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}

		// A missing .env is fine
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", envFile, err)
		}

		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log, err = logger.NewLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to .env file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)
}
