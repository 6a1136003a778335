package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/shelf/internal/config"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shelf",
		Short: "Personal bookmark manager",
		Long:  "shelf serves a personal, per-account bookmark list over a JSON API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				return os.Setenv(config.ConfigFileEnv, cfgFile)
			}
			return nil
		},
		// Running shelf with no subcommand starts the server.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file (overrides "+config.ConfigFileEnv+")")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the command line.
func Execute() error {
	return newRootCmd().Execute()
}
