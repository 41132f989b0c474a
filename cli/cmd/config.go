package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  "Print the configuration after defaults, the config file, environment variables and flags are applied.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveConfig(cmd).WriteYAML(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
