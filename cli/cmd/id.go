package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibridge-systems/ibridge/cli/pkg/output"
	"github.com/ibridge-systems/ibridge/common/idgen"
)

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Generate message identifiers",
	Example: `  ibridgemsg id
  ibridgemsg id -n 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("count")
		if n < 1 {
			return fmt.Errorf("--count must be at least 1")
		}

		for i := 0; i < n; i++ {
			output.Plain("%s", idgen.NewID())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(idCmd)

	idCmd.Flags().IntP("count", "n", 1, "number of identifiers to generate")
}
