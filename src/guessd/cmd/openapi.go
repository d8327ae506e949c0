package cmd

import (
	"fmt"

	"github.com/q-controller/guessit/src/pkg/game"
	"github.com/spf13/cobra"
)

var openapiCmd = &cobra.Command{
	Use:    "openapi",
	Short:  "Produces OpenAPI specifications for the game service",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, specErr := game.GenerateOpenAPISpecs()
		if specErr != nil {
			return fmt.Errorf("failed to generate OpenAPI specs: %w", specErr)
		}

		fmt.Fprintln(cmd.OutOrStdout(), spec)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(openapiCmd)
}
