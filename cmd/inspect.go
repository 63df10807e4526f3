package cmd

import (
	"github.com/spf13/cobra"

	"github.com/meshkit/gltf-mcp/internal/app"
	"github.com/meshkit/gltf-mcp/internal/tools"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <input>",
	Short: "Print the engine's structural breakdown of an asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd, func(a *app.App) tools.Result {
			return a.Inspector.Inspect(cmd.Context(), tools.AssetInput{InputPath: args[0]})
		})
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <input>",
	Short: "Run the glTF 2.0 conformance check on an asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd, func(a *app.App) tools.Result {
			return a.Inspector.Validate(cmd.Context(), tools.AssetInput{InputPath: args[0]})
		})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <input>",
	Short: "Parse an asset in-process and print structural counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd, func(a *app.App) tools.Result {
			return a.Inspector.Analyze(cmd.Context(), tools.AssetInput{InputPath: args[0]})
		})
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd, validateCmd, analyzeCmd)
}
