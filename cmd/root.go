// Package cmd implements the gltf-mcp command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gltf-mcp",
	Short: "MCP server for glTF/GLB processing",
	Long: `gltf-mcp exposes glTF 2.0 asset processing as MCP tools, wrapping
the gltf-transform and gltf-pipeline command-line engines behind a
cached, concurrency-bounded executor.

Running without a subcommand starts the MCP server on stdio.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
