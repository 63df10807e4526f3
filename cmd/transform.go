package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meshkit/gltf-mcp/internal/app"
	"github.com/meshkit/gltf-mcp/internal/asset"
	"github.com/meshkit/gltf-mcp/internal/config"
	"github.com/meshkit/gltf-mcp/internal/tools"
)

// transformReq collects flag values; booleans map one-to-one onto
// request operations.
var transformReq asset.Request

var transformGLB bool

var transformCmd = &cobra.Command{
	Use:   "transform <input>",
	Short: "Run a transformation chain on an asset",
	Long: `Transform applies the requested operations to a glTF/GLB file and
prints the result envelope as JSON. Multiple operations run as a
chained sequence in a fixed order (compression, geometry, texture,
structural).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		transformReq.InputPath = args[0]
		if transformGLB {
			b := true
			transformReq.Binary = &b
		}
		return runOneShot(cmd, func(a *app.App) tools.Result {
			return a.Processor.Transform(cmd.Context(), transformReq)
		})
	},
}

func init() {
	f := transformCmd.Flags()
	f.StringVarP(&transformReq.OutputPath, "output", "o", "", "output path (derived from the input when omitted)")
	f.BoolVar(&transformGLB, "glb", false, "write binary .glb output")

	f.BoolVar(&transformReq.Draco, "draco", false, "Draco mesh compression")
	f.BoolVar(&transformReq.Meshopt, "meshopt", false, "meshopt compression")
	f.BoolVar(&transformReq.Quantize, "quantize", false, "attribute quantization")
	f.BoolVar(&transformReq.Weld, "weld", false, "weld duplicate vertices")
	f.BoolVar(&transformReq.Simplify, "simplify", false, "mesh simplification")
	f.Float64Var(&transformReq.SimplifyRatio, "simplify-ratio", 0, "target triangle ratio for --simplify (default 0.5)")

	f.BoolVar(&transformReq.ETC1S, "etc1s", false, "ETC1S texture compression")
	f.BoolVar(&transformReq.UASTC, "uastc", false, "UASTC texture compression")
	f.BoolVar(&transformReq.WebP, "webp", false, "WebP texture encoding")
	f.BoolVar(&transformReq.AVIF, "avif", false, "AVIF texture encoding")

	f.BoolVar(&transformReq.Optimize, "optimize", false, "full optimization pass")
	f.BoolVar(&transformReq.Dedup, "dedup", false, "deduplicate resources")
	f.BoolVar(&transformReq.Prune, "prune", false, "prune unused resources")

	rootCmd.AddCommand(transformCmd)
}

// runOneShot wires the application, runs a single tool call and prints
// its envelope. An unsuccessful envelope exits non-zero without a
// second error message; the envelope already carries the details.
func runOneShot(cmd *cobra.Command, call func(*app.App) tools.Result) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a, err := app.Setup(cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	result := call(a)

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(body))

	if !result.Success {
		cmd.SilenceUsage = true
		return fmt.Errorf("operation failed: %s", result.Error)
	}
	return nil
}
