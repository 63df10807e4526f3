// Package mcp exposes the asset toolset over the Model Context Protocol.
// Each tool handler returns the full result envelope as JSON text so
// clients always see success, payload and timing in one place.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/meshkit/gltf-mcp/internal/asset"
	"github.com/meshkit/gltf-mcp/internal/pipeline"
	"github.com/meshkit/gltf-mcp/internal/tools"
)

// Server wraps the MCP SDK server and the asset toolsets.
type Server struct {
	mcpServer *mcp.Server
	processor *tools.Processor
	inspector *tools.Inspector
	name      string
	version   string
}

// Config holds MCP server configuration.
type Config struct {
	Name      string
	Version   string
	Processor *tools.Processor
	Inspector *tools.Inspector
}

// NewServer creates the MCP server and registers every tool.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if cfg.Inspector == nil {
		return nil, fmt.Errorf("inspector is required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		processor: cfg.Processor,
		inspector: cfg.Inspector,
		name:      cfg.Name,
		version:   cfg.Version,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Run starts the MCP server on the given transport. Blocking; returns
// when the transport closes or ctx is canceled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// CacheStatsInput is the (empty) input of the cache_stats tool.
type CacheStatsInput struct{}

func (s *Server) registerTools() error {
	if err := register(s, &mcp.Tool{
		Name:        "transform_asset",
		Description: "Apply one or more transformations to a glTF/GLB asset: compression (draco, meshopt, quantize), geometry (weld, simplify), texture encoding (etc1s, uastc, webp, avif, png, jpeg), scene and structural operations. Multiple operations run as a chained sequence.",
	}, func(ctx context.Context, in asset.Request) tools.Result {
		return s.processor.Transform(ctx, in)
	}); err != nil {
		return err
	}

	if err := register(s, &mcp.Tool{
		Name:        "convert_asset",
		Description: "Convert a glTF asset between .gltf and binary .glb, optionally applying Draco compression during conversion.",
	}, func(ctx context.Context, in pipeline.ConvertRequest) tools.Result {
		return s.processor.Convert(ctx, in)
	}); err != nil {
		return err
	}

	if err := register(s, &mcp.Tool{
		Name:        "merge_assets",
		Description: "Merge two or more glTF/GLB files into a single asset.",
	}, func(ctx context.Context, in tools.MergeInput) tools.Result {
		return s.processor.Merge(ctx, in)
	}); err != nil {
		return err
	}

	if err := register(s, &mcp.Tool{
		Name:        "inspect_asset",
		Description: "Report the engine's structural breakdown of a glTF/GLB asset: meshes, materials, textures, animations and extensions.",
	}, func(ctx context.Context, in tools.AssetInput) tools.Result {
		return s.inspector.Inspect(ctx, in)
	}); err != nil {
		return err
	}

	if err := register(s, &mcp.Tool{
		Name:        "validate_asset",
		Description: "Run the engine's glTF 2.0 conformance check on an asset and return its findings.",
	}, func(ctx context.Context, in tools.AssetInput) tools.Result {
		return s.inspector.Validate(ctx, in)
	}); err != nil {
		return err
	}

	if err := register(s, &mcp.Tool{
		Name:        "analyze_asset",
		Description: "Parse a glTF/GLB file in-process and return structural counts: meshes, vertices, triangles, materials, textures, animations and used extensions.",
	}, func(ctx context.Context, in tools.AssetInput) tools.Result {
		return s.inspector.Analyze(ctx, in)
	}); err != nil {
		return err
	}

	if err := register(s, &mcp.Tool{
		Name:        "cache_stats",
		Description: "Report result-cache hit/miss counters and the current key count.",
	}, func(_ context.Context, _ CacheStatsInput) tools.Result {
		return s.processor.CacheStats()
	}); err != nil {
		return err
	}

	return nil
}

// register infers the input schema from In and adds one tool whose
// handler renders the result envelope as JSON text. A failed operation
// is an error result, not a protocol error; only envelope marshaling
// itself propagates as a system error.
func register[In any](s *Server, tool *mcp.Tool, handle func(ctx context.Context, in In) tools.Result) error {
	inputSchema, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", tool.Name, err)
	}
	tool.InputSchema = inputSchema

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		result := handle(ctx, in)

		body, err := json.Marshal(result)
		if err != nil {
			return nil, nil, fmt.Errorf("marshaling result: %w", err)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
			IsError: !result.Success,
		}, nil, nil
	})

	return nil
}
