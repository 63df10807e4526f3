package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meshkit/gltf-mcp/internal/asset"
	"github.com/meshkit/gltf-mcp/internal/cache"
	"github.com/meshkit/gltf-mcp/internal/log"
	"github.com/meshkit/gltf-mcp/internal/pipeline"
	"github.com/meshkit/gltf-mcp/internal/security"
)

const (
	prefixInspect  = "inspect"
	prefixValidate = "validate"
	prefixAnalysis = "analysis"
)

// AssetInput is the shared input shape of the read-only asset tools.
type AssetInput struct {
	InputPath string `json:"inputPath" jsonschema:"Path to the .gltf/.glb file"`
}

// InspectReport is the payload of an inspect or validate run.
type InspectReport struct {
	InputPath string `json:"inputPath"`
	Command   string `json:"command"`
	Report    string `json:"report"`
}

// AnalysisReport pairs a structural summary with the file it came from.
type AnalysisReport struct {
	InputPath string        `json:"inputPath"`
	Summary   asset.Summary `json:"summary"`
}

// Inspector handles the read-only tools: inspect, validate and analyze.
// Inspect and validate delegate to the transform engine; analyze parses
// the file in-process.
type Inspector struct {
	transformBin  string
	exec          *pipeline.Executor
	cache         *cache.Manager
	paths         *security.Path
	validationTTL time.Duration
	analysisTTL   time.Duration
	logger        log.Logger
}

// NewInspector creates an Inspector.
func NewInspector(
	transformBin string,
	exec *pipeline.Executor,
	cacheMgr *cache.Manager,
	paths *security.Path,
	validationTTL, analysisTTL time.Duration,
	logger log.Logger,
) (*Inspector, error) {
	if transformBin == "" {
		return nil, fmt.Errorf("transform binary is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cacheMgr == nil {
		return nil, fmt.Errorf("cache manager is required")
	}
	if paths == nil {
		return nil, fmt.Errorf("path validator is required")
	}
	if validationTTL <= 0 || analysisTTL <= 0 {
		return nil, fmt.Errorf("cache TTLs must be positive")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Inspector{
		transformBin:  transformBin,
		exec:          exec,
		cache:         cacheMgr,
		paths:         paths,
		validationTTL: validationTTL,
		analysisTTL:   analysisTTL,
		logger:        logger,
	}, nil
}

// Inspect reports the engine's structural breakdown of an asset.
func (i *Inspector) Inspect(ctx context.Context, input AssetInput) Result {
	return i.terminal(ctx, input, prefixInspect, i.analysisTTL,
		asset.Request{InputPath: input.InputPath, Inspect: true})
}

// Validate runs the engine's conformance check on an asset. Findings come
// back in the report; only an engine failure fails the call.
func (i *Inspector) Validate(ctx context.Context, input AssetInput) Result {
	return i.terminal(ctx, input, prefixValidate, i.validationTTL,
		asset.Request{InputPath: input.InputPath, Validate: true})
}

func (i *Inspector) terminal(ctx context.Context, input AssetInput, prefix string, ttl time.Duration, req asset.Request) Result {
	start := time.Now()

	if strings.TrimSpace(input.InputPath) == "" {
		return Failure(start, asset.ErrMissingInput)
	}

	key := i.cache.GenerateKey(prefix, input)
	if data, ok := i.cache.Get(key); ok {
		i.logger.Debug("report cache hit", "key", key)
		return Success(start, data)
	}

	safeIn, err := i.paths.Validate(input.InputPath)
	if err != nil {
		return Failure(start, err)
	}
	req.InputPath = safeIn

	cmd, err := pipeline.BuildTransform(i.transformBin, req)
	if err != nil {
		return Failure(start, err)
	}
	stdout, err := i.exec.Run(ctx, cmd)
	if err != nil {
		return Failure(start, err)
	}

	report := InspectReport{
		InputPath: safeIn,
		Command:   cmd.String(),
		Report:    strings.TrimSpace(stdout),
	}
	i.cache.Set(key, report, ttl)
	return Success(start, report)
}

// Analyze parses the asset in-process and returns structural counts.
func (i *Inspector) Analyze(_ context.Context, input AssetInput) Result {
	start := time.Now()

	if strings.TrimSpace(input.InputPath) == "" {
		return Failure(start, asset.ErrMissingInput)
	}

	key := i.cache.GenerateKey(prefixAnalysis, input)
	if data, ok := i.cache.Get(key); ok {
		i.logger.Debug("analysis cache hit", "key", key)
		return Success(start, data)
	}

	safeIn, err := i.paths.Validate(input.InputPath)
	if err != nil {
		return Failure(start, err)
	}

	summary, err := asset.Analyze(safeIn)
	if err != nil {
		return Failure(start, err)
	}

	report := AnalysisReport{InputPath: safeIn, Summary: summary}
	i.cache.Set(key, report, i.analysisTTL)
	return Success(start, report)
}
