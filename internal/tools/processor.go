package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/meshkit/gltf-mcp/internal/asset"
	"github.com/meshkit/gltf-mcp/internal/cache"
	"github.com/meshkit/gltf-mcp/internal/log"
	"github.com/meshkit/gltf-mcp/internal/pipeline"
	"github.com/meshkit/gltf-mcp/internal/security"
)

// Cache key prefixes, one per logical operation.
const (
	prefixTransform = "transform"
	prefixConvert   = "convert"
	prefixMerge     = "merge"
)

// ConvertSuffix names derived conversion outputs.
const ConvertSuffix = "_converted"

// MergeSuffix names derived merge outputs.
const MergeSuffix = "_merged"

// TransformReport is the payload of a completed transform operation.
type TransformReport struct {
	InputPath  string   `json:"inputPath"`
	OutputPath string   `json:"outputPath,omitempty"`
	Steps      []string `json:"steps"`
	// Command is the audit record of everything that ran, joined with the
	// shell and-then separator. It is a record, never re-executed.
	Command  string   `json:"command"`
	Commands []string `json:"commands,omitempty"`

	InputSizeBytes  int64 `json:"inputSizeBytes,omitempty"`
	OutputSizeBytes int64 `json:"outputSizeBytes,omitempty"`
	BytesSaved      int64 `json:"bytesSaved,omitempty"`

	// Report carries engine stdout for inspect/validate requests.
	Report string `json:"report,omitempty"`
}

// MergeInput is the merge_assets tool input.
type MergeInput struct {
	InputPaths []string `json:"inputPaths" jsonschema:"Input files to merge, at least two"`
	OutputPath string   `json:"outputPath,omitempty" jsonschema:"Output path; derived from the first input when omitted"`
}

// Processor handles the transform, convert and merge tools.
type Processor struct {
	transformBin string
	pipelineBin  string
	exec         *pipeline.Executor
	orch         *pipeline.Orchestrator
	cache        *cache.Manager
	paths        *security.Path
	transformTTL time.Duration
	logger       log.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(
	transformBin, pipelineBin string,
	exec *pipeline.Executor,
	orch *pipeline.Orchestrator,
	cacheMgr *cache.Manager,
	paths *security.Path,
	transformTTL time.Duration,
	logger log.Logger,
) (*Processor, error) {
	if transformBin == "" || pipelineBin == "" {
		return nil, fmt.Errorf("engine binaries are required")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if cacheMgr == nil {
		return nil, fmt.Errorf("cache manager is required")
	}
	if paths == nil {
		return nil, fmt.Errorf("path validator is required")
	}
	if transformTTL <= 0 {
		return nil, fmt.Errorf("transform TTL must be positive")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Processor{
		transformBin: transformBin,
		pipelineBin:  pipelineBin,
		exec:         exec,
		orch:         orch,
		cache:        cacheMgr,
		paths:        paths,
		transformTTL: transformTTL,
		logger:       logger,
	}, nil
}

// Transform runs a transform request end to end: normalize, consult the
// cache, plan, execute, verify, cache. Every failure comes back inside
// the envelope.
func (p *Processor) Transform(ctx context.Context, req asset.Request) Result {
	start := time.Now()

	norm, err := asset.Normalize(req)
	if err != nil {
		return Failure(start, err)
	}

	key := p.cache.GenerateKey(prefixTransform, norm)
	if data, ok := p.cache.Get(key); ok {
		p.logger.Debug("transform cache hit", "key", key)
		return Success(start, data)
	}

	safeIn, err := p.paths.Validate(norm.InputPath)
	if err != nil {
		return Failure(start, err)
	}
	inInfo, err := os.Stat(safeIn)
	if err != nil {
		return Failure(start, fmt.Errorf("input file not accessible: %w", err))
	}
	norm.InputPath = safeIn

	if norm.OutputPath != "" {
		safeOut, err := p.paths.Validate(norm.OutputPath)
		if err != nil {
			return Failure(start, err)
		}
		norm.OutputPath = safeOut
	}

	steps, err := pipeline.Plan(norm)
	if err != nil {
		return Failure(start, err)
	}

	run, err := p.orch.Execute(ctx, norm, steps)
	if err != nil {
		return Failure(start, err)
	}

	report := TransformReport{
		InputPath:      norm.InputPath,
		OutputPath:     run.OutputPath,
		Steps:          stepNames(steps),
		Command:        run.Audit(),
		Commands:       run.Commands,
		InputSizeBytes: inInfo.Size(),
		Report:         strings.TrimSpace(run.Report),
	}
	if run.OutputPath != "" {
		if outInfo, err := os.Stat(run.OutputPath); err == nil {
			report.OutputSizeBytes = outInfo.Size()
			report.BytesSaved = inInfo.Size() - outInfo.Size()
		} else {
			p.logger.Warn("output verification failed", "path", run.OutputPath, "error", err)
		}
	}

	p.cache.Set(key, report, p.transformTTL)
	return Success(start, report)
}

// ConvertReport is the payload of a completed conversion.
type ConvertReport struct {
	InputPath       string `json:"inputPath"`
	OutputPath      string `json:"outputPath"`
	Command         string `json:"command"`
	InputSizeBytes  int64  `json:"inputSizeBytes,omitempty"`
	OutputSizeBytes int64  `json:"outputSizeBytes,omitempty"`
}

// Convert runs a gltf/glb conversion through the pipeline engine.
func (p *Processor) Convert(ctx context.Context, req pipeline.ConvertRequest) Result {
	start := time.Now()

	if strings.TrimSpace(req.InputPath) == "" {
		return Failure(start, asset.ErrMissingInput)
	}
	if req.OutputPath == "" {
		req.OutputPath = derivedPath(req.InputPath, ConvertSuffix, req.Binary)
	}

	key := p.cache.GenerateKey(prefixConvert, req)
	if data, ok := p.cache.Get(key); ok {
		p.logger.Debug("convert cache hit", "key", key)
		return Success(start, data)
	}

	safeIn, err := p.paths.Validate(req.InputPath)
	if err != nil {
		return Failure(start, err)
	}
	inInfo, err := os.Stat(safeIn)
	if err != nil {
		return Failure(start, fmt.Errorf("input file not accessible: %w", err))
	}
	req.InputPath = safeIn

	safeOut, err := p.paths.Validate(req.OutputPath)
	if err != nil {
		return Failure(start, err)
	}
	req.OutputPath = safeOut

	cmd, err := pipeline.BuildConvert(p.pipelineBin, req)
	if err != nil {
		return Failure(start, err)
	}
	if _, err := p.exec.Run(ctx, cmd); err != nil {
		return Failure(start, err)
	}

	report := ConvertReport{
		InputPath:      req.InputPath,
		OutputPath:     req.OutputPath,
		Command:        cmd.String(),
		InputSizeBytes: inInfo.Size(),
	}
	if outInfo, err := os.Stat(req.OutputPath); err == nil {
		report.OutputSizeBytes = outInfo.Size()
	}

	p.cache.Set(key, report, p.transformTTL)
	return Success(start, report)
}

// Merge combines two or more assets into one output file.
func (p *Processor) Merge(ctx context.Context, input MergeInput) Result {
	start := time.Now()

	if len(input.InputPaths) < 2 {
		return Failure(start, fmt.Errorf("merge requires at least two input files, got %d", len(input.InputPaths)))
	}

	key := p.cache.GenerateKey(prefixMerge, input)
	if data, ok := p.cache.Get(key); ok {
		p.logger.Debug("merge cache hit", "key", key)
		return Success(start, data)
	}

	safe := make([]string, 0, len(input.InputPaths))
	for _, in := range input.InputPaths {
		safeIn, err := p.paths.Validate(in)
		if err != nil {
			return Failure(start, err)
		}
		if _, err := os.Stat(safeIn); err != nil {
			return Failure(start, fmt.Errorf("input file not accessible: %w", err))
		}
		safe = append(safe, safeIn)
	}

	req := asset.Request{
		InputPath:   safe[0],
		MergeInputs: safe[1:],
		OutputPath:  input.OutputPath,
	}
	if req.OutputPath == "" {
		req.OutputPath = derivedPath(safe[0], MergeSuffix, strings.EqualFold(filepath.Ext(safe[0]), ".glb"))
	}
	safeOut, err := p.paths.Validate(req.OutputPath)
	if err != nil {
		return Failure(start, err)
	}
	req.OutputPath = safeOut

	cmd, err := pipeline.BuildTransform(p.transformBin, req)
	if err != nil {
		return Failure(start, err)
	}
	if _, err := p.exec.Run(ctx, cmd); err != nil {
		return Failure(start, err)
	}

	report := TransformReport{
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		Steps:      []string{"merge"},
		Command:    cmd.String(),
		Commands:   []string{cmd.String()},
	}
	if outInfo, err := os.Stat(req.OutputPath); err == nil {
		report.OutputSizeBytes = outInfo.Size()
	}

	p.cache.Set(key, report, p.transformTTL)
	return Success(start, report)
}

// CacheStats snapshots the shared cache counters.
func (p *Processor) CacheStats() Result {
	return Success(time.Now(), p.cache.GetStats())
}

func stepNames(steps []pipeline.Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = string(s)
	}
	return names
}

// derivedPath builds "<base><suffix>.<ext>" alongside the input.
func derivedPath(input, suffix string, binary bool) string {
	dir := filepath.Dir(input)
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	ext := ".gltf"
	if binary {
		ext = ".glb"
	}
	return filepath.Join(dir, base+suffix+ext)
}
