// Package app assembles the application: configuration in, wired
// toolsets out. Construction is fail-fast; anything misconfigured stops
// startup instead of failing the first request.
package app

import (
	"fmt"

	"github.com/meshkit/gltf-mcp/internal/cache"
	"github.com/meshkit/gltf-mcp/internal/config"
	"github.com/meshkit/gltf-mcp/internal/log"
	"github.com/meshkit/gltf-mcp/internal/pipeline"
	"github.com/meshkit/gltf-mcp/internal/security"
	"github.com/meshkit/gltf-mcp/internal/tools"
)

// App holds the wired application components.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Cache     *cache.Manager
	Processor *tools.Processor
	Inspector *tools.Inspector
}

// Setup wires every component from configuration. Engine binaries are
// resolved up front so a missing install surfaces at startup, not on the
// first tool call.
func Setup(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	engines, err := security.NewEngine([]string{
		config.DefaultTransformBin,
		config.DefaultPipelineBin,
	})
	if err != nil {
		return nil, err
	}
	transformBin, err := engines.Resolve(cfg.TransformBin)
	if err != nil {
		return nil, fmt.Errorf("transform engine: %w", err)
	}
	pipelineBin, err := engines.Resolve(cfg.PipelineBin)
	if err != nil {
		return nil, fmt.Errorf("pipeline engine: %w", err)
	}

	paths, err := security.NewPath(cfg.AllowedDirs)
	if err != nil {
		return nil, err
	}

	store, err := cache.NewManager(cfg.CacheMaxKeys, logger)
	if err != nil {
		return nil, err
	}

	exec, err := pipeline.NewExecutor(pipeline.NewProcessRunner(), cfg.MaxProcesses, cfg.ExecTimeout(), logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	orch, err := pipeline.NewOrchestrator(transformBin, exec, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	proc, err := tools.NewProcessor(transformBin, pipelineBin, exec, orch, store, paths, cfg.TransformTTL(), logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	insp, err := tools.NewInspector(transformBin, exec, store, paths, cfg.ValidationTTL(), cfg.AnalysisTTL(), logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	logger.Info("application wired",
		"transform_bin", transformBin,
		"pipeline_bin", pipelineBin,
		"max_processes", cfg.MaxProcesses,
		"exec_timeout", cfg.ExecTimeout(),
	)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Cache:     store,
		Processor: proc,
		Inspector: insp,
	}, nil
}

// Close releases background resources. Safe to call once after Setup
// succeeds.
func (a *App) Close() {
	if a.Cache != nil {
		a.Cache.Close()
	}
}
