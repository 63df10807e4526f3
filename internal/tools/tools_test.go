package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshkit/gltf-mcp/internal/asset"
	"github.com/meshkit/gltf-mcp/internal/cache"
	"github.com/meshkit/gltf-mcp/internal/log"
	"github.com/meshkit/gltf-mcp/internal/pipeline"
	"github.com/meshkit/gltf-mcp/internal/security"
)

// countingRunner records every invocation so tests can assert exactly how
// often an engine process would have been spawned.
type countingRunner struct {
	mu     sync.Mutex
	calls  [][]string
	stdout string
	err    error
}

func (r *countingRunner) Run(_ context.Context, bin string, args ...string) (string, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{bin}, args...))
	return r.stdout, "", r.err
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type fixture struct {
	dir    string
	runner *countingRunner
	cache  *cache.Manager
	proc   *Processor
	insp   *Inspector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	runner := &countingRunner{stdout: "engine output"}
	exec, err := pipeline.NewExecutor(runner, 2, 5*time.Second, log.NewNop())
	require.NoError(t, err)
	orch, err := pipeline.NewOrchestrator("gltf-transform", exec, log.NewNop())
	require.NoError(t, err)
	store, err := cache.NewManager(64, log.NewNop())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	paths, err := security.NewPath([]string{dir})
	require.NoError(t, err)

	proc, err := NewProcessor("gltf-transform", "gltf-pipeline", exec, orch, store, paths, time.Hour, log.NewNop())
	require.NoError(t, err)
	insp, err := NewInspector("gltf-transform", exec, store, paths, 30*time.Minute, time.Hour, log.NewNop())
	require.NoError(t, err)

	return &fixture{dir: dir, runner: runner, cache: store, proc: proc, insp: insp}
}

func (f *fixture) writeAsset(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewProcessor(t *testing.T) {
	f := newFixture(t)

	_, err := NewProcessor("", "gltf-pipeline", nil, nil, nil, nil, time.Hour, log.NewNop())
	assert.Error(t, err)

	_, err = NewProcessor("gltf-transform", "gltf-pipeline", nil, nil, f.cache, nil, time.Hour, log.NewNop())
	assert.Error(t, err)
}

func TestProcessorTransform(t *testing.T) {
	t.Run("single step", func(t *testing.T) {
		f := newFixture(t)
		in := f.writeAsset(t, "model.gltf", "{}")
		out := filepath.Join(f.dir, "model_draco.gltf")

		res := f.proc.Transform(context.Background(), asset.Request{
			InputPath:  in,
			OutputPath: out,
			Draco:      true,
		})
		require.True(t, res.Success, "error: %s", res.Error)

		report, ok := res.Data.(TransformReport)
		require.True(t, ok, "Data = %T", res.Data)
		assert.Equal(t, []string{"draco"}, report.Steps)
		assert.Equal(t, out, report.OutputPath)
		assert.Contains(t, report.Command, `draco "`+in+`" "`+out+`"`)
		assert.Equal(t, int64(2), report.InputSizeBytes)
		assert.Equal(t, 1, f.runner.count())
	})

	t.Run("identical requests run the engine once", func(t *testing.T) {
		f := newFixture(t)
		in := f.writeAsset(t, "model.gltf", "{}")
		req := asset.Request{
			InputPath:  in,
			OutputPath: filepath.Join(f.dir, "out.glb"),
			Draco:      true,
		}

		first := f.proc.Transform(context.Background(), req)
		require.True(t, first.Success, "error: %s", first.Error)
		second := f.proc.Transform(context.Background(), req)
		require.True(t, second.Success, "error: %s", second.Error)

		assert.Equal(t, 1, f.runner.count())
		assert.Equal(t, first.Data, second.Data)
	})

	t.Run("multi step chains through intermediates", func(t *testing.T) {
		f := newFixture(t)
		in := f.writeAsset(t, "model.gltf", "{}")

		res := f.proc.Transform(context.Background(), asset.Request{
			InputPath:  in,
			OutputPath: filepath.Join(f.dir, "out.gltf"),
			Draco:      true,
			WebP:       true,
		})
		require.True(t, res.Success, "error: %s", res.Error)

		report := res.Data.(TransformReport)
		assert.Equal(t, []string{"draco", "webp"}, report.Steps)
		assert.Len(t, report.Commands, 2)
		assert.Contains(t, report.Command, " && ")
		assert.Equal(t, 2, f.runner.count())
	})

	t.Run("missing input file", func(t *testing.T) {
		f := newFixture(t)

		res := f.proc.Transform(context.Background(), asset.Request{
			InputPath: filepath.Join(f.dir, "absent.gltf"),
			Draco:     true,
		})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "not accessible")
		assert.Zero(t, f.runner.count())
	})

	t.Run("conflicting compression", func(t *testing.T) {
		f := newFixture(t)
		in := f.writeAsset(t, "model.gltf", "{}")

		res := f.proc.Transform(context.Background(), asset.Request{
			InputPath: in,
			Draco:     true,
			Meshopt:   true,
		})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, pipeline.ErrConflictingCompression.Error())
	})

	t.Run("path outside allowed directories", func(t *testing.T) {
		f := newFixture(t)

		res := f.proc.Transform(context.Background(), asset.Request{
			InputPath: "/etc/model.gltf",
			Draco:     true,
		})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "access denied")
	})

	t.Run("engine failure becomes envelope error", func(t *testing.T) {
		f := newFixture(t)
		f.runner.err = errors.New("exit status 1")
		in := f.writeAsset(t, "model.gltf", "{}")

		res := f.proc.Transform(context.Background(), asset.Request{
			InputPath: in,
			Optimize:  true,
		})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "exit status 1")
	})
}

func TestProcessorConvert(t *testing.T) {
	t.Run("derives binary output path", func(t *testing.T) {
		f := newFixture(t)
		in := f.writeAsset(t, "scene.gltf", "{}")

		res := f.proc.Convert(context.Background(), pipeline.ConvertRequest{
			InputPath: in,
			Binary:    true,
		})
		require.True(t, res.Success, "error: %s", res.Error)

		report := res.Data.(ConvertReport)
		assert.Equal(t, filepath.Join(f.dir, "scene_converted.glb"), report.OutputPath)
		assert.Contains(t, report.Command, "-b")

		require.Equal(t, 1, f.runner.count())
		assert.Equal(t, "gltf-pipeline", f.runner.calls[0][0])
	})

	t.Run("missing input", func(t *testing.T) {
		f := newFixture(t)
		res := f.proc.Convert(context.Background(), pipeline.ConvertRequest{})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, asset.ErrMissingInput.Error())
	})
}

func TestProcessorMerge(t *testing.T) {
	t.Run("needs two inputs", func(t *testing.T) {
		f := newFixture(t)
		res := f.proc.Merge(context.Background(), MergeInput{InputPaths: []string{"a.gltf"}})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "at least two")
	})

	t.Run("merges with derived output", func(t *testing.T) {
		f := newFixture(t)
		a := f.writeAsset(t, "a.glb", "x")
		b := f.writeAsset(t, "b.glb", "y")

		res := f.proc.Merge(context.Background(), MergeInput{InputPaths: []string{a, b}})
		require.True(t, res.Success, "error: %s", res.Error)

		report := res.Data.(TransformReport)
		assert.Equal(t, []string{"merge"}, report.Steps)
		assert.Equal(t, filepath.Join(f.dir, "a_merged.glb"), report.OutputPath)
		assert.True(t, strings.HasPrefix(report.Command, `gltf-transform merge "`), report.Command)
	})
}

func TestInspector(t *testing.T) {
	t.Run("validate returns engine report", func(t *testing.T) {
		f := newFixture(t)
		f.runner.stdout = "0 errors, 2 warnings\n"
		in := f.writeAsset(t, "model.glb", "x")

		res := f.insp.Validate(context.Background(), AssetInput{InputPath: in})
		require.True(t, res.Success, "error: %s", res.Error)

		report := res.Data.(InspectReport)
		assert.Equal(t, "0 errors, 2 warnings", report.Report)
		assert.Contains(t, report.Command, "validate")

		require.Equal(t, 1, f.runner.count())
		assert.Equal(t, []string{"gltf-transform", "validate", in}, f.runner.calls[0])
	})

	t.Run("inspect is cached", func(t *testing.T) {
		f := newFixture(t)
		in := f.writeAsset(t, "model.glb", "x")

		first := f.insp.Inspect(context.Background(), AssetInput{InputPath: in})
		require.True(t, first.Success, "error: %s", first.Error)
		second := f.insp.Inspect(context.Background(), AssetInput{InputPath: in})
		require.True(t, second.Success, "error: %s", second.Error)

		assert.Equal(t, 1, f.runner.count())
		assert.Equal(t, first.Data, second.Data)
	})

	t.Run("validate and inspect cache independently", func(t *testing.T) {
		f := newFixture(t)
		in := f.writeAsset(t, "model.glb", "x")

		f.insp.Validate(context.Background(), AssetInput{InputPath: in})
		f.insp.Inspect(context.Background(), AssetInput{InputPath: in})
		assert.Equal(t, 2, f.runner.count())
	})

	t.Run("analyze parses in-process", func(t *testing.T) {
		f := newFixture(t)
		in := f.writeAsset(t, "empty.gltf", `{"asset":{"version":"2.0","generator":"test"}}`)

		res := f.insp.Analyze(context.Background(), AssetInput{InputPath: in})
		require.True(t, res.Success, "error: %s", res.Error)

		report := res.Data.(AnalysisReport)
		assert.Equal(t, "2.0", report.Summary.Version)
		assert.Equal(t, "test", report.Summary.Generator)
		assert.Zero(t, report.Summary.Meshes)
		assert.Zero(t, f.runner.count())
	})

	t.Run("analyze rejects malformed files", func(t *testing.T) {
		f := newFixture(t)
		in := f.writeAsset(t, "broken.gltf", "not json")

		res := f.insp.Analyze(context.Background(), AssetInput{InputPath: in})
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Error)
	})

	t.Run("empty input", func(t *testing.T) {
		f := newFixture(t)
		res := f.insp.Validate(context.Background(), AssetInput{})
		assert.False(t, res.Success)
	})
}

func TestCacheStats(t *testing.T) {
	f := newFixture(t)
	in := f.writeAsset(t, "model.glb", "x")

	f.insp.Validate(context.Background(), AssetInput{InputPath: in})
	f.insp.Validate(context.Background(), AssetInput{InputPath: in})

	res := f.proc.CacheStats()
	require.True(t, res.Success)

	stats := res.Data.(cache.Stats)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Keys)
}

func TestResultEnvelope(t *testing.T) {
	start := time.Now().Add(-10 * time.Millisecond)

	ok := Success(start, "payload")
	assert.True(t, ok.Success)
	assert.Equal(t, "payload", ok.Data)
	assert.Empty(t, ok.Error)
	assert.GreaterOrEqual(t, ok.Metrics.ProcessingTimeMS, int64(10))

	fail := Failure(start, errors.New("boom"))
	assert.False(t, fail.Success)
	assert.Nil(t, fail.Data)
	assert.Equal(t, "boom", fail.Error)
}
