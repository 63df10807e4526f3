package cache

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshkit/gltf-mcp/internal/log"
)

func newTestManager(t *testing.T, maxKeys uint64) *Manager {
	t.Helper()
	m, err := NewManager(maxKeys, log.NewNop())
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(0, log.NewNop())
	assert.Error(t, err)

	_, err = NewManager(10, nil)
	assert.Error(t, err)
}

func TestGenerateKey(t *testing.T) {
	m := newTestManager(t, 100)

	type params struct {
		InputPath string
		Draco     bool
	}

	t.Run("format", func(t *testing.T) {
		key := m.GenerateKey("transform", params{InputPath: "a.glb", Draco: true})
		assert.Regexp(t, regexp.MustCompile(`^transform:[0-9a-f]{16}$`), key)
	})

	t.Run("deterministic", func(t *testing.T) {
		p := params{InputPath: "a.glb", Draco: true}
		assert.Equal(t, m.GenerateKey("transform", p), m.GenerateKey("transform", p))
	})

	t.Run("sensitive to parameters", func(t *testing.T) {
		a := m.GenerateKey("transform", params{InputPath: "a.glb"})
		b := m.GenerateKey("transform", params{InputPath: "b.glb"})
		assert.NotEqual(t, a, b)
	})

	t.Run("sensitive to prefix", func(t *testing.T) {
		p := params{InputPath: "a.glb"}
		assert.NotEqual(t, m.GenerateKey("transform", p), m.GenerateKey("validate", p))
	})
}

func TestGetSet(t *testing.T) {
	m := newTestManager(t, 100)

	key := m.GenerateKey("transform", "a.glb")

	_, ok := m.Get(key)
	assert.False(t, ok, "expected miss before Set")

	m.Set(key, "result", time.Minute)

	got, ok := m.Get(key)
	require.True(t, ok)
	assert.Equal(t, "result", got)

	assert.True(t, m.Has(key))
	assert.Contains(t, m.Keys(), key)
}

func TestTTLExpiry(t *testing.T) {
	m := newTestManager(t, 100)

	m.Set("transform:deadbeefdeadbeef", "result", 20*time.Millisecond)

	_, ok := m.Get("transform:deadbeefdeadbeef")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)

	_, ok = m.Get("transform:deadbeefdeadbeef")
	assert.False(t, ok, "entry should have expired")
}

func TestCapacityBound(t *testing.T) {
	m := newTestManager(t, 3)

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		m.Set("op:"+k, k, time.Minute)
	}

	assert.LessOrEqual(t, len(m.Keys()), 3, "store exceeded its capacity")
}

func TestDel(t *testing.T) {
	m := newTestManager(t, 100)

	m.Set("op:k", 1, time.Minute)
	m.Del("op:k")
	assert.False(t, m.Has("op:k"))
}

func TestStatsAndFlush(t *testing.T) {
	m := newTestManager(t, 100)

	m.Set("op:k", 1, time.Minute)
	m.Get("op:k")    // hit
	m.Get("op:miss") // miss
	m.Get("op:k")    // hit

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Keys)

	m.Flush()

	stats = m.GetStats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.Keys)
}

func TestGenerateKeyUnserializableParams(t *testing.T) {
	m := newTestManager(t, 100)

	// Channels cannot be JSON-marshaled; the fallback must still yield a
	// well-formed key rather than an error.
	key := m.GenerateKey("op", map[string]any{"ch": make(chan int)})
	assert.Regexp(t, regexp.MustCompile(`^op:[0-9a-f]{16}$`), key)
}
