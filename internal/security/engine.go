package security

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

// Engine resolves external engine binaries against an allowlist.
// Only the two wrapped processing engines may ever be spawned; a
// configuration pointing anywhere else is rejected at startup.
type Engine struct {
	allowed []string
}

// NewEngine creates an engine validator allowing the given binary names.
// Names are matched against the path's base name, so both bare names
// ("gltf-transform") and absolute install paths are accepted.
func NewEngine(allowed []string) (*Engine, error) {
	if len(allowed) == 0 {
		return nil, fmt.Errorf("at least one allowed engine is required")
	}
	return &Engine{allowed: allowed}, nil
}

// Resolve validates an engine binary and returns the path to execute.
// Bare names are looked up on PATH; absolute and relative paths are
// kept as given after allowlist and existence checks.
func (e *Engine) Resolve(bin string) (string, error) {
	if strings.TrimSpace(bin) == "" {
		return "", fmt.Errorf("engine binary cannot be empty")
	}

	base := filepath.Base(bin)
	// Strip a Windows-style suffix so config works across platforms.
	base = strings.TrimSuffix(base, ".exe")
	base = strings.TrimSuffix(base, ".cmd")

	if !slices.Contains(e.allowed, base) {
		return "", fmt.Errorf("engine %q is not in the allowlist %v", bin, e.allowed)
	}

	resolved, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("engine %q not found: %w", bin, err)
	}
	return resolved, nil
}
