// Package security provides input validation for asset paths and engine
// binaries. Paths are validated to prevent traversal outside allowed
// directories (CWE-22); engine binaries are resolved against an allowlist
// so a request can never name an arbitrary executable (CWE-78).
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Asset file extensions accepted by the path validator.
var assetExtensions = map[string]bool{
	".gltf": true,
	".glb":  true,
}

// Path validates asset file paths.
type Path struct {
	allowedDirs []string
	workDir     string
}

// NewPath creates a path validator.
// allowedDirs lists directories requests may reference in addition to the
// working directory; an empty list restricts access to the working directory.
func NewPath(allowedDirs []string) (*Path, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	absDirs := make([]string, 0, len(allowedDirs))
	for _, dir := range allowedDirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving directory %s: %w", dir, err)
		}
		absDirs = append(absDirs, absDir)
	}

	return &Path{allowedDirs: absDirs, workDir: workDir}, nil
}

// Validate validates and sanitizes an asset file path.
// Returns a safe absolute path or an error.
func (v *Path) Validate(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if ext := strings.ToLower(filepath.Ext(path)); !assetExtensions[ext] {
		return "", fmt.Errorf("unsupported asset extension %q (want .gltf or .glb)", ext)
	}

	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !v.within(absPath) {
		return "", fmt.Errorf("access denied: path %q is not within allowed directories", absPath)
	}

	// Resolve symlinks so a link inside an allowed directory cannot point
	// outside of it. A missing file is fine: transforms create outputs.
	realPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return absPath, nil
		}
		return "", fmt.Errorf("resolving symbolic link: %w", err)
	}
	if !v.within(realPath) {
		return "", fmt.Errorf("access denied: path %q resolves outside allowed directories", path)
	}

	return realPath, nil
}

func (v *Path) within(absPath string) bool {
	withSep := filepath.Clean(absPath) + string(filepath.Separator)

	workNorm := filepath.Clean(v.workDir) + string(filepath.Separator)
	if strings.HasPrefix(withSep, workNorm) || absPath == v.workDir {
		return true
	}
	for _, dir := range v.allowedDirs {
		dirNorm := filepath.Clean(dir) + string(filepath.Separator)
		if strings.HasPrefix(withSep, dirNorm) || absPath == dir {
			return true
		}
	}
	return false
}
