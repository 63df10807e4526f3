// Package asset defines the canonical transform request model and the
// normalization rules that turn a loosely-specified tool input into it.
package asset

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrMissingInput indicates the request has no input path.
	ErrMissingInput = errors.New("input path is required")

	// ErrUnsupportedEncoder indicates an unknown texture encoder name.
	ErrUnsupportedEncoder = errors.New("unsupported texture encoder")

	// ErrUnsupportedFormat indicates an unknown output format.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrInvalidRatio indicates a simplification ratio outside [0,1].
	ErrInvalidRatio = errors.New("simplify ratio must be within [0,1]")
)

// Output format identifiers.
const (
	FormatGLB  = "glb"
	FormatGLTF = "gltf"
)

// OutputSuffix is appended to the input base name when no output path is given.
const OutputSuffix = "_transformed"

// Canonical texture encoder names, plus accepted aliases.
var (
	textureEncoders = map[string]bool{
		"etc1s": true,
		"uastc": true,
		"webp":  true,
		"avif":  true,
		"png":   true,
		"jpeg":  true,
	}
	encoderAliases = map[string]string{
		"jpg": "jpeg",
	}
)

// Request is a transform request. The zero value of every operation flag
// means "not requested"; a request with no operation flags is an identity
// copy. Field names double as the MCP tool input schema.
type Request struct {
	InputPath  string `json:"inputPath" jsonschema:"Path to the input .gltf/.glb file"`
	OutputPath string `json:"outputPath,omitempty" jsonschema:"Output path; derived from the input path when omitted"`

	OutputFormat string `json:"outputFormat,omitempty" jsonschema:"Output format: glb or gltf"`
	Binary       *bool  `json:"binary,omitempty" jsonschema:"Force binary (.glb) output"`
	// Format is the legacy combined field; "glb" implies binary output.
	Format string `json:"format,omitempty" jsonschema:"Deprecated alias of outputFormat"`

	// Geometry compression
	Draco        bool           `json:"draco,omitempty" jsonschema:"Compress geometry with Draco"`
	DracoOptions map[string]any `json:"dracoOptions,omitempty" jsonschema:"Draco sub-options passed through as flags"`
	Meshopt      bool           `json:"meshopt,omitempty" jsonschema:"Compress geometry with Meshopt"`
	MeshoptLevel string         `json:"meshoptLevel,omitempty" jsonschema:"Meshopt compression level (medium or high)"`

	// Vertex operations
	Quantize      bool    `json:"quantize,omitempty" jsonschema:"Quantize vertex attributes"`
	Weld          bool    `json:"weld,omitempty" jsonschema:"Merge equivalent vertices"`
	Unweld        bool    `json:"unweld,omitempty" jsonschema:"De-index primitives"`
	Simplify      bool    `json:"simplify,omitempty" jsonschema:"Simplify mesh geometry"`
	SimplifyRatio float64 `json:"simplifyRatio,omitempty" jsonschema:"Target triangle ratio in [0,1]; default 0.5"`

	// Scene restructuring
	Flatten  bool `json:"flatten,omitempty" jsonschema:"Flatten the scene graph"`
	Join     bool `json:"join,omitempty" jsonschema:"Join compatible primitives"`
	Center   bool `json:"center,omitempty" jsonschema:"Center the scene at the origin"`
	Instance bool `json:"instance,omitempty" jsonschema:"Create GPU instances from repeated meshes"`

	// Materials
	Metalrough bool `json:"metalrough,omitempty" jsonschema:"Convert materials to metal/rough PBR"`
	Palette    bool `json:"palette,omitempty" jsonschema:"Merge materials into palette textures"`

	// Texture encoding
	// TextureFormat is the legacy combined field; normalized onto the
	// per-encoder flags below.
	TextureFormat string `json:"textureFormat,omitempty" jsonschema:"Deprecated: target texture encoder name"`
	ETC1S         bool   `json:"etc1s,omitempty" jsonschema:"Encode textures to KTX2 ETC1S"`
	UASTC         bool   `json:"uastc,omitempty" jsonschema:"Encode textures to KTX2 UASTC"`
	WebP          bool   `json:"webp,omitempty" jsonschema:"Encode textures to WebP"`
	AVIF          bool   `json:"avif,omitempty" jsonschema:"Encode textures to AVIF"`
	PNG           bool   `json:"png,omitempty" jsonschema:"Re-encode textures to PNG"`
	JPEG          bool   `json:"jpeg,omitempty" jsonschema:"Re-encode textures to JPEG"`
	ResizeWidth   int    `json:"resizeWidth,omitempty" jsonschema:"Resize textures to this maximum width"`
	ResizeHeight  int    `json:"resizeHeight,omitempty" jsonschema:"Resize textures to this maximum height"`

	// Animation
	Resample bool `json:"resample,omitempty" jsonschema:"Resample animation keyframes"`

	// Structural cleanup
	Optimize  bool `json:"optimize,omitempty" jsonschema:"Run the general optimization preset"`
	Dedup     bool `json:"dedup,omitempty" jsonschema:"Deduplicate accessors, textures and materials"`
	Prune     bool `json:"prune,omitempty" jsonschema:"Remove unused properties"`
	Partition bool `json:"partition,omitempty" jsonschema:"Partition binary data per mesh"`
	Gzip      bool `json:"gzip,omitempty" jsonschema:"Gzip the output file"`

	// Terminal inspection operations: no output file is produced and no
	// other operation flags are considered.
	Inspect  bool `json:"inspect,omitempty" jsonschema:"Report the contents of the asset instead of transforming it"`
	Validate bool `json:"validate,omitempty" jsonschema:"Validate the asset instead of transforming it"`

	// Global flags
	VertexLayout string `json:"vertexLayout,omitempty" jsonschema:"Vertex buffer layout (interleaved or separate)"`

	// Merge inputs; additional scenes appended after InputPath.
	MergeInputs []string `json:"mergeInputs,omitempty" jsonschema:"Additional input files for a merge operation"`
}

// Terminal reports whether the request is inspection-only.
func (r Request) Terminal() bool {
	return r.Inspect || r.Validate
}

// OutputExt resolves the output file extension.
// An explicit binary/outputFormat choice wins; otherwise the input's own
// extension is inherited so plain option-less requests keep their format.
func (r Request) OutputExt() string {
	if r.Binary != nil {
		if *r.Binary {
			return ".glb"
		}
		return ".gltf"
	}
	switch r.OutputFormat {
	case FormatGLB:
		return ".glb"
	case FormatGLTF:
		return ".gltf"
	}
	if ext := strings.ToLower(filepath.Ext(r.InputPath)); ext == ".glb" {
		return ".glb"
	}
	return ".gltf"
}

// Normalize canonicalizes a request: legacy aliases are resolved, the
// texture encoder is validated, and the output path is derived when absent.
// Pure: the filesystem is never touched, only the path strings.
func Normalize(req Request) (Request, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return Request{}, ErrMissingInput
	}

	out := req

	// Stage 1: legacy alias resolution.
	if out.Format != "" && out.OutputFormat == "" {
		out.OutputFormat = strings.ToLower(out.Format)
	}
	out.Format = ""

	switch out.OutputFormat {
	case "", FormatGLB, FormatGLTF:
	default:
		return Request{}, ErrUnsupportedFormat
	}
	if out.OutputFormat == FormatGLB && out.Binary == nil {
		binary := true
		out.Binary = &binary
	}

	if out.TextureFormat != "" {
		enc := strings.ToLower(out.TextureFormat)
		if alias, ok := encoderAliases[enc]; ok {
			enc = alias
		}
		if !textureEncoders[enc] {
			return Request{}, ErrUnsupportedEncoder
		}
		switch enc {
		case "etc1s":
			out.ETC1S = true
		case "uastc":
			out.UASTC = true
		case "webp":
			out.WebP = true
		case "avif":
			out.AVIF = true
		case "png":
			out.PNG = true
		case "jpeg":
			out.JPEG = true
		}
		out.TextureFormat = ""
	}

	// Stage 2: parameter resolution.
	if out.Simplify {
		if out.SimplifyRatio < 0 || out.SimplifyRatio > 1 {
			return Request{}, ErrInvalidRatio
		}
		if out.SimplifyRatio == 0 {
			out.SimplifyRatio = 0.5
		}
	}

	if out.OutputPath == "" && !out.Terminal() {
		out.OutputPath = DeriveOutputPath(out)
	}

	return out, nil
}

// DeriveOutputPath builds the default output path: the input's base name
// with the transform suffix and the resolved extension, in the input's
// directory.
func DeriveOutputPath(req Request) string {
	dir := filepath.Dir(req.InputPath)
	base := strings.TrimSuffix(filepath.Base(req.InputPath), filepath.Ext(req.InputPath))
	return filepath.Join(dir, base+OutputSuffix+req.OutputExt())
}
