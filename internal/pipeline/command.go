package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/meshkit/gltf-mcp/internal/asset"
)

// ErrMissingOutput indicates a non-terminal command has no output path.
var ErrMissingOutput = errors.New("output path is required")

// Command is one renderable engine invocation. Args is the argv vector
// actually executed; the audit form quotes path arguments and is what
// appears in result payloads and logs.
type Command struct {
	Bin  string
	Args []string

	// StderrAllow lists substrings whose lines are ignored by fatal-stderr
	// classification (the pipeline engine reports success on stderr).
	StderrAllow []string

	audit []string
}

// addToken appends a bare token (subcommand or flag) to argv and audit.
func (c *Command) addToken(tok string) {
	c.Args = append(c.Args, tok)
	c.audit = append(c.audit, tok)
}

// addPath appends a path argument, quoted in the audit form.
// Embedded double quotes are not escaped; the audit string is a record,
// not a shell input.
func (c *Command) addPath(p string) {
	c.Args = append(c.Args, p)
	c.audit = append(c.audit, `"`+p+`"`)
}

// String renders the audit form: binary, subcommand, quoted paths, flags.
// Deterministic for structurally equal inputs.
func (c Command) String() string {
	return c.Bin + " " + strings.Join(c.audit, " ")
}

// commandSpec is one row of the transform command precedence table:
// the first matching row names the primary command for a request.
type commandSpec struct {
	name  Step
	match func(asset.Request) bool
	flags func(*Command, asset.Request)
}

// transformCommands fixes the primary-command precedence for the
// transform engine. Merge and optimize outrank everything; geometry
// operations outrank scene, material, texture, animation and structural
// operations. The planner guarantees multi-step options carry one flag,
// so the order only decides contested single-step requests.
var transformCommands = []commandSpec{
	{StepOptimize, func(r asset.Request) bool { return r.Optimize }, nil},
	{StepDraco, func(r asset.Request) bool { return r.Draco }, dracoFlags},
	{StepMeshopt, func(r asset.Request) bool { return r.Meshopt }, meshoptFlags},
	{StepQuantize, func(r asset.Request) bool { return r.Quantize }, nil},
	{StepWeld, func(r asset.Request) bool { return r.Weld }, nil},
	{"unweld", func(r asset.Request) bool { return r.Unweld }, nil},
	{StepSimplify, func(r asset.Request) bool { return r.Simplify }, simplifyFlags},
	{"flatten", func(r asset.Request) bool { return r.Flatten }, nil},
	{"join", func(r asset.Request) bool { return r.Join }, nil},
	{"center", func(r asset.Request) bool { return r.Center }, nil},
	{"instance", func(r asset.Request) bool { return r.Instance }, nil},
	{"metalrough", func(r asset.Request) bool { return r.Metalrough }, nil},
	{"palette", func(r asset.Request) bool { return r.Palette }, nil},
	{StepETC1S, func(r asset.Request) bool { return r.ETC1S }, nil},
	{StepUASTC, func(r asset.Request) bool { return r.UASTC }, nil},
	{StepWebP, func(r asset.Request) bool { return r.WebP }, nil},
	{StepAVIF, func(r asset.Request) bool { return r.AVIF }, nil},
	{StepPNG, func(r asset.Request) bool { return r.PNG }, nil},
	{StepJPEG, func(r asset.Request) bool { return r.JPEG }, nil},
	{"resize", func(r asset.Request) bool { return r.ResizeWidth > 0 || r.ResizeHeight > 0 }, resizeFlags},
	{"resample", func(r asset.Request) bool { return r.Resample }, nil},
	{StepDedup, func(r asset.Request) bool { return r.Dedup }, nil},
	{StepPrune, func(r asset.Request) bool { return r.Prune }, nil},
	{"partition", func(r asset.Request) bool { return r.Partition }, nil},
	{"gzip", func(r asset.Request) bool { return r.Gzip }, nil},
}

// BuildTransform renders the transform-engine command for a request.
// Pure string construction; the filesystem is never touched.
func BuildTransform(bin string, req asset.Request) (Command, error) {
	cmd := Command{Bin: bin}

	// Terminal commands take only the input path.
	if req.Inspect {
		cmd.addToken(string(StepInspect))
		cmd.addPath(req.InputPath)
		return cmd, nil
	}
	if req.Validate {
		cmd.addToken(string(StepValidate))
		cmd.addPath(req.InputPath)
		return cmd, nil
	}

	if req.OutputPath == "" {
		return Command{}, ErrMissingOutput
	}

	// Merge takes the primary input, the extra inputs, then the output,
	// instead of the standard input/output pair.
	if len(req.MergeInputs) > 0 {
		cmd.addToken("merge")
		cmd.addPath(req.InputPath)
		for _, in := range req.MergeInputs {
			cmd.addPath(in)
		}
		cmd.addPath(req.OutputPath)
		appendGlobalFlags(&cmd, req)
		return cmd, nil
	}

	spec := primaryCommand(req)
	cmd.addToken(string(spec.name))
	cmd.addPath(req.InputPath)
	cmd.addPath(req.OutputPath)
	if spec.flags != nil {
		spec.flags(&cmd, req)
	}
	appendGlobalFlags(&cmd, req)
	return cmd, nil
}

// primaryCommand picks the first matching precedence-table row, falling
// back to the legacy texture-compress field, then to copy.
func primaryCommand(req asset.Request) commandSpec {
	for _, spec := range transformCommands {
		if spec.match(req) {
			return spec
		}
	}
	if enc := strings.ToLower(req.TextureFormat); enc != "" {
		if enc == "jpg" {
			enc = "jpeg"
		}
		return commandSpec{name: Step(enc)}
	}
	return commandSpec{name: StepCopy}
}

func appendGlobalFlags(cmd *Command, req asset.Request) {
	if req.VertexLayout != "" {
		cmd.addToken("--vertex-layout")
		cmd.addToken(req.VertexLayout)
	}
}

func simplifyFlags(cmd *Command, req asset.Request) {
	cmd.addToken("--ratio")
	cmd.addToken(strconv.FormatFloat(req.SimplifyRatio, 'g', -1, 64))
}

// dracoFlags renders arbitrary compression sub-options, one flag per key,
// skipping nil values. Keys are sorted so identical options always render
// identical commands.
func dracoFlags(cmd *Command, req asset.Request) {
	if len(req.DracoOptions) == 0 {
		return
	}
	keys := make([]string, 0, len(req.DracoOptions))
	for k := range req.DracoOptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := req.DracoOptions[k]
		if v == nil {
			continue
		}
		cmd.addToken("--" + k)
		cmd.addToken(fmt.Sprintf("%v", v))
	}
}

func meshoptFlags(cmd *Command, req asset.Request) {
	if req.MeshoptLevel != "" {
		cmd.addToken("--level")
		cmd.addToken(req.MeshoptLevel)
	}
}

func resizeFlags(cmd *Command, req asset.Request) {
	if req.ResizeWidth > 0 {
		cmd.addToken("--width")
		cmd.addToken(strconv.Itoa(req.ResizeWidth))
	}
	if req.ResizeHeight > 0 {
		cmd.addToken("--height")
		cmd.addToken(strconv.Itoa(req.ResizeHeight))
	}
}

// ConvertRequest is a conversion request for the pipeline engine.
type ConvertRequest struct {
	InputPath  string `json:"inputPath" jsonschema:"Path to the input .gltf/.glb file"`
	OutputPath string `json:"outputPath,omitempty" jsonschema:"Output path; derived from the input path when omitted"`
	Binary     bool   `json:"binary,omitempty" jsonschema:"Convert to binary .glb"`
	Draco      bool   `json:"draco,omitempty" jsonschema:"Apply Draco compression during conversion"`
}

// BuildConvert renders the pipeline-engine invocation:
// <bin> -i "<input>" -o "<output>" [-b] [-d].
// The engine reports success as "Saved <path>" on stderr, so that marker
// is allowlisted for fatal-stderr classification.
func BuildConvert(bin string, req ConvertRequest) (Command, error) {
	if req.OutputPath == "" {
		return Command{}, ErrMissingOutput
	}
	cmd := Command{Bin: bin, StderrAllow: []string{"Saved"}}
	cmd.addToken("-i")
	cmd.addPath(req.InputPath)
	cmd.addToken("-o")
	cmd.addPath(req.OutputPath)
	if req.Binary {
		cmd.addToken("-b")
	}
	if req.Draco {
		cmd.addToken("-d")
	}
	return cmd, nil
}
