// Package pipeline plans and executes engine command sequences for
// transform requests. A request's operation flags are scanned in a fixed
// order into a list of steps; each step becomes exactly one engine
// invocation, chained through intermediate files when more than one step
// is needed.
package pipeline

import (
	"errors"

	"github.com/meshkit/gltf-mcp/internal/asset"
)

// ErrConflictingCompression indicates both geometry compressors were
// requested. Re-compressing draco output with meshopt (or vice versa)
// produces broken assets with both engines, so the combination is
// rejected instead of planned sequentially.
var ErrConflictingCompression = errors.New("draco and meshopt are mutually exclusive")

// Step names one engine invocation in a plan.
type Step string

// Step vocabulary, in no particular order. scanOrder below defines the
// execution order.
const (
	StepDraco    Step = "draco"
	StepMeshopt  Step = "meshopt"
	StepQuantize Step = "quantize"
	StepWeld     Step = "weld"
	StepSimplify Step = "simplify"
	StepETC1S    Step = "etc1s"
	StepUASTC    Step = "uastc"
	StepWebP     Step = "webp"
	StepAVIF     Step = "avif"
	StepPNG      Step = "png"
	StepJPEG     Step = "jpeg"
	StepOptimize Step = "optimize"
	StepDedup    Step = "dedup"
	StepPrune    Step = "prune"
	StepInspect  Step = "inspect"
	StepValidate Step = "validate"
	StepCopy     Step = "copy"
)

// planEntry binds a step to the flag that requests it and to the setter
// used when isolating per-step options.
type planEntry struct {
	step      Step
	requested func(asset.Request) bool
	set       func(*asset.Request)
}

// scanOrder fixes the step sequence: geometry compression before vertex
// work before texture encoding before structural cleanup. Running dedup
// and prune last avoids deduplicating data an earlier step rewrites.
var scanOrder = []planEntry{
	{StepDraco, func(r asset.Request) bool { return r.Draco }, func(r *asset.Request) { r.Draco = true }},
	{StepMeshopt, func(r asset.Request) bool { return r.Meshopt }, func(r *asset.Request) { r.Meshopt = true }},
	{StepQuantize, func(r asset.Request) bool { return r.Quantize }, func(r *asset.Request) { r.Quantize = true }},
	{StepWeld, func(r asset.Request) bool { return r.Weld }, func(r *asset.Request) { r.Weld = true }},
	{StepSimplify, func(r asset.Request) bool { return r.Simplify }, func(r *asset.Request) { r.Simplify = true }},
	{StepETC1S, func(r asset.Request) bool { return r.ETC1S }, func(r *asset.Request) { r.ETC1S = true }},
	{StepUASTC, func(r asset.Request) bool { return r.UASTC }, func(r *asset.Request) { r.UASTC = true }},
	{StepWebP, func(r asset.Request) bool { return r.WebP }, func(r *asset.Request) { r.WebP = true }},
	{StepAVIF, func(r asset.Request) bool { return r.AVIF }, func(r *asset.Request) { r.AVIF = true }},
	{StepPNG, func(r asset.Request) bool { return r.PNG }, func(r *asset.Request) { r.PNG = true }},
	{StepJPEG, func(r asset.Request) bool { return r.JPEG }, func(r *asset.Request) { r.JPEG = true }},
	{StepOptimize, func(r asset.Request) bool { return r.Optimize }, func(r *asset.Request) { r.Optimize = true }},
	{StepDedup, func(r asset.Request) bool { return r.Dedup }, func(r *asset.Request) { r.Dedup = true }},
	{StepPrune, func(r asset.Request) bool { return r.Prune }, func(r *asset.Request) { r.Prune = true }},
}

// Plan derives the ordered step list for a request.
// Inspect and validate are terminal and always yield a single-step plan;
// a request with no matching flags is an identity copy. The returned plan
// always has at least one step.
func Plan(req asset.Request) ([]Step, error) {
	if req.Inspect {
		return []Step{StepInspect}, nil
	}
	if req.Validate {
		return []Step{StepValidate}, nil
	}
	if req.Draco && req.Meshopt {
		return nil, ErrConflictingCompression
	}

	var steps []Step
	for _, entry := range scanOrder {
		if entry.requested(req) {
			steps = append(steps, entry.step)
		}
	}
	if len(steps) == 0 {
		steps = []Step{StepCopy}
	}
	return steps, nil
}

// StepOptions rebuilds the request for a single step of a multi-step plan:
// every operation flag is cleared except the one matching the step, while
// non-flag parameters (ratio, sub-options, layout) are preserved.
func StepOptions(req asset.Request, step Step) asset.Request {
	out := req
	clearOperations(&out)
	for _, entry := range scanOrder {
		if entry.step == step {
			entry.set(&out)
			break
		}
	}
	return out
}

// clearOperations zeroes every operation flag, including the ones the
// planner never scans (scene, material, animation and structural flags
// are only reachable through single-step requests).
func clearOperations(r *asset.Request) {
	r.Draco = false
	r.Meshopt = false
	r.Quantize = false
	r.Weld = false
	r.Unweld = false
	r.Simplify = false
	r.Flatten = false
	r.Join = false
	r.Center = false
	r.Instance = false
	r.Metalrough = false
	r.Palette = false
	r.ETC1S = false
	r.UASTC = false
	r.WebP = false
	r.AVIF = false
	r.PNG = false
	r.JPEG = false
	r.ResizeWidth = 0
	r.ResizeHeight = 0
	r.Resample = false
	r.Optimize = false
	r.Dedup = false
	r.Prune = false
	r.Partition = false
	r.Gzip = false
	r.Inspect = false
	r.Validate = false
	r.TextureFormat = ""
	r.MergeInputs = nil
}
