package asset

import (
	"testing"

	"github.com/qmuntal/gltf"
)

func TestSummarize(t *testing.T) {
	doc := &gltf.Document{
		Asset: gltf.Asset{Version: "2.0", Generator: "test-suite"},
		Accessors: []*gltf.Accessor{
			{Count: 24},  // positions
			{Count: 36},  // indices
			{Count: 300}, // unindexed positions
		},
		Meshes: []*gltf.Mesh{
			{
				Primitives: []*gltf.Primitive{
					{
						Attributes: gltf.Attribute{gltf.POSITION: 0},
						Indices:    gltf.Index(1),
						Mode:       gltf.PrimitiveTriangles,
					},
					{
						Attributes: gltf.Attribute{gltf.POSITION: 2},
						Mode:       gltf.PrimitiveTriangles,
					},
				},
			},
		},
		Materials:      []*gltf.Material{{}, {}},
		Textures:       []*gltf.Texture{{}},
		Scenes:         []*gltf.Scene{{}},
		Nodes:          []*gltf.Node{{}, {}, {}},
		ExtensionsUsed: []string{"KHR_draco_mesh_compression"},
	}

	s := summarize(doc)

	if s.Meshes != 1 {
		t.Errorf("Meshes = %d, want 1", s.Meshes)
	}
	if s.Primitives != 2 {
		t.Errorf("Primitives = %d, want 2", s.Primitives)
	}
	if want := 24 + 300; s.Vertices != want {
		t.Errorf("Vertices = %d, want %d", s.Vertices, want)
	}
	// Indexed primitive: 36/3 triangles; unindexed: 300/3.
	if want := 12 + 100; s.Triangles != want {
		t.Errorf("Triangles = %d, want %d", s.Triangles, want)
	}
	if s.Materials != 2 || s.Textures != 1 || s.Nodes != 3 || s.Scenes != 1 {
		t.Errorf("counts = %+v, want materials=2 textures=1 nodes=3 scenes=1", s)
	}
	if s.Generator != "test-suite" || s.Version != "2.0" {
		t.Errorf("asset info = %q/%q, want test-suite/2.0", s.Generator, s.Version)
	}
	if len(s.ExtensionsUsed) != 1 {
		t.Errorf("ExtensionsUsed = %v, want one entry", s.ExtensionsUsed)
	}
}

func TestSummarizeSkipsNonTriangleModes(t *testing.T) {
	doc := &gltf.Document{
		Accessors: []*gltf.Accessor{{Count: 10}},
		Meshes: []*gltf.Mesh{
			{
				Primitives: []*gltf.Primitive{
					{
						Attributes: gltf.Attribute{gltf.POSITION: 0},
						Mode:       gltf.PrimitiveLines,
					},
				},
			},
		},
	}

	s := summarize(doc)

	if s.Vertices != 10 {
		t.Errorf("Vertices = %d, want 10", s.Vertices)
	}
	if s.Triangles != 0 {
		t.Errorf("Triangles = %d, want 0 for line primitives", s.Triangles)
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	if _, err := Analyze("does-not-exist.glb"); err == nil {
		t.Error("Analyze() error = nil, want error for missing file")
	}
}
