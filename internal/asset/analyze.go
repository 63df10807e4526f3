package asset

import (
	"fmt"
	"os"

	"github.com/qmuntal/gltf"
)

// Summary is the in-process analysis report for one asset.
type Summary struct {
	FileSizeBytes int64 `json:"fileSizeBytes"`

	Scenes     int `json:"scenes"`
	Nodes      int `json:"nodes"`
	Meshes     int `json:"meshes"`
	Primitives int `json:"primitives"`
	Materials  int `json:"materials"`
	Textures   int `json:"textures"`
	Images     int `json:"images"`
	Animations int `json:"animations"`
	Skins      int `json:"skins"`
	Cameras    int `json:"cameras"`
	Buffers    int `json:"buffers"`

	Vertices  int `json:"vertices"`
	Triangles int `json:"triangles"`

	ExtensionsUsed     []string `json:"extensionsUsed,omitempty"`
	ExtensionsRequired []string `json:"extensionsRequired,omitempty"`
	Generator          string   `json:"generator,omitempty"`
	Version            string   `json:"version,omitempty"`
}

// Analyze parses an asset file and reports its contents.
// Parsing happens in-process over the document model; no engine is spawned.
func Analyze(path string) (Summary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Summary{}, fmt.Errorf("stat input: %w", err)
	}

	doc, err := gltf.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	s := summarize(doc)
	s.FileSizeBytes = info.Size()
	return s, nil
}

// summarize walks a parsed document and counts its contents.
func summarize(doc *gltf.Document) Summary {
	s := Summary{
		Scenes:             len(doc.Scenes),
		Nodes:              len(doc.Nodes),
		Meshes:             len(doc.Meshes),
		Materials:          len(doc.Materials),
		Textures:           len(doc.Textures),
		Images:             len(doc.Images),
		Animations:         len(doc.Animations),
		Skins:              len(doc.Skins),
		Cameras:            len(doc.Cameras),
		Buffers:            len(doc.Buffers),
		ExtensionsUsed:     doc.ExtensionsUsed,
		ExtensionsRequired: doc.ExtensionsRequired,
	}
	if doc.Asset.Generator != "" {
		s.Generator = doc.Asset.Generator
	}
	s.Version = doc.Asset.Version

	for _, mesh := range doc.Meshes {
		if mesh == nil {
			continue
		}
		s.Primitives += len(mesh.Primitives)
		for _, prim := range mesh.Primitives {
			if prim == nil {
				continue
			}
			if pos, ok := prim.Attributes[gltf.POSITION]; ok && int(pos) < len(doc.Accessors) {
				s.Vertices += int(doc.Accessors[pos].Count)
			}
			if prim.Mode != gltf.PrimitiveTriangles {
				continue
			}
			switch {
			case prim.Indices != nil && int(*prim.Indices) < len(doc.Accessors):
				s.Triangles += int(doc.Accessors[*prim.Indices].Count) / 3
			default:
				if pos, ok := prim.Attributes[gltf.POSITION]; ok && int(pos) < len(doc.Accessors) {
					s.Triangles += int(doc.Accessors[pos].Count) / 3
				}
			}
		}
	}

	return s
}
