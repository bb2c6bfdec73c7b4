package planning

import (
	"fmt"
	"path/filepath"
	"strings"

	"resectionplan/internal/models"
	"resectionplan/pkg/stl"
)

// TargetFile names an STL mesh and the structure it depicts.
type TargetFile struct {
	ID        string
	Structure models.Structure
	Path      string
}

// ParseTargetFile parses "structure=path" or "structure:id=path". The ID
// defaults to the file name without extension.
func ParseTargetFile(arg string) (TargetFile, error) {
	kind, path, ok := strings.Cut(arg, "=")
	if !ok || path == "" {
		return TargetFile{}, fmt.Errorf("target %q: expected structure=path", arg)
	}
	kind, id, _ := strings.Cut(kind, ":")
	s, err := models.ParseStructure(kind)
	if err != nil {
		return TargetFile{}, fmt.Errorf("target %q: %w", arg, err)
	}
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return TargetFile{ID: id, Structure: s, Path: path}, nil
}

// Load parses the file into a new anatomy.
func (f TargetFile) Load() (*models.Anatomy, error) {
	mesh, err := stl.Parse(f.Path)
	if err != nil {
		return nil, err
	}
	if mesh.IsEmpty() {
		return nil, fmt.Errorf("%s: no triangles", f.Path)
	}
	return models.NewAnatomy(f.ID, f.Structure, mesh), nil
}
