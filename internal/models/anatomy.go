package models

import "fmt"

// Structure classifies an anatomical mesh. The classification itself comes
// from the data model that loads the meshes; it is carried here only so that
// targets can be grouped.
type Structure int

const (
	Parenchyma Structure = iota
	Tumor
	Vessel
	OtherStructure
)

func (s Structure) String() string {
	switch s {
	case Parenchyma:
		return "parenchyma"
	case Tumor:
		return "tumor"
	case Vessel:
		return "vessel"
	default:
		return "other"
	}
}

// ParseStructure maps a name such as "tumor" back to its Structure.
func ParseStructure(name string) (Structure, error) {
	switch name {
	case "parenchyma":
		return Parenchyma, nil
	case "tumor":
		return Tumor, nil
	case "vessel":
		return Vessel, nil
	case "other", "":
		return OtherStructure, nil
	}
	return OtherStructure, fmt.Errorf("unknown structure %q", name)
}

// Anatomy is a named target mesh with a modification counter. Every call to
// SetMesh or Touch increments the counter so that consumers holding derived
// data (spatial indexes) can detect that it went stale.
type Anatomy struct {
	id        string
	structure Structure
	mesh      *TriangleMesh
	modified  uint64
}

// NewAnatomy creates an anatomy mesh. The counter starts at 1.
func NewAnatomy(id string, structure Structure, mesh *TriangleMesh) *Anatomy {
	return &Anatomy{
		id:        id,
		structure: structure,
		mesh:      mesh,
		modified:  1,
	}
}

// ID returns the stable identifier.
func (a *Anatomy) ID() string { return a.id }

// Structure returns the anatomical classification.
func (a *Anatomy) Structure() Structure { return a.structure }

// Mesh returns the current mesh. Callers must not mutate it; use SetMesh.
func (a *Anatomy) Mesh() *TriangleMesh { return a.mesh }

// Modified returns the modification counter.
func (a *Anatomy) Modified() uint64 { return a.modified }

// SetMesh replaces the mesh and bumps the counter.
func (a *Anatomy) SetMesh(m *TriangleMesh) {
	a.mesh = m
	a.modified++
}

// Touch marks the mesh as changed in place.
func (a *Anatomy) Touch() {
	a.modified++
}
