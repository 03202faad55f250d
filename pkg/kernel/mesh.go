package kernel

import "math"

// Mesh is the triangulated preview of one result element. Arrays are flat:
// three floats per vertex position and normal, three indices per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`

	// PartName and EntityID identify the document element the mesh shows.
	PartName string `json:"partName"`
	EntityID int    `json:"entityId"`
}

func (m *Mesh) VertexCount() int   { return len(m.Vertices) / 3 }
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }

// IsEmpty reports whether the mesh has no triangles to draw.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0 || len(m.Indices) < 3
}

// Bounds returns the axis-aligned box around the vertices. ok is false for a
// mesh without vertices.
func (m *Mesh) Bounds() (lo, hi Vec3, ok bool) {
	if m.VertexCount() == 0 {
		return Vec3{}, Vec3{}, false
	}
	lo = Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi = Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		for axis := 0; axis < 3; axis++ {
			v := float64(m.Vertices[i+axis])
			lo[axis] = math.Min(lo[axis], v)
			hi[axis] = math.Max(hi[axis], v)
		}
	}
	return lo, hi, true
}
