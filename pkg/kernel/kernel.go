// Package kernel defines the abstract preview geometry kernel interface.
// Implementations provide solid modeling and boolean operations behind this
// interface so document previews do not depend on a particular backend.
package kernel

import "errors"

// ErrDegenerate is returned for primitives with zero volume or an undefined
// orientation.
var ErrDegenerate = errors.New("kernel: degenerate geometry")

// Vec3 is a point or direction in model space.
type Vec3 [3]float64

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface. Primitive constructors
// take the same parameters as the document entities they render and fail on
// degenerate input (zero size, non-positive radius, zero-length axis).
type Kernel interface {
	// Primitives
	Box(p1, p2 Vec3) (Solid, error)
	Cylinder(p1, p2 Vec3, radius float64) (Solid, error)
	Cone(p1 Vec3, radius1 float64, p2 Vec3, radius2 float64) (Solid, error)
	Sphere(center Vec3, radius float64) (Solid, error)
	Torus(center, axis Vec3, mainRadius, smallRadius float64) (Solid, error)

	// Boolean operations
	Difference(a, b Solid) Solid

	// Transforms
	Translate(s Solid, v Vec3) Solid
	Rotate(s Solid, center, axis Vec3, radians float64) (Solid, error)

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
