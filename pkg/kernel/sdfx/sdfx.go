// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/forma/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 200

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// Option configures an SdfxKernel.
type Option func(*SdfxKernel)

// WithMeshCells sets the marching cubes resolution along the longest axis.
func WithMeshCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.meshCells = n
		}
	}
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	meshCells int
}

// New returns a new SdfxKernel.
func New(opts ...Option) *SdfxKernel {
	k := &SdfxKernel{meshCells: DefaultMeshCells}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

func vec(v kernel.Vec3) v3.Vec {
	return v3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// alignZ returns the rotation taking +Z onto dir.
func alignZ(dir kernel.Vec3) (sdf.M44, error) {
	n, ok := dir.Unit()
	if !ok {
		return sdf.Identity3d(), fmt.Errorf("%w: zero-length axis", kernel.ErrDegenerate)
	}
	z := kernel.Vec3{0, 0, 1}
	axis, ok := z.Cross(n).Unit()
	if !ok {
		if n[2] > 0 {
			return sdf.Identity3d(), nil
		}
		return sdf.RotateX(math.Pi), nil
	}
	angle := math.Acos(math.Max(-1, math.Min(1, n[2])))
	return sdf.Rotate3d(vec(axis), angle), nil
}

// placeAlong centers s, built along +Z around the origin, between p1 and p2.
func placeAlong(s sdf.SDF3, p1, p2 kernel.Vec3) (kernel.Solid, error) {
	rot, err := alignZ(p2.Sub(p1))
	if err != nil {
		return nil, err
	}
	mid := p1.Add(p2).Scale(0.5)
	return wrap(sdf.Transform3D(s, sdf.Translate3d(vec(mid)).Mul(rot))), nil
}

// Box creates the axis-aligned box spanned by two opposite corners.
// sdf.Box3D centers the box at the origin, so it is moved to the midpoint.
func (k *SdfxKernel) Box(p1, p2 kernel.Vec3) (kernel.Solid, error) {
	size := p2.Sub(p1)
	for i := range size {
		size[i] = math.Abs(size[i])
		if size[i] == 0 {
			return nil, fmt.Errorf("%w: box has zero extent", kernel.ErrDegenerate)
		}
	}
	s, err := sdf.Box3D(vec(size), 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Box3D: %w", err)
	}
	mid := p1.Add(p2).Scale(0.5)
	return wrap(sdf.Transform3D(s, sdf.Translate3d(vec(mid)))), nil
}

// Cylinder creates a cylinder whose axis runs from p1 to p2.
func (k *SdfxKernel) Cylinder(p1, p2 kernel.Vec3, radius float64) (kernel.Solid, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("%w: cylinder radius %g", kernel.ErrDegenerate, radius)
	}
	height := p2.Sub(p1).Length()
	if height == 0 {
		return nil, fmt.Errorf("%w: cylinder has zero height", kernel.ErrDegenerate)
	}
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Cylinder3D: %w", err)
	}
	return placeAlong(s, p1, p2)
}

// Cone creates a truncated cone with radius1 at p1 and radius2 at p2.
func (k *SdfxKernel) Cone(p1 kernel.Vec3, radius1 float64, p2 kernel.Vec3, radius2 float64) (kernel.Solid, error) {
	if radius1 < 0 || radius2 < 0 || radius1+radius2 == 0 {
		return nil, fmt.Errorf("%w: cone radii %g, %g", kernel.ErrDegenerate, radius1, radius2)
	}
	height := p2.Sub(p1).Length()
	if height == 0 {
		return nil, fmt.Errorf("%w: cone has zero height", kernel.ErrDegenerate)
	}
	s, err := sdf.Cone3D(height, radius1, radius2, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Cone3D: %w", err)
	}
	return placeAlong(s, p1, p2)
}

// Sphere creates a sphere.
func (k *SdfxKernel) Sphere(center kernel.Vec3, radius float64) (kernel.Solid, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("%w: sphere radius %g", kernel.ErrDegenerate, radius)
	}
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Sphere3D: %w", err)
	}
	return wrap(sdf.Transform3D(s, sdf.Translate3d(vec(center)))), nil
}

// Torus revolves a circle of smallRadius, offset by mainRadius, around axis.
func (k *SdfxKernel) Torus(center, axis kernel.Vec3, mainRadius, smallRadius float64) (kernel.Solid, error) {
	if smallRadius <= 0 || mainRadius <= smallRadius {
		return nil, fmt.Errorf("%w: torus radii %g, %g", kernel.ErrDegenerate, mainRadius, smallRadius)
	}
	rot, err := alignZ(axis)
	if err != nil {
		return nil, err
	}
	circle, err := sdf.Circle2D(smallRadius)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Circle2D: %w", err)
	}
	profile := sdf.Transform2D(circle, sdf.Translate2d(v2.Vec{X: mainRadius}))
	s, err := sdf.Revolve3D(profile)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Revolve3D: %w", err)
	}
	return wrap(sdf.Transform3D(s, sdf.Translate3d(vec(center)).Mul(rot))), nil
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Difference3D(unwrap(a), unwrap(b)))
}

// Translate moves a solid by v.
func (k *SdfxKernel) Translate(s kernel.Solid, v kernel.Vec3) kernel.Solid {
	return wrap(sdf.Transform3D(unwrap(s), sdf.Translate3d(vec(v))))
}

// Rotate turns a solid by radians around axis through center (right hand rule).
func (k *SdfxKernel) Rotate(s kernel.Solid, center, axis kernel.Vec3, radians float64) (kernel.Solid, error) {
	a, ok := axis.Unit()
	if !ok {
		return nil, fmt.Errorf("%w: zero-length rotation axis", kernel.ErrDegenerate)
	}
	m := sdf.Translate3d(vec(center)).
		Mul(sdf.Rotate3d(vec(a), radians)).
		Mul(sdf.Translate3d(vec(center.Scale(-1))))
	return wrap(sdf.Transform3D(unwrap(s), m)), nil
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	sdf3 := unwrap(s)

	renderer := render.NewMarchingCubesUniform(k.meshCells)
	triangles := render.ToTriangles(sdf3, renderer)

	numVerts := len(triangles) * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		n := tri.Normal()
		nx, ny, nz := float32(n.X), float32(n.Y), float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
