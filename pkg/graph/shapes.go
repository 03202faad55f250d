package graph

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// Box is an axis-aligned box spanned by two opposite corners.
type Box struct {
	base
	Point1 Vec3
	Point2 Vec3
}

func newBox() *Box {
	b := &Box{Point1: newVec3("point1"), Point2: newVec3("point2")}
	b.bind(KindBox, nil, b.Point1.params(), b.Point2.params())
	return b
}

func (b *Box) Clone() Entity {
	c := newBox()
	c.copyFrom(&b.base)
	return c
}

func (b *Box) String() string {
	return describe(&b.base, "point1="+b.Point1.Literal(), "point2="+b.Point2.Literal())
}

func (b *Box) expression(ns string) (string, error) {
	return fmt.Sprintf("%smakeBox(%s,%s)", ns, b.Point1.Literal(), b.Point2.Literal()), nil
}

// Cylinder is a cylinder whose axis runs from Point1 to Point2.
type Cylinder struct {
	base
	Point1 Vec3
	Point2 Vec3
	Radius Parameter
}

func newCylinder() *Cylinder {
	c := &Cylinder{Point1: newVec3("point1"), Point2: newVec3("point2"), Radius: Parameter{name: "radius"}}
	c.bind(KindCylinder, nil, c.Point1.params(), c.Point2.params(), []*Parameter{&c.Radius})
	return c
}

func (c *Cylinder) Clone() Entity {
	n := newCylinder()
	n.copyFrom(&c.base)
	return n
}

func (c *Cylinder) String() string {
	return describe(&c.base, "point1="+c.Point1.Literal(), "point2="+c.Point2.Literal(), "radius="+c.Radius.Literal())
}

func (c *Cylinder) expression(ns string) (string, error) {
	return fmt.Sprintf("%smakeCylinder(%s,%s,%s)", ns, c.Point1.Literal(), c.Point2.Literal(), c.Radius.Literal()), nil
}

// Cone is a truncated cone with Radius1 at Point1 and Radius2 at Point2.
type Cone struct {
	base
	Point1  Vec3
	Radius1 Parameter
	Point2  Vec3
	Radius2 Parameter
}

func newCone() *Cone {
	c := &Cone{
		Point1:  newVec3("point1"),
		Radius1: Parameter{name: "radius1"},
		Point2:  newVec3("point2"),
		Radius2: Parameter{name: "radius2"},
	}
	c.bind(KindCone, nil, c.Point1.params(), []*Parameter{&c.Radius1}, c.Point2.params(), []*Parameter{&c.Radius2})
	return c
}

func (c *Cone) Clone() Entity {
	n := newCone()
	n.copyFrom(&c.base)
	return n
}

func (c *Cone) String() string {
	return describe(&c.base,
		"point1="+c.Point1.Literal(), "radius1="+c.Radius1.Literal(),
		"point2="+c.Point2.Literal(), "radius2="+c.Radius2.Literal())
}

func (c *Cone) expression(ns string) (string, error) {
	return fmt.Sprintf("%smakeCone(%s,%s,%s,%s)", ns,
		c.Point1.Literal(), c.Radius1.Literal(), c.Point2.Literal(), c.Radius2.Literal()), nil
}

// Sphere is a sphere given by center and radius.
type Sphere struct {
	base
	Center Vec3
	Radius Parameter
}

func newSphere() *Sphere {
	s := &Sphere{Center: newVec3("center"), Radius: Parameter{name: "radius"}}
	s.bind(KindSphere, nil, s.Center.params(), []*Parameter{&s.Radius})
	return s
}

func (s *Sphere) Clone() Entity {
	n := newSphere()
	n.copyFrom(&s.base)
	return n
}

func (s *Sphere) String() string {
	return describe(&s.base, "center="+s.Center.Literal(), "radius="+s.Radius.Literal())
}

func (s *Sphere) expression(ns string) (string, error) {
	return fmt.Sprintf("%smakeSphere(%s,%s)", ns, s.Center.Literal(), s.Radius.Literal()), nil
}

// Torus is a ring around Axis through Center.
type Torus struct {
	base
	Center      Vec3
	Axis        Vec3
	MainRadius  Parameter
	SmallRadius Parameter
}

func newTorus() *Torus {
	t := &Torus{
		Center:      newVec3("center"),
		Axis:        newVec3("axis"),
		MainRadius:  Parameter{name: "mainRadius"},
		SmallRadius: Parameter{name: "smallRadius"},
	}
	t.bind(KindTorus, nil, t.Center.params(), t.Axis.params(), []*Parameter{&t.MainRadius, &t.SmallRadius})
	return t
}

func (t *Torus) Clone() Entity {
	n := newTorus()
	n.copyFrom(&t.base)
	return n
}

func (t *Torus) String() string {
	return describe(&t.base,
		"center="+t.Center.Literal(), "axis="+t.Axis.Literal(),
		"mainRadius="+t.MainRadius.Literal(), "smallRadius="+t.SmallRadius.Literal())
}

func (t *Torus) expression(ns string) (string, error) {
	return fmt.Sprintf("%smakeTorus(%s,%s,%s,%s)", ns,
		t.Center.Literal(), t.Axis.Literal(), t.MainRadius.Literal(), t.SmallRadius.Literal()), nil
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Cut subtracts RightArg from LeftArg.
type Cut struct {
	base
	LeftArg  Connector
	RightArg Connector
}

func newCut() *Cut {
	c := &Cut{LeftArg: Connector{name: "leftArg"}, RightArg: Connector{name: "rightArg"}}
	c.bind(KindCut, []*Connector{&c.LeftArg, &c.RightArg})
	return c
}

func (c *Cut) Clone() Entity {
	n := newCut()
	n.copyFrom(&c.base)
	return n
}

func (c *Cut) String() string {
	return describe(&c.base, "leftArg="+linkRef(&c.LeftArg), "rightArg="+linkRef(&c.RightArg))
}

func (c *Cut) expression(ns string) (string, error) {
	left, err := linkName(&c.LeftArg)
	if err != nil {
		return "", err
	}
	right, err := linkName(&c.RightArg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%scut(%s,%s)", ns, left, right), nil
}

// ---------------------------------------------------------------------------
// Transforms
// ---------------------------------------------------------------------------

// Rotate turns Geometry by Angle around Axis through Center.
type Rotate struct {
	base
	Geometry Connector
	Center   Vec3
	Axis     Vec3
	Angle    Parameter
}

func newRotate() *Rotate {
	r := &Rotate{
		Geometry: Connector{name: "geometry"},
		Center:   newVec3("center"),
		Axis:     newVec3("axis"),
		Angle:    Parameter{name: "angle"},
	}
	r.bind(KindRotate, []*Connector{&r.Geometry}, r.Center.params(), r.Axis.params(), []*Parameter{&r.Angle})
	return r
}

// SetGeometry links the transformed entity.
func (r *Rotate) SetGeometry(e Entity) error { return r.Geometry.Set(e) }

func (r *Rotate) Clone() Entity {
	n := newRotate()
	n.copyFrom(&r.base)
	return n
}

func (r *Rotate) String() string {
	return describe(&r.base, "geometry="+linkRef(&r.Geometry),
		"center="+r.Center.Literal(), "axis="+r.Axis.Literal(), "angle="+r.Angle.Literal())
}

func (r *Rotate) expression(ns string) (string, error) {
	geom, err := linkName(&r.Geometry)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.rotate(%s,%s,%s)", geom, r.Center.Literal(), r.Axis.Literal(), r.Angle.Literal()), nil
}

// Translate moves Geometry by Vector.
type Translate struct {
	base
	Geometry Connector
	Vector   Vec3
}

func newTranslate() *Translate {
	t := &Translate{Geometry: Connector{name: "geometry"}, Vector: newVec3("vector")}
	t.bind(KindTranslate, []*Connector{&t.Geometry}, t.Vector.params())
	return t
}

// SetGeometry links the transformed entity.
func (t *Translate) SetGeometry(e Entity) error { return t.Geometry.Set(e) }

func (t *Translate) Clone() Entity {
	n := newTranslate()
	n.copyFrom(&t.base)
	return n
}

func (t *Translate) String() string {
	return describe(&t.base, "geometry="+linkRef(&t.Geometry), "vector="+t.Vector.Literal())
}

func (t *Translate) expression(ns string) (string, error) {
	geom, err := linkName(&t.Geometry)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.translate(%s)", geom, t.Vector.Literal()), nil
}

// ---------------------------------------------------------------------------
// Factory
// ---------------------------------------------------------------------------

var factories = map[Kind]func() Entity{
	KindBox:       func() Entity { return newBox() },
	KindCylinder:  func() Entity { return newCylinder() },
	KindCone:      func() Entity { return newCone() },
	KindSphere:    func() Entity { return newSphere() },
	KindTorus:     func() Entity { return newTorus() },
	KindCut:       func() Entity { return newCut() },
	KindRotate:    func() Entity { return newRotate() },
	KindTranslate: func() Entity { return newTranslate() },
}

// newEntity builds a fresh detached entity of the given kind.
func newEntity(kind Kind) (Entity, error) {
	f, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
	return f(), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func describe(b *base, fields ...string) string {
	return b.kind.String() + "{name=" + b.name + " " + strings.Join(fields, " ") + "}"
}

// linkRef renders a link by target id so descriptions do not depend on names.
func linkRef(c *Connector) string {
	if c.target == 0 {
		return "none"
	}
	return fmt.Sprintf("#%d", c.target)
}

// linkName resolves a link to the target's current name.
func linkName(c *Connector) (string, error) {
	e, err := c.Get()
	if err != nil {
		return "", fmt.Errorf("%q: %w", c.owner.name, err)
	}
	return e.Name(), nil
}
