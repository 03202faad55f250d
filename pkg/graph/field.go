package graph

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parameter
// ---------------------------------------------------------------------------

// Parameter is a scalar field holding either a number or formula text.
// Formula text is spliced into the generated script as-is; it is never
// evaluated here.
type Parameter struct {
	name      string
	number    float64
	formula   string
	isFormula bool
}

// Name returns the qualified parameter name, e.g. "point1.x".
func (p *Parameter) Name() string { return p.name }

// Set stores a number (any Go integer or float kind) or a formula string.
func (p *Parameter) Set(v any) error {
	if s, ok := v.(string); ok {
		p.SetFormula(s)
		return nil
	}
	rv := reflect.ValueOf(v)
	var f float64
	switch {
	case rv.CanInt():
		f = float64(rv.Int())
	case rv.CanUint():
		f = float64(rv.Uint())
	case rv.CanFloat():
		f = rv.Float()
	default:
		return fmt.Errorf("%w: %s: %T", ErrParameterType, p.name, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %s: %v is not a finite number", ErrParameterType, p.name, f)
	}
	p.SetNumber(f)
	return nil
}

// SetNumber stores a numeric literal.
func (p *Parameter) SetNumber(f float64) {
	p.number = f
	p.formula = ""
	p.isFormula = false
}

// SetFormula stores formula text. No syntax check is performed.
func (p *Parameter) SetFormula(text string) {
	p.number = 0
	p.formula = text
	p.isFormula = true
}

func (p *Parameter) IsFormula() bool { return p.isFormula }

// Number returns the numeric value and false when the parameter holds a formula.
func (p *Parameter) Number() (float64, bool) {
	return p.number, !p.isFormula
}

// Formula returns the formula text and false when the parameter holds a number.
func (p *Parameter) Formula() (string, bool) {
	return p.formula, p.isFormula
}

// Value returns the stored value as float64 or string.
func (p *Parameter) Value() any {
	if p.isFormula {
		return p.formula
	}
	return p.number
}

// Literal renders the value for the generated script: numbers as plain
// decimals, formulas verbatim and unquoted.
func (p *Parameter) Literal() string {
	if p.isFormula {
		return p.formula
	}
	return strconv.FormatFloat(p.number, 'f', -1, 64)
}

// Vec3 groups three parameters forming a point or direction.
type Vec3 struct {
	X, Y, Z Parameter
}

func newVec3(name string) Vec3 {
	return Vec3{
		X: Parameter{name: name + ".x"},
		Y: Parameter{name: name + ".y"},
		Z: Parameter{name: name + ".z"},
	}
}

// Set assigns the three components; each accepts a number or a formula.
func (v *Vec3) Set(x, y, z any) error {
	if err := v.X.Set(x); err != nil {
		return err
	}
	if err := v.Y.Set(y); err != nil {
		return err
	}
	return v.Z.Set(z)
}

// Literal renders the vector as "[x,y,z]".
func (v *Vec3) Literal() string {
	return "[" + v.X.Literal() + "," + v.Y.Literal() + "," + v.Z.Literal() + "]"
}

func (v *Vec3) params() []*Parameter {
	return []*Parameter{&v.X, &v.Y, &v.Z}
}

// ---------------------------------------------------------------------------
// Connector
// ---------------------------------------------------------------------------

// Connector is a link field pointing at another entity of the same document
// by id. Setting a connector on an attached entity keeps the target's
// dependant set in sync; on a detached clone only the id is recorded until
// the clone is committed with Document.ReplaceItem.
type Connector struct {
	name   string
	owner  *base
	target EntityID
}

func (c *Connector) Name() string { return c.name }

// Target returns the id of the linked entity, or zero.
func (c *Connector) Target() EntityID { return c.target }

func (c *Connector) Linked() bool { return c.target != 0 }

// Get resolves the link against the owning document.
func (c *Connector) Get() (Entity, error) {
	if c.target == 0 {
		return nil, fmt.Errorf("%s: %w", c.name, ErrUnlinked)
	}
	d := c.owner.doc
	if d == nil {
		return nil, fmt.Errorf("%s: %w", c.name, ErrDetached)
	}
	e := d.Get(c.target)
	if e == nil {
		return nil, fmt.Errorf("%s: #%d: %w", c.name, c.target, ErrDanglingReference)
	}
	return e, nil
}

// Set links the connector to target. A nil target clears the link.
func (c *Connector) Set(target Entity) error {
	if target == nil {
		return c.Clear()
	}
	t := target.core()
	switch t.state {
	case Detached:
		return fmt.Errorf("linking %s to %q: %w", c.name, t.name, ErrDetached)
	case Disposed:
		return fmt.Errorf("linking %s to %q: %w", c.name, t.name, ErrDisposed)
	}
	owner := c.owner
	if owner.doc != t.doc {
		return fmt.Errorf("linking %s to %q: %w", c.name, t.name, ErrForeignEntity)
	}

	switch owner.state {
	case Disposed:
		return fmt.Errorf("linking %s of %q: %w", c.name, owner.name, ErrDisposed)
	case Detached:
		c.target = t.id
		return nil
	}

	d := owner.doc
	if err := d.checkPrecedes(t.id, owner.id); err != nil {
		return fmt.Errorf("linking %s of %q to %q: %w", c.name, owner.name, t.name, err)
	}
	for _, other := range owner.links {
		if other != c && other.target == t.id {
			return fmt.Errorf("linking %s of %q to %q: %w", c.name, owner.name, t.name, ErrDuplicateLink)
		}
	}

	var prev *base
	if c.target != 0 {
		if p := d.Get(c.target); p != nil {
			prev = p.core()
			if err := prev.removeDependant(owner); err != nil {
				return err
			}
		}
	}
	if err := t.addDependant(owner); err != nil {
		if prev != nil {
			_ = prev.addDependant(owner)
		}
		return err
	}
	c.target = t.id
	return nil
}

// Clear removes the link, releasing the dependant registration if the owner
// is attached.
func (c *Connector) Clear() error {
	if c.target == 0 {
		return nil
	}
	owner := c.owner
	if owner.state == Attached && owner.doc != nil {
		if t := owner.doc.Get(c.target); t != nil {
			if err := t.core().removeDependant(owner); err != nil {
				return err
			}
		}
	}
	c.target = 0
	return nil
}
