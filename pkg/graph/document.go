package graph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Document is the ordered, owning collection of entities. Entities are
// appended in creation order and links only point backwards, so the element
// order is also the construction order.
//
// A Document is not safe for concurrent use.
type Document struct {
	id       uuid.UUID
	elements []Entity
	index    map[EntityID]Entity
	lastID   EntityID
}

// New creates an empty document.
func New() *Document {
	return &Document{
		id:    uuid.New(),
		index: make(map[EntityID]Entity),
	}
}

// ID returns the document identity. It survives serialization.
func (d *Document) ID() uuid.UUID { return d.id }

// Elements returns the entities in order. The slice is a copy.
func (d *Document) Elements() []Entity {
	out := make([]Entity, len(d.elements))
	copy(out, d.elements)
	return out
}

// Len returns the number of elements.
func (d *Document) Len() int { return len(d.elements) }

// At returns the element at position i, or nil.
func (d *Document) At(i int) Entity {
	if i < 0 || i >= len(d.elements) {
		return nil
	}
	return d.elements[i]
}

// Get returns the attached entity with the given id, or nil.
func (d *Document) Get(id EntityID) Entity {
	return d.index[id]
}

// IndexOf returns the position of e, or -1 if e is not an element.
func (d *Document) IndexOf(e Entity) int {
	if e == nil {
		return -1
	}
	b := e.core()
	for i, el := range d.elements {
		if el.core() == b {
			return i
		}
	}
	return -1
}

// Lookup returns the first element named name, or nil. Names are display
// text and need not be unique.
func (d *Document) Lookup(name string) Entity {
	for _, e := range d.elements {
		if e.Name() == name {
			return e
		}
	}
	return nil
}

// position returns the index of the element with the given id, or -1.
func (d *Document) position(id EntityID) int {
	for i, e := range d.elements {
		if e.core().id == id {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// Creation
// ---------------------------------------------------------------------------

func (d *Document) AddBox() *Box {
	b := newBox()
	d.append(b)
	return b
}

func (d *Document) AddCylinder() *Cylinder {
	c := newCylinder()
	d.append(c)
	return c
}

func (d *Document) AddCone() *Cone {
	c := newCone()
	d.append(c)
	return c
}

func (d *Document) AddSphere() *Sphere {
	s := newSphere()
	d.append(s)
	return s
}

func (d *Document) AddTorus() *Torus {
	t := newTorus()
	d.append(t)
	return t
}

func (d *Document) AddCut() *Cut {
	c := newCut()
	d.append(c)
	return c
}

func (d *Document) AddRotate() *Rotate {
	r := newRotate()
	d.append(r)
	return r
}

func (d *Document) AddTranslate() *Translate {
	t := newTranslate()
	d.append(t)
	return t
}

// Add appends a new entity of the given kind.
func (d *Document) Add(kind Kind) (Entity, error) {
	e, err := newEntity(kind)
	if err != nil {
		return nil, err
	}
	d.append(e)
	return e, nil
}

// NewDetached returns a detached entity bound to d, suitable as a
// ReplaceItem candidate of a different kind than the element it replaces.
func (d *Document) NewDetached(kind Kind) (Entity, error) {
	e, err := newEntity(kind)
	if err != nil {
		return nil, err
	}
	b := e.core()
	b.doc = d
	b.name = d.defaultName(len(d.elements))
	return e, nil
}

// append assigns the next id and a default name, then appends e.
func (d *Document) append(e Entity) {
	b := e.core()
	b.name = d.defaultName(len(d.elements))
	d.lastID++
	b.attach(d, d.lastID)
	d.elements = append(d.elements, e)
	d.index[b.id] = e
}

// defaultName returns "shape<pos>", or the next free suffix after pos if an
// element already carries that name.
func (d *Document) defaultName(pos int) string {
	taken := make(map[string]bool, len(d.elements))
	for _, e := range d.elements {
		taken[e.Name()] = true
	}
	for n := pos; ; n++ {
		name := "shape" + strconv.Itoa(n)
		if !taken[name] {
			return name
		}
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// PossibleAncestors returns the elements strictly preceding e: the only
// legal link targets for e. It returns nil if e is not an element.
func (d *Document) PossibleAncestors(e Entity) []Entity {
	i := d.IndexOf(e)
	if i < 0 {
		return nil
	}
	return d.PossibleAncestorsAt(i)
}

// PossibleAncestorsAt returns the elements strictly preceding position i.
func (d *Document) PossibleAncestorsAt(i int) []Entity {
	if i < 0 || i > len(d.elements) {
		return nil
	}
	out := make([]Entity, i)
	copy(out, d.elements[:i])
	return out
}

// CanDelete reports whether the element at i exists and has no dependants.
func (d *Document) CanDelete(i int) bool {
	e := d.At(i)
	return e != nil && e.CanDelete()
}

// checkPrecedes verifies that target sits before owner in the sequence.
func (d *Document) checkPrecedes(target, owner EntityID) error {
	ti := d.position(target)
	if ti < 0 {
		return fmt.Errorf("#%d: %w", target, ErrDanglingReference)
	}
	if oi := d.position(owner); oi >= 0 && ti >= oi {
		return ErrForwardReference
	}
	return nil
}

// ---------------------------------------------------------------------------
// Mutation
// ---------------------------------------------------------------------------

// DeleteItem removes e from the document.
func (d *Document) DeleteItem(e Entity) error {
	i := d.IndexOf(e)
	if i < 0 {
		return fmt.Errorf("graph: delete: %w", ErrForeignEntity)
	}
	return d.DeleteAt(i)
}

// DeleteAt removes the element at position i. It fails without touching the
// document if the element still has dependants.
func (d *Document) DeleteAt(i int) error {
	e := d.At(i)
	if e == nil {
		return fmt.Errorf("graph: delete %d: %w", i, ErrIndexOutOfRange)
	}
	b := e.core()
	if !b.CanDelete() {
		names := make([]string, 0, len(b.dependants))
		for _, dep := range b.Dependants() {
			names = append(names, dep.Name())
		}
		return fmt.Errorf("graph: delete %q: %w: used by %s", b.name, ErrHasDependants, strings.Join(names, ", "))
	}
	if err := d.release(b); err != nil {
		return err
	}
	d.elements = append(d.elements[:i:i], d.elements[i+1:]...)
	delete(d.index, b.id)
	b.dispose()
	return nil
}

// ReplaceItem commits candidate at position i. The candidate takes over the
// id and the dependants of the replaced element, so links pointing at that
// position keep resolving. The replaced element is disposed.
func (d *Document) ReplaceItem(i int, candidate Entity) error {
	if problems := d.CheckReplaceItem(i, candidate); HasErrors(problems) {
		return &ReplaceError{Index: i, Problems: problems}
	}
	old := d.elements[i].core()
	nb := candidate.core()

	if err := d.release(old); err != nil {
		return err
	}
	// The candidate is registered under the old id before it is swapped in;
	// on failure the old element takes its registrations back.
	nb.attach(d, old.id)
	if err := d.register(nb); err != nil {
		nb.detach()
		if rerr := d.register(old); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	nb.dependants = old.dependants
	old.dependants = nil
	d.elements[i] = candidate
	d.index[old.id] = candidate
	old.dispose()
	return nil
}

// release unregisters b from every entity it links to. On failure the
// registrations already dropped are restored.
func (d *Document) release(b *base) error {
	var done []*base
	for _, c := range b.links {
		if c.target == 0 {
			continue
		}
		err := fmt.Errorf("graph: %q %s: #%d: %w", b.name, c.name, c.target, ErrDanglingReference)
		if t := d.Get(c.target); t != nil {
			err = t.core().removeDependant(b)
			if err == nil {
				done = append(done, t.core())
				continue
			}
		}
		for _, r := range done {
			_ = r.addDependant(b)
		}
		return err
	}
	return nil
}

// register adds b to the dependant set of every entity it links to. It is
// all or nothing.
func (d *Document) register(b *base) error {
	var done []*base
	for _, c := range b.links {
		if c.target == 0 {
			continue
		}
		err := fmt.Errorf("graph: %q %s: #%d: %w", b.name, c.name, c.target, ErrDanglingReference)
		if t := d.Get(c.target); t != nil {
			err = t.core().addDependant(b)
			if err == nil {
				done = append(done, t.core())
				continue
			}
		}
		for _, r := range done {
			_ = r.removeDependant(b)
		}
		return err
	}
	return nil
}

// ConvertToScript generates the construction script with the default
// generator.
func (d *Document) ConvertToScript() (string, error) {
	return DefaultGenerator.Generate(d)
}
