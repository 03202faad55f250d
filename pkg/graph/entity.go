package graph

import (
	"fmt"
	"sort"
)

// EntityID identifies an entity inside its document. Ids are positive and
// sequential; the zero value means "no id".
type EntityID int

// EntityState tracks whether an entity belongs to a document.
type EntityState int

const (
	Detached EntityState = iota // not part of any document (fresh or cloned)
	Attached                    // owned by a document, id assigned
	Disposed                    // removed by delete or replace; terminal
)

func (s EntityState) String() string {
	switch s {
	case Detached:
		return "detached"
	case Attached:
		return "attached"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("EntityState(%d)", int(s))
	}
}

// Kind enumerates the entity variants.
type Kind int

const (
	KindBox Kind = iota
	KindCylinder
	KindCone
	KindSphere
	KindTorus
	KindCut
	KindRotate
	KindTranslate
)

var kindNames = [...]string{
	KindBox:       "box",
	KindCylinder:  "cylinder",
	KindCone:      "cone",
	KindSphere:    "sphere",
	KindTorus:     "torus",
	KindCut:       "cut",
	KindRotate:    "rotate",
	KindTranslate: "translate",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Kinds returns every entity kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, len(kindNames))
	for i := range kindNames {
		kinds[i] = Kind(i)
	}
	return kinds
}

// ParseKind returns the kind whose tag is s.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Entity is one construction step of a document. The set of implementations
// is closed: only this package defines variants.
type Entity interface {
	ID() EntityID
	Name() string
	SetName(name string)
	Kind() Kind
	State() EntityState
	Attached() bool
	Document() *Document

	// Dependants returns the entities holding a connector that points here.
	Dependants() []Entity
	DependantIDs() []EntityID
	CanDelete() bool

	// Connectors returns the link fields in declaration order.
	Connectors() []*Connector
	// Parameters returns the scalar fields in declaration order, with
	// qualified names such as "point1.x".
	Parameters() []*Parameter

	// Clone returns a detached copy with the same name and field values.
	Clone() Entity
	// String is a canonical description that ignores the entity's own id.
	String() string

	core() *base
	expression(ns string) (string, error)
}

// base carries identity, naming and the reverse dependency set shared by
// every variant.
type base struct {
	kind       Kind
	state      EntityState
	id         EntityID
	name       string
	doc        *Document
	dependants map[EntityID]struct{}

	links  []*Connector
	params []*Parameter
}

func (b *base) core() *base { return b }

// bind records the variant's fields. Called once by each constructor.
func (b *base) bind(kind Kind, links []*Connector, params ...[]*Parameter) {
	b.kind = kind
	for _, c := range links {
		c.owner = b
	}
	b.links = links
	for _, group := range params {
		b.params = append(b.params, group...)
	}
}

// ID returns the entity id, or zero when the entity is not attached.
func (b *base) ID() EntityID {
	if b.state != Attached {
		return 0
	}
	return b.id
}

func (b *base) Name() string        { return b.name }
func (b *base) SetName(name string) { b.name = name }
func (b *base) Kind() Kind          { return b.kind }
func (b *base) State() EntityState  { return b.state }
func (b *base) Attached() bool      { return b.state == Attached }

// Document returns the document the entity belongs to or was cloned from.
func (b *base) Document() *Document { return b.doc }

func (b *base) Connectors() []*Connector {
	out := make([]*Connector, len(b.links))
	copy(out, b.links)
	return out
}

func (b *base) Parameters() []*Parameter {
	out := make([]*Parameter, len(b.params))
	copy(out, b.params)
	return out
}

// DependantIDs returns the ids of the dependants in ascending order.
func (b *base) DependantIDs() []EntityID {
	ids := make([]EntityID, 0, len(b.dependants))
	for id := range b.dependants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (b *base) Dependants() []Entity {
	if b.doc == nil {
		return nil
	}
	var out []Entity
	for _, id := range b.DependantIDs() {
		if e := b.doc.Get(id); e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (b *base) CanDelete() bool {
	return len(b.dependants) == 0
}

// addDependant registers referrer as holding a link to b.
func (b *base) addDependant(referrer *base) error {
	if b.state == Disposed {
		return fmt.Errorf("registering dependant on %q: %w", b.name, ErrDisposed)
	}
	switch referrer.state {
	case Detached:
		return fmt.Errorf("registering dependant %q: %w", referrer.name, ErrDetached)
	case Disposed:
		return fmt.Errorf("registering dependant %q: %w", referrer.name, ErrDisposed)
	}
	if _, ok := b.dependants[referrer.id]; ok {
		return fmt.Errorf("%q on %q: %w", referrer.name, b.name, ErrAlreadyDependant)
	}
	if b.dependants == nil {
		b.dependants = make(map[EntityID]struct{})
	}
	b.dependants[referrer.id] = struct{}{}
	return nil
}

// removeDependant drops referrer from the dependant set of b.
func (b *base) removeDependant(referrer *base) error {
	if b.state == Disposed {
		return fmt.Errorf("unregistering dependant from %q: %w", b.name, ErrDisposed)
	}
	if _, ok := b.dependants[referrer.id]; !ok {
		return fmt.Errorf("%q on %q: %w", referrer.name, b.name, ErrNotDependant)
	}
	delete(b.dependants, referrer.id)
	return nil
}

func (b *base) attach(doc *Document, id EntityID) {
	b.doc = doc
	b.id = id
	b.state = Attached
}

// detach returns a candidate that failed to commit to the detached state.
// The document binding is kept so it can be committed again.
func (b *base) detach() {
	b.id = 0
	b.state = Detached
}

func (b *base) dispose() {
	b.state = Disposed
	b.dependants = nil
}

// copyFrom copies name and field values from src. Link targets are copied
// by id without registering anything.
func (b *base) copyFrom(src *base) {
	b.name = src.name
	b.doc = src.doc
	for i, p := range src.params {
		*b.params[i] = *p
	}
	for i, c := range src.links {
		b.links[i].target = c.target
	}
}

func (b *base) param(name string) *Parameter {
	for _, p := range b.params {
		if p.name == name {
			return p
		}
	}
	return nil
}

func (b *base) link(name string) *Connector {
	for _, c := range b.links {
		if c.name == name {
			return c
		}
	}
	return nil
}

// ParameterByName returns the parameter of e with the given qualified name.
func ParameterByName(e Entity, name string) (*Parameter, bool) {
	p := e.core().param(name)
	return p, p != nil
}

// ConnectorByName returns the connector of e with the given name.
func ConnectorByName(e Entity, name string) (*Connector, bool) {
	c := e.core().link(name)
	return c, c != nil
}
