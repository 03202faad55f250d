package graph

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Serialized document identification.
const (
	FormatName    = "forma.document"
	FormatVersion = 1
)

// documentRecord is the wire shape of a document.
type documentRecord struct {
	Format   string          `json:"format" yaml:"format" msgpack:"format"`
	Version  int             `json:"version" yaml:"version" msgpack:"version"`
	ID       string          `json:"id" yaml:"id" msgpack:"id"`
	Elements []elementRecord `json:"elements" yaml:"elements" msgpack:"elements"`
}

// elementRecord is the wire shape of one entity. Params hold float64 or
// formula strings keyed by qualified parameter name; Links hold target ids
// keyed by connector name.
type elementRecord struct {
	Kind   string              `json:"kind" yaml:"kind" msgpack:"kind"`
	ID     EntityID            `json:"id" yaml:"id" msgpack:"id"`
	Name   string              `json:"name" yaml:"name" msgpack:"name"`
	Params map[string]any      `json:"params,omitempty" yaml:"params,omitempty" msgpack:"params,omitempty"`
	Links  map[string]EntityID `json:"links,omitempty" yaml:"links,omitempty" msgpack:"links,omitempty"`
}

// Serialize encodes d as JSON text.
func Serialize(d *Document) (string, error) {
	data, err := Encode(d, JSON)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Deserialize rebuilds a document from JSON text produced by Serialize.
func Deserialize(text string) (*Document, error) {
	return Decode([]byte(text), JSON)
}

// Encode serializes d with the given codec.
func Encode(d *Document, codec Codec) ([]byte, error) {
	data, err := codec.Marshal(toRecord(d))
	if err != nil {
		return nil, fmt.Errorf("graph: encode %s: %w", codec.Name(), err)
	}
	return data, nil
}

// Decode rebuilds a document from data. Entities are materialized first and
// links wired in a second pass, so a malformed input never yields a
// partially built document.
func Decode(data []byte, codec Codec) (*Document, error) {
	var rec documentRecord
	if err := codec.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, codec.Name(), err)
	}
	return fromRecord(rec)
}

func toRecord(d *Document) documentRecord {
	rec := documentRecord{
		Format:   FormatName,
		Version:  FormatVersion,
		ID:       d.id.String(),
		Elements: make([]elementRecord, 0, len(d.elements)),
	}
	for _, e := range d.elements {
		b := e.core()
		er := elementRecord{
			Kind: b.kind.String(),
			ID:   b.id,
			Name: b.name,
		}
		if len(b.params) > 0 {
			er.Params = make(map[string]any, len(b.params))
			for _, p := range b.params {
				er.Params[p.name] = p.Value()
			}
		}
		for _, c := range b.links {
			if c.target == 0 {
				continue
			}
			if er.Links == nil {
				er.Links = make(map[string]EntityID, len(b.links))
			}
			er.Links[c.name] = c.target
		}
		rec.Elements = append(rec.Elements, er)
	}
	return rec
}

func fromRecord(rec documentRecord) (*Document, error) {
	if rec.Format != FormatName {
		return nil, fmt.Errorf("%w: format %q, want %q", ErrMalformedDocument, rec.Format, FormatName)
	}
	if rec.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedDocument, rec.Version)
	}

	d := New()
	if rec.ID != "" {
		id, err := uuid.Parse(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: document id: %v", ErrMalformedDocument, err)
		}
		d.id = id
	}

	// Pass 1: materialize every element with its id, name and parameters.
	for i, er := range rec.Elements {
		kind, err := ParseKind(er.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %w", ErrMalformedDocument, i, err)
		}
		if er.ID <= 0 {
			return nil, fmt.Errorf("%w: element %d: invalid id %d", ErrMalformedDocument, i, er.ID)
		}
		if _, dup := d.index[er.ID]; dup {
			return nil, fmt.Errorf("%w: element %d: duplicate id %d", ErrMalformedDocument, i, er.ID)
		}
		e, err := newEntity(kind)
		if err != nil {
			return nil, err
		}
		b := e.core()
		b.name = er.Name
		for _, name := range sortedKeys(er.Params) {
			p := b.param(name)
			if p == nil {
				return nil, fmt.Errorf("%w: element %d (%s): unknown parameter %q", ErrMalformedDocument, i, kind, name)
			}
			if err := p.Set(er.Params[name]); err != nil {
				return nil, fmt.Errorf("%w: element %d: %v", ErrMalformedDocument, i, err)
			}
		}
		b.attach(d, er.ID)
		d.elements = append(d.elements, e)
		d.index[er.ID] = e
		if er.ID > d.lastID {
			d.lastID = er.ID
		}
	}

	// Pass 2: wire links by id now that every target exists.
	for i, er := range rec.Elements {
		b := d.elements[i].core()
		for _, name := range sortedKeys(er.Links) {
			c := b.link(name)
			if c == nil {
				return nil, fmt.Errorf("%w: element %d (%s): unknown connector %q", ErrMalformedDocument, i, b.kind, name)
			}
			target := er.Links[name]
			pos := d.position(target)
			if pos < 0 {
				return nil, fmt.Errorf("%w: element %d: %s references unknown entity #%d", ErrMalformedDocument, i, name, target)
			}
			if pos >= i {
				return nil, fmt.Errorf("%w: element %d: %s references #%d which does not precede it", ErrMalformedDocument, i, name, target)
			}
			if err := d.elements[pos].core().addDependant(b); err != nil {
				return nil, fmt.Errorf("%w: element %d: %s: %v", ErrMalformedDocument, i, name, err)
			}
			c.target = target
		}
	}

	return d, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
