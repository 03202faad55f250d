package graph

import "fmt"

// ValidationSeverity indicates whether a finding blocks a commit or is
// merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks the commit
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Index    int                // element position, -1 if document-level
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] element %d: %s", e.Severity, e.Index, e.Message)
}

// HasErrors reports whether findings contains an error-severity entry.
func HasErrors(findings []ValidationError) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Messages returns the message text of every finding.
func Messages(findings []ValidationError) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Message)
	}
	return out
}

// CheckReplaceItem reports whether candidate may occupy position i. It never
// mutates the document; an empty result means ReplaceItem will succeed.
func (d *Document) CheckReplaceItem(i int, candidate Entity) []ValidationError {
	var errs []ValidationError
	fail := func(format string, args ...any) {
		errs = append(errs, ValidationError{Index: i, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
	}

	if candidate == nil {
		fail("candidate is nil")
		return errs
	}
	if i < 0 || i >= len(d.elements) {
		fail("position %d is out of range [0,%d)", i, len(d.elements))
		return errs
	}

	nb := candidate.core()
	switch nb.state {
	case Attached:
		fail("candidate %q is already attached", nb.name)
	case Disposed:
		fail("candidate %q has been disposed", nb.name)
	}
	if nb.doc != nil && nb.doc != d {
		fail("candidate %q belongs to another document", nb.name)
	}

	errs = append(errs, d.checkLinks(i, nb)...)
	return errs
}

// checkLinks validates the links of b as if b sat at position i: no
// duplicate targets, and every target resolves to an earlier element.
func (d *Document) checkLinks(i int, b *base) []ValidationError {
	var errs []ValidationError
	fail := func(format string, args ...any) {
		errs = append(errs, ValidationError{Index: i, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
	}

	seen := make(map[EntityID]int, len(b.links))
	for _, c := range b.links {
		if c.target == 0 {
			continue
		}
		seen[c.target]++
		if seen[c.target] == 2 {
			fail("a link duplication has been found: %s is referenced twice by the entity", d.displayName(c.target))
		}
	}

	for _, c := range b.links {
		if c.target == 0 {
			continue
		}
		pos := d.position(c.target)
		switch {
		case pos < 0:
			fail("connector %s references missing entity #%d", c.name, c.target)
		case pos >= i:
			fail("connector %s references %s which does not precede position %d", c.name, d.displayName(c.target), i)
		}
	}
	return errs
}

func (d *Document) displayName(id EntityID) string {
	if e := d.Get(id); e != nil {
		return e.Name()
	}
	return fmt.Sprintf("#%d", id)
}

// Validate audits the whole document: identity, link ordering, duplicate
// links and dependant symmetry. It is read-only and never mutates d.
func Validate(d *Document) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateIdentity(d)...)
	errs = append(errs, validateLinks(d)...)
	errs = append(errs, validateDependants(d)...)
	return errs
}

// validateIdentity checks that every element is attached to d with a unique
// positive id that the registry maps back to it.
func validateIdentity(d *Document) []ValidationError {
	var errs []ValidationError
	seen := make(map[EntityID]int)

	for i, e := range d.elements {
		b := e.core()
		if b.state != Attached {
			errs = append(errs, ValidationError{Index: i, Message: fmt.Sprintf("%q is %s", b.name, b.state), Severity: SeverityError})
			continue
		}
		if b.doc != d {
			errs = append(errs, ValidationError{Index: i, Message: fmt.Sprintf("%q belongs to another document", b.name), Severity: SeverityError})
		}
		if b.id <= 0 {
			errs = append(errs, ValidationError{Index: i, Message: fmt.Sprintf("%q has invalid id %d", b.name, b.id), Severity: SeverityError})
			continue
		}
		if prev, dup := seen[b.id]; dup {
			errs = append(errs, ValidationError{Index: i, Message: fmt.Sprintf("id #%d already used by element %d", b.id, prev), Severity: SeverityError})
			continue
		}
		seen[b.id] = i
		if d.index[b.id] != e {
			errs = append(errs, ValidationError{Index: i, Message: fmt.Sprintf("registry entry #%d does not point at %q", b.id, b.name), Severity: SeverityError})
		}
	}

	if len(d.index) != len(seen) {
		errs = append(errs, ValidationError{
			Index:    -1,
			Message:  fmt.Sprintf("registry holds %d entries for %d elements", len(d.index), len(seen)),
			Severity: SeverityError,
		})
	}
	return errs
}

// validateLinks checks ordering and duplication of every element's links,
// and warns about connectors that are not linked yet.
func validateLinks(d *Document) []ValidationError {
	var errs []ValidationError
	for i, e := range d.elements {
		b := e.core()
		errs = append(errs, d.checkLinks(i, b)...)
		for _, c := range b.links {
			if c.target == 0 {
				errs = append(errs, ValidationError{
					Index:    i,
					Message:  fmt.Sprintf("%q connector %s is not linked", b.name, c.name),
					Severity: SeverityWarning,
				})
			}
		}
	}
	return errs
}

// validateDependants checks that every link is mirrored in the target's
// dependant set and that every dependant entry is backed by a link.
func validateDependants(d *Document) []ValidationError {
	var errs []ValidationError

	for i, e := range d.elements {
		b := e.core()
		for _, c := range b.links {
			t := d.Get(c.target)
			if t == nil {
				continue
			}
			if _, ok := t.core().dependants[b.id]; !ok {
				errs = append(errs, ValidationError{
					Index:    i,
					Message:  fmt.Sprintf("%q links %s but is not registered as its dependant", b.name, t.Name()),
					Severity: SeverityError,
				})
			}
		}
	}

	for i, e := range d.elements {
		b := e.core()
		for _, id := range b.DependantIDs() {
			dep := d.Get(id)
			if dep == nil {
				errs = append(errs, ValidationError{
					Index:    i,
					Message:  fmt.Sprintf("%q lists missing dependant #%d", b.name, id),
					Severity: SeverityError,
				})
				continue
			}
			linked := false
			for _, c := range dep.core().links {
				if c.target == b.id {
					linked = true
					break
				}
			}
			if !linked {
				errs = append(errs, ValidationError{
					Index:    i,
					Message:  fmt.Sprintf("%q lists dependant %q which holds no link to it", b.name, dep.Name()),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}
