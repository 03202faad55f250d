package graph

import (
	"fmt"
	"strings"
)

// DefaultNamespace is the object the generated script calls primitives and
// operations on.
const DefaultNamespace = "csg"

// Generator turns entities into statements of the construction script.
// The zero value emits calls without a namespace prefix.
type Generator struct {
	Namespace string
}

// DefaultGenerator emits "csg."-prefixed calls.
var DefaultGenerator = Generator{Namespace: DefaultNamespace}

func (g Generator) prefix() string {
	if g.Namespace == "" {
		return ""
	}
	return g.Namespace + "."
}

// Expression renders the right-hand side for e, e.g. "csg.cut(shape0,shape1)".
// Links are resolved now, so renamed targets show their current name.
func (g Generator) Expression(e Entity) (string, error) {
	return e.expression(g.prefix())
}

// Statement renders "var <name> = <expression>;".
func (g Generator) Statement(e Entity) (string, error) {
	expr, err := g.Expression(e)
	if err != nil {
		return "", err
	}
	return "var " + e.Name() + " = " + expr + ";", nil
}

// Generate renders one statement per element in document order, joined by
// newlines. An empty document yields an empty script.
func (g Generator) Generate(d *Document) (string, error) {
	lines := make([]string, 0, len(d.elements))
	for i, e := range d.elements {
		stmt, err := g.Statement(e)
		if err != nil {
			return "", fmt.Errorf("graph: script: element %d: %w", i, err)
		}
		lines = append(lines, stmt)
	}
	return strings.Join(lines, "\n"), nil
}

// ToScript renders the expression of e terminated by a semicolon, using the
// default generator.
func ToScript(e Entity) (string, error) {
	expr, err := DefaultGenerator.Expression(e)
	if err != nil {
		return "", err
	}
	return expr + ";", nil
}
