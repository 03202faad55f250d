package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/forma/pkg/graph"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms Forma Lisp source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: base-plate -> base_plate
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpEntityRef wraps a document entity so it can be passed between builtins.
type sexpEntityRef struct {
	entity graph.Entity
}

func (r *sexpEntityRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %q)", r.entity.Kind(), r.entity.Name())
}
func (r *sexpEntityRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toParamValue extracts a parameter value: a number, or a string holding
// formula text that is passed through to the script untouched.
func toParamValue(s zygo.Sexp) (any, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		if strings.HasPrefix(str.S, kwPrefix) {
			return nil, fmt.Errorf("expected number or formula, got keyword :%s", str.S[len(kwPrefix):])
		}
		return str.S, nil
	}
	f, err := toFloat64(s)
	if err != nil {
		return nil, fmt.Errorf("expected number or formula, got %T (%s)", s, s.SexpString(nil))
	}
	return f, nil
}

// toEntity extracts the entity from a sexpEntityRef.
func toEntity(s zygo.Sexp) (graph.Entity, error) {
	if ref, ok := s.(*sexpEntityRef); ok {
		return ref.entity, nil
	}
	return nil, fmt.Errorf("expected shape reference, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Field assignment
// ---------------------------------------------------------------------------

// setParam assigns keyword key of pa to p. Missing keywords are an error.
func setParam(p *graph.Parameter, pa kwArgs, fn, key string) error {
	v, ok := pa.kw[key]
	if !ok {
		return fmt.Errorf("%s: missing :%s", fn, key)
	}
	val, err := toParamValue(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	if err := p.Set(val); err != nil {
		return fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	return nil
}

// setVec assigns keyword key of pa, a three element array or list, to v.
func setVec(v *graph.Vec3, pa kwArgs, fn, key string) error {
	s, ok := pa.kw[key]
	if !ok {
		return fmt.Errorf("%s: missing :%s", fn, key)
	}
	items, err := sexpListToSlice(s)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	if len(items) != 3 {
		return fmt.Errorf("%s: %s: expected 3 components, got %d", fn, key, len(items))
	}
	var comps [3]any
	for i, item := range items {
		if comps[i], err = toParamValue(item); err != nil {
			return fmt.Errorf("%s: %s[%d]: %w", fn, key, i, err)
		}
	}
	if err := v.Set(comps[0], comps[1], comps[2]); err != nil {
		return fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	return nil
}

// applyName renames e when the optional :name keyword is present.
func applyName(e graph.Entity, pa kwArgs, fn string) error {
	v, ok := pa.kw["name"]
	if !ok {
		return nil
	}
	name, err := toString(v)
	if err != nil {
		return fmt.Errorf("%s: name: %w", fn, err)
	}
	e.SetName(name)
	return nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// primitive returns a builtin that appends an entity of kind to d and fills
// it from keyword arguments with fill.
func primitive(
	d *graph.Document,
	kind graph.Kind,
	fill func(e graph.Entity, pa kwArgs) error,
) func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("%s: unexpected positional argument %s", kind, pa.positional[0].SexpString(nil))
		}
		e, err := d.Add(kind)
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := fill(e, pa); err != nil {
			return zygo.SexpNull, err
		}
		if err := applyName(e, pa, kind.String()); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpEntityRef{entity: e}, nil
	}
}

// registerBuiltins installs all Forma DSL builtins into a zygomys environment.
// The builtins append entities to d during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, d *graph.Document) {

	// (box :from [0 0 0] :to [100 100 100])
	env.AddFunction("box", primitive(d, graph.KindBox, func(e graph.Entity, pa kwArgs) error {
		b := e.(*graph.Box)
		if err := setVec(&b.Point1, pa, "box", "from"); err != nil {
			return err
		}
		return setVec(&b.Point2, pa, "box", "to")
	}))

	// (cylinder :from [0 0 0] :to [0 0 10] :radius 5)
	env.AddFunction("cylinder", primitive(d, graph.KindCylinder, func(e graph.Entity, pa kwArgs) error {
		c := e.(*graph.Cylinder)
		if err := setVec(&c.Point1, pa, "cylinder", "from"); err != nil {
			return err
		}
		if err := setVec(&c.Point2, pa, "cylinder", "to"); err != nil {
			return err
		}
		return setParam(&c.Radius, pa, "cylinder", "radius")
	}))

	// (cone :from [0 0 0] :radius1 10 :to [0 0 20] :radius2 2)
	env.AddFunction("cone", primitive(d, graph.KindCone, func(e graph.Entity, pa kwArgs) error {
		c := e.(*graph.Cone)
		if err := setVec(&c.Point1, pa, "cone", "from"); err != nil {
			return err
		}
		if err := setParam(&c.Radius1, pa, "cone", "radius1"); err != nil {
			return err
		}
		if err := setVec(&c.Point2, pa, "cone", "to"); err != nil {
			return err
		}
		return setParam(&c.Radius2, pa, "cone", "radius2")
	}))

	// (sphere :center [0 0 0] :radius 10)
	env.AddFunction("sphere", primitive(d, graph.KindSphere, func(e graph.Entity, pa kwArgs) error {
		s := e.(*graph.Sphere)
		if err := setVec(&s.Center, pa, "sphere", "center"); err != nil {
			return err
		}
		return setParam(&s.Radius, pa, "sphere", "radius")
	}))

	// (torus :center [0 0 0] :axis [0 0 1] :main-radius 20 :small-radius 3)
	env.AddFunction("torus", primitive(d, graph.KindTorus, func(e graph.Entity, pa kwArgs) error {
		t := e.(*graph.Torus)
		if err := setVec(&t.Center, pa, "torus", "center"); err != nil {
			return err
		}
		if err := setVec(&t.Axis, pa, "torus", "axis"); err != nil {
			return err
		}
		if err := setParam(&t.MainRadius, pa, "torus", "main-radius"); err != nil {
			return err
		}
		return setParam(&t.SmallRadius, pa, "torus", "small-radius")
	}))

	// -----------------------------------------------------------------------
	// (cut a b)
	// -----------------------------------------------------------------------
	env.AddFunction("cut", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("cut requires two shape references, got %d", len(pa.positional))
		}
		left, err := toEntity(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cut: left: %w", err)
		}
		right, err := toEntity(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cut: right: %w", err)
		}

		c := d.AddCut()
		if err := c.LeftArg.Set(left); err != nil {
			return zygo.SexpNull, fmt.Errorf("cut: %w", err)
		}
		if err := c.RightArg.Set(right); err != nil {
			return zygo.SexpNull, fmt.Errorf("cut: %w", err)
		}
		if err := applyName(c, pa, "cut"); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpEntityRef{entity: c}, nil
	})

	// -----------------------------------------------------------------------
	// (rotate c :center [0 0 0] :axis [0 0 1] :angle "Math.PI/2.0")
	// -----------------------------------------------------------------------
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("rotate requires one shape reference, got %d", len(pa.positional))
		}
		geom, err := toEntity(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}

		r := d.AddRotate()
		if err := r.SetGeometry(geom); err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		if err := setVec(&r.Center, pa, "rotate", "center"); err != nil {
			return zygo.SexpNull, err
		}
		if err := setVec(&r.Axis, pa, "rotate", "axis"); err != nil {
			return zygo.SexpNull, err
		}
		if err := setParam(&r.Angle, pa, "rotate", "angle"); err != nil {
			return zygo.SexpNull, err
		}
		if err := applyName(r, pa, "rotate"); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpEntityRef{entity: r}, nil
	})

	// -----------------------------------------------------------------------
	// (translate c :vector [10 20 30])
	// -----------------------------------------------------------------------
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("translate requires one shape reference, got %d", len(pa.positional))
		}
		geom, err := toEntity(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}

		t := d.AddTranslate()
		if err := t.SetGeometry(geom); err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		if err := setVec(&t.Vector, pa, "translate", "vector"); err != nil {
			return zygo.SexpNull, err
		}
		if err := applyName(t, pa, "translate"); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpEntityRef{entity: t}, nil
	})

	// -----------------------------------------------------------------------
	// (rename ref "name")
	// -----------------------------------------------------------------------
	env.AddFunction("rename", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("rename requires a shape reference and a name")
		}
		e, err := toEntity(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rename: %w", err)
		}
		newName, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rename: name: %w", err)
		}
		e.SetName(newName)
		return args[0], nil
	})

	// -----------------------------------------------------------------------
	// (shape "name")
	// -----------------------------------------------------------------------
	env.AddFunction("shape", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("shape requires a name argument")
		}
		shapeName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("shape: name: %w", err)
		}
		e := d.Lookup(shapeName)
		if e == nil {
			return zygo.SexpNull, fmt.Errorf("shape: no shape named %q", shapeName)
		}
		return &sexpEntityRef{entity: e}, nil
	})
}
