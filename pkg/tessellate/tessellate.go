// Package tessellate evaluates a document into triangle meshes using a
// geometry kernel. One solid is built per element in document order; one
// mesh is produced per result element (an element nothing else refers to).
package tessellate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/chazu/forma/pkg/graph"
	"github.com/chazu/forma/pkg/kernel"
	"golang.org/x/sync/errgroup"
)

// ErrFormulaParameter is returned when a parameter holds formula text that
// is not a plain number. Formulas are only meaningful to the script
// evaluator, so previews require literal values.
var ErrFormulaParameter = errors.New("tessellate: parameter is not numeric")

type options struct {
	parallelism int
	log         *slog.Logger
}

// Option configures a tessellation run.
type Option func(*options)

// WithParallelism bounds the number of meshes computed concurrently.
// Values below one fall back to GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(o *options) { o.parallelism = n }
}

// WithLogger sets the logger used for per-mesh diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Tessellate is TessellateContext with a background context.
func Tessellate(d *graph.Document, k kernel.Kernel, opts ...Option) ([]*kernel.Mesh, error) {
	return TessellateContext(context.Background(), d, k, opts...)
}

// TessellateContext builds the solids of d and meshes every result element
// in parallel. Meshes are returned in document order. The document is only
// read while solids are built, before any goroutine starts.
func TessellateContext(ctx context.Context, d *graph.Document, k kernel.Kernel, opts ...Option) ([]*kernel.Mesh, error) {
	if d == nil {
		return nil, nil
	}
	o := options{parallelism: runtime.GOMAXPROCS(0), log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parallelism < 1 {
		o.parallelism = runtime.GOMAXPROCS(0)
	}

	type job struct {
		solid kernel.Solid
		name  string
		id    graph.EntityID
	}

	solids := make(map[graph.EntityID]kernel.Solid, d.Len())
	var jobs []job
	for i, e := range d.Elements() {
		s, err := build(k, e, solids)
		if err != nil {
			return nil, fmt.Errorf("tessellate: element %d (%s): %w", i, e.Name(), err)
		}
		solids[e.ID()] = s
		if e.CanDelete() {
			jobs = append(jobs, job{solid: s, name: e.Name(), id: e.ID()})
		}
	}

	meshes := make([]*kernel.Mesh, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			m, err := k.ToMesh(j.solid)
			if err != nil {
				return fmt.Errorf("tessellate: ToMesh failed for %s: %w", j.name, err)
			}
			m.PartName = j.name
			m.EntityID = int(j.id)
			meshes[i] = m
			o.log.Debug("meshed element", "name", j.name, "triangles", m.TriangleCount(), "elapsed", time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return meshes, nil
}

// build creates the solid for e from already built ancestors.
func build(k kernel.Kernel, e graph.Entity, solids map[graph.EntityID]kernel.Solid) (kernel.Solid, error) {
	var r resolver
	switch v := e.(type) {
	case *graph.Box:
		p1, p2 := r.vec(&v.Point1), r.vec(&v.Point2)
		if r.err != nil {
			return nil, r.err
		}
		return k.Box(p1, p2)

	case *graph.Cylinder:
		p1, p2, radius := r.vec(&v.Point1), r.vec(&v.Point2), r.num(&v.Radius)
		if r.err != nil {
			return nil, r.err
		}
		return k.Cylinder(p1, p2, radius)

	case *graph.Cone:
		p1, r1 := r.vec(&v.Point1), r.num(&v.Radius1)
		p2, r2 := r.vec(&v.Point2), r.num(&v.Radius2)
		if r.err != nil {
			return nil, r.err
		}
		return k.Cone(p1, r1, p2, r2)

	case *graph.Sphere:
		c, radius := r.vec(&v.Center), r.num(&v.Radius)
		if r.err != nil {
			return nil, r.err
		}
		return k.Sphere(c, radius)

	case *graph.Torus:
		c, axis := r.vec(&v.Center), r.vec(&v.Axis)
		big, small := r.num(&v.MainRadius), r.num(&v.SmallRadius)
		if r.err != nil {
			return nil, r.err
		}
		return k.Torus(c, axis, big, small)

	case *graph.Cut:
		left, right := r.solid(&v.LeftArg, solids), r.solid(&v.RightArg, solids)
		if r.err != nil {
			return nil, r.err
		}
		return k.Difference(left, right), nil

	case *graph.Rotate:
		s := r.solid(&v.Geometry, solids)
		c, axis, angle := r.vec(&v.Center), r.vec(&v.Axis), r.num(&v.Angle)
		if r.err != nil {
			return nil, r.err
		}
		return k.Rotate(s, c, axis, angle)

	case *graph.Translate:
		s := r.solid(&v.Geometry, solids)
		vec := r.vec(&v.Vector)
		if r.err != nil {
			return nil, r.err
		}
		return k.Translate(s, vec), nil

	default:
		return nil, fmt.Errorf("unsupported entity kind %s", e.Kind())
	}
}

// resolver reads entity fields and keeps the first error.
type resolver struct {
	err error
}

func (r *resolver) num(p *graph.Parameter) float64 {
	if r.err != nil {
		return 0
	}
	if n, ok := p.Number(); ok {
		return n
	}
	text, _ := p.Formula()
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		r.err = fmt.Errorf("%w: %s = %q", ErrFormulaParameter, p.Name(), text)
		return 0
	}
	return f
}

func (r *resolver) vec(v *graph.Vec3) kernel.Vec3 {
	return kernel.Vec3{r.num(&v.X), r.num(&v.Y), r.num(&v.Z)}
}

func (r *resolver) solid(c *graph.Connector, solids map[graph.EntityID]kernel.Solid) kernel.Solid {
	if r.err != nil {
		return nil
	}
	target, err := c.Get()
	if err != nil {
		r.err = err
		return nil
	}
	s, ok := solids[target.ID()]
	if !ok {
		r.err = fmt.Errorf("%s: %q has no solid", c.Name(), target.Name())
	}
	return s
}
