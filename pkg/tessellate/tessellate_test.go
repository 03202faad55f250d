package tessellate_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/chazu/forma/pkg/graph"
	"github.com/chazu/forma/pkg/kernel"
	"github.com/chazu/forma/pkg/kernel/sdfx"
	"github.com/chazu/forma/pkg/tessellate"
)

// newKernel returns a coarse sdfx kernel for testing.
func newKernel() kernel.Kernel {
	return sdfx.New(sdfx.WithMeshCells(40))
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// cutBoxes builds box [0..100]^3 minus box [10..90]x[10..90]x[10..150].
func cutBoxes(t *testing.T) *graph.Document {
	t.Helper()
	d := graph.New()
	outer := d.AddBox()
	must(t, outer.Point1.Set(0, 0, 0))
	must(t, outer.Point2.Set(100, 100, 100))
	inner := d.AddBox()
	must(t, inner.Point1.Set(10, 10, 10))
	must(t, inner.Point2.Set("90", "90", "150"))
	cut := d.AddCut()
	must(t, cut.LeftArg.Set(outer))
	must(t, cut.RightArg.Set(inner))
	return d
}

func TestSingleBox(t *testing.T) {
	d := graph.New()
	box := d.AddBox()
	must(t, box.Point1.Set(0, 0, 0))
	must(t, box.Point2.Set(100, 110, 120))

	meshes, err := tessellate.Tessellate(d, newKernel())
	must(t, err)
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(meshes))
	}
	m := meshes[0]
	if m.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	if m.PartName != "shape0" || m.EntityID != int(box.ID()) {
		t.Errorf("mesh part = %q #%d, want shape0 #%d", m.PartName, m.EntityID, box.ID())
	}
}

func TestOnlyResultElementsAreMeshed(t *testing.T) {
	meshes, err := tessellate.Tessellate(cutBoxes(t), newKernel())
	must(t, err)
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh for the cut, got %d", len(meshes))
	}
	if meshes[0].PartName != "shape2" {
		t.Errorf("mesh part = %q, want shape2", meshes[0].PartName)
	}
}

func TestIndependentShapesMeshInOrder(t *testing.T) {
	d := graph.New()
	for i := 0; i < 4; i++ {
		s := d.AddSphere()
		must(t, s.Center.Set(float64(i*30), 0, 0))
		must(t, s.Radius.Set(10))
	}

	meshes, err := tessellate.Tessellate(d, newKernel(), tessellate.WithParallelism(2))
	must(t, err)
	if len(meshes) != 4 {
		t.Fatalf("expected 4 meshes, got %d", len(meshes))
	}
	for i, m := range meshes {
		if m.PartName != d.At(i).Name() {
			t.Errorf("mesh %d part = %q, want %q", i, m.PartName, d.At(i).Name())
		}
		if m.IsEmpty() {
			t.Errorf("mesh %d is empty", i)
		}
	}
}

func TestTransformsMoveGeometry(t *testing.T) {
	d := cutBoxes(t)
	tr := d.AddTranslate()
	must(t, tr.SetGeometry(d.At(2)))
	must(t, tr.Vector.Set(1000, 0, 0))
	rot := d.AddRotate()
	must(t, rot.SetGeometry(d.At(2)))
	must(t, rot.Center.Set(0, 0, 0))
	must(t, rot.Axis.Set(0, 0, 1))
	must(t, rot.Angle.Set(math.Pi))

	meshes, err := tessellate.Tessellate(d, newKernel())
	must(t, err)
	if len(meshes) != 2 {
		t.Fatalf("expected 2 meshes (translate, rotate), got %d", len(meshes))
	}

	minX := func(m *kernel.Mesh) float64 {
		lo, _, ok := m.Bounds()
		if !ok {
			t.Fatalf("mesh %q has no vertices", m.PartName)
		}
		return lo[0]
	}
	if x := minX(meshes[0]); x < 990 {
		t.Errorf("translated mesh min x = %f, want >= ~1000", x)
	}
	if x := minX(meshes[1]); x > -90 {
		t.Errorf("rotated mesh min x = %f, want <= ~-100", x)
	}
}

func TestEmptyDocument(t *testing.T) {
	meshes, err := tessellate.Tessellate(graph.New(), newKernel())
	must(t, err)
	if len(meshes) != 0 {
		t.Errorf("expected no meshes, got %d", len(meshes))
	}
	meshes, err = tessellate.Tessellate(nil, newKernel())
	if err != nil || meshes != nil {
		t.Errorf("nil document: %v, %v", meshes, err)
	}
}

func TestFormulaParameterRejected(t *testing.T) {
	d := graph.New()
	s := d.AddSphere()
	must(t, s.Center.Set(0, 0, 0))
	must(t, s.Radius.Set("r * 2"))

	_, err := tessellate.Tessellate(d, newKernel())
	if !errors.Is(err, tessellate.ErrFormulaParameter) {
		t.Fatalf("error = %v, want ErrFormulaParameter", err)
	}
}

func TestUnlinkedOperationRejected(t *testing.T) {
	d := graph.New()
	box := d.AddBox()
	must(t, box.Point2.Set(1, 1, 1))
	cut := d.AddCut()
	must(t, cut.LeftArg.Set(box))

	_, err := tessellate.Tessellate(d, newKernel())
	if !errors.Is(err, graph.ErrUnlinked) {
		t.Fatalf("error = %v, want ErrUnlinked", err)
	}
}

func TestDegenerateShapeRejected(t *testing.T) {
	d := graph.New()
	d.AddBox() // all corners at the origin

	_, err := tessellate.Tessellate(d, newKernel())
	if !errors.Is(err, kernel.ErrDegenerate) {
		t.Fatalf("error = %v, want ErrDegenerate", err)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tessellate.TessellateContext(ctx, cutBoxes(t), newKernel())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
