package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/forma/pkg/config"
)

// newTestApp returns an App with a coarse mesh so previews stay fast.
func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Kernel.MeshCells = 40
	return NewAppWithConfig(cfg, slog.Default())
}

func readExample(t *testing.T, name string) string {
	t.Helper()
	source, err := os.ReadFile(filepath.Join("examples", name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(source)
}

func requireNoErrors(t *testing.T, result EvalResult) {
	t.Helper()
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}
}

// TestE2ECutBoxesExample exercises the full pipeline: Lisp source → engine →
// document → tessellate → meshes. This is the same path that the Wails
// Evaluate binding takes, but without the Wails runtime.
func TestE2ECutBoxesExample(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate(readExample(t, "cut_boxes.forma"))
	requireNoErrors(t, result)

	// Only the cut is a result; the two boxes are consumed by it.
	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	m := result.Meshes[0]
	if m.PartName != "shell" {
		t.Errorf("expected part name 'shell', got %q", m.PartName)
	}
	if m.EntityID != 3 {
		t.Errorf("expected entity id 3, got %d", m.EntityID)
	}
	if len(m.Vertices) == 0 || len(m.Normals) == 0 || len(m.Indices) == 0 {
		t.Errorf("part %q: empty geometry", m.PartName)
	}
	if m.Color == "" {
		t.Errorf("part %q: no color assigned", m.PartName)
	}
}

func TestE2EBracketExample(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate(readExample(t, "bracket.forma"))
	requireNoErrors(t, result)

	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	if result.Meshes[0].PartName != "bracket" {
		t.Errorf("expected part name 'bracket', got %q", result.Meshes[0].PartName)
	}
	if got := len(app.Elements().Elements); got != 5 {
		t.Errorf("expected 5 elements, got %d", got)
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate("")

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(result.Meshes))
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate("(box :from [0 0 0]")

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

// TestEvaluateReplacesDocument checks that a successful evaluation becomes
// the open document and a failed one leaves it alone.
func TestEvaluateReplacesDocument(t *testing.T) {
	app := newTestApp(t)
	requireNoErrors(t, app.Evaluate(readExample(t, "cut_boxes.forma")))

	view := app.Elements()
	var names []string
	for _, e := range view.Elements {
		names = append(names, e.Name)
	}
	if got := strings.Join(names, ","); got != "outer,inner,shell" {
		t.Errorf("elements = %s, want outer,inner,shell", got)
	}

	script, err := app.Script()
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	if !strings.Contains(script, "var shell = csg.cut(outer,inner);") {
		t.Errorf("script missing cut statement:\n%s", script)
	}

	result := app.Evaluate("(cut)")
	if len(result.Errors) == 0 {
		t.Fatal("expected an error for cut without arguments")
	}
	if got := len(app.Elements().Elements); got != 3 {
		t.Errorf("failed evaluation changed the document: %d elements", got)
	}
}

// TestE2EPreviewOpenDocument meshes a document built through the editing
// bindings rather than from source.
func TestE2EPreviewOpenDocument(t *testing.T) {
	app := newTestApp(t)
	if _, err := app.AddShape("sphere"); err != nil {
		t.Fatalf("AddShape: %v", err)
	}
	if _, err := app.Edit(ElementEdit{
		Index:      0,
		Name:       "ball",
		Parameters: map[string]string{"radius": "5"},
	}); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	result := app.Preview()
	requireNoErrors(t, result)
	if len(result.Meshes) != 1 || result.Meshes[0].PartName != "ball" {
		t.Fatalf("unexpected meshes: %+v", result.Meshes)
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, codec := range []string{"json", "yaml", "msgpack"} {
		t.Run(codec, func(t *testing.T) {
			app := newTestApp(t)
			requireNoErrors(t, app.Evaluate(readExample(t, "cut_boxes.forma")))
			before := app.Elements()
			wantScript, _ := app.Script()

			path := filepath.Join(t.TempDir(), "doc."+codec)
			if err := app.Save(path, codec); err != nil {
				t.Fatalf("Save: %v", err)
			}

			app.NewDocument()
			if got := len(app.Elements().Elements); got != 0 {
				t.Fatalf("NewDocument left %d elements", got)
			}

			after, err := app.Load(path, codec)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if after.ID != before.ID {
				t.Errorf("document id %s, want %s", after.ID, before.ID)
			}
			gotScript, _ := app.Script()
			if gotScript != wantScript {
				t.Errorf("script after load:\n%s\nwant:\n%s", gotScript, wantScript)
			}
		})
	}
}

// TestSaveDefaultCodec checks that an empty codec name follows the config.
func TestSaveDefaultCodec(t *testing.T) {
	cfg := config.Default()
	cfg.Document.Codec = "yaml"
	app := NewAppWithConfig(cfg, slog.Default())
	if _, err := app.AddShape("sphere"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "doc")
	if err := app.Save(path, ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := app.Load(path, "yaml"); err != nil {
		t.Fatalf("document was not written as yaml: %v", err)
	}
	if err := app.Save(path, "xml"); err == nil {
		t.Error("expected an error for an unknown codec")
	}
}

func TestLoadKeepsOpenDocumentOnError(t *testing.T) {
	app := newTestApp(t)
	if _, err := app.AddShape("box"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte(`{"format":`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := app.Load(path, "json"); err == nil {
		t.Fatal("expected an error for a malformed file")
	}
	if _, err := app.Load(filepath.Join(t.TempDir(), "absent.json"), ""); err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if got := len(app.Elements().Elements); got != 1 {
		t.Errorf("open document changed: %d elements", got)
	}
}
