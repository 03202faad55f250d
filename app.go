package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/chazu/forma/pkg/config"
	"github.com/chazu/forma/pkg/engine"
	"github.com/chazu/forma/pkg/graph"
	"github.com/chazu/forma/pkg/kernel"
	"github.com/chazu/forma/pkg/kernel/sdfx"
	"github.com/chazu/forma/pkg/tessellate"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// documentChanged is emitted to the frontend after every committed edit.
const documentChanged = "document:changed"

// colorPalette is a default palette used to assign distinct colors to parts.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App is the Wails backend. It exposes methods to the frontend via bindings.
// It owns one open document; every binding takes the lock.
type App struct {
	ctx    context.Context
	cfg    *config.Config
	log    *slog.Logger
	engine *engine.Engine
	kernel kernel.Kernel

	mu  sync.Mutex
	doc *graph.Document
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	EntityID int       `json:"entityId"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result returned to the frontend.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// ElementRef names an element by position.
type ElementRef struct {
	Index int    `json:"index"`
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
}

// ElementView is the editable state of one element.
type ElementView struct {
	ElementRef
	CanDelete  bool            `json:"canDelete"`
	Parameters []ParameterView `json:"parameters"`
	Links      map[string]int  `json:"links"`
	Dependants []string        `json:"dependants"`
}

// ParameterView is one parameter rendered as script text.
type ParameterView struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Formula bool   `json:"formula"`
}

// DocumentView is the whole document as shown in the element list.
type DocumentView struct {
	ID       string        `json:"id"`
	Elements []ElementView `json:"elements"`
	Warnings []string      `json:"warnings"`
}

// ElementEdit describes a change to the element at Index. Empty Kind and
// Name keep the current values. Parameter values that parse as numbers are
// stored as numbers, anything else as formula text. Links map connector
// names to target ids; names are not unique, so targets are never resolved
// by name. A link set to 0 is cleared.
type ElementEdit struct {
	Index      int               `json:"index"`
	Kind       string            `json:"kind"`
	Name       string            `json:"name"`
	Parameters map[string]string `json:"parameters"`
	Links      map[string]int    `json:"links"`
}

// NewApp creates a new App with the default configuration.
func NewApp() *App {
	return NewAppWithConfig(config.Default(), slog.Default())
}

// NewAppWithConfig creates an App whose engine and kernel follow cfg.
func NewAppWithConfig(cfg *config.Config, log *slog.Logger) *App {
	return &App{
		cfg: cfg,
		log: log,
		engine: engine.NewEngine(
			engine.WithTimeout(cfg.Engine.Timeout.Std()),
			engine.WithLogger(log),
		),
		kernel: sdfx.New(sdfx.WithMeshCells(cfg.Kernel.MeshCells)),
		doc:    graph.New(),
	}
}

// startup is called by Wails on app startup. The context is saved
// so we can call Wails runtime methods later if needed.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.log.Info("forma started", "document", a.doc.ID())
}

// notify tells the frontend the document changed. It is a no-op outside
// the Wails runtime.
func (a *App) notify() {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, documentChanged, a.doc.ID().String())
}

// NewDocument discards the open document and starts an empty one.
func (a *App) NewDocument() DocumentView {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.doc = graph.New()
	a.notify()
	return a.view()
}

// Elements returns the open document.
func (a *App) Elements() DocumentView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view()
}

// AddShape appends a default element of the given kind.
func (a *App) AddShape(kind string) (ElementView, error) {
	k, err := graph.ParseKind(kind)
	if err != nil {
		return ElementView{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	e, err := a.doc.Add(k)
	if err != nil {
		return ElementView{}, err
	}
	a.notify()
	return elementView(a.doc, a.doc.Len()-1, e), nil
}

// Ancestors lists the elements the element at index may link to.
func (a *App) Ancestors(index int) []ElementRef {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := []ElementRef{}
	for _, e := range a.doc.PossibleAncestorsAt(index) {
		out = append(out, elementRef(a.doc.IndexOf(e), e))
	}
	return out
}

// CheckEdit reports the problems Edit would reject, without changing
// the document.
func (a *App) CheckEdit(edit ElementEdit) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	candidate, err := a.candidate(edit)
	if err != nil {
		return []string{err.Error()}
	}
	return graph.Messages(a.doc.CheckReplaceItem(edit.Index, candidate))
}

// Edit replaces the element at edit.Index with the edited copy.
func (a *App) Edit(edit ElementEdit) (ElementView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	candidate, err := a.candidate(edit)
	if err != nil {
		return ElementView{}, err
	}
	if err := a.doc.ReplaceItem(edit.Index, candidate); err != nil {
		a.reportBookkeeping("replace", err)
		return ElementView{}, err
	}
	a.log.Debug("element replaced", "index", edit.Index, "name", candidate.Name())
	a.notify()
	return elementView(a.doc, edit.Index, candidate), nil
}

// reportBookkeeping logs errors that mean the dependency graph itself is
// out of step. Ordinary rejections are only returned to the caller.
func (a *App) reportBookkeeping(op string, err error) {
	if graph.IsBookkeeping(err) {
		a.log.Error("document bookkeeping failure", "op", op, "document", a.doc.ID(), "error", err)
	}
}

// candidate builds the detached replacement described by edit.
func (a *App) candidate(edit ElementEdit) (graph.Entity, error) {
	if edit.Index < 0 || edit.Index >= a.doc.Len() {
		return nil, fmt.Errorf("no element at position %d", edit.Index)
	}
	current := a.doc.At(edit.Index)

	var c graph.Entity
	if edit.Kind != "" && edit.Kind != current.Kind().String() {
		k, err := graph.ParseKind(edit.Kind)
		if err != nil {
			return nil, err
		}
		if c, err = a.doc.NewDetached(k); err != nil {
			return nil, err
		}
		c.SetName(current.Name())
	} else {
		c = current.Clone()
	}

	if edit.Name != "" {
		c.SetName(edit.Name)
	}
	for name, value := range edit.Parameters {
		p, ok := graph.ParameterByName(c, name)
		if !ok {
			return nil, fmt.Errorf("%s has no parameter %q", c.Kind(), name)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			if err := p.Set(f); err != nil {
				return nil, err
			}
		} else {
			p.SetFormula(value)
		}
	}
	for name, target := range edit.Links {
		conn, ok := graph.ConnectorByName(c, name)
		if !ok {
			return nil, fmt.Errorf("%s has no connector %q", c.Kind(), name)
		}
		if target == 0 {
			if err := conn.Clear(); err != nil {
				return nil, err
			}
			continue
		}
		t := a.doc.Get(graph.EntityID(target))
		if t == nil {
			return nil, fmt.Errorf("no element with id %d", target)
		}
		if err := conn.Set(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Delete removes the element at index. Elements other elements
// depend on cannot be deleted.
func (a *App) Delete(index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.doc.DeleteAt(index); err != nil {
		a.reportBookkeeping("delete", err)
		return err
	}
	a.notify()
	return nil
}

// Script returns the generated construction script of the open document.
func (a *App) Script() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Generator().Generate(a.doc)
}

// codec returns the named codec, or the configured one when name is empty.
func (a *App) codec(name string) (graph.Codec, error) {
	if name == "" {
		return a.cfg.Codec()
	}
	return graph.CodecByName(name)
}

// Save writes the open document to path. An empty codec name selects the
// configured codec.
func (a *App) Save(path, codecName string) error {
	codec, err := a.codec(codecName)
	if err != nil {
		return err
	}

	a.mu.Lock()
	data, err := graph.Encode(a.doc, codec)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	a.log.Info("document saved", "path", path, "codec", codec.Name())
	return nil
}

// Load replaces the open document with the one stored at path. On failure
// the open document is kept.
func (a *App) Load(path, codecName string) (DocumentView, error) {
	codec, err := a.codec(codecName)
	if err != nil {
		return DocumentView{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DocumentView{}, fmt.Errorf("load document: %w", err)
	}
	d, err := graph.Decode(data, codec)
	if err != nil {
		return DocumentView{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.doc = d
	a.log.Info("document loaded", "path", path, "elements", d.Len())
	a.notify()
	return a.view(), nil
}

// Evaluate takes Lisp source and returns mesh data + errors.
// This is the primary binding called by the frontend editor. A successful
// evaluation becomes the open document.
func (a *App) Evaluate(source string) EvalResult {
	result := newResult()

	// Step 1: Evaluate the Lisp source into a document.
	res, err := a.engine.Run(context.Background(), source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		a.log.Error("evaluate fatal error", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	// Step 2: Convert eval errors to the frontend format.
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: w.Message})
	}

	a.mu.Lock()
	a.doc = res.Document
	a.notify()
	a.mu.Unlock()

	// Step 3: Tessellate the document into triangle meshes.
	a.mesh(res.Document, &result)
	return result
}

// Preview tessellates the open document.
func (a *App) Preview() EvalResult {
	result := newResult()

	// Meshing reads the document; hold the lock so no binding edits it meanwhile.
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, f := range graph.Validate(a.doc) {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: f.Error()})
	}
	a.mesh(a.doc, &result)
	return result
}

func newResult() EvalResult {
	return EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}
}

func (a *App) mesh(d *graph.Document, result *EvalResult) {
	meshes, err := tessellate.Tessellate(d, a.kernel,
		tessellate.WithParallelism(a.cfg.Kernel.Parallelism),
		tessellate.WithLogger(a.log),
	)
	if err != nil {
		a.log.Warn("tessellate error", "error", err)
		msg := "tessellation failed: " + err.Error()
		if errors.Is(err, tessellate.ErrFormulaParameter) {
			msg = "preview needs numeric parameters: " + err.Error()
		}
		result.Errors = append(result.Errors, EvalErrorData{Message: msg})
		return
	}

	// Convert kernel meshes to the frontend MeshData format.
	for i, m := range meshes {
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			PartName: m.PartName,
			EntityID: m.EntityID,
			Color:    colorPalette[i%len(colorPalette)],
		})
	}
}

// view must be called with a.mu held.
func (a *App) view() DocumentView {
	v := DocumentView{
		ID:       a.doc.ID().String(),
		Elements: []ElementView{},
		Warnings: []string{},
	}
	for i, e := range a.doc.Elements() {
		v.Elements = append(v.Elements, elementView(a.doc, i, e))
	}
	for _, f := range graph.Validate(a.doc) {
		v.Warnings = append(v.Warnings, f.Error())
	}
	return v
}

func elementRef(index int, e graph.Entity) ElementRef {
	return ElementRef{Index: index, ID: int(e.ID()), Name: e.Name(), Kind: e.Kind().String()}
}

func elementView(d *graph.Document, index int, e graph.Entity) ElementView {
	v := ElementView{
		ElementRef: elementRef(index, e),
		CanDelete:  e.CanDelete(),
		Parameters: []ParameterView{},
		Links:      map[string]int{},
		Dependants: []string{},
	}
	for _, p := range e.Parameters() {
		v.Parameters = append(v.Parameters, ParameterView{Name: p.Name(), Value: p.Literal(), Formula: p.IsFormula()})
	}
	for _, c := range e.Connectors() {
		id := 0
		if t := d.Get(c.Target()); t != nil {
			id = int(t.ID())
		}
		v.Links[c.Name()] = id
	}
	for _, dep := range e.Dependants() {
		v.Dependants = append(v.Dependants, dep.Name())
	}
	return v
}
