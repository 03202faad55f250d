package graph

import (
	"errors"
	"strings"
	"testing"
)

func TestSerializeRoundTrip(t *testing.T) {
	builds := map[string]func(*testing.T) *Document{
		"box":       buildBox,
		"cone":      buildCone,
		"torus":     buildTorus,
		"cut":       buildCutBoxes,
		"rotate":    buildWithRotate,
		"translate": buildWithTranslate,
	}
	for _, codec := range []Codec{JSON, YAML, Msgpack} {
		for name, build := range builds {
			t.Run(codec.Name()+"/"+name, func(t *testing.T) {
				d := build(t)
				data, err := Encode(d, codec)
				must(t, err)
				got, err := Decode(data, codec)
				must(t, err)
				assertEquivalent(t, d, got)
			})
		}
	}
}

func assertEquivalent(t *testing.T, want, got *Document) {
	t.Helper()
	if got.ID() != want.ID() {
		t.Errorf("document id = %s, want %s", got.ID(), want.ID())
	}
	if got.Len() != want.Len() {
		t.Fatalf("Len() = %d, want %d", got.Len(), want.Len())
	}
	for i := range want.Elements() {
		w, g := want.At(i), got.At(i)
		if g.Kind() != w.Kind() {
			t.Errorf("element %d kind = %v, want %v", i, g.Kind(), w.Kind())
		}
		if g.ID() != w.ID() || g.Name() != w.Name() {
			t.Errorf("element %d = #%d %q, want #%d %q", i, g.ID(), g.Name(), w.ID(), w.Name())
		}
		if g.String() != w.String() {
			t.Errorf("element %d String() = %q, want %q", i, g.String(), w.String())
		}
		wp, gp := w.Parameters(), g.Parameters()
		for j := range wp {
			if gp[j].Literal() != wp[j].Literal() || gp[j].IsFormula() != wp[j].IsFormula() {
				t.Errorf("element %d parameter %s = %q, want %q", i, wp[j].Name(), gp[j].Literal(), wp[j].Literal())
			}
		}
		wc, gc := w.Connectors(), g.Connectors()
		for j := range wc {
			if !wc[j].Linked() {
				continue
			}
			wt, err := wc[j].Get()
			must(t, err)
			gt, err := gc[j].Get()
			must(t, err)
			if got.IndexOf(gt) != want.IndexOf(wt) {
				t.Errorf("element %d connector %s resolves to position %d, want %d",
					i, wc[j].Name(), got.IndexOf(gt), want.IndexOf(wt))
			}
		}
		if len(g.Dependants()) != len(w.Dependants()) {
			t.Errorf("element %d dependants = %d, want %d", i, len(g.Dependants()), len(w.Dependants()))
		}
	}

	ws, err := want.ConvertToScript()
	must(t, err)
	gs, err := got.ConvertToScript()
	must(t, err)
	if gs != ws {
		t.Errorf("script =\n%s\nwant\n%s", gs, ws)
	}
	if errs := Validate(got); HasErrors(errs) {
		t.Errorf("decoded document fails validation: %v", errs)
	}
}

func TestSerializeIsStable(t *testing.T) {
	d := buildWithRotate(t)
	first, err := Serialize(d)
	must(t, err)
	back, err := Deserialize(first)
	must(t, err)
	second, err := Serialize(back)
	must(t, err)
	if first != second {
		t.Errorf("re-serialized text differs:\n%s\n---\n%s", first, second)
	}
	if !strings.Contains(first, `"kind": "rotate"`) || !strings.Contains(first, `"angle": "Math.PI/2.0"`) {
		t.Errorf("serialized text missing expected fields:\n%s", first)
	}
}

func TestDeserializeContinuesIDsAndNames(t *testing.T) {
	d := buildCutBoxes(t)
	must(t, d.DeleteAt(2))
	d.AddBox()

	text, err := Serialize(d)
	must(t, err)
	back, err := Deserialize(text)
	must(t, err)

	e := back.AddSphere()
	if e.ID() != 5 {
		t.Errorf("next id after decode = %d, want 5", e.ID())
	}
	if e.Name() != "shape3" {
		t.Errorf("next name after decode = %q, want shape3", e.Name())
	}
}

func TestDeserializeEmptyDocument(t *testing.T) {
	d := New()
	text, err := Serialize(d)
	must(t, err)
	back, err := Deserialize(text)
	must(t, err)
	if back.Len() != 0 || back.ID() != d.ID() {
		t.Errorf("decoded empty document: len %d id %s", back.Len(), back.ID())
	}
}

func TestDeserializeMalformed(t *testing.T) {
	const header = `{"format":"forma.document","version":1,"id":"6b1f2c1e-9c55-4d2e-8a4b-3f0d2a7c9e11",`
	tests := []struct {
		name   string
		input  string
		substr string
	}{
		{"syntax", `{"format":`, "json"},
		{"wrong format", `{"format":"other","version":1,"elements":[]}`, `format "other"`},
		{"wrong version", `{"format":"forma.document","version":7,"elements":[]}`, "unsupported version 7"},
		{"bad id", `{"format":"forma.document","version":1,"id":"nope","elements":[]}`, "document id"},
		{"unknown field", header + `"elements":[],"extra":true}`, "extra"},
		{"unknown kind", header + `"elements":[{"kind":"sweep","id":1,"name":"a"}]}`, "unknown entity kind"},
		{"zero id", header + `"elements":[{"kind":"box","id":0,"name":"a"}]}`, "invalid id 0"},
		{"duplicate id", header + `"elements":[{"kind":"box","id":1,"name":"a"},{"kind":"box","id":1,"name":"b"}]}`, "duplicate id 1"},
		{"unknown parameter", header + `"elements":[{"kind":"box","id":1,"name":"a","params":{"height":3}}]}`, `unknown parameter "height"`},
		{"bad parameter", header + `"elements":[{"kind":"box","id":1,"name":"a","params":{"point1.x":true}}]}`, "unsupported parameter value"},
		{"unknown connector", header + `"elements":[{"kind":"box","id":1,"name":"a"},{"kind":"cut","id":2,"name":"b","links":{"tool":1}}]}`, `unknown connector "tool"`},
		{"missing target", header + `"elements":[{"kind":"box","id":1,"name":"a"},{"kind":"translate","id":2,"name":"b","links":{"geometry":9}}]}`, "unknown entity #9"},
		{"forward target", header + `"elements":[{"kind":"translate","id":1,"name":"a","links":{"geometry":2}},{"kind":"box","id":2,"name":"b"}]}`, "does not precede"},
		{"duplicate target", header + `"elements":[{"kind":"box","id":1,"name":"a"},{"kind":"cut","id":2,"name":"b","links":{"leftArg":1,"rightArg":1}}]}`, "already registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Deserialize(tt.input)
			if err == nil {
				t.Fatalf("expected error, got document with %d elements", d.Len())
			}
			if d != nil {
				t.Error("a failed decode must not return a document")
			}
			if !errors.Is(err, ErrMalformedDocument) {
				t.Errorf("error = %v, want ErrMalformedDocument", err)
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error %q does not mention %q", err, tt.substr)
			}
		})
	}
}

func TestCodecByName(t *testing.T) {
	for _, name := range CodecNames() {
		c, err := CodecByName(name)
		must(t, err)
		if c.Name() != name {
			t.Errorf("CodecByName(%q).Name() = %q", name, c.Name())
		}
	}
	if got := strings.Join(CodecNames(), ","); got != "json,msgpack,yaml" {
		t.Errorf("CodecNames() = %s", got)
	}
	if _, err := CodecByName("xml"); err == nil {
		t.Error("expected error for unknown codec")
	}
}

func TestParameterSet(t *testing.T) {
	p := Parameter{name: "radius"}

	must(t, p.Set(int32(7)))
	if p.Literal() != "7" || p.IsFormula() {
		t.Errorf("int32: literal %q formula %v", p.Literal(), p.IsFormula())
	}
	must(t, p.Set(uint8(3)))
	if n, ok := p.Number(); !ok || n != 3 {
		t.Errorf("uint8: Number() = %v, %v", n, ok)
	}
	must(t, p.Set(0.5))
	if p.Literal() != "0.5" {
		t.Errorf("0.5: literal %q", p.Literal())
	}
	must(t, p.Set(-1e21))
	if p.Literal() != "-1000000000000000000000" {
		t.Errorf("-1e21: literal %q", p.Literal())
	}
	must(t, p.Set("r * 2"))
	if f, ok := p.Formula(); !ok || f != "r * 2" || p.Literal() != "r * 2" {
		t.Errorf("formula: %q %v literal %q", f, ok, p.Literal())
	}

	for _, bad := range []any{true, nil, []int{1}} {
		if err := p.Set(bad); !errors.Is(err, ErrParameterType) {
			t.Errorf("Set(%v) error = %v, want ErrParameterType", bad, err)
		}
	}
	var zero float64
	for _, bad := range []float64{1 / zero, -1 / zero, zero / zero} {
		if err := p.Set(bad); !errors.Is(err, ErrParameterType) {
			t.Errorf("Set(%v) error = %v, want ErrParameterType", bad, err)
		}
	}
	if f, _ := p.Formula(); f != "r * 2" {
		t.Error("a rejected Set must keep the previous value")
	}
}

func TestParameterAndConnectorLookup(t *testing.T) {
	d := buildWithRotate(t)
	rot := d.At(3)

	p, ok := ParameterByName(rot, "axis.z")
	if !ok || p.Literal() != "1" {
		t.Errorf("ParameterByName(axis.z) = %v, %v", p, ok)
	}
	if _, ok := ParameterByName(rot, "axis.w"); ok {
		t.Error("ParameterByName(axis.w) should fail")
	}
	c, ok := ConnectorByName(rot, "geometry")
	if !ok || c.Target() != d.At(2).ID() {
		t.Errorf("ConnectorByName(geometry) = %v, %v", c, ok)
	}

	var names []string
	for _, p := range rot.Parameters() {
		names = append(names, p.Name())
	}
	want := "center.x,center.y,center.z,axis.x,axis.y,axis.z,angle"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("parameter names = %s, want %s", got, want)
	}
}
