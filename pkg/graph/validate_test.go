package graph

import (
	"strings"
	"testing"
)

// hasError returns true if errs contains at least one error-severity finding
// whose message contains substr.
func hasError(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityError && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// hasWarning returns true if errs contains at least one warning-severity
// finding whose message contains substr.
func hasWarning(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityWarning && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestValidate_ValidDocument(t *testing.T) {
	for name, build := range map[string]func(*testing.T) *Document{
		"cut":       buildCutBoxes,
		"rotate":    buildWithRotate,
		"translate": buildWithTranslate,
	} {
		t.Run(name, func(t *testing.T) {
			if errs := Validate(build(t)); len(errs) != 0 {
				t.Errorf("expected no findings, got %v", errs)
			}
		})
	}
}

func TestValidate_EmptyDocument(t *testing.T) {
	if errs := Validate(New()); len(errs) != 0 {
		t.Errorf("expected no findings for empty document, got %v", errs)
	}
}

func TestValidate_UnlinkedConnectorIsWarning(t *testing.T) {
	d := New()
	d.AddBox()
	d.AddCut()

	errs := Validate(d)
	if HasErrors(errs) {
		t.Fatalf("unlinked connectors should not be errors: %v", errs)
	}
	if !hasWarning(errs, "connector leftArg is not linked") || !hasWarning(errs, "connector rightArg is not linked") {
		t.Errorf("expected unlinked warnings, got %v", errs)
	}
}

func TestValidate_MissingDependantRegistration(t *testing.T) {
	d := buildCutBoxes(t)
	cut := d.At(2).core()
	delete(d.At(0).core().dependants, cut.id)

	errs := Validate(d)
	if !hasError(errs, "is not registered as its dependant") {
		t.Errorf("expected missing registration error, got %v", errs)
	}
}

func TestValidate_StaleDependantEntry(t *testing.T) {
	d := buildCutBoxes(t)
	d.At(1).core().dependants[d.At(0).ID()] = struct{}{}
	d.At(0).core().dependants[99] = struct{}{}

	errs := Validate(d)
	if !hasError(errs, "holds no link to it") {
		t.Errorf("expected stale dependant error, got %v", errs)
	}
	if !hasError(errs, "missing dependant #99") {
		t.Errorf("expected missing dependant error, got %v", errs)
	}
}

func TestValidate_DuplicateAndForwardLinks(t *testing.T) {
	d := buildCutBoxes(t)
	cut := d.At(2).(*Cut)
	cut.RightArg.target = cut.LeftArg.target

	errs := Validate(d)
	if !hasError(errs, "a link duplication has been found: shape0") {
		t.Errorf("expected duplication error, got %v", errs)
	}

	d = buildCutBoxes(t)
	tr := d.AddTranslate()
	tr.Geometry.target = d.AddBox().id

	errs = Validate(d)
	if !hasError(errs, "does not precede position 3") {
		t.Errorf("expected forward reference error, got %v", errs)
	}
}

func TestValidate_IdentityProblems(t *testing.T) {
	d := buildCutBoxes(t)
	d.At(1).core().id = d.At(0).ID()

	errs := Validate(d)
	if !hasError(errs, "already used by element 0") {
		t.Errorf("expected duplicate id error, got %v", errs)
	}

	d = buildCutBoxes(t)
	d.At(0).core().state = Disposed
	errs = Validate(d)
	if !hasError(errs, `"shape0" is disposed`) {
		t.Errorf("expected disposed element error, got %v", errs)
	}
}

func TestCheckReplaceItem_Problems(t *testing.T) {
	d := buildCutBoxes(t)

	if errs := d.CheckReplaceItem(0, nil); !hasError(errs, "candidate is nil") {
		t.Errorf("nil candidate: %v", errs)
	}
	if errs := d.CheckReplaceItem(-1, d.At(0).Clone()); !hasError(errs, "out of range") {
		t.Errorf("negative index: %v", errs)
	}
	if errs := d.CheckReplaceItem(1, d.At(0)); !hasError(errs, "already attached") {
		t.Errorf("attached candidate: %v", errs)
	}

	other := buildCutBoxes(t)
	if errs := d.CheckReplaceItem(0, other.At(0).Clone()); !hasError(errs, "belongs to another document") {
		t.Errorf("foreign candidate: %v", errs)
	}

	cloned := d.At(2).Clone().(*Cut)
	cloned.LeftArg.target = 42
	if errs := d.CheckReplaceItem(2, cloned); !hasError(errs, "missing entity #42") {
		t.Errorf("dangling link: %v", errs)
	}
}

func TestCheckReplaceItem_DoesNotMutate(t *testing.T) {
	d := buildCutBoxes(t)
	before, err := Serialize(d)
	must(t, err)

	cloned := d.At(2).Clone().(*Cut)
	must(t, cloned.RightArg.Set(d.At(0)))
	_ = d.CheckReplaceItem(2, cloned)

	after, err := Serialize(d)
	must(t, err)
	if before != after {
		t.Error("CheckReplaceItem mutated the document")
	}
}

func TestValidationError_String(t *testing.T) {
	e := ValidationError{Index: 2, Message: "bad link", Severity: SeverityError}
	if got := e.Error(); got != "[error] element 2: bad link" {
		t.Errorf("Error() = %q", got)
	}
	w := ValidationError{Index: -1, Message: "registry mismatch", Severity: SeverityWarning}
	if got := w.Error(); got != "[warning] registry mismatch" {
		t.Errorf("Error() = %q", got)
	}
}

func TestReplaceError_Message(t *testing.T) {
	err := &ReplaceError{Index: 1, Problems: []ValidationError{
		{Index: 1, Message: "first", Severity: SeverityError},
		{Index: 1, Message: "second", Severity: SeverityError},
	}}
	if got := err.Error(); got != "graph: cannot replace element 1: first; second" {
		t.Errorf("Error() = %q", got)
	}
}
