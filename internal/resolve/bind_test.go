package resolve

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/funvibe/dispatch/internal/catalog"
	"github.com/funvibe/dispatch/internal/prompt"
	"github.com/funvibe/dispatch/internal/typesys"
)

func twoParamMethod(calc *typesys.TypeDescriptor) *typesys.MethodDescriptor {
	return &typesys.MethodDescriptor{
		Name:      "Configure",
		Declaring: calc,
		IsStatic:  true,
		IsPublic:  true,
		Params: []*typesys.ParamDescriptor{
			{Name: "count", Type: catalog.Int},
			{Name: "label", Type: catalog.String},
		},
	}
}

func TestBindMatchesPoolByType(t *testing.T) {
	reg, calc := calcFixture()
	b := &Binder{Catalog: reg}

	// Supplied order does not matter: each parameter takes the first value
	// assignable to its declared type.
	res, err := b.Bind(twoParamMethod(calc), []any{"hello", 7})
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if res.Args[0] != 7 || res.Args[1] != "hello" {
		t.Errorf("Args = %v, want [7 hello]", res.Args)
	}
}

func TestBindConsumesEachValueOnce(t *testing.T) {
	reg, calc := calcFixture()
	b := &Binder{Catalog: reg}
	m := &typesys.MethodDescriptor{
		Name:      "Pair",
		Declaring: calc,
		IsStatic:  true,
		IsPublic:  true,
		Params: []*typesys.ParamDescriptor{
			{Name: "a", Type: catalog.Int},
			{Name: "b", Type: catalog.Int},
		},
	}
	res, err := b.Bind(m, []any{1, 2})
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if res.Args[0] != 1 || res.Args[1] != 2 {
		t.Errorf("Args = %v, want [1 2]", res.Args)
	}
}

func TestBindUnwrapsValues(t *testing.T) {
	reg, calc := calcFixture()
	b := &Binder{Catalog: reg}
	m := twoParamMethod(calc)

	wrapped := catalog.Value{Type: catalog.Int, Raw: 9}
	res, err := b.Bind(m, []any{wrapped, "x"})
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if res.Args[0] != 9 {
		t.Errorf("a wrapped value must bind as its raw value, got %v", res.Args[0])
	}
}

func TestBindPromptsForMissingValues(t *testing.T) {
	reg, calc := calcFixture()
	script := &prompt.Script{Lines: []string{"12"}}
	b := &Binder{Catalog: reg, Reader: script}

	res, err := b.Bind(twoParamMethod(calc), []any{"only-string"})
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if res.Args[0] != 12 || res.Args[1] != "only-string" {
		t.Errorf("Args = %v, want [12 only-string]", res.Args)
	}
	if len(script.Prompts) != 1 || !strings.Contains(script.Prompts[0], "count (int)") {
		t.Errorf("prompt should name the parameter and its type, got %v", script.Prompts)
	}
}

func TestBindNoPromptWhenPoolSuffices(t *testing.T) {
	reg, calc := calcFixture()
	script := &prompt.Script{}
	b := &Binder{Catalog: reg, Reader: script}

	if _, err := b.Bind(twoParamMethod(calc), []any{3, "x"}); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if len(script.Prompts) != 0 {
		t.Errorf("a fully satisfiable pool must not prompt, got %v", script.Prompts)
	}
}

func TestBindStructuredLiteral(t *testing.T) {
	reg, calc := calcFixture()
	script := &prompt.Script{Lines: []string{`{"host": "db", "port": 5432}`}}
	b := &Binder{Catalog: reg, Reader: script}
	m := &typesys.MethodDescriptor{
		Name:      "Connect",
		Declaring: calc,
		IsStatic:  true,
		IsPublic:  true,
		Params:    []*typesys.ParamDescriptor{{Name: "options", Type: catalog.Object}},
	}
	res, err := b.Bind(m, nil)
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	want := map[string]any{"host": "db", "port": float64(5432)}
	if !reflect.DeepEqual(res.Args[0], want) {
		t.Errorf("brace-delimited input must parse as a structured literal, got %#v", res.Args[0])
	}
}

func TestBindCastFailureIsSoft(t *testing.T) {
	reg, calc := calcFixture()
	script := &prompt.Script{Lines: []string{"not-a-number"}}
	var warn strings.Builder
	b := &Binder{Catalog: reg, Reader: script, Warn: &warn}
	m := &typesys.MethodDescriptor{
		Name:      "SetCount",
		Declaring: calc,
		IsStatic:  true,
		IsPublic:  true,
		Params:    []*typesys.ParamDescriptor{{Name: "count", Type: catalog.Int}},
	}
	res, err := b.Bind(m, nil)
	if err != nil {
		t.Fatalf("a failed cast must not fail the bind: %v", err)
	}
	if res.Args[0] != nil {
		t.Errorf("a failed cast must bind nil, got %v", res.Args[0])
	}
	if !strings.Contains(warn.String(), `cannot bind parameter "count"`) {
		t.Errorf("expected a binding warning, got %q", warn.String())
	}
}

func TestCastString(t *testing.T) {
	tests := []struct {
		in   string
		typ  *typesys.TypeDescriptor
		want any
	}{
		{"42", catalog.Int, 42},
		{"42", catalog.Int64, int64(42)},
		{"2.5", catalog.Float64, 2.5},
		{"true", catalog.Bool, true},
		{"raw text", catalog.String, "raw text"},
		{"anything", catalog.Object, "anything"},
		{"anything", nil, "anything"},
	}
	for _, tt := range tests {
		got, err := castString(tt.in, tt.typ)
		if err != nil {
			t.Errorf("castString(%q, %s) failed: %v", tt.in, tt.typ, err)
			continue
		}
		if got != tt.want {
			t.Errorf("castString(%q, %s) = %v (%T), want %v (%T)", tt.in, tt.typ, got, got, tt.want, tt.want)
		}
	}
}

func TestSelectOverloadSingleCandidateNoPrompt(t *testing.T) {
	reg, calc := calcFixture()
	script := &prompt.Script{}
	b := &Binder{Catalog: reg, Chooser: script}

	m := twoParamMethod(calc)
	got, err := b.SelectOverload([]*typesys.MethodDescriptor{m})
	if err != nil || got != m {
		t.Fatalf("SelectOverload = %v, %v", got, err)
	}
	if len(script.Prompts) != 0 {
		t.Errorf("a single candidate must not prompt, got %v", script.Prompts)
	}
}

func TestSelectOverloadDefaultsToLastCandidate(t *testing.T) {
	reg, calc := calcFixture()
	e := &Enumerator{Catalog: reg, Warn: nil}
	candidates := e.FindMethods(calc, "Process", DefaultFlags|FlagNoWarn, nil)
	if len(candidates) != 2 {
		t.Fatalf("fixture should have 2 Process overloads, got %d", len(candidates))
	}

	// An exhausted script answers with the offered defaults.
	script := &prompt.Script{}
	b := &Binder{Catalog: reg, Chooser: script}
	got, err := b.SelectOverload(candidates)
	if err != nil {
		t.Fatalf("SelectOverload failed: %v", err)
	}
	if got != candidates[len(candidates)-1] {
		t.Errorf("default selection must be the last candidate, got %s", RenderSignature(got, StyleSimple, nil))
	}
	if len(script.Prompts) != 1 {
		t.Errorf("two candidates must prompt exactly once, got %v", script.Prompts)
	}
}

func TestSelectOverloadExplicitChoice(t *testing.T) {
	reg, calc := calcFixture()
	e := &Enumerator{Catalog: reg}
	candidates := e.FindMethods(calc, "Process", DefaultFlags|FlagNoWarn, nil)

	script := &prompt.Script{Answers: [][]int{{0}}}
	b := &Binder{Catalog: reg, Chooser: script}
	got, err := b.SelectOverload(candidates)
	if err != nil {
		t.Fatalf("SelectOverload failed: %v", err)
	}
	if got != candidates[0] {
		t.Errorf("explicit choice 0 must pick the first candidate")
	}
}

func TestSelectOverloadAbortWrapsError(t *testing.T) {
	reg, calc := calcFixture()
	e := &Enumerator{Catalog: reg}
	candidates := e.FindMethods(calc, "Process", DefaultFlags|FlagNoWarn, nil)

	b := &Binder{Catalog: reg, Chooser: abortChooser{}}
	_, err := b.SelectOverload(candidates)
	var amb *AmbiguousOverloadError
	if !errors.As(err, &amb) {
		t.Fatalf("an aborted choice must surface as AmbiguousOverloadError, got %v", err)
	}
	if amb.Count != 2 || amb.Member != "Process" {
		t.Errorf("error context = %+v", amb)
	}
}

type abortChooser struct{}

func (abortChooser) Choose(caption, message string, choices []prompt.Choice, defaults []int, multi bool) ([]int, error) {
	return nil, errors.New("user aborted")
}
