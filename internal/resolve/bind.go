package resolve

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/funvibe/dispatch/internal/catalog"
	"github.com/funvibe/dispatch/internal/prompt"
	"github.com/funvibe/dispatch/internal/typesys"
)

// Binder matches supplied argument values against a method's formal
// parameters, falling back to interactive prompting when a parameter cannot
// be filled from the pool.
type Binder struct {
	Catalog catalog.Catalog
	Reader  prompt.Reader
	Chooser prompt.Chooser
	Warn    io.Writer
}

// Bind assigns supplied values to m's parameters left to right. Each
// parameter consumes the first not-yet-assigned value assignable to its type;
// when none fits, the user is prompted for a value of the declared type.
// A failed cast binds nil for that slot (soft failure): the result may carry
// invalid values, and rejection is deferred to the invoking component.
func (b *Binder) Bind(m *typesys.MethodDescriptor, supplied []any) (*typesys.BindingResult, error) {
	pool := make([]any, len(supplied))
	copy(pool, supplied)

	result := &typesys.BindingResult{
		Method: m,
		Args:   make([]any, len(m.Params)),
	}
	for i, p := range m.Params {
		if idx, ok := b.takeAssignable(pool, p); ok {
			result.Args[i] = catalog.Unwrap(pool[idx])
			pool = append(pool[:idx], pool[idx+1:]...)
			continue
		}
		v, err := b.promptValue(p)
		if err != nil {
			return nil, err
		}
		result.Args[i] = v
	}
	return result, nil
}

// takeAssignable scans the pool for the first value assignable to p's type.
func (b *Binder) takeAssignable(pool []any, p *typesys.ParamDescriptor) (int, bool) {
	for i, v := range pool {
		if typesys.AssignableFrom(p.Type, b.Catalog.TypeOf(v)) {
			return i, true
		}
	}
	return 0, false
}

// promptValue reads one line of input for parameter p. Brace-delimited input
// is evaluated as a structured literal before the cast; anything else is cast
// directly from the raw text.
func (b *Binder) promptValue(p *typesys.ParamDescriptor) (any, error) {
	if b.Reader == nil {
		return nil, prompt.ErrNotInteractive
	}
	line, err := b.Reader.ReadLine(fmt.Sprintf("%s (%s): ", p.Name, paramTypeName(p)))
	if err != nil {
		return nil, err
	}
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
		var structured any
		if err := json.Unmarshal([]byte(line), &structured); err == nil {
			return structured, nil
		}
		// Fall through to the direct cast with the raw text.
	}
	v, err := castString(line, p.Type)
	if err != nil {
		b.warnBinding(p, err)
		return nil, nil
	}
	return v, nil
}

func (b *Binder) warnBinding(p *typesys.ParamDescriptor, cause error) {
	if b.Warn == nil {
		return
	}
	be := &BindingError{Param: p.Name, Type: paramTypeName(p), Cause: cause}
	fmt.Fprintf(b.Warn, "WARNING: %s\n", be)
}

// castString converts raw text to the declared parameter type. Unknown types
// keep the raw text, leaving validation to the underlying call.
func castString(s string, t *typesys.TypeDescriptor) (any, error) {
	if t == nil {
		return s, nil
	}
	switch t.Name {
	case "int":
		return strconv.Atoi(s)
	case "int64":
		return strconv.ParseInt(s, 10, 64)
	case "float64":
		return strconv.ParseFloat(s, 64)
	case "bool":
		return strconv.ParseBool(s)
	default:
		return s, nil
	}
}

// SelectOverload resolves overload ambiguity: every candidate is rendered as
// a Simple-style signature and presented as a numbered choice set defaulting
// to the last candidate. With a single candidate no prompt is issued.
func (b *Binder) SelectOverload(candidates []*typesys.MethodDescriptor) (*typesys.MethodDescriptor, error) {
	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("no candidates to select from")
	case 1:
		return candidates[0], nil
	}
	if b.Chooser == nil {
		return nil, prompt.ErrNotInteractive
	}
	choices := make([]prompt.Choice, len(candidates))
	for i, m := range candidates {
		choices[i] = prompt.Choice{
			Label: RenderSignature(m, StyleSimple, nil),
			Value: m,
			Help:  m.QualifiedName(),
		}
	}
	first := candidates[0]
	picked, err := b.Chooser.Choose(
		"Multiple overloads found",
		fmt.Sprintf("Select the overload of %s to invoke", first.QualifiedName()),
		choices, []int{len(choices) - 1}, false)
	if err != nil {
		return nil, &AmbiguousOverloadError{
			Type:   first.Declaring.Name,
			Member: first.Name,
			Count:  len(candidates),
			Cause:  err,
		}
	}
	return candidates[picked[0]], nil
}
