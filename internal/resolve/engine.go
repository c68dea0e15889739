package resolve

import (
	"io"

	"github.com/google/uuid"

	"github.com/funvibe/dispatch/internal/catalog"
	"github.com/funvibe/dispatch/internal/prompt"
	"github.com/funvibe/dispatch/internal/typesys"
)

// Engine ties the resolution pipeline together: enumerate candidates, narrow
// or bind generics, match arguments with interactive fallback, invoke.
// Single-threaded and synchronous: prompts block the whole pipeline until the
// user answers.
type Engine struct {
	Catalog catalog.Catalog
	Aliases *catalog.Aliases
	Chooser prompt.Chooser
	Reader  prompt.Reader
	Warn    io.Writer

	// requestID tags warnings and invocation errors of the current
	// resolution attempt.
	requestID string
}

// New creates an engine over the given catalog with interactive tie-breaking
// supplied by chooser and reader.
func New(cat catalog.Catalog, aliases *catalog.Aliases, chooser prompt.Chooser, reader prompt.Reader, warn io.Writer) *Engine {
	return &Engine{
		Catalog: cat,
		Aliases: aliases,
		Chooser: chooser,
		Reader:  reader,
		Warn:    warn,
	}
}

func (e *Engine) enumerator() *Enumerator {
	return &Enumerator{Catalog: e.Catalog, Warn: e.Warn}
}

func (e *Engine) binder() *Binder {
	return &Binder{Catalog: e.Catalog, Reader: e.Reader, Chooser: e.Chooser, Warn: e.Warn}
}

// LookupType resolves a type name (or registered alias) in the catalog.
func (e *Engine) LookupType(name string) (*typesys.TypeDescriptor, bool) {
	return e.Catalog.Lookup(e.Aliases.Resolve(name))
}

// targetType maps the invocation target to its descriptor: a descriptor is a
// static target, anything else is classified by the catalog.
func (e *Engine) targetType(target any) *typesys.TypeDescriptor {
	if t, ok := target.(*typesys.TypeDescriptor); ok {
		return t
	}
	return e.Catalog.TypeOf(target)
}

func (e *Engine) namedMethods(t *typesys.TypeDescriptor, name string, isStatic bool) []*typesys.MethodDescriptor {
	flags := FlagPublic | FlagNoWarn
	if isStatic {
		flags |= FlagStatic
	} else {
		flags |= FlagInstance
	}
	return e.enumerator().FindMethods(t, name, flags, nil)
}

// ResolveAndInvoke resolves member on the target (a descriptor for static
// calls, an instance value otherwise), binds args and invokes the selected
// method. Ambiguity between overloads is settled interactively; when the
// chosen overload subsequently fails to invoke and other candidates remain,
// the user is re-prompted.
func (e *Engine) ResolveAndInvoke(target any, member string, args []any, isStatic bool) (any, error) {
	e.requestID = uuid.NewString()
	defer func() { e.requestID = "" }()

	targetType := e.targetType(target)
	if targetType == nil {
		return nil, NewNotFoundError("<unknown>", member)
	}

	candidates := e.namedMethods(targetType, member, isStatic)
	if len(candidates) == 0 {
		return nil, NewNotFoundError(targetType.String(), member)
	}

	// Generic members take the inference path when every supplied argument
	// already carries a usable runtime type.
	if anyGeneric(candidates) {
		return e.InvokeGeneric(target, member, args, nil, isStatic)
	}

	binder := e.binder()
	remaining := candidates
	var lastErr error
	for attempt := 0; attempt < len(candidates); attempt++ {
		m, err := binder.SelectOverload(remaining)
		if err != nil {
			return nil, err
		}
		binding, err := binder.Bind(m, args)
		if err != nil {
			return nil, err
		}
		out, err := e.call(m, target, nil, binding.Args)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if len(remaining) <= 1 {
			break
		}
		remaining = withoutMethod(remaining, m)
	}
	return nil, lastErr
}

// Resolve runs the pipeline up to (not including) invocation: useful for
// callers that only need the chosen method and bound arguments.
func (e *Engine) Resolve(target any, member string, args []any, isStatic bool) (*typesys.BindingResult, error) {
	e.requestID = uuid.NewString()
	defer func() { e.requestID = "" }()

	targetType := e.targetType(target)
	if targetType == nil {
		return nil, NewNotFoundError("<unknown>", member)
	}
	candidates := e.namedMethods(targetType, member, isStatic)
	if len(candidates) == 0 {
		return nil, NewNotFoundError(targetType.String(), member)
	}
	binder := e.binder()
	m, err := binder.SelectOverload(candidates)
	if err != nil {
		return nil, err
	}
	return binder.Bind(m, args)
}

func anyGeneric(methods []*typesys.MethodDescriptor) bool {
	for _, m := range methods {
		if m.IsGeneric() {
			return true
		}
	}
	return false
}

func withoutMethod(methods []*typesys.MethodDescriptor, drop *typesys.MethodDescriptor) []*typesys.MethodDescriptor {
	out := make([]*typesys.MethodDescriptor, 0, len(methods)-1)
	for _, m := range methods {
		if m != drop {
			out = append(out, m)
		}
	}
	return out
}
