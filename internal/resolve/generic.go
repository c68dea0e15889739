package resolve

import (
	"github.com/funvibe/dispatch/internal/catalog"
	"github.com/funvibe/dispatch/internal/typesys"
)

// InvokeGeneric finds the best-matching method named name on the target type
// (generic or not), closes generic methods over type arguments inferred from
// the supplied argument types, and invokes the result.
//
// When explicitTypes is nil, one type is inferred per supplied value from its
// runtime type. Candidate acceptance requires equal parameter count and every
// parameter position either matching the supplied type exactly or being a
// generic slot; among accepted candidates the one with the fewest generic
// parameters wins. The generic type arguments are exactly the supplied types
// at the generic-slot positions, in order — a deliberately simple policy that
// is kept even where full inference could do better.
func (e *Engine) InvokeGeneric(target any, name string, values []any, explicitTypes []*typesys.TypeDescriptor, isStatic bool) (any, error) {
	targetType := e.targetType(target)
	if targetType == nil {
		return nil, NewNotFoundError("<unknown>", name)
	}

	argTypes := explicitTypes
	if argTypes == nil {
		argTypes = make([]*typesys.TypeDescriptor, len(values))
		for i, v := range values {
			argTypes[i] = e.Catalog.TypeOf(v)
		}
	}

	methods := e.namedMethods(targetType, name, isStatic)
	if len(methods) == 0 {
		return nil, NewNotFoundError(targetType.String(), name)
	}

	// Non-generic fast path: an exact signature match wins outright.
	for _, m := range methods {
		if !m.IsGeneric() && exactSignature(m, argTypes) {
			return e.call(m, target, nil, values)
		}
	}

	best := pickGenericCandidate(methods, argTypes)
	if best == nil {
		return nil, &GenericInferenceError{Type: targetType.String(), Method: name}
	}

	typeArgs := make([]*typesys.TypeDescriptor, 0, len(best.GenericParams))
	for _, slot := range best.GenericSlots() {
		typeArgs = append(typeArgs, argTypes[slot])
	}
	closed, err := typesys.CloseMethod(best, typeArgs)
	if err != nil {
		return nil, &GenericInferenceError{Type: targetType.String(), Method: name}
	}
	return e.call(closed, target, typeArgs, values)
}

// pickGenericCandidate filters methods by the generic-slot acceptance rule
// and prefers the fewest generic parameters (most specific). Declaration
// order breaks remaining ties.
func pickGenericCandidate(methods []*typesys.MethodDescriptor, argTypes []*typesys.TypeDescriptor) *typesys.MethodDescriptor {
	var best *typesys.MethodDescriptor
	for _, m := range methods {
		if len(m.Params) != len(argTypes) {
			continue
		}
		if !slotsAccept(m, argTypes) {
			continue
		}
		if best == nil || len(m.GenericParams) < len(best.GenericParams) {
			best = m
		}
	}
	return best
}

func slotsAccept(m *typesys.MethodDescriptor, argTypes []*typesys.TypeDescriptor) bool {
	slots := m.GenericSlots()
	for i, p := range m.Params {
		if containsSlot(slots, i) {
			continue
		}
		if p.Type == nil || argTypes[i] == nil || !p.Type.Equal(argTypes[i]) {
			return false
		}
	}
	return true
}

func exactSignature(m *typesys.MethodDescriptor, argTypes []*typesys.TypeDescriptor) bool {
	if len(m.Params) != len(argTypes) {
		return false
	}
	for i, p := range m.Params {
		if p.Type == nil || argTypes[i] == nil || !p.Type.Equal(argTypes[i]) {
			return false
		}
	}
	return true
}

func containsSlot(slots []int, i int) bool {
	for _, s := range slots {
		if s == i {
			return true
		}
	}
	return false
}

// call invokes m against target with the supplied values unwrapped to their
// underlying runtime values. Invocation failures are re-reported with added
// context; an argument-count mismatch is diagnosed before the call is made.
func (e *Engine) call(m *typesys.MethodDescriptor, target any, typeArgs []*typesys.TypeDescriptor, values []any) (any, error) {
	if m.Invoke == nil {
		return nil, &InvocationError{
			Type:      m.Declaring.String(),
			Method:    m.Name,
			RequestID: e.requestID,
			Detail:    "method has no invocation binding in this catalog",
		}
	}
	if len(values) != len(m.Params) {
		return nil, &InvocationError{
			Type:      m.Declaring.String(),
			Method:    m.Name,
			RequestID: e.requestID,
			Detail:    "argument count mismatch",
		}
	}
	unwrapped := make([]any, len(values))
	for i, v := range values {
		unwrapped[i] = catalog.Unwrap(v)
	}
	out, err := m.Invoke(catalog.Unwrap(target), typeArgs, unwrapped)
	if err != nil {
		return nil, &InvocationError{
			Type:      m.Declaring.String(),
			Method:    m.Name,
			RequestID: e.requestID,
			Cause:     err,
		}
	}
	return out, nil
}
