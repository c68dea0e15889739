// Package typesys holds the descriptor model the resolution engine works on:
// an explicit, queryable snapshot of types, methods and parameters supplied by
// a catalog, instead of a live runtime type system.
package typesys

import (
	"fmt"
	"strings"
)

// TypeDescriptor describes a single type. Base and Interfaces are referential:
// they point into the catalog that owns the descriptors and are never copied.
type TypeDescriptor struct {
	// Name is the fully-qualified family name (e.g. "demo.Box").
	// Generic arguments are not part of Name; String() renders them.
	Name string

	// Base is the base type, or nil for a root type.
	Base *TypeDescriptor

	// Interfaces lists implemented interfaces in declaration order.
	Interfaces []*TypeDescriptor

	// GenericParams holds the ordered generic parameters. For a definition
	// these are open placeholders; for a closed generic, concrete types.
	GenericParams []*TypeDescriptor

	// IsDefinition marks an open generic definition (e.g. Box<T> itself).
	IsDefinition bool

	// Definition points back to the open definition for a closed generic.
	Definition *TypeDescriptor

	// IsPlaceholder marks an unbound generic parameter (e.g. T).
	IsPlaceholder bool

	// Bound is the upper bound of a placeholder, or nil when unconstrained.
	Bound *TypeDescriptor
}

// IsGeneric reports whether the type carries generic parameters.
func (t *TypeDescriptor) IsGeneric() bool {
	return t != nil && len(t.GenericParams) > 0
}

// IsClosedGeneric reports whether the type is a generic with every parameter
// bound to a concrete (non-placeholder) type.
func (t *TypeDescriptor) IsClosedGeneric() bool {
	if t == nil || !t.IsGeneric() || t.IsDefinition {
		return false
	}
	for _, p := range t.GenericParams {
		if p == nil || p.IsPlaceholder {
			return false
		}
	}
	return true
}

// GenericDefinition returns the open definition backing this type: the type
// itself when it is a definition, its Definition link when closed, nil for
// non-generic types.
func (t *TypeDescriptor) GenericDefinition() *TypeDescriptor {
	if t == nil {
		return nil
	}
	if t.IsDefinition {
		return t
	}
	return t.Definition
}

// ShortName returns the name without its namespace qualifier.
func (t *TypeDescriptor) ShortName() string {
	if t == nil {
		return ""
	}
	if i := strings.LastIndex(t.Name, "."); i >= 0 {
		return t.Name[i+1:]
	}
	return t.Name
}

func (t *TypeDescriptor) String() string {
	if t == nil {
		return "<nil>"
	}
	if len(t.GenericParams) == 0 {
		return t.Name
	}
	args := make([]string, len(t.GenericParams))
	for i, p := range t.GenericParams {
		args[i] = p.String()
	}
	return fmt.Sprintf("%s<%s>", t.Name, strings.Join(args, ", "))
}

// Equal compares two descriptors structurally, by family name and generic
// arguments. Pointer identity is a fast path, not a requirement: catalogs may
// materialize equivalent descriptors independently.
func (t *TypeDescriptor) Equal(other *TypeDescriptor) bool {
	if t == other {
		return t != nil
	}
	if t == nil || other == nil {
		return false
	}
	return t.String() == other.String()
}

// Close binds the generic parameters of definition def to args, producing a
// closed descriptor. Interfaces and the base type are substituted so that e.g.
// Box<String> implements IContainer<String>.
func Close(def *TypeDescriptor, args []*TypeDescriptor) (*TypeDescriptor, error) {
	if def == nil {
		return nil, fmt.Errorf("cannot close nil type")
	}
	if !def.IsDefinition {
		return nil, fmt.Errorf("%s is not an open generic definition", def)
	}
	if len(args) != len(def.GenericParams) {
		return nil, fmt.Errorf("generic arity mismatch for %s: have %d arguments, want %d",
			def.Name, len(args), len(def.GenericParams))
	}
	subst := make(map[string]*TypeDescriptor, len(args))
	for i, p := range def.GenericParams {
		subst[p.Name] = args[i]
	}
	closed := &TypeDescriptor{
		Name:          def.Name,
		Base:          Substitute(def.Base, subst),
		GenericParams: args,
		Definition:    def,
	}
	for _, iface := range def.Interfaces {
		closed.Interfaces = append(closed.Interfaces, Substitute(iface, subst))
	}
	return closed, nil
}

// Substitute replaces placeholders in t by name according to subst, rebuilding
// generic descriptors as needed. Non-generic, non-placeholder types are
// returned unchanged.
func Substitute(t *TypeDescriptor, subst map[string]*TypeDescriptor) *TypeDescriptor {
	if t == nil {
		return nil
	}
	if t.IsPlaceholder {
		if r, ok := subst[t.Name]; ok {
			return r
		}
		return t
	}
	if !t.IsGeneric() {
		return t
	}
	changed := false
	params := make([]*TypeDescriptor, len(t.GenericParams))
	for i, p := range t.GenericParams {
		params[i] = Substitute(p, subst)
		if params[i] != p {
			changed = true
		}
	}
	if !changed {
		return t
	}
	return &TypeDescriptor{
		Name:          t.Name,
		Base:          Substitute(t.Base, subst),
		GenericParams: params,
		Definition:    t.GenericDefinition(),
	}
}

// ParamDescriptor describes one formal parameter of a method.
type ParamDescriptor struct {
	Name string
	Type *TypeDescriptor

	// IsGenericPlaceholder is true when Type is one of the enclosing
	// method's own open generic parameters (a "generic slot").
	IsGenericPlaceholder bool

	IsByRef bool
	IsArray bool
}

// InvokeFunc performs the underlying call behind a method descriptor.
// typeArgs carries the closed generic arguments (nil for non-generic methods).
type InvokeFunc func(target any, typeArgs []*TypeDescriptor, args []any) (any, error)

// MethodDescriptor describes a constructor or method. Descriptors are built
// transiently per query from the catalog and never mutated.
type MethodDescriptor struct {
	Name          string
	Declaring     *TypeDescriptor
	IsConstructor bool
	IsStatic      bool
	IsPublic      bool
	Params        []*ParamDescriptor
	GenericParams []*TypeDescriptor
	Return        *TypeDescriptor

	// Attributes holds declared attribute names used by attribute filters.
	Attributes []string

	// Invoke binds the descriptor to its underlying callable. Descriptor-only
	// catalogs (e.g. scanned Go source) leave it nil.
	Invoke InvokeFunc
}

// IsGeneric reports whether the method declares its own generic parameters.
func (m *MethodDescriptor) IsGeneric() bool {
	return m != nil && len(m.GenericParams) > 0
}

// GenericSlots returns the indices of parameters typed with one of the
// method's own generic parameters, in declaration order.
func (m *MethodDescriptor) GenericSlots() []int {
	var slots []int
	for i, p := range m.Params {
		if p.IsGenericPlaceholder {
			slots = append(slots, i)
			continue
		}
		for _, g := range m.GenericParams {
			if p.Type != nil && p.Type.Equal(g) {
				slots = append(slots, i)
				break
			}
		}
	}
	return slots
}

// QualifiedName returns "DeclaringType.Name".
func (m *MethodDescriptor) QualifiedName() string {
	if m.Declaring == nil {
		return m.Name
	}
	return m.Declaring.Name + "." + m.Name
}

// CloseMethod binds the method's generic parameters to args, substituting
// every placeholder in the parameter and return types. The result keeps the
// original Invoke binding; typeArgs are forwarded at call time.
func CloseMethod(m *MethodDescriptor, args []*TypeDescriptor) (*MethodDescriptor, error) {
	if !m.IsGeneric() {
		return nil, fmt.Errorf("method %s is not generic", m.QualifiedName())
	}
	if len(args) != len(m.GenericParams) {
		return nil, fmt.Errorf("generic arity mismatch for %s: have %d arguments, want %d",
			m.QualifiedName(), len(args), len(m.GenericParams))
	}
	subst := make(map[string]*TypeDescriptor, len(args))
	for i, g := range m.GenericParams {
		subst[g.Name] = args[i]
	}
	closed := &MethodDescriptor{
		Name:          m.Name,
		Declaring:     m.Declaring,
		IsConstructor: m.IsConstructor,
		IsStatic:      m.IsStatic,
		IsPublic:      m.IsPublic,
		GenericParams: args,
		Return:        Substitute(m.Return, subst),
		Attributes:    m.Attributes,
		Invoke:        m.Invoke,
	}
	for _, p := range m.Params {
		closed.Params = append(closed.Params, &ParamDescriptor{
			Name:                 p.Name,
			Type:                 Substitute(p.Type, subst),
			IsGenericPlaceholder: false,
			IsByRef:              p.IsByRef,
			IsArray:              p.IsArray,
		})
	}
	return closed, nil
}

// BindingResult is the outcome of binding arguments to a method. Args is
// always positionally aligned with the method's parameters, even when slots
// were filled interactively or left nil after a soft cast failure.
type BindingResult struct {
	Method              *MethodDescriptor
	Args                []any
	ClosedGenericParams []*TypeDescriptor
}
