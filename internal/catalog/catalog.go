// Package catalog owns the queryable snapshot of types and methods the
// resolution engine runs against. The engine treats a catalog as read-only:
// registration happens before the interactive session starts.
package catalog

import (
	"reflect"
	"sort"
	"strings"

	"github.com/funvibe/dispatch/internal/typesys"
)

// Filter narrows ListTypes results. An empty pattern matches everything.
type Filter struct {
	// NamePattern is a case-insensitive wildcard pattern (* and ?) matched
	// against both the bare and the fully-qualified type name.
	NamePattern string
}

// Catalog is the type-catalog surface consumed by the engine.
type Catalog interface {
	ListTypes(f Filter) []*typesys.TypeDescriptor
	Lookup(name string) (*typesys.TypeDescriptor, bool)
	Methods(t *typesys.TypeDescriptor) []*typesys.MethodDescriptor

	// TypeOf infers the descriptor for a runtime value. Unknown values map
	// to the root object type.
	TypeOf(v any) *typesys.TypeDescriptor
}

// Value wraps a runtime value with an explicit descriptor, for callers that
// know more about a value than its Go dynamic type reveals. The engine
// unwraps it before invoking the underlying call.
type Value struct {
	Type *typesys.TypeDescriptor
	Raw  any
}

// Unwrap strips a Value wrapper, returning the underlying runtime value.
func Unwrap(v any) any {
	if w, ok := v.(Value); ok {
		return w.Raw
	}
	return v
}

// Built-in descriptors shared by every registry. Object is the root: no base
// type, no interfaces.
var (
	Object  = &typesys.TypeDescriptor{Name: "object"}
	Int     = &typesys.TypeDescriptor{Name: "int", Base: Object}
	Int64   = &typesys.TypeDescriptor{Name: "int64", Base: Object}
	Float64 = &typesys.TypeDescriptor{Name: "float64", Base: Object}
	String  = &typesys.TypeDescriptor{Name: "string", Base: Object}
	Bool    = &typesys.TypeDescriptor{Name: "bool", Base: Object}
)

var builtins = []*typesys.TypeDescriptor{Object, Int, Int64, Float64, String, Bool}

// Registry is the in-memory Catalog implementation. Not safe for concurrent
// mutation; the engine assumes a single interactive session at a time.
type Registry struct {
	order   []*typesys.TypeDescriptor
	byName  map[string]*typesys.TypeDescriptor
	methods map[string][]*typesys.MethodDescriptor
	goTypes map[reflect.Type]*typesys.TypeDescriptor
}

// NewRegistry creates a registry pre-populated with the built-in types.
func NewRegistry() *Registry {
	r := &Registry{
		byName:  make(map[string]*typesys.TypeDescriptor),
		methods: make(map[string][]*typesys.MethodDescriptor),
		goTypes: make(map[reflect.Type]*typesys.TypeDescriptor),
	}
	for _, t := range builtins {
		r.Register(t)
	}
	r.goTypes[reflect.TypeOf(int(0))] = Int
	r.goTypes[reflect.TypeOf(int64(0))] = Int64
	r.goTypes[reflect.TypeOf(float64(0))] = Float64
	r.goTypes[reflect.TypeOf("")] = String
	r.goTypes[reflect.TypeOf(false)] = Bool
	return r
}

// Register adds a type with its methods. Re-registering a name replaces its
// methods but keeps the original list position.
func (r *Registry) Register(t *typesys.TypeDescriptor, methods ...*typesys.MethodDescriptor) {
	if t == nil {
		return
	}
	if _, seen := r.byName[t.Name]; !seen {
		r.order = append(r.order, t)
	}
	r.byName[t.Name] = t
	if len(methods) > 0 {
		r.methods[t.Name] = methods
	}
}

// AddMethods appends methods to an already registered type.
func (r *Registry) AddMethods(t *typesys.TypeDescriptor, methods ...*typesys.MethodDescriptor) {
	r.methods[t.Name] = append(r.methods[t.Name], methods...)
}

// BindGoType maps a Go runtime type (taken from sample's dynamic type) to a
// descriptor, so TypeOf can classify values of that type.
func (r *Registry) BindGoType(sample any, t *typesys.TypeDescriptor) {
	if sample == nil || t == nil {
		return
	}
	r.goTypes[reflect.TypeOf(sample)] = t
}

func (r *Registry) ListTypes(f Filter) []*typesys.TypeDescriptor {
	var out []*typesys.TypeDescriptor
	for _, t := range r.order {
		if f.NamePattern == "" ||
			MatchPattern(f.NamePattern, t.Name) ||
			MatchPattern(f.NamePattern, t.ShortName()) {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) Lookup(name string) (*typesys.TypeDescriptor, bool) {
	t, ok := r.byName[name]
	return t, ok
}

func (r *Registry) Methods(t *typesys.TypeDescriptor) []*typesys.MethodDescriptor {
	if t == nil {
		return nil
	}
	return r.methods[t.Name]
}

func (r *Registry) TypeOf(v any) *typesys.TypeDescriptor {
	if w, ok := v.(Value); ok {
		if w.Type != nil {
			return w.Type
		}
		v = w.Raw
	}
	if v == nil {
		return Object
	}
	if t, ok := r.goTypes[reflect.TypeOf(v)]; ok {
		return t
	}
	return Object
}

// Packages returns the distinct namespace qualifiers of registered types
// matching the wildcard pattern, sorted. Unqualified types (builtins) have no
// namespace and are skipped.
func (r *Registry) Packages(pattern string) []string {
	seen := make(map[string]bool)
	for _, t := range r.order {
		i := strings.LastIndex(t.Name, ".")
		if i < 0 {
			continue
		}
		ns := t.Name[:i]
		if pattern == "" || MatchPattern(pattern, ns) {
			seen[ns] = true
		}
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Names returns all registered type names, sorted. Diagnostic helper.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MatchPattern performs case-insensitive wildcard matching: * matches any run
// of characters, ? exactly one.
func MatchPattern(pattern, name string) bool {
	return matchFold(strings.ToLower(pattern), strings.ToLower(name))
}

func matchFold(p, s string) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			// Collapse consecutive stars.
			for len(p) > 0 && p[0] == '*' {
				p = p[1:]
			}
			if len(p) == 0 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if matchFold(p, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			p, s = p[1:], s[1:]
		default:
			if len(s) == 0 || p[0] != s[0] {
				return false
			}
			p, s = p[1:], s[1:]
		}
	}
	return len(s) == 0
}
