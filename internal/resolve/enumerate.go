// Package resolve implements the method-resolution pipeline: member
// enumeration, signature rendering, argument binding and generic method
// binding/invocation. The matching logic is deterministic; interactive
// tie-breaking goes through the injected prompt interfaces.
package resolve

import (
	"fmt"
	"io"
	"strings"

	"github.com/funvibe/dispatch/internal/catalog"
	"github.com/funvibe/dispatch/internal/typesys"
)

// Flags select member visibility and binding kind for enumeration.
type Flags uint

const (
	// FlagPublic includes public members.
	FlagPublic Flags = 1 << iota
	// FlagNonPublic includes non-public members.
	FlagNonPublic
	// FlagStatic includes static members (and constructors).
	FlagStatic
	// FlagInstance includes instance members.
	FlagInstance
	// FlagForce also includes property accessor methods (get_*/set_*).
	FlagForce
	// FlagNoWarn suppresses the missing-constructor warning.
	FlagNoWarn
)

// DefaultFlags is used when a caller passes zero flags.
const DefaultFlags = FlagPublic | FlagStatic | FlagInstance

// Enumerator lists members of catalog types. Warn receives diagnostics
// (defaults to io.Discard when nil).
type Enumerator struct {
	Catalog catalog.Catalog
	Warn    io.Writer
}

func (e *Enumerator) warnf(format string, args ...any) {
	w := e.Warn
	if w == nil {
		return
	}
	fmt.Fprintf(w, "WARNING: "+format+"\n", args...)
}

// FindMethods lists constructors and methods of t whose name matches the
// wildcard namePattern (case-insensitive, matched against both the bare and
// the qualified name), filtered by flags and an optional attribute filter.
//
// Constructors are ordinary members here, modeled with IsConstructor set.
// A method passes the attribute filter when any requested attribute pattern
// matches any attribute actually declared on it.
func (e *Enumerator) FindMethods(t *typesys.TypeDescriptor, namePattern string, flags Flags, attrFilter []string) []*typesys.MethodDescriptor {
	if flags&(FlagPublic|FlagNonPublic|FlagStatic|FlagInstance|FlagForce) == 0 {
		flags |= DefaultFlags
	}
	if namePattern == "" {
		namePattern = "*"
	}

	var out []*typesys.MethodDescriptor
	publicCtors := 0
	for _, m := range e.Catalog.Methods(t) {
		if m.IsConstructor && m.IsPublic {
			publicCtors++
		}
		if !visibilityAllows(m, flags) {
			continue
		}
		if isAccessor(m.Name) && flags&FlagForce == 0 {
			continue
		}
		if !catalog.MatchPattern(namePattern, m.Name) &&
			!catalog.MatchPattern(namePattern, m.QualifiedName()) {
			continue
		}
		if len(attrFilter) > 0 && !attributesMatch(m, attrFilter) {
			continue
		}
		out = append(out, m)
	}

	if publicCtors == 0 && flags&FlagNoWarn == 0 {
		e.warnf("type %s has no matching public constructors", t)
	}
	return out
}

func visibilityAllows(m *typesys.MethodDescriptor, flags Flags) bool {
	if m.IsPublic && flags&FlagPublic == 0 {
		return false
	}
	if !m.IsPublic && flags&FlagNonPublic == 0 {
		return false
	}
	// Constructors bind like static members: no instance is needed to call them.
	static := m.IsStatic || m.IsConstructor
	if static && flags&FlagStatic == 0 {
		return false
	}
	if !static && flags&FlagInstance == 0 {
		return false
	}
	return true
}

// isAccessor reports getter/setter-shaped names produced by property
// compilation.
func isAccessor(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "get_") || strings.HasPrefix(lower, "set_")
}

// attributesMatch tests whether any requested attribute pattern matches any
// attribute present on m, by exact or wildcard match against the attribute's
// short or full name.
func attributesMatch(m *typesys.MethodDescriptor, requested []string) bool {
	for _, want := range requested {
		for _, have := range m.Attributes {
			if catalog.MatchPattern(want, have) {
				return true
			}
			if i := strings.LastIndex(have, "."); i >= 0 && catalog.MatchPattern(want, have[i+1:]) {
				return true
			}
		}
	}
	return false
}
