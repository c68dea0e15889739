package resolve

import (
	"fmt"
	"strings"

	"github.com/funvibe/dispatch/internal/typesys"
)

// Style selects the rendering form for a method signature.
type Style int

const (
	// StyleFull renders invocable call syntax: constructor-call form,
	// static-call form, or instance-call form against a synthesized variable.
	StyleFull Style = iota
	// StyleSimple renders "<returnType> <name>(<parameters>)".
	StyleSimple
	// StyleParamBlock renders a formal-parameter declaration block, each
	// parameter marked mandatory.
	StyleParamBlock
)

// RenderSignature produces the textual signature of m in the requested style.
// When genericArgs is supplied, parameters typed with an open generic
// placeholder are substituted by closing the method over genericArgs; on
// arity mismatch the substitution is skipped and the original parameter types
// are rendered. Pure formatting, no side effects.
func RenderSignature(m *typesys.MethodDescriptor, style Style, genericArgs []*typesys.TypeDescriptor) string {
	params := m.Params
	if len(genericArgs) > 0 && m.IsGeneric() {
		if closed, err := typesys.CloseMethod(m, genericArgs); err == nil {
			params = closed.Params
		}
	}

	switch style {
	case StyleSimple:
		return fmt.Sprintf("%s %s(%s)", returnName(m), m.Name, joinParams(params, false))
	case StyleParamBlock:
		return renderParamBlock(params)
	default:
		return renderFull(m, params)
	}
}

func renderFull(m *typesys.MethodDescriptor, params []*typesys.ParamDescriptor) string {
	args := joinParams(params, false)
	switch {
	case m.IsConstructor:
		return fmt.Sprintf("new %s(%s)", m.Declaring.ShortName(), args)
	case m.IsStatic:
		return fmt.Sprintf("%s.%s(%s)", m.Declaring.ShortName(), m.Name, args)
	default:
		return fmt.Sprintf("%s.%s(%s)", receiverVar(m.Declaring), m.Name, args)
	}
}

func renderParamBlock(params []*typesys.ParamDescriptor) string {
	if len(params) == 0 {
		return "()"
	}
	lines := make([]string, len(params))
	for i, p := range params {
		lines[i] = fmt.Sprintf("\t[required] %s %s", paramTypeName(p), p.Name)
	}
	return "(\n" + strings.Join(lines, ",\n") + "\n)"
}

func joinParams(params []*typesys.ParamDescriptor, typesOnly bool) string {
	parts := make([]string, len(params))
	for i, p := range params {
		if typesOnly || p.Name == "" {
			parts[i] = paramTypeName(p)
		} else {
			parts[i] = paramTypeName(p) + " " + p.Name
		}
	}
	return strings.Join(parts, ", ")
}

// paramTypeName renders a parameter's type with the by-reference (*) and
// array ([]) markers.
func paramTypeName(p *typesys.ParamDescriptor) string {
	name := "object"
	if p.Type != nil {
		name = p.Type.String()
	}
	if p.IsArray {
		name = "[]" + name
	}
	if p.IsByRef {
		name = "*" + name
	}
	return name
}

func returnName(m *typesys.MethodDescriptor) string {
	if m.IsConstructor {
		return m.Declaring.String()
	}
	if m.Return == nil {
		return "void"
	}
	return m.Return.String()
}

// receiverVar synthesizes the instance variable name used in full-style
// instance calls, derived from the declaring type's short name.
func receiverVar(t *typesys.TypeDescriptor) string {
	short := t.ShortName()
	if short == "" {
		return "obj"
	}
	return strings.ToLower(short[:1]) + short[1:]
}
