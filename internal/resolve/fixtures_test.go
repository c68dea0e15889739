package resolve

import (
	"fmt"

	"github.com/funvibe/dispatch/internal/catalog"
	"github.com/funvibe/dispatch/internal/typesys"
)

// calcFixture registers a demo.Calc type with the member shapes the pipeline
// has to handle: a constructor, static overloads, an instance method, an
// accessor, a non-public member and an attributed member.
func calcFixture() (*catalog.Registry, *typesys.TypeDescriptor) {
	reg := catalog.NewRegistry()
	calc := &typesys.TypeDescriptor{Name: "demo.Calc", Base: catalog.Object}

	ctor := &typesys.MethodDescriptor{
		Name:          "New",
		Declaring:     calc,
		IsConstructor: true,
		IsPublic:      true,
		Invoke: func(target any, typeArgs []*typesys.TypeDescriptor, args []any) (any, error) {
			return map[string]any{}, nil
		},
	}
	processInt := &typesys.MethodDescriptor{
		Name:      "Process",
		Declaring: calc,
		IsStatic:  true,
		IsPublic:  true,
		Params:    []*typesys.ParamDescriptor{{Name: "n", Type: catalog.Int}},
		Return:    catalog.Int,
		Invoke: func(target any, typeArgs []*typesys.TypeDescriptor, args []any) (any, error) {
			n, ok := args[0].(int)
			if !ok {
				return nil, fmt.Errorf("want int, got %T", args[0])
			}
			return n * 2, nil
		},
	}
	processString := &typesys.MethodDescriptor{
		Name:      "Process",
		Declaring: calc,
		IsStatic:  true,
		IsPublic:  true,
		Params:    []*typesys.ParamDescriptor{{Name: "s", Type: catalog.String}},
		Return:    catalog.String,
		Invoke: func(target any, typeArgs []*typesys.TypeDescriptor, args []any) (any, error) {
			s, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("want string, got %T", args[0])
			}
			return s + s, nil
		},
	}
	describe := &typesys.MethodDescriptor{
		Name:      "Describe",
		Declaring: calc,
		IsPublic:  true,
		Return:    catalog.String,
		Invoke: func(target any, typeArgs []*typesys.TypeDescriptor, args []any) (any, error) {
			return fmt.Sprintf("calc(%v)", target), nil
		},
	}
	getValue := &typesys.MethodDescriptor{
		Name:      "get_Value",
		Declaring: calc,
		IsPublic:  true,
		Return:    catalog.Int,
	}
	hidden := &typesys.MethodDescriptor{
		Name:      "reset",
		Declaring: calc,
	}
	tagged := &typesys.MethodDescriptor{
		Name:       "Export",
		Declaring:  calc,
		IsStatic:   true,
		IsPublic:   true,
		Attributes: []string{"demo.attrs.Exported"},
	}

	reg.Register(calc, ctor, processInt, processString, describe, getValue, hidden, tagged)
	return reg, calc
}

// placeholder builds an open method generic parameter.
func placeholder(name string) *typesys.TypeDescriptor {
	return &typesys.TypeDescriptor{Name: name, IsPlaceholder: true}
}
