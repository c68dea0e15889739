// Package gosource snapshots Go packages into the descriptor catalog via
// go/packages and go/types. The snapshot is descriptor-only: scanned methods
// carry no invocation binding, so the engine can browse, render and bind
// against them but not call them.
package gosource

import (
	"fmt"
	"go/types"
	"io"
	"os"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/funvibe/dispatch/internal/catalog"
	"github.com/funvibe/dispatch/internal/typesys"
)

// Scanner loads Go packages and installs their exported named types into a
// registry.
type Scanner struct {
	// Dir is the working directory for package loading ("" = process cwd).
	Dir string

	Warn io.Writer
}

// Scan loads the packages matched by patterns and registers their types.
func (s *Scanner) Scan(reg *catalog.Registry, patterns ...string) error {
	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedImports |
			packages.NeedDeps,
		Dir: s.Dir,
		Env: append(os.Environ(), "GOWORK=off"),
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return fmt.Errorf("loading packages: %w", err)
	}

	var errs []string
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", pkg.PkgPath, e.Msg))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("package errors:\n  %s", strings.Join(errs, "\n  "))
	}

	conv := NewConverter(reg)
	for _, pkg := range pkgs {
		if pkg.Types != nil {
			conv.ScanPackage(pkg.Types)
		}
	}
	conv.LinkInterfaces()
	return nil
}

// Converter translates go/types objects into descriptors. It is exported
// separately from Scanner so in-memory type graphs (tests, generated
// packages) can be converted without a toolchain load.
type Converter struct {
	reg   *catalog.Registry
	cache map[string]*typesys.TypeDescriptor

	// scanned pairs each converted named type with its descriptor for the
	// interface-satisfaction post-pass.
	scanned []scannedType
}

type scannedType struct {
	named *types.Named
	desc  *typesys.TypeDescriptor
}

func NewConverter(reg *catalog.Registry) *Converter {
	return &Converter{
		reg:   reg,
		cache: make(map[string]*typesys.TypeDescriptor),
	}
}

// ScanPackage converts every exported named type declared in p, plus the
// package-level constructor functions following the New<Type> convention.
func (c *Converter) ScanPackage(p *types.Package) {
	scope := p.Scope()
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		tn, ok := obj.(*types.TypeName)
		if !ok || !tn.Exported() {
			continue
		}
		if named, ok := tn.Type().(*types.Named); ok {
			c.convertNamed(named)
		}
	}
	// Second pass: constructor functions need their result types converted.
	for _, name := range scope.Names() {
		fn, ok := scope.Lookup(name).(*types.Func)
		if !ok || !fn.Exported() {
			continue
		}
		c.maybeConstructor(fn)
	}
}

// LinkInterfaces computes interface satisfaction across everything scanned so
// far: each non-interface type gets the scanned interfaces it implements, in
// scan order. Generic interface definitions are skipped — satisfaction is
// only decidable for instantiated types.
func (c *Converter) LinkInterfaces() {
	for _, candidate := range c.scanned {
		iface, ok := candidate.named.Underlying().(*types.Interface)
		if !ok || candidate.named.TypeParams().Len() > 0 {
			continue
		}
		for _, st := range c.scanned {
			if st.named == candidate.named {
				continue
			}
			if _, isIface := st.named.Underlying().(*types.Interface); isIface {
				continue
			}
			if st.named.TypeParams().Len() > 0 {
				continue
			}
			if types.Implements(st.named, iface) || types.Implements(types.NewPointer(st.named), iface) {
				st.desc.Interfaces = append(st.desc.Interfaces, candidate.desc)
			}
		}
	}
}

func (c *Converter) convertNamed(named *types.Named) *typesys.TypeDescriptor {
	fqn := namedName(named)
	if d, ok := c.cache[fqn]; ok {
		return d
	}
	d := &typesys.TypeDescriptor{Name: fqn}
	// Cache before descending: method signatures may refer back to the type.
	c.cache[fqn] = d

	if tparams := named.TypeParams(); tparams != nil && tparams.Len() > 0 {
		d.IsDefinition = true
		for i := 0; i < tparams.Len(); i++ {
			tp := tparams.At(i)
			d.GenericParams = append(d.GenericParams, &typesys.TypeDescriptor{
				Name:          tp.Obj().Name(),
				IsPlaceholder: true,
				Bound:         c.constraintBound(tp),
			})
		}
	}

	if st, ok := named.Underlying().(*types.Struct); ok {
		d.Base = c.embeddedBase(st)
	}

	methods := c.convertMethods(named, d)
	c.reg.Register(d, methods...)
	c.scanned = append(c.scanned, scannedType{named: named, desc: d})
	return d
}

// embeddedBase maps the first embedded named struct field to the base type,
// the closest Go analogue of an inheritance chain.
func (c *Converter) embeddedBase(st *types.Struct) *typesys.TypeDescriptor {
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if !f.Embedded() {
			continue
		}
		t := f.Type()
		if ptr, ok := t.(*types.Pointer); ok {
			t = ptr.Elem()
		}
		if named, ok := t.(*types.Named); ok {
			if _, isStruct := named.Underlying().(*types.Struct); isStruct {
				return c.convertNamed(named)
			}
		}
	}
	return nil
}

func (c *Converter) convertMethods(named *types.Named, declaring *typesys.TypeDescriptor) []*typesys.MethodDescriptor {
	var out []*typesys.MethodDescriptor
	// The pointer method set covers both value- and pointer-receiver methods.
	mset := types.NewMethodSet(types.NewPointer(named))
	for i := 0; i < mset.Len(); i++ {
		fn, ok := mset.At(i).Obj().(*types.Func)
		if !ok || !fn.Exported() {
			continue
		}
		sig, ok := fn.Type().(*types.Signature)
		if !ok {
			continue
		}
		out = append(out, c.convertSignature(fn.Name(), declaring, sig, false))
	}
	return out
}

// maybeConstructor registers package-level New<Type> functions as
// constructors of their result type.
func (c *Converter) maybeConstructor(fn *types.Func) {
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Results().Len() == 0 {
		return
	}
	res := sig.Results().At(0).Type()
	if ptr, ok := res.(*types.Pointer); ok {
		res = ptr.Elem()
	}
	named, ok := res.(*types.Named)
	if !ok {
		return
	}
	d, cached := c.cache[namedName(named)]
	if !cached {
		return
	}
	want := "new" + strings.ToLower(named.Obj().Name())
	if strings.ToLower(fn.Name()) != want && strings.ToLower(fn.Name()) != "new" {
		return
	}
	m := c.convertSignature(fn.Name(), d, sig, true)
	c.reg.AddMethods(d, m)
}

func (c *Converter) convertSignature(name string, declaring *typesys.TypeDescriptor, sig *types.Signature, isCtor bool) *typesys.MethodDescriptor {
	m := &typesys.MethodDescriptor{
		Name:          name,
		Declaring:     declaring,
		IsConstructor: isCtor,
		IsPublic:      true,
	}
	if tparams := sig.TypeParams(); tparams != nil && tparams.Len() > 0 {
		for i := 0; i < tparams.Len(); i++ {
			tp := tparams.At(i)
			m.GenericParams = append(m.GenericParams, &typesys.TypeDescriptor{
				Name:          tp.Obj().Name(),
				IsPlaceholder: true,
				Bound:         c.constraintBound(tp),
			})
		}
	}
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		pd := c.convertParam(p.Name(), p.Type(), m)
		if sig.Variadic() && i == params.Len()-1 {
			pd.IsArray = true
			if slice, ok := p.Type().(*types.Slice); ok {
				inner := c.convertParam(p.Name(), slice.Elem(), m)
				pd.Type = inner.Type
				pd.IsGenericPlaceholder = inner.IsGenericPlaceholder
			}
		}
		m.Params = append(m.Params, pd)
	}
	if results := sig.Results(); results.Len() > 0 {
		rd := c.convertParam("", results.At(0).Type(), m)
		m.Return = rd.Type
	}
	return m
}

func (c *Converter) convertParam(name string, t types.Type, owner *typesys.MethodDescriptor) *typesys.ParamDescriptor {
	pd := &typesys.ParamDescriptor{Name: name}
	switch tt := t.(type) {
	case *types.Pointer:
		pd.IsByRef = true
		t = tt.Elem()
	case *types.Slice:
		pd.IsArray = true
		t = tt.Elem()
	}
	pd.Type = c.convertType(t)
	if tp, ok := t.(*types.TypeParam); ok {
		for _, g := range owner.GenericParams {
			if g.Name == tp.Obj().Name() {
				pd.Type = g
				pd.IsGenericPlaceholder = true
				break
			}
		}
	}
	return pd
}

func (c *Converter) convertType(t types.Type) *typesys.TypeDescriptor {
	switch tt := t.(type) {
	case *types.Basic:
		switch tt.Kind() {
		case types.Int:
			return catalog.Int
		case types.Int64:
			return catalog.Int64
		case types.Float64:
			return catalog.Float64
		case types.String:
			return catalog.String
		case types.Bool:
			return catalog.Bool
		default:
			return &typesys.TypeDescriptor{Name: tt.Name(), Base: catalog.Object}
		}
	case *types.Named:
		return c.convertNamed(tt)
	case *types.TypeParam:
		return &typesys.TypeDescriptor{
			Name:          tt.Obj().Name(),
			IsPlaceholder: true,
			Bound:         c.constraintBound(tt),
		}
	case *types.Pointer:
		return c.convertType(tt.Elem())
	case *types.Slice:
		return c.convertType(tt.Elem())
	case *types.Interface:
		return catalog.Object
	default:
		return &typesys.TypeDescriptor{Name: types.TypeString(t, nil), Base: catalog.Object}
	}
}

// constraintBound maps a type parameter's constraint to an upper bound
// descriptor. Unconstrained parameters (any) get a nil bound.
func (c *Converter) constraintBound(tp *types.TypeParam) *typesys.TypeDescriptor {
	constraint := tp.Constraint()
	if constraint == nil {
		return nil
	}
	s := types.TypeString(constraint, nil)
	if s == "any" || s == "interface{}" {
		return nil
	}
	if named, ok := constraint.(*types.Named); ok {
		return c.convertNamed(named)
	}
	return &typesys.TypeDescriptor{Name: s, Base: catalog.Object}
}

func namedName(named *types.Named) string {
	obj := named.Obj()
	if obj.Pkg() == nil {
		return obj.Name()
	}
	return obj.Pkg().Path() + "." + obj.Name()
}
