package snapcache

import (
	"path/filepath"
	"testing"

	"github.com/funvibe/dispatch/internal/catalog"
	"github.com/funvibe/dispatch/internal/typesys"
)

func TestKey(t *testing.T) {
	a := Key([]string{"./internal/...", "github.com/example/lib"})
	b := Key([]string{"./internal/...", "github.com/example/lib"})
	if a != b {
		t.Errorf("identical package lists must produce the same key: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("key length = %d, want 32", len(a))
	}
	if c := Key([]string{"./internal/..."}); c == a {
		t.Errorf("different package lists must produce different keys")
	}
	if d := Key([]string{"./internal/...", "github.com/example/other"}); d == a {
		t.Errorf("a changed package must change the key")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	key := Key([]string{"./demo/..."})
	if _, ok, err := store.Lookup(key); err != nil || ok {
		t.Fatalf("empty store lookup = %v, %v", ok, err)
	}

	snap := &Snapshot{Types: []FlatType{{Name: "demo.Calc", Base: "object"}}}
	if err := store.Put(key, snap); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok, err := store.Lookup(key)
	if err != nil || !ok {
		t.Fatalf("Lookup after Put = %v, %v", ok, err)
	}
	if len(got.Types) != 1 || got.Types[0].Name != "demo.Calc" {
		t.Errorf("payload = %+v", got)
	}

	// Replacing under the same key keeps a single row.
	snap.Types[0].Base = "demo.Root"
	if err := store.Put(key, snap); err != nil {
		t.Fatalf("replace Put failed: %v", err)
	}
	got, _, _ = store.Lookup(key)
	if got.Types[0].Base != "demo.Root" {
		t.Errorf("Put must replace the stored snapshot, got %+v", got.Types[0])
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := catalog.NewRegistry()
	feeder := &typesys.TypeDescriptor{Name: "demo.IFeeder", Base: catalog.Object}
	animal := &typesys.TypeDescriptor{
		Name:       "demo.Animal",
		Base:       catalog.Object,
		Interfaces: []*typesys.TypeDescriptor{feeder},
	}
	tp := &typesys.TypeDescriptor{Name: "T", IsPlaceholder: true, Bound: animal}
	src.Register(feeder)
	src.Register(animal,
		&typesys.MethodDescriptor{
			Name:          "New",
			Declaring:     animal,
			IsConstructor: true,
			IsPublic:      true,
			Params:        []*typesys.ParamDescriptor{{Name: "name", Type: catalog.String}},
			Return:        animal,
		},
		&typesys.MethodDescriptor{
			Name:          "Adopt",
			Declaring:     animal,
			IsStatic:      true,
			IsPublic:      true,
			GenericParams: []*typesys.TypeDescriptor{tp},
			Params: []*typesys.ParamDescriptor{
				{Name: "pet", Type: tp, IsGenericPlaceholder: true},
				{Name: "tags", Type: catalog.String, IsArray: true},
			},
			Attributes: []string{"demo.attrs.Exported"},
		})

	snap := Encode(src, []*typesys.TypeDescriptor{feeder, animal})

	dst := catalog.NewRegistry()
	Decode(dst, snap)

	got, ok := dst.Lookup("demo.Animal")
	if !ok {
		t.Fatal("decoded registry is missing demo.Animal")
	}
	if got.Base == nil || got.Base.Name != "object" {
		t.Errorf("base link = %v", got.Base)
	}
	if len(got.Interfaces) != 1 || got.Interfaces[0].Name != "demo.IFeeder" {
		t.Errorf("interface links = %v", got.Interfaces)
	}
	// The re-linked interface must be the registry's own descriptor, not a
	// parallel copy.
	if iface, _ := dst.Lookup("demo.IFeeder"); got.Interfaces[0] != iface {
		t.Errorf("interface link must resolve to the registered descriptor")
	}

	methods := dst.Methods(got)
	if len(methods) != 2 {
		t.Fatalf("decoded methods = %d, want 2", len(methods))
	}
	ctor := methods[0]
	if !ctor.IsConstructor || !ctor.IsPublic || ctor.Return != got {
		t.Errorf("constructor = %+v", ctor)
	}
	if len(ctor.Params) != 1 || ctor.Params[0].Type.Name != "string" {
		t.Errorf("constructor params = %+v", ctor.Params)
	}

	adopt := methods[1]
	if len(adopt.GenericParams) != 1 || !adopt.GenericParams[0].IsPlaceholder {
		t.Fatalf("generic params = %+v", adopt.GenericParams)
	}
	if adopt.GenericParams[0].Bound == nil || adopt.GenericParams[0].Bound.Name != "demo.Animal" {
		t.Errorf("placeholder bound = %v", adopt.GenericParams[0].Bound)
	}
	// The placeholder parameter must point at the method's own generic
	// parameter so GenericSlots still works after a round trip.
	if adopt.Params[0].Type != adopt.GenericParams[0] {
		t.Errorf("placeholder param not re-linked: %v", adopt.Params[0].Type)
	}
	if slots := adopt.GenericSlots(); len(slots) != 1 || slots[0] != 0 {
		t.Errorf("GenericSlots = %v", slots)
	}
	if !adopt.Params[1].IsArray {
		t.Errorf("array marker lost: %+v", adopt.Params[1])
	}
	if len(adopt.Attributes) != 1 || adopt.Attributes[0] != "demo.attrs.Exported" {
		t.Errorf("attributes = %v", adopt.Attributes)
	}
	if adopt.Invoke != nil {
		t.Errorf("decoded methods are descriptor-only")
	}
}

func TestDecodeUnknownNamesBecomeStubs(t *testing.T) {
	snap := &Snapshot{Types: []FlatType{{
		Name: "demo.Widget",
		Base: "demo.Unscanned",
	}}}
	reg := catalog.NewRegistry()
	Decode(reg, snap)

	widget, _ := reg.Lookup("demo.Widget")
	if widget.Base == nil || widget.Base.Name != "demo.Unscanned" {
		t.Fatalf("base = %v", widget.Base)
	}
	// The stub is registered and rooted at object so assignability walks
	// still terminate.
	stub, ok := reg.Lookup("demo.Unscanned")
	if !ok || stub.Base != catalog.Object {
		t.Errorf("stub = %v, %v", stub, ok)
	}
}
