// Package snapcache persists catalog snapshots so repeat sessions skip the
// go/packages load. Snapshots are stored in a sqlite database keyed by a hash
// of the scanned package list plus GOOS/GOARCH, mirroring how dependency
// changes invalidate the key. Referential links between descriptors are
// flattened to names on store and re-linked on load.
package snapcache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/funvibe/dispatch/internal/catalog"
	"github.com/funvibe/dispatch/internal/typesys"
)

// Store is an open snapshot database. Explicit lifecycle: Open before the
// session, Close after; no background work.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the snapshot database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot db: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		key        TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		payload    BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing snapshot db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Key derives the cache key for a package list. The same packages on a
// different platform produce a different key.
func Key(packages []string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(packages, "\n")))
	h.Write([]byte(runtime.GOOS + "/" + runtime.GOARCH))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Snapshot is the serialized form of a registry's scanned types.
type Snapshot struct {
	Types []FlatType `json:"types"`
}

// FlatType flattens a TypeDescriptor: referential links become names.
type FlatType struct {
	Name          string       `json:"name"`
	Base          string       `json:"base,omitempty"`
	Interfaces    []string     `json:"interfaces,omitempty"`
	GenericParams []FlatParam  `json:"generic_params,omitempty"`
	IsDefinition  bool         `json:"is_definition,omitempty"`
	Methods       []FlatMethod `json:"methods,omitempty"`
}

type FlatMethod struct {
	Name          string      `json:"name"`
	IsConstructor bool        `json:"is_constructor,omitempty"`
	IsStatic      bool        `json:"is_static,omitempty"`
	Params        []FlatParam `json:"params,omitempty"`
	GenericParams []FlatParam `json:"generic_params,omitempty"`
	Return        string      `json:"return,omitempty"`
	Attributes    []string    `json:"attributes,omitempty"`
}

type FlatParam struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Bound       string `json:"bound,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
	ByRef       bool   `json:"by_ref,omitempty"`
	Array       bool   `json:"array,omitempty"`
}

// Lookup fetches the snapshot stored under key, if any.
func (s *Store) Lookup(key string) (*Snapshot, bool, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM snapshots WHERE key = ?`, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, false, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, true, nil
}

// Put stores (or replaces) the snapshot under key.
func (s *Store) Put(key string, snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO snapshots (key, created_at, payload) VALUES (?, ?, ?)`,
		key, time.Now().UTC().Format(time.RFC3339), payload)
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Encode flattens the given types (with their registry methods) into a
// snapshot.
func Encode(reg *catalog.Registry, types []*typesys.TypeDescriptor) *Snapshot {
	snap := &Snapshot{}
	for _, t := range types {
		ft := FlatType{
			Name:         t.Name,
			IsDefinition: t.IsDefinition,
		}
		if t.Base != nil {
			ft.Base = t.Base.Name
		}
		for _, iface := range t.Interfaces {
			ft.Interfaces = append(ft.Interfaces, iface.String())
		}
		for _, g := range t.GenericParams {
			ft.GenericParams = append(ft.GenericParams, flattenPlaceholder(g))
		}
		for _, m := range reg.Methods(t) {
			fm := FlatMethod{
				Name:          m.Name,
				IsConstructor: m.IsConstructor,
				IsStatic:      m.IsStatic,
				Attributes:    m.Attributes,
			}
			if m.Return != nil {
				fm.Return = m.Return.String()
			}
			for _, g := range m.GenericParams {
				fm.GenericParams = append(fm.GenericParams, flattenPlaceholder(g))
			}
			for _, p := range m.Params {
				fp := FlatParam{
					Name:        p.Name,
					Placeholder: p.IsGenericPlaceholder,
					ByRef:       p.IsByRef,
					Array:       p.IsArray,
				}
				if p.Type != nil {
					fp.Type = p.Type.String()
				}
				fm.Params = append(fm.Params, fp)
			}
			ft.Methods = append(ft.Methods, fm)
		}
		snap.Types = append(snap.Types, ft)
	}
	return snap
}

func flattenPlaceholder(g *typesys.TypeDescriptor) FlatParam {
	fp := FlatParam{Name: g.Name, Placeholder: g.IsPlaceholder}
	if g.Bound != nil {
		fp.Bound = g.Bound.Name
	}
	return fp
}

// Decode installs a snapshot into the registry, re-linking bases and
// interfaces by name in two passes. Methods come back descriptor-only: an
// invocation binding is not serializable.
func Decode(reg *catalog.Registry, snap *Snapshot) {
	resolve := func(name string) *typesys.TypeDescriptor {
		if name == "" {
			return nil
		}
		if t, ok := reg.Lookup(name); ok {
			return t
		}
		t := &typesys.TypeDescriptor{Name: name, Base: catalog.Object}
		reg.Register(t)
		return t
	}

	// First pass: create every type shell so links can resolve.
	for _, ft := range snap.Types {
		t := &typesys.TypeDescriptor{Name: ft.Name, IsDefinition: ft.IsDefinition}
		for _, g := range ft.GenericParams {
			t.GenericParams = append(t.GenericParams, inflatePlaceholder(g, resolve))
		}
		reg.Register(t)
	}

	// Second pass: link bases, interfaces and methods.
	for _, ft := range snap.Types {
		t, _ := reg.Lookup(ft.Name)
		t.Base = resolve(ft.Base)
		for _, name := range ft.Interfaces {
			t.Interfaces = append(t.Interfaces, resolve(name))
		}
		for _, fm := range ft.Methods {
			m := &typesys.MethodDescriptor{
				Name:          fm.Name,
				Declaring:     t,
				IsConstructor: fm.IsConstructor,
				IsStatic:      fm.IsStatic,
				IsPublic:      true,
				Return:        resolve(fm.Return),
				Attributes:    fm.Attributes,
			}
			for _, g := range fm.GenericParams {
				m.GenericParams = append(m.GenericParams, inflatePlaceholder(g, resolve))
			}
			for _, fp := range fm.Params {
				pd := &typesys.ParamDescriptor{
					Name:                 fp.Name,
					IsGenericPlaceholder: fp.Placeholder,
					IsByRef:              fp.ByRef,
					IsArray:              fp.Array,
				}
				if fp.Placeholder {
					for _, g := range m.GenericParams {
						if g.Name == fp.Type {
							pd.Type = g
							break
						}
					}
				}
				if pd.Type == nil {
					pd.Type = resolve(fp.Type)
				}
				m.Params = append(m.Params, pd)
			}
			reg.AddMethods(t, m)
		}
	}
}

func inflatePlaceholder(fp FlatParam, resolve func(string) *typesys.TypeDescriptor) *typesys.TypeDescriptor {
	return &typesys.TypeDescriptor{
		Name:          fp.Name,
		IsPlaceholder: fp.Placeholder,
		Bound:         resolve(fp.Bound),
	}
}
