package catalog

import "sort"

// Aliases is the short-name registry for type lookups. It is created at
// session start, passed explicitly to whoever needs it, and discarded when
// the session ends; there is no ambient global table.
type Aliases struct {
	byAlias map[string]string
}

// NewAliases creates an empty alias table, optionally seeded from a map.
func NewAliases(seed map[string]string) *Aliases {
	a := &Aliases{byAlias: make(map[string]string, len(seed))}
	for alias, target := range seed {
		a.byAlias[alias] = target
	}
	return a
}

// Add registers alias for the fully-qualified target name, replacing any
// previous binding.
func (a *Aliases) Add(alias, target string) {
	a.byAlias[alias] = target
}

// Resolve maps an alias to its target name; unknown names pass through
// unchanged, so callers can feed it any user-supplied type name.
func (a *Aliases) Resolve(name string) string {
	if a == nil {
		return name
	}
	if target, ok := a.byAlias[name]; ok {
		return target
	}
	return name
}

// List returns the registered aliases, sorted for deterministic display.
func (a *Aliases) List() []string {
	if a == nil {
		return nil
	}
	out := make([]string, 0, len(a.byAlias))
	for alias := range a.byAlias {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}
