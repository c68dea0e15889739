package typesys

// maxChainDepth bounds base-chain and interface walks. Catalogs are built from
// scanned sources and may contain malformed cycles; the tester fails instead
// of recursing forever.
const maxChainDepth = 64

// AssignableFrom reports whether a value of type src may be used where dst is
// expected: identity, base-chain inheritance, or interface implementation.
// An unconstrained placeholder dst accepts anything; a bounded placeholder
// accepts whatever its bound accepts.
func AssignableFrom(dst, src *TypeDescriptor) bool {
	if dst == nil || src == nil {
		return false
	}
	if dst.IsPlaceholder {
		if dst.Bound == nil {
			return true
		}
		return AssignableFrom(dst.Bound, src)
	}
	for cur, depth := src, 0; cur != nil && depth < maxChainDepth; cur, depth = cur.Base, depth+1 {
		if cur.Equal(dst) {
			return true
		}
		if implementsInterface(cur, dst, 0) {
			return true
		}
	}
	return false
}

func implementsInterface(t, iface *TypeDescriptor, depth int) bool {
	if depth >= maxChainDepth {
		return false
	}
	for _, i := range t.Interfaces {
		if i.Equal(iface) {
			return true
		}
		if implementsInterface(i, iface, depth+1) {
			return true
		}
	}
	return false
}

// AssignableToGeneric decides whether concrete is assignable to the generic
// type or interface target, possibly through an implemented interface. The
// returned descriptor is the matched interface, or nil when concrete itself
// matched. With strict set and a closed target, the whole test is retried
// against the target's open definition when the first pass fails.
//
// Multiple qualifying interfaces are not ranked: the first found in
// declaration order wins. This is an intentionally simple policy, not full
// variance-aware resolution.
func AssignableToGeneric(concrete, target *TypeDescriptor, strict bool) (bool, *TypeDescriptor) {
	if concrete == nil || target == nil {
		return false, nil
	}
	// Strict retry is a bounded two-pass loop rather than re-entrant recursion.
	for pass := 0; pass < 2; pass++ {
		if ok, iface := assignableToGeneric(concrete, target); ok {
			return true, iface
		}
		if !strict || pass > 0 {
			return false, nil
		}
		def := target.GenericDefinition()
		if def == nil || def == target || !target.IsClosedGeneric() {
			return false, nil
		}
		target = def
	}
	return false, nil
}

func assignableToGeneric(concrete, target *TypeDescriptor) (bool, *TypeDescriptor) {
	targetDef := target.GenericDefinition()
	for cur, depth := concrete, 0; cur != nil && depth < maxChainDepth; cur, depth = cur.Base, depth+1 {
		// The type itself is a closed generic of the requested definition.
		if def := cur.GenericDefinition(); def != nil && def != cur && def.Equal(target) {
			return true, nil
		}
		// Interfaces transitively through their own interface lists; the base
		// chain is covered by the outer walk.
		if ok, iface := matchInterfaces(cur, target, targetDef, 0); ok {
			return true, iface
		}
	}
	return false, nil
}

func matchInterfaces(t, target, targetDef *TypeDescriptor, depth int) (bool, *TypeDescriptor) {
	if depth >= maxChainDepth {
		return false, nil
	}
	for _, iface := range t.Interfaces {
		ifaceDef := iface.GenericDefinition()
		if ifaceDef != nil && ifaceDef.Equal(target) {
			return true, iface
		}
		// target is itself a closed generic of the same family: compare the
		// single generic argument.
		if ifaceDef != nil && targetDef != nil && !target.IsDefinition && ifaceDef.Equal(targetDef) {
			if argumentCompatible(target, iface) {
				return true, iface
			}
		}
		if ok, nested := matchInterfaces(iface, target, targetDef, depth+1); ok {
			return true, nested
		}
	}
	return false, nil
}

// argumentCompatible compares the single generic argument of a closed target
// against the candidate interface's argument: the target argument may be an
// open placeholder whose upper bound is assignable-from the interface's
// argument, or the interface's argument may be directly assignable to it.
func argumentCompatible(target, iface *TypeDescriptor) bool {
	if len(target.GenericParams) != 1 || len(iface.GenericParams) != 1 {
		return false
	}
	ta, ia := target.GenericParams[0], iface.GenericParams[0]
	if ta.IsPlaceholder {
		return ta.Bound == nil || AssignableFrom(ta.Bound, ia)
	}
	return AssignableFrom(ta, ia)
}
