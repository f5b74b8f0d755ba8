// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package binary

// Compatibility is the result of comparing an upgraded module against the
// version it replaces.
type Compatibility struct {
	// StructAndFunctionLinking holds when code linked against the old module
	// still links against the new one.
	StructAndFunctionLinking bool
	// StructLayout holds when values stored under the old module still
	// decode under the new one.
	StructLayout bool
}

// IsFullyCompatible reports whether both properties hold
func (c Compatibility) IsFullyCompatible() bool {
	return c.StructAndFunctionLinking && c.StructLayout
}

// CheckCompatibility compares [newModule] against [oldModule]
func CheckCompatibility(oldModule, newModule *CompiledModule) Compatibility {
	c := Compatibility{StructAndFunctionLinking: true, StructLayout: true}
	oldH, newH := oldModule.Handles(), newModule.Handles()

	for _, oldDef := range oldModule.StructDefs {
		oldHandle := oldModule.StructHandles[oldDef.Handle]
		newDef, ok := newModule.StructDefByName(oldHandle.Name)
		if !ok {
			c.StructAndFunctionLinking = false
			c.StructLayout = false
			continue
		}
		newHandle := newModule.StructHandles[newDef.Handle]
		if oldHandle.Abilities != newHandle.Abilities || oldHandle.TypeParams != newHandle.TypeParams {
			c.StructAndFunctionLinking = false
		}
		if oldDef.Native != newDef.Native || len(oldDef.Fields) != len(newDef.Fields) {
			c.StructLayout = false
			continue
		}
		for i := range oldDef.Fields {
			of, nf := oldDef.Fields[i], newDef.Fields[i]
			if of.Name != nf.Name || oldH.TokenString(of.Type) != newH.TokenString(nf.Type) {
				c.StructLayout = false
				break
			}
		}
	}

	for _, oldDef := range oldModule.FunctionDefs {
		if oldDef.Visibility == Private || oldDef.Visibility == Friend {
			continue
		}
		oldHandle := oldModule.FunctionHandles[oldDef.Handle]
		newDef, ok := newModule.FunctionDefByName(oldHandle.Name)
		if !ok || newDef.Visibility != oldDef.Visibility {
			c.StructAndFunctionLinking = false
			continue
		}
		newHandle := newModule.FunctionHandles[newDef.Handle]
		if !sameTypeParams(oldHandle.TypeParams, newHandle.TypeParams) ||
			oldH.signatureString(oldHandle.Parameters) != newH.signatureString(newHandle.Parameters) ||
			oldH.signatureString(oldHandle.Return) != newH.signatureString(newHandle.Return) {
			c.StructAndFunctionLinking = false
		}
	}
	return c
}

func sameTypeParams(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
