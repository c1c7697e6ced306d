package features

// Gate decides whether something is exposed for a browser version. A nil Gate always
// passes.
type Gate func(v *BrowserVersion) bool

// Allows evaluates the gate, treating nil as "always".
func (g Gate) Allows(v *BrowserVersion) bool {
	return g == nil || g(v)
}

// Has passes when every listed feature is enabled.
func Has(fs ...Feature) Gate {
	return func(v *BrowserVersion) bool {
		for _, f := range fs {
			if !v.HasFeature(f) {
				return false
			}
		}
		return true
	}
}

// Not inverts a gate.
func Not(g Gate) Gate {
	return func(v *BrowserVersion) bool { return !g.Allows(v) }
}

// Families passes for versions of any of the listed families.
func Families(fams ...Family) Gate {
	return func(v *BrowserVersion) bool {
		for _, f := range fams {
			if v.family == f {
				return true
			}
		}
		return false
	}
}
