// Package variantcfg implements the variant configuration model and
// expansion algorithm (spec §3, §4.2): normalized dimension keys,
// typed Variable values, zip-key grouping, and the deterministic
// Cartesian-product-with-lockstep-groups expansion that turns a
// recipe's free variables plus a variant matrix into the ordered list
// of concrete build assignments.
package variantcfg

import "strings"

// NormalizedKey is a variant dimension identifier canonicalized so
// that `python-version`, `python_version`, and `python.version` all
// compare and hash equal (spec §3, §9 "Variant key normalization").
// The normalized form is also the only form ever serialized back out.
type NormalizedKey string

// Normalize maps '-', '_', and '.' all to '_', the canonical
// separator. Normalization is idempotent: Normalize(Normalize(k)) ==
// Normalize(k) for every k (spec §8 property 1).
func Normalize(key string) NormalizedKey {
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case '-', '.':
			return '_'
		default:
			return r
		}
	}, key)
	return NormalizedKey(replaced)
}

func (k NormalizedKey) String() string { return string(k) }
