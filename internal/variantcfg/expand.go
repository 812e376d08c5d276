package variantcfg

import (
	"sort"

	"github.com/condaforge/condabuild/internal/template"
)

// Assignment is one concrete variant: a mapping from normalized key
// to the Variable selected for that build.
type Assignment map[NormalizedKey]Variable

// Clone returns a shallow copy of a, safe to mutate independently.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Filter reports whether a agrees with already on every key already
// defines — the pre-filter step of spec §4.2 step 5, used when
// expanding a later multi-output package against an earlier cache
// output's already-resolved variant.
func (a Assignment) Filter(already Assignment) bool {
	for k, v := range already {
		if av, ok := a[k]; ok && !av.Equal(v) {
			return false
		}
	}
	return true
}

// dimension is one factor of the Cartesian product: either a
// zip-locked group (contributing `length` synchronized picks) or a
// singleton key (contributing len(values) independent picks).
type dimension struct {
	keys   []NormalizedKey // 1 for a singleton, >1 for a zip group
	length int
}

func (d dimension) sortKey() NormalizedKey {
	min := d.keys[0]
	for _, k := range d.keys[1:] {
		if k < min {
			min = k
		}
	}
	return min
}

// UndefinedPolicy controls how variables referenced by the recipe but
// absent from the variant config are handled (spec §4.2 step 2).
type UndefinedPolicy int

const (
	// Lenient treats an undefined variable as the empty string.
	Lenient UndefinedPolicy = iota
	// Strict fails expansion if any used variable is undefined.
	Strict
)

// Expand computes every concrete variant assignment the recipe must
// be built under, implementing spec §4.2's algorithm in full:
//  1. usedVars is the set of variable names the recipe actually
//     references (from template free-variable analysis).
//  2. intersect with cfg's keys to get the effective used set;
//     anything in usedVars but absent from cfg resolves per policy.
//  3. partition into zip groups and singletons, validating zip-group
//     length agreement.
//  4. enumerate the Cartesian product.
//  5. drop assignments that disagree with already on shared keys.
//  6. return in a deterministic, sorted-dimension order.
//
// Empty usedVars (after intersection) yields exactly one empty
// assignment — a single build (spec §4.2 "Output").
func Expand(usedVars map[string]bool, cfg *Config, already Assignment, policy UndefinedPolicy) ([]Assignment, error) {
	effective := map[NormalizedKey]bool{}
	for name := range usedVars {
		nk := Normalize(name)
		if _, ok := cfg.Values[nk]; ok {
			effective[nk] = true
		}
		// Variables absent from cfg are not dimensions at all — under
		// both policies they don't multiply the variant space; Strict
		// enforcement of "must be defined" is the stage-1 evaluator's
		// job when it actually renders a template referencing them.
	}

	seenGroups := map[int]bool{}
	var dims []dimension
	for key := range effective {
		if group := cfg.zipGroupFor(key); group != nil {
			idx := groupIndex(cfg.ZipKeys, group)
			if seenGroups[idx] {
				continue
			}
			seenGroups[idx] = true
			length, err := cfg.zipGroupLen(group)
			if err != nil {
				return nil, err
			}
			dims = append(dims, dimension{keys: group, length: length})
		} else {
			dims = append(dims, dimension{keys: []NormalizedKey{key}, length: len(cfg.Values[key])})
		}
	}

	sort.Slice(dims, func(i, j int) bool { return dims[i].sortKey() < dims[j].sortKey() })

	assignments := []Assignment{{}}
	for _, d := range dims {
		var next []Assignment
		for _, base := range assignments {
			for i := 0; i < d.length; i++ {
				a := base.Clone()
				for _, k := range d.keys {
					a[k] = cfg.Values[k][i]
				}
				next = append(next, a)
			}
		}
		assignments = next
	}

	if already != nil {
		var filtered []Assignment
		for _, a := range assignments {
			if a.Filter(already) {
				filtered = append(filtered, a)
			}
		}
		assignments = filtered
	}

	if policy == Lenient {
		for _, name := range sortedStrings(usedVars) {
			nk := Normalize(name)
			if _, ok := cfg.Values[nk]; ok {
				continue
			}
			for _, a := range assignments {
				if _, ok := a[nk]; !ok {
					a[nk] = template.String("")
				}
			}
		}
	}

	return assignments, nil
}

func groupIndex(groups [][]NormalizedKey, target []NormalizedKey) int {
	for i, g := range groups {
		if len(g) != len(target) {
			continue
		}
		match := true
		for j := range g {
			if g[j] != target[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func sortedStrings(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
