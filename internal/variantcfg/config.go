package variantcfg

import (
	"fmt"
	"sort"

	"github.com/condaforge/condabuild/internal/diag"
	"github.com/condaforge/condabuild/internal/template"
)

// Variable is the tagged scalar type from spec §3: string, signed
// integer, boolean, or ordered list of variables. It is exactly
// template.Value — the same string/int/bool/version-number
// disambiguation rule governs both a recipe's rendered template
// output and a variant matrix's raw entries.
type Variable = template.Value

// Config is a variant configuration: a mapping from normalized
// dimension key to its ordered list of candidate values, plus the
// zip-key groups that must be traversed in lockstep rather than as an
// independent Cartesian factor.
type Config struct {
	Values  map[NormalizedKey][]Variable
	ZipKeys [][]NormalizedKey
}

// NewConfig returns an empty Config ready for population.
func NewConfig() *Config {
	return &Config{Values: map[NormalizedKey][]Variable{}}
}

// Set assigns the candidate list for key, normalizing it first.
func (c *Config) Set(key string, values []Variable) {
	c.Values[Normalize(key)] = values
}

// AddZipGroup registers a zip-key group, normalizing each member key.
func (c *Config) AddZipGroup(keys []string) {
	norm := make([]NormalizedKey, len(keys))
	for i, k := range keys {
		norm[i] = Normalize(k)
	}
	c.ZipKeys = append(c.ZipKeys, norm)
}

// FromParsed builds a Config from a variant_config.yaml document
// already parsed into raw key/value and zip-key form (spec §3
// "Variant configuration"), the shape recipe.ParseVariantFile returns.
func FromParsed(values map[string][]Variable, zipKeys [][]string) *Config {
	c := NewConfig()
	for k, v := range values {
		c.Set(k, v)
	}
	for _, group := range zipKeys {
		c.AddZipGroup(group)
	}
	return c
}

// zipGroupLen validates that every member of group is present in
// c.Values and all share the same length, per spec §3's zip-key
// invariant. Returns the common length.
func (c *Config) zipGroupLen(group []NormalizedKey) (int, error) {
	length := -1
	for _, k := range group {
		vals, ok := c.Values[k]
		if !ok {
			return 0, &diag.VariantError{Diagnostic: &diag.Diagnostic{
				Kind:    diag.KindMissingZipMember,
				Message: fmt.Sprintf("zip group references undefined key %q", k),
			}}
		}
		if length == -1 {
			length = len(vals)
		} else if len(vals) != length {
			return 0, &diag.VariantError{Diagnostic: &diag.Diagnostic{
				Kind: diag.KindInvalidZipKeyLength,
				Message: fmt.Sprintf(
					"zip group %v has mismatched lengths: key %q has %d values, expected %d",
					group, k, len(vals), length),
			}}
		}
	}
	return length, nil
}

// zipGroupFor returns the zip group containing key, or nil if key is
// not part of any zip group (a singleton dimension).
func (c *Config) zipGroupFor(key NormalizedKey) []NormalizedKey {
	for _, group := range c.ZipKeys {
		for _, k := range group {
			if k == key {
				return group
			}
		}
	}
	return nil
}

// sortedKeys returns c's keys in lexicographic order, used for
// deterministic iteration during expansion (spec §4.2 step 6).
func (c *Config) sortedKeys() []NormalizedKey {
	keys := make([]NormalizedKey, 0, len(c.Values))
	for k := range c.Values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
