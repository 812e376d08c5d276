package variantcfg

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/condaforge/condabuild/internal/template"
)

// Hash is a variant's content hash: "h" followed by 7 hex characters,
// derived from the assignment's sorted (key, value) pairs. Two
// assignments with the same entries hash equal regardless of the
// order they were built or iterated in (spec §8 property 5).
type Hash string

// ComputeHash serializes a in normalized-key lexicographic order and
// hashes the result with SHA-256, keeping the first 7 hex characters
// (spec §4.3). Keys not present in a contribute nothing — two
// assignments over different dimension sets only collide if every
// entry present in either is equal, which in practice means they must
// share the same key set.
func ComputeHash(a Assignment) Hash {
	keys := make([]NormalizedKey, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(string(k))
		sb.WriteByte('=')
		sb.WriteString(serializeValue(a[k]))
		sb.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return Hash("h" + hex.EncodeToString(sum[:])[:7])
}

// serializeValue renders a Variable the way ComputeHash wants it: the
// value's rendered string form, with list entries joined by a
// separator that cannot appear in a conda key/version token.
func serializeValue(v Variable) string {
	if v.Kind() == template.KindList {
		parts := v.AsList()
		out := make([]string, len(parts))
		for i, p := range parts {
			out[i] = serializeValue(p)
		}
		return strings.Join(out, "|")
	}
	return v.AsString()
}

func (h Hash) String() string { return string(h) }
