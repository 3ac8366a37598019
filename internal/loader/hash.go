package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// identityKey joins the canonical identity fields of row i.
func identityKey(t *dataset.Table, i int) string {
	parts := make([]string, len(catalog.IdentityColumns))
	for j, name := range catalog.IdentityColumns {
		if col, ok := t.Column(name); ok {
			parts[j] = col.Get(i).String()
		}
	}
	return strings.Join(parts, "\x1f")
}

func fastHash(key string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(key))
}

func strongHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// HashIDs computes the row identity of every row of t. A row repeating an earlier
// identity tuple gets its occurrence number folded into the key, so the n-th copy
// of a tuple always hashes the same way; those rows are returned as duplicates. A
// collision of the fast hash between distinct keys switches the whole table to
// the collision-resistant hash.
func HashIDs(t *dataset.Table) (ids []string, duplicates []int) {
	keys := make([]string, t.Len())
	seenKeys := make(map[string]int, t.Len())
	for i := range keys {
		key := identityKey(t, i)
		n := seenKeys[key]
		seenKeys[key] = n + 1
		if n > 0 {
			duplicates = append(duplicates, i)
			key += "\x1f#" + strconv.Itoa(n)
		}
		keys[i] = key
	}

	ids = make([]string, len(keys))
	seen := make(map[string]bool, len(keys))
	for i, k := range keys {
		ids[i] = fastHash(k)
		if seen[ids[i]] {
			return strongIDs(keys), duplicates
		}
		seen[ids[i]] = true
	}
	return ids, duplicates
}

func strongIDs(keys []string) []string {
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strongHash(k)
	}
	return ids
}

// AssignIDs keys the rows of ds by their identity hash and returns the indexes of
// rows that repeat an earlier identity tuple.
func AssignIDs(ds *dataset.Dataset) ([]int, error) {
	ids, dups := HashIDs(ds.Table)
	return dups, ds.Table.SetIDs(ids)
}
