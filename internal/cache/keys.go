// Package cache implements the best-effort read cache shared by the
// repository layer. A Coordinator fronts a Store backend (Redis in
// production, an in-process map otherwise) and guarantees that no cache
// failure ever propagates to a caller: reads degrade to misses, writes
// and invalidations to no-ops. Failures are counted and logged behind a
// rate limiter.
package cache

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator delimits the segments of a cache key. Keys are built as
// prefix::entity::segment::... so that entire namespaces can be dropped
// with a single pattern delete (e.g. prefix::product::list::*).
const KeySeparator = "::"

// JoinKey joins key segments with KeySeparator. Segment order is
// significant: JoinKey("a","b") and JoinKey("b","a") are distinct keys.
func JoinKey(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

// HashPart reduces an arbitrary serializable value (list options, filter
// maps) to a short deterministic key segment. Maps marshal with sorted
// keys and struct fields marshal in declaration order, so equal values
// always produce equal segments across processes.
func HashPart(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Unserializable values still need a stable-ish segment; fall
		// back to the type name so the key remains well-formed.
		return "t" + strings.ReplaceAll(fmt.Sprintf("%T", v), ".", "_")
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}
