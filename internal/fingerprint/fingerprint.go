// Package fingerprint computes deterministic row fingerprints (C4):
// a pure function from a row and a column selector to a stable
// 32-char lowercase hex digest, independent of database dialect.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const delimiter = "|"

// Wildcard is the selector token meaning "every column, in
// ascending column-name order".
const Wildcard = "*"

// IsWildcard reports whether selector is the single wildcard token.
func IsWildcard(selector []string) bool {
	return len(selector) == 1 && selector[0] == Wildcard
}

// Of computes the fingerprint of row under selector. row is an
// ordered column->value map; selector is either the wildcard ["*"]
// or an explicit list of column names, consulted in the given order.
//
// Under the wildcard, columns holding a nil value are omitted from
// the enumeration entirely rather than contributing an empty token:
// otherwise a newly added always-null column (e.g. a nullable
// deleted_at added by a schema migration) would shift every
// downstream delimiter and change the digest of a row whose observed
// values have not changed. Explicit selectors keep null -> "" since
// the caller named the column and expects it to occupy a fixed
// position in the join.
func Of(row map[string]any, selector []string) string {
	var cols []string
	if IsWildcard(selector) {
		cols = make([]string, 0, len(row))
		for c, v := range row {
			if v == nil {
				continue
			}
			cols = append(cols, c)
		}
		sort.Strings(cols)
	} else {
		cols = selector
	}

	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, stringify(row[c]))
	}

	sum := md5.Sum([]byte(strings.Join(parts, delimiter)))
	return hex.EncodeToString(sum[:])
}

// stringify converts a scalar value to its canonical textual form.
// null -> "", numbers/strings by natural string form, booleans as
// "true"/"false", temporal values in ISO-8601. Deterministic across
// runs and platforms.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case int:
		return strconv.FormatInt(int64(t), 10)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// StringifyPK renders a primary key value the same way state keys are
// stringified elsewhere (row_hashes map keys, deleted-record values).
func StringifyPK(v any) string {
	return stringify(v)
}
