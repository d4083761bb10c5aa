package strategy_test

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/relsnap/cdc/internal/cdctypes"
)

var partitionPredicateRe = regexp.MustCompile(`MOD\(ABS\(CAST\(COALESCE\((\w+), '0'\) AS INTEGER\)\), (\d+)\) = (\d+)`)
var greaterThanRe = regexp.MustCompile(`^(\w+) > '(.*)'$`)

// matchesWhere evaluates the only two predicate shapes the strategies
// under test generate, so fakeReader can filter without a real SQL
// engine. An empty where matches every row.
func matchesWhere(row cdctypes.Row, where string) bool {
	if where == "" {
		return true
	}
	if m := partitionPredicateRe.FindStringSubmatch(where); m != nil {
		return matchesPartitionPredicate(row, m)
	}
	if m := greaterThanRe.FindStringSubmatch(where); m != nil {
		return matchesGreaterThan(row, m)
	}
	return true
}

func matchesGreaterThan(row cdctypes.Row, m []string) bool {
	col, val := m[1], m[2]
	v, ok := row.Get(col)
	if !ok {
		return false
	}
	return fmt.Sprintf("%v", v) > val
}

func matchesPartitionPredicate(row cdctypes.Row, m []string) bool {
	col := m[1]
	n, _ := strconv.Atoi(m[2])
	i, _ := strconv.Atoi(m[3])

	pk := 0
	if v, ok := row.Get(col); ok && v != nil {
		switch t := v.(type) {
		case int:
			pk = t
		case int64:
			pk = int(t)
		case string:
			pk, _ = strconv.Atoi(strings.TrimSpace(t))
		}
	}
	if pk < 0 {
		pk = -pk
	}
	return n > 0 && pk%n == i
}
