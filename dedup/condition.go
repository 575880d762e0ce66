package dedup

import "github.com/BrobridgeOrg/go-lakeutil/table"

// matchCondition builds old.c1 = new.c1 AND old.c2 = new.c2 ... over cols
// in order.
func matchCondition(cols []string) *table.Expression {
	target := make([]string, len(cols))
	source := make([]string, len(cols))
	for i, c := range cols {
		target[i] = table.TargetAlias + "." + c
		source[i] = table.SourceAlias + "." + c
	}
	return table.EqualColumns(target, source)
}
