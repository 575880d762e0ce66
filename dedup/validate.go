package dedup

import (
	"slices"
	"strconv"
)

// requireColumns returns a SchemaMismatchError naming every column of
// want missing from schema, in order and without repeats.
func requireColumns(schema, want []string) error {
	var missing []string
	for _, c := range want {
		if !slices.Contains(schema, c) && !slices.Contains(missing, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaMismatchError{Missing: missing}
	}
	return nil
}

// uniqueColumns drops repeated names, keeping first positions.
func uniqueColumns(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// freeColumn returns base, or base with the smallest numeric suffix that
// makes it absent from cols.
func freeColumn(cols []string, base string) string {
	name := base
	for i := 1; slices.Contains(cols, name); i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	return name
}
