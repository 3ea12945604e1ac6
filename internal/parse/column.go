package parse

import "regexp"

// Column names a column a driver reported as missing. Table is empty when
// the driver did not say.
type Column struct {
	Table string
	Name  string
}

type columnRe struct {
	re          *regexp.Regexp
	table, name int
}

var missingColumnRes = []columnRe{
	// postgres: column "linen_exchanged" of relation "housekeeping_tasks" does not exist
	{regexp.MustCompile(`column "([A-Za-z0-9_]+)"(?: of relation "([^"]+)")? does not exist`), 2, 1},
	// sqlite insert: table housekeeping_tasks has no column named linen_exchanged
	{regexp.MustCompile(`table "?([A-Za-z0-9_]+)"? has no column named ([A-Za-z0-9_]+)`), 1, 2},
	// sqlite update/select: no such column: housekeeping_tasks.linen_exchanged
	{regexp.MustCompile(`no such column: (?:"?([A-Za-z0-9_]+)"?\.)?"?([A-Za-z0-9_]+)"?`), 1, 2},
}

// MissingColumn extracts the column from a driver error message that
// reports an unknown column. It returns false when msg is some other error.
func MissingColumn(msg string) (Column, bool) {
	for _, c := range missingColumnRes {
		if m := c.re.FindStringSubmatch(msg); m != nil {
			return Column{Table: m[c.table], Name: m[c.name]}, true
		}
	}
	return Column{}, false
}
