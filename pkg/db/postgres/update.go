package postgres

import (
	"fmt"
	"strings"
)

// Changes is an ordered set of column assignments for a partial UPDATE.
// Services diff the stored row against the merged row and only changed
// columns end up in the statement.
type Changes struct {
	columns []string
	values  []any
}

func (c *Changes) Set(column string, value any) {
	for i, col := range c.columns {
		if col == column {
			c.values[i] = value
			return
		}
	}
	c.columns = append(c.columns, column)
	c.values = append(c.values, value)
}

func (c *Changes) Len() int {
	return len(c.columns)
}

func (c *Changes) Columns() []string {
	return append([]string(nil), c.columns...)
}

// Has reports whether column is part of the change set.
func (c *Changes) Has(column string) bool {
	for _, col := range c.columns {
		if col == column {
			return true
		}
	}
	return false
}

// Get returns the value assigned to column.
func (c *Changes) Get(column string) (any, bool) {
	for i, col := range c.columns {
		if col == column {
			return c.values[i], true
		}
	}
	return nil, false
}

// BuildUpdate renders `UPDATE table SET a = $1, b = $2, updated_at = now()
// WHERE key = $3 RETURNING returning`. Column names come from code, never
// from user input.
func BuildUpdate(table, keyColumn string, key any, changes *Changes, returning string) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, changes.Len()+1)

	fmt.Fprintf(&sb, "UPDATE %s SET ", table)
	for i, col := range changes.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		args = append(args, changes.values[i])
		fmt.Fprintf(&sb, "%s = $%d", col, len(args))
	}
	if changes.Len() > 0 {
		sb.WriteString(", ")
	}
	sb.WriteString("updated_at = now()")

	args = append(args, key)
	fmt.Fprintf(&sb, " WHERE %s = $%d", keyColumn, len(args))

	if returning != "" {
		fmt.Fprintf(&sb, " RETURNING %s", returning)
	}
	return sb.String(), args
}
