package postgres

import (
	"fmt"
	"strings"
)

// Where accumulates AND-ed predicates with positional arguments for search
// queries built from optional filters.
type Where struct {
	clauses []string
	args    []any
}

// Add appends a predicate. Each "?" in clause is replaced by the next
// positional placeholder.
func (w *Where) Add(clause string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

// Arg registers an argument without a predicate and returns its placeholder.
func (w *Where) Arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *Where) Args() []any {
	return w.args
}

// EscapeLike escapes LIKE wildcards in user input.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
