package db

import (
	"fmt"
	"strings"
)

// Where accumulates numbered predicates joined with AND.
type Where struct {
	conds []string
	args  []interface{}
}

// Add appends cond with arg bound to the next placeholder. Every %[1]d or
// %d verb in cond is replaced by that placeholder's index.
func (w *Where) Add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

// Contains matches text as a case-insensitive substring of any of the
// columns. Blank text adds nothing.
func (w *Where) Contains(text string, columns ...string) {
	text = strings.TrimSpace(text)
	if text == "" || len(columns) == 0 {
		return
	}
	w.args = append(w.args, LikePattern(text))
	n := len(w.args)
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf(`LOWER(%s) LIKE $%d ESCAPE '\'`, col, n)
	}
	if len(parts) == 1 {
		w.conds = append(w.conds, parts[0])
		return
	}
	w.conds = append(w.conds, "("+strings.Join(parts, " OR ")+")")
}

// SQL renders " WHERE ..." or an empty string.
func (w *Where) SQL() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *Where) Args() []interface{} { return w.args }

// Page binds limit and offset and returns the matching clause.
func (w *Where) Page(limit, offset int) string {
	w.args = append(w.args, limit, offset)
	n := len(w.args)
	return fmt.Sprintf(` LIMIT $%d OFFSET $%d`, n-1, n)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern lowercases s, escapes LIKE wildcards and wraps it in %.
func LikePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
