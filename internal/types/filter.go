package types

import (
	"fmt"
	"strings"
)

// Filter is an ordered set of parameterized SQL predicates joined by AND.
// Clauses use `?` markers that Render rewrites to positional placeholders;
// user-supplied values only ever travel through Args.
type Filter struct {
	clauses []string
	args    []any
}

// Add appends a clause. The number of `?` markers must match len(args).
func (f *Filter) Add(clause string, args ...any) {
	f.clauses = append(f.clauses, clause)
	f.args = append(f.args, args...)
}

// Len returns the number of clauses.
func (f *Filter) Len() int { return len(f.clauses) }

// Args returns the accumulated parameter values in clause order.
func (f *Filter) Args() []any { return f.args }

// Clone returns a deep copy so callers can branch a filter
// (e.g. drop the category clause during fallback walks).
func (f *Filter) Clone() *Filter {
	c := &Filter{
		clauses: make([]string, len(f.clauses)),
		args:    make([]any, len(f.args)),
	}
	copy(c.clauses, f.clauses)
	copy(c.args, f.args)
	return c
}

// Render joins the clauses with AND and rewrites `?` markers to $n
// placeholders starting at start. Returns "TRUE" when empty so the result
// can always be spliced after WHERE.
func (f *Filter) Render(start int) (string, []any) {
	if len(f.clauses) == 0 {
		return "TRUE", nil
	}
	var b strings.Builder
	n := start
	for i, clause := range f.clauses {
		if i > 0 {
			b.WriteString(" AND ")
		}
		for _, ch := range clause {
			if ch == '?' {
				fmt.Fprintf(&b, "$%d", n)
				n++
			} else {
				b.WriteRune(ch)
			}
		}
	}
	return b.String(), f.args
}
