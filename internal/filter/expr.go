package filter

import (
	"strings"

	"github.com/roach88/dirsync/internal/props"
)

// Expr is a parsed filter expression.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	// Match evaluates the expression against one source row.
	Match(row props.Dict) bool

	// String renders the expression in normalized filter syntax.
	String() string

	exprNode()
}

// Op is a comparison operator.
type Op string

const (
	OpEqual    Op = "="
	OpNotEqual Op = "!="
)

// Compare tests one column against a pattern.
type Compare struct {
	Column  string
	Op      Op
	Pattern string
}

func (Compare) exprNode() {}

// And is true when every term is true.
type And struct {
	Terms []Expr
}

func (And) exprNode() {}

// Or is true when at least one term is true.
type Or struct {
	Terms []Expr
}

func (Or) exprNode() {}

// Not negates its operand.
type Not struct {
	Operand Expr
}

func (Not) exprNode() {}

// Match implements Expr.
func (c Compare) Match(row props.Dict) bool {
	v, ok := lookup(row, c.Column)
	if !ok {
		return false
	}

	if list, isList := v.(props.List); isList {
		hit := false
		for _, elem := range list {
			if !props.IsNull(elem) && matchPattern(c.Pattern, props.Text(elem)) {
				hit = true
				break
			}
		}
		if c.Op == OpNotEqual {
			return !hit
		}
		return hit
	}

	matched := matchPattern(c.Pattern, props.Text(v))
	if c.Op == OpNotEqual {
		return !matched
	}
	return matched
}

// Match implements Expr.
func (a And) Match(row props.Dict) bool {
	for _, term := range a.Terms {
		if !term.Match(row) {
			return false
		}
	}
	return true
}

// Match implements Expr.
func (o Or) Match(row props.Dict) bool {
	for _, term := range o.Terms {
		if term.Match(row) {
			return true
		}
	}
	return false
}

// Match implements Expr.
func (n Not) Match(row props.Dict) bool {
	return !n.Operand.Match(row)
}

// String implements Expr.
func (c Compare) String() string {
	return c.Column + string(c.Op) + quoteIfNeeded(c.Pattern)
}

// String implements Expr.
func (a And) String() string {
	parts := make([]string, len(a.Terms))
	for i, term := range a.Terms {
		if _, isOr := term.(Or); isOr {
			parts[i] = "(" + term.String() + ")"
			continue
		}
		parts[i] = term.String()
	}
	return strings.Join(parts, "&")
}

// String implements Expr.
func (o Or) String() string {
	parts := make([]string, len(o.Terms))
	for i, term := range o.Terms {
		parts[i] = term.String()
	}
	return strings.Join(parts, "|")
}

// String implements Expr.
func (n Not) String() string {
	return "!(" + n.Operand.String() + ")"
}

// Columns returns the distinct columns referenced by e, in order of first
// appearance.
func Columns(e Expr) []string {
	var cols []string
	seen := make(map[string]bool)
	var walk func(Expr)
	walk = func(e Expr) {
		switch node := e.(type) {
		case Compare:
			if !seen[node.Column] {
				seen[node.Column] = true
				cols = append(cols, node.Column)
			}
		case And:
			for _, t := range node.Terms {
				walk(t)
			}
		case Or:
			for _, t := range node.Terms {
				walk(t)
			}
		case Not:
			walk(node.Operand)
		}
	}
	walk(e)
	return cols
}

// lookup resolves a column, falling back to a dotted path through nested
// dicts. Null counts as absent.
func lookup(row props.Dict, column string) (props.Value, bool) {
	if v, ok := row[column]; ok {
		return v, !props.IsNull(v)
	}
	if !strings.Contains(column, ".") {
		return nil, false
	}

	var cur props.Value = row
	for _, part := range strings.Split(column, ".") {
		d, ok := cur.(props.Dict)
		if !ok {
			return nil, false
		}
		next, ok := d[part]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, !props.IsNull(cur)
}

// matchPattern matches s against a pattern where '*' stands for any run of
// characters (including none).
func matchPattern(pattern, s string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == s
	}

	p, str := 0, 0
	star, mark := -1, 0
	for str < len(s) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			star = p
			mark = str
			p++
		case p < len(pattern) && pattern[p] == s[str]:
			p++
			str++
		case star >= 0:
			p = star + 1
			mark++
			str = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, `&|()"`) || strings.TrimSpace(s) != s {
		return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
	}
	return s
}
