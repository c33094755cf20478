package syncrule

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/roach88/dirsync/internal/props"
)

// placeholder matches ${column}. Anything that does not match is literal text.
var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// Expression is a parsed source expression: literal text interleaved with
// ${column} placeholders.
type Expression struct {
	raw   string
	parts []part
}

type part struct {
	literal string
	column  string // set for placeholders
}

// ParseExpression splits s into literal text and placeholders. It never
// fails; text that only looks like a placeholder stays literal.
func ParseExpression(s string) Expression {
	e := Expression{raw: s}
	last := 0
	for _, loc := range placeholder.FindAllStringSubmatchIndex(s, -1) {
		if loc[0] > last {
			e.parts = append(e.parts, part{literal: s[last:loc[0]]})
		}
		e.parts = append(e.parts, part{column: s[loc[2]:loc[3]]})
		last = loc[1]
	}
	if last < len(s) {
		e.parts = append(e.parts, part{literal: s[last:]})
	}
	return e
}

// String returns the expression as written.
func (e Expression) String() string { return e.raw }

// IsEmpty reports whether the expression has no text at all.
func (e Expression) IsEmpty() bool { return len(e.parts) == 0 }

// IsColumnReference reports whether the expression is exactly one
// placeholder with no surrounding text.
func (e Expression) IsColumnReference() bool {
	return len(e.parts) == 1 && e.parts[0].column != ""
}

// Column returns the referenced column of a column reference, or "".
func (e Expression) Column() string {
	if !e.IsColumnReference() {
		return ""
	}
	return e.parts[0].column
}

// Columns returns every column referenced by a placeholder, in order.
func (e Expression) Columns() []string {
	var cols []string
	for _, p := range e.parts {
		if p.column != "" {
			cols = append(cols, p.column)
		}
	}
	return cols
}

// Resolve produces the raw value for row.
//
// A column reference yields the column's value verbatim, or Null when the
// column is absent. Any other expression yields a String with every
// placeholder substituted by the column's text ("" when absent).
func (e Expression) Resolve(row props.Dict) props.Value {
	if e.IsColumnReference() {
		v, ok := row[e.parts[0].column]
		if !ok || v == nil {
			return props.Null{}
		}
		return props.Clone(v)
	}

	var b strings.Builder
	for _, p := range e.parts {
		if p.column == "" {
			b.WriteString(p.literal)
			continue
		}
		if v, ok := row[p.column]; ok && v != nil {
			b.WriteString(props.Text(v))
		}
	}
	return props.String(b.String())
}

// ColumnChoice is one selectable source column for a destination field.
type ColumnChoice struct {
	Expression string `json:"expression"`
	Label      string `json:"label"`
}

// SourceColumnChoices lists the columns of a source as column-reference
// expressions, in natural order (host2 before host10).
func SourceColumnChoices(columns []string) []ColumnChoice {
	out := make([]ColumnChoice, 0, len(columns))
	for _, col := range columns {
		out = append(out, ColumnChoice{Expression: "${" + col + "}", Label: col})
	}
	sortNatural(out, func(c ColumnChoice) string { return c.Label })
	return out
}

// TemplateChoices lists template names as literal expressions, in natural
// order. Used for the import destination.
func TemplateChoices(templates []string) []ColumnChoice {
	out := make([]ColumnChoice, 0, len(templates))
	for _, name := range templates {
		out = append(out, ColumnChoice{Expression: name, Label: name})
	}
	sortNatural(out, func(c ColumnChoice) string { return c.Label })
	return out
}

func sortNatural[T any](items []T, key func(T) string) {
	// insertion sort keeps equal labels stable and lists are short
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && naturalLess(key(items[j]), key(items[j-1])); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

// naturalLess compares strings treating runs of digits as numbers.
func naturalLess(a, b string) bool {
	ar, br := []rune(a), []rune(b)
	i, j := 0, 0
	for i < len(ar) && j < len(br) {
		if unicode.IsDigit(ar[i]) && unicode.IsDigit(br[j]) {
			si := i
			for i < len(ar) && unicode.IsDigit(ar[i]) {
				i++
			}
			sj := j
			for j < len(br) && unicode.IsDigit(br[j]) {
				j++
			}
			na := strings.TrimLeft(string(ar[si:i]), "0")
			nb := strings.TrimLeft(string(br[sj:j]), "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if ar[i] != br[j] {
			return ar[i] < br[j]
		}
		i++
		j++
	}
	return len(ar)-i < len(br)-j
}
