package filter

import (
	"fmt"
	"strings"
)

// SyntaxError reports a malformed filter expression.
type SyntaxError struct {
	Input   string
	Offset  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("filter %q: offset %d: %s", e.Input, e.Offset, e.Message)
}

// Parse parses a filter expression. Surrounding whitespace is ignored.
// An empty (or all-whitespace) input is a syntax error; callers that treat
// "no filter" as "match everything" check for that before calling Parse.
func Parse(input string) (Expr, error) {
	p := &parser{input: input}
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("empty expression")
	}

	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.peek())
	}
	return e, nil
}

// MustParse is like Parse but panics on error. For tests and static tables.
func MustParse(input string) Expr {
	e, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	input string
	pos   int
}

func (p *parser) eof() bool { return p.pos >= len(p.input) }

func (p *parser) peek() byte { return p.input[p.pos] }

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.peek()) {
		p.pos++
	}
}

func (p *parser) errorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Input: p.input, Offset: p.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (Expr, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for {
		p.skipSpace()
		if p.eof() || p.peek() != '|' {
			break
		}
		p.pos++
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return Or{Terms: terms}, nil
}

func (p *parser) parseAnd() (Expr, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for {
		p.skipSpace()
		if p.eof() || p.peek() != '&' {
			break
		}
		p.pos++
		next, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return And{Terms: terms}, nil
}

func (p *parser) parseUnary() (Expr, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("unexpected end of expression")
	}

	switch p.peek() {
	case '!':
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Operand: operand}, nil
	case '(':
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.eof() || p.peek() != ')' {
			return nil, p.errorf("missing closing parenthesis")
		}
		p.pos++
		return inner, nil
	case ')', '&', '|', '=':
		return nil, p.errorf("unexpected %q", p.peek())
	}
	return p.parseCompare()
}

func (p *parser) parseCompare() (Expr, error) {
	start := p.pos
	for !p.eof() && !isKeyStop(p.peek()) {
		p.pos++
	}
	column := strings.TrimSpace(p.input[start:p.pos])
	if column == "" {
		return nil, p.errorf("missing column name")
	}
	if strings.ContainsAny(column, "\"") {
		return nil, &SyntaxError{Input: p.input, Offset: start, Message: "column name may not be quoted"}
	}

	var op Op
	switch {
	case p.eof():
		return nil, p.errorf("expected '=' or '!=' after %q", column)
	case strings.HasPrefix(p.input[p.pos:], "!="):
		op = OpNotEqual
		p.pos += 2
	case p.peek() == '=':
		op = OpEqual
		p.pos++
	default:
		return nil, p.errorf("expected '=' or '!=' after %q", column)
	}

	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return Compare{Column: column, Op: op, Pattern: value}, nil
}

func (p *parser) parseValue() (string, error) {
	p.skipSpace()
	if !p.eof() && p.peek() == '"' {
		return p.parseQuoted()
	}

	start := p.pos
	for !p.eof() && !isValueStop(p.peek()) {
		if p.peek() == '"' {
			return "", p.errorf("unexpected quote inside value")
		}
		p.pos++
	}
	return strings.TrimSpace(p.input[start:p.pos]), nil
}

func (p *parser) parseQuoted() (string, error) {
	open := p.pos
	p.pos++ // opening quote

	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		switch c {
		case '"':
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if p.eof() {
				return "", &SyntaxError{Input: p.input, Offset: open, Message: "unterminated quoted value"}
			}
			b.WriteByte(p.peek())
			p.pos++
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", &SyntaxError{Input: p.input, Offset: open, Message: "unterminated quoted value"}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isKeyStop(c byte) bool {
	return c == '=' || c == '!' || isValueStop(c)
}

func isValueStop(c byte) bool {
	return c == '&' || c == '|' || c == '(' || c == ')'
}
