package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dirsync/internal/props"
)

func row(kv ...string) props.Dict {
	d := props.Dict{}
	for i := 0; i+1 < len(kv); i += 2 {
		d[kv[i]] = props.String(kv[i+1])
	}
	return d
}

func TestMatchWebHostsOutsideLoopback(t *testing.T) {
	e, err := Parse("host=www*&!(address=127.*)")
	require.NoError(t, err)

	assert.False(t, e.Match(row("host", "www1", "address", "127.0.0.1")))
	assert.True(t, e.Match(row("host", "www1", "address", "10.0.0.1")))
	assert.False(t, e.Match(row("host", "db1", "address", "10.0.0.1")))
}

func TestMatchTable(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		row    props.Dict
		want   bool
	}{
		{"exact", "os=Linux", row("os", "Linux"), true},
		{"case sensitive", "os=Linux", row("os", "linux"), false},
		{"not equal", "os!=Linux", row("os", "Windows"), true},
		{"absent column equal", "os=Linux", row("host", "a"), false},
		{"absent column not equal", "os!=Linux", row("host", "a"), false},
		{"null column", "os=*", props.Dict{"os": props.Null{}}, false},
		{"star matches empty", "os=*", row("os", ""), true},
		{"infix star", "host=w*1", row("host", "www1"), true},
		{"multiple stars", "host=*w*.example.*", row("host", "www.example.com"), true},
		{"star not anchored", "host=*db", row("host", "mydb1"), false},
		{"question mark is literal", "host=www?", row("host", "www1"), false},
		{"brackets are literal", "address6=[::1]", row("address6", "[::1]"), true},
		{"or", "os=Linux|os=BSD", row("os", "BSD"), true},
		{"and binds tighter than or", "a=1|b=2&c=3", row("a", "1"), true},
		{"parentheses", "(a=1|b=2)&c=3", row("a", "1"), false},
		{"double negation", "!!a=1", row("a", "1"), true},
		{"whitespace", "  host = www1  &  os = Linux ", row("host", "www1", "os", "Linux"), true},
		{"quoted value", `name="a & b"`, row("name", "a & b"), true},
		{"quoted escape", `name="say \"hi\""`, row("name", `say "hi"`), true},
		{"empty value", "note=", row("note", ""), true},
		{"int column", "port=22", props.Dict{"port": props.Int(22)}, true},
		{"bool column", "enabled=true", props.Dict{"enabled": props.Bool(true)}, true},
		{"list any", "groups=web*", props.Dict{"groups": props.Strings("db", "webservers")}, true},
		{"list none", "groups!=web*", props.Dict{"groups": props.Strings("db", "mail")}, true},
		{"list not equal with hit", "groups!=db", props.Dict{"groups": props.Strings("db", "mail")}, false},
		{"dotted lookup", "vars.os=Linux", props.Dict{"vars": props.Dict{"os": props.String("Linux")}}, true},
		{"dotted column wins", "vars.os=BSD", props.Dict{
			"vars.os": props.String("BSD"),
			"vars":    props.Dict{"os": props.String("Linux")},
		}, true},
		{"dotted through scalar", "vars.os=Linux", row("vars", "Linux"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Parse(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Match(tt.row))
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		filter string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"no operator", "host"},
		{"no column", "=www"},
		{"dangling and", "a=1&"},
		{"dangling or", "a=1|"},
		{"unbalanced open", "(a=1"},
		{"unbalanced close", "a=1)"},
		{"unterminated quote", `a="oops`},
		{"stray quote", `a=b"c`},
		{"bang in column", "a!b=c"},
		{"trailing after quote", `a="x"y`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.filter)
			require.Error(t, err)

			var syn *SyntaxError
			require.ErrorAs(t, err, &syn)
			assert.Equal(t, tt.filter, syn.Input)
			assert.Contains(t, err.Error(), "filter")
		})
	}
}

func TestStringRoundTrips(t *testing.T) {
	inputs := []string{
		"host=www*&!(address=127.*)",
		"(a=1|b=2)&c!=3",
		`name="a & b"`,
		`x=""`,
	}
	for _, in := range inputs {
		e := MustParse(in)
		again, err := Parse(e.String())
		require.NoError(t, err, e.String())
		assert.Equal(t, e, again)
	}

	assert.Equal(t, "host=www*&!(address=127.*)", MustParse(" host = www* & !( address = 127.* ) ").String())
}

func TestColumns(t *testing.T) {
	e := MustParse("host=www*&!(address=127.*|host=x)&vars.os=Linux")
	assert.Equal(t, []string{"host", "address", "vars.os"}, Columns(e))
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("(") })
}
