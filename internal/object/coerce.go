package object

import (
	"strconv"
	"strings"

	"github.com/roach88/dirsync/internal/props"
)

// Coercion normalizes one property value before it is stored.
type Coercion func(props.Value) props.Value

// coercions maps property names to their normalization. Properties without
// an entry are stored as given.
var coercions = map[string]Coercion{
	"object_name":          nullToEmpty,
	"disabled":             yesNo,
	"enable_notifications": yesNo,
	"enable_active_checks": yesNo,
	"is_global":            yesNo,
	"prefer_includes":      yesNo,
	"port":                 integer,
	"check_interval":       integer,
	"retry_interval":       integer,
	"max_check_attempts":   integer,
	"timeout":              integer,
}

// Coerce applies the coercion registered for name, if any.
func Coerce(name string, v props.Value) props.Value {
	if v == nil {
		v = props.Null{}
	}
	if c, ok := coercions[name]; ok {
		return c(v)
	}
	return v
}

func nullToEmpty(v props.Value) props.Value {
	if props.IsNull(v) {
		return props.String("")
	}
	return props.String(props.Text(v))
}

// yesNo maps the usual boolean spellings of import sources onto Bool.
// Anything unrecognized is kept verbatim.
func yesNo(v props.Value) props.Value {
	s, ok := v.(props.String)
	if !ok {
		return v
	}
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "y", "yes", "true", "1":
		return props.Bool(true)
	case "n", "no", "false", "0":
		return props.Bool(false)
	case "":
		return props.Null{}
	}
	return v
}

// integer parses numeric text. Non-numeric text is kept verbatim.
func integer(v props.Value) props.Value {
	s, ok := v.(props.String)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(string(s))
	if trimmed == "" {
		return props.Null{}
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return v
	}
	return props.Int(n)
}
