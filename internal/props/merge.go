package props

import (
	"strconv"
)

// Merge recursively unions overlay into base and returns the result.
//
// When both base and overlay are dicts, keys from both are kept; on a key
// present in both, nested dicts merge key-by-key and any other value is
// replaced by overlay's. When either side is not a dict, overlay wins.
//
// Neither argument is modified.
func Merge(base, overlay Value) Value {
	bd, bok := base.(Dict)
	od, ook := overlay.(Dict)
	if !bok || !ook {
		return Clone(overlay)
	}

	out := bd.Clone()
	for k, ov := range od {
		if existing, ok := out[k]; ok {
			out[k] = Merge(existing, ov)
			continue
		}
		out[k] = Clone(ov)
	}
	return out
}

// Text renders v as plain text for template substitution.
// Strings are verbatim, Null is empty, ints and bools use their literal form.
// Lists and dicts render as canonical JSON.
func Text(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return ""
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Bool:
		return strconv.FormatBool(bool(val))
	default:
		data, err := MarshalCanonical(val)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
