package store

import (
	"fmt"

	"github.com/roach88/dirsync/internal/props"
)

// marshalProperties converts object properties to canonical JSON TEXT for
// storage.
func marshalProperties(d props.Dict) (string, error) {
	if d == nil {
		d = props.Dict{}
	}
	data, err := props.MarshalCanonical(d)
	if err != nil {
		return "", fmt.Errorf("marshal properties: %w", err)
	}
	return string(data), nil
}

// unmarshalProperties parses stored properties. Integers come back as
// props.Int, not float64.
func unmarshalProperties(data string) (props.Dict, error) {
	if data == "" || data == "{}" {
		return props.Dict{}, nil
	}
	d, err := props.ParseDict(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal properties: %w", err)
	}
	return d, nil
}

// blob keeps empty checksums from being bound as NULL.
func blob(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
