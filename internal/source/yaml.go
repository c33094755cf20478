package source

import (
	"context"
	"fmt"
	"iter"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dirsync/internal/props"
)

// YAMLFile reads rows from a YAML document holding a list of mappings.
// The file is re-read on every pass.
type YAMLFile struct {
	id        int64
	name      string
	keyColumn string
	path      string
}

// NewYAMLFile creates a source backed by the YAML file at path.
func NewYAMLFile(id int64, name, keyColumn, path string) *YAMLFile {
	return &YAMLFile{id: id, name: name, keyColumn: keyColumn, path: path}
}

func (y *YAMLFile) ID() int64         { return y.id }
func (y *YAMLFile) Name() string      { return y.name }
func (y *YAMLFile) KeyColumn() string { return y.keyColumn }

func (y *YAMLFile) ListColumns(ctx context.Context) ([]string, error) {
	rows, err := y.load()
	if err != nil {
		return nil, err
	}
	return columnsOf(rows), nil
}

func (y *YAMLFile) Rows(ctx context.Context) iter.Seq2[props.Dict, error] {
	return func(yield func(props.Dict, error) bool) {
		rows, err := y.load()
		if err != nil {
			yield(nil, err)
			return
		}
		for _, r := range rows {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (y *YAMLFile) load() ([]props.Dict, error) {
	data, err := os.ReadFile(y.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", y.path, err)
	}
	return parseYAMLRows(data)
}

func parseYAMLRows(data []byte) ([]props.Dict, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rows: %w", err)
	}

	rows := make([]props.Dict, 0, len(raw))
	for i, m := range raw {
		v, err := props.FromAny(m)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		d, ok := v.(props.Dict)
		if !ok {
			return nil, fmt.Errorf("row %d: expected a mapping", i)
		}
		rows = append(rows, d)
	}
	return rows, nil
}
