package source

import (
	"context"
	"iter"

	"github.com/roach88/dirsync/internal/props"
)

// Static serves rows held in memory.
type Static struct {
	id        int64
	name      string
	keyColumn string
	rows      []props.Dict
}

// NewStatic creates an in-memory source. The rows are copied.
func NewStatic(id int64, name, keyColumn string, rows []props.Dict) *Static {
	cp := make([]props.Dict, len(rows))
	for i, r := range rows {
		cp[i] = r.Clone()
	}
	return &Static{id: id, name: name, keyColumn: keyColumn, rows: cp}
}

func (s *Static) ID() int64         { return s.id }
func (s *Static) Name() string      { return s.name }
func (s *Static) KeyColumn() string { return s.keyColumn }

func (s *Static) ListColumns(context.Context) ([]string, error) {
	return columnsOf(s.rows), nil
}

func (s *Static) Rows(ctx context.Context) iter.Seq2[props.Dict, error] {
	return func(yield func(props.Dict, error) bool) {
		for _, r := range s.rows {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(r.Clone(), nil) {
				return
			}
		}
	}
}
