// Package source provides the import sources sync rules read rows from.
//
// A source is finite and restartable: every call to Rows starts a fresh
// pass over the data.
package source

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"github.com/roach88/dirsync/internal/props"
)

// ImportSource supplies rows of column values.
type ImportSource interface {
	// ID identifies the source in sync properties.
	ID() int64

	// Name is the configured source name.
	Name() string

	// KeyColumn is the column whose value identifies the object a row
	// describes.
	KeyColumn() string

	// ListColumns returns the column names the source produces.
	ListColumns(ctx context.Context) ([]string, error)

	// Rows iterates over all rows. Iteration stops at the first error, which
	// is yielded with a nil row.
	Rows(ctx context.Context) iter.Seq2[props.Dict, error]
}

// Kind names a source implementation.
type Kind string

const (
	KindStatic Kind = "static"
	KindYAML   Kind = "yaml"
	KindSQL    Kind = "sql"
)

// Definition is the declarative form of a source, as loaded from rule files.
type Definition struct {
	ID        int64        `json:"id" yaml:"id"`
	Name      string       `json:"name" yaml:"name"`
	Kind      Kind         `json:"kind" yaml:"kind"`
	KeyColumn string       `json:"key_column" yaml:"key_column"`
	Path      string       `json:"path,omitempty" yaml:"path,omitempty"`
	Driver    string       `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN       string       `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Query     string       `json:"query,omitempty" yaml:"query,omitempty"`
	Encoding  string       `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	Rows      []props.Dict `json:"rows,omitempty" yaml:"-"`
}

// Open builds the source a definition describes. SQL sources open their
// database handle lazily on first use.
func Open(def Definition) (ImportSource, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("source %d: name is required", def.ID)
	}
	if def.KeyColumn == "" {
		return nil, fmt.Errorf("source %q: key_column is required", def.Name)
	}

	switch def.Kind {
	case KindStatic, "":
		return NewStatic(def.ID, def.Name, def.KeyColumn, def.Rows), nil
	case KindYAML:
		if def.Path == "" {
			return nil, fmt.Errorf("source %q: path is required", def.Name)
		}
		return NewYAMLFile(def.ID, def.Name, def.KeyColumn, def.Path), nil
	case KindSQL:
		if def.Driver == "" || def.DSN == "" || def.Query == "" {
			return nil, fmt.Errorf("source %q: driver, dsn and query are required", def.Name)
		}
		return NewSQLQuery(def)
	}
	return nil, fmt.Errorf("source %q: unknown kind %q", def.Name, def.Kind)
}

// columnsOf returns the sorted union of the keys of rows.
func columnsOf(rows []props.Dict) []string {
	seen := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
