package source

import (
	"context"
	"slices"
	"sort"

	"github.com/roach88/dirsync/internal/syncrule"
)

// Introspection is what a rule editor can offer as source expressions for
// one destination field.
type Introspection struct {
	Source string `json:"source"`

	// Title heads the column group; it carries a "failed to fetch" marker
	// when the source could not be read.
	Title   string                  `json:"title"`
	Columns []syncrule.ColumnChoice `json:"columns"`

	// Templates is only filled for the import destination.
	Templates []syncrule.ColumnChoice `json:"templates,omitempty"`

	// Error holds the fetch failure message, if any.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the source could not be read.
func (i Introspection) Failed() bool { return i.Error != "" }

// Introspect lists the columns of src as selectable expressions. A source
// failure does not fail introspection; it is reported in the result.
func Introspect(ctx context.Context, src ImportSource) Introspection {
	in := Introspection{Source: src.Name(), Title: "Source columns"}

	cols, err := src.ListColumns(ctx)
	if err != nil {
		in.Title += " (failed to fetch)"
		in.Columns = []syncrule.ColumnChoice{}
		in.Error = "Unable to fetch data: " + err.Error()
		return in
	}
	in.Columns = syncrule.SourceColumnChoices(cols)
	return in
}

// IntrospectImport is Introspect plus the templates an import destination
// may choose from.
func IntrospectImport(ctx context.Context, src ImportSource, templates syncrule.TemplateCatalog, objectType string) Introspection {
	in := Introspect(ctx, src)
	if templates != nil {
		in.Templates = syncrule.TemplateChoices(templates.Templates(objectType))
	}
	return in
}

// Templates is a static template catalogue keyed by object type.
type Templates map[string][]string

// Templates implements syncrule.TemplateCatalog.
func (t Templates) Templates(objectType string) []string {
	return slices.Clone(t[objectType])
}

// Add registers template names for an object type, skipping duplicates.
func (t Templates) Add(objectType string, names ...string) {
	for _, n := range names {
		if n != "" && !slices.Contains(t[objectType], n) {
			t[objectType] = append(t[objectType], n)
		}
	}
	sort.Strings(t[objectType])
}
