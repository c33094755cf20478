package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/dirsync/internal/source"
	"github.com/roach88/dirsync/internal/syncrule"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// RuleDef is a rule as written, before source names are resolved to ids.
type RuleDef struct {
	Rule syncrule.SyncRule

	// Sources holds, per property, the source name it reads from. It is
	// empty for properties that gave source_id directly.
	Sources []string

	Pos token.Pos
}

// Parsed is the content of one or more rule files before assembly.
type Parsed struct {
	Sources   []source.Definition
	Rules     []RuleDef
	Templates source.Templates
}

// Bundle is a loaded rules directory: sources with final ids, rules whose
// properties point at those ids, and the template catalogue.
type Bundle struct {
	Sources   []source.Definition
	Rules     []syncrule.SyncRule
	Templates source.Templates
	FileCount int
}

// Source returns the source definition named name.
func (b *Bundle) Source(name string) (source.Definition, bool) {
	i := slices.IndexFunc(b.Sources, func(d source.Definition) bool { return d.Name == name })
	if i < 0 {
		return source.Definition{}, false
	}
	return b.Sources[i], true
}

// SourceByID returns the source definition with the given id.
func (b *Bundle) SourceByID(id int64) (source.Definition, bool) {
	i := slices.IndexFunc(b.Sources, func(d source.Definition) bool { return d.ID == id })
	if i < 0 {
		return source.Definition{}, false
	}
	return b.Sources[i], true
}

// Rule returns the rule named name.
func (b *Bundle) Rule(name string) (syncrule.SyncRule, bool) {
	i := slices.IndexFunc(b.Rules, func(r syncrule.SyncRule) bool { return r.Name == name })
	if i < 0 {
		return syncrule.SyncRule{}, false
	}
	return b.Rules[i], true
}

// OpenSources opens every source the rule reads from, keyed by id.
func (b *Bundle) OpenSources(rule syncrule.SyncRule) (map[int64]source.ImportSource, error) {
	out := make(map[int64]source.ImportSource)
	for _, id := range rule.ListInvolvedSourceIDs() {
		def, ok := b.SourceByID(id)
		if !ok {
			return nil, fmt.Errorf("rule %q: no source with id %d", rule.Name, id)
		}
		src, err := source.Open(def)
		if err != nil {
			return nil, err
		}
		out[id] = src
	}
	return out, nil
}

// ParseCUE extracts sources, rules and templates from a built CUE value.
func ParseCUE(value cue.Value, mode LoadMode) (*Parsed, []error) {
	var errs []error
	out := &Parsed{Templates: source.Templates{}}

	fail := func(err error) bool {
		errs = append(errs, loadErrorFrom(err, ErrCodeBuildFailed))
		return mode == LoadModeFailFast
	}

	if sourcesVal := value.LookupPath(cue.ParsePath("source")); sourcesVal.Exists() {
		iter, err := sourcesVal.Fields()
		if err != nil {
			if fail(formatCUEError(err)) {
				return out, errs
			}
		} else {
			for iter.Next() {
				def, err := CompileSource(iter.Value())
				if err != nil {
					if fail(err) {
						return out, errs
					}
					continue
				}
				out.Sources = append(out.Sources, *def)
			}
		}
	}

	if rulesVal := value.LookupPath(cue.ParsePath("rule")); rulesVal.Exists() {
		iter, err := rulesVal.Fields()
		if err != nil {
			if fail(formatCUEError(err)) {
				return out, errs
			}
		} else {
			for iter.Next() {
				def, err := CompileRule(iter.Value())
				if err != nil {
					if fail(err) {
						return out, errs
					}
					continue
				}
				out.Rules = append(out.Rules, *def)
			}
		}
	}

	if tmplVal := value.LookupPath(cue.ParsePath("templates")); tmplVal.Exists() {
		t, err := CompileTemplates(tmplVal)
		if err != nil {
			if fail(err) {
				return out, errs
			}
		} else {
			out.Templates = t
		}
	}

	return out, errs
}

// LoadDir loads every .cue, .yaml and .yml file directly inside dir and
// assembles them into one bundle. CUE files are loaded as one instance.
func LoadDir(dir string, mode LoadMode) (*Bundle, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing rules directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, yamlFiles, err := FindRuleFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles)+len(yamlFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no rule files found in %s", dir)}}
	}

	var (
		parts []*Parsed
		errs  []error
	)

	if len(cueFiles) > 0 {
		ctx := cuecontext.New()
		instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
		if len(instances) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
		}
		inst := instances[0]
		if inst.Err != nil {
			return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
		}
		value := ctx.BuildInstance(inst)
		if err := value.Err(); err != nil {
			return nil, []error{loadErrorFrom(formatCUEError(err), ErrCodeBuildFailed)}
		}

		p, perrs := ParseCUE(value, mode)
		errs = append(errs, perrs...)
		if len(perrs) > 0 && mode == LoadModeFailFast {
			return nil, errs
		}
		parts = append(parts, p)
	}

	for _, path := range yamlFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeParseFailed, File: path, Message: err.Error()})
			if mode == LoadModeFailFast {
				return nil, errs
			}
			continue
		}
		p, err := ParseYAML(data, path)
		if err != nil {
			errs = append(errs, err)
			if mode == LoadModeFailFast {
				return nil, errs
			}
			continue
		}
		parts = append(parts, p)
	}

	bundle, aerrs := Assemble(parts...)
	errs = append(errs, aerrs...)
	if bundle != nil {
		bundle.FileCount = len(cueFiles) + len(yamlFiles)
		resolvePaths(bundle, dir)
	}
	return bundle, errs
}

// FindRuleFiles returns the CUE and YAML files directly inside dir.
func FindRuleFiles(dir string) (cueFiles, yamlFiles []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".cue":
			cueFiles = append(cueFiles, path)
		case ".yaml", ".yml":
			yamlFiles = append(yamlFiles, path)
		}
	}
	return cueFiles, yamlFiles, nil
}

// Assemble merges parsed files, assigns ids to sources that lack one and
// resolves property source names.
//
// Sources without an explicit id are numbered after the highest explicit
// id, in name order.
func Assemble(parts ...*Parsed) (*Bundle, []error) {
	var errs []error
	b := &Bundle{Templates: source.Templates{}}

	names := map[string]bool{}
	for _, p := range parts {
		for _, def := range p.Sources {
			if names[def.Name] {
				errs = append(errs, &LoadError{Code: ErrCodeDuplicate, Message: fmt.Sprintf("source %q defined twice", def.Name)})
				continue
			}
			names[def.Name] = true
			b.Sources = append(b.Sources, def)
		}
		for objectType, tmpl := range p.Templates {
			b.Templates.Add(objectType, tmpl...)
		}
	}
	slices.SortFunc(b.Sources, func(x, y source.Definition) int { return strings.Compare(x.Name, y.Name) })

	var next int64
	ids := map[int64]string{}
	for _, def := range b.Sources {
		if def.ID == 0 {
			continue
		}
		if other, dup := ids[def.ID]; dup {
			errs = append(errs, &LoadError{Code: ErrCodeDuplicate,
				Message: fmt.Sprintf("sources %q and %q share id %d", other, def.Name, def.ID)})
		}
		ids[def.ID] = def.Name
		next = max(next, def.ID)
	}
	byName := map[string]int64{}
	for i := range b.Sources {
		if b.Sources[i].ID == 0 {
			next++
			b.Sources[i].ID = next
		}
		byName[b.Sources[i].Name] = b.Sources[i].ID
	}

	ruleNames := map[string]bool{}
	var ruleID int64
	for _, p := range parts {
		for _, def := range p.Rules {
			rule := def.Rule
			if ruleNames[rule.Name] {
				errs = append(errs, &LoadError{Code: ErrCodeDuplicate, Message: fmt.Sprintf("rule %q defined twice", rule.Name)})
				continue
			}
			ruleNames[rule.Name] = true
			ruleID = max(ruleID, rule.ID)
			rule.Properties = slices.Clone(rule.Properties)

			for i := range rule.Properties {
				name := ""
				if i < len(def.Sources) {
					name = def.Sources[i]
				}
				if name == "" {
					continue
				}
				id, ok := byName[name]
				if !ok {
					errs = append(errs, &LoadError{Code: ErrCodeGeneric,
						Message: fmt.Sprintf("rule %q: property %q reads from unknown source %q", rule.Name, rule.Properties[i].DestinationField, name)})
					continue
				}
				rule.Properties[i].SourceID = id
			}
			b.Rules = append(b.Rules, rule)
		}
	}
	slices.SortFunc(b.Rules, func(x, y syncrule.SyncRule) int { return strings.Compare(x.Name, y.Name) })

	// Number rules without an id. Properties without a priority run after
	// those that have one, in file order.
	for i := range b.Rules {
		r := &b.Rules[i]
		if r.ID == 0 {
			ruleID++
			r.ID = ruleID
		}
		pending := r.Properties
		r.Properties = nil
		for j := range pending {
			pending[j].ID = int64(j + 1)
		}
		for _, explicit := range []bool{true, false} {
			for _, p := range pending {
				if (p.Priority != 0) != explicit {
					continue
				}
				if _, err := r.AddProperty(p); err != nil {
					errs = append(errs, &LoadError{Code: ErrCodeDuplicate, Message: err.Error()})
				}
			}
		}
	}

	return b, errs
}

// resolvePaths makes relative YAML source paths relative to the rules
// directory.
func resolvePaths(b *Bundle, dir string) {
	for i := range b.Sources {
		def := &b.Sources[i]
		if def.Kind == source.KindYAML && def.Path != "" && !filepath.IsAbs(def.Path) {
			def.Path = filepath.Join(dir, def.Path)
		}
	}
}
