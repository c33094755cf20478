package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/dirsync/internal/activity"
	"github.com/roach88/dirsync/internal/metrics"
	"github.com/roach88/dirsync/internal/object"
	"github.com/roach88/dirsync/internal/props"
	"github.com/roach88/dirsync/internal/source"
	"github.com/roach88/dirsync/internal/store"
	"github.com/roach88/dirsync/internal/syncrule"
)

// RunIDGenerator generates unique ids for sync runs.
// Implemented by UUIDv7Generator (production) and
// testutil.FixedRunIDGenerator (tests).
type RunIDGenerator interface {
	Generate() string
}

// ObjectStore is where committed objects live. *store.Store implements it;
// a missing object is reported with store.ErrObjectNotFound.
type ObjectStore interface {
	GetObject(ctx context.Context, objectType, objectName string) (props.Dict, error)
	PutObject(ctx context.Context, objectType, objectName string, properties props.Dict) error
	DeleteObject(ctx context.Context, objectType, objectName string) error
	ListObjectNames(ctx context.Context, objectType string) ([]string, error)
}

// Engine runs sync rules against import sources and commits the resulting
// objects, recording every change in the activity log.
//
// Thread-safety: Run may be called from several goroutines. Appends to the
// log are serialized by the log itself; runs of rules for the same object
// type race on the object store and should not overlap.
type Engine struct {
	objects ObjectStore
	log     *activity.Log
	runIDs  RunIDGenerator
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) { e.runIDs = g }
}

// WithLogger sets the logger for run progress.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records property outcomes, object changes, rows read and run
// durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine that commits to objects and logs to log.
func New(objects ObjectStore, log *activity.Log, opts ...Option) *Engine {
	e := &Engine{
		objects: objects,
		log:     log,
		runIDs:  UUIDv7Generator{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunInput is everything one sync run needs.
type RunInput struct {
	// Plan is the compiled rule.
	Plan *syncrule.Plan

	// Sources must hold every source the rule reads from, keyed by id.
	Sources map[int64]source.ImportSource

	// Templates restricts bulk imports. Nil accepts any template name.
	Templates syncrule.TemplateCatalog

	// Actor is recorded as the author of every log entry.
	Actor string

	// DryRun computes the summary without writing objects or log entries.
	DryRun bool
}

// Change is one object committed (or, in a dry run, one that would be).
type Change struct {
	Action     activity.Action `json:"action"`
	ObjectName string          `json:"object_name"`

	// EntryID is the activity log entry, 0 in a dry run.
	EntryID int64 `json:"entry_id,omitempty"`
}

// Summary describes a finished (or aborted) sync run.
type Summary struct {
	RunID      string `json:"run_id"`
	Rule       string `json:"rule"`
	ObjectType string `json:"object_type"`
	DryRun     bool   `json:"dry_run,omitempty"`

	Rows      int `json:"rows"`
	Created   int `json:"created"`
	Modified  int `json:"modified"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`

	// PurgeSkipped is set when the rule purges but row errors made the set
	// of imported objects incomplete.
	PurgeSkipped bool `json:"purge_skipped,omitempty"`

	Changes []Change    `json:"changes"`
	Errors  []*RowError `json:"errors,omitempty"`

	Duration time.Duration `json:"duration_ns"`
}

// HasErrors reports whether any row failed.
func (s *Summary) HasErrors() bool { return len(s.Errors) > 0 }

// incomplete reports whether a row error kept an object out of the run.
// Unresolved template choices do not: the object was still produced.
func (s *Summary) incomplete() bool {
	for _, e := range s.Errors {
		if e.Code != ErrCodeUnresolvedTemplate {
			return true
		}
	}
	return false
}

// keyGroup holds, per source id, the row each source supplied for one key.
type keyGroup struct {
	key  string
	rows map[int64]props.Dict
}

// Run executes one sync rule.
//
// Every involved source is read completely before anything is written; a
// source failure aborts the run with a SOURCE_FETCH_FAILURE error and no
// changes. Rows are then grouped by key column value, and for each key the
// rule is applied in ascending property priority to a fresh object (to find
// its name) and then to the stored object of that name, if any. Changed
// objects are committed and logged one by one, in key order.
//
// With purge enabled, stored objects of the rule's type that no key produced
// are deleted and logged, unless a row error kept some object out of the run.
//
// The returned summary is non-nil even when err is not.
func (e *Engine) Run(ctx context.Context, in RunInput) (*Summary, error) {
	if in.Plan == nil {
		return nil, errors.New("sync run: no plan")
	}
	rule := in.Plan.Rule
	start := time.Now()

	sum := &Summary{
		RunID:      e.runIDs.Generate(),
		Rule:       rule.Name,
		ObjectType: rule.ObjectType,
		DryRun:     in.DryRun,
		Changes:    []Change{},
	}
	logger := e.logger.With("run_id", sum.RunID, "rule", rule.Name, "object_type", rule.ObjectType)
	defer func() {
		sum.Duration = time.Since(start)
		e.metrics.ObserveRun(sum.Duration)
	}()

	logger.Info("sync run started", "dry_run", in.DryRun)

	groups, err := e.fetch(ctx, rule, in.Sources, sum, logger)
	if err != nil {
		logger.Error("sync run aborted", "error", err)
		return sum, fmt.Errorf("%w: %w", ErrRunAborted, err)
	}

	eval := syncrule.NewEvaluator(in.Plan, in.Templates)
	seen := make(map[string]string, len(groups))

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("%w: %w", ErrRunAborted, err)
		}
		obj, rowErr, err := e.resolve(ctx, eval, rule.ObjectType, g, seen, sum)
		if err != nil {
			logger.Error("sync run aborted", "key", g.key, "error", err)
			return sum, fmt.Errorf("%w: %w", ErrRunAborted, err)
		}
		if rowErr != nil {
			logger.Warn("row skipped", "key", g.key, "code", rowErr.Code, "error", rowErr.Message)
			sum.Errors = append(sum.Errors, rowErr)
			continue
		}

		if !obj.HasBeenModified() {
			sum.Unchanged++
			continue
		}
		action := activity.ActionModify
		if !obj.HasBeenLoaded() {
			action = activity.ActionCreate
		}
		if err := e.commit(ctx, obj, action, in, sum); err != nil {
			logger.Error("sync run aborted", "object", obj.Name(), "error", err)
			return sum, fmt.Errorf("%w: %w", ErrRunAborted, err)
		}
	}

	if rule.Purge {
		if err := e.purge(ctx, rule.ObjectType, seen, in, sum, logger); err != nil {
			logger.Error("sync run aborted", "error", err)
			return sum, fmt.Errorf("%w: %w", ErrRunAborted, err)
		}
	}

	logger.Info("sync run finished",
		"rows", sum.Rows,
		"created", sum.Created,
		"modified", sum.Modified,
		"deleted", sum.Deleted,
		"unchanged", sum.Unchanged,
		"errors", len(sum.Errors))
	return sum, nil
}

// fetch reads every involved source and groups the rows by key, sorted by
// key. A later row with the same key replaces an earlier one.
func (e *Engine) fetch(ctx context.Context, rule syncrule.SyncRule, sources map[int64]source.ImportSource, sum *Summary, logger *slog.Logger) ([]keyGroup, error) {
	byKey := make(map[string]map[int64]props.Dict)

	for _, id := range rule.ListInvolvedSourceIDs() {
		src, ok := sources[id]
		if !ok {
			return nil, fmt.Errorf("rule %q reads from source %d, which was not provided", rule.Name, id)
		}
		for row, err := range src.Rows(ctx) {
			if err != nil {
				return nil, syncrule.NewSourceFetchFailure(src.Name(), err)
			}
			key := props.Text(row[src.KeyColumn()])
			if key == "" {
				sum.Errors = append(sum.Errors, &RowError{
					Code:    ErrCodeMissingKey,
					Message: fmt.Sprintf("source %q: row has no %s", src.Name(), src.KeyColumn()),
				})
				continue
			}
			e.metrics.RowRead(src.Name())
			sum.Rows++

			rows, ok := byKey[key]
			if !ok {
				rows = make(map[int64]props.Dict)
				byKey[key] = rows
			}
			if _, dup := rows[id]; dup {
				logger.Debug("duplicate key, later row wins", "source", src.Name(), "key", key)
			}
			rows[id] = row
		}
	}

	groups := make([]keyGroup, 0, len(byKey))
	for key, rows := range byKey {
		groups = append(groups, keyGroup{key: key, rows: rows})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	return groups, nil
}

// resolve builds the object for one key. It returns a RowError for problems
// confined to the key and an error for anything that must stop the run.
func (e *Engine) resolve(ctx context.Context, eval *syncrule.Evaluator, objectType string, g keyGroup, seen map[string]string, sum *Summary) (*object.Object, *RowError, error) {
	fresh, err := object.New(objectType)
	if err != nil {
		return nil, nil, err
	}
	res, err := eval.ApplyRows(fresh, g.rows)
	if err != nil {
		return nil, &RowError{Code: ErrCodeApplyFailed, Message: err.Error(), Key: g.key}, nil
	}

	name := fresh.Name()
	if name == "" {
		return nil, &RowError{Code: ErrCodeNoObjectName, Message: "rule produced no object_name", Key: g.key}, nil
	}
	if prev, dup := seen[name]; dup {
		return nil, &RowError{
			Code:    ErrCodeDuplicateObject,
			Message: fmt.Sprintf("key %q already produced this object", prev),
			Key:     g.key,
			Object:  name,
		}, nil
	}
	seen[name] = g.key

	obj := fresh
	stored, err := e.objects.GetObject(ctx, objectType, name)
	switch {
	case err == nil:
		if obj, err = object.Load(objectType, name, stored); err != nil {
			return nil, nil, err
		}
		if res, err = eval.ApplyRows(obj, g.rows); err != nil {
			return nil, &RowError{Code: ErrCodeApplyFailed, Message: err.Error(), Key: g.key, Object: name}, nil
		}
	case errors.Is(err, store.ErrObjectNotFound):
	default:
		return nil, nil, err
	}

	for _, o := range res.Outcomes {
		e.metrics.PropertyOutcome(string(o.State))
	}
	for _, u := range res.Unresolved {
		sum.Errors = append(sum.Errors, &RowError{
			Code:       ErrCodeUnresolvedTemplate,
			Message:    u.Message,
			Key:        g.key,
			Object:     name,
			PropertyID: u.PropertyID,
		})
	}
	return obj, nil, nil
}

func (e *Engine) commit(ctx context.Context, obj *object.Object, action activity.Action, in RunInput, sum *Summary) error {
	change := Change{Action: action, ObjectName: obj.Name()}

	if !in.DryRun {
		if err := e.objects.PutObject(ctx, obj.Type(), obj.Name(), obj.Properties()); err != nil {
			return err
		}
		var (
			entry *activity.Entry
			err   error
		)
		if action == activity.ActionCreate {
			entry, err = e.log.LogCreation(ctx, obj, in.Actor)
		} else {
			entry, err = e.log.LogModification(ctx, obj, in.Actor)
		}
		if err != nil {
			return err
		}
		change.EntryID = entry.ID
		e.metrics.ObjectChanged(string(action))
	}

	if action == activity.ActionCreate {
		sum.Created++
	} else {
		sum.Modified++
	}
	sum.Changes = append(sum.Changes, change)
	return nil
}

// purge removes stored objects that no key produced, in name order.
func (e *Engine) purge(ctx context.Context, objectType string, seen map[string]string, in RunInput, sum *Summary, logger *slog.Logger) error {
	if sum.incomplete() {
		sum.PurgeSkipped = true
		logger.Warn("purge skipped, the run had row errors", "errors", len(sum.Errors))
		return nil
	}

	names, err := e.objects.ListObjectNames(ctx, objectType)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		stored, err := e.objects.GetObject(ctx, objectType, name)
		if err != nil {
			return err
		}
		obj, err := object.Load(objectType, name, stored)
		if err != nil {
			return err
		}

		change := Change{Action: activity.ActionDelete, ObjectName: name}
		if !in.DryRun {
			if err := e.objects.DeleteObject(ctx, objectType, name); err != nil {
				return err
			}
			entry, err := e.log.LogRemoval(ctx, obj, in.Actor)
			if err != nil {
				return err
			}
			change.EntryID = entry.ID
			e.metrics.ObjectChanged(string(activity.ActionDelete))
		}
		sum.Deleted++
		sum.Changes = append(sum.Changes, change)
	}
	return nil
}
