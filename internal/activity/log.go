package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/roach88/dirsync/internal/lock"
	"github.com/roach88/dirsync/internal/metrics"
	"github.com/roach88/dirsync/internal/props"
)

// LockKey is the lock name appends are serialized under.
const LockKey = "activity-log"

// Subject is the object an entry describes. *object.Object satisfies it.
type Subject interface {
	Type() string
	Name() string
	Properties() props.Dict
	UnmodifiedProperties() props.Dict
}

// Log appends entries to a Store.
type Log struct {
	store    Store
	clock    Clock
	settings Settings
	locker   lock.Locker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	retries  int
}

// Option configures a Log.
type Option func(*Log)

// WithClock sets the change time source.
func WithClock(c Clock) Option { return func(l *Log) { l.clock = c } }

// WithSettings sets the settings consulted for the audit record.
func WithSettings(s Settings) Option { return func(l *Log) { l.settings = s } }

// WithLocker serializes appends under an external lock, on top of the
// store's own transaction.
func WithLocker(lk lock.Locker) Option { return func(l *Log) { l.locker = lk } }

// WithLogger sets the logger audit records are written to.
func WithLogger(lg *slog.Logger) Option { return func(l *Log) { l.logger = lg } }

// WithMetrics records append counters.
func WithMetrics(m *metrics.Metrics) Option { return func(l *Log) { l.metrics = m } }

// WithRetries sets how many times an append is retried after a parent
// conflict.
func WithRetries(n int) Option { return func(l *Log) { l.retries = n } }

// New creates a log over store.
func New(store Store, opts ...Option) *Log {
	l := &Log{
		store:    store,
		clock:    SystemClock{},
		settings: StaticSettings{},
		locker:   lock.Nop{},
		logger:   slog.Default(),
		retries:  5,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store returns the underlying store.
func (l *Log) Store() Store { return l.store }

// LogCreation appends a create entry with no old snapshot.
func (l *Log) LogCreation(ctx context.Context, s Subject, actor string) (*Entry, error) {
	newProps, err := Snapshot(s.Properties())
	if err != nil {
		return nil, err
	}
	return l.append(ctx, draft{
		objectName: s.Name(),
		objectType: s.Type(),
		action:     ActionCreate,
		newProps:   newProps,
		author:     NormalizeActor(actor),
	})
}

// LogModification appends a modify entry from the subject's unmodified
// snapshot to its current state.
func (l *Log) LogModification(ctx context.Context, s Subject, actor string) (*Entry, error) {
	oldProps, err := Snapshot(s.UnmodifiedProperties())
	if err != nil {
		return nil, err
	}
	newProps, err := Snapshot(s.Properties())
	if err != nil {
		return nil, err
	}
	return l.append(ctx, draft{
		objectName: s.Name(),
		objectType: s.Type(),
		action:     ActionModify,
		oldProps:   oldProps,
		newProps:   newProps,
		author:     NormalizeActor(actor),
	})
}

// LogRemoval appends a delete entry with no new snapshot. A subject that was
// never loaded uses its current state as the old snapshot.
func (l *Log) LogRemoval(ctx context.Context, s Subject, actor string) (*Entry, error) {
	old := s.UnmodifiedProperties()
	if old == nil {
		old = s.Properties()
	}
	oldProps, err := Snapshot(old)
	if err != nil {
		return nil, err
	}
	return l.append(ctx, draft{
		objectName: s.Name(),
		objectType: s.Type(),
		action:     ActionDelete,
		oldProps:   oldProps,
		author:     NormalizeActor(actor),
	})
}

// Latest returns the newest entry, or nil when the log is empty.
func (l *Log) Latest(ctx context.Context) (*Entry, error) {
	return l.store.Latest(ctx)
}

type draft struct {
	objectName string
	objectType string
	action     Action
	oldProps   sql.NullString
	newProps   sql.NullString
	author     string
}

func (l *Log) append(ctx context.Context, d draft) (*Entry, error) {
	var stored *Entry
	err := l.locker.WithLock(ctx, LockKey, func(ctx context.Context) error {
		var err error
		stored, err = l.appendWithRetry(ctx, d)
		return err
	})
	if err != nil {
		l.metrics.AppendFailed()
		return nil, fmt.Errorf("append %s %s %q: %w", d.action, d.objectType, d.objectName, err)
	}

	l.metrics.Appended(string(stored.ActionName))
	l.audit(ctx, stored)
	return stored, nil
}

func (l *Log) appendWithRetry(ctx context.Context, d draft) (*Entry, error) {
	build := func(latest *Entry) (*Entry, error) {
		e := &Entry{
			ObjectName:    d.objectName,
			ActionName:    d.action,
			ObjectType:    d.objectType,
			OldProperties: d.oldProps,
			NewProperties: d.newProps,
			Author:        d.author,
			ChangeTime:    changeTime(l.clock.Now(), latest),
		}
		if latest != nil {
			e.ParentChecksum = slices.Clone(latest.Checksum)
		}
		sum, err := Checksum(e)
		if err != nil {
			return nil, err
		}
		e.Checksum = sum
		return e, nil
	}

	delay := 5 * time.Millisecond
	for attempt := 0; ; attempt++ {
		e, err := l.store.AppendNext(ctx, build)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, ErrParentConflict) || attempt >= l.retries {
			return nil, err
		}

		l.metrics.AppendRetried()
		jitter := time.Duration(rand.Int64N(int64(delay)))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay + jitter):
		}
		delay = min(delay*2, 200*time.Millisecond)
	}
}
