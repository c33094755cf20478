package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/dirsync/internal/activity"
)

// appendLockKey is the Postgres advisory lock key appends are serialized on.
const appendLockKey int64 = 0x6469727379_6e63

// pgUniqueViolation is the Postgres SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

const entryColumns = `id, object_name, action_name, object_type, old_properties, new_properties,
	author, change_time, checksum, parent_checksum`

var _ activity.Store = (*Store)(nil)

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// AppendNext implements activity.Store. The latest entry is read and the new
// one inserted in a single transaction holding the dialect's write lock.
func (s *Store) AppendNext(ctx context.Context, build activity.BuildFunc) (*activity.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("append entry: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if s.dialect == DialectPostgres {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", appendLockKey); err != nil {
			return nil, fmt.Errorf("append entry: lock: %w", err)
		}
	}

	latest, err := s.latest(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("append entry: %w", err)
	}

	e, err := build(latest)
	if err != nil {
		return nil, fmt.Errorf("append entry: %w", err)
	}

	err = tx.QueryRowContext(ctx, s.rebind(`
		INSERT INTO director_activity_log
		(object_name, action_name, object_type, old_properties, new_properties,
		 author, change_time, checksum, parent_checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`),
		e.ObjectName,
		string(e.ActionName),
		e.ObjectType,
		e.OldProperties,
		e.NewProperties,
		e.Author,
		e.ChangeTimeText(),
		blob(e.Checksum),
		blob(e.ParentChecksum),
	).Scan(&e.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, activity.ErrParentConflict
		}
		return nil, fmt.Errorf("append entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, activity.ErrParentConflict
		}
		return nil, fmt.Errorf("append entry: commit: %w", err)
	}
	return e, nil
}

// Latest implements activity.Store.
func (s *Store) Latest(ctx context.Context) (*activity.Entry, error) {
	e, err := s.latest(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("latest entry: %w", err)
	}
	return e, nil
}

func (s *Store) latest(ctx context.Context, q queryer) (*activity.Entry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM director_activity_log
		ORDER BY id DESC
		LIMIT 1
	`)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Entry implements activity.Store.
func (s *Store) Entry(ctx context.Context, id int64) (*activity.Entry, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+entryColumns+`
		FROM director_activity_log
		WHERE id = ?
	`), id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %d: %w", id, activity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("entry %d: %w", id, err)
	}
	return e, nil
}

// EntryBefore implements activity.Store.
func (s *Store) EntryBefore(ctx context.Context, id int64) (*activity.Entry, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+entryColumns+`
		FROM director_activity_log
		WHERE id < ?
		ORDER BY id DESC
		LIMIT 1
	`), id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("entry before %d: %w", id, err)
	}
	return e, nil
}

// Entries implements activity.Store.
//
// Returns an empty slice (not nil) if no entries are in range.
func (s *Store) Entries(ctx context.Context, fromID, toID int64) ([]activity.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM director_activity_log WHERE id >= ?`
	args := []any{fromID}
	if toID > 0 {
		query += ` AND id <= ?`
		args = append(args, toID)
	}
	query += ` ORDER BY id ASC`

	return s.queryEntries(ctx, s.db, s.rebind(query), args...)
}

// ObjectHistory returns every entry about one object in chain order.
func (s *Store) ObjectHistory(ctx context.Context, objectType, objectName string) ([]activity.Entry, error) {
	return s.queryEntries(ctx, s.db, s.rebind(`
		SELECT `+entryColumns+`
		FROM director_activity_log
		WHERE object_type = ? AND object_name = ?
		ORDER BY id ASC
	`), objectType, objectName)
}

func (s *Store) queryEntries(ctx context.Context, q queryer, query string, args ...any) ([]activity.Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []activity.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*activity.Entry, error) {
	var (
		e          activity.Entry
		action     string
		changeTime string
	)
	err := row.Scan(
		&e.ID,
		&e.ObjectName,
		&action,
		&e.ObjectType,
		&e.OldProperties,
		&e.NewProperties,
		&e.Author,
		&changeTime,
		&e.Checksum,
		&e.ParentChecksum,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}

	e.ActionName = activity.Action(action)
	e.ChangeTime, err = activity.ParseChangeTime(changeTime)
	if err != nil {
		return nil, fmt.Errorf("scan entry %d: %w", e.ID, err)
	}
	return &e, nil
}

// isUniqueViolation reports whether err is a unique constraint failure from
// either driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
