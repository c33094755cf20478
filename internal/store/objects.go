package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dirsync/internal/props"
)

// ErrObjectNotFound is returned by GetObject for an object that was never
// committed or has been deleted.
var ErrObjectNotFound = errors.New("store: object not found")

// GetObject returns the serialized state of one object.
func (s *Store) GetObject(ctx context.Context, objectType, objectName string) (props.Dict, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT properties
		FROM director_object
		WHERE object_type = ? AND object_name = ?
	`), objectType, objectName).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s %q: %w", objectType, objectName, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %q: %w", objectType, objectName, err)
	}
	return unmarshalProperties(data)
}

// PutObject inserts or replaces the serialized state of one object.
func (s *Store) PutObject(ctx context.Context, objectType, objectName string, properties props.Dict) error {
	data, err := marshalProperties(properties)
	if err != nil {
		return fmt.Errorf("put %s %q: %w", objectType, objectName, err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO director_object (object_type, object_name, properties)
		VALUES (?, ?, ?)
		ON CONFLICT (object_type, object_name) DO UPDATE SET properties = excluded.properties
	`), objectType, objectName, data)
	if err != nil {
		return fmt.Errorf("put %s %q: %w", objectType, objectName, err)
	}
	return nil
}

// DeleteObject removes one object. Deleting a missing object returns
// ErrObjectNotFound.
func (s *Store) DeleteObject(ctx context.Context, objectType, objectName string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM director_object
		WHERE object_type = ? AND object_name = ?
	`), objectType, objectName)
	if err != nil {
		return fmt.Errorf("delete %s %q: %w", objectType, objectName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %q: %w", objectType, objectName, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s %q: %w", objectType, objectName, ErrObjectNotFound)
	}
	return nil
}

// ListObjectNames returns the names of all committed objects of a type in
// ascending order.
func (s *Store) ListObjectNames(ctx context.Context, objectType string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT object_name
		FROM director_object
		WHERE object_type = ?
		ORDER BY object_name ASC
	`), objectType)
	if err != nil {
		return nil, fmt.Errorf("list %s objects: %w", objectType, err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list %s objects: %w", objectType, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s objects: %w", objectType, err)
	}
	return names, nil
}
