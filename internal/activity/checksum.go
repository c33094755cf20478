package activity

import (
	"crypto/sha256"
	"database/sql"
	"fmt"

	"github.com/roach88/dirsync/internal/props"
)

// DomainEntry separates activity checksums from any other SHA-256 use.
// The version suffix allows a future algorithm change.
const DomainEntry = "dirsync/activity/v1"

const checksumSize = sha256.Size

// ChecksumPayload returns the canonical bytes the checksum of e is computed
// over, without the domain prefix.
func ChecksumPayload(e *Entry) ([]byte, error) {
	tuple := []any{
		e.ObjectName,
		string(e.ActionName),
		e.ObjectType,
		nullText(e.OldProperties),
		nullText(e.NewProperties),
		e.Author,
		e.ChangeTimeText(),
		e.ParentChecksumHex(),
	}
	payload, err := props.MarshalCanonical(tuple)
	if err != nil {
		return nil, fmt.Errorf("checksum payload: %w", err)
	}
	return payload, nil
}

// Checksum computes the checksum of e from its stored fields. e.Checksum
// itself is ignored.
func Checksum(e *Entry) ([]byte, error) {
	payload, err := ChecksumPayload(e)
	if err != nil {
		return nil, err
	}
	h := sha256.New()
	h.Write([]byte(DomainEntry))
	h.Write([]byte{0x00})
	h.Write(payload)
	return h.Sum(nil), nil
}

func nullText(s sql.NullString) any {
	if !s.Valid {
		return nil
	}
	return s.String
}

// Snapshot serializes object properties for old_properties/new_properties.
// A nil dict has no snapshot.
func Snapshot(d props.Dict) (sql.NullString, error) {
	if d == nil {
		return sql.NullString{}, nil
	}
	b, err := props.MarshalCanonical(d)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("snapshot: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
