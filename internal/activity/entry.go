// Package activity implements the hash-chained activity log.
//
// Every create, modify and delete of a configuration object is appended as
// an immutable entry. An entry's checksum commits to its own content and to
// the checksum of the entry before it, so the whole history can be
// re-verified from the first entry to the last.
//
// # Checksum
//
//	SHA256("dirsync/activity/v1" + 0x00 + canonicalJSON([
//	    object_name, action_name, object_type,
//	    old_properties, new_properties,
//	    author, change_time, hex(parent_checksum),
//	]))
//
// old_properties and new_properties are the canonical JSON text of the
// object snapshot, or null when there is none. null never collides with "".
// The first entry's parent checksum is empty.
//
// # Ordering
//
// Entry ids define the order of the chain. change_time is informational
// and clamped so it never runs backwards.
package activity

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Action is what happened to an object.
type Action string

const (
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
)

// Valid reports whether a is one of the three known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionModify, ActionDelete:
		return true
	}
	return false
}

// TimeLayout is the stored and hashed form of change_time, always UTC.
const TimeLayout = "2006-01-02 15:04:05"

const (
	// ActorCLI identifies changes made by non-interactive invocations.
	ActorCLI = "cli"

	// ActorUnknown replaces an empty actor.
	ActorUnknown = "<unknown>"
)

// NormalizeActor returns actor, or ActorUnknown when it is empty.
func NormalizeActor(actor string) string {
	if actor == "" {
		return ActorUnknown
	}
	return actor
}

// Entry is one activity log row.
type Entry struct {
	ID             int64
	ObjectName     string
	ActionName     Action
	ObjectType     string
	OldProperties  sql.NullString
	NewProperties  sql.NullString
	Author         string
	ChangeTime     time.Time
	Checksum       []byte
	ParentChecksum []byte
}

// ChecksumHex returns the checksum as lowercase hex.
func (e *Entry) ChecksumHex() string { return hex.EncodeToString(e.Checksum) }

// ParentChecksumHex returns the parent checksum as lowercase hex, "" for the
// first entry.
func (e *Entry) ParentChecksumHex() string { return hex.EncodeToString(e.ParentChecksum) }

// ChangeTimeText returns change_time in TimeLayout.
func (e *Entry) ChangeTimeText() string { return e.ChangeTime.UTC().Format(TimeLayout) }

// ParseChangeTime parses a stored change_time.
func ParseChangeTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse change_time %q: %w", s, err)
	}
	return t, nil
}

// DecodeChecksum parses a hex checksum given at the boundary (CLI, JSON).
func DecodeChecksum(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode checksum: %w", err)
	}
	if len(b) != 0 && len(b) != checksumSize {
		return nil, fmt.Errorf("decode checksum: want %d bytes, got %d", checksumSize, len(b))
	}
	return b, nil
}

// View is the boundary representation of an entry, with hex checksums and
// textual time.
type View struct {
	ID             int64   `json:"id"`
	ObjectName     string  `json:"object_name"`
	ActionName     Action  `json:"action_name"`
	ObjectType     string  `json:"object_type"`
	OldProperties  *string `json:"old_properties"`
	NewProperties  *string `json:"new_properties"`
	Author         string  `json:"author"`
	ChangeTime     string  `json:"change_time"`
	Checksum       string  `json:"checksum"`
	ParentChecksum string  `json:"parent_checksum"`
}

// View converts e for display.
func (e *Entry) View() View {
	return View{
		ID:             e.ID,
		ObjectName:     e.ObjectName,
		ActionName:     e.ActionName,
		ObjectType:     e.ObjectType,
		OldProperties:  nullable(e.OldProperties),
		NewProperties:  nullable(e.NewProperties),
		Author:         e.Author,
		ChangeTime:     e.ChangeTimeText(),
		Checksum:       e.ChecksumHex(),
		ParentChecksum: e.ParentChecksumHex(),
	}
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
