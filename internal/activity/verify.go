package activity

import (
	"bytes"
	"context"
	"fmt"
)

// ChainIntegrityError reports the first entry at which the chain does not
// verify.
type ChainIntegrityError struct {
	EntryID int64
	Reason  string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("activity chain broken at entry %d: %s", e.EntryID, e.Reason)
}

// VerifyChain recomputes the checksum of every entry with fromID <= id <=
// toID (toID 0 meaning the end of the log) and checks each parent checksum
// against the entry before it. The entry before fromID, if any, anchors the
// range.
//
// It returns nil when the range verifies, a *ChainIntegrityError when it does
// not, and any other error when the store cannot be read.
func (l *Log) VerifyChain(ctx context.Context, fromID, toID int64) error {
	return VerifyChain(ctx, l.store, fromID, toID)
}

// VerifyChain is Log.VerifyChain over a bare store.
func VerifyChain(ctx context.Context, store Store, fromID, toID int64) error {
	if fromID < 1 {
		fromID = 1
	}

	entries, err := store.Entries(ctx, fromID, toID)
	if err != nil {
		return fmt.Errorf("verify chain: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	var prevChecksum []byte
	prev, err := store.EntryBefore(ctx, entries[0].ID)
	if err != nil {
		return fmt.Errorf("verify chain: %w", err)
	}
	if prev != nil {
		sum, err := Checksum(prev)
		if err != nil {
			return fmt.Errorf("verify chain: %w", err)
		}
		if !bytes.Equal(sum, prev.Checksum) {
			return &ChainIntegrityError{EntryID: prev.ID, Reason: "checksum mismatch"}
		}
		prevChecksum = prev.Checksum
	}

	lastTime := entries[0].ChangeTime
	if prev != nil {
		lastTime = prev.ChangeTime
	}

	for i := range entries {
		e := &entries[i]
		if err := ctx.Err(); err != nil {
			return err
		}

		if !e.ActionName.Valid() {
			return &ChainIntegrityError{EntryID: e.ID, Reason: fmt.Sprintf("unknown action %q", e.ActionName)}
		}
		if !bytes.Equal(e.ParentChecksum, prevChecksum) {
			return &ChainIntegrityError{EntryID: e.ID, Reason: "parent checksum does not match previous entry"}
		}
		sum, err := Checksum(e)
		if err != nil {
			return fmt.Errorf("verify chain: %w", err)
		}
		if !bytes.Equal(sum, e.Checksum) {
			return &ChainIntegrityError{EntryID: e.ID, Reason: "checksum mismatch"}
		}
		if e.ChangeTime.Before(lastTime) {
			return &ChainIntegrityError{EntryID: e.ID, Reason: "change time runs backwards"}
		}

		prevChecksum = e.Checksum
		lastTime = e.ChangeTime
	}
	return nil
}
