package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pmezard/go-difflib/difflib"
)

// audit emits the informational record of an appended entry when the audit
// setting is on. It never fails: the entry is already stored.
func (l *Log) audit(ctx context.Context, e *Entry) {
	if l.settings == nil || !l.settings.EnableAuditLog() {
		return
	}

	attrs := []slog.Attr{
		slog.Int64("id", e.ID),
		slog.String("action", string(e.ActionName)),
		slog.String("object_type", e.ObjectType),
		slog.String("object_name", e.ObjectName),
		slog.String("author", e.Author),
		slog.String("change_time", e.ChangeTimeText()),
		slog.String("checksum", e.ChecksumHex()),
	}
	if diff := snapshotDiff(e); diff != "" {
		attrs = append(attrs, slog.String("diff", diff))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "activity", attrs...)
}

// snapshotDiff renders old and new properties as indented JSON and returns
// their unified diff.
func snapshotDiff(e *Entry) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(pretty(e.OldProperties.String, e.OldProperties.Valid)),
		B:        difflib.SplitLines(pretty(e.NewProperties.String, e.NewProperties.Valid)),
		FromFile: "old",
		ToFile:   "new",
		Context:  1,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}

func pretty(s string, valid bool) string {
	if !valid {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(s), "", "  "); err != nil {
		return s + "\n"
	}
	buf.WriteByte('\n')
	return buf.String()
}
