package activity

import "time"

// Clock supplies change times.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Settings is the configuration the log consults.
type Settings interface {
	// EnableAuditLog turns on the informational audit record emitted after
	// each append.
	EnableAuditLog() bool
}

// StaticSettings is a fixed Settings value.
type StaticSettings struct {
	AuditLog bool
}

// EnableAuditLog implements Settings.
func (s StaticSettings) EnableAuditLog() bool { return s.AuditLog }

// changeTime truncates now to the stored resolution and clamps it so it is
// never before the latest entry's change time.
func changeTime(now time.Time, latest *Entry) time.Time {
	t := now.UTC().Truncate(time.Second)
	if latest != nil && t.Before(latest.ChangeTime) {
		return latest.ChangeTime.UTC()
	}
	return t
}
