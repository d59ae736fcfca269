package clock

import "time"

const layout = "2006-01-02T15:04:05Z"

func Now() string {
	return time.Now().UTC().Format(layout)
}

// Format renders t in the same layout as Now.
func Format(t time.Time) string {
	return t.UTC().Format(layout)
}

// Millis converts t to unix milliseconds, the storage form used by the SQL store.
func Millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// FromMillis is the inverse of Millis.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Truncate drops precision below a millisecond so values survive a storage round trip unchanged.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
