package db

import "time"

// TimestampLayout is how creation times are stored: local wall clock, second
// precision, sortable as text on both backends.
const TimestampLayout = "2006-01-02 15:04:05"

func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
