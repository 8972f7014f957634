package shared

import (
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// ParseDay accepts a calendar date in YYYY-MM-DD form.
func ParseDay(value string) (time.Time, error) {
	return time.Parse(dayLayout, strings.TrimSpace(value))
}
