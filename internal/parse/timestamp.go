package parse

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var spaceRe = regexp.MustCompile(`\s+`)

// legacyLayouts are the wall-clock formats older dashboard revisions stored
// timestamps in. They carry no zone and are read in the caller's location.
var legacyLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseInstant parses raw as RFC3339 or as one of the legacy layouts in loc,
// and returns the instant in UTC.
func ParseInstant(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}

	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", raw)
}
