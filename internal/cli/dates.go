package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/temporal"
)

var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseDate reads a calendar day as YYYY-MM-DD or natural language such as
// "yesterday" or "last monday". The result is midnight in loc.
func ParseDate(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if t, err := temporal.ParseDateKey(s, loc); err == nil {
		return t, nil
	}
	t, err := parseNatural(s, now.In(loc))
	if err != nil {
		return time.Time{}, err
	}
	return temporal.StartOfDay(t, loc), nil
}

var instantLayouts = []string{
	time.RFC3339,
	constants.TimestampFormat,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// ParseInstant reads a point in time. Absolute layouts are interpreted in
// loc; "now", "2h ago" and similar go through the natural language parser.
func ParseInstant(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "now") {
		return now, nil
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation(constants.TimeFormat, s, loc); err == nil {
		today := temporal.StartOfDay(now, loc)
		return time.Date(today.Year(), today.Month(), today.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
	}
	return parseNatural(s, now.In(loc))
}

func parseNatural(s string, base time.Time) (time.Time, error) {
	r, err := parser.Parse(s, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand date %q", s)
	}
	return r.Time, nil
}
