// Package dateparse turns short English phrases ("tomorrow", "friday at
// 3pm", "in 2 weeks") into concrete times. It is lexical matching over a
// fixed set of patterns, checked in a fixed order; anything else is
// reported as unparseable so the caller can ask the user to clarify.
package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoPattern      = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}(?:[t ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:z|[+-]\d{2}:\d{2})?)?`)
	relativePattern = regexp.MustCompile(`\bin (\d+) (days?|hours?|weeks?)\b`)
	durationPattern = regexp.MustCompile(`\bfor (\d+) (hours?|minutes?)\b`)
	timePattern     = regexp.MustCompile(`\b(at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
)

var weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

const (
	defaultHour     = 9
	defaultDuration = time.Hour
)

// Span is a start/end pair produced by EventTime.
type Span struct {
	Start time.Time
	End   time.Time
}

// DueDate parses a task due date relative to now. ISO dates are tried
// first, then "today", "tomorrow", "next week", "in N days|hours|weeks" and
// weekday names. Relative phrases keep now's time of day. ok is false when
// nothing was recognized.
func DueDate(text string, now time.Time) (time.Time, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return time.Time{}, false
	}

	if m := isoPattern.FindString(s); m != "" {
		if t, _, ok := parseISO(m, now.Location()); ok {
			return t, true
		}
	}

	switch {
	case strings.Contains(s, "today"):
		return now, true
	case strings.Contains(s, "tomorrow"):
		return now.AddDate(0, 0, 1), true
	case strings.Contains(s, "next week"):
		return now.AddDate(0, 0, 7), true
	}

	if m := relativePattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return addUnit(now, n, m[2]), true
		}
	}

	if days, ok := weekdayOffset(s, now); ok {
		return now.AddDate(0, 0, days), true
	}
	return time.Time{}, false
}

// EventTime parses an event start and end relative to now. The date comes
// from an ISO date, "in N ..." or one of the DueDate anchors; the time of
// day from a token like "3pm", "10:30" or "at 7" (09:00 when absent); the
// length from "for N hours|minutes" (one hour when absent). ok is false
// when neither a date nor a time of day was recognized.
func EventTime(text string, now time.Time) (Span, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	loc := now.Location()

	duration := defaultDuration
	if m := durationPattern.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			if strings.HasPrefix(m[2], "hour") {
				duration = time.Duration(n) * time.Hour
			} else {
				duration = time.Duration(n) * time.Minute
			}
		}
		s = strings.Replace(s, m[0], " ", 1)
	}

	recognized := false
	day := midnight(now)

	if m := isoPattern.FindString(s); m != "" {
		if t, hasClock, ok := parseISO(m, loc); ok {
			if hasClock {
				return Span{Start: t, End: t.Add(duration)}, true
			}
			day = t
			recognized = true
		}
		s = strings.Replace(s, m, " ", 1)
	} else if m := relativePattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			if strings.HasPrefix(m[2], "hour") {
				start := now.Add(time.Duration(n) * time.Hour).Truncate(time.Minute)
				return Span{Start: start, End: start.Add(duration)}, true
			}
			day = addUnit(midnight(now), n, m[2])
			recognized = true
		}
		s = strings.Replace(s, m[0], " ", 1)
	} else {
		switch {
		case strings.Contains(s, "today"):
			recognized = true
		case strings.Contains(s, "tomorrow"):
			day = day.AddDate(0, 0, 1)
			recognized = true
		case strings.Contains(s, "next week"):
			day = day.AddDate(0, 0, 7)
			recognized = true
		default:
			if days, ok := weekdayOffset(s, now); ok {
				day = day.AddDate(0, 0, days)
				recognized = true
			}
		}
	}

	hour, minute := defaultHour, 0
	if h, m, ok := clockTime(s); ok {
		hour, minute = h, m
		recognized = true
	}
	if !recognized {
		return Span{}, false
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	return Span{Start: start, End: start.Add(duration)}, true
}

// weekdayOffset returns the days until the first weekday named in s. The
// result is always in 1..7: naming today's weekday means next week's.
func weekdayOffset(s string, now time.Time) (int, bool) {
	for i, name := range weekdays {
		if !strings.Contains(s, name) {
			continue
		}
		days := i - int(now.Weekday())
		if days <= 0 {
			days += 7
		}
		return days, true
	}
	return 0, false
}

// clockTime finds the first plausible time of day in s. A bare number only
// counts when preceded by "at", so counts like "5 people" are ignored.
func clockTime(s string) (hour, minute int, ok bool) {
	for _, m := range timePattern.FindAllStringSubmatch(s, -1) {
		at, hh, mm, meridiem := m[1], m[2], m[3], m[4]
		if at == "" && mm == "" && meridiem == "" {
			continue
		}
		h, err := strconv.Atoi(hh)
		if err != nil {
			continue
		}
		mins := 0
		if mm != "" {
			if mins, err = strconv.Atoi(mm); err != nil || mins > 59 {
				continue
			}
		}
		switch meridiem {
		case "pm":
			if h < 1 || h > 12 {
				continue
			}
			if h != 12 {
				h += 12
			}
		case "am":
			if h < 1 || h > 12 {
				continue
			}
			if h == 12 {
				h = 0
			}
		default:
			if h > 23 {
				continue
			}
		}
		return h, mins, true
	}
	return 0, 0, false
}

var isoLayouts = []struct {
	layout   string
	hasClock bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02T15:04", true},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02 15:04", true},
	{"2006-01-02", false},
}

func parseISO(s string, loc *time.Location) (time.Time, bool, bool) {
	s = strings.ToUpper(s)
	for _, l := range isoLayouts {
		if t, err := time.ParseInLocation(l.layout, s, loc); err == nil {
			return t, l.hasClock, true
		}
	}
	return time.Time{}, false, false
}

func addUnit(t time.Time, n int, unit string) time.Time {
	switch {
	case strings.HasPrefix(unit, "day"):
		return t.AddDate(0, 0, n)
	case strings.HasPrefix(unit, "week"):
		return t.AddDate(0, 0, 7*n)
	default:
		return t.Add(time.Duration(n) * time.Hour)
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
