package temporal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// maxWindow bounds N in "last N units".
const maxWindow = 10000

var (
	spaceRe  = regexp.MustCompile(`\s+`)
	windowRe = regexp.MustCompile(`^(?:last|past) (?:(\d+) )?([a-z]+)$`)
)

var units = map[string]string{
	"min": "minute", "mins": "minute", "minute": "minute", "minutes": "minute",
	"hour": "hour", "hours": "hour",
	"day": "day", "days": "day",
	"week": "week", "weeks": "week",
	"month": "month", "months": "month",
}

func normalize(phrase string) string {
	return spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(phrase)), " ")
}

// resolve accepts any preset or window phrase.
func resolve(phrase string, now time.Time) (DateRange, bool) {
	if dr, ok := preset(phrase, now); ok {
		return dr, true
	}
	return window(phrase, now)
}

// window builds a sliding range ending at now.
func window(phrase string, now time.Time) (DateRange, bool) {
	m := windowRe.FindStringSubmatch(normalize(phrase))
	if m == nil {
		return DateRange{}, false
	}
	unit, ok := units[m[2]]
	if !ok {
		return DateRange{}, false
	}

	n := 1
	canonical := "last " + unit
	if m[1] != "" {
		v, err := strconv.Atoi(m[1])
		if err != nil || v < 1 || v > maxWindow {
			return DateRange{}, false
		}
		n = v
		canonical = fmt.Sprintf("last %d %ss", n, unit)
		if n == 1 {
			canonical = "last 1 " + unit
		}
	}

	var start time.Time
	switch unit {
	case "minute":
		start = now.Add(-time.Duration(n) * time.Minute)
	case "hour":
		start = now.Add(-time.Duration(n) * time.Hour)
	case "day":
		start = now.Add(-time.Duration(n) * 24 * time.Hour)
	case "week":
		start = now.Add(-time.Duration(n) * 7 * 24 * time.Hour)
	case "month":
		start = now.AddDate(0, -n, 0)
	}
	return DateRange{Start: start, End: now, Preset: canonical}, true
}

// preset builds a calendar-aligned range. Weeks start on Monday.
// "past" is read as "last", which stays the canonical preset.
func preset(phrase string, now time.Time) (DateRange, bool) {
	p := normalize(phrase)
	if rest, ok := strings.CutPrefix(p, "past "); ok {
		p = "last " + rest
	}
	today := startOfDay(now)
	monday := today.AddDate(0, 0, -mondayOffset(now))
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var start, last time.Time
	switch p {
	case "today":
		start, last = today, today
	case "yesterday":
		start = today.AddDate(0, 0, -1)
		last = start
	case "tomorrow":
		start = today.AddDate(0, 0, 1)
		last = start
	case "this week":
		start, last = monday, monday.AddDate(0, 0, 6)
	case "last week":
		start, last = monday.AddDate(0, 0, -7), monday.AddDate(0, 0, -1)
	case "next week":
		start, last = monday.AddDate(0, 0, 7), monday.AddDate(0, 0, 13)
	case "this month":
		start, last = first, first.AddDate(0, 1, -1)
	case "last month":
		start, last = first.AddDate(0, -1, 0), first.AddDate(0, 0, -1)
	case "next month":
		start, last = first.AddDate(0, 1, 0), first.AddDate(0, 2, -1)
	default:
		return DateRange{}, false
	}
	return DateRange{Start: start, End: endOfDay(last), Preset: p}, true
}

// mondayOffset is the number of days since Monday. Sunday maps to 6.
func mondayOffset(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
