// Package recency converts listing timestamps and relative-age phrases into
// an age in days.
package recency

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SentinelDays is returned for ages that are effectively unbounded: absolute
// timestamps in the future (clock skew, pre-release listings) and phrases
// like "more than 6 months ago" where only "too old" is knowable. It exceeds
// any realistic cutoff, so callers treat it as a stop signal.
const SentinelDays = 999.0

var (
	hoursRe = regexp.MustCompile(`(\d+)\s+hour`)
	daysRe  = regexp.MustCompile(`(\d+)\s+day`)
	weeksRe = regexp.MustCompile(`(\d+)\s+week`)
	staleRe = regexp.MustCompile(`month|more than`)
)

// AgeInDays resolves a record's age from an absolute ISO timestamp or, when
// that is absent or unparseable, a free-text relative phrase. nil means the
// age is unknown: the record is still ingested, but never used for stopping.
func AgeInDays(listedAt, timeAgo string, now time.Time) *float64 {
	if age := fromTimestamp(listedAt, now); age != nil {
		return age
	}
	return fromPhrase(timeAgo)
}

func fromTimestamp(listedAt string, now time.Time) *float64 {
	s := strings.TrimSpace(listedAt)
	if s == "" {
		return nil
	}
	ts, err := parseInstant(s)
	if err != nil {
		return nil
	}
	delta := now.Sub(ts)
	if delta < 0 {
		return ptr(SentinelDays)
	}
	return ptr(delta.Hours() / 24)
}

func parseInstant(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return ts, nil
}

// fromPhrase parses "Listed 5 hours ago" style text. The month / "more than"
// check runs before every unit pattern, so "more than 14 days ago" and
// "more than 2 weeks ago" yield the sentinel rather than 14.
func fromPhrase(text string) *float64 {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return nil
	}
	if staleRe.MatchString(t) {
		return ptr(SentinelDays)
	}
	if m := hoursRe.FindStringSubmatch(t); m != nil {
		return ptr(mustFloat(m[1]) / 24)
	}
	if m := daysRe.FindStringSubmatch(t); m != nil {
		return ptr(mustFloat(m[1]))
	}
	if m := weeksRe.FindStringSubmatch(t); m != nil {
		return ptr(mustFloat(m[1]) * 7)
	}
	return nil
}

func mustFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func ptr(v float64) *float64 {
	return &v
}
