package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// absolutePattern matches an ISO-8601 date-time with a 4-digit year and the
// "T" separator, optionally followed by a zone designator.
var absolutePattern = regexp.MustCompile(
	`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2})(?::(\d{2})(?:\.(\d{1,9}))?)?(Z|[+-]\d{2}:?\d{2})?$`,
)

// utcInstantPattern is the stored form of a resolved instant.
var utcInstantPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d{1,9})?Z$`)

// IsAbsolute reports whether s is already an absolute timestamp rather than
// natural language.
func IsAbsolute(s string) bool {
	return absolutePattern.MatchString(strings.TrimSpace(s))
}

// IsUTCInstant reports whether s is a strict UTC timestamp with a trailing Z.
func IsUTCInstant(s string) bool {
	return utcInstantPattern.MatchString(s)
}

// ParseUTCInstant parses the stored form produced by FormatInstant.
func ParseUTCInstant(s string) (time.Time, error) {
	if !IsUTCInstant(s) {
		return time.Time{}, fmt.Errorf("timeparse: %q is not a UTC instant", s)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeparse: parse instant %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatInstant renders t as a UTC RFC 3339 string with a Z suffix.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseAbsolute converts an absolute timestamp to UTC. A trailing Z or an
// explicit offset is honoured as-is; otherwise the wall clock is read in loc.
func parseAbsolute(s string, loc *time.Location) (time.Time, error) {
	m := absolutePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, ErrUnresolvable
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second := 0
	if m[6] != "" {
		second, _ = strconv.Atoi(m[6])
	}
	nsec := 0
	if m[7] != "" {
		frac := m[7] + strings.Repeat("0", 9-len(m[7]))
		nsec, _ = strconv.Atoi(frac)
	}
	if month < 1 || month > 12 || day < 1 || day > daysIn(time.Month(month), year) ||
		hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, fmt.Errorf("%w: %q out of range", ErrUnresolvable, s)
	}

	switch zone := m[8]; {
	case zone == "Z":
		return time.Date(year, time.Month(month), day, hour, minute, second, nsec, time.UTC), nil
	case zone != "":
		offset, err := parseOffset(zone)
		if err != nil {
			return time.Time{}, err
		}
		fixed := time.FixedZone(zone, offset)
		return time.Date(year, time.Month(month), day, hour, minute, second, nsec, fixed).UTC(), nil
	default:
		return time.Date(year, time.Month(month), day, hour, minute, second, nsec, loc).UTC(), nil
	}
}

func parseOffset(zone string) (int, error) {
	sign := 1
	if zone[0] == '-' {
		sign = -1
	}
	digits := strings.ReplaceAll(zone[1:], ":", "")
	if len(digits) != 4 {
		return 0, fmt.Errorf("%w: bad offset %q", ErrUnresolvable, zone)
	}
	hh, _ := strconv.Atoi(digits[:2])
	mm, _ := strconv.Atoi(digits[2:])
	if hh > 14 || mm > 59 {
		return 0, fmt.Errorf("%w: bad offset %q", ErrUnresolvable, zone)
	}
	return sign * (hh*3600 + mm*60), nil
}

func daysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
