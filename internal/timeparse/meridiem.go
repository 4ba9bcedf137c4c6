package timeparse

import (
	"regexp"
	"strconv"
	"strings"
)

// Meridiem is the AM/PM marker of a 12-hour clock reading.
type Meridiem int

const (
	MeridiemUnknown Meridiem = iota
	MeridiemAM
	MeridiemPM
)

func (m Meridiem) String() string {
	switch m {
	case MeridiemAM:
		return "am"
	case MeridiemPM:
		return "pm"
	default:
		return ""
	}
}

// To24 converts a 12-hour reading to a 24-hour one. 12pm stays 12, 12am is 0.
// Hours outside 1..12 are already 24-hour values and pass through.
func To24(hour int, m Meridiem) int {
	if hour < 1 || hour > 12 {
		return hour
	}
	switch m {
	case MeridiemPM:
		if hour < 12 {
			return hour + 12
		}
		return 12
	case MeridiemAM:
		if hour == 12 {
			return 0
		}
		return hour
	default:
		return hour
	}
}

var (
	bareHourPattern = regexp.MustCompile(`(?:\bat|\bby|@|\b(?:today|tonight|tomorrow|tmrw|tmr|tmrow|(?:mon|tues?|wed(?:nes)?|thu(?:rs?)?|fri|sat(?:ur)?|sun)(?:day)?)\s)\s*(\d{1,2})(?::\d{2})?\b`)
	meridiemSuffix  = regexp.MustCompile(`^\s*(?:am|pm|a\.m\.|p\.m\.|a|p)\b`)
	morningCue      = regexp.MustCompile(`\bmorning\b|\d\s*(?:am|pm|a\.m\.|p\.m\.)(?:\W|$)`)

	// a number that is a day of month, a date or an amount, not an hour
	notAnHour = regexp.MustCompile(`^(?:\s*(?:of\b|jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec|min|hour|hr|day|week|wk|month|year)|[/\-.]\d)`)
)

// InferMeridiem rewrites a bare "at H" or "tomorrow H" (1 <= H < belowHour)
// with no AM/PM marker and no morning cue to "at Hpm". Users omitting the
// meridiem in task phrasing almost always mean the evening. A rewritten
// phrase is lowercased.
func InferMeridiem(phrase string, belowHour int) string {
	lower := strings.ToLower(phrase)
	if belowHour <= 1 || morningCue.MatchString(lower) {
		return phrase
	}

	matches := bareHourPattern.FindAllStringSubmatchIndex(lower, -1)
	if len(matches) == 0 {
		return phrase
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		end := m[1]
		hour, err := strconv.Atoi(lower[m[2]:m[3]])
		if err != nil || hour < 1 || hour >= belowHour {
			continue
		}
		if meridiemSuffix.MatchString(lower[end:]) || notAnHour.MatchString(lower[end:]) {
			continue
		}
		b.WriteString(lower[last:end])
		b.WriteString("pm")
		last = end
	}
	if last == 0 {
		return phrase
	}
	b.WriteString(lower[last:])
	return b.String()
}
