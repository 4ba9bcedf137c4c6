// Package timeparse turns user time phrases into UTC instants, reading every
// wall-clock value in the user's own zone.
package timeparse

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEmptyPhrase  = errors.New("timeparse: empty phrase")
	ErrUnresolvable = errors.New("timeparse: could not understand the time")
)

const (
	// DefaultPMBelowHour: a bare "at H" with H below this is read as PM.
	DefaultPMBelowHour = 7

	maxYearsAhead  = 5
	maxYearsBehind = 1
)

// Resolver resolves phrases against a reference instant.
type Resolver struct {
	pmBelowHour int
}

func New(pmBelowHour int) *Resolver {
	if pmBelowHour < 0 {
		pmBelowHour = 0
	}
	return &Resolver{pmBelowHour: pmBelowHour}
}

// LoadZone returns the IANA zone by name. Empty, unknown and "Local" names
// fall back to UTC so the host's own zone never takes part.
func LoadZone(name string) *time.Location {
	loc, ok := lookupZone(name)
	if !ok {
		return time.UTC
	}
	return loc
}

// ValidZone reports whether name is a loadable IANA zone.
func ValidZone(name string) bool {
	_, ok := lookupZone(name)
	return ok
}

func lookupZone(name string) (*time.Location, bool) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return nil, false
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	return loc, true
}

// Resolve interprets phrase as of ref in the named zone and returns a UTC
// instant. Absolute timestamps with Z or an offset are honoured as given.
func (r *Resolver) Resolve(phrase string, ref time.Time, zone string) (time.Time, error) {
	return r.ResolveIn(phrase, ref, LoadZone(zone))
}

func (r *Resolver) ResolveIn(phrase string, ref time.Time, loc *time.Location) (time.Time, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return time.Time{}, ErrEmptyPhrase
	}
	if loc == nil {
		loc = time.UTC
	}
	if IsAbsolute(phrase) {
		return parseAbsolute(phrase, loc)
	}

	local := ref.In(loc)
	c, ok := Parse(InferMeridiem(phrase, r.pmBelowHour), local)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnresolvable, phrase)
	}
	return instant(c, local, loc), nil
}

func instant(c Components, ref time.Time, loc *time.Location) time.Time {
	if !c.Exact.IsZero() {
		return c.Exact.UTC()
	}
	year := c.Year
	if year < ref.Year()-maxYearsBehind || year > ref.Year()+maxYearsAhead {
		year = ref.Year()
	}
	hour := To24(c.Hour, c.Meridiem)
	return time.Date(year, c.Month, c.Day, hour, c.Minute, c.Second, 0, loc).UTC()
}
