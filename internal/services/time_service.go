package services

import (
	"errors"
	"strings"
	"time"

	"taskbuddy/internal/timeparse"
)

var ErrInvalidTimeZone = errors.New("invalid time zone")

// TimeService is the callable form of the resolver: phrase + zone in,
// UTC instant out.
type TimeService struct {
	resolver    *timeparse.Resolver
	defaultZone string
	now         func() time.Time
}

func NewTimeService(resolver *timeparse.Resolver, defaultZone string) *TimeService {
	if resolver == nil {
		resolver = timeparse.New(timeparse.DefaultPMBelowHour)
	}
	if !timeparse.ValidZone(defaultZone) {
		defaultZone = "UTC"
	}
	return &TimeService{resolver: resolver, defaultZone: defaultZone, now: time.Now}
}

type ParsedTime struct {
	Input   string
	Zone    string
	Instant time.Time
	Display string
}

// Zone returns zone when it is a loadable IANA name, the default otherwise.
func (s *TimeService) Zone(zone string) string {
	zone = strings.TrimSpace(zone)
	if timeparse.ValidZone(zone) {
		return zone
	}
	return s.defaultZone
}

// Resolve interprets phrase at ref in zone.
func (s *TimeService) Resolve(phrase, zone string, ref time.Time) (time.Time, error) {
	return s.resolver.Resolve(phrase, ref, s.Zone(zone))
}

// Parse resolves phrase against the current instant.
func (s *TimeService) Parse(phrase, zone string) (*ParsedTime, error) {
	zone = s.Zone(zone)
	at, err := s.resolver.Resolve(phrase, s.now(), zone)
	if err != nil {
		return nil, err
	}
	return &ParsedTime{
		Input:   phrase,
		Zone:    zone,
		Instant: at,
		Display: FormatInZone(at, zone),
	}, nil
}

// FormatInZone renders an instant for people, in their own zone.
func FormatInZone(t time.Time, zone string) string {
	return t.In(timeparse.LoadZone(zone)).Format("Mon Jan 2, 2006 at 3:04 PM MST")
}
