package services

import (
	"fmt"
	"html"
	"log"
	"sync"
	"time"

	"gopkg.in/gomail.v2"
)

const defaultAlertInterval = time.Hour

// AlertService tells the operator about state the service cannot repair on
// its own.
type AlertService interface {
	Notify(kind, subject, detail string)
}

// NopAlerts drops every alert; the log line is the only trace.
type NopAlerts struct{}

func (NopAlerts) Notify(string, string, string) {}

type mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// alertLimiter lets one alert of each kind through per interval.
type alertLimiter struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func newAlertLimiter(interval time.Duration) *alertLimiter {
	return &alertLimiter{interval: interval, now: time.Now, last: make(map[string]time.Time)}
}

func (l *alertLimiter) allow(kind string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if prev, ok := l.last[kind]; ok && now.Sub(prev) < l.interval {
		return now, false
	}
	l.last[kind] = now
	return now, true
}

// MultiAlerts fans an alert out to every channel.
type MultiAlerts []AlertService

func (m MultiAlerts) Notify(kind, subject, detail string) {
	for _, a := range m {
		a.Notify(kind, subject, detail)
	}
}

type emailAlertService struct {
	dialer   mailer
	from, to string
	*alertLimiter
}

// NewEmailAlertService mails alerts over SMTP, at most one per kind per hour.
func NewEmailAlertService(smtpHost string, smtpPort int, smtpUser, smtpPassword, from, to string) AlertService {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return newEmailAlertService(dialer, from, to)
}

func newEmailAlertService(d mailer, from, to string) *emailAlertService {
	return &emailAlertService{
		dialer:       d,
		from:         from,
		to:           to,
		alertLimiter: newAlertLimiter(defaultAlertInterval),
	}
}

func (s *emailAlertService) Notify(kind, subject, detail string) {
	now, ok := s.allow(kind)
	if !ok {
		return
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to)
	m.SetHeader("Subject", "[taskbuddy] "+subject)
	body := fmt.Sprintf(`
		<h3>%s</h3>
		<p>%s</p>
		<p>Kind: <code>%s</code>, at %s. Further alerts of this kind are muted for %s.</p>
	`, html.EscapeString(subject), html.EscapeString(detail), html.EscapeString(kind),
		now.UTC().Format(time.RFC3339), s.interval)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		log.Printf("[alert][email][err] kind=%s: %v", kind, err)
		return
	}
	log.Printf("[alert][email] kind=%s sent to %s", kind, s.to)
}
